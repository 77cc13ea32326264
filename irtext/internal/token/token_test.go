package token

import (
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Token
	}{
		{
			"empty",
			"",
			nil,
		},
		{
			"parens",
			"()",
			[]Token{{"(", LParen, 1}, {")", RParen, 1}},
		},
		{
			"program",
			"(program demo)",
			[]Token{{"(", LParen, 1}, {"program", Ident, 1}, {"demo", Ident, 1}, {")", RParen, 1}},
		},
		{
			"newlines",
			"(\nglobal\n)",
			[]Token{{"(", LParen, 1}, {"global", Ident, 2}, {")", RParen, 3}},
		},
		{
			"symbols",
			"@arr %i %0 @head.heap.1",
			[]Token{{"@arr", Ident, 1}, {"%i", Ident, 1}, {"%0", Ident, 1}, {"@head.heap.1", Ident, 1}},
		},
		{
			"numbers",
			"42 -7 0xFF 1.5e-3",
			[]Token{{"42", Number, 1}, {"-7", Number, 1}, {"0xFF", Number, 1}, {"1.5e-3", Number, 1}},
		},
		{
			"special floats",
			"-inf +nan inf",
			[]Token{{"-inf", Ident, 1}, {"+nan", Ident, 1}, {"inf", Ident, 1}},
		},
		{
			"string",
			`"hello \"world\""`,
			[]Token{{`hello \"world\"`, String, 1}},
		},
		{
			"line comment",
			";; comment\n(br loop)",
			[]Token{{"(", LParen, 2}, {"br", Ident, 2}, {"loop", Ident, 2}, {")", RParen, 2}},
		},
		{
			"block comment",
			"(; multi\nline ;)x",
			[]Token{{"x", Ident, 2}},
		},
		{
			"nested block comment",
			"(; outer (; inner ;) still ;)y",
			[]Token{{"y", Ident, 1}},
		},
		{
			"illegal",
			"a # b",
			[]Token{{"a", Ident, 1}, {"#", Illegal, 1}, {"b", Ident, 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if len(got) != len(tt.expected) {
				t.Fatalf("got %d tokens %v, want %d", len(got), got, len(tt.expected))
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("token %d = %+v, want %+v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{LParen, "'('"},
		{RParen, "')'"},
		{Ident, "identifier"},
		{String, "string"},
		{Number, "number"},
		{Illegal, "illegal character"},
		{Type(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}
