package preexec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/ctoreval/errors"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		check func(t *testing.T, c Config)
		kind  errors.Kind
	}{
		{
			name: "empty keeps defaults",
			yaml: "",
			check: func(t *testing.T, c Config) {
				def := DefaultConfig()
				if c.MaxSteps != def.MaxSteps || len(c.IgnoreCalls) != len(def.IgnoreCalls) || !c.CollapseZero || !c.StopOnDefer {
					t.Errorf("config = %+v", c)
				}
			},
		},
		{
			name: "overrides",
			yaml: "max_steps: 500\nstop_on_defer: false\nignore_calls:\n  - '^__cxa_atexit$'\n  - '^_?register_.*'\n",
			check: func(t *testing.T, c Config) {
				if c.MaxSteps != 500 || c.StopOnDefer || len(c.IgnoreCalls) != 2 {
					t.Errorf("config = %+v", c)
				}
				if c.MaxCallDepth != DefaultConfig().MaxCallDepth {
					t.Errorf("unset key lost its default: %d", c.MaxCallDepth)
				}
			},
		},
		{
			name: "unknown key",
			yaml: "max_stepz: 1\n",
			kind: errors.KindInvalidData,
		},
		{
			name: "negative limit",
			yaml: "max_call_depth: -1\n",
			kind: errors.KindInvalidInput,
		},
		{
			name: "bad pattern",
			yaml: "ignore_calls: ['(unclosed']\n",
			kind: errors.KindInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseConfig([]byte(tt.yaml))
			if tt.kind != "" {
				if errors.KindOf(err) != tt.kind {
					t.Fatalf("err = %v, want %s", err, tt.kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseConfig: %v", err)
			}
			tt.check(t, c)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctoreval.yaml")
	if err := os.WriteFile(path, []byte("max_memory_bytes: 4096\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.MaxMemoryBytes != 4096 {
		t.Errorf("MaxMemoryBytes = %d", c.MaxMemoryBytes)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("missing file err = %v", err)
	}
}

func TestIgnoreSet(t *testing.T) {
	set, err := compilePatterns([]string{`^__cxa_atexit$`, `^_?register_\w+$`})
	if err != nil {
		t.Fatal(err)
	}
	tests := map[string]bool{
		"__cxa_atexit":       true,
		"__cxa_atexit_impl":  false,
		"register_handler":   true,
		"_register_handler":  true,
		"deregister_handler": false,
	}
	for name, want := range tests {
		if got := set.Match(name); got != want {
			t.Errorf("Match(%q) = %v, want %v", name, got, want)
		}
	}
}
