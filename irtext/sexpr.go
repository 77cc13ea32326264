package irtext

import (
	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/irtext/internal/token"
)

// node is an atom or a parenthesized list.
type node struct {
	tok  token.Token
	list []*node
	line int
	atom bool
}

func (n *node) isAtom(typ token.Type) bool { return n.atom && n.tok.Type == typ }

// head returns the keyword of a list like (keyword ...), or "".
func (n *node) head() string {
	if n.atom || len(n.list) == 0 || !n.list[0].isAtom(token.Ident) {
		return ""
	}
	return n.list[0].tok.Value
}

func (n *node) describe() string {
	if n.atom {
		return n.tok.Value
	}
	if h := n.head(); h != "" {
		return "(" + h + " ...)"
	}
	return "(...)"
}

// readAll builds the top-level nodes of a token stream.
func readAll(tokens []token.Token) ([]*node, error) {
	var stack [][]*node
	var lines []int
	var top []*node

	for _, t := range tokens {
		switch t.Type {
		case token.Illegal:
			return nil, errors.ParseFailed(t.Line, "unexpected character %q", t.Value)
		case token.LParen:
			stack = append(stack, nil)
			lines = append(lines, t.Line)
		case token.RParen:
			if len(stack) == 0 {
				return nil, errors.ParseFailed(t.Line, "unbalanced ')'")
			}
			n := &node{list: stack[len(stack)-1], line: lines[len(lines)-1]}
			stack, lines = stack[:len(stack)-1], lines[:len(lines)-1]
			if len(stack) == 0 {
				top = append(top, n)
			} else {
				stack[len(stack)-1] = append(stack[len(stack)-1], n)
			}
		default:
			n := &node{tok: t, line: t.Line, atom: true}
			if len(stack) == 0 {
				top = append(top, n)
			} else {
				stack[len(stack)-1] = append(stack[len(stack)-1], n)
			}
		}
	}
	if len(stack) > 0 {
		return nil, errors.ParseFailed(lines[len(lines)-1], "unclosed '('")
	}
	return top, nil
}
