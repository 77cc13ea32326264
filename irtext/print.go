package irtext

import (
	"strconv"
	"strings"

	"github.com/wippyai/ctoreval/ir"
)

// Print renders prog in IR text form. Parse(Print(p)) yields a program
// equal to p up to pointer identity.
func Print(prog *ir.Program) string {
	var b strings.Builder
	b.WriteString("(program ")
	b.WriteString(strconv.Quote(prog.Name))

	for _, t := range namedTypes(prog) {
		b.WriteString("\n  (type ")
		b.WriteString(t.Name)
		b.WriteByte(' ')
		b.WriteString(t.Definition())
		b.WriteByte(')')
	}
	for _, g := range prog.Globals {
		b.WriteString("\n  ")
		writeGlobal(&b, g)
	}
	for _, f := range prog.Funcs {
		b.WriteString("\n  ")
		writeFunc(&b, f)
	}
	for _, c := range prog.Ctors {
		b.WriteString("\n  (ctor @")
		b.WriteString(c.Func.Name)
		if c.Priority != ir.DefaultPriority {
			b.WriteByte(' ')
			b.WriteString(strconv.Itoa(c.Priority))
		}
		b.WriteByte(')')
	}
	b.WriteString(")\n")
	return b.String()
}

func writeGlobal(b *strings.Builder, g *ir.Global) {
	b.WriteString("(global @")
	b.WriteString(g.Name)
	b.WriteByte(' ')
	b.WriteString(g.Type.String())
	if g.Init != nil {
		b.WriteByte(' ')
		b.WriteString(g.Init.String())
		if g.Linkage == ir.LinkageExternal {
			b.WriteString(" external")
		}
	}
	if g.ReadOnly {
		b.WriteString(" readonly")
	}
	if g.Synthetic {
		b.WriteString(" synthetic")
	}
	b.WriteByte(')')
}

func writeFunc(b *strings.Builder, f *ir.Function) {
	b.WriteString("(func @")
	b.WriteString(f.Name)
	for i, l := range f.Locals {
		kw := "local"
		if i < f.NumParams() {
			kw = "param"
		}
		if i == f.NumParams() && f.Sig.Result.Kind != ir.KindVoid {
			writeResult(b, f)
		}
		b.WriteString(" (")
		b.WriteString(kw)
		if l.Name != "" {
			b.WriteString(" %")
			b.WriteString(l.Name)
		}
		b.WriteByte(' ')
		b.WriteString(l.Type.String())
		b.WriteByte(')')
	}
	if len(f.Locals) == f.NumParams() && f.Sig.Result.Kind != ir.KindVoid {
		writeResult(b, f)
	}
	for _, blk := range f.Blocks {
		b.WriteString("\n    (block ")
		b.WriteString(blk.Label)
		for _, in := range blk.Instrs {
			b.WriteString("\n      ")
			b.WriteString(in.Format(f))
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
}

func writeResult(b *strings.Builder, f *ir.Function) {
	b.WriteString(" (result ")
	b.WriteString(f.Sig.Result.String())
	b.WriteByte(')')
}

// namedTypes returns the program's registered named structs followed by
// any named struct reachable from a symbol but never registered.
func namedTypes(prog *ir.Program) []*ir.Type {
	seen := make(map[string]bool)
	var out []*ir.Type
	var visit func(t *ir.Type)
	visit = func(t *ir.Type) {
		if t == nil {
			return
		}
		if t.Kind == ir.KindStruct && t.Name != "" {
			if seen[t.Name] {
				return
			}
			seen[t.Name] = true
			out = append(out, t)
		}
		visit(t.Elem)
		visit(t.Result)
		for _, f := range t.Fields {
			visit(f)
		}
		for _, p := range t.Params {
			visit(p)
		}
	}

	for _, t := range prog.Types {
		visit(t)
	}
	for _, g := range prog.Globals {
		visit(g.Type)
	}
	for _, f := range prog.Funcs {
		visit(f.Sig)
		for _, l := range f.Locals {
			visit(l.Type)
		}
		for _, blk := range f.Blocks {
			for _, in := range blk.Instrs {
				visit(in.Type)
			}
		}
	}
	return out
}
