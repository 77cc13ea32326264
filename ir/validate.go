package ir

import "fmt"

// Validate checks the program for structural validity: initializer types,
// object sizes, operand and branch references, per-opcode operand counts,
// terminated blocks and constructor membership. It does not type-check
// instruction operands against each other.
func (p *Program) Validate() error {
	l := p.Layout()
	if err := p.validateGlobals(l); err != nil {
		return err
	}
	for _, f := range p.Funcs {
		if err := validateFunction(l, f); err != nil {
			return err
		}
	}
	return p.validateConstructors()
}

func (p *Program) validateGlobals(l *Layout) error {
	for _, t := range p.Types {
		if !l.Fits(t) {
			return fmt.Errorf("type %s is larger than the address space", t)
		}
	}
	for _, g := range p.Globals {
		if g.Type == nil {
			return fmt.Errorf("global @%s has no type", g.Name)
		}
		if !l.Fits(g.Type) {
			return fmt.Errorf("global @%s: type %s is larger than the address space", g.Name, g.Type)
		}
		if g.Init != nil && !g.Init.Type().Equal(g.Type) {
			return fmt.Errorf("global @%s: initializer type %s does not match %s", g.Name, g.Init.Type(), g.Type)
		}
	}
	return nil
}

func validateFunction(l *Layout, f *Function) error {
	if f.Sig == nil || f.Sig.Kind != KindFunc {
		return fmt.Errorf("function @%s has no signature", f.Name)
	}
	if len(f.Locals) < f.NumParams() {
		return fmt.Errorf("function @%s: %d locals for %d params", f.Name, len(f.Locals), f.NumParams())
	}
	for i, loc := range f.Locals {
		if loc.Type == nil {
			return fmt.Errorf("function @%s: local %d has no type", f.Name, i)
		}
	}

	owned := make(map[*Block]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		owned[b] = true
	}

	for _, b := range f.Blocks {
		if len(b.Instrs) == 0 || !b.Instrs[len(b.Instrs)-1].Op.IsTerminator() {
			return fmt.Errorf("function @%s: block %s is not terminated", f.Name, b.Label)
		}
		for i, in := range b.Instrs {
			if in.Op.IsTerminator() && i != len(b.Instrs)-1 {
				return fmt.Errorf("function @%s: block %s has %s before its end", f.Name, b.Label, in.Op)
			}
			if in.Dst >= len(f.Locals) {
				return fmt.Errorf("function @%s: block %s writes undefined local %d", f.Name, b.Label, in.Dst)
			}
			for _, a := range in.Args {
				if a.Const == nil && (a.Local < 0 || a.Local >= len(f.Locals)) {
					return fmt.Errorf("function @%s: block %s reads undefined local %d", f.Name, b.Label, a.Local)
				}
			}
			for _, t := range in.Targets {
				if !owned[t] {
					return fmt.Errorf("function @%s: branch to foreign block %s", f.Name, t.Label)
				}
			}
			if err := validateInstr(l, in); err != nil {
				return fmt.Errorf("function @%s: block %s: %s: %w", f.Name, b.Label, in.Op, err)
			}
		}
	}
	return nil
}

// validateInstr checks the operand, target and type slots the interpreter
// reads for in.Op.
func validateInstr(l *Layout, in *Instr) error {
	args, targets := len(in.Args), len(in.Targets)
	exact := func(wantArgs, wantTargets int) error {
		if args != wantArgs {
			return fmt.Errorf("%d operands, want %d", args, wantArgs)
		}
		if targets != wantTargets {
			return fmt.Errorf("%d branch targets, want %d", targets, wantTargets)
		}
		return nil
	}
	typed := func(scalar bool) error {
		if in.Type == nil {
			return fmt.Errorf("missing type")
		}
		if scalar && !in.Type.Kind.IsScalar() {
			return fmt.Errorf("type %s is not scalar", in.Type)
		}
		if !l.Fits(in.Type) {
			return fmt.Errorf("type %s is larger than the address space", in.Type)
		}
		return nil
	}

	switch {
	case in.Op.IsBinary():
		return firstErr(exact(2, 0), typed(true))
	case in.Op.IsCast():
		return firstErr(exact(1, 0), typed(true))
	}

	switch in.Op {
	case OpMove:
		return exact(1, 0)
	case OpAlloca:
		return firstErr(exact(0, 0), typed(false))
	case OpNew, OpLoad:
		return firstErr(exact(1, 0), typed(false))
	case OpStore:
		return firstErr(exact(2, 0), typed(false))
	case OpICmp, OpFCmp:
		return firstErr(exact(2, 0), typed(true))
	case OpGEP:
		if args < 1 || targets != 0 {
			return fmt.Errorf("needs a base operand and no branch targets")
		}
		return typed(false)
	case OpPtrAdd:
		return exact(2, 0)
	case OpSelect:
		return exact(3, 0)
	case OpCall:
		if in.Callee == nil {
			return fmt.Errorf("call without callee")
		}
		if in.Callee.Sig == nil || in.Callee.Sig.Kind != KindFunc {
			return fmt.Errorf("callee @%s has no signature", in.Callee.Name)
		}
		return exact(len(in.Callee.Sig.Params), 0)
	case OpCallIndirect:
		if in.Type == nil || in.Type.Kind != KindFunc {
			return fmt.Errorf("missing callee signature")
		}
		return exact(len(in.Type.Params)+1, 0)
	case OpBr:
		return exact(0, 1)
	case OpBrIf:
		return exact(1, 2)
	case OpRet:
		if args > 1 || targets != 0 {
			return fmt.Errorf("%d operands, want at most 1", args)
		}
		return nil
	case OpUnreachable:
		return exact(0, 0)
	}
	return fmt.Errorf("unknown opcode")
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Program) validateConstructors() error {
	for _, c := range p.Ctors {
		if c.Func == nil || p.Func(c.Func.Name) != c.Func {
			return fmt.Errorf("constructor is not a function of this program")
		}
	}
	return nil
}
