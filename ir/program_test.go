package ir

import (
	"strings"
	"testing"
)

func TestProgram_Constructors(t *testing.T) {
	p := NewProgram("ctors")
	fns := make([]*Function, 4)
	for i, name := range []string{"a", "b", "c", "d"} {
		fns[i] = Declare(name, Func(Void))
		if err := p.AddFunc(fns[i]); err != nil {
			t.Fatal(err)
		}
	}
	p.AddConstructor(fns[0], DefaultPriority)
	p.AddConstructor(fns[1], 101)
	p.AddConstructor(fns[2], DefaultPriority)
	p.AddConstructor(fns[3], 101)

	var got []string
	for _, c := range p.Constructors() {
		got = append(got, c.Func.Name)
	}
	if strings.Join(got, ",") != "b,d,a,c" {
		t.Errorf("order = %v, want [b d a c]", got)
	}

	if p.RemoveConstructor(Constructor{Func: fns[1], Priority: DefaultPriority}) {
		t.Error("removed b at a priority it was never registered with")
	}
	if !p.RemoveConstructor(Constructor{Func: fns[1], Priority: 101}) {
		t.Fatal("RemoveConstructor = false")
	}
	if p.RemoveConstructor(Constructor{Func: fns[1], Priority: 101}) {
		t.Error("constructor removed twice")
	}
	if len(p.Ctors) != 3 || p.Func("b") == nil {
		t.Errorf("ctors %d, func b kept = %v", len(p.Ctors), p.Func("b") != nil)
	}
}

func TestProgram_RemoveConstructorByPriority(t *testing.T) {
	p := NewProgram("twice")
	fn := Declare("init", Func(Void))
	if err := p.AddFunc(fn); err != nil {
		t.Fatal(err)
	}
	p.AddConstructor(fn, 300)
	p.AddConstructor(fn, 100)

	if !p.RemoveConstructor(Constructor{Func: fn, Priority: 100}) {
		t.Fatal("RemoveConstructor = false")
	}
	if len(p.Ctors) != 1 || p.Ctors[0].Priority != 300 {
		t.Errorf("ctors = %+v, want the priority 300 registration left", p.Ctors)
	}
}

func TestProgram_Symbols(t *testing.T) {
	p := NewProgram("syms")
	g := &Global{Name: "x", Type: I32, Init: NewInt(I32, 0)}
	if err := p.AddGlobal(g); err != nil {
		t.Fatal(err)
	}
	if err := p.AddFunc(Declare("x", Func(Void))); err == nil {
		t.Error("function shadowing a global accepted")
	}
	if err := p.AddGlobal(&Global{Name: "x.1", Type: I8}); err != nil {
		t.Fatal(err)
	}

	if got := p.UniqueName("x"); got != "x.2" {
		t.Errorf("UniqueName = %q, want x.2", got)
	}
	if got := p.UniqueName("y"); got != "y" {
		t.Errorf("UniqueName = %q, want y", got)
	}
	if p.Global("x") != g || p.Func("x") != nil {
		t.Error("lookup by kind failed")
	}
	if p.GlobalIndex(g) != 0 {
		t.Errorf("GlobalIndex = %d", p.GlobalIndex(g))
	}

	if err := p.AddType(NamedStruct("Node", I32)); err != nil {
		t.Fatal(err)
	}
	if err := p.AddType(NamedStruct("Node", I64)); err == nil {
		t.Error("duplicate type accepted")
	}
	if err := p.AddType(Struct(I32)); err == nil {
		t.Error("anonymous type registered")
	}
}

func buildCounter() *Function {
	b := NewFunctionBuilder("count", Func(I32, I32))
	n := b.Param(0, "n")
	i := b.Local("i", I32)
	c := b.Local("c", I1)

	entry := b.Block("entry")
	loop := b.Block("loop")
	done := b.Block("done")

	b.SetBlock(entry)
	b.Move(i, C(NewInt(I32, 0)))
	b.Br(loop)

	b.SetBlock(loop)
	b.Bin(OpAdd, i, I32, i, C(NewInt(I32, 1)))
	b.ICmp(c, PredSLT, I32, i, n)
	b.BrIf(c, loop, done)

	b.SetBlock(done)
	b.Ret(i)
	return b.Function()
}

func TestFunctionBuilder(t *testing.T) {
	fn := buildCounter()

	if fn.NumParams() != 1 || len(fn.Locals) != 3 {
		t.Fatalf("params %d locals %d", fn.NumParams(), len(fn.Locals))
	}
	if fn.Block("loop") == nil || fn.Block("missing") != nil {
		t.Error("Block lookup failed")
	}

	loop := fn.Block("loop")
	tests := []struct {
		in   *Instr
		want string
	}{
		{loop.Instrs[0], "(set %i (add i32 %i (i32 1)))"},
		{loop.Instrs[1], "(set %c (icmp slt i32 %i %n))"},
		{loop.Instrs[2], "(br_if %c loop done)"},
		{fn.Block("done").Instrs[0], "(ret %i)"},
	}
	for _, tt := range tests {
		if got := tt.in.Format(fn); got != tt.want {
			t.Errorf("Format = %q, want %q", got, tt.want)
		}
	}
}

func TestProgram_Validate(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *Program)
		err   string
	}{
		{
			name:  "valid",
			setup: func(p *Program) {},
		},
		{
			name: "initializer type",
			setup: func(p *Program) {
				p.Globals[0].Init = NewInt(I64, 1)
			},
			err: "initializer type",
		},
		{
			name: "unterminated block",
			setup: func(p *Program) {
				blk := p.Funcs[0].Block("done")
				blk.Instrs = blk.Instrs[:0]
			},
			err: "not terminated",
		},
		{
			name: "undefined local",
			setup: func(p *Program) {
				p.Funcs[0].Block("done").Instrs[0].Args[0] = L(9)
			},
			err: "undefined local",
		},
		{
			name: "foreign branch",
			setup: func(p *Program) {
				p.Funcs[0].Block("entry").Instrs[1].Targets[0] = &Block{Label: "elsewhere"}
			},
			err: "foreign block",
		},
		{
			name: "store with one operand",
			setup: func(p *Program) {
				p.Funcs[0].Block("entry").Instrs[0] = &Instr{Op: OpStore, Type: I32, Dst: -1, Args: []Operand{C(NewInt(I32, 1))}}
			},
			err: "1 operands, want 2",
		},
		{
			name: "select with one operand",
			setup: func(p *Program) {
				p.Funcs[0].Block("entry").Instrs[0] = &Instr{Op: OpSelect, Type: I32, Dst: 1, Args: []Operand{L(2)}}
			},
			err: "1 operands, want 3",
		},
		{
			name: "load without type",
			setup: func(p *Program) {
				p.Funcs[0].Block("entry").Instrs[0] = &Instr{Op: OpLoad, Dst: 1, Args: []Operand{C(Null())}}
			},
			err: "missing type",
		},
		{
			name: "binary without type",
			setup: func(p *Program) {
				p.Funcs[0].Block("loop").Instrs[0].Type = nil
			},
			err: "missing type",
		},
		{
			name: "binary on aggregate",
			setup: func(p *Program) {
				p.Funcs[0].Block("loop").Instrs[0].Type = Array(I32, 2)
			},
			err: "not scalar",
		},
		{
			name: "br without target",
			setup: func(p *Program) {
				p.Funcs[0].Block("entry").Instrs[1].Targets = nil
			},
			err: "0 branch targets, want 1",
		},
		{
			name: "br_if with one target",
			setup: func(p *Program) {
				in := p.Funcs[0].Block("loop").Instrs[2]
				in.Targets = in.Targets[:1]
			},
			err: "1 branch targets, want 2",
		},
		{
			name: "call arity",
			setup: func(p *Program) {
				puts := Declare("puts", Func(I32, Ptr))
				if err := p.AddFunc(puts); err != nil {
					panic(err)
				}
				p.Funcs[0].Block("entry").Instrs[0] = &Instr{Op: OpCall, Callee: puts, Type: I32, Dst: -1}
			},
			err: "0 operands, want 1",
		},
		{
			name: "indirect call arity",
			setup: func(p *Program) {
				p.Funcs[0].Block("entry").Instrs[0] = &Instr{Op: OpCallIndirect, Type: Func(Void, I32), Dst: -1, Args: []Operand{C(Null())}}
			},
			err: "1 operands, want 2",
		},
		{
			name: "ret with two operands",
			setup: func(p *Program) {
				in := p.Funcs[0].Block("done").Instrs[0]
				in.Args = append(in.Args, L(1))
			},
			err: "at most 1",
		},
		{
			name: "untyped local",
			setup: func(p *Program) {
				p.Funcs[0].Locals[2].Type = nil
			},
			err: "local 2 has no type",
		},
		{
			name: "oversized global",
			setup: func(p *Program) {
				p.Globals[0].Type = Array(I32, 0x40000001)
				p.Globals[0].Init = nil
			},
			err: "larger than the address space",
		},
		{
			name: "oversized alloca",
			setup: func(p *Program) {
				huge := Array(Array(I64, 1<<20), 1<<12)
				p.Funcs[0].Block("entry").Instrs[0] = &Instr{Op: OpAlloca, Type: huge, Dst: 1}
			},
			err: "larger than the address space",
		},
		{
			name: "foreign constructor",
			setup: func(p *Program) {
				p.AddConstructor(Declare("stray", Func(Void)), DefaultPriority)
			},
			err: "constructor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgram("v")
			if err := p.AddGlobal(&Global{Name: "g", Type: I32, Init: NewInt(I32, 1)}); err != nil {
				t.Fatal(err)
			}
			if err := p.AddFunc(buildCounter()); err != nil {
				t.Fatal(err)
			}
			tt.setup(p)

			err := p.Validate()
			if tt.err == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.err) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.err)
			}
		})
	}
}
