package reconstruct

import (
	"testing"

	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/ir"
	"github.com/wippyai/ctoreval/sandbox"
	"github.com/wippyai/ctoreval/vmem"
)

type env struct {
	t    *testing.T
	prog *ir.Program
	sb   *sandbox.Sandbox
}

func newEnv(t *testing.T, globals ...*ir.Global) *env {
	t.Helper()
	p := ir.NewProgram("rc")
	for _, g := range globals {
		if err := p.AddGlobal(g); err != nil {
			t.Fatal(err)
		}
	}
	sb := sandbox.New(p.Layout(), sandbox.Config{})
	if err := sb.MapProgram(p); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sb.Teardown)
	return &env{t: t, prog: p, sb: sb}
}

func (e *env) addr(g *ir.Global) vmem.Addr {
	a, ok := e.sb.GlobalAddr(g)
	if !ok {
		e.t.Fatalf("@%s not mapped", g.Name)
	}
	return a
}

func (e *env) put(addr vmem.Addr, size uint32, v uint64) {
	buf := make([]byte, size)
	ir.PutUint(buf, size, v)
	if err := e.sb.Write(addr, buf); err != nil {
		e.t.Fatal(err)
	}
}

func (e *env) reconstructor() *Reconstructor {
	return New(e.sb.Layout(), e.sb, e.sb, Options{Heap: e.sb, Taken: e.prog.HasSymbol})
}

func TestReconstruct_Scalars(t *testing.T) {
	rec := ir.Struct(ir.I8, ir.I32, ir.F64, ir.Array(ir.I16, 2))
	g := &ir.Global{Name: "g", Type: rec, Init: &ir.ZeroConst{Typ: rec}}
	e := newEnv(t, g)
	base := e.addr(g)
	e.put(base, 1, 0xfe)
	e.put(base+4, 4, 123456)
	e.put(base+8, 8, 0x3ff8000000000000)
	e.put(base+16, 2, 1)
	e.put(base+18, 2, 0xffff)

	got, err := e.reconstructor().Reconstruct("g", rec, base)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	want := &ir.AggregateConst{Typ: rec, Elems: []ir.Constant{
		ir.NewInt(ir.I8, -2),
		ir.NewInt(ir.I32, 123456),
		ir.NewFloat(ir.F64, 1.5),
		&ir.AggregateConst{Typ: ir.Array(ir.I16, 2), Elems: []ir.Constant{ir.NewInt(ir.I16, 1), ir.NewInt(ir.I16, -1)}},
	}}
	if !ir.Equal(got, want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestReconstruct_Pointers(t *testing.T) {
	target := &ir.Global{Name: "target", Type: ir.Array(ir.I32, 4), Init: &ir.ZeroConst{Typ: ir.Array(ir.I32, 4)}}
	slots := &ir.Global{Name: "slots", Type: ir.Array(ir.Ptr, 3), Init: &ir.ZeroConst{Typ: ir.Array(ir.Ptr, 3)}}
	e := newEnv(t, target, slots)
	fn := ir.Declare("handler", ir.Func(ir.Void))
	if err := e.prog.AddFunc(fn); err != nil {
		t.Fatal(err)
	}
	// remap so the new function has an address
	e.sb.Teardown()
	e.sb = sandbox.New(e.prog.Layout(), sandbox.Config{})
	if err := e.sb.MapProgram(e.prog); err != nil {
		t.Fatal(err)
	}
	fnAddr, _ := e.sb.FuncAddr(fn)

	base := e.addr(slots)
	e.put(base, 4, uint64(e.addr(target)+8))
	e.put(base+8, 4, uint64(fnAddr))

	got, err := e.reconstructor().Reconstruct("slots", slots.Type, base)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	agg := got.(*ir.AggregateConst)
	if ref, ok := agg.Elems[0].(*ir.GlobalRef); !ok || ref.Global != target || ref.Offset != 8 {
		t.Errorf("slot 0 = %s, want (ref @target 8)", agg.Elems[0])
	}
	if _, ok := agg.Elems[1].(*ir.NullConst); !ok {
		t.Errorf("slot 1 = %s, want null", agg.Elems[1])
	}
	if ref, ok := agg.Elems[2].(*ir.FuncRef); !ok || ref.Func != fn {
		t.Errorf("slot 2 = %s, want @handler", agg.Elems[2])
	}
}

func TestReconstruct_Unresolved(t *testing.T) {
	arr := &ir.Global{Name: "arr", Type: ir.Array(ir.I32, 2), Init: &ir.ZeroConst{Typ: ir.Array(ir.I32, 2)}}
	p := &ir.Global{Name: "p", Type: ir.Struct(ir.I32, ir.Ptr), Init: &ir.ZeroConst{Typ: ir.Struct(ir.I32, ir.Ptr)}}

	tests := []struct {
		name  string
		value func(e *env) uint64
		opts  func(e *env) Options
	}{
		{"wild", func(e *env) uint64 { return 0xdead0000 }, nil},
		{"one past end", func(e *env) uint64 { return uint64(e.addr(arr) + 8) }, nil},
		{"untyped heap", func(e *env) uint64 {
			a, _ := e.sb.Allocate(8)
			return uint64(a)
		}, nil},
		{"heap without records", func(e *env) uint64 {
			a, _ := e.sb.Allocate(4)
			_ = e.sb.RecordTypedAllocation(a, ir.I32, 1)
			return uint64(a)
		}, func(e *env) Options { return Options{} }},
		{"stack", func(e *env) uint64 {
			a, _ := e.sb.AllocateStack(4)
			return uint64(a)
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, arr, p)
			e.put(e.addr(p)+4, 4, tt.value(e))
			r := e.reconstructor()
			if tt.opts != nil {
				r = New(e.sb.Layout(), e.sb, e.sb, tt.opts(e))
			}

			_, err := r.Reconstruct("p", p.Type, e.addr(p))
			if errors.KindOf(err) != errors.KindUnresolvedPointer {
				t.Fatalf("err = %v, want unresolved pointer", err)
			}
			var rerr *errors.Error
			if !errors.As(err, &rerr) || len(rerr.Path) != 2 || rerr.Path[0] != "p" || rerr.Path[1] != "1" {
				t.Errorf("path = %v, want [p 1]", rerr.Path)
			}
		})
	}
}

func TestReconstruct_HeapCycle(t *testing.T) {
	node := ir.NamedStruct("Node", ir.I32, ir.Ptr)
	head := &ir.Global{Name: "head", Type: ir.Ptr, Init: ir.Null()}
	alias := &ir.Global{Name: "alias", Type: ir.Ptr, Init: ir.Null()}
	taken := &ir.Global{Name: "head.heap.1", Type: ir.I8, Init: ir.NewInt(ir.I8, 0)}
	e := newEnv(t, head, alias, taken)

	a, _ := e.sb.Allocate(8)
	b, _ := e.sb.Allocate(8)
	for _, blk := range []vmem.Addr{a, b} {
		if err := e.sb.RecordTypedAllocation(blk, node, 1); err != nil {
			t.Fatal(err)
		}
	}
	e.put(a, 4, 1)
	e.put(a+4, 4, uint64(b))
	e.put(b, 4, 2)
	e.put(b+4, 4, uint64(a))
	e.put(e.addr(head), 4, uint64(a))
	e.put(e.addr(alias), 4, uint64(b+4))

	r := e.reconstructor()
	hc, err := r.Reconstruct("head", ir.Ptr, e.addr(head))
	if err != nil {
		t.Fatalf("Reconstruct head: %v", err)
	}
	ac, err := r.Reconstruct("alias", ir.Ptr, e.addr(alias))
	if err != nil {
		t.Fatalf("Reconstruct alias: %v", err)
	}

	synth := r.Synthesized()
	if len(synth) != 2 {
		t.Fatalf("synthesized %d globals, want 2", len(synth))
	}
	ga, gb := synth[0], synth[1]
	if ga.Name != "head.heap.2" || gb.Name != "head.heap.3" {
		t.Errorf("names = %s %s", ga.Name, gb.Name)
	}
	if !ga.Synthetic || ga.Linkage != ir.LinkageInternal || !ga.Type.Equal(node) {
		t.Errorf("synthesized global %+v", ga)
	}

	if !ir.Equal(hc, &ir.GlobalRef{Global: ga}) {
		t.Errorf("head = %s", hc)
	}
	if !ir.Equal(ac, &ir.GlobalRef{Global: gb, Offset: 4}) {
		t.Errorf("alias = %s, want shared global with offset", ac)
	}

	wantA := &ir.AggregateConst{Typ: node, Elems: []ir.Constant{ir.NewInt(ir.I32, 1), &ir.GlobalRef{Global: gb}}}
	wantB := &ir.AggregateConst{Typ: node, Elems: []ir.Constant{ir.NewInt(ir.I32, 2), &ir.GlobalRef{Global: ga}}}
	if !ir.Equal(ga.Init, wantA) || !ir.Equal(gb.Init, wantB) {
		t.Errorf("inits = %s / %s", ga.Init, gb.Init)
	}
}

func TestReconstruct_CollapseZero(t *testing.T) {
	arr := &ir.Global{Name: "arr", Type: ir.Array(ir.I32, 4), Init: &ir.ZeroConst{Typ: ir.Array(ir.I32, 4)}}
	e := newEnv(t, arr)
	r := New(e.sb.Layout(), e.sb, e.sb, Options{CollapseZero: true})

	got, err := r.Reconstruct("arr", arr.Type, e.addr(arr))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.(*ir.ZeroConst); !ok {
		t.Errorf("got %s, want zero", got)
	}
}
