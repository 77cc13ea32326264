package vmem

import (
	"testing"

	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/ir"
)

func heap(id uint32) Origin { return Origin{Kind: OriginHeap, ID: id} }

func TestMapper_MapAndResolve(t *testing.T) {
	m := NewMapper()
	g := &ir.Global{Name: "arr", Type: ir.Array(ir.I32, 3)}

	if err := m.Map(0x1000, 12, Origin{Kind: OriginGlobal, Global: g}); err != nil {
		t.Fatalf("Map global: %v", err)
	}
	if err := m.Map(0x2000, 8, heap(1)); err != nil {
		t.Fatalf("Map heap: %v", err)
	}

	tests := []struct {
		name   string
		addr   Addr
		kind   OriginKind
		offset uint32
		ok     bool
	}{
		{"global base", 0x1000, OriginGlobal, 0, true},
		{"global interior", 0x1008, OriginGlobal, 8, true},
		{"global last byte", 0x100b, OriginGlobal, 11, true},
		{"one past global", 0x100c, 0, 0, false},
		{"before everything", 0x0fff, 0, 0, false},
		{"null", 0, 0, 0, false},
		{"heap base", 0x2000, OriginHeap, 0, true},
		{"one past heap", 0x2008, 0, 0, false},
		{"gap", 0x1800, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origin, off, ok := m.Resolve(tt.addr)
			if ok != tt.ok {
				t.Fatalf("Resolve(%s) ok = %v, want %v", tt.addr, ok, tt.ok)
			}
			if !ok {
				return
			}
			if origin.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", origin.Kind, tt.kind)
			}
			if off != tt.offset {
				t.Errorf("offset = %d, want %d", off, tt.offset)
			}
		})
	}
}

func TestMapper_Overlap(t *testing.T) {
	m := NewMapper()
	if err := m.Map(0x100, 0x10, heap(1)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		addr Addr
		size uint32
		ok   bool
	}{
		{"same base", 0x100, 4, false},
		{"starts inside", 0x10f, 4, false},
		{"covers", 0xf0, 0x40, false},
		{"ends inside", 0xf8, 0x9, false},
		{"adjacent after", 0x110, 4, true},
		{"adjacent before", 0xf0, 0x10, true},
		{"empty", 0x400, 0, false},
		{"past address space", 0xffff_fff0, 0x20, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Map(tt.addr, tt.size, heap(2))
			if tt.ok {
				if err != nil {
					t.Fatalf("Map: %v", err)
				}
				if err := m.Unmap(tt.addr); err != nil {
					t.Fatalf("Unmap: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected overlap fault")
			}
			if errors.KindOf(err) != errors.KindSandboxFault {
				t.Errorf("kind = %v, want sandbox_fault", errors.KindOf(err))
			}
		})
	}

	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestMapper_Unmap(t *testing.T) {
	m := NewMapper()
	for i, base := range []Addr{0x300, 0x100, 0x200} {
		if err := m.Map(base, 0x10, heap(uint32(i))); err != nil {
			t.Fatal(err)
		}
	}

	entries := m.Entries()
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Base >= entries[i].Base {
			t.Fatalf("entries not sorted: %v", entries)
		}
	}

	if err := m.Unmap(0x204); err == nil {
		t.Error("unmap of interior address should fault")
	}
	if err := m.Unmap(0x200); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if err := m.Unmap(0x200); errors.KindOf(err) != errors.KindSandboxFault {
		t.Errorf("second Unmap = %v, want sandbox fault", err)
	}
	if _, _, ok := m.Resolve(0x204); ok {
		t.Error("released range still resolves")
	}
	if _, _, ok := m.Resolve(0x104); !ok {
		t.Error("unrelated range no longer resolves")
	}

	m.Reset()
	if m.Len() != 0 {
		t.Errorf("Len after Reset = %d", m.Len())
	}
}
