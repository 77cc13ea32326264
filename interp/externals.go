package interp

import (
	"strings"

	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/vmem"
)

// external is a library function the interpreter models instead of
// calling out of the sandbox.
type external struct {
	run    func(e *Engine, args []Value) (Value, error)
	params int
}

var externals = map[string]external{
	"malloc":  {params: 1, run: (*Engine).extMalloc},
	"calloc":  {params: 2, run: (*Engine).extCalloc},
	"realloc": {params: 2, run: (*Engine).extRealloc},
	"free":    {params: 1, run: (*Engine).extFree},
	"memset":  {params: 3, run: (*Engine).extMemset},
	"memcpy":  {params: 3, run: (*Engine).extMemcpy},
	"memmove": {params: 3, run: (*Engine).extMemcpy},
}

// lookupExternal finds the model for name. Overloaded intrinsic names
// such as llvm.memcpy.p0.p0.i32 map onto the libc function.
func lookupExternal(name string) (external, bool) {
	if ext, ok := externals[name]; ok {
		return ext, true
	}
	if rest, ok := strings.CutPrefix(name, "llvm."); ok {
		base, _, _ := strings.Cut(rest, ".")
		switch base {
		case "memset", "memcpy", "memmove":
			return externals[base], true
		}
	}
	return external{}, false
}

// IsModeled reports whether calls to the external function name are
// interpreted rather than rejected.
func IsModeled(name string) bool {
	_, ok := lookupExternal(name)
	return ok
}

func size32(v Value, what string) (uint32, error) {
	if v > 1<<32-1 {
		return 0, errors.AllocationFailed(uint64(v), what+" exceeds the address space")
	}
	return uint32(v), nil
}

func (e *Engine) extMalloc(args []Value) (Value, error) {
	n, err := size32(args[0], "malloc size")
	if err != nil {
		return 0, err
	}
	addr, err := e.mem.Allocate(n)
	return Value(addr), err
}

func (e *Engine) extCalloc(args []Value) (Value, error) {
	total := uint64(args[0]) * uint64(args[1])
	if args[1] != 0 && total/uint64(args[1]) != uint64(args[0]) {
		return 0, errors.AllocationFailed(total, "calloc size overflows")
	}
	n, err := size32(Value(total), "calloc size")
	if err != nil {
		return 0, err
	}
	addr, err := e.mem.Allocate(n)
	return Value(addr), err
}

// extRealloc moves the block to a fresh address; the sandbox never grows
// blocks in place. A typed record follows the data, shrunk to the elements
// that still fit.
func (e *Engine) extRealloc(args []Value) (Value, error) {
	old := vmem.Addr(args[0])
	if old == 0 {
		return e.extMalloc(args[1:])
	}
	oldSize, ok := e.mem.BlockSize(old)
	if !ok {
		return 0, errors.SandboxFault("realloc of %s which starts no live block", old)
	}
	n, err := size32(args[1], "realloc size")
	if err != nil {
		return 0, err
	}

	addr, err := e.mem.Allocate(n)
	if err != nil {
		return 0, err
	}
	data, err := e.mem.Read(old, min(oldSize, n))
	if err != nil {
		return 0, err
	}
	if len(data) > 0 {
		if err := e.mem.Write(addr, data); err != nil {
			return 0, err
		}
	}

	if rec, ok := e.mem.TypedAllocation(old); ok {
		if elem := e.layout.Size(rec.Elem); elem > 0 {
			if err := e.mem.RecordTypedAllocation(addr, rec.Elem, n/elem); err != nil {
				return 0, err
			}
		}
	}
	if err := e.mem.Release(old); err != nil {
		return 0, err
	}
	return Value(addr), nil
}

func (e *Engine) extFree(args []Value) (Value, error) {
	if args[0] == 0 {
		return 0, nil
	}
	return 0, e.mem.Release(vmem.Addr(args[0]))
}

func (e *Engine) extMemset(args []Value) (Value, error) {
	dst := vmem.Addr(args[0])
	n, err := size32(args[2], "memset length")
	if err != nil || n == 0 {
		return args[0], err
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(args[1])
	}
	if err := e.mem.Write(dst, buf); err != nil {
		return 0, err
	}
	e.stored(dst)
	return args[0], nil
}

// extMemcpy also serves memmove: the source is read in full before the
// destination is written.
func (e *Engine) extMemcpy(args []Value) (Value, error) {
	dst, src := vmem.Addr(args[0]), vmem.Addr(args[1])
	n, err := size32(args[2], "memcpy length")
	if err != nil || n == 0 {
		return args[0], err
	}
	data, err := e.mem.Read(src, n)
	if err != nil {
		return 0, err
	}
	if err := e.mem.Write(dst, data); err != nil {
		return 0, err
	}
	e.stored(dst)
	return args[0], nil
}
