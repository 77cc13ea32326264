package verify

import (
	"context"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/ctoreval/emit"
	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/ir"
	"github.com/wippyai/ctoreval/reconstruct"
	"github.com/wippyai/ctoreval/vmem"
)

// Mismatch is a global whose image contents disagree with its initializer.
type Mismatch struct {
	Global *ir.Global
	Want   ir.Constant
	Got    ir.Constant
	Err    error
}

// Result lists the outcome of checking one program image.
type Result struct {
	Mismatches []Mismatch
	Checked    int
	Bytes      int
}

// Err returns a mismatch error naming every disagreeing global, or nil.
func (r *Result) Err() error {
	if len(r.Mismatches) == 0 {
		return nil
	}
	names := make([]string, len(r.Mismatches))
	for i, m := range r.Mismatches {
		names[i] = "@" + m.Global.Name
	}
	return errors.New(errors.PhaseVerify, errors.KindMismatch).
		Symbol(names[0]).
		Cause(r.Mismatches[0].Err).
		Detail("%d of %d globals differ: %s", len(r.Mismatches), r.Checked, strings.Join(names, ", ")).
		Build()
}

type wasmMemory struct {
	mem api.Memory
}

func (m wasmMemory) Read(addr vmem.Addr, n uint32) ([]byte, error) {
	data, ok := m.mem.Read(uint32(addr), n)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseVerify, uint64(addr), n)
	}
	out := make([]byte, n)
	copy(out, data)
	return out, nil
}

// Program emits prog as a wasm image, instantiates it with wazero and
// reads every defined global back from linear memory. A global reading
// back different from its initializer is a mismatch; the returned error
// covers only failures to build or run the image.
func Program(ctx context.Context, prog *ir.Program) (*Result, error) {
	im, err := emit.Build(prog)
	if err != nil {
		return nil, err
	}
	bin := im.Encode()

	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	defer r.Close(ctx)

	mod, err := r.InstantiateWithConfig(ctx, bin, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseVerify, errors.KindInvalidData, err, "instantiate image")
	}
	mem := mod.ExportedMemory(emit.MemoryExport)
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseVerify, "memory export", emit.MemoryExport)
	}

	res := &Result{Bytes: len(bin)}
	rec := reconstruct.New(im.Layout(), wasmMemory{mem}, im, reconstruct.Options{})
	for _, g := range im.Globals() {
		if err := ctx.Err(); err != nil {
			return res, errors.Canceled(errors.PhaseVerify, err)
		}
		res.Checked++

		want, _ := im.GlobalAddr(g)
		exp := mod.ExportedGlobal(g.Name)
		if exp == nil || exp.Get() != want {
			res.Mismatches = append(res.Mismatches, Mismatch{
				Global: g,
				Want:   g.Init,
				Err:    errors.NotFound(errors.PhaseVerify, "address export", g.Name),
			})
			continue
		}

		got, err := rec.Reconstruct(g.Name, g.Type, vmem.Addr(want))
		if err == nil && !ir.Equal(g.Init, got) {
			err = errors.New(errors.PhaseVerify, errors.KindMismatch).
				Symbol(g.Name).
				Detail("image holds %s, initializer is %s", got, g.Init).
				Build()
		}
		if err != nil {
			Logger().Debug("global differs", zap.String("global", g.Name), zap.Error(err))
			res.Mismatches = append(res.Mismatches, Mismatch{Global: g, Want: g.Init, Got: got, Err: err})
		}
	}

	Logger().Debug("image verified",
		zap.String("program", prog.Name),
		zap.Int("checked", res.Checked),
		zap.Int("mismatches", len(res.Mismatches)))
	return res, nil
}
