package preexec

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/interp"
	"github.com/wippyai/ctoreval/ir"
	"github.com/wippyai/ctoreval/reconstruct"
	"github.com/wippyai/ctoreval/sandbox"
)

// Driver folds a program's constructors into global initializers.
// A Driver holds no per-program state and may be reused; a single call to
// PreExecuteAll must not run concurrently with other users of the program.
type Driver struct {
	log    *zap.Logger
	ignore ignoreSet
	cfg    Config
}

// New creates a driver from cfg.
func New(cfg Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ignore, err := compilePatterns(cfg.IgnoreCalls)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	return &Driver{log: log, ignore: ignore, cfg: cfg}, nil
}

// PreExecuteAll runs every constructor of prog in priority order. A
// constructor that completes and whose writes can all be rebuilt as
// constants is folded: the written globals get new initializers, heap
// blocks they reach become new internal globals and the constructor is
// removed from the list. Any other constructor is deferred and the program
// is left exactly as it was before it ran.
//
// The only errors returned are an invalid program and cancellation of ctx;
// in the latter case the report covers the constructors handled so far.
func PreExecuteAll(ctx context.Context, prog *ir.Program, cfg Config) (*Report, error) {
	d, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return d.PreExecuteAll(ctx, prog)
}

// PreExecuteAll is the package-level PreExecuteAll with this driver's
// configuration.
func (d *Driver) PreExecuteAll(ctx context.Context, prog *ir.Program) (*Report, error) {
	if err := prog.Validate(); err != nil {
		return nil, errors.Wrap(errors.PhaseCommit, errors.KindInvalidInput, err, "invalid program")
	}

	report := &Report{Program: prog.Name}
	stopped := false
	for _, ctor := range prog.Constructors() {
		if err := ctx.Err(); err != nil {
			return report, errors.Canceled(errors.PhaseInterpret, err)
		}

		var diag Diagnostic
		if stopped {
			diag = Diagnostic{Outcome: Deferred, Reason: ReasonSkipped}
		} else {
			diag = d.preExecute(ctx, prog, ctor)
		}
		diag.Constructor = ctor.Func.Name
		diag.Priority = ctor.Priority
		report.Diagnostics = append(report.Diagnostics, diag)

		d.logDiagnostic(diag)
		if diag.Reason == ReasonCanceled {
			return report, errors.Canceled(errors.PhaseInterpret, diag.Err)
		}
		if diag.Outcome == Deferred && d.cfg.StopOnDefer {
			stopped = true
		}
	}

	d.log.Info("pre-execution finished",
		zap.String("program", prog.Name),
		zap.Int("folded", report.Folded()),
		zap.Int("deferred", report.Deferred()))
	return report, nil
}

func (d *Driver) logDiagnostic(diag Diagnostic) {
	if diag.Outcome == Folded {
		d.log.Info("constructor folded",
			zap.String("ctor", diag.Constructor),
			zap.Strings("modified", diag.Modified),
			zap.Strings("synthesized", diag.Synthesized),
			zap.Int64("steps", diag.Steps))
		return
	}
	d.log.Info("constructor deferred",
		zap.String("ctor", diag.Constructor),
		zap.Stringer("reason", diag.Reason),
		zap.Error(diag.Err))
}

// eligible reports whether fn can run without a caller supplying anything.
func eligible(fn *ir.Function) error {
	if fn.IsDeclaration() {
		return errors.ExternalCall("@" + fn.Name)
	}
	if fn.NumParams() > 0 {
		return errors.Unsupported(errors.PhaseInterpret, "constructor @"+fn.Name+" takes parameters")
	}
	return nil
}

// preExecute attempts to fold a single constructor. The sandbox is torn
// down on every path; prog is only mutated in the committing state.
func (d *Driver) preExecute(ctx context.Context, prog *ir.Program, ctor ir.Constructor) Diagnostic {
	fn := ctor.Func
	m := &machine{log: d.log.With(zap.String("ctor", fn.Name))}
	diag := Diagnostic{Outcome: Deferred}

	discard := func(reason Reason, err error) Diagnostic {
		if terr := m.to(StateDiscarding); terr != nil {
			d.log.Error("driver state", zap.Error(terr))
		}
		_ = m.to(StateIdle)
		diag.Reason = reason
		diag.Err = err
		return diag
	}

	if err := eligible(fn); err != nil {
		return discard(ReasonIneligible, err)
	}

	sb := sandbox.New(prog.Layout(), sandbox.Config{MaxMemoryBytes: d.cfg.MaxMemoryBytes})
	defer sb.Teardown()
	if err := sb.MapProgram(prog); err != nil {
		return discard(reasonFor(err), err)
	}
	if err := m.to(StateSandboxReady); err != nil {
		return discard(ReasonSandboxFault, err)
	}

	stores := sandbox.NewStoreInterceptor(sb)
	engine := interp.New(sb, interp.Hooks{OnStore: stores.OnStore}, interp.Config{
		Ignore:       d.ignore.Match,
		MaxSteps:     d.cfg.MaxSteps,
		MaxCallDepth: d.cfg.MaxCallDepth,
	})

	if err := m.to(StateRunning); err != nil {
		return discard(ReasonSandboxFault, err)
	}
	_, err := engine.Execute(ctx, fn)
	diag.Steps = engine.Steps()
	diag.Stores = stores.Stores()
	diag.PeakBytes = sb.Stats().PeakBytes
	if err != nil {
		return discard(reasonFor(err), err)
	}

	if err := m.to(StateCollecting); err != nil {
		return discard(ReasonSandboxFault, err)
	}
	modified := stores.Modified()
	diag.Modified = ir.GlobalNames(modified)

	rec := reconstruct.New(sb.Layout(), sb, sb, reconstruct.Options{
		Heap:         sb,
		Taken:        prog.HasSymbol,
		CollapseZero: d.cfg.CollapseZero,
	})
	inits := make([]ir.Constant, len(modified))
	for i, g := range modified {
		addr, ok := sb.GlobalAddr(g)
		if !ok {
			err := errors.NotFound(errors.PhaseReconstruct, "sandbox address of global", g.Name)
			return discard(ReasonSandboxFault, err)
		}
		c, err := rec.Reconstruct(g.Name, g.Type, addr)
		if err != nil {
			return discard(reasonFor(err), err)
		}
		inits[i] = c
	}
	synth := rec.Synthesized()
	diag.Synthesized = ir.GlobalNames(synth)

	if err := m.to(StateCommitting); err != nil {
		return discard(ReasonSandboxFault, err)
	}
	commit(prog, ctor, modified, inits, synth)
	diag.Outcome = Folded
	if err := m.to(StateIdle); err != nil {
		d.log.Error("driver state", zap.Error(err))
	}
	return diag
}

// commit installs reconstructed state. Every fallible step has already
// happened: synthesized names are unique and initializers are complete.
func commit(prog *ir.Program, ctor ir.Constructor, modified []*ir.Global, inits []ir.Constant, synth []*ir.Global) {
	for i, g := range modified {
		g.Init = inits[i]
	}
	for _, g := range synth {
		if err := prog.AddGlobal(g); err != nil {
			panic("preexec: synthesized global collides after uniqueness check: " + err.Error())
		}
	}
	prog.RemoveConstructor(ctor)
}
