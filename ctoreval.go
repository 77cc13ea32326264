package ctoreval

import (
	"context"

	"github.com/wippyai/ctoreval/emit"
	"github.com/wippyai/ctoreval/ir"
	"github.com/wippyai/ctoreval/irtext"
	"github.com/wippyai/ctoreval/preexec"
)

// Fold parses src, pre-executes its constructors and returns the folded
// program together with the per-constructor report.
func Fold(ctx context.Context, src string, cfg preexec.Config) (*ir.Program, *preexec.Report, error) {
	prog, err := irtext.Parse(src)
	if err != nil {
		return nil, nil, err
	}
	report, err := preexec.PreExecuteAll(ctx, prog, cfg)
	return prog, report, err
}

// FoldImage folds src and encodes the resulting globals as a wasm image.
func FoldImage(ctx context.Context, src string, cfg preexec.Config) ([]byte, *preexec.Report, error) {
	prog, report, err := Fold(ctx, src, cfg)
	if err != nil {
		return nil, report, err
	}
	bin, err := emit.Program(prog)
	if err != nil {
		return nil, report, err
	}
	return bin, report, nil
}
