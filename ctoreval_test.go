package ctoreval

import (
	"context"
	"testing"

	"github.com/wippyai/ctoreval/errors"
	"github.com/wippyai/ctoreval/ir"
	"github.com/wippyai/ctoreval/preexec"
)

const mixed = `
(program "mixed"
  (global @ready i1 0)
  (global @fd i32 -1)
  (func @open (param ptr) (result i32))
  (func @init_ready
    (block entry
      (store i1 1 @ready)
      (ret)))
  (func @init_fd (local %r i32)
    (block entry
      (set %r (call @open null))
      (store i32 %r @fd)
      (ret)))
  (ctor @init_ready 10)
  (ctor @init_fd 20))
`

func TestFold(t *testing.T) {
	prog, report, err := Fold(context.Background(), mixed, preexec.DefaultConfig())
	if err != nil {
		t.Fatalf("Fold: %v", err)
	}

	fd, ok := report.Lookup("init_fd")
	if !ok || fd.Outcome != preexec.Deferred || fd.Reason != preexec.ReasonExternalCall {
		t.Fatalf("init_fd = %+v", fd)
	}
	if !ir.Equal(prog.Global("fd").Init, ir.NewInt(ir.I32, -1)) {
		t.Errorf("fd changed to %v", prog.Global("fd").Init)
	}
	if !ir.Equal(prog.Global("ready").Init, ir.NewInt(ir.I1, 1)) {
		t.Errorf("ready = %v", prog.Global("ready").Init)
	}

	ctors := prog.Constructors()
	if len(ctors) != 1 || ctors[0].Func.Name != "init_fd" {
		t.Errorf("constructors = %+v", ctors)
	}
}

func TestFoldImage(t *testing.T) {
	bin, report, err := FoldImage(context.Background(), mixed, preexec.DefaultConfig())
	if err != nil {
		t.Fatalf("FoldImage: %v", err)
	}
	if report.Folded() != 1 || len(bin) < 8 {
		t.Errorf("folded = %d, image = %d bytes", report.Folded(), len(bin))
	}
}

func TestFold_ParseError(t *testing.T) {
	_, _, err := Fold(context.Background(), "(program (global @g))", preexec.DefaultConfig())
	if errors.KindOf(err) != errors.KindInvalidData {
		t.Fatalf("err = %v, want invalid_data", err)
	}
}
