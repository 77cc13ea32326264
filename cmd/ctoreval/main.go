package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/ctoreval/emit"
	"github.com/wippyai/ctoreval/interp"
	"github.com/wippyai/ctoreval/irtext"
	"github.com/wippyai/ctoreval/preexec"
	"github.com/wippyai/ctoreval/verify"
)

type options struct {
	input       string
	configFile  string
	emitFile    string
	maxSteps    int64
	print       bool
	verify      bool
	interactive bool
	verbose     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configFile, "config", "", "YAML driver configuration")
	flag.BoolVar(&opts.print, "print", false, "Print the program after folding")
	flag.StringVar(&opts.emitFile, "emit", "", "Write the folded globals as a wasm image")
	flag.BoolVar(&opts.verify, "verify", false, "Check the folded globals against their wasm image")
	flag.Int64Var(&opts.maxSteps, "max-steps", 0, "Instruction limit per constructor (overrides config)")
	flag.BoolVar(&opts.interactive, "i", false, "Interactive mode with TUI")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: ctoreval [-config file.yaml] [-print] [-emit out.wasm] [-verify] <program.ir>")
		fmt.Fprintln(os.Stderr, "       ctoreval -i <program.ir>  (interactive mode)")
		os.Exit(1)
	}
	opts.input = flag.Arg(0)

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func run(opts options) error {
	log, err := newLogger(opts.verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	interp.SetLogger(log.Named("interp"))
	preexec.SetLogger(log.Named("preexec"))
	emit.SetLogger(log.Named("emit"))
	verify.SetLogger(log.Named("verify"))

	cfg := preexec.DefaultConfig()
	if opts.configFile != "" {
		if cfg, err = preexec.LoadConfig(opts.configFile); err != nil {
			return err
		}
	}
	if opts.maxSteps > 0 {
		cfg.MaxSteps = opts.maxSteps
	}

	src, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("read program: %w", err)
	}
	prog, err := irtext.Parse(string(src))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := preexec.PreExecuteAll(ctx, prog, cfg)
	if err != nil && report == nil {
		return err
	}

	if opts.interactive {
		return runInteractive(opts.input, report)
	}

	st := newStyles(term.IsTerminal(int(os.Stdout.Fd())))
	renderReport(os.Stdout, report, st)
	if err != nil {
		return err
	}

	if opts.print {
		fmt.Println()
		fmt.Print(irtext.Print(prog))
	}

	if opts.emitFile != "" {
		bin, err := emit.Program(prog)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.emitFile, bin, 0o644); err != nil {
			return fmt.Errorf("write image: %w", err)
		}
		fmt.Printf("\nWrote %s (%s bytes)\n", opts.emitFile, numbers.Sprintf("%d", len(bin)))
	}

	if opts.verify {
		res, err := verify.Program(ctx, prog)
		if err != nil {
			return err
		}
		renderVerify(os.Stdout, res, st)
		return res.Err()
	}
	return nil
}
