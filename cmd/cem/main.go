package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/cemlang/cem/compiler"
	"github.com/cemlang/cem/compiler/config"
	"github.com/cemlang/cem/compiler/format"
	"github.com/cemlang/cem/compiler/front"
)

func main() {
	compileCmd := &cli.Command{
		Name:        "compile,build",
		Description: "compile programs to executables or LLVM IR",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("output,o", "", "output file (single input only)"),
			cli.NewFlag("entry", "", "entry word (default main)"),
			cli.NewFlag("debug,g", false, "emit debug info"),
			cli.NewFlag("strands", false, "run the entry word as a strand under the scheduler"),
			cli.NewFlag("emit-ir", false, "write LLVM IR instead of linking"),
			cli.NewFlag("runtime", "", "runtime library to link with"),
			cli.NewFlag("cc", "", "C compiler used as the backend (default clang)"),
		},
	}

	checkCmd := &cli.Command{
		Name:        "check",
		Description: "parse and type check programs",
		Action:      checkAct,
		Args:        cli.Args{},
	}

	fmtCmd := &cli.Command{
		Name:        "fmt",
		Description: "print programs in canonical form",
		Action:      fmtAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("write,w", false, "rewrite files in place"),
		},
	}

	app := &cli.Command{
		Name:        "cem",
		Description: "cem is a compiler for the cem concatenative language",
		Commands: []*cli.Command{
			compileCmd,
			checkCmd,
			fmtCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func compileAct(c *cli.Command) (err error) {
	ctx := rootContext()

	if len(c.Args) == 0 {
		return errors.New("no input files")
	}

	if c.String("output") != "" && len(c.Args) > 1 {
		return errors.New("--output with %d inputs", len(c.Args))
	}

	return each(ctx, c.Args, func(ctx context.Context, input string) error {
		cfg, err := config.LoadFor(input)
		if err != nil {
			return errors.Wrap(err, "config")
		}

		override(c, cfg)

		out, err := compiler.Build(ctx, input, cfg)
		if err != nil {
			return err
		}

		tlog.SpanFromContext(ctx).Printw("built", "input", input, "output", out)

		return nil
	})
}

func checkAct(c *cli.Command) (err error) {
	ctx := rootContext()

	if len(c.Args) == 0 {
		return errors.New("no input files")
	}

	return each(ctx, c.Args, func(ctx context.Context, input string) error {
		text, err := os.ReadFile(input)
		if err != nil {
			return errors.Wrap(err, "read file")
		}

		p, err := compiler.Check(ctx, input, text)
		if err != nil {
			return err
		}

		tlog.SpanFromContext(ctx).Printw("checked", "input", input, "types", len(p.TypeDefs), "words", len(p.WordDefs))

		return nil
	})
}

func fmtAct(c *cli.Command) (err error) {
	ctx := rootContext()

	var mu sync.Mutex

	return each(ctx, c.Args, func(ctx context.Context, input string) error {
		p, err := front.ParseFile(ctx, input)
		if err != nil {
			return err
		}

		b, err := format.Format(ctx, nil, p)
		if err != nil {
			return errors.Wrap(err, "format")
		}

		if c.Bool("write") {
			return os.WriteFile(input, b, 0o644)
		}

		mu.Lock()
		defer mu.Unlock()

		_, err = os.Stdout.Write(b)

		return err
	})
}

// each runs f for every input concurrently and reports every failure.
func each(ctx context.Context, inputs []string, f func(ctx context.Context, input string) error) error {
	var g errgroup.Group
	var failed atomic.Int32

	for _, input := range inputs {
		input := input

		g.Go(func() error {
			tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "input", "name", input)
			defer tr.Finish()

			err := f(ctx, input)
			if err != nil {
				failed.Add(1)
				report(input, err)
			}

			return err
		})
	}

	err := g.Wait()
	if err == nil {
		return nil
	}

	return errors.New("%d of %d inputs failed", failed.Load(), len(inputs))
}

func override(c *cli.Command, cfg *config.Config) {
	if v := c.String("output"); v != "" {
		cfg.Output = v
	}

	if v := c.String("entry"); v != "" {
		cfg.Entry = v
	}

	if v := c.String("runtime"); v != "" {
		cfg.Runtime = v
	}

	if v := c.String("cc"); v != "" {
		cfg.CC = v
	}

	cfg.Debug = cfg.Debug || c.Bool("debug")
	cfg.Strands = cfg.Strands || c.Bool("strands")
	cfg.EmitIR = cfg.EmitIR || c.Bool("emit-ir")
}

var colored = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

func report(input string, err error) {
	prefix := "error"
	if colored {
		prefix = "\x1b[1;31merror\x1b[0m"
	}

	fmt.Fprintf(os.Stderr, "%s: %v: %v\n", prefix, input, err)
}

func rootContext() context.Context {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	return ctx
}
