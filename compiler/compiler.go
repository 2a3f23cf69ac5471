package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/cemlang/cem/compiler/ast"
	"github.com/cemlang/cem/compiler/back"
	"github.com/cemlang/cem/compiler/check"
	"github.com/cemlang/cem/compiler/config"
	"github.com/cemlang/cem/compiler/front"
	"github.com/cemlang/cem/compiler/link"
)

func CompileFile(ctx context.Context, name string, opts back.Options) (ir []byte, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text, opts)
}

// Compile parses, checks and lowers the text to LLVM IR.
func Compile(ctx context.Context, name string, text []byte, opts back.Options) (ir []byte, err error) {
	p, err := Check(ctx, name, text)
	if err != nil {
		return nil, err
	}

	if opts.FileName == "" {
		opts.FileName = name
	}

	opts.Entry = EntryWord(p, opts.Entry)

	ir, err = back.CompileProgram(ctx, p, opts)
	if err != nil {
		return nil, errors.Wrap(err, "codegen")
	}

	return ir, nil
}

// Check parses and type checks the text.
func Check(ctx context.Context, name string, text []byte) (p *ast.Program, err error) {
	p, err = front.Parse(ctx, name, text)
	if err != nil {
		return nil, errors.Wrap(err, "parse text")
	}

	err = check.CheckProgram(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "check")
	}

	return p, nil
}

// Build compiles the input file and writes the IR or the linked executable
// as cfg says. It returns the path written.
func Build(ctx context.Context, input string, cfg *config.Config) (out string, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "build", "input", input, "entry", cfg.Entry, "emit_ir", cfg.EmitIR)
	defer tr.Finish("err", &err)

	ir, err := CompileFile(ctx, input, BackOptions(cfg))
	if err != nil {
		return "", err
	}

	out = cfg.OutputFor(input)

	if cfg.EmitIR {
		err = os.WriteFile(out, ir, 0o644)
		if err != nil {
			return "", errors.Wrap(err, "write ir")
		}

		return out, nil
	}

	err = link.Link(ctx, ir, link.Options{
		CC:      cfg.CC,
		Runtime: cfg.Runtime,
		Output:  out,
		Args:    cfg.CCArgs,
	})
	if err != nil {
		return "", err
	}

	return out, nil
}

func BackOptions(cfg *config.Config) back.Options {
	return back.Options{
		Entry:   cfg.Entry,
		Debug:   cfg.Debug,
		Strands: cfg.Strands,
	}
}

// EntryWord falls back to the only word of a program without main.
func EntryWord(p *ast.Program, entry string) string {
	if entry != config.DefaultEntry || p.Word(entry) != nil || len(p.WordDefs) != 1 {
		return entry
	}

	return p.WordDefs[0].Name
}
