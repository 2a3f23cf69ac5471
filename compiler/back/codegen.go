// Package back lowers a program to textual LLVM IR.
//
// Every word becomes a function threading the runtime stack pointer:
// it takes the stack and returns the new one.
package back

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/cemlang/cem/compiler/ast"
	"github.com/cemlang/cem/compiler/ir"
)

type (
	Options struct {
		// Entry is the word main calls. No main is emitted if empty.
		Entry string

		Debug   bool
		Strands bool

		// FileName is used for debug info and the module header
		// when the program locations carry no file.
		FileName string
	}

	// CodeGen compiles exactly one program and is discarded afterwards.
	CodeGen struct {
		Options

		prog *ast.Program

		words    map[string]*ast.WordDef
		variants map[string]variantRef

		labels  int
		strings int
		quots   int

		decls decls
		dbg   *debugInfo
	}

	variantRef struct {
		Type  *ast.TypeDef
		Index int
	}
)

const (
	wordPrefix  = "cem."
	quotPrefix  = "quot."
	stringGlobl = ".str."
)

func New(opts Options) *CodeGen {
	c := &CodeGen{
		Options:  opts,
		words:    map[string]*ast.WordDef{},
		variants: map[string]variantRef{},
		decls:    newDecls(),
	}

	if opts.Debug {
		c.dbg = newDebugInfo()
	}

	return c
}

func CompileProgram(ctx context.Context, p *ast.Program, opts Options) ([]byte, error) {
	return New(opts).CompileProgram(ctx, p)
}

// CompileProgram returns the complete module text or an error and no text.
func (c *CodeGen) CompileProgram(ctx context.Context, p *ast.Program) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: compile program", "words", len(p.WordDefs), "entry", c.Entry, "debug", c.Debug)
	defer tr.Finish("err", &err)

	if c.prog != nil {
		return nil, errors.New("code generator is single use")
	}

	c.prog = p

	for _, td := range p.TypeDefs {
		for i, v := range td.Variants {
			c.variants[v.Name] = variantRef{Type: td, Index: i}
		}
	}

	for _, w := range p.WordDefs {
		c.words[w.Name] = w
	}

	var b []byte

	b = c.header(b)
	b = c.declareRuntime(b)

	var words []byte

	for _, w := range p.WordDefs {
		words = append(words, '\n')

		words, err = c.compileWord(ctx, words, w)
		if err != nil {
			return nil, errors.Wrap(err, "word %v", w.Name)
		}
	}

	b = c.decls.appendAll(b)
	b = append(b, words...)

	if c.Entry != "" {
		b, err = c.entry(b)
		if err != nil {
			return nil, errors.Wrap(err, "entry")
		}
	}

	if c.dbg != nil {
		b = c.dbg.append(b, c.fileName())
	}

	if tr.If("dump_ir") {
		tr.Printw("module", "ir", b)
	}

	return b, nil
}

func (c *CodeGen) header(b []byte) []byte {
	name := c.fileName()

	b = hfmt.Appendf(b, "; cem module %s\n", name)
	b = hfmt.Appendf(b, "source_filename = \"%s\"\n", escapeString(name))

	return b
}

func (c *CodeGen) declareRuntime(b []byte) []byte {
	groups := map[string][]ir.Func{}
	var order []string

	for _, f := range ir.Runtime {
		if _, ok := groups[f.Group]; !ok {
			order = append(order, f.Group)
		}

		groups[f.Group] = append(groups[f.Group], f)
	}

	for _, g := range order {
		b = hfmt.Appendf(b, "\n; runtime: %s\n", g)

		for _, f := range groups[g] {
			b = hfmt.Appendf(b, "declare %s @%s(", f.Ret, f.Name)

			for i, p := range f.Params {
				if i != 0 {
					b = append(b, ", "...)
				}

				b = append(b, p...)
			}

			b = append(b, ')')

			if f.NoReturn {
				b = append(b, " noreturn"...)
			}

			if f.Doc != "" {
				b = append(b, " ; "...)
				b = append(b, f.Doc...)
			}

			b = append(b, '\n')
		}
	}

	return b
}

func (c *CodeGen) entry(b []byte) ([]byte, error) {
	w, ok := c.words[c.Entry]
	if !ok {
		return nil, &UnknownWordError{Name: c.Entry}
	}

	name := global(wordPrefix + w.Name)

	b = append(b, "\ndefine i32 @main() {\nentry:\n"...)

	if c.Strands {
		b = hfmt.Appendf(b, "  call void @scheduler_init()\n")
		b = hfmt.Appendf(b, "  %%0 = call i64 @strand_spawn(ptr %s, ptr null)\n", name)
		b = hfmt.Appendf(b, "  %%1 = call ptr @scheduler_run()\n")
		b = hfmt.Appendf(b, "  call void @scheduler_shutdown()\n")
	} else {
		b = hfmt.Appendf(b, "  %%0 = call ptr %s(ptr null)\n", name)
		b = hfmt.Appendf(b, "  call void @print_stack(ptr %%0)\n")
		b = hfmt.Appendf(b, "  call void @free_stack(ptr %%0)\n")
	}

	b = append(b, "  ret i32 0\n}\n"...)

	return b, nil
}

func (c *CodeGen) fileName() string {
	if c.FileName != "" {
		return c.FileName
	}

	if c.prog != nil {
		for _, w := range c.prog.WordDefs {
			if w.Loc.File != "" {
				return w.Loc.File
			}
		}
	}

	return "input.cem"
}

// block returns a fresh suffix shared by the labels of one construct.
func (c *CodeGen) block() int {
	c.labels++

	return c.labels
}

func (c *CodeGen) lookupVariant(name string) (variantRef, bool) {
	r, ok := c.variants[name]
	return r, ok
}

func hfmtString(f string, args ...any) string {
	return string(hfmt.Appendf(nil, f, args...))
}
