package back

import (
	"context"
	"strconv"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/cemlang/cem/compiler/ast"
	"github.com/cemlang/cem/compiler/ir"
)

type (
	// fn is a function being emitted. Temps are numbered per function.
	fn struct {
		name string
		loc  ast.Loc

		tmp  int
		code [][]byte

		sp int // debug subprogram or -1
	}

	// value is the result of compiling an expression.
	value struct {
		V     string // stack pointer after the expression
		Label string // block V is available in
		Tail  bool   // the block was left through ret
	}
)

func (c *CodeGen) compileWord(ctx context.Context, b []byte, w *ast.WordDef) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: word", "name", w.Name, "effect", w.Effect)
	defer tr.Finish("err", &err)

	f := c.newFn(wordPrefix+w.Name, w.Name, w.Loc)

	err = c.compileFunc(ctx, f, w.Body)
	if err != nil {
		return nil, err
	}

	tr.V("word_code").Printw("compiled", "instructions", len(f.code), "temps", f.tmp)

	return f.appendTo(b), nil
}

func (c *CodeGen) newFn(name, display string, l ast.Loc) *fn {
	f := &fn{name: name, loc: l, sp: -1}

	if c.dbg != nil {
		file := l.File
		if file == "" {
			file = c.fileName()
		}

		f.sp = c.dbg.subprogram(display, name, file, l.Line)
	}

	return f
}

func (c *CodeGen) compileFunc(ctx context.Context, f *fn, body []ast.Expr) error {
	f.label("entry")

	res, err := c.compileBody(ctx, f, body, value{V: "%stack", Label: "entry"}, true)
	if err != nil {
		return err
	}

	if !res.Tail {
		f.ins("ret ptr %s", res.V)
	}

	return nil
}

// compileBody compiles a sequence; only the last expression inherits tail.
func (c *CodeGen) compileBody(ctx context.Context, f *fn, body []ast.Expr, in value, tail bool) (_ value, err error) {
	cur := in

	for i, e := range body {
		if cur.Tail {
			return value{}, internal("body", errors.New("code after return at %v", e.Pos()))
		}

		cur, err = c.compileExpr(ctx, f, e, cur, tail && i == len(body)-1)
		if err != nil {
			return value{}, err
		}
	}

	return cur, nil
}

func (c *CodeGen) compileExpr(ctx context.Context, f *fn, e ast.Expr, in value, tail bool) (value, error) {
	switch e := e.(type) {
	case *ast.IntLit:
		t := f.temp()
		f.ins("%s = call ptr @push_int(ptr %s, i64 %s)%s", t, in.V, strconv.FormatInt(e.Value, 10), c.dbgAt(f, e.Loc))

		return value{V: t, Label: in.Label}, nil
	case *ast.BoolLit:
		t := f.temp()
		f.ins("%s = call ptr @push_bool(ptr %s, i1 %v)%s", t, in.V, e.Value, c.dbgAt(f, e.Loc))

		return value{V: t, Label: in.Label}, nil
	case *ast.StringLit:
		g := c.stringConst(e.Value)

		t := f.temp()
		f.ins("%s = call ptr @push_string(ptr %s, ptr %s)%s", t, in.V, g, c.dbgAt(f, e.Loc))

		return value{V: t, Label: in.Label}, nil
	case *ast.WordCall:
		return c.compileCall(f, e, in, tail)
	case *ast.Quotation:
		q, err := c.compileQuotation(ctx, e)
		if err != nil {
			return value{}, errors.Wrap(err, "quotation at %v", e.Loc)
		}

		t := f.temp()
		f.ins("%s = call ptr @push_quotation(ptr %s, ptr %s)%s", t, in.V, q, c.dbgAt(f, e.Loc))

		return value{V: t, Label: in.Label}, nil
	case *ast.If:
		return c.compileIf(ctx, f, e, in, tail)
	case *ast.While:
		return c.compileWhile(ctx, f, e, in)
	case *ast.Match:
		return c.compileMatch(ctx, f, e, in, tail)
	default:
		return value{}, &UnimplementedError{Feature: hfmtString("%T", e)}
	}
}

func (c *CodeGen) compileCall(f *fn, e *ast.WordCall, in value, tail bool) (value, error) {
	if _, ok := c.words[e.Name]; ok {
		return c.call(f, global(wordPrefix+e.Name), in, tail, e.Loc), nil
	}

	if r, ok := c.lookupVariant(e.Name); ok {
		v := r.Type.Variants[r.Index]

		t := f.temp()
		f.ins("%s = call ptr @push_variant(ptr %s, i32 %d, i32 %d)%s", t, in.V, r.Index, len(v.Fields), c.dbgAt(f, e.Loc))

		return value{V: t, Label: in.Label}, nil
	}

	rf, ok := ir.Builtin(e.Name)
	if !ok {
		return value{}, &UnknownWordError{Name: e.Name}
	}

	switch {
	case rf.Threads():
		return c.call(f, "@"+rf.Name, in, tail, e.Loc), nil
	case rf.Ret == ir.Void && len(rf.Params) == 0:
		f.ins("call void @%s()%s", rf.Name, c.dbgAt(f, e.Loc))

		return in, nil
	default:
		return value{}, internal("call", errors.New("unsupported runtime signature: %v", rf.Name))
	}
}

// call emits a call to a stack threading function.
// In tail position it is a musttail call followed by ret.
func (c *CodeGen) call(f *fn, callee string, in value, tail bool, l ast.Loc) value {
	t := f.temp()

	if !tail {
		f.ins("%s = call ptr %s(ptr %s)%s", t, callee, in.V, c.dbgAt(f, l))

		return value{V: t, Label: in.Label}
	}

	f.ins("%s = musttail call ptr %s(ptr %s)%s", t, callee, in.V, c.dbgAt(f, l))
	f.ins("ret ptr %s", t)

	return value{V: t, Label: in.Label, Tail: true}
}

func (c *CodeGen) compileQuotation(ctx context.Context, e *ast.Quotation) (string, error) {
	c.quots++
	seq := c.quots

	name := quotPrefix + strconv.Itoa(seq)

	q := c.newFn(name, name, e.Loc)

	err := c.compileFunc(ctx, q, e.Body)
	if err != nil {
		return "", err
	}

	c.decls.push(declQuotation, seq, q.appendTo([]byte{'\n'}))

	return global(name), nil
}

func (c *CodeGen) stringConst(s string) string {
	c.strings++

	name := global(stringGlobl + strconv.Itoa(c.strings))

	text := hfmt.Appendf(nil, "%s = private unnamed_addr constant [%d x i8] c\"%s\\00\"\n", name, len(s)+1, escapeString(s))

	c.decls.push(declString, c.strings, text)

	return name
}

// cellField loads a field of the stack cell p.
func (c *CodeGen) cellField(f *fn, p string, off int64, typ string) string {
	fp := f.temp()
	f.ins("%s = getelementptr inbounds i8, ptr %s, i64 %d", fp, p, off)

	v := f.temp()
	f.ins("%s = load %s, ptr %s", v, typ, fp)

	return v
}

func (c *CodeGen) dbgAt(f *fn, l ast.Loc) string {
	if c.dbg == nil || f.sp < 0 {
		return ""
	}

	if l.IsZero() {
		l = f.loc
	}

	file := l.File
	if file == "" {
		file = c.fileName()
	}

	id := c.dbg.location(file, l.Line, l.Col, f.sp)

	return ", !dbg !" + strconv.Itoa(id)
}

func (f *fn) temp() string {
	t := "%" + strconv.Itoa(f.tmp)
	f.tmp++

	return t
}

// ins appends an instruction and returns its index.
func (f *fn) ins(format string, args ...any) int {
	l := append([]byte{}, "  "...)
	l = hfmt.Appendf(l, format, args...)

	f.code = append(f.code, l)

	return len(f.code) - 1
}

func (f *fn) label(l string) {
	f.code = append(f.code, []byte(l+":"))
}

func (f *fn) appendTo(b []byte) []byte {
	b = hfmt.Appendf(b, "define ptr %s(ptr %%stack)", global(f.name))

	if f.sp >= 0 {
		b = hfmt.Appendf(b, " !dbg !%d", f.sp)
	}

	b = append(b, " {\n"...)

	for _, l := range f.code {
		b = append(b, l...)
		b = append(b, '\n')
	}

	b = append(b, "}\n"...)

	return b
}

// global returns an LLVM global name, quoted if needed.
func global(name string) string {
	for i := 0; i < len(name); i++ {
		if !identChar(name[i]) {
			return "@\"" + escapeString(name) + "\""
		}
	}

	return "@" + name
}

func identChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '-' || c == '$' || c == '.' || c == '_'
}

func escapeString(s string) string {
	const hex = "0123456789ABCDEF"

	b := make([]byte, 0, len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]

		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			b = append(b, c)
			continue
		}

		b = append(b, '\\', hex[c>>4], hex[c&0xf])
	}

	return string(b)
}
