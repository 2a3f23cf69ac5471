package back

import (
	"context"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/cemlang/cem/compiler/ast"
	"github.com/cemlang/cem/compiler/ir"
)

func (c *CodeGen) compileIf(ctx context.Context, f *fn, e *ast.If, in value, tail bool) (value, error) {
	n := c.block()

	then := hfmtString("then_%d", n)
	els := hfmtString("else_%d", n)
	merge := hfmtString("merge_%d", n)

	cond, rest := c.popBool(f, in.V)

	f.ins("br i1 %s, label %%%s, label %%%s", cond, then, els)

	var incoming []value

	for _, br := range []struct {
		label string
		q     *ast.Quotation
	}{
		{then, e.Then},
		{els, e.Else},
	} {
		f.label(br.label)

		res, err := c.compileBody(ctx, f, quotBody(br.q), value{V: rest, Label: br.label}, tail)
		if err != nil {
			return value{}, errors.Wrap(err, "%v", br.label)
		}

		if res.Tail {
			continue
		}

		f.ins("br label %%%s", merge)

		incoming = append(incoming, res)
	}

	tlog.SpanFromContext(ctx).V("merge").Printw("if merge", "n", n, "incoming", len(incoming))

	return c.merge(f, merge, incoming), nil
}

func (c *CodeGen) compileWhile(ctx context.Context, f *fn, e *ast.While, in value) (value, error) {
	n := c.block()

	head := hfmtString("loop_%d", n)
	body := hfmtString("loop_body_%d", n)
	exit := hfmtString("loop_exit_%d", n)

	f.ins("br label %%%s", head)
	f.label(head)

	st := f.temp()
	phi := f.ins("")

	cv, err := c.compileBody(ctx, f, quotBody(e.Cond), value{V: st, Label: head}, false)
	if err != nil {
		return value{}, errors.Wrap(err, "loop condition")
	}

	cond, rest := c.popBool(f, cv.V)

	f.ins("br i1 %s, label %%%s, label %%%s", cond, body, exit)
	f.label(body)

	bv, err := c.compileBody(ctx, f, quotBody(e.Body), value{V: rest, Label: body}, false)
	if err != nil {
		return value{}, errors.Wrap(err, "loop body")
	}

	f.ins("br label %%%s", head)

	f.code[phi] = []byte(hfmtString("  %s = phi ptr [ %s, %%%s ], [ %s, %%%s ]", st, in.V, in.Label, bv.V, bv.Label))

	f.label(exit)

	return value{V: rest, Label: exit}, nil
}

func (c *CodeGen) compileMatch(ctx context.Context, f *fn, e *ast.Match, in value, tail bool) (value, error) {
	if len(e.Branches) == 0 {
		return value{}, &UnimplementedError{Feature: "empty match"}
	}

	ref, ok := c.lookupVariant(e.Branches[0].Variant)
	if !ok {
		return value{}, &UnknownVariantError{Name: e.Branches[0].Variant}
	}

	td := ref.Type

	branches := make([]*ast.MatchBranch, len(td.Variants))

	for i := range e.Branches {
		br := &e.Branches[i]

		idx, _ := td.Variant(br.Variant)
		if idx < 0 {
			return value{}, &UnknownVariantError{Name: br.Variant}
		}

		if branches[idx] == nil {
			branches[idx] = br
		}
	}

	n := c.block()

	def := hfmtString("match_default_%d", n)
	merge := hfmtString("merge_%d", n)

	l := ir.CellV1

	dispatch := hfmtString("match_%d", n)

	vt := c.cellField(f, in.V, l.Tag, ir.I32)

	isVariant := f.temp()
	f.ins("%s = icmp eq i32 %s, %d", isVariant, vt, int(ir.TagVariant))
	f.ins("br i1 %s, label %%%s, label %%%s", isVariant, dispatch, def)

	f.label(dispatch)

	tag := c.cellField(f, in.V, l.VariantTag, ir.I32)
	data := c.cellField(f, in.V, l.VariantData, ir.Ptr)
	rest := c.cellField(f, in.V, l.Next, ir.Ptr)

	cases := make([]string, len(td.Variants))

	for i := range td.Variants {
		cases[i] = hfmtString("match_case_%d", c.block())
	}

	f.ins("switch i32 %s, label %%%s [", tag, def)

	for i := range td.Variants {
		f.ins("  i32 %d, label %%%s", i, cases[i])
	}

	f.ins("]")

	var incoming []value

	for i, v := range td.Variants {
		f.label(cases[i])

		br := branches[i]
		if br == nil {
			f.ins("br label %%%s", def)
			continue
		}

		cur := value{V: rest, Label: cases[i]}

		for j := range v.Fields {
			fp := f.temp()
			f.ins("%s = getelementptr inbounds i8, ptr %s, i64 %d", fp, data, int64(j)*l.Size)

			t := f.temp()
			f.ins("%s = call ptr @push_cell(ptr %s, ptr %s)%s", t, cur.V, fp, c.dbgAt(f, br.Loc))

			cur.V = t
		}

		res, err := c.compileBody(ctx, f, br.Body, cur, tail)
		if err != nil {
			return value{}, errors.Wrap(err, "branch %v", v.Name)
		}

		if res.Tail {
			continue
		}

		f.ins("br label %%%s", merge)

		incoming = append(incoming, res)
	}

	msg := c.stringConst("non-exhaustive match on " + td.Name)

	f.label(def)
	f.ins("call void @runtime_error(ptr %s)%s", msg, c.dbgAt(f, e.Loc))
	f.ins("unreachable")

	return c.merge(f, merge, incoming), nil
}

// merge joins the branches that did not return.
// Each incoming edge comes from the block the branch actually ended in.
func (c *CodeGen) merge(f *fn, label string, incoming []value) value {
	if len(incoming) == 0 {
		return value{Label: label, Tail: true}
	}

	f.label(label)

	var b strings.Builder

	for i, x := range incoming {
		if i != 0 {
			b.WriteString(", ")
		}

		b.WriteString(hfmtString("[ %s, %%%s ]", x.V, x.Label))
	}

	t := f.temp()
	f.ins("%s = phi ptr %s", t, b.String())

	return value{V: t, Label: label}
}

// popBool reads the Bool on top of the stack cell p and the rest of the stack.
func (c *CodeGen) popBool(f *fn, p string) (cond, rest string) {
	l := ir.CellV1

	v := c.cellField(f, p, l.Value, l.BoolType)

	cond = f.temp()
	f.ins("%s = icmp ne %s %s, 0", cond, l.BoolType, v)

	rest = c.cellField(f, p, l.Next, ir.Ptr)

	return cond, rest
}

func quotBody(q *ast.Quotation) []ast.Expr {
	if q == nil {
		return nil
	}

	return q.Body
}
