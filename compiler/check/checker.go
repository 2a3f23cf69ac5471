// Package check infers stack effects of word bodies and verifies them
// against the declared signatures.
package check

import (
	"context"
	"fmt"
	"strconv"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/cemlang/cem/compiler/ast"
	"github.com/cemlang/cem/compiler/set"
	"github.com/cemlang/cem/compiler/tp"
	"github.com/cemlang/cem/compiler/unify"
)

type (
	// Checker checks exactly one program and is discarded afterwards.
	Checker struct {
		env *Env

		fresh int
	}
)

func New() *Checker {
	return &Checker{env: NewEnv()}
}

func (c *Checker) Env() *Env { return c.env }

func CheckProgram(ctx context.Context, p *ast.Program) error {
	return New().CheckProgram(ctx, p)
}

func (c *Checker) CheckProgram(ctx context.Context, p *ast.Program) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "check: program", "types", len(p.TypeDefs), "words", len(p.WordDefs))
	defer tr.Finish("err", &err)

	for _, td := range p.TypeDefs {
		err = c.env.AddType(td)
		if err != nil {
			return errors.Wrap(err, "type %v", td.Name)
		}
	}

	for _, td := range p.TypeDefs {
		for _, v := range td.Variants {
			for _, f := range v.Fields {
				err = c.resolve(f, td.Loc)
				if err != nil {
					return errors.Wrap(err, "type %v: variant %v", td.Name, v.Name)
				}
			}
		}
	}

	for _, w := range p.WordDefs {
		err = c.resolveEffect(w.Effect, w.Loc)
		if err != nil {
			return errors.Wrap(err, "word %v", w.Name)
		}

		err = c.env.Declare(w.Name, w.Effect)
		if err != nil {
			return errors.Wrap(locate(err, w.Loc), "word %v", w.Name)
		}
	}

	for _, w := range p.WordDefs {
		err = c.CheckWord(ctx, w)
		if err != nil {
			return errors.Wrap(err, "word %v", w.Name)
		}

		c.env.AddWord(w.Name, w.Effect)

		tr.V("check_word").Printw("word checked", "name", w.Name, "effect", w.Effect)
	}

	return nil
}

// CheckWord threads the declared input stack through the body
// and unifies the result with the declared output.
func (c *Checker) CheckWord(ctx context.Context, w *ast.WordDef) (err error) {
	st, err := c.checkBody(ctx, w.Body, w.Effect.In)
	if err != nil {
		return err
	}

	_, err = unify.Stacks(st, w.Effect.Out)
	if err != nil {
		return &EffectMismatchError{
			Diag:     Diag{Loc: w.Loc},
			Expected: w.Effect,
			Actual:   tp.Effect{In: w.Effect.In, Out: st},
			Word:     w.Name,
		}
	}

	return nil
}

// CheckExpr returns the stack after e is evaluated on st.
func (c *Checker) CheckExpr(ctx context.Context, e ast.Expr, st tp.StackType) (_ tp.StackType, err error) {
	if tr := tlog.SpanFromContext(ctx); tr.If("check_expr") {
		tr.Printw("check expr", "pos", e.Pos(), "expr", tlog.NextAsType, e, "stack", st.String())
	}

	switch e := e.(type) {
	case *ast.IntLit:
		return tp.Push(st, tp.Int{}), nil
	case *ast.BoolLit:
		return tp.Push(st, tp.Bool{}), nil
	case *ast.StringLit:
		return tp.Push(st, tp.String{}), nil
	case *ast.WordCall:
		eff, ok := c.env.LookupWord(e.Name)
		if !ok {
			return nil, &UndefinedWordError{Diag: Diag{Loc: e.Loc}, Name: e.Name}
		}

		st, err = c.ApplyEffect(eff, st, e.Name)
		if err != nil {
			return nil, locate(err, e.Loc)
		}

		return st, nil
	case *ast.Quotation:
		return tp.Push(st, tp.Quotation{Effect: tp.FromSlices(nil, nil)}), nil
	case *ast.If:
		return c.checkIf(ctx, e, st)
	case *ast.While:
		return c.checkWhile(ctx, e, st)
	case *ast.Match:
		return c.checkMatch(ctx, e, st)
	default:
		return nil, other(e.Pos(), "unsupported expression: %T", e)
	}
}

// ApplyEffect applies a callee effect to the live stack.
// Type variables of the effect are renamed apart on every call.
func (c *Checker) ApplyEffect(eff tp.Effect, st tp.StackType, word string) (tp.StackType, error) {
	eff = c.instantiate(eff)

	inBase, in := tp.Slice(eff.In)

	avail, _ := tp.Depth(st)
	if avail < len(in) {
		return nil, &StackUnderflowError{Word: word, Required: len(in), Available: avail}
	}

	rest := st
	args := make([]tp.Type, len(in))

	for i := len(in) - 1; i >= 0; i-- {
		rest, args[i], _ = tp.Pop(rest)
	}

	var s unify.Subst
	var err error

	for i := range in {
		s, err = s.Types(in[i], args[i])
		if err != nil {
			return nil, &TypeMismatchError{
				Expected: s.Apply(in[i]),
				Actual:   s.Apply(args[i]),
				Context:  fmt.Sprintf("argument %d of %v", i+1, word),
			}
		}
	}

	if r, ok := inBase.(tp.RowVar); ok {
		s, err = s.Stacks(r, rest)
		if err != nil {
			return nil, other(ast.Loc{}, "%v: %v", word, err)
		}
	}

	out := s.ApplyStack(eff.Out)

	if r, ok := tp.Base(eff.Out).(tp.RowVar); ok {
		if _, bound := s.Rows[r.Name]; bound {
			return out, nil
		}
	}

	return tp.Concat(rest, out), nil
}

func (c *Checker) checkBody(ctx context.Context, body []ast.Expr, st tp.StackType) (_ tp.StackType, err error) {
	for _, e := range body {
		st, err = c.CheckExpr(ctx, e, st)
		if err != nil {
			return nil, err
		}
	}

	return st, nil
}

func (c *Checker) checkIf(ctx context.Context, e *ast.If, st tp.StackType) (tp.StackType, error) {
	rest, top, ok := tp.Pop(st)
	if !ok {
		return nil, &StackUnderflowError{Diag: Diag{Loc: e.Loc}, Word: "if", Required: 1}
	}

	_, err := unify.Types(top, tp.Bool{})
	if err != nil {
		return nil, &TypeMismatchError{Diag: Diag{Loc: e.Loc}, Expected: tp.Bool{}, Actual: top, Context: "if condition"}
	}

	thenSt, err := c.checkBody(ctx, body(e.Then), rest)
	if err != nil {
		return nil, errors.Wrap(err, "then branch")
	}

	elseSt, err := c.checkBody(ctx, body(e.Else), rest)
	if err != nil {
		return nil, errors.Wrap(err, "else branch")
	}

	s, err := unify.Stacks(thenSt, elseSt)
	if err != nil {
		return nil, other(e.Loc, "if branches leave different stacks: (%v) and (%v)", thenSt, elseSt)
	}

	return s.ApplyStack(thenSt), nil
}

func (c *Checker) checkWhile(ctx context.Context, e *ast.While, st tp.StackType) (tp.StackType, error) {
	condSt, err := c.checkBody(ctx, body(e.Cond), st)
	if err != nil {
		return nil, errors.Wrap(err, "while condition")
	}

	rest, top, ok := tp.Pop(condSt)
	if !ok {
		return nil, &StackUnderflowError{Diag: Diag{Loc: e.Loc}, Word: "while", Required: 1}
	}

	_, err = unify.Types(top, tp.Bool{})
	if err != nil {
		return nil, &TypeMismatchError{Diag: Diag{Loc: e.Loc}, Expected: tp.Bool{}, Actual: top, Context: "while condition"}
	}

	_, err = unify.Stacks(rest, st)
	if err != nil {
		return nil, other(e.Loc, "while condition must only push a Bool: (%v) before, (%v) after", st, condSt)
	}

	bodySt, err := c.checkBody(ctx, body(e.Body), st)
	if err != nil {
		return nil, errors.Wrap(err, "while body")
	}

	_, err = unify.Stacks(bodySt, st)
	if err != nil {
		return nil, other(e.Loc, "while body must preserve the stack: (%v) before, (%v) after", st, bodySt)
	}

	return st, nil
}

func (c *Checker) checkMatch(ctx context.Context, e *ast.Match, st tp.StackType) (tp.StackType, error) {
	rest, top, ok := tp.Pop(st)
	if !ok {
		return nil, &StackUnderflowError{Diag: Diag{Loc: e.Loc}, Word: "match", Required: 1}
	}

	named, ok := top.(tp.Named)
	if !ok {
		return nil, other(e.Loc, "match on non-sum type %v", top)
	}

	td, ok := c.env.LookupType(named.Name)
	if !ok {
		return nil, &UndefinedTypeError{Diag: Diag{Loc: e.Loc}, Name: named.Name}
	}

	if len(e.Branches) == 0 {
		return nil, other(e.Loc, "empty match on %v", named.Name)
	}

	covered := set.MakeBitmap(len(td.Variants))

	for _, br := range e.Branches {
		idx, _ := td.Variant(br.Variant)
		if idx < 0 {
			if ref, ok := c.env.VariantOf(br.Variant); ok {
				return nil, other(br.Loc, "%v is a variant of %v, not %v", br.Variant, ref.Type.Name, td.Name)
			}

			return nil, other(br.Loc, "%v is not a variant of %v", br.Variant, td.Name)
		}

		if covered.Set(idx) {
			return nil, other(br.Loc, "duplicate pattern %v", br.Variant)
		}
	}

	if missing := covered.Missing(len(td.Variants)); len(missing) != 0 {
		names := make([]string, len(missing))

		for i, idx := range missing {
			names[i] = td.Variants[idx].Name
		}

		return nil, &NonExhaustiveMatchError{Diag: Diag{Loc: e.Loc}, TypeName: td.Name, Missing: names}
	}

	spec := specialize(td, named)

	var s unify.Subst
	var first tp.StackType

	for _, br := range e.Branches {
		_, v := td.Variant(br.Variant)

		fields := make([]tp.Type, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = spec.Apply(f)
		}

		out, err := c.checkBody(ctx, br.Body, tp.FromSlice(rest, fields))
		if err != nil {
			return nil, errors.Wrap(err, "branch %v", br.Variant)
		}

		if first == nil {
			first = out
			continue
		}

		s, err = s.Stacks(first, out)
		if err != nil {
			return nil, &InconsistentBranchEffectsError{
				Diag:     Diag{Loc: br.Loc},
				TypeName: td.Name,
				Expected: tp.Effect{In: st, Out: s.ApplyStack(first)},
				Actual:   tp.Effect{In: st, Out: s.ApplyStack(out)},
				Branch:   br.Variant,
			}
		}
	}

	return s.ApplyStack(first), nil
}

// specialize maps type parameters to the scrutinee arguments.
// Arity is not enforced, mismatched arities leave fields generic.
func specialize(td *ast.TypeDef, t tp.Named) unify.Subst {
	if len(td.Params) != len(t.Args) || len(t.Args) == 0 {
		return unify.Subst{}
	}

	s := unify.Subst{Vars: make(map[string]tp.Type, len(t.Args))}

	for i, p := range td.Params {
		s.Vars[p] = t.Args[i]
	}

	return s
}

func (c *Checker) instantiate(eff tp.Effect) tp.Effect {
	s := unify.Subst{
		Vars: map[string]tp.Type{},
		Rows: map[string]tp.StackType{},
	}

	c.fresh++
	suffix := "#" + strconv.Itoa(c.fresh)

	collect(eff, func(name string, row bool) {
		if row {
			s.Rows[name] = tp.RowVar{Name: name + suffix}
		} else {
			s.Vars[name] = tp.Var{Name: name + suffix}
		}
	})

	if s.Len() == 0 {
		return eff
	}

	return s.ApplyEffect(eff)
}

// resolve checks that every named type t mentions is declared.
func (c *Checker) resolve(t tp.Type, l ast.Loc) error {
	switch t := t.(type) {
	case tp.Named:
		if _, ok := c.env.LookupType(t.Name); !ok {
			return &UndefinedTypeError{Diag: Diag{Loc: l}, Name: t.Name}
		}

		for _, a := range t.Args {
			if err := c.resolve(a, l); err != nil {
				return err
			}
		}
	case tp.Quotation:
		return c.resolveEffect(t.Effect, l)
	}

	return nil
}

func (c *Checker) resolveEffect(eff tp.Effect, l ast.Loc) error {
	for _, st := range []tp.StackType{eff.In, eff.Out} {
		_, l2 := tp.Slice(st)

		for _, t := range l2 {
			if err := c.resolve(t, l); err != nil {
				return err
			}
		}
	}

	return nil
}

func collect(eff tp.Effect, f func(name string, row bool)) {
	var typ func(t tp.Type)
	var stack func(st tp.StackType)

	typ = func(t tp.Type) {
		switch t := t.(type) {
		case tp.Var:
			f(t.Name, false)
		case tp.Named:
			for _, a := range t.Args {
				typ(a)
			}
		case tp.Quotation:
			stack(t.Effect.In)
			stack(t.Effect.Out)
		}
	}

	stack = func(st tp.StackType) {
		base, l := tp.Slice(st)

		if r, ok := base.(tp.RowVar); ok {
			f(r.Name, true)
		}

		for _, t := range l {
			typ(t)
		}
	}

	stack(eff.In)
	stack(eff.Out)
}

func body(q *ast.Quotation) []ast.Expr {
	if q == nil {
		return nil
	}

	return q.Body
}
