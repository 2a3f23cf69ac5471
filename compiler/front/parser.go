// Package front parses cem source text into an ast.Program.
package front

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/cemlang/cem/compiler/ast"
	"github.com/cemlang/cem/compiler/tp"
)

func ParseFile(ctx context.Context, name string) (*ast.Program, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read")
	}

	return Parse(ctx, name, data)
}

func Parse(ctx context.Context, name string, text []byte) (p *ast.Program, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: parse", "name", name, "size", len(text))
	defer tr.Finish("err", &err)

	s := newState(name, text)
	p = &ast.Program{}

	for i := 0; ; {
		t, e, err := s.next(i)
		if err != nil {
			return nil, err
		}

		switch {
		case t == nil:
			tr.V("ast").Printw("parsed", "types", len(p.TypeDefs), "words", len(p.WordDefs))

			return p, nil
		case isIdent(t, "type"):
			var td *ast.TypeDef

			td, i, err = s.parseTypeDef(ctx, s.start(i), e)
			if err != nil {
				return nil, err
			}

			p.TypeDefs = append(p.TypeDefs, td)
		case isPunct(t, ":"):
			var w *ast.WordDef

			w, i, err = s.parseWordDef(ctx, s.start(i), e)
			if err != nil {
				return nil, err
			}

			p.WordDefs = append(p.WordDefs, w)
		default:
			return nil, s.errorf(s.start(i), "expected 'type' or ':', got %v", describe(t))
		}
	}
}

// parseTypeDef parses `type Name (Params) | Variant(Fields) | ...`.
// kw is the position of the keyword and st is right after it.
func (s *state) parseTypeDef(ctx context.Context, kw, st int) (td *ast.TypeDef, i int, err error) {
	name, i, err := s.expectIdent(st, "type name")
	if err != nil {
		return
	}

	td = &ast.TypeDef{Base: s.base(kw), Name: name}

	t, e, err := s.next(i)
	if err != nil {
		return
	}

	if isPunct(t, "(") {
		i = e

		for {
			t, e, err = s.next(i)
			if err != nil {
				return
			}

			if isPunct(t, ")") {
				i = e
				break
			}

			id, ok := t.(ident)
			if !ok {
				return nil, i, s.errorf(s.start(i), "expected type parameter, got %v", describe(t))
			}

			td.Params = append(td.Params, string(id))
			i = e
		}
	}

	i, err = s.expect(i, "|")
	if err != nil {
		return
	}

	for {
		var v ast.Variant

		v.Name, i, err = s.expectIdent(i, "variant name")
		if err != nil {
			return
		}

		t, e, err = s.next(i)
		if err != nil {
			return
		}

		if isPunct(t, "(") {
			v.Fields, i, err = s.parseTypes(ctx, e, ")")
			if err != nil {
				return nil, i, errors.Wrap(err, "variant %v", v.Name)
			}

			i, err = s.expect(i, ")")
			if err != nil {
				return
			}
		}

		td.Variants = append(td.Variants, v)

		t, e, err = s.next(i)
		if err != nil {
			return
		}

		if !isPunct(t, "|") {
			return td, i, nil
		}

		i = e
	}
}

// parseWordDef parses `: name ( In -- Out ) body ;`.
func (s *state) parseWordDef(ctx context.Context, colon, st int) (w *ast.WordDef, i int, err error) {
	name, i, err := s.expectIdent(st, "word name")
	if err != nil {
		return
	}

	w = &ast.WordDef{Base: s.base(colon), Name: name}

	i, err = s.expect(i, "(")
	if err != nil {
		return
	}

	w.Effect, i, err = s.parseEffect(ctx, i, ")")
	if err != nil {
		return nil, i, errors.Wrap(err, "word %v", name)
	}

	w.Body, i, err = s.parseExprs(ctx, i, ";")
	if err != nil {
		return nil, i, err
	}

	return w, i, nil
}

// parseEffect parses `In -- Out` followed by the closing token.
func (s *state) parseEffect(ctx context.Context, st int, closing string) (eff tp.Effect, i int, err error) {
	eff.In, i, err = s.parseStack(ctx, st, "--")
	if err != nil {
		return
	}

	i, err = s.expect(i, "--")
	if err != nil {
		return
	}

	eff.Out, i, err = s.parseStack(ctx, i, closing)
	if err != nil {
		return
	}

	i, err = s.expect(i, closing)

	return
}

// parseStack parses an optional row variable followed by types up to the end token.
func (s *state) parseStack(ctx context.Context, st int, end string) (_ tp.StackType, i int, err error) {
	var base tp.StackType = tp.Empty{}

	i = st

	t, e, err := s.next(i)
	if err != nil {
		return
	}

	if id, ok := t.(ident); ok && strings.HasPrefix(string(id), "..") {
		if len(id) == 2 {
			return nil, i, s.errorf(s.start(i), "row variable name expected")
		}

		base = tp.RowVar{Name: string(id[2:])}
		i = e
	}

	l, i, err := s.parseTypes(ctx, i, end)
	if err != nil {
		return
	}

	return tp.FromSlice(base, l), i, nil
}

func (s *state) parseTypes(ctx context.Context, st int, end string) (l []tp.Type, i int, err error) {
	i = st

	for {
		t, _, err := s.next(i)
		if err != nil {
			return nil, i, err
		}

		if t == nil {
			return nil, i, s.errorf(i, "expected '%s', got end of input", end)
		}

		if isPunct(t, end) {
			return l, i, nil
		}

		var x tp.Type

		x, i, err = s.parseType(ctx, i)
		if err != nil {
			return nil, i, err
		}

		l = append(l, x)
	}
}

func (s *state) parseType(ctx context.Context, st int) (x tp.Type, i int, err error) {
	t, i, err := s.next(st)
	if err != nil {
		return
	}

	if isPunct(t, "[") {
		eff, i, err := s.parseEffect(ctx, i, "]")
		if err != nil {
			return nil, i, errors.Wrap(err, "quotation type")
		}

		return tp.Quotation{Effect: eff}, i, nil
	}

	id, ok := t.(ident)
	if !ok {
		return nil, st, s.errorf(s.start(st), "expected type, got %v", describe(t))
	}

	name := string(id)

	switch {
	case name == "Int":
		return tp.Int{}, i, nil
	case name == "Bool":
		return tp.Bool{}, i, nil
	case name == "String":
		return tp.String{}, i, nil
	case strings.HasPrefix(name, ".."):
		return nil, st, s.errorf(s.start(st), "row variable %v must come first", name)
	case isTypeVar(name):
		return tp.Var{Name: name}, i, nil
	}

	n := tp.Named{Name: name}

	t, e, err := s.next(i)
	if err != nil {
		return
	}

	if isPunct(t, "(") {
		n.Args, i, err = s.parseTypes(ctx, e, ")")
		if err != nil {
			return nil, i, errors.Wrap(err, "type %v", name)
		}

		i, err = s.expect(i, ")")
		if err != nil {
			return
		}
	}

	return n, i, nil
}

// parseExprs parses expressions up to and including the end token.
func (s *state) parseExprs(ctx context.Context, st int, end string) (l []ast.Expr, i int, err error) {
	i = st

	for {
		t, e, err := s.next(i)
		if err != nil {
			return nil, i, err
		}

		switch {
		case t == nil:
			return nil, i, s.errorf(i, "expected '%s', got end of input", end)
		case isPunct(t, end), isIdent(t, end):
			return l, e, nil
		}

		var x ast.Expr

		x, i, err = s.parseExpr(ctx, i)
		if err != nil {
			return nil, i, err
		}

		l = append(l, x)
	}
}

func (s *state) parseExpr(ctx context.Context, st int) (x ast.Expr, i int, err error) {
	t, i, err := s.next(st)
	if err != nil {
		return
	}

	pos := s.start(st)
	b := s.base(pos)

	switch t := t.(type) {
	case number:
		v, err := strconv.ParseInt(string(t), 10, 64)
		if err != nil {
			return nil, st, s.errorf(pos, "invalid integer: %s", t)
		}

		return &ast.IntLit{Base: b, Value: v}, i, nil
	case str:
		return &ast.StringLit{Base: b, Value: string(t)}, i, nil
	case punct:
		if string(t) != "[" {
			return nil, st, s.errorf(pos, "unexpected %v", describe(t))
		}

		body, i, err := s.parseExprs(ctx, i, "]")
		if err != nil {
			return nil, i, err
		}

		return &ast.Quotation{Base: b, Body: body}, i, nil
	case ident:
		switch string(t) {
		case "true", "false":
			return &ast.BoolLit{Base: b, Value: string(t) == "true"}, i, nil
		case "if":
			var e ast.If

			e.Base = b

			e.Then, i, err = s.parseQuotation(ctx, i, "then branch")
			if err != nil {
				return
			}

			e.Else, i, err = s.parseQuotation(ctx, i, "else branch")
			if err != nil {
				return
			}

			return &e, i, nil
		case "while":
			var e ast.While

			e.Base = b

			e.Cond, i, err = s.parseQuotation(ctx, i, "loop condition")
			if err != nil {
				return
			}

			e.Body, i, err = s.parseQuotation(ctx, i, "loop body")
			if err != nil {
				return
			}

			return &e, i, nil
		case "match":
			return s.parseMatch(ctx, b, i)
		case "type", "end":
			return nil, st, s.errorf(pos, "unexpected '%s'", t)
		}

		return &ast.WordCall{Base: b, Name: string(t)}, i, nil
	default:
		return nil, st, s.errorf(pos, "unexpected %v", describe(t))
	}
}

func (s *state) parseQuotation(ctx context.Context, st int, what string) (q *ast.Quotation, i int, err error) {
	t, i, err := s.next(st)
	if err != nil {
		return
	}

	if !isPunct(t, "[") {
		return nil, st, s.errorf(s.start(st), "expected '[' for %v, got %v", what, describe(t))
	}

	q = &ast.Quotation{Base: s.base(i - 1)}

	q.Body, i, err = s.parseExprs(ctx, i, "]")
	if err != nil {
		return nil, i, errors.Wrap(err, "%v", what)
	}

	return q, i, nil
}

// parseMatch parses `Variant => [ body ] ... end`.
func (s *state) parseMatch(ctx context.Context, b ast.Base, st int) (_ ast.Expr, i int, err error) {
	m := &ast.Match{Base: b}

	i = st

	for {
		t, e, err := s.next(i)
		if err != nil {
			return nil, i, err
		}

		if isIdent(t, "end") {
			return m, e, nil
		}

		pos := s.start(i)

		id, ok := t.(ident)
		if !ok {
			return nil, i, s.errorf(pos, "expected variant name or 'end', got %v", describe(t))
		}

		br := ast.MatchBranch{Base: s.base(pos), Variant: string(id)}

		i, err = s.expect(e, "=>")
		if err != nil {
			return nil, i, err
		}

		i, err = s.expect(i, "[")
		if err != nil {
			return nil, i, err
		}

		br.Body, i, err = s.parseExprs(ctx, i, "]")
		if err != nil {
			return nil, i, errors.Wrap(err, "branch %v", br.Variant)
		}

		m.Branches = append(m.Branches, br)
	}
}

func (s *state) expect(st int, want string) (i int, err error) {
	t, i, err := s.next(st)
	if err != nil {
		return
	}

	if !isPunct(t, want) {
		return st, s.errorf(s.start(st), "expected '%s', got %v", want, describe(t))
	}

	return i, nil
}

func (s *state) expectIdent(st int, what string) (name string, i int, err error) {
	t, i, err := s.next(st)
	if err != nil {
		return
	}

	id, ok := t.(ident)
	if !ok {
		return "", st, s.errorf(s.start(st), "expected %v, got %v", what, describe(t))
	}

	return string(id), i, nil
}

// start returns the position of the token next returns.
func (s *state) start(st int) int {
	i := s.skipSpaces(st)

	for i < len(s.b) && s.b[i] == '#' {
		i = s.skipSpaces(s.skipLine(i))
	}

	return i
}

func (s *state) base(pos int) ast.Base {
	return ast.Base{Loc: s.loc(pos)}
}

func (s *state) errorf(pos int, format string, args ...any) error {
	return &ParseError{Loc: s.loc(pos), Msg: fmt.Sprintf(format, args...)}
}

func isPunct(t token, p string) bool {
	x, ok := t.(punct)
	return ok && string(x) == p
}

func isIdent(t token, p string) bool {
	x, ok := t.(ident)
	return ok && string(x) == p
}

// isTypeVar reports single uppercase letters and lowercase-initial names.
func isTypeVar(name string) bool {
	c := name[0]

	return len(name) == 1 && c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}

func describe(t token) string {
	switch t := t.(type) {
	case nil:
		return "end of input"
	case str:
		return "string literal"
	case ident:
		return fmt.Sprintf("'%s'", []byte(t))
	case punct:
		return fmt.Sprintf("'%s'", []byte(t))
	case number:
		return fmt.Sprintf("number %s", []byte(t))
	default:
		return fmt.Sprintf("%T", t)
	}
}
