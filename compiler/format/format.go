// Package format prints a program back to canonical source.
// Comments are not part of the tree and are dropped.
package format

import (
	"context"
	"strconv"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/cemlang/cem/compiler/ast"
	"github.com/cemlang/cem/compiler/tp"
)

func Format(ctx context.Context, b []byte, x any) ([]byte, error) {
	return format(ctx, b, x, 0)
}

func format(ctx context.Context, b []byte, x any, d int) ([]byte, error) {
	switch x := x.(type) {
	case *ast.Program:
		return formatProgram(ctx, b, x, d)
	case *ast.TypeDef:
		return formatTypeDef(ctx, b, x, d)
	case *ast.WordDef:
		return formatWordDef(ctx, b, x, d)
	case ast.Expr:
		return formatExpr(ctx, b, x, d)
	default:
		return nil, errors.New("unsupported type: %T", x)
	}
}

func formatProgram(ctx context.Context, b []byte, x *ast.Program, d int) (_ []byte, err error) {
	for _, td := range x.TypeDefs {
		b, err = formatTypeDef(ctx, b, td, d)
		if err != nil {
			return nil, errors.Wrap(err, "type %v", td.Name)
		}
	}

	for i, w := range x.WordDefs {
		if i != 0 || len(x.TypeDefs) != 0 {
			b = append(b, '\n')
		}

		b, err = formatWordDef(ctx, b, w, d)
		if err != nil {
			return nil, errors.Wrap(err, "word %v", w.Name)
		}
	}

	return b, nil
}

func formatTypeDef(ctx context.Context, b []byte, x *ast.TypeDef, d int) ([]byte, error) {
	if len(x.Variants) == 0 {
		return nil, errors.New("no variants")
	}

	b = app(b, d, "type %s", x.Name)

	if len(x.Params) != 0 {
		b = append(b, " ("...)

		for i, p := range x.Params {
			if i != 0 {
				b = append(b, ' ')
			}

			b = append(b, p...)
		}

		b = append(b, ')')
	}

	for _, v := range x.Variants {
		b = app(b, 0, " | %s", v.Name)

		if len(v.Fields) != 0 {
			b = append(b, '(')
			b = appendTypes(b, v.Fields)
			b = append(b, ')')
		}
	}

	b = append(b, '\n')

	return b, nil
}

func formatWordDef(ctx context.Context, b []byte, x *ast.WordDef, d int) (_ []byte, err error) {
	b = app(b, d, ": %s %s", x.Name, x.Effect.String())

	if len(x.Body) == 0 {
		return append(b, " ;\n"...), nil
	}

	b = append(b, '\n')
	b = app(b, d+1, "")

	b, err = formatExprs(ctx, b, x.Body, d+1)
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	b = append(b, " ;\n"...)

	return b, nil
}

func formatExprs(ctx context.Context, b []byte, l []ast.Expr, d int) (_ []byte, err error) {
	for i, e := range l {
		if i != 0 {
			b = append(b, ' ')
		}

		b, err = formatExpr(ctx, b, e, d)
		if err != nil {
			return nil, err
		}
	}

	return b, nil
}

// formatExpr continues the current line. d is the depth of that line.
func formatExpr(ctx context.Context, b []byte, x ast.Expr, d int) (_ []byte, err error) {
	switch x := x.(type) {
	case *ast.IntLit:
		return strconv.AppendInt(b, x.Value, 10), nil
	case *ast.BoolLit:
		return strconv.AppendBool(b, x.Value), nil
	case *ast.StringLit:
		return appendString(b, x.Value), nil
	case *ast.WordCall:
		return append(b, x.Name...), nil
	case *ast.Quotation:
		return formatQuotation(ctx, b, x, d)
	case *ast.If:
		b = append(b, "if "...)

		b, err = formatQuotation(ctx, b, x.Then, d)
		if err != nil {
			return nil, errors.Wrap(err, "then")
		}

		b = append(b, ' ')

		b, err = formatQuotation(ctx, b, x.Else, d)
		if err != nil {
			return nil, errors.Wrap(err, "else")
		}

		return b, nil
	case *ast.While:
		b = append(b, "while "...)

		b, err = formatQuotation(ctx, b, x.Cond, d)
		if err != nil {
			return nil, errors.Wrap(err, "cond")
		}

		b = append(b, ' ')

		b, err = formatQuotation(ctx, b, x.Body, d)
		if err != nil {
			return nil, errors.Wrap(err, "body")
		}

		return b, nil
	case *ast.Match:
		b = append(b, "match\n"...)

		for _, br := range x.Branches {
			b = app(b, d+1, "%s => ", br.Variant)

			b, err = formatBlock(ctx, b, br.Body, d+1)
			if err != nil {
				return nil, errors.Wrap(err, "branch %v", br.Variant)
			}

			b = append(b, '\n')
		}

		b = app(b, d, "end")

		return b, nil
	default:
		return nil, errors.New("unsupported expression: %T", x)
	}
}

func formatQuotation(ctx context.Context, b []byte, x *ast.Quotation, d int) ([]byte, error) {
	if x == nil {
		return append(b, "[ ]"...), nil
	}

	return formatBlock(ctx, b, x.Body, d)
}

func formatBlock(ctx context.Context, b []byte, l []ast.Expr, d int) (_ []byte, err error) {
	if len(l) == 0 {
		return append(b, "[ ]"...), nil
	}

	b = append(b, "[ "...)

	b, err = formatExprs(ctx, b, l, d)
	if err != nil {
		return nil, err
	}

	b = append(b, " ]"...)

	return b, nil
}

func appendTypes(b []byte, l []tp.Type) []byte {
	for i, t := range l {
		if i != 0 {
			b = append(b, ' ')
		}

		b = append(b, t.String()...)
	}

	return b
}

func appendString(b []byte, s string) []byte {
	b = append(b, '"')

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\n':
			b = append(b, `\n`...)
		case '\t':
			b = append(b, `\t`...)
		case '\r':
			b = append(b, `\r`...)
		case 0:
			b = append(b, `\0`...)
		case '\\', '"':
			b = append(b, '\\', c)
		default:
			b = append(b, c)
		}
	}

	return append(b, '"')
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t"
	b = append(b, tabs[:d]...)
	b = hfmt.Appendf(b, f, args...)
	return b
}
