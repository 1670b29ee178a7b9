// Package adapters maps between the JSON wire models and the domain model.
// Mapping from the wire side validates enums and shapes; mapping to the wire
// side is total.
package adapters

import (
	"fmt"

	"github.com/accountex-org/ash-reports-sub007/pkg/expr"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/api"
)

var ops = map[string]expr.Op{
	"+":   expr.OpAdd,
	"-":   expr.OpSub,
	"*":   expr.OpMul,
	"/":   expr.OpDiv,
	"%":   expr.OpMod,
	"==":  expr.OpEq,
	"!=":  expr.OpNe,
	"<":   expr.OpLt,
	"<=":  expr.OpLe,
	">":   expr.OpGt,
	">=":  expr.OpGe,
	"and": expr.OpAnd,
	"or":  expr.OpOr,
}

// MapExpressionApiToDomain converts a wire expression tree to its AST form.
// A nil input maps to a nil node.
func MapExpressionApiToDomain(e *api.Expression) (expr.Node, error) {
	if e == nil {
		return nil, nil
	}
	switch e.Type {
	case "field":
		if e.Path == "" {
			return nil, fmt.Errorf("field expression needs a path")
		}
		return expr.Field{Path: e.Path}, nil
	case "literal":
		return expr.Literal{Value: e.Value}, nil
	case "variable":
		if e.Name == "" {
			return nil, fmt.Errorf("variable expression needs a name")
		}
		return expr.Var{Name: e.Name}, nil
	case "binary":
		op, ok := ops[e.Op]
		if !ok {
			return nil, fmt.Errorf("unknown operator %q", e.Op)
		}
		left, err := MapExpressionApiToDomain(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := MapExpressionApiToDomain(e.Right)
		if err != nil {
			return nil, err
		}
		if left == nil || right == nil {
			return nil, fmt.Errorf("binary %q needs both operands", e.Op)
		}
		return expr.Binary{Op: op, Left: left, Right: right}, nil
	case "concat":
		if len(e.Parts) == 0 {
			return nil, fmt.Errorf("concat needs at least one part")
		}
		parts := make([]expr.Node, 0, len(e.Parts))
		for i := range e.Parts {
			p, err := MapExpressionApiToDomain(&e.Parts[i])
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
		}
		return expr.Concat{Parts: parts}, nil
	case "not":
		inner, err := MapExpressionApiToDomain(e.Expr)
		if err != nil {
			return nil, err
		}
		if inner == nil {
			return nil, fmt.Errorf("not needs an operand")
		}
		return expr.Not{Expr: inner}, nil
	default:
		return nil, fmt.Errorf("unknown expression type %q", e.Type)
	}
}
