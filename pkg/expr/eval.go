package expr

import (
	"fmt"
	"strings"
)

// Env is the evaluation environment: the current record and a lookup for
// resolved variable values.
type Env struct {
	Record map[string]any
	Vars   func(name string) (any, bool)
}

// FieldError reports a field path that does not resolve in the current
// record. Callers decide whether this is fatal or becomes a placeholder.
type FieldError struct {
	Path string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q not present in record", e.Path)
}

// VarError reports a reference to an unknown variable.
type VarError struct {
	Name string
}

func (e *VarError) Error() string {
	return fmt.Sprintf("unknown variable %q", e.Name)
}

// Eval evaluates the tree against env. Numeric arithmetic is carried out in
// float64; "+" on two strings concatenates.
func Eval(n Node, env Env) (any, error) {
	switch t := n.(type) {
	case Literal:
		return t.Value, nil

	case Field:
		v, ok := lookupPath(env.Record, t.Path)
		if !ok {
			return nil, &FieldError{Path: t.Path}
		}
		return v, nil

	case Var:
		if env.Vars == nil {
			return nil, &VarError{Name: t.Name}
		}
		v, ok := env.Vars(t.Name)
		if !ok {
			return nil, &VarError{Name: t.Name}
		}
		return v, nil

	case Concat:
		var sb strings.Builder
		for _, p := range t.Parts {
			v, err := Eval(p, env)
			if err != nil {
				return nil, err
			}
			sb.WriteString(stringify(v))
		}
		return sb.String(), nil

	case Not:
		v, err := Eval(t.Expr, env)
		if err != nil {
			return nil, err
		}
		return !Truthy(v), nil

	case Binary:
		return evalBinary(t, env)

	case nil:
		return nil, fmt.Errorf("nil expression")

	default:
		return nil, fmt.Errorf("unsupported expression node %T", n)
	}
}

func evalBinary(b Binary, env Env) (any, error) {
	// Short-circuit logical operators before evaluating the right side.
	if b.Op == OpAnd || b.Op == OpOr {
		lv, err := Eval(b.Left, env)
		if err != nil {
			return nil, err
		}
		if b.Op == OpAnd && !Truthy(lv) {
			return false, nil
		}
		if b.Op == OpOr && Truthy(lv) {
			return true, nil
		}
		rv, err := Eval(b.Right, env)
		if err != nil {
			return nil, err
		}
		return Truthy(rv), nil
	}

	lv, err := Eval(b.Left, env)
	if err != nil {
		return nil, err
	}
	rv, err := Eval(b.Right, env)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case OpAdd:
		if ls, lok := lv.(string); lok {
			if rs, rok := rv.(string); rok {
				return ls + rs, nil
			}
		}
		return arith(b.Op, lv, rv)
	case OpSub, OpMul, OpDiv, OpMod:
		return arith(b.Op, lv, rv)
	case OpEq:
		return equal(lv, rv), nil
	case OpNe:
		return !equal(lv, rv), nil
	case OpLt, OpLe, OpGt, OpGe:
		return order(b.Op, lv, rv)
	default:
		return nil, fmt.Errorf("unsupported operator %q", b.Op)
	}
}

func arith(op Op, lv, rv any) (any, error) {
	l, lok := ToFloat(lv)
	r, rok := ToFloat(rv)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %q needs numeric operands, got %T and %T", op, lv, rv)
	}
	switch op {
	case OpAdd:
		return l + r, nil
	case OpSub:
		return l - r, nil
	case OpMul:
		return l * r, nil
	case OpDiv:
		if r == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return l / r, nil
	case OpMod:
		if r == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return float64(int64(l) % int64(r)), nil
	}
	return nil, fmt.Errorf("unsupported operator %q", op)
}

func equal(lv, rv any) bool {
	if l, lok := ToFloat(lv); lok {
		if r, rok := ToFloat(rv); rok {
			return l == r
		}
	}
	return stringify(lv) == stringify(rv)
}

func order(op Op, lv, rv any) (any, error) {
	var cmp int
	l, lok := ToFloat(lv)
	r, rok := ToFloat(rv)
	switch {
	case lok && rok:
		switch {
		case l < r:
			cmp = -1
		case l > r:
			cmp = 1
		}
	default:
		cmp = strings.Compare(stringify(lv), stringify(rv))
	}
	switch op {
	case OpLt:
		return cmp < 0, nil
	case OpLe:
		return cmp <= 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpGe:
		return cmp >= 0, nil
	}
	return nil, fmt.Errorf("unsupported operator %q", op)
}

// Truthy reports whether a value counts as true in a condition: non-false
// bools, non-zero numbers, non-empty strings, non-nil everything else.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	default:
		if f, ok := ToFloat(v); ok {
			return f != 0
		}
		return true
	}
}

// ToFloat converts the numeric types that show up in decoded records
// (JSON numbers, SQL integers) to float64.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func lookupPath(rec map[string]any, path string) (any, bool) {
	if rec == nil {
		return nil, false
	}
	cur := any(rec)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
