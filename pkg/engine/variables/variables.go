// Package variables owns the live accumulator values of a single report run.
// A StateMachine is created per execution and mutated by exactly one
// goroutine, so no locking is needed.
package variables

import (
	"fmt"
	"math"
	"sort"

	"github.com/accountex-org/ash-reports-sub007/pkg/expr"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/store"
	"golang.org/x/exp/maps"
)

// Combinator combines the current value of a custom variable with the
// contribution computed for one record. current is nil before the first
// contribution of a scope.
type Combinator func(current, contribution any) any

// StateMachine tracks the live value of every report variable.
//
// The boundary ordering contract is the caller's: footer bands read values
// first, then Reset is applied for the closing scope, then Update runs for
// the first record of the new scope.
type StateMachine struct {
	defs        map[string]domain.Variable
	order       []string
	live        map[string]*liveValue
	combinators map[string]Combinator
}

type liveValue struct {
	sum   float64
	count int64
	cur   any // min/max bound or custom value
}

// NewStateMachine builds live values for every variable of the report.
// Custom variables must name a registered combinator.
func NewStateMachine(report *domain.Report, combinators map[string]Combinator) (*StateMachine, error) {
	sm := &StateMachine{
		defs:        make(map[string]domain.Variable, len(report.Variables)),
		live:        make(map[string]*liveValue, len(report.Variables)),
		combinators: combinators,
	}
	for _, v := range report.Variables {
		if _, dup := sm.defs[v.Name]; dup {
			return nil, fmt.Errorf("duplicate variable %q", v.Name)
		}
		if v.Type == domain.VariableCustom {
			if _, ok := combinators[v.Combinator]; !ok {
				return nil, fmt.Errorf("variable %q references unknown combinator %q", v.Name, v.Combinator)
			}
		}
		sm.defs[v.Name] = v
		sm.order = append(sm.order, v.Name)
		lv := &liveValue{}
		reset(lv, v.Type)
		sm.live[v.Name] = lv
	}
	return sm, nil
}

// Names returns variable names in declaration order.
func (sm *StateMachine) Names() []string {
	return sm.order
}

// Update evaluates the variable's expression against the record and folds
// the contribution into the live value. Returns the new value as Value
// would report it.
func (sm *StateMachine) Update(name string, rec store.Record) (any, error) {
	def, ok := sm.defs[name]
	if !ok {
		return nil, &expr.VarError{Name: name}
	}
	lv := sm.live[name]

	var contribution any
	if def.Expr != nil {
		// Variable expressions reference record fields only; variable
		// references are rejected at validation time.
		v, err := expr.Eval(def.Expr, expr.Env{Record: rec})
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		contribution = v
	}

	switch def.Type {
	case domain.VariableSum:
		f, err := numeric(name, contribution)
		if err != nil {
			return nil, err
		}
		lv.sum += f

	case domain.VariableCount:
		// The expression, when present, acts as a filter predicate.
		if def.Expr == nil || expr.Truthy(contribution) {
			lv.count++
		}

	case domain.VariableAverage:
		f, err := numeric(name, contribution)
		if err != nil {
			return nil, err
		}
		lv.sum += f
		lv.count++

	case domain.VariableMin:
		f, err := numeric(name, contribution)
		if err != nil {
			return nil, err
		}
		if f < lv.cur.(float64) {
			lv.cur = f
		}

	case domain.VariableMax:
		f, err := numeric(name, contribution)
		if err != nil {
			return nil, err
		}
		if f > lv.cur.(float64) {
			lv.cur = f
		}

	case domain.VariableCustom:
		lv.cur = sm.combinators[def.Combinator](lv.cur, contribution)

	default:
		return nil, fmt.Errorf("variable %q has unknown type %q", name, def.Type)
	}

	return sm.value(def, lv), nil
}

// UpdateAll applies Update for every variable in declaration order.
func (sm *StateMachine) UpdateAll(rec store.Record) error {
	for _, name := range sm.order {
		if _, err := sm.Update(name, rec); err != nil {
			return err
		}
	}
	return nil
}

// Reset returns every variable whose reset scope matches to its identity
// value. For the group scope only variables bound to exactly groupLevel are
// reset; a break at an outer level also breaks every deeper level, so the
// caller fires one Reset per broken level.
func (sm *StateMachine) Reset(scope domain.ResetScope, groupLevel int) {
	for _, name := range sm.order {
		def := sm.defs[name]
		if def.ResetOn != scope {
			continue
		}
		if scope == domain.ResetGroup && def.ResetGroup != groupLevel {
			continue
		}
		reset(sm.live[name], def.Type)
	}
}

// Value returns the current value without mutating any state. Calling it
// repeatedly between updates yields the same result.
func (sm *StateMachine) Value(name string) (any, error) {
	def, ok := sm.defs[name]
	if !ok {
		return nil, &expr.VarError{Name: name}
	}
	return sm.value(def, sm.live[name]), nil
}

// Lookup adapts the state machine to the expression environment.
func (sm *StateMachine) Lookup(name string) (any, bool) {
	def, ok := sm.defs[name]
	if !ok {
		return nil, false
	}
	return sm.value(def, sm.live[name]), true
}

// Snapshot returns all current values keyed by name, in stable order for
// deterministic diagnostics output.
func (sm *StateMachine) Snapshot() map[string]any {
	out := make(map[string]any, len(sm.order))
	names := maps.Keys(sm.defs)
	sort.Strings(names)
	for _, name := range names {
		out[name] = sm.value(sm.defs[name], sm.live[name])
	}
	return out
}

func (sm *StateMachine) value(def domain.Variable, lv *liveValue) any {
	switch def.Type {
	case domain.VariableSum:
		return lv.sum
	case domain.VariableCount:
		return lv.count
	case domain.VariableAverage:
		// Divide lazily so running precision loss never accumulates.
		if lv.count == 0 {
			return 0.0
		}
		return lv.sum / float64(lv.count)
	case domain.VariableMin, domain.VariableMax:
		return lv.cur
	case domain.VariableCustom:
		return lv.cur
	}
	return nil
}

func reset(lv *liveValue, t domain.VariableType) {
	lv.sum = 0
	lv.count = 0
	switch t {
	case domain.VariableMin:
		lv.cur = math.Inf(1)
	case domain.VariableMax:
		lv.cur = math.Inf(-1)
	default:
		lv.cur = nil
	}
}

func numeric(name string, v any) (float64, error) {
	if v == nil {
		return 0, nil
	}
	f, ok := expr.ToFloat(v)
	if !ok {
		return 0, fmt.Errorf("variable %q: non-numeric contribution %T", name, v)
	}
	return f, nil
}
