// Package bands resolves the report's band tree into content nodes. The
// walker is stateless apart from the indexed definition; all run state
// arrives through the Context.
package bands

import (
	"fmt"

	"github.com/accountex-org/ash-reports-sub007/pkg/engine/groups"
	"github.com/accountex-org/ash-reports-sub007/pkg/engine/variables"
	"github.com/accountex-org/ash-reports-sub007/pkg/expr"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/store"
)

// Context is the per-record slice of the run state the walker renders
// against. It is owned by the pipeline consumer.
type Context struct {
	Record      store.Record
	RecordIndex int64
	Vars        *variables.StateMachine
	Groups      *groups.Processor
	Warn        func(domain.Warning)
}

// ElementError is a recoverable resolution failure, promoted to a pipeline
// failure only under the fail_fast strategy.
type ElementError struct {
	Band        domain.BandType
	Ref         string
	RecordIndex int64
	Err         error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("band %s, element %q, record %d: %v", e.Band, e.Ref, e.RecordIndex, e.Err)
}

func (e *ElementError) Unwrap() error { return e.Err }

// Walker renders bands of the report definition in canonical order. The
// emission order itself (title first, footers before summary, and so on) is
// driven by the pipeline; the walker renders whatever band type it is asked
// for, including its nested children.
type Walker struct {
	strategy     domain.ErrorStrategy
	byType       map[domain.BandType][]*domain.Band
	groupHeaders map[int][]*domain.Band
	groupFooters map[int][]*domain.Band
}

// NewWalker indexes the top-level bands of the report by type and, for
// group bands, by level.
func NewWalker(report *domain.Report, strategy domain.ErrorStrategy) *Walker {
	w := &Walker{
		strategy:     strategy,
		byType:       make(map[domain.BandType][]*domain.Band),
		groupHeaders: make(map[int][]*domain.Band),
		groupFooters: make(map[int][]*domain.Band),
	}
	for i := range report.Bands {
		b := &report.Bands[i]
		switch b.Type {
		case domain.BandGroupHeader:
			w.groupHeaders[b.GroupLevel] = append(w.groupHeaders[b.GroupLevel], b)
		case domain.BandGroupFooter:
			w.groupFooters[b.GroupLevel] = append(w.groupFooters[b.GroupLevel], b)
		default:
			w.byType[b.Type] = append(w.byType[b.Type], b)
		}
	}
	return w
}

// Emit renders every top-level band of the given type, in declared order.
func (w *Walker) Emit(ctx *Context, t domain.BandType) ([]domain.ContentNode, error) {
	return w.render(ctx, w.byType[t])
}

// EmitGroup renders the group header or footer bands of one level.
func (w *Walker) EmitGroup(ctx *Context, t domain.BandType, level int) ([]domain.ContentNode, error) {
	switch t {
	case domain.BandGroupHeader:
		return w.render(ctx, w.groupHeaders[level])
	case domain.BandGroupFooter:
		return w.render(ctx, w.groupFooters[level])
	default:
		return nil, fmt.Errorf("band type %q is not group scoped", t)
	}
}

// frame is one entry of the explicit walk stack. Using an arena of frames
// instead of native recursion bounds depth by heap, not call stack, for
// deeply nested band trees.
type frame struct {
	band  *domain.Band
	depth int
}

func (w *Walker) render(ctx *Context, roots []*domain.Band) ([]domain.ContentNode, error) {
	if len(roots) == 0 {
		return nil, nil
	}
	var nodes []domain.ContentNode
	stack := make([]frame, 0, len(roots))
	// Push in reverse so declared order pops first.
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{band: roots[i]})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node, err := w.renderBand(ctx, f.band, f.depth)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)

		for i := len(f.band.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{band: &f.band.Children[i], depth: f.depth + 1})
		}
	}
	return nodes, nil
}

func (w *Walker) renderBand(ctx *Context, band *domain.Band, depth int) (domain.ContentNode, error) {
	node := domain.ContentNode{
		BandType:   band.Type,
		BandName:   band.Name,
		GroupLevel: band.GroupLevel,
		Depth:      depth,
		Elements:   make([]domain.ResolvedElement, 0, len(band.Elements)),
	}
	for i := range band.Elements {
		el := &band.Elements[i]

		if el.Condition != nil {
			v, evalErr := expr.Eval(el.Condition, w.env(ctx))
			if evalErr != nil {
				keep, err := w.recover(ctx, band, el, evalErr)
				if err != nil {
					return node, err
				}
				if keep {
					node.Elements = append(node.Elements, placeholder(el, evalErr.Error()))
				}
				continue
			}
			if !expr.Truthy(v) {
				continue
			}
		}

		value, resolveErr := w.resolve(ctx, el)
		if resolveErr != nil {
			keep, err := w.recover(ctx, band, el, resolveErr)
			if err != nil {
				return node, err
			}
			if !keep {
				continue
			}
			value = domain.ErrorValue{Ref: elementRef(el), Reason: resolveErr.Error()}
		}
		node.Elements = append(node.Elements, domain.ResolvedElement{
			Type:     el.Type,
			Value:    value,
			Position: el.Position,
			Style:    el.Style,
		})
	}
	return node, nil
}

// resolve binds a single element to data.
func (w *Walker) resolve(ctx *Context, el *domain.Element) (any, error) {
	switch el.Type {
	case domain.ElementField:
		return expr.Eval(expr.Field{Path: el.Source}, w.env(ctx))

	case domain.ElementLabel:
		return el.Text, nil

	case domain.ElementExpression:
		return expr.Eval(el.Expr, w.env(ctx))

	case domain.ElementAggregate:
		v, err := ctx.Vars.Value(el.Variable)
		if err != nil {
			return nil, err
		}
		if format, ok := el.Style["format"]; ok {
			return fmt.Sprintf(format, v), nil
		}
		return v, nil

	case domain.ElementImage:
		return el.Source, nil

	case domain.ElementLine, domain.ElementBox:
		// Graphical primitives carry no data beyond position and style.
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown element type %q", el.Type)
	}
}

// recover applies the error strategy to a resolution failure. It returns
// whether a placeholder element should still be emitted; under fail_fast the
// returned error is fatal.
func (w *Walker) recover(ctx *Context, band *domain.Band, el *domain.Element, cause error) (bool, error) {
	if w.strategy == domain.FailFast {
		return false, &ElementError{
			Band:        band.Type,
			Ref:         elementRef(el),
			RecordIndex: ctx.RecordIndex,
			Err:         cause,
		}
	}
	if ctx.Warn != nil {
		ctx.Warn(domain.Warning{
			RecordIndex: ctx.RecordIndex,
			Band:        band.Type,
			Ref:         elementRef(el),
			Reason:      cause.Error(),
		})
	}
	return w.strategy == domain.ContinueOnError, nil
}

func (w *Walker) env(ctx *Context) expr.Env {
	return expr.Env{Record: ctx.Record, Vars: ctx.Vars.Lookup}
}

func placeholder(el *domain.Element, reason string) domain.ResolvedElement {
	return domain.ResolvedElement{
		Type:     el.Type,
		Value:    domain.ErrorValue{Ref: elementRef(el), Reason: reason},
		Position: el.Position,
		Style:    el.Style,
	}
}

func elementRef(el *domain.Element) string {
	switch el.Type {
	case domain.ElementField, domain.ElementImage:
		return el.Source
	case domain.ElementLabel:
		return el.Text
	case domain.ElementAggregate:
		return el.Variable
	default:
		return string(el.Type)
	}
}
