package adapters

import (
	"fmt"
	"time"

	"github.com/accountex-org/ash-reports-sub007/pkg/engine/pipeline"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/api"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
)

var bandTypes = map[string]domain.BandType{
	"title":         domain.BandTitle,
	"page_header":   domain.BandPageHeader,
	"column_header": domain.BandColumnHeader,
	"group_header":  domain.BandGroupHeader,
	"detail_header": domain.BandDetailHeader,
	"detail":        domain.BandDetail,
	"detail_footer": domain.BandDetailFooter,
	"group_footer":  domain.BandGroupFooter,
	"column_footer": domain.BandColumnFooter,
	"page_footer":   domain.BandPageFooter,
	"summary":       domain.BandSummary,
}

var elementTypes = map[string]domain.ElementType{
	"field":      domain.ElementField,
	"label":      domain.ElementLabel,
	"expression": domain.ElementExpression,
	"aggregate":  domain.ElementAggregate,
	"line":       domain.ElementLine,
	"box":        domain.ElementBox,
	"image":      domain.ElementImage,
}

var variableTypes = map[string]domain.VariableType{
	"sum":     domain.VariableSum,
	"count":   domain.VariableCount,
	"average": domain.VariableAverage,
	"min":     domain.VariableMin,
	"max":     domain.VariableMax,
	"custom":  domain.VariableCustom,
}

var resetScopes = map[string]domain.ResetScope{
	"detail": domain.ResetDetail,
	"group":  domain.ResetGroup,
	"page":   domain.ResetPage,
	"report": domain.ResetReport,
}

func MapReportApiToDomain(r api.ReportDefinition) (*domain.Report, error) {
	out := &domain.Report{
		Name:       r.Name,
		DataSource: r.DataSource,
	}
	for i, b := range r.Bands {
		band, err := mapBand(b)
		if err != nil {
			return nil, fmt.Errorf("band[%d]: %w", i, err)
		}
		out.Bands = append(out.Bands, band)
	}
	for i, v := range r.Variables {
		variable, err := mapVariable(v)
		if err != nil {
			return nil, fmt.Errorf("variable[%d]: %w", i, err)
		}
		out.Variables = append(out.Variables, variable)
	}
	for i, g := range r.Groups {
		key, err := MapExpressionApiToDomain(&g.Key)
		if err != nil {
			return nil, fmt.Errorf("group[%d] key: %w", i, err)
		}
		out.Groups = append(out.Groups, domain.Group{Name: g.Name, Level: g.Level, Key: key})
	}
	return out, nil
}

func mapBand(b api.Band) (domain.Band, error) {
	t, ok := bandTypes[b.Type]
	if !ok {
		return domain.Band{}, fmt.Errorf("unknown band type %q", b.Type)
	}
	out := domain.Band{Name: b.Name, Type: t, GroupLevel: b.GroupLevel}
	for i, e := range b.Elements {
		el, err := mapElement(e)
		if err != nil {
			return domain.Band{}, fmt.Errorf("element[%d]: %w", i, err)
		}
		out.Elements = append(out.Elements, el)
	}
	for i, c := range b.Children {
		child, err := mapBand(c)
		if err != nil {
			return domain.Band{}, fmt.Errorf("child[%d]: %w", i, err)
		}
		out.Children = append(out.Children, child)
	}
	return out, nil
}

func mapElement(e api.Element) (domain.Element, error) {
	t, ok := elementTypes[e.Type]
	if !ok {
		return domain.Element{}, fmt.Errorf("unknown element type %q", e.Type)
	}
	ex, err := MapExpressionApiToDomain(e.Expr)
	if err != nil {
		return domain.Element{}, fmt.Errorf("expr: %w", err)
	}
	cond, err := MapExpressionApiToDomain(e.Condition)
	if err != nil {
		return domain.Element{}, fmt.Errorf("condition: %w", err)
	}
	return domain.Element{
		Type:      t,
		Source:    e.Source,
		Text:      e.Text,
		Expr:      ex,
		Variable:  e.Variable,
		Position:  domain.Position(e.Position),
		Style:     e.Style,
		Condition: cond,
	}, nil
}

func mapVariable(v api.Variable) (domain.Variable, error) {
	t, ok := variableTypes[v.Type]
	if !ok {
		return domain.Variable{}, fmt.Errorf("unknown variable type %q", v.Type)
	}
	scope, ok := resetScopes[v.ResetOn]
	if !ok {
		return domain.Variable{}, fmt.Errorf("unknown reset scope %q", v.ResetOn)
	}
	ex, err := MapExpressionApiToDomain(v.Expr)
	if err != nil {
		return domain.Variable{}, fmt.Errorf("expr: %w", err)
	}
	return domain.Variable{
		Name:       v.Name,
		Type:       t,
		Expr:       ex,
		ResetOn:    scope,
		ResetGroup: v.ResetGroup,
		Combinator: v.Combinator,
	}, nil
}

// MapRenderOptionsApiToDomain converts per-request options to an engine
// config. Zero values stay zero so configured defaults apply downstream.
func MapRenderOptionsApiToDomain(o api.RenderOptions) (pipeline.Config, error) {
	cfg := pipeline.Config{
		ChunkSize:      o.ChunkSize,
		MaxMemoryBytes: o.MaxMemoryBytes,
		Timeout:        time.Duration(o.TimeoutMs) * time.Millisecond,
	}
	if o.ErrorStrategy != "" {
		switch s := domain.ErrorStrategy(o.ErrorStrategy); s {
		case domain.FailFast, domain.ContinueOnError, domain.SkipInvalid:
			cfg.Strategy = s
		default:
			return pipeline.Config{}, fmt.Errorf("unknown error strategy %q", o.ErrorStrategy)
		}
	}
	return cfg, nil
}
