package pipeline

import (
	"fmt"
	"sort"

	"github.com/accountex-org/ash-reports-sub007/pkg/engine/variables"
	"github.com/accountex-org/ash-reports-sub007/pkg/expr"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
)

var validBandTypes = map[domain.BandType]bool{
	domain.BandTitle: true, domain.BandPageHeader: true, domain.BandColumnHeader: true,
	domain.BandGroupHeader: true, domain.BandDetailHeader: true, domain.BandDetail: true,
	domain.BandDetailFooter: true, domain.BandGroupFooter: true, domain.BandColumnFooter: true,
	domain.BandPageFooter: true, domain.BandSummary: true,
}

var validElementTypes = map[domain.ElementType]bool{
	domain.ElementField: true, domain.ElementLabel: true, domain.ElementExpression: true,
	domain.ElementAggregate: true, domain.ElementLine: true, domain.ElementBox: true,
	domain.ElementImage: true,
}

var validVariableTypes = map[domain.VariableType]bool{
	domain.VariableSum: true, domain.VariableCount: true, domain.VariableAverage: true,
	domain.VariableMin: true, domain.VariableMax: true, domain.VariableCustom: true,
}

var validResetScopes = map[domain.ResetScope]bool{
	domain.ResetDetail: true, domain.ResetGroup: true, domain.ResetPage: true, domain.ResetReport: true,
}

// validateReport runs all cross-reference checks on the definition. Any
// problem here is a DefinitionError; the pipeline never starts.
func validateReport(report *domain.Report, combinators map[string]variables.Combinator) error {
	var problems []string

	levels := validateGroups(report, &problems)
	validateBands(report, levels, &problems)
	validateVariables(report, levels, combinators, &problems)

	if len(problems) > 0 {
		return &DefinitionError{Report: report.Name, Problems: problems}
	}
	return nil
}

// validateGroups checks that levels are contiguous integers starting at 1
// and returns the highest level.
func validateGroups(report *domain.Report, problems *[]string) int {
	seen := make([]int, 0, len(report.Groups))
	for _, g := range report.Groups {
		if g.Key == nil {
			*problems = append(*problems, fmt.Sprintf("group %q has no key expression", g.Name))
		}
		seen = append(seen, g.Level)
	}
	sort.Ints(seen)
	for i, level := range seen {
		if level != i+1 {
			*problems = append(*problems, fmt.Sprintf("group levels must be contiguous starting at 1, got %v", seen))
			return len(report.Groups)
		}
	}
	return len(report.Groups)
}

func validateBands(report *domain.Report, levels int, problems *[]string) {
	titles, summaries := 0, 0

	var walkBand func(b *domain.Band, top bool)
	walkBand = func(b *domain.Band, top bool) {
		if !validBandTypes[b.Type] {
			*problems = append(*problems, fmt.Sprintf("band %q has unknown type %q", b.Name, b.Type))
			return
		}
		switch b.Type {
		case domain.BandTitle:
			titles++
		case domain.BandSummary:
			summaries++
		case domain.BandGroupHeader, domain.BandGroupFooter:
			if b.GroupLevel < 1 || b.GroupLevel > levels {
				*problems = append(*problems,
					fmt.Sprintf("band %q references group level %d, defined levels are 1..%d", b.Name, b.GroupLevel, levels))
			}
		}
		for i := range b.Elements {
			validateElement(b, &b.Elements[i], problems)
		}
		for i := range b.Children {
			walkBand(&b.Children[i], false)
		}
	}
	for i := range report.Bands {
		walkBand(&report.Bands[i], true)
	}

	if titles > 1 {
		*problems = append(*problems, fmt.Sprintf("at most one title band allowed, got %d", titles))
	}
	if summaries > 1 {
		*problems = append(*problems, fmt.Sprintf("at most one summary band allowed, got %d", summaries))
	}
}

func validateElement(b *domain.Band, el *domain.Element, problems *[]string) {
	if !validElementTypes[el.Type] {
		*problems = append(*problems, fmt.Sprintf("band %q has element of unknown type %q", b.Name, el.Type))
		return
	}
	switch el.Type {
	case domain.ElementField:
		if el.Source == "" {
			*problems = append(*problems, fmt.Sprintf("band %q has field element without source path", b.Name))
		}
	case domain.ElementExpression:
		if el.Expr == nil {
			*problems = append(*problems, fmt.Sprintf("band %q has expression element without expression", b.Name))
		}
	case domain.ElementAggregate:
		if el.Variable == "" {
			*problems = append(*problems, fmt.Sprintf("band %q has aggregate element without variable name", b.Name))
		}
		// An unknown variable name is a recoverable resolution problem at
		// render time, not a definition error.
	}
}

func validateVariables(report *domain.Report, levels int, combinators map[string]variables.Combinator, problems *[]string) {
	names := make(map[string]bool, len(report.Variables))
	for _, v := range report.Variables {
		if v.Name == "" {
			*problems = append(*problems, "variable without name")
			continue
		}
		if names[v.Name] {
			*problems = append(*problems, fmt.Sprintf("duplicate variable %q", v.Name))
		}
		names[v.Name] = true

		if !validVariableTypes[v.Type] {
			*problems = append(*problems, fmt.Sprintf("variable %q has unknown type %q", v.Name, v.Type))
		}
		if !validResetScopes[v.ResetOn] {
			*problems = append(*problems, fmt.Sprintf("variable %q has unknown reset scope %q", v.Name, v.ResetOn))
		}
		if v.ResetOn == domain.ResetGroup && (v.ResetGroup < 1 || v.ResetGroup > levels) {
			*problems = append(*problems,
				fmt.Sprintf("variable %q resets on group level %d, defined levels are 1..%d", v.Name, v.ResetGroup, levels))
		}
		if v.Type == domain.VariableCustom {
			if _, ok := combinators[v.Combinator]; !ok {
				*problems = append(*problems, fmt.Sprintf("variable %q references unknown combinator %q", v.Name, v.Combinator))
			}
		}
		// Variable expressions may reference record fields only. Allowing
		// variable-to-variable references would make the result depend on
		// update order, so it is rejected outright.
		if refs := expr.Variables(v.Expr); len(refs) > 0 {
			*problems = append(*problems,
				fmt.Sprintf("variable %q references variables %v; variable expressions may reference record fields only", v.Name, refs))
		}
	}
}
