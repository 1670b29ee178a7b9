package adapters

import (
	"github.com/accountex-org/ash-reports-sub007/pkg/models/api"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
)

func MapResolvedElementDomainToApi(e domain.ResolvedElement) api.ResolvedElement {
	value := e.Value
	// Error placeholders travel as their display text.
	if ev, ok := value.(domain.ErrorValue); ok {
		value = ev.String()
	}
	return api.ResolvedElement{
		Type:     string(e.Type),
		Value:    value,
		Position: api.Position(e.Position),
		Style:    e.Style,
	}
}

func MapContentNodeDomainToApi(n domain.ContentNode) api.ContentNode {
	out := api.ContentNode{
		BandType:   string(n.BandType),
		BandName:   n.BandName,
		GroupLevel: n.GroupLevel,
		Depth:      n.Depth,
		Elements:   make([]api.ResolvedElement, 0, len(n.Elements)),
	}
	for _, e := range n.Elements {
		out.Elements = append(out.Elements, MapResolvedElementDomainToApi(e))
	}
	return out
}

func MapBatchDomainToApi(b domain.Batch) api.Batch {
	out := api.Batch{
		Seq:     b.Seq,
		Records: b.Records,
		Nodes:   make([]api.ContentNode, 0, len(b.Nodes)),
	}
	for _, n := range b.Nodes {
		out.Nodes = append(out.Nodes, MapContentNodeDomainToApi(n))
	}
	return out
}

func MapWarningDomainToApi(w domain.Warning) api.Warning {
	return api.Warning{
		RecordIndex: w.RecordIndex,
		Band:        string(w.Band),
		Ref:         w.Ref,
		Reason:      w.Reason,
	}
}

func MapDiagnosticsDomainToApi(d domain.Diagnostics) api.Diagnostics {
	out := api.Diagnostics{
		RunID:       d.RunID,
		Report:      d.Report,
		RecordCount: d.RecordCount,
		Batches:     d.Batches,
		ElapsedMs:   d.Elapsed.Milliseconds(),
	}
	for _, w := range d.Warnings {
		out.Warnings = append(out.Warnings, MapWarningDomainToApi(w))
	}
	return out
}

func MapProfileDomainToApi(p domain.SourceProfile) api.SourceProfile {
	return api.SourceProfile{Name: p.Name, Driver: p.Driver}
}
