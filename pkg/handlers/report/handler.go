package report

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/accountex-org/ash-reports-sub007/pkg/adapters"
	"github.com/accountex-org/ash-reports-sub007/pkg/engine/pipeline"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/api"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
	"github.com/accountex-org/ash-reports-sub007/pkg/services/config"
	"github.com/accountex-org/ash-reports-sub007/pkg/services/report"
	"github.com/rs/zerolog"
)

type Handler struct {
	svc      report.Service
	registry config.Registry
}

func NewHandler(svc report.Service, registry config.Registry) *Handler {
	return &Handler{svc: svc, registry: registry}
}

// Render runs a report to completion and returns the assembled document.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	def, ref, cfg, ok := h.decodeRenderRequest(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Render(ctx, def, ref, cfg)
	if err != nil {
		writeRunError(w, logger, err)
		return
	}

	response := api.RenderResponse{
		Document:    make([]api.ContentNode, 0, len(res.Document)),
		Diagnostics: adapters.MapDiagnosticsDomainToApi(res.Diagnostics),
	}
	for _, n := range res.Document {
		response.Document = append(response.Document, adapters.MapContentNodeDomainToApi(n))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error().
			Err(err).
			Str("report", def.Name).
			Msg("failed to encode render response")
	}
}

// RenderStream runs a report and writes batches as NDJSON, one batch per
// line, followed by a final diagnostics line. Headers go out before the
// first batch, so run failures after that point surface on the trailing
// line rather than as a status code.
func (h *Handler) RenderStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	def, ref, cfg, ok := h.decodeRenderRequest(w, r)
	if !ok {
		return
	}

	stream, err := h.svc.RenderStream(ctx, def, ref, cfg)
	if err != nil {
		writeRunError(w, logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	for b := range stream.Batches() {
		if err := enc.Encode(adapters.MapBatchDomainToApi(b)); err != nil {
			logger.Error().
				Err(err).
				Str("report", def.Name).
				Msg("client went away mid-stream")
			break
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	diag, runErr := stream.Wait()
	trailer := struct {
		Diagnostics api.Diagnostics `json:"diagnostics"`
		Error       string          `json:"error,omitempty"`
	}{Diagnostics: adapters.MapDiagnosticsDomainToApi(diag)}
	if runErr != nil {
		trailer.Error = runErr.Error()
	}
	if err := enc.Encode(trailer); err != nil {
		logger.Error().
			Err(err).
			Str("report", def.Name).
			Msg("failed to encode stream trailer")
	}
	if flusher != nil {
		flusher.Flush()
	}
}

// Validate checks a definition without running it.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	var request api.ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	response := api.ValidateResponse{Valid: true}
	def, err := adapters.MapReportApiToDomain(request.Report)
	if err != nil {
		response = api.ValidateResponse{Valid: false, Problems: []string{err.Error()}}
	} else if err := h.svc.Validate(ctx, def); err != nil {
		var defErr *pipeline.DefinitionError
		if errors.As(err, &defErr) {
			response = api.ValidateResponse{Valid: false, Problems: defErr.Problems}
		} else {
			response = api.ValidateResponse{Valid: false, Problems: []string{err.Error()}}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error().
			Err(err).
			Msg("failed to encode validate response")
	}
}

// ListProfiles returns the configured source profiles.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	if h.registry == nil {
		http.Error(w, "no source registry configured", http.StatusNotFound)
		return
	}
	profiles, err := h.registry.GetProfiles(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := make([]api.SourceProfile, 0, len(profiles))
	for _, p := range profiles {
		response = append(response, adapters.MapProfileDomainToApi(p))
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error().
			Err(err).
			Msg("failed to encode profiles")
	}
}

func (h *Handler) decodeRenderRequest(w http.ResponseWriter, r *http.Request) (def *domain.Report, ref report.SourceRef, cfg pipeline.Config, ok bool) {
	var request api.RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return nil, report.SourceRef{}, pipeline.Config{}, false
	}
	def, err := adapters.MapReportApiToDomain(request.Report)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, report.SourceRef{}, pipeline.Config{}, false
	}
	cfg, err = adapters.MapRenderOptionsApiToDomain(request.Options)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, report.SourceRef{}, pipeline.Config{}, false
	}
	ref = report.SourceRef{
		Records: request.Source.Records,
		Path:    request.Source.Path,
		Profile: request.Source.Profile,
		Query:   request.Source.Query,
	}
	return def, ref, cfg, true
}

// writeRunError maps run failures to status codes: definition problems are
// the client's fault, everything else is ours.
func writeRunError(w http.ResponseWriter, logger *zerolog.Logger, err error) {
	var defErr *pipeline.DefinitionError
	if errors.As(err, &defErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		resp := api.ValidateResponse{Valid: false, Problems: defErr.Problems}
		if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
			logger.Error().Err(encErr).Msg("failed to encode definition error")
		}
		return
	}
	logger.Error().Err(err).Msg("report run failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
