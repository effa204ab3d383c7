// Package httpapi exposes the routing service over JSON/HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"routingcore/internal/adapters/reports"
	"routingcore/internal/blob"
	"routingcore/internal/routing"
	"routingcore/pkg/domain"
)

const maxBodyBytes = 1 << 20

// Registry is the routing service surface served over HTTP.
type Registry interface {
	Put(ctx context.Context, op domain.Operation) (domain.Operation, domain.Result, error)
	PutAll(ctx context.Context, ops []domain.Operation) ([]domain.Operation, domain.Result, error)
	Remove(ctx context.Context, code string, force bool) (domain.Operation, domain.Result, error)
	Get(code string) (domain.Operation, bool)
	Filter(predicate domain.Predicate) []domain.Operation
	SequenceFrom(ctx context.Context, start string) routing.Sequence
	Stats(ctx context.Context, predicate domain.Predicate) routing.Stats
	Estimate(ctx context.Context, start string, quantity float64) (routing.Estimate, error)
	Validate(ctx context.Context) []domain.StructuralWarning
}

// Handler routes requests under /operations, /routing and /reports. The
// metrics handler, when set, is served at /metrics.
type Handler struct {
	Registry Registry
	Reports  *reports.Exporter
	Metrics  http.Handler
}

// NewHandler constructs a handler over registry.
func NewHandler(registry Registry) *Handler {
	return &Handler{Registry: registry}
}

type writeResponse struct {
	Operation domain.Operation           `json:"operation"`
	Warnings  []domain.StructuralWarning `json:"warnings"`
}

type batchResponse struct {
	Operations []domain.Operation         `json:"operations"`
	Warnings   []domain.StructuralWarning `json:"warnings"`
}

type errorResponse struct {
	Error  string                `json:"error"`
	Kind   domain.ValidationKind `json:"kind,omitempty"`
	Field  string                `json:"field,omitempty"`
	Code   string                `json:"code,omitempty"`
	Ref    string                `json:"ref,omitempty"`
	Detail string                `json:"detail,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Registry == nil {
		writeError(w, http.StatusInternalServerError, "routing registry not configured")
		return
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/metrics" && h.Metrics != nil:
		h.Metrics.ServeHTTP(w, r)
	case path == "/routing/health":
		h.handleHealth(w, r)
	case path == "/operations":
		h.handleCollection(w, r)
	case path == "/operations/stats":
		h.handleStats(w, r)
	case strings.HasPrefix(path, "/operations/"):
		h.handleOperation(w, r, strings.TrimPrefix(path, "/operations/"))
	case strings.HasPrefix(path, "/reports/"):
		h.handleReports(w, r, strings.TrimPrefix(path, "/reports/"))
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		predicate, err := filterFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ops := h.Registry.Filter(predicate)
		if ops == nil {
			ops = []domain.Operation{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"operations": ops})
	case http.MethodPost, http.MethodPut:
		var ops []domain.Operation
		if !decodeBody(w, r, &ops) {
			return
		}
		stored, res, err := h.Registry.PutAll(r.Context(), ops)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, batchResponse{Operations: stored, Warnings: nonNil(res.Warnings())})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodPut)
	}
}

func (h *Handler) handleOperation(w http.ResponseWriter, r *http.Request, rest string) {
	code, sub, _ := strings.Cut(rest, "/")
	if code == "" {
		http.NotFound(w, r)
		return
	}
	switch sub {
	case "":
		h.handleRecord(w, r, code)
	case "sequence":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		seq := h.Registry.SequenceFrom(r.Context(), code)
		writeJSON(w, http.StatusOK, sequenceBody(seq))
	case "estimate":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleEstimate(w, r, code)
	case "sequence/export":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		h.export(w, r, func(ctx context.Context) (blob.Info, error) {
			return h.Reports.ExportSequence(ctx, code)
		})
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request, code string) {
	switch r.Method {
	case http.MethodGet:
		op, ok := h.Registry.Get(code)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("operation %s not found", code))
			return
		}
		writeJSON(w, http.StatusOK, op)
	case http.MethodPut:
		var op domain.Operation
		if !decodeBody(w, r, &op) {
			return
		}
		op.OperationCode = code
		stored, res, err := h.Registry.Put(r.Context(), op)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, writeResponse{Operation: stored, Warnings: nonNil(res.Warnings())})
	case http.MethodDelete:
		force, err := optionalBool(r.URL.Query().Get("force"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "force: "+err.Error())
			return
		}
		removed, res, err := h.Registry.Remove(r.Context(), code, force)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, writeResponse{Operation: removed, Warnings: nonNil(res.Warnings())})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (h *Handler) handleEstimate(w http.ResponseWriter, r *http.Request, code string) {
	quantity := 1.0
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		q, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "quantity must be a number")
			return
		}
		quantity = q
	}
	est, err := h.Registry.Estimate(r.Context(), code, quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if est.Lines == nil {
		est.Lines = []routing.EstimateLine{}
	}
	est.Warnings = nonNil(est.Warnings)
	writeJSON(w, http.StatusOK, est)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	predicate, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Registry.Stats(r.Context(), predicate))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	warnings := nonNil(h.Registry.Validate(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"healthy": len(warnings) == 0, "warnings": warnings})
}

func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request, kind string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	switch kind {
	case "stats":
		predicate, err := filterFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.export(w, r, func(ctx context.Context) (blob.Info, error) {
			return h.Reports.ExportStats(ctx, predicate, r.URL.RawQuery)
		})
	case "snapshot":
		h.export(w, r, func(ctx context.Context) (blob.Info, error) {
			return h.Reports.ExportSnapshot(ctx)
		})
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, fn func(context.Context) (blob.Info, error)) {
	if h.Reports == nil {
		writeError(w, http.StatusNotFound, "report archive not configured")
		return
	}
	info, err := fn(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, info)
	case errors.Is(err, reports.ErrEmptySequence):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, blob.ErrExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func sequenceBody(seq routing.Sequence) map[string]any {
	ops := seq.Operations
	if ops == nil {
		ops = []domain.Operation{}
	}
	return map[string]any{"operations": ops, "warnings": nonNil(seq.Warnings)}
}

// filterFromQuery combines the type, category, risk and active parameters
// with AND. Absent parameters match everything.
func filterFromQuery(r *http.Request) (domain.Predicate, error) {
	q := r.URL.Query()
	var preds []domain.Predicate
	if v := q.Get("type"); v != "" {
		t := domain.OperationType(v)
		if !t.Valid() {
			return nil, fmt.Errorf("unknown operation type %q", v)
		}
		preds = append(preds, domain.ByType(t))
	}
	if v := q.Get("category"); v != "" {
		c := domain.Category(v)
		if !c.Valid() {
			return nil, fmt.Errorf("unknown category %q", v)
		}
		preds = append(preds, domain.ByCategory(c))
	}
	if v := q.Get("risk"); v != "" {
		rl := domain.RiskLevel(v)
		if !rl.Valid() {
			return nil, fmt.Errorf("unknown risk level %q", v)
		}
		preds = append(preds, domain.ByRiskLevel(rl))
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("active: %w", err)
		}
		preds = append(preds, domain.ByActive(active))
	}
	return domain.And(preds...), nil
}

func optionalBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, err error) {
	var verr domain.ValidationError
	var nf domain.ErrNotFound
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  err.Error(),
			Kind:   verr.Kind,
			Field:  verr.Field,
			Code:   verr.Code,
			Ref:    verr.Ref,
			Detail: verr.Detail,
		})
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func nonNil(warnings []domain.StructuralWarning) []domain.StructuralWarning {
	if warnings == nil {
		return []domain.StructuralWarning{}
	}
	return warnings
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
