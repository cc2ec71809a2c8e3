package billing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/andamio-erp/andamio-erp/internal/shared"
	"github.com/andamio-erp/andamio-erp/internal/store"
)

// Handler exposes the billing core over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	archiver *Archiver
	cache    *ReportCache
	docs     store.Store
	reports  singleflight.Group
}

// NewHandler constructs a Handler. cache and docs may be nil; the stream
// endpoint is disabled without docs.
func NewHandler(logger *slog.Logger, service *Service, archiver *Archiver, cache *ReportCache, docs store.Store) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		archiver: archiver,
		cache:    cache,
		docs:     docs,
	}
}

// MountRoutes registers the billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/registros", h.ListRecords)
	r.Post("/registros", h.CreateRecord)
	r.Get("/registros/stream", h.StreamRecords)
	r.Get("/registros/{id}", h.GetRecord)
	r.Patch("/registros/{id}", h.UpdateRecord)
	r.Delete("/registros/{id}", h.DeleteRecord)
	r.Get("/informe", h.Report)
	r.Get("/cierres", h.ListCycles)
	r.Post("/cierres", h.CloseCycle)
	r.Get("/cierres/{id}", h.GetCycle)
	r.Patch("/cierres/{cycleID}/registros/{recordID}/factura", h.SetInvoiceNumber)
}

func filterFromQuery(r *http.Request) Filter {
	q := r.URL.Query()
	return Filter{
		Status:     Status(q.Get("estado")),
		Company:    q.Get("empresa"),
		Supervisor: q.Get("encargado"),
		Month:      q.Get("mes"),
		Search:     q.Get("buscar"),
	}
}

// ListRecords returns the filtered record list, most recent first.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListRecords(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f := filterFromQuery(r)
	filtered := make([]WorkRecord, 0, len(records))
	for _, rec := range records {
		if f.Matches(rec) {
			filtered = append(filtered, rec)
		}
	}
	h.writeJSON(w, http.StatusOK, filtered)
}

// CreateRecord persists a new pending record from a form submission.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var in CreateRecordInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	record, err := h.service.CreateRecord(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, record)
}

// GetRecord loads a single record.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

// UpdateRecord applies a partial edit.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	var in UpdateRecordInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	record, err := h.service.UpdateRecord(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

// DeleteRecord removes a record unconditionally.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRecord(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Report serves the grouped aggregation. Results are cached per version and
// concurrent identical builds are collapsed.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	f := filterFromQuery(r)
	key := GroupKey(r.URL.Query().Get("agrupar"))
	cacheKey, err := h.cache.BuildKey(r.Context(), "billing", "report",
		string(key), string(f.Status), f.Company, f.Supervisor, f.Month, f.Search)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err, _ := h.reports.Do(cacheKey, func() (any, error) {
		return h.cache.FetchReport(r.Context(), cacheKey, func(ctx context.Context) (Report, error) {
			return h.service.Report(ctx, key, f)
		})
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// CloseCycle runs the month-end close for the authenticated operator.
func (h *Handler) CloseCycle(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Operator string `json:"operador"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Operator == "" {
		in.Operator = shared.OperatorFromContext(r.Context())
	}
	cycle, err := h.archiver.CloseCycle(r.Context(), in.Operator)
	var partial *PartialCloseError
	if errors.As(err, &partial) {
		h.logger.Error("partial cycle close",
			slog.String("cycle_id", partial.CycleID),
			slog.Int("remaining", partial.Remaining),
			slog.Any("error", partial.Err))
		h.writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":      "cierre incompleto, revisar registros pendientes",
			"cicloId":    partial.CycleID,
			"pendientes": partial.Remaining,
		})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if cycle == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"mensaje": "no hay registros pendientes"})
		return
	}
	h.writeJSON(w, http.StatusCreated, cycle)
}

// ListCycles returns all cycles, most recent first.
func (h *Handler) ListCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := h.service.ListCycles(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cycles)
}

// GetCycle loads a single cycle with its frozen snapshot.
func (h *Handler) GetCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.service.GetCycle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cycle)
}

// SetInvoiceNumber patches the invoice number on the live record and the
// embedded cycle snapshot.
func (h *Handler) SetInvoiceNumber(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Number string `json:"numeroFactura"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	err := h.archiver.SetInvoiceNumber(r.Context(),
		chi.URLParam(r, "cycleID"), chi.URLParam(r, "recordID"), in.Number)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StreamRecords pushes full-collection snapshots over server-sent events,
// mirroring the store's subscription contract.
func (h *Handler) StreamRecords(w http.ResponseWriter, r *http.Request) {
	if h.docs == nil {
		http.Error(w, "streaming not available", http.StatusNotImplemented)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	snapshots, err := h.docs.Subscribe(r.Context(), CollectionRecords)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	for snapshot := range snapshots {
		payload, err := json.Marshal(snapshot)
		if err != nil {
			continue
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return
		}
		if _, err := w.Write(payload); err != nil {
			return
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", slog.Any("error", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrNegativeBase),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrStatusRegression):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrRecordNotFound),
		errors.Is(err, ErrCycleNotFound),
		errors.Is(err, ErrSnapshotNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrPermission):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("billing request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
