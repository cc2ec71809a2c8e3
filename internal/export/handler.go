package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andamio-erp/andamio-erp/internal/billing"
)

// maxImportBytes bounds uploaded backup files.
const maxImportBytes = 16 << 20

// BillingSource is the slice of the billing service exports read from.
type BillingSource interface {
	ListRecords(ctx context.Context) ([]billing.WorkRecord, error)
	Report(ctx context.Context, key billing.GroupKey, f billing.Filter) (billing.Report, error)
	GetCycle(ctx context.Context, id string) (billing.Cycle, error)
}

// PDFRenderer converts HTML into a PDF document.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Handler exposes the export and import endpoints.
type Handler struct {
	logger *slog.Logger
	source BillingSource
	docs   ImportStore
	pdf    PDFRenderer
	now    func() time.Time
}

// NewHandler constructs a Handler. pdf may be nil; the statement endpoint
// then reports the renderer as unavailable.
func NewHandler(logger *slog.Logger, source BillingSource, docs ImportStore, pdf PDFRenderer) *Handler {
	return &Handler{logger: logger, source: source, docs: docs, pdf: pdf, now: time.Now}
}

// MountRoutes registers the export routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/informe.csv", h.ReportCSV)
	r.Get("/copia.json", h.BackupJSON)
	r.Post("/importar", h.ImportJSON)
	r.Get("/cierres/{id}.pdf", h.CyclePDF)
}

// ReportCSV streams the aggregated report as a CSV download.
func (h *Handler) ReportCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rep, err := h.source.Report(r.Context(), billing.GroupKey(q.Get("agrupar")), billing.Filter{
		Status:     billing.Status(q.Get("estado")),
		Company:    q.Get("empresa"),
		Supervisor: q.Get("encargado"),
		Month:      q.Get("mes"),
		Search:     q.Get("buscar"),
	})
	if err != nil {
		h.fail(w, "build report", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+FileName("informe", "csv", h.now())+`"`)
	if err := WriteReportCSV(w, rep); err != nil {
		h.logger.Error("stream csv", slog.Any("error", err))
	}
}

// BackupJSON serves the full sanitized record list as a JSON document.
func (h *Handler) BackupJSON(w http.ResponseWriter, r *http.Request) {
	records, err := h.source.ListRecords(r.Context())
	if err != nil {
		h.fail(w, "list records", err)
		return
	}
	payload, err := Backup(records)
	if err != nil {
		h.fail(w, "serialise backup", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+FileName("copia", "json", h.now())+`"`)
	if _, err := w.Write(payload); err != nil {
		h.logger.Error("write backup", slog.Any("error", err))
	}
}

// ImportJSON upserts an uploaded backup array.
func (h *Handler) ImportJSON(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		http.Error(w, "cannot read upload", http.StatusBadRequest)
		return
	}
	result, err := Import(r.Context(), h.docs, raw)
	if err != nil {
		h.logger.Warn("import backup", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("encode import result", slog.Any("error", err))
	}
}

// CyclePDF renders the printable statement for one close cycle.
func (h *Handler) CyclePDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		http.Error(w, "pdf renderer not configured", http.StatusNotImplemented)
		return
	}
	cycle, err := h.source.GetCycle(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, billing.ErrCycleNotFound) {
		http.Error(w, "cierre no encontrado", http.StatusNotFound)
		return
	}
	if err != nil {
		h.fail(w, "load cycle", err)
		return
	}
	html, err := StatementHTML(cycle)
	if err != nil {
		h.fail(w, "render statement html", err)
		return
	}
	pdf, err := h.pdf.RenderHTML(r.Context(), html)
	if err != nil {
		h.fail(w, "render pdf", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+FileName("cierre", "pdf", cycle.CreatedAt)+`"`)
	if _, err := w.Write(pdf); err != nil {
		h.logger.Error("write pdf", slog.Any("error", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	h.logger.Error(action, slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
