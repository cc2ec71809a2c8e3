package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the configuration lists over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Post("/{lista}", h.Add)
	r.Delete("/{lista}", h.Remove)
}

// Get returns every configuration list.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	lists, err := h.service.Get(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lists)
}

type listMutation struct {
	Value string `json:"valor"`
}

// Add appends a value to the named list.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var in listMutation
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	lists, err := h.service.Add(r.Context(), ListKind(chi.URLParam(r, "lista")), in.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lists)
}

// Remove deletes a value from the named list.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	var in listMutation
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	lists, err := h.service.Remove(r.Context(), ListKind(chi.URLParam(r, "lista")), in.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lists)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", slog.Any("error", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrUnknownList):
		status = http.StatusNotFound
	case errors.Is(err, ErrEmptyValue):
		status = http.StatusUnprocessableEntity
	default:
		h.logger.Error("catalog request failed", slog.Any("error", err))
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
