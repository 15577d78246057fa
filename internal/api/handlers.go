package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bbernstein/panelboard-go/internal/document"
	"github.com/bbernstein/panelboard-go/internal/services/export"
	"github.com/bbernstein/panelboard-go/internal/services/panel"
)

// Response messages.
const (
	MsgParameterUpdated  = "Parameter updated successfully"
	MsgParameterNotFound = "Parameter does not exist"
	MsgPanelNotFound     = "Panel does not exist"
	MsgPanelGetNotFound  = "Not found!"
	MsgPanelDeleted      = "Panel deleted succesfully"
	MsgInvalidPanelID    = "Panel id must be a positive integer"
	MsgPersistFailed     = "Failed to persist document"
	MsgInternal          = "Internal server error"
)

// Handler serves the parameter and panel endpoints.
type Handler struct {
	panels   *panel.Service
	exporter *export.Service
	logger   *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(panels *panel.Service, exporter *export.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{panels: panels, exporter: exporter, logger: logger}
}

// GetParameters handles GET /parameters
func (h *Handler) GetParameters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.panels.GetParameters(r.Context()))
}

// UpdateParameter handles PUT /parameters/{paramID}
func (h *Handler) UpdateParameter(w http.ResponseWriter, r *http.Request) {
	var req UpdateParameterRequest
	if msg, ok := decodeRequest(r, &req); !ok {
		writeError(w, h.logger, http.StatusUnprocessableEntity, msg)
		return
	}

	name := chi.URLParam(r, "paramID")
	if err := h.panels.UpdateParameter(r.Context(), name, *req.Value); err != nil {
		h.writeServiceError(w, err, MsgParameterNotFound)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, MessageResponse{Message: MsgParameterUpdated})
}

// GetPanels handles GET /
func (h *Handler) GetPanels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.panels.GetPanels(r.Context()))
}

// CreatePanel handles POST /
func (h *Handler) CreatePanel(w http.ResponseWriter, r *http.Request) {
	var req CreatePanelRequest
	if msg, ok := decodeRequest(r, &req); !ok {
		writeError(w, h.logger, http.StatusUnprocessableEntity, msg)
		return
	}

	id, cells, err := h.panels.CreatePanel(r.Context(), req.Items)
	if err != nil {
		h.writeServiceError(w, err, MsgPanelNotFound)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, map[string][]string{
		strconv.FormatInt(id, 10): cells,
	})
}

// GetPanel handles GET /{panelID}
func (h *Handler) GetPanel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.panelID(w, r)
	if !ok {
		return
	}

	cells, err := h.panels.GetPanel(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, MsgPanelGetNotFound)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, cells)
}

// UpdatePanel handles PUT /{panelID}
func (h *Handler) UpdatePanel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.panelID(w, r)
	if !ok {
		return
	}

	var req CreatePanelRequest
	if msg, ok := decodeRequest(r, &req); !ok {
		writeError(w, h.logger, http.StatusUnprocessableEntity, msg)
		return
	}

	cells, err := h.panels.UpdatePanel(r.Context(), id, req.Items)
	if err != nil {
		h.writeServiceError(w, err, MsgPanelNotFound)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, cells)
}

// DeletePanel handles DELETE /{panelID}
func (h *Handler) DeletePanel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.panelID(w, r)
	if !ok {
		return
	}

	if err := h.panels.DeletePanel(r.Context(), id); err != nil {
		h.writeServiceError(w, err, MsgPanelNotFound)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, MessageResponse{Message: MsgPanelDeleted})
}

// Export handles GET /export
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	exported, stats, err := h.exporter.ExportDocument(r.Context())
	if err != nil {
		h.logger.Error("failed to export document", zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, MsgInternal)
		return
	}

	h.logger.Debug("document exported",
		zap.Int("parameters", stats.ParametersCount),
		zap.Int("panels", stats.PanelsCount))
	writeJSON(w, h.logger, http.StatusOK, exported)
}

// panelID parses the panelID URL parameter, writing a 422 when it is not an integer.
func (h *Handler) panelID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "panelID"), 10, 64)
	if err != nil {
		writeError(w, h.logger, http.StatusUnprocessableEntity, MsgInvalidPanelID)
		return 0, false
	}
	return id, true
}

// writeServiceError maps a store error to its HTTP response. notFound is the
// message used for a missing parameter or panel.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, notFound string) {
	var vErr *document.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, h.logger, http.StatusUnprocessableEntity, vErr.Reason)
	case errors.Is(err, panel.ErrInvalidPanelID):
		writeError(w, h.logger, http.StatusUnprocessableEntity, MsgInvalidPanelID)
	case errors.Is(err, panel.ErrParameterNotFound), errors.Is(err, panel.ErrPanelNotFound):
		writeError(w, h.logger, http.StatusNotFound, notFound)
	case errors.Is(err, panel.ErrPersist):
		writeError(w, h.logger, http.StatusInternalServerError, MsgPersistFailed)
	default:
		h.logger.Error("unexpected store error", zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, MsgInternal)
	}
}
