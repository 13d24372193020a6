package fiadosync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// SyncEngine is the capability the HTTP layer needs from the reconciliation
// engine. SyncService implements it; tests substitute doubles.
type SyncEngine interface {
	ProcessPush(ctx context.Context, userID string, req *SyncRequest) (*SyncResponse, error)
	ProcessSnapshot(ctx context.Context, userID string) (*SnapshotData, error)
}

// HTTPSyncHandlers provides the HTTP handlers for the push/pull sync API.
type HTTPSyncHandlers struct {
	engine SyncEngine
	logger *slog.Logger
}

// NewHTTPSyncHandlers creates a new instance of sync handlers.
func NewHTTPSyncHandlers(engine SyncEngine, logger *slog.Logger) *HTTPSyncHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSyncHandlers{
		engine: engine,
		logger: logger,
	}
}

// HandlePush processes a push batch: creates/updates per entity kind plus
// explicit deletion id lists.
func (h *HTTPSyncHandlers) HandlePush(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Cuerpo de la petición inválido", err.Error())
		return
	}

	userID := strings.TrimSpace(req.UserID.String())
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "faltan campos requeridos: userId", "")
		return
	}

	response, err := h.engine.ProcessPush(r.Context(), userID, &req)
	if err != nil {
		status := statusFromError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to process push", "error", err, "user_id", userID)
			h.writeError(w, status, "Error al sincronizar", err.Error())
			return
		}
		h.writeError(w, status, err.Error(), "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode push response", "error", err, "user_id", userID)
	}
}

// HandleSnapshot processes a pull request: the full reconstructed state for
// one user, for bootstrapping a new device or after data loss.
func (h *HTTPSyncHandlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "Se requiere el parámetro userId", "")
		return
	}

	data, err := h.engine.ProcessSnapshot(r.Context(), userID)
	if err != nil {
		status := statusFromError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to assemble snapshot", "error", err, "user_id", userID)
			h.writeError(w, status, "Error al obtener los datos", err.Error())
			return
		}
		h.writeError(w, status, err.Error(), "")
		return
	}

	response := SnapshotResponse{
		Success: true,
		Message: fmt.Sprintf("Datos obtenidos: %d clientes, %d productos, %d movimientos, %d pedidos",
			len(data.Clientes), len(data.Productos), len(data.Movimientos), len(data.Pedidos)),
		Data: *data,
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode snapshot response", "error", err, "user_id", userID)
	}
}

// writeError writes a standardized error response.
func (h *HTTPSyncHandlers) writeError(w http.ResponseWriter, statusCode int, errMsg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errMsg,
		Details: details,
	})

	h.logger.Debug("HTTP error response",
		"status_code", statusCode,
		"error", errMsg,
	)
}

// statusFromError maps engine errors to HTTP status codes at the handler
// boundary.
func statusFromError(err error) int {
	switch {
	case IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
