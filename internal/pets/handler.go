package pets

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vetclinic-backend/internal/auth"
	"vetclinic-backend/internal/middleware"
	"vetclinic-backend/internal/transport"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	repo Repository
	log  *slog.Logger
}

func NewHandler(repo Repository, log *slog.Logger) *Handler {
	return &Handler{repo: repo, log: log}
}

// List returns the requester's own pets. Staff may pass ownerId to look
// at any client's pets; for clients the parameter is ignored.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	requester, ok := middleware.RequesterFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	ownerID := requester.ID
	if requester.Role != auth.RoleClient {
		if v := strings.TrimSpace(r.URL.Query().Get("ownerId")); v != "" {
			ownerID = v
		} else {
			log.Warn("pets list: missing ownerId")
			transport.WriteError(w, http.StatusBadRequest, "missing ownerId", nil)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		log.Error("pets list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("pets list: ok", slog.String("owner_id", ownerID), slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	requester, ok := middleware.RequesterFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("pets get: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pet, err := h.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("pets get: not found", slog.String("pet_id", id))
			transport.WriteError(w, http.StatusNotFound, "pet not found", nil)
			return
		}
		log.Error("pets get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	if requester.Role == auth.RoleClient && pet.OwnerID != requester.ID {
		log.Warn("pets get: forbidden", slog.String("pet_id", id))
		transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
		return
	}

	log.Info("pets get: ok", slog.String("pet_id", id))
	transport.WriteJSON(w, http.StatusOK, pet)
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return h.log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
