package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vetclinic-backend/internal/auth"
	"vetclinic-backend/internal/cache"
	"vetclinic-backend/internal/httpx"
	"vetclinic-backend/internal/middleware"
	"vetclinic-backend/internal/schedule"
	"vetclinic-backend/internal/transport"
	"vetclinic-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service  *Service
	val      *validation.Validator
	cache    cache.Cache
	cacheTTL time.Duration
	log      *slog.Logger
}

func NewHandler(service *Service, val *validation.Validator, cacheStore cache.Cache, cacheTTL time.Duration, log *slog.Logger) *Handler {
	if cacheStore == nil {
		cacheStore = cache.NewNoop()
	}
	return &Handler{
		service:  service,
		val:      val,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	requester, ok := middleware.RequesterFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("appointments create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("appointments create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	created, err := h.service.Create(ctx, req, requester)
	if err != nil {
		h.writeServiceError(w, log, "appointments create", err)
		return
	}

	log.Info("appointments create: booked",
		slog.String("appointment_id", created.ID),
		slog.String("veterinarian_id", created.VeterinarianID),
	)
	transport.WriteJSON(w, http.StatusCreated, created)
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
		log.Warn("appointments get: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp, err := h.service.GetByID(ctx, id, requester)
	if err != nil {
		h.writeServiceError(w, log, "appointments get", err)
		return
	}

	log.Info("appointments get: ok", slog.String("appointment_id", id))
	transport.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	requester, ok := middleware.RequesterFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	page, limit, err := httpx.ParsePageLimit(r.URL.Query(), defaultPageLimit, maxPageLimit)
	if err != nil {
		log.Warn("appointments list: invalid pagination", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	values := r.URL.Query()
	query := ListQuery{
		Status:         strings.TrimSpace(values.Get("status")),
		PetID:          strings.TrimSpace(values.Get("petId")),
		VeterinarianID: strings.TrimSpace(values.Get("veterinarianId")),
		Date:           strings.TrimSpace(values.Get("date")),
		From:           strings.TrimSpace(values.Get("from")),
		To:             strings.TrimSpace(values.Get("to")),
		Upcoming:       values.Get("upcoming") == "true",
		Past:           values.Get("past") == "true",
		SortBy:         strings.TrimSpace(values.Get("sortBy")),
		SortDesc:       values.Get("sortOrder") == "desc",
		Page:           page,
		Limit:          limit,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, pagination, err := h.service.List(ctx, query, requester)
	if err != nil {
		h.writeServiceError(w, log, "appointments list", err)
		return
	}

	log.Info("appointments list: ok", slog.Int("count", len(items)), slog.Int64("total", pagination.Total))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":      items,
		"total":      pagination.Total,
		"page":       pagination.Page,
		"limit":      pagination.Limit,
		"totalPages": pagination.TotalPages,
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	requester, ok := middleware.RequesterFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("appointments update: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req UpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("appointments update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("appointments update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	updated, err := h.service.Update(ctx, id, req, requester)
	if err != nil {
		h.writeServiceError(w, log, "appointments update", err)
		return
	}

	log.Info("appointments update: ok", slog.String("appointment_id", id))
	transport.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "confirm", h.service.Confirm)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", h.service.Cancel)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "complete", h.service.Complete)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, name string, op func(context.Context, string, auth.Requester) (Response, error)) {
	log := h.logWithRequest(r)
	requester, ok := middleware.RequesterFromContext(r.Context())
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("appointments "+name+": missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp, err := op(ctx, id, requester)
	if err != nil {
		h.writeServiceError(w, log, "appointments "+name, err)
		return
	}

	log.Info("appointments "+name+": ok", slog.String("appointment_id", id), slog.String("status", resp.Status))
	transport.WriteJSON(w, http.StatusOK, resp)
}

type availabilityQuery struct {
	Date string `validate:"required,date"`
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	values := r.URL.Query()

	q := availabilityQuery{Date: values.Get("date")}
	if err := h.val.Struct(q); err != nil {
		log.Warn("availability: invalid query")
		transport.WriteError(w, http.StatusBadRequest, "invalid query", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}
	duration, err := httpx.ParseIntParam(values.Get("duration"), schedule.DefaultSlotMinutes)
	if err != nil {
		log.Warn("availability: invalid duration")
		transport.WriteError(w, http.StatusBadRequest, "invalid duration", nil)
		return
	}

	vetID := strings.TrimSpace(values.Get("veterinarianId"))
	cacheKey := availabilityCacheKey(vetID, q.Date, duration)
	if cached, found, err := h.cache.Get(r.Context(), cacheKey); err == nil && found {
		log.Info("availability: cache hit", slog.String("date", q.Date))
		transport.WriteCachedJSON(w, http.StatusOK, cached)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	var payload interface{}
	if vetID != "" {
		report, err := h.service.GetAvailability(ctx, vetID, q.Date, duration)
		if err != nil {
			h.writeServiceError(w, log, "availability", err)
			return
		}
		payload = report
	} else {
		reports, err := h.service.GetAllAvailability(ctx, q.Date, duration)
		if err != nil {
			h.writeServiceError(w, log, "availability", err)
			return
		}
		payload = map[string]interface{}{
			"date":          q.Date,
			"duration":      duration,
			"veterinarians": reports,
		}
	}

	if encoded, err := json.Marshal(payload); err == nil {
		_ = h.cache.Set(r.Context(), cacheKey, encoded, h.cacheTTL)
	}

	log.Info("availability: ok", slog.String("date", q.Date), slog.Int("duration", duration))
	transport.WriteJSON(w, http.StatusOK, payload)
}

func (h *Handler) GetNextAvailability(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	values := r.URL.Query()

	vetID := strings.TrimSpace(values.Get("veterinarianId"))
	if vetID == "" {
		log.Warn("availability next: missing veterinarian id")
		transport.WriteError(w, http.StatusBadRequest, "missing veterinarianId", nil)
		return
	}

	from := strings.TrimSpace(values.Get("from"))
	if from == "" {
		from = h.service.now().In(h.service.loc).Format("2006-01-02")
	}
	if err := h.val.Struct(availabilityQuery{Date: from}); err != nil {
		log.Warn("availability next: invalid date")
		transport.WriteError(w, http.StatusBadRequest, "invalid date", nil)
		return
	}
	duration, err := httpx.ParseIntParam(values.Get("duration"), schedule.DefaultSlotMinutes)
	if err != nil {
		log.Warn("availability next: invalid duration")
		transport.WriteError(w, http.StatusBadRequest, "invalid duration", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	report, found, err := h.service.NextAvailability(ctx, vetID, from, duration, 30)
	if err != nil {
		h.writeServiceError(w, log, "availability next", err)
		return
	}
	if !found {
		log.Warn("availability next: none found", slog.String("veterinarian_id", vetID))
		transport.WriteError(w, http.StatusNotFound, "no availability found", map[string]string{"days": "30"})
		return
	}

	log.Info("availability next: ok", slog.String("veterinarian_id", vetID), slog.String("date", report.Date))
	transport.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrVetNotFound), errors.Is(err, ErrPetNotFound):
		log.Warn(op+": not found", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, ErrForbidden):
		log.Warn(op + ": forbidden")
		transport.WriteError(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, ErrConflict):
		log.Warn(op + ": conflict")
		transport.WriteError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, ErrPastTime),
		errors.Is(err, ErrClosedDay),
		errors.Is(err, ErrOutsideHours),
		errors.Is(err, ErrInvalidDuration),
		errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrInvalidPriority),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrCancelTooLate),
		errors.Is(err, schedule.ErrInvalidDate),
		errors.Is(err, schedule.ErrInvalidTime),
		errors.Is(err, schedule.ErrInvalidDuration):
		log.Warn(op+": rejected", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		log.Error(op+": database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
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

func availabilityCacheKey(vetID, date string, duration int) string {
	if vetID == "" {
		vetID = "all"
	}
	return "availability:" + vetID + ":" + date + ":" + strconv.Itoa(duration)
}
