// Package handler は予約APIのHTTPハンドラーです
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/uma-arai/venue-reservation/internal/model"
	"github.com/uma-arai/venue-reservation/internal/service/reservation"
)

// ReservationService はハンドラーが呼び出す予約操作です
type ReservationService interface {
	CreateReservation(ctx context.Context, actor model.Actor, req reservation.CreateRequest) (*model.Reservation, error)
	CheckAvailability(ctx context.Context, venueID int64, eventDate, startTime, endTime string) (bool, error)
	GetReservation(ctx context.Context, actor model.Actor, reservationID int64) (*model.Reservation, error)
	TransitionReservation(ctx context.Context, actor model.Actor, reservationID int64, target string) (reservation.TransitionResult, error)
	ListReservationsForUser(ctx context.Context, actor model.Actor, userID int64, filter model.ReservationFilter) ([]model.Reservation, error)
	ListReservationsForVenues(ctx context.Context, actor model.Actor, venueIDs []int64, filter model.ReservationFilter) ([]model.Reservation, error)
	OwnerDashboard(ctx context.Context, actor model.Actor) (*model.OwnerDashboard, error)
	RenterDashboard(ctx context.Context, actor model.Actor) (*model.RenterDashboard, error)
	ListNotifications(ctx context.Context, actor model.Actor, limit int) ([]model.NotificationRecord, error)
	CountUnreadNotifications(ctx context.Context, actor model.Actor) (int, error)
	MarkNotificationsRead(ctx context.Context, actor model.Actor, ids []int64) (int, error)
}

// HealthChecker は依存先の疎通確認です
type HealthChecker func(ctx context.Context) error

type Handler struct {
	svc    ReservationService
	checks map[string]HealthChecker
}

func NewHandler(svc ReservationService, checks map[string]HealthChecker) *Handler {
	return &Handler{svc: svc, checks: checks}
}

// Routes はAPIのルーティングを登録します
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(Actor)

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", h.CreateReservation)
			r.Get("/{id}", h.GetReservation)
			r.Post("/{id}/transitions", h.TransitionReservation)
		})
		r.Get("/me/reservations", h.ListMyReservations)
		r.Get("/me/dashboard", h.Dashboard)
		r.Get("/venues/reservations", h.ListVenueReservations)
		r.Get("/venues/{id}/availability", h.CheckAvailability)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Get("/unread-count", h.CountUnread)
			r.Post("/read", h.MarkRead)
		})
	})
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError は業務エラーをHTTPステータスに変換します
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: model.ErrValidation.Error(), Fields: verr.Fields})
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, model.ErrNotFound.Error())
	case errors.Is(err, model.ErrUnauthorized):
		if actorFrom(r).IsAnonymous() {
			writeError(w, http.StatusUnauthorized, model.ErrUnauthorized.Error())
			return
		}
		writeError(w, http.StatusForbidden, model.ErrUnauthorized.Error())
	case errors.Is(err, model.ErrVenueClosed):
		writeError(w, http.StatusConflict, model.ErrVenueClosed.Error())
	case errors.Is(err, model.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, model.ErrSlotUnavailable.Error())
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, model.ErrConflict.Error())
	case errors.Is(err, model.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, model.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, model.ErrStorageUnavailable.Error())
	default:
		log.Printf("Unhandled error on %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

// parseFilter は status(カンマ区切り可)と limit を読み取ります
func parseFilter(r *http.Request) (model.ReservationFilter, error) {
	var filter model.ReservationFilter
	for _, raw := range r.URL.Query()["status"] {
		for _, s := range strings.Split(raw, ",") {
			if strings.TrimSpace(s) == "" {
				continue
			}
			status, err := model.ParseStatus(s)
			if err != nil {
				return filter, err
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	limit, err := parseLimit(r)
	if err != nil {
		return filter, err
	}
	filter.Limit = limit
	return filter, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, model.NewValidationError("limit", "must be a non-negative integer")
	}
	return limit, nil
}

// CreateReservation handles POST /reservations
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req reservation.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.CreateReservation(r.Context(), actorFrom(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GetReservation handles GET /reservations/{id}
func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := h.svc.GetReservation(r.Context(), actorFrom(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CheckAvailability handles GET /venues/{id}/availability?event_date=&start_time=&end_time=
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	q := r.URL.Query()
	available, err := h.svc.CheckAvailability(r.Context(), id, q.Get("event_date"), q.Get("start_time"), q.Get("end_time"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

type transitionRequest struct {
	Status string `json:"status"`
}

// TransitionReservation handles POST /reservations/{id}/transitions
func (h *Handler) TransitionReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.TransitionReservation(r.Context(), actorFrom(r), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Reservation)
}

// ListMyReservations handles GET /me/reservations
func (h *Handler) ListMyReservations(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	actor := actorFrom(r)
	list, err := h.svc.ListReservationsForUser(r.Context(), actor, actor.UserID, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListVenueReservations handles GET /venues/reservations?venue_id=1&venue_id=2&status=pending
func (h *Handler) ListVenueReservations(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var venueIDs []int64
	for _, raw := range r.URL.Query()["venue_id"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeServiceError(w, r, model.NewValidationError("venue_id", "must be a positive integer"))
			return
		}
		venueIDs = append(venueIDs, id)
	}

	list, err := h.svc.ListReservationsForVenues(r.Context(), actorFrom(r), venueIDs, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Dashboard handles GET /me/dashboard
// オーナー(client)と管理者には会場側、それ以外には予約者側の集計を返します。?view= で切り替えられます
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	view := r.URL.Query().Get("view")
	if view == "" {
		view = "renter"
		if actor.Role == model.RoleClient || actor.IsAdmin() {
			view = "owner"
		}
	}

	var (
		body any
		err  error
	)
	switch view {
	case "owner":
		body, err = h.svc.OwnerDashboard(r.Context(), actor)
	case "renter":
		body, err = h.svc.RenterDashboard(r.Context(), actor)
	default:
		err = model.NewValidationError("view", "must be owner or renter")
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// ListNotifications handles GET /notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	records, err := h.svc.ListNotifications(r.Context(), actorFrom(r), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []model.NotificationRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// CountUnread handles GET /notifications/unread-count
func (h *Handler) CountUnread(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.CountUnreadNotifications(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

type markReadRequest struct {
	IDs []int64 `json:"ids"`
}

// MarkRead handles POST /notifications/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	updated, err := h.svc.MarkNotificationsRead(r.Context(), actorFrom(r), req.IDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}

	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			log.Printf("Health check %s failed: %v", name, err)
			body[name] = "unavailable"
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		body[name] = "ok"
	}

	writeJSON(w, status, body)
}
