// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the enrollment service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/model"
	"github.com/Shivanand-hulikatti/offering-enrollment/internal/service"
)

// OfferingHandler holds all HTTP handlers for the enrollment API.
type OfferingHandler struct {
	svc    *service.EnrollmentService
	logger *slog.Logger
}

// NewOfferingHandler constructs an OfferingHandler.
func NewOfferingHandler(svc *service.EnrollmentService, logger *slog.Logger) *OfferingHandler {
	return &OfferingHandler{svc: svc, logger: logger}
}

// Routes builds the router with the global middleware stack.
func (h *OfferingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(h.logger))
	r.Use(CORS)
	r.Use(Identity)

	r.Get("/health", HealthCheck)

	r.Route("/offerings", func(r chi.Router) {
		r.Get("/", h.ListOfferings)
		r.Get("/{id}", h.GetOffering)
		r.Get("/{id}/pending", h.ListPending)
		r.Get("/{id}/registered", h.ListRegistered)
		r.Get("/{id}/waitlisted", h.ListWaitlisted)
		r.Get("/{id}/holders", h.ListHolders)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)
			r.Post("/", h.CreateOffering)
			r.Post("/{id}/cancel", h.CancelOffering)
			r.Get("/{id}/enrollment", h.GetStatus)
			r.Post("/{id}/enrollment", h.Enroll)
			r.Delete("/{id}/enrollment", h.Cancel)
			r.Post("/{id}/pending/{userID}/approve", h.Approve)
			r.Post("/{id}/pending/{userID}/decline", h.Decline)
			r.Post("/{id}/participants/{userID}/exclude", h.Exclude)
		})
	})

	return r
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Code: code})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps the domain taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrOfferingNotFound), errors.Is(err, model.ErrNotEnrolled):
		return http.StatusNotFound
	case errors.Is(err, model.ErrAlreadyEnrolled),
		errors.Is(err, model.ErrOfferingFull),
		errors.Is(err, model.ErrOfferingCancelled),
		errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, model.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeServiceError reports domain errors verbatim and hides infrastructure ones.
func (h *OfferingHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if !model.IsDomainError(err) {
		h.logger.Error("request_failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, model.ErrorCode(err), "internal error")
		return
	}
	writeError(w, statusFor(err), model.ErrorCode(err), err.Error())
}

func caller(r *http.Request) string {
	id, _ := UserFromContext(r.Context())
	return id
}

// ─── Offerings ────────────────────────────────────────────────────────────────

// CreateOffering handles POST /offerings
// The caller becomes the organizer.
func (h *OfferingHandler) CreateOffering(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOfferingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return
	}

	o, err := h.svc.CreateOffering(r.Context(), caller(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// ListOfferings handles GET /offerings
func (h *OfferingHandler) ListOfferings(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListOfferings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if list == nil {
		list = []model.Offering{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetOffering handles GET /offerings/{id}
func (h *OfferingHandler) GetOffering(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.GetOffering(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// CancelOffering handles POST /offerings/{id}/cancel
func (h *OfferingHandler) CancelOffering(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CancelOffering(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Enrollment ───────────────────────────────────────────────────────────────

// GetStatus handles GET /offerings/{id}/enrollment
// It drives which action button the page renders.
func (h *OfferingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user := caller(r)

	st, err := h.svc.GetStatus(r.Context(), user, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.StatusResponse{OfferingID: id, UserID: user, Status: st})
}

// Enroll handles POST /offerings/{id}/enrollment
func (h *OfferingHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Enroll(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Cancel handles DELETE /offerings/{id}/enrollment
func (h *OfferingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cancel(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Moderation ───────────────────────────────────────────────────────────────

// Approve handles POST /offerings/{id}/pending/{userID}/approve
func (h *OfferingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.svc.Approve)
}

// Decline handles POST /offerings/{id}/pending/{userID}/decline
func (h *OfferingHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.svc.Decline)
}

// Exclude handles POST /offerings/{id}/participants/{userID}/exclude
func (h *OfferingHandler) Exclude(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.svc.Exclude)
}

type moderationFunc func(ctx context.Context, organizerID, userID, offeringID string) error

func (h *OfferingHandler) moderate(w http.ResponseWriter, r *http.Request, op moderationFunc) {
	err := op(r.Context(), caller(r), chi.URLParam(r, "userID"), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Projections ──────────────────────────────────────────────────────────────

type listFunc func(ctx context.Context, offeringID string) ([]model.EnrollmentRecord, error)

func (h *OfferingHandler) list(w http.ResponseWriter, r *http.Request, fn listFunc) {
	recs, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if recs == nil {
		recs = []model.EnrollmentRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// ListPending handles GET /offerings/{id}/pending
func (h *OfferingHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.ListPending)
}

// ListRegistered handles GET /offerings/{id}/registered
func (h *OfferingHandler) ListRegistered(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.ListRegistered)
}

// ListWaitlisted handles GET /offerings/{id}/waitlisted
// Entries are ordered head first.
func (h *OfferingHandler) ListWaitlisted(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.ListWaitlisted)
}

// ListHolders handles GET /offerings/{id}/holders
func (h *OfferingHandler) ListHolders(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.ListHolders)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
