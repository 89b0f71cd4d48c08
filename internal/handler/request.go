package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
	"github.com/aryan0dhankhar/bloodbank/internal/service"
)

// RequestHandler serves blood request submission and the admin lifecycle.
type RequestHandler struct {
	requests *service.RequestService
	logger   *slog.Logger
}

func NewRequestHandler(requests *service.RequestService, logger *slog.Logger) *RequestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestHandler{requests: requests, logger: logger}
}

// StatusUpdate is the body of PUT /api/requests/{id}/status.
type StatusUpdate struct {
	Status string `json:"status"`
}

// Submit handles POST /api/requests
func (h *RequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in domain.RequestInput
	if !decodeJSON(w, r, h.logger, &in) {
		return
	}
	req, err := h.requests.Submit(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, req)
}

// List handles GET /api/requests (admin)
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.RequestFilter{City: q.Get("city")}

	if s := q.Get("status"); s != "" {
		filter.Status = domain.Status(s)
		if !filter.Status.Valid() {
			writeServiceError(w, r, h.logger, &domain.ValidationError{Field: "status", Reason: "unknown status"})
			return
		}
	}
	if u := q.Get("urgency"); u != "" {
		filter.Urgency = domain.Urgency(u)
		if !filter.Urgency.Valid() {
			writeServiceError(w, r, h.logger, &domain.ValidationError{Field: "urgency", Reason: "unknown urgency level"})
			return
		}
	}
	group, err := bloodGroupParam(q.Get("bloodGroup"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	filter.BloodGroup = group

	seq, err := h.requests.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, slices.Collect(seq))
}

// Get handles GET /api/requests/{id} (admin)
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, req)
}

// UpdateStatus handles PUT /api/requests/{id}/status (admin)
func (h *RequestHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body StatusUpdate
	if !decodeJSON(w, r, h.logger, &body) {
		return
	}
	to := domain.Status(strings.ToLower(strings.TrimSpace(body.Status)))
	if !to.Valid() {
		writeServiceError(w, r, h.logger, &domain.ValidationError{
			Field:  "status",
			Reason: "must be one of pending, approved, rejected, fulfilled",
		})
		return
	}

	req, err := h.requests.Transition(r.Context(), chi.URLParam(r, "id"), to)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, req)
}

// bloodGroupParam parses an optional bloodGroup query value. Form decoding
// turns an unescaped "+" into a space, so "A " is read as "A+".
func bloodGroupParam(raw string) (domain.BloodGroup, error) {
	if raw == "" {
		return "", nil
	}
	raw = strings.ReplaceAll(raw, " ", "+")
	g, ok := domain.ParseBloodGroup(strings.ToUpper(raw))
	if !ok {
		return "", &domain.ValidationError{Field: "bloodGroup", Reason: "unknown blood group"}
	}
	return g, nil
}
