package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
	"github.com/aryan0dhankhar/bloodbank/internal/service"
)

// DonorHandler serves donor registration and availability.
type DonorHandler struct {
	donors *service.DonorService
	logger *slog.Logger
}

func NewDonorHandler(donors *service.DonorService, logger *slog.Logger) *DonorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DonorHandler{donors: donors, logger: logger}
}

// Availability is one row of the public availability table.
type Availability struct {
	BloodGroup domain.BloodGroup `json:"bloodGroup"`
	Count      int               `json:"count"`
}

// Register handles POST /api/donors
func (h *DonorHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in domain.DonorInput
	if !decodeJSON(w, r, h.logger, &in) {
		return
	}
	donor, err := h.donors.Register(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, donor)
}

// Availability handles GET /api/donors/availability
func (h *DonorHandler) Availability(w http.ResponseWriter, r *http.Request) {
	counts, err := h.donors.ListByBloodGroup(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	rows := make([]Availability, 0, len(domain.BloodGroups))
	for _, g := range domain.BloodGroups {
		rows = append(rows, Availability{BloodGroup: g, Count: counts[g]})
	}
	writeJSON(w, h.logger, http.StatusOK, rows)
}

// List handles GET /api/donors (admin)
func (h *DonorHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	group, err := bloodGroupParam(q.Get("bloodGroup"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	donors, err := h.donors.List(r.Context(), service.DonorFilter{BloodGroup: group, City: q.Get("city")})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, donors)
}
