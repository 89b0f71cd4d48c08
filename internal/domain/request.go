package domain

import (
	"context"
	"time"
)

// Urgency ranks how quickly a request must be served.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Urgencies lists the accepted urgency levels from lowest to highest.
var Urgencies = []Urgency{UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyCritical}

// Valid reports whether u is a known urgency level.
func (u Urgency) Valid() bool {
	for _, v := range Urgencies {
		if u == v {
			return true
		}
	}
	return false
}

// Well-known requester types. Any other non-empty value is accepted.
const (
	RequesterPatient  = "patient"
	RequesterHospital = "hospital"
)

// BloodRequest is a request for units of one blood group.
// Status only moves along the lifecycle graph, AdminNotes only grows and
// FulfilledDate is set exactly when Status is fulfilled.
type BloodRequest struct {
	ID            string     `json:"id"`
	RequesterName string     `json:"requesterName"`
	RequesterType string     `json:"requesterType"`
	BloodGroup    BloodGroup `json:"bloodGroup"`
	UrgencyLevel  Urgency    `json:"urgencyLevel"`
	City          string     `json:"city"`
	Contact       string     `json:"contact"`
	Email         string     `json:"email,omitempty"`
	UnitsNeeded   int        `json:"unitsNeeded"`
	RequestDate   time.Time  `json:"requestDate"`
	Status        Status     `json:"status"`
	AdminNotes    string     `json:"adminNotes"`
	FulfilledDate *time.Time `json:"fulfilledDate,omitempty"`
}

// RequestInput carries the caller-supplied fields of a submission.
type RequestInput struct {
	RequesterName string `json:"requesterName"`
	RequesterType string `json:"requesterType"`
	BloodGroup    string `json:"bloodGroup"`
	UrgencyLevel  string `json:"urgencyLevel"`
	City          string `json:"city"`
	Contact       string `json:"contact"`
	Email         string `json:"email"`
	UnitsNeeded   int    `json:"unitsNeeded"`
}

// ValidateRequest checks fields in a fixed order and returns the first failure.
func ValidateRequest(in RequestInput) error {
	if isBlank(in.RequesterName) {
		return invalid("requesterName", "is required")
	}
	if isBlank(in.RequesterType) {
		return invalid("requesterType", "is required")
	}
	if !BloodGroup(in.BloodGroup).Valid() {
		return invalid("bloodGroup", "must be one of A+, A-, B+, B-, AB+, AB-, O+, O-")
	}
	if isBlank(in.UrgencyLevel) {
		return invalid("urgencyLevel", "is required")
	}
	if !Urgency(trim(in.UrgencyLevel)).Valid() {
		return invalid("urgencyLevel", "must be one of low, normal, high, critical")
	}
	if isBlank(in.City) {
		return invalid("city", "is required")
	}
	if err := validateContact(in.Contact); err != nil {
		return err
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if in.UnitsNeeded < 1 {
		return invalid("unitsNeeded", "must be at least 1")
	}
	return nil
}

// NewBloodRequest validates in and builds a pending request.
func NewBloodRequest(id string, in RequestInput, now time.Time) (BloodRequest, error) {
	if err := ValidateRequest(in); err != nil {
		return BloodRequest{}, err
	}
	return BloodRequest{
		ID:            id,
		RequesterName: trim(in.RequesterName),
		RequesterType: trim(in.RequesterType),
		BloodGroup:    BloodGroup(in.BloodGroup),
		UrgencyLevel:  Urgency(trim(in.UrgencyLevel)),
		City:          trim(in.City),
		Contact:       trim(in.Contact),
		Email:         trim(in.Email),
		UnitsNeeded:   in.UnitsNeeded,
		RequestDate:   now,
		Status:        StatusPending,
	}, nil
}

// RequestRepository defines data access for blood requests.
// Update must apply fn atomically with respect to other updates of the same id;
// when fn returns an error nothing is written.
type RequestRepository interface {
	Create(ctx context.Context, request BloodRequest) error
	Get(ctx context.Context, id string) (BloodRequest, error)
	List(ctx context.Context) ([]BloodRequest, error)
	Update(ctx context.Context, id string, fn func(*BloodRequest) error) (BloodRequest, error)
}
