package domain

import (
	"context"
	"time"
)

const (
	MinDonorAge = 18
	MaxDonorAge = 65
)

// Donor is a registered blood donor. Records are created once and never updated.
type Donor struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Age              int        `json:"age"`
	BloodGroup       BloodGroup `json:"bloodGroup"`
	City             string     `json:"city"`
	Contact          string     `json:"contact"`
	Email            string     `json:"email,omitempty"`
	RegistrationDate time.Time  `json:"registrationDate"`
	LastDonationDate *time.Time `json:"lastDonationDate,omitempty"`
}

// DonorInput carries the caller-supplied fields of a registration.
type DonorInput struct {
	Name             string     `json:"name"`
	Age              int        `json:"age"`
	BloodGroup       string     `json:"bloodGroup"`
	City             string     `json:"city"`
	Contact          string     `json:"contact"`
	Email            string     `json:"email"`
	LastDonationDate *time.Time `json:"lastDonationDate,omitempty"`
}

// ValidateDonor checks fields in a fixed order and returns the first failure.
func ValidateDonor(in DonorInput) error {
	if isBlank(in.Name) {
		return invalid("name", "is required")
	}
	if in.Age < MinDonorAge || in.Age > MaxDonorAge {
		return invalid("age", "must be between 18 and 65")
	}
	if !BloodGroup(in.BloodGroup).Valid() {
		return invalid("bloodGroup", "must be one of A+, A-, B+, B-, AB+, AB-, O+, O-")
	}
	if isBlank(in.City) {
		return invalid("city", "is required")
	}
	if err := validateContact(in.Contact); err != nil {
		return err
	}
	return validateEmail(in.Email)
}

// NewDonor validates in and builds the record to be stored.
func NewDonor(id string, in DonorInput, now time.Time) (Donor, error) {
	if err := ValidateDonor(in); err != nil {
		return Donor{}, err
	}
	return Donor{
		ID:               id,
		Name:             trim(in.Name),
		Age:              in.Age,
		BloodGroup:       BloodGroup(in.BloodGroup),
		City:             trim(in.City),
		Contact:          trim(in.Contact),
		Email:            trim(in.Email),
		RegistrationDate: now,
		LastDonationDate: in.LastDonationDate,
	}, nil
}

// DonorRepository defines data access for donors
type DonorRepository interface {
	Create(ctx context.Context, donor Donor) error
	List(ctx context.Context) ([]Donor, error)
}
