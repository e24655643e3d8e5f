// Package expediente exposes read-only lookups over the patient and
// clinical-record tables owned by the patient management system. The referral
// workflow only needs existence checks.
package expediente

import (
	"time"

	"github.com/google/uuid"
)

// Patient is a minimal projection of the patient registry row.
type Patient struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ClinicalRecord is a minimal projection of a patient's clinical record.
type ClinicalRecord struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
