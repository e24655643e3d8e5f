package expediente

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrPatientNotFound = errors.New("patient not found")

// Repository provides lookups against the patient registry.
type Repository interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	// HasRecord reports whether the given clinical record exists, is active,
	// and belongs to the given patient.
	HasRecord(ctx context.Context, patientID, recordID uuid.UUID) (bool, error)
}
