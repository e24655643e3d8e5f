package referral

import (
	"context"

	"github.com/google/uuid"
)

// List filter types, mirroring the portal's tab filters.
const (
	FilterPending   = "pendientes"
	FilterSent      = "enviados"
	FilterReceived  = "recibidos"
	FilterCompleted = "completados"
)

// ValidFilter reports whether tipo names a known list filter.
func ValidFilter(tipo string) bool {
	switch tipo {
	case FilterPending, FilterSent, FilterReceived, FilterCompleted:
		return true
	}
	return false
}

// ListFilter scopes a referral listing to an actor and a tab filter.
type ListFilter struct {
	Tipo   string
	Search string

	// Actor scope. Admin sees everything; others see referrals they sent or
	// referrals addressed to their clinic.
	ActorID     uuid.UUID
	ActorClinic uuid.UUID
	ActorAdmin  bool
}

// Repository persists referrals and their comment trail.
type Repository interface {
	Create(ctx context.Context, r *Referral) error
	GetByID(ctx context.Context, id uuid.UUID) (*Referral, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Referral, int, error)
	Count(ctx context.Context, f ListFilter) (int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Referral, int, error)

	// Update writes the mutable fields (comment, clinic, document paths)
	// keyed on the version the caller loaded. It returns false when the row
	// changed underneath the caller.
	Update(ctx context.Context, r *Referral) (bool, error)

	// ConfirmStage performs the conditional 0->1 stage write:
	// the row must still carry the loaded version and the target flag must
	// still be 0. finalPath is stamped together with stage 4 when non-nil.
	// Returns false when no row matched.
	ConfirmStage(ctx context.Context, r *Referral, stage int, by uuid.UUID, finalPath *string) (bool, error)

	// SetDocumentPath conditionally writes one document path (nil clears it).
	SetDocumentPath(ctx context.Context, id uuid.UUID, kind DocumentKind, path *string, versionID int) (bool, error)

	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	AddComment(ctx context.Context, c *Comment) error
	ListComments(ctx context.Context, referralID uuid.UUID) ([]*Comment, error)
}
