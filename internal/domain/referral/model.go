// Package referral implements the inter-clinic patient referral workflow:
// a four-stage ordered confirmation chain with per-stage authorization,
// a final-document gate before the last stage, and optimistic-concurrency
// stage writes.
package referral

import (
	"time"

	"github.com/google/uuid"
)

// NumStages is the fixed number of confirmation stages.
const NumStages = 4

// DocumentKind identifies which of the two referral attachments an
// operation targets.
type DocumentKind string

const (
	DocInitial DocumentKind = "initial"
	DocFinal   DocumentKind = "final"
)

// Valid reports whether the kind is one of the two known values.
func (k DocumentKind) Valid() bool {
	return k == DocInitial || k == DocFinal
}

// Referral is one patient referral between clinics. The four confirmation
// flags form a monotone prefix: confirmation k can only be 1 when
// confirmations 1..k-1 are 1.
type Referral struct {
	ID             uuid.UUID `json:"id"`
	RequestingUser uuid.UUID `json:"requesting_user"`
	PatientID      uuid.UUID `json:"patient_id"`
	RecordID       uuid.UUID `json:"record_id"`
	ClinicID       uuid.UUID `json:"clinic_id"`
	Comment        string    `json:"comment"`

	Confirmation1 int16      `json:"confirmation1"`
	Confirmation2 int16      `json:"confirmation2"`
	Confirmation3 int16      `json:"confirmation3"`
	Confirmation4 int16      `json:"confirmation4"`
	ConfirmedBy1  *uuid.UUID `json:"confirmed_by1,omitempty"`
	ConfirmedBy2  *uuid.UUID `json:"confirmed_by2,omitempty"`
	ConfirmedBy3  *uuid.UUID `json:"confirmed_by3,omitempty"`
	ConfirmedBy4  *uuid.UUID `json:"confirmed_by4,omitempty"`

	InitialDocumentPath *string `json:"initial_document_path,omitempty"`
	FinalDocumentPath   *string `json:"final_document_path,omitempty"`

	Active    bool      `json:"active"`
	VersionID int       `json:"version_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment is one entry in the append-only confirmation comment trail.
type Comment struct {
	ID         uuid.UUID `json:"id"`
	ReferralID uuid.UUID `json:"referral_id"`
	Author     uuid.UUID `json:"author"`
	Stage      int       `json:"stage"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stage returns the highest confirmed stage, 0..4. The flags are a monotone
// prefix, so the first unset flag ends the count.
func (r *Referral) Stage() int {
	stage := 0
	for _, flag := range []int16{r.Confirmation1, r.Confirmation2, r.Confirmation3, r.Confirmation4} {
		if flag != 1 {
			break
		}
		stage++
	}
	return stage
}

// Terminal reports whether all four stages are confirmed. Terminal referrals
// are immutable.
func (r *Referral) Terminal() bool {
	return r.Stage() == NumStages
}

// StageConfirmed reports whether the given stage (1..4) is confirmed.
func (r *Referral) StageConfirmed(stage int) bool {
	switch stage {
	case 1:
		return r.Confirmation1 == 1
	case 2:
		return r.Confirmation2 == 1
	case 3:
		return r.Confirmation3 == 1
	case 4:
		return r.Confirmation4 == 1
	}
	return false
}

// ConfirmedBy returns the recorded approver for the given stage, or nil.
func (r *Referral) ConfirmedBy(stage int) *uuid.UUID {
	switch stage {
	case 1:
		return r.ConfirmedBy1
	case 2:
		return r.ConfirmedBy2
	case 3:
		return r.ConfirmedBy3
	case 4:
		return r.ConfirmedBy4
	}
	return nil
}

// stamp records the 0->1 transition for a stage on the in-memory model.
// It never overwrites an existing approver.
func (r *Referral) stamp(stage int, by uuid.UUID) {
	switch stage {
	case 1:
		if r.Confirmation1 == 0 {
			r.Confirmation1 = 1
			r.ConfirmedBy1 = &by
		}
	case 2:
		if r.Confirmation2 == 0 {
			r.Confirmation2 = 1
			r.ConfirmedBy2 = &by
		}
	case 3:
		if r.Confirmation3 == 0 {
			r.Confirmation3 = 1
			r.ConfirmedBy3 = &by
		}
	case 4:
		if r.Confirmation4 == 0 {
			r.Confirmation4 = 1
			r.ConfirmedBy4 = &by
		}
	}
}

// DocumentPath returns the stored path for the given attachment kind, or nil.
func (r *Referral) DocumentPath(kind DocumentKind) *string {
	if kind == DocFinal {
		return r.FinalDocumentPath
	}
	return r.InitialDocumentPath
}

// Status labels shown to users, keyed by current stage.
var statusLabels = [NumStages + 1]string{
	"en proceso",
	"pendiente admin 1",
	"pendiente admin 2",
	"pendiente clinica destino",
	"completado",
}

// StatusLabel returns the human-readable status for the current stage.
func (r *Referral) StatusLabel() string {
	if !r.Active {
		return "anulado"
	}
	return statusLabels[r.Stage()]
}

// Progress returns the completion percentage, 0..100.
func (r *Referral) Progress() int {
	return r.Stage() * 100 / NumStages
}
