package referral

import (
	"github.com/clinicasgt/portal-api/internal/platform/auth"
)

// Policy carries the deployment-configurable workflow knobs.
type Policy struct {
	// ConfirmOnCreate stamps stage 1 with the creator at creation time.
	ConfirmOnCreate bool
	// CreatorConfirmsStage1 lets the requesting user confirm stage 1 instead
	// of an administrator.
	CreatorConfirmsStage1 bool
}

// CanConfirm decides whether the actor may confirm the given target stage on
// the referral. It returns nil when allowed, ErrInvalidTransition when the
// target is not the next stage in order, ErrAlreadyConfirmed when the target
// stage is already set, and ErrPermissionDenied otherwise.
func CanConfirm(r *Referral, actor auth.Actor, stage int, p Policy) error {
	if stage < 1 || stage > NumStages {
		return ErrInvalidTransition
	}
	if r.Terminal() {
		return ErrInvalidTransition
	}
	if r.StageConfirmed(stage) {
		return ErrAlreadyConfirmed
	}
	if stage != r.Stage()+1 {
		return ErrInvalidTransition
	}

	switch stage {
	case 1:
		if p.CreatorConfirmsStage1 {
			if actor.ID != r.RequestingUser {
				return ErrPermissionDenied
			}
		} else if !actor.IsAdmin() {
			return ErrPermissionDenied
		}
	case 2:
		if !actor.IsAdmin() {
			return ErrPermissionDenied
		}
	case 3:
		if !actor.IsAdmin() {
			return ErrPermissionDenied
		}
		// Second approval must come from a different administrator.
		if by := r.ConfirmedBy(2); by != nil && *by == actor.ID {
			return ErrPermissionDenied
		}
	case 4:
		if actor.ClinicID != r.ClinicID {
			return ErrPermissionDenied
		}
	}
	return nil
}

// CanEdit reports whether the actor may modify referral fields. Terminal
// referrals are immutable for everyone.
func CanEdit(r *Referral, actor auth.Actor) bool {
	if r.Terminal() {
		return false
	}
	return actor.IsAdmin() || actor.ID == r.RequestingUser
}

// CanView reports whether the actor may read the referral.
func CanView(r *Referral, actor auth.Actor) bool {
	return actor.IsAdmin() ||
		actor.ID == r.RequestingUser ||
		actor.ClinicID == r.ClinicID
}

// CanUploadDocument reports whether the actor may attach a document of the
// given kind. The requesting user owns the initial document; administrators
// take it over once stage 1 is confirmed. The final document belongs to the
// destination clinic, and only after both administrative approvals.
func CanUploadDocument(r *Referral, actor auth.Actor, kind DocumentKind) bool {
	if r.Terminal() {
		return false
	}
	if kind == DocFinal {
		return actor.ClinicID == r.ClinicID && r.StageConfirmed(3)
	}
	if actor.IsAdmin() {
		return r.StageConfirmed(1)
	}
	return actor.ID == r.RequestingUser
}

// CanDeleteDocument reports whether the actor may remove an attached document.
// Owners follow the upload rules; admins may remove either kind while the
// referral is not terminal.
func CanDeleteDocument(r *Referral, actor auth.Actor, kind DocumentKind) bool {
	if r.Terminal() {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	if kind == DocFinal {
		return actor.ClinicID == r.ClinicID
	}
	return actor.ID == r.RequestingUser
}

// CanDeactivate reports whether the actor may toggle the soft-delete flag.
func CanDeactivate(r *Referral, actor auth.Actor) bool {
	return actor.IsAdmin() || actor.ID == r.RequestingUser
}
