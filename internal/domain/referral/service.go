package referral

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicasgt/portal-api/internal/platform/auth"
	"github.com/clinicasgt/portal-api/internal/platform/filestore"
	"github.com/clinicasgt/portal-api/internal/platform/notification"
)

// MinCommentLength is the minimum accepted comment length.
const MinCommentLength = 10

// confirmRetries bounds the reload-and-retry loop on version conflicts.
const confirmRetries = 3

// ClinicDirectory is the slice of the clinic catalog the service needs.
type ClinicDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// RecordChecker validates that a clinical record exists for a patient.
type RecordChecker interface {
	HasRecord(ctx context.Context, patientID, recordID uuid.UUID) (bool, error)
}

// Upload carries an incoming document attachment.
type Upload struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

// CreateInput is the payload for creating a referral.
type CreateInput struct {
	PatientID   uuid.UUID
	RecordID    uuid.UUID
	ClinicID    uuid.UUID
	Comment     string
	InitialFile *Upload
}

// UpdateInput carries the editable referral fields. Nil means unchanged.
type UpdateInput struct {
	Comment  *string
	ClinicID *uuid.UUID
}

// Service implements the referral workflow on top of the repository, the
// file store, and the notifier.
type Service struct {
	repo     Repository
	clinics  ClinicDirectory
	records  RecordChecker
	files    filestore.Store
	notifier notification.Notifier
	policy   Policy
	logger   zerolog.Logger
}

func NewService(repo Repository, clinics ClinicDirectory, records RecordChecker,
	files filestore.Store, notifier notification.Notifier, policy Policy, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		clinics:  clinics,
		records:  records,
		files:    files,
		notifier: notifier,
		policy:   policy,
		logger:   logger,
	}
}

func validateComment(comment string) error {
	if len(strings.TrimSpace(comment)) < MinCommentLength {
		return newValidationError("comment",
			fmt.Sprintf("must be at least %d characters", MinCommentLength))
	}
	return nil
}

// Create validates the input, stores the optional initial document, and
// persists a new referral. Stage 1 is stamped at creation only when the
// ConfirmOnCreate policy is enabled.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*Referral, error) {
	if err := validateComment(in.Comment); err != nil {
		return nil, err
	}

	ok, err := s.clinics.Exists(ctx, in.ClinicID)
	if err != nil {
		return nil, fmt.Errorf("check clinic: %w", err)
	}
	if !ok {
		return nil, newValidationError("clinic_id", "unknown or inactive destination clinic")
	}

	ok, err = s.records.HasRecord(ctx, in.PatientID, in.RecordID)
	if err != nil {
		return nil, fmt.Errorf("check clinical record: %w", err)
	}
	if !ok {
		return nil, newValidationError("record_id", "patient has no matching clinical record")
	}

	ref := &Referral{
		RequestingUser: actor.ID,
		PatientID:      in.PatientID,
		RecordID:       in.RecordID,
		ClinicID:       in.ClinicID,
		Comment:        in.Comment,
		Active:         true,
	}

	if in.InitialFile != nil {
		info, err := s.files.Save(ctx, in.InitialFile.FileName, in.InitialFile.ContentType, in.InitialFile.Content)
		if err != nil {
			return nil, err
		}
		ref.InitialDocumentPath = &info.Key
	}

	if s.policy.ConfirmOnCreate {
		ref.stamp(1, actor.ID)
	}

	if err := s.repo.Create(ctx, ref); err != nil {
		return nil, fmt.Errorf("create referral: %w", err)
	}

	s.notify(ctx, notification.Event{
		Name:       notification.EventReferralCreated,
		ReferralID: ref.ID.String(),
		ActorID:    actor.ID.String(),
		Data: map[string]string{
			"patient_name": ref.PatientID.String(),
			"clinic_name":  ref.ClinicID.String(),
		},
	})

	return ref, nil
}

// Get loads a referral visible to the actor. Soft-deleted referrals read as
// missing, same as on the mutating paths.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Referral, error) {
	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ref.Active {
		return nil, ErrNotFound
	}
	if !CanView(ref, actor) {
		return nil, ErrPermissionDenied
	}
	return ref, nil
}

// Comments returns the append-only comment trail for a referral.
func (s *Service) Comments(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]*Comment, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, id)
}

// List returns a filtered, paginated referral listing scoped to the actor.
func (s *Service) List(ctx context.Context, actor auth.Actor, tipo, search string, limit, offset int) ([]*Referral, int, error) {
	if tipo != "" && !ValidFilter(tipo) {
		return nil, 0, newValidationError("tipo", "unknown filter")
	}
	return s.repo.List(ctx, s.filter(actor, tipo, search), limit, offset)
}

// Counters returns the per-filter badge counts for the actor.
func (s *Service) Counters(ctx context.Context, actor auth.Actor) (map[string]int, error) {
	counters := make(map[string]int, 4)
	for _, tipo := range []string{FilterPending, FilterSent, FilterReceived, FilterCompleted} {
		n, err := s.repo.Count(ctx, s.filter(actor, tipo, ""))
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", tipo, err)
		}
		counters[tipo] = n
	}
	return counters, nil
}

// PatientHistory returns all active referrals for a patient.
func (s *Service) PatientHistory(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Referral, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) filter(actor auth.Actor, tipo, search string) ListFilter {
	return ListFilter{
		Tipo:        tipo,
		Search:      search,
		ActorID:     actor.ID,
		ActorClinic: actor.ClinicID,
		ActorAdmin:  actor.IsAdmin(),
	}
}

// Confirm advances the referral to its next stage. The target stage is always
// the first unconfirmed one; callers cannot skip ahead. Stage 4 requires a
// final document, either already attached or supplied with the call. The
// stage write is conditional on the loaded version and the flag still being
// unset; on conflict the referral is reloaded and the attempt repeated.
func (s *Service) Confirm(ctx context.Context, actor auth.Actor, id uuid.UUID, comment string, finalFile *Upload) (*Referral, error) {
	if comment != "" {
		if err := validateComment(comment); err != nil {
			return nil, err
		}
	}

	// A document stored on an earlier attempt is reused, never re-uploaded.
	// If no attempt ends up stamping it, the blob is removed on the way out.
	var storedFinalPath *string
	finalUsed := false
	defer func() {
		if storedFinalPath != nil && !finalUsed {
			s.deleteFile(ctx, *storedFinalPath)
		}
	}()

	for attempt := 0; attempt < confirmRetries; attempt++ {
		ref, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ref.Active {
			return nil, ErrNotFound
		}
		if ref.Terminal() {
			return nil, ErrInvalidTransition
		}

		stage := ref.Stage() + 1

		var finalPath *string
		if stage == NumStages {
			finalPath, err = s.ensureFinalDocument(ctx, ref, finalFile, &storedFinalPath)
			if err != nil {
				return nil, err
			}
		}

		if err := CanConfirm(ref, actor, stage, s.policy); err != nil {
			return nil, err
		}

		ok, err := s.repo.ConfirmStage(ctx, ref, stage, actor.ID, finalPath)
		if err != nil {
			return nil, fmt.Errorf("confirm stage %d: %w", stage, err)
		}
		if !ok {
			// Lost the race. Reload to find out whether our stage was taken
			// by someone else or an unrelated field changed.
			current, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if current.StageConfirmed(stage) {
				return nil, ErrAlreadyConfirmed
			}
			continue
		}

		ref.stamp(stage, actor.ID)
		ref.VersionID++
		if finalPath != nil {
			ref.FinalDocumentPath = finalPath
			finalUsed = true
		}

		if comment != "" {
			if err := s.repo.AddComment(ctx, &Comment{
				ReferralID: ref.ID,
				Author:     actor.ID,
				Stage:      stage,
				Body:       comment,
			}); err != nil {
				s.logger.Error().Err(err).
					Str("referral_id", ref.ID.String()).
					Msg("failed to record confirmation comment")
			}
		}

		s.notify(ctx, notification.Event{
			Name:       notification.EventStageConfirmed,
			ReferralID: ref.ID.String(),
			ActorID:    actor.ID.String(),
			Data: map[string]string{
				"referral_id": ref.ID.String(),
				"stage":       strconv.Itoa(stage),
				"stage_label": ref.StatusLabel(),
			},
		})
		if ref.Terminal() {
			s.notify(ctx, notification.Event{
				Name:       notification.EventReferralCompleted,
				ReferralID: ref.ID.String(),
				ActorID:    actor.ID.String(),
				Data: map[string]string{
					"referral_id":  ref.ID.String(),
					"patient_name": ref.PatientID.String(),
				},
			})
		}

		return ref, nil
	}

	return nil, ErrConflict
}

// ensureFinalDocument resolves the final-document gate for stage 4. An
// existing attachment wins; otherwise the provided upload is stored exactly
// once and its path reused across retries.
func (s *Service) ensureFinalDocument(ctx context.Context, ref *Referral, file *Upload, stored **string) (*string, error) {
	if ref.FinalDocumentPath != nil {
		return nil, nil // already attached, nothing to write
	}
	if *stored != nil {
		return *stored, nil
	}
	if file == nil {
		return nil, ErrMissingDocument
	}

	info, err := s.files.Save(ctx, file.FileName, file.ContentType, file.Content)
	if err != nil {
		return nil, err
	}
	*stored = &info.Key
	return *stored, nil
}

// Update modifies the editable fields. The destination clinic is locked once
// the first stage is confirmed.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, in UpdateInput) (*Referral, error) {
	for attempt := 0; attempt < confirmRetries; attempt++ {
		ref, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ref.Active {
			return nil, ErrNotFound
		}
		if !CanEdit(ref, actor) {
			return nil, ErrPermissionDenied
		}

		if in.Comment != nil {
			if err := validateComment(*in.Comment); err != nil {
				return nil, err
			}
			ref.Comment = *in.Comment
		}
		if in.ClinicID != nil && *in.ClinicID != ref.ClinicID {
			if ref.Confirmation1 == 1 {
				return nil, ErrClinicLocked
			}
			ok, err := s.clinics.Exists(ctx, *in.ClinicID)
			if err != nil {
				return nil, fmt.Errorf("check clinic: %w", err)
			}
			if !ok {
				return nil, newValidationError("clinic_id", "unknown or inactive destination clinic")
			}
			ref.ClinicID = *in.ClinicID
		}

		ok, err := s.repo.Update(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("update referral: %w", err)
		}
		if ok {
			return ref, nil
		}
	}
	return nil, ErrConflict
}

// SetActive toggles the soft-delete flag. Deactivation leaves all stage data
// intact.
func (s *Service) SetActive(ctx context.Context, actor auth.Actor, id uuid.UUID, active bool) error {
	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !CanDeactivate(ref, actor) {
		return ErrPermissionDenied
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}

	if !active {
		s.notify(ctx, notification.Event{
			Name:       notification.EventReferralCancelled,
			ReferralID: id.String(),
			ActorID:    actor.ID.String(),
			Data: map[string]string{
				"referral_id":  id.String(),
				"patient_name": ref.PatientID.String(),
			},
		})
	}
	return nil
}

// UploadDocument attaches a document to the referral: store the file first,
// then conditionally stamp its path. If the stamp loses every retry the
// stored file is removed again.
func (s *Service) UploadDocument(ctx context.Context, actor auth.Actor, id uuid.UUID, kind DocumentKind, file Upload) (*Referral, error) {
	if !kind.Valid() {
		return nil, newValidationError("kind", "must be initial or final")
	}

	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ref.Active {
		return nil, ErrNotFound
	}
	if !CanUploadDocument(ref, actor, kind) {
		return nil, ErrPermissionDenied
	}

	info, err := s.files.Save(ctx, file.FileName, file.ContentType, file.Content)
	if err != nil {
		return nil, err
	}

	oldPath := ref.DocumentPath(kind)

	for attempt := 0; attempt < confirmRetries; attempt++ {
		ok, err := s.repo.SetDocumentPath(ctx, id, kind, &info.Key, ref.VersionID)
		if err != nil {
			return nil, fmt.Errorf("set document path: %w", err)
		}
		if ok {
			// Replacing an attachment orphans the old blob; clean it up.
			if oldPath != nil {
				s.deleteFile(ctx, *oldPath)
			}
			s.notify(ctx, notification.Event{
				Name:       notification.EventDocumentAttached,
				ReferralID: id.String(),
				ActorID:    actor.ID.String(),
				Data: map[string]string{
					"referral_id": id.String(),
					"kind":        string(kind),
					"file_name":   file.FileName,
				},
			})
			return s.repo.GetByID(ctx, id)
		}

		ref, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ref.Active || ref.Terminal() || !CanUploadDocument(ref, actor, kind) {
			break
		}
		oldPath = ref.DocumentPath(kind)
	}

	s.deleteFile(ctx, info.Key)
	return nil, ErrConflict
}

// OpenDocument streams a stored attachment for an actor allowed to view the
// referral.
func (s *Service) OpenDocument(ctx context.Context, actor auth.Actor, id uuid.UUID, kind DocumentKind) (io.ReadCloser, *filestore.FileInfo, error) {
	if !kind.Valid() {
		return nil, nil, newValidationError("kind", "must be initial or final")
	}

	ref, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	path := ref.DocumentPath(kind)
	if path == nil {
		return nil, nil, ErrNotFound
	}
	return s.files.Open(ctx, *path)
}

// DeleteDocument removes an attachment: clear the path first, then remove the
// blob, so a failed second step can be retried without double-deleting.
func (s *Service) DeleteDocument(ctx context.Context, actor auth.Actor, id uuid.UUID, kind DocumentKind) error {
	if !kind.Valid() {
		return newValidationError("kind", "must be initial or final")
	}

	for attempt := 0; attempt < confirmRetries; attempt++ {
		ref, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !ref.Active {
			return ErrNotFound
		}
		path := ref.DocumentPath(kind)
		if path == nil {
			return ErrNotFound
		}
		if !CanDeleteDocument(ref, actor, kind) {
			return ErrPermissionDenied
		}

		ok, err := s.repo.SetDocumentPath(ctx, id, kind, nil, ref.VersionID)
		if err != nil {
			return fmt.Errorf("clear document path: %w", err)
		}
		if ok {
			s.deleteFile(ctx, *path)
			return nil
		}
	}
	return ErrConflict
}

func (s *Service) deleteFile(ctx context.Context, key string) {
	if err := s.files.Delete(ctx, key); err != nil && !errors.Is(err, filestore.ErrFileNotFound) {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to delete stored document")
	}
}

func (s *Service) notify(ctx context.Context, event notification.Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("event", event.Name).Msg("notification failed")
	}
}
