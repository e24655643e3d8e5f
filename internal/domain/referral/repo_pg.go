package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicasgt/portal-api/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const referralCols = `id, requesting_user, patient_id, record_id, clinic_id, comment,
	confirmation1, confirmation2, confirmation3, confirmation4,
	confirmed_by1, confirmed_by2, confirmed_by3, confirmed_by4,
	initial_document_path, final_document_path,
	active, version_id, created_at, updated_at`

func (r *repoPG) scanReferral(row pgx.Row) (*Referral, error) {
	var ref Referral
	err := row.Scan(&ref.ID, &ref.RequestingUser, &ref.PatientID, &ref.RecordID, &ref.ClinicID, &ref.Comment,
		&ref.Confirmation1, &ref.Confirmation2, &ref.Confirmation3, &ref.Confirmation4,
		&ref.ConfirmedBy1, &ref.ConfirmedBy2, &ref.ConfirmedBy3, &ref.ConfirmedBy4,
		&ref.InitialDocumentPath, &ref.FinalDocumentPath,
		&ref.Active, &ref.VersionID, &ref.CreatedAt, &ref.UpdatedAt)
	return &ref, err
}

func (r *repoPG) Create(ctx context.Context, ref *Referral) error {
	ref.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO referral (id, requesting_user, patient_id, record_id, clinic_id, comment,
			confirmation1, confirmed_by1, initial_document_path)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING version_id, created_at, updated_at`,
		ref.ID, ref.RequestingUser, ref.PatientID, ref.RecordID, ref.ClinicID, ref.Comment,
		ref.Confirmation1, ref.ConfirmedBy1, ref.InitialDocumentPath).
		Scan(&ref.VersionID, &ref.CreatedAt, &ref.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Referral, error) {
	ref, err := r.scanReferral(r.conn(ctx).QueryRow(ctx,
		`SELECT `+referralCols+` FROM referral WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// buildFilter translates a ListFilter into a WHERE clause and its arguments.
func buildFilter(f ListFilter) (string, []interface{}) {
	conds := []string{"active"}
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch f.Tipo {
	case FilterSent:
		conds = append(conds, "requesting_user = "+arg(f.ActorID))
	case FilterReceived:
		conds = append(conds, "clinic_id = "+arg(f.ActorClinic))
	case FilterCompleted:
		conds = append(conds, "confirmation4 = 1")
	case FilterPending:
		conds = append(conds, "confirmation4 = 0")
	}
	// No tipo lists everything in scope, completed included.

	// Non-admin actors only see referrals they sent or ones addressed to
	// their clinic.
	if !f.ActorAdmin && (f.Tipo == FilterPending || f.Tipo == FilterCompleted || f.Tipo == "") {
		conds = append(conds, fmt.Sprintf("(requesting_user = %s OR clinic_id = %s)",
			arg(f.ActorID), arg(f.ActorClinic)))
	}

	if f.Search != "" {
		pattern := arg("%" + f.Search + "%")
		conds = append(conds, fmt.Sprintf("(comment ILIKE %s OR patient_id::text ILIKE %s)",
			pattern, pattern))
	}

	return strings.Join(conds, " AND "), args
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Referral, int, error) {
	where, args := buildFilter(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM referral WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM referral WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		referralCols, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Referral
	for rows.Next() {
		ref, err := r.scanReferral(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ref)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Count(ctx context.Context, f ListFilter) (int, error) {
	where, args := buildFilter(f)
	var total int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM referral WHERE `+where, args...).Scan(&total)
	return total, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Referral, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM referral WHERE patient_id = $1 AND active`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+referralCols+` FROM referral WHERE patient_id = $1 AND active ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Referral
	for rows.Next() {
		ref, err := r.scanReferral(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ref)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, ref *Referral) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE referral SET comment=$3, clinic_id=$4,
			initial_document_path=$5, final_document_path=$6,
			version_id=version_id+1, updated_at=NOW()
		WHERE id=$1 AND version_id=$2 AND active`,
		ref.ID, ref.VersionID, ref.Comment, ref.ClinicID,
		ref.InitialDocumentPath, ref.FinalDocumentPath)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	ref.VersionID++
	return true, nil
}

func (r *repoPG) ConfirmStage(ctx context.Context, ref *Referral, stage int, by uuid.UUID, finalPath *string) (bool, error) {
	if stage < 1 || stage > NumStages {
		return false, ErrInvalidTransition
	}

	// The stage number is validated above; it selects the column pair.
	set := fmt.Sprintf("confirmation%d=1, confirmed_by%d=$3, version_id=version_id+1, updated_at=NOW()", stage, stage)
	args := []interface{}{ref.ID, ref.VersionID, by}
	if stage == NumStages && finalPath != nil {
		set += ", final_document_path=$4"
		args = append(args, *finalPath)
	}
	query := fmt.Sprintf(`UPDATE referral SET %s WHERE id=$1 AND version_id=$2 AND confirmation%d=0 AND active`,
		set, stage)

	tag, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) SetDocumentPath(ctx context.Context, id uuid.UUID, kind DocumentKind, path *string, versionID int) (bool, error) {
	col := "initial_document_path"
	if kind == DocFinal {
		col = "final_document_path"
	}
	query := fmt.Sprintf(`UPDATE referral SET %s=$3, version_id=version_id+1, updated_at=NOW()
		WHERE id=$1 AND version_id=$2 AND active`, col)

	tag, err := r.conn(ctx).Exec(ctx, query, id, versionID, path)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE referral SET active=$2, version_id=version_id+1, updated_at=NOW() WHERE id=$1`,
		id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) AddComment(ctx context.Context, c *Comment) error {
	c.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO referral_comment (id, referral_id, author, stage, body)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		c.ID, c.ReferralID, c.Author, c.Stage, c.Body).Scan(&c.CreatedAt)
}

func (r *repoPG) ListComments(ctx context.Context, referralID uuid.UUID) ([]*Comment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, referral_id, author, stage, body, created_at
		FROM referral_comment WHERE referral_id = $1 ORDER BY created_at ASC`, referralID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.ReferralID, &c.Author, &c.Stage, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}
