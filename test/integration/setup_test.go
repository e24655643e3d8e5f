package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicasgt/portal-api/internal/domain/clinic"
	"github.com/clinicasgt/portal-api/internal/domain/expediente"
	"github.com/clinicasgt/portal-api/internal/domain/referral"
	"github.com/clinicasgt/portal-api/internal/platform/auth"
	"github.com/clinicasgt/portal-api/internal/platform/db"
	"github.com/clinicasgt/portal-api/internal/platform/filestore"
	"github.com/clinicasgt/portal-api/internal/platform/notification"
)

// globalPool is the shared database pool, initialized once in TestMain.
var globalPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr, cleanup, err := startPostgresContainer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres container: %v\n", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}

	migrator := db.NewMigrator(pool, findMigrationsDir())
	if _, err := migrator.Up(ctx); err != nil {
		pool.Close()
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	globalPool = pool
	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

// findMigrationsDir locates the migrations directory relative to this file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	// test/integration -> repo root
	return filepath.Join(dir, "..", "..", "migrations")
}

// newService wires a referral service on the real repositories with an
// in-memory file store.
func newService(policy referral.Policy) (*referral.Service, *filestore.MemoryStore) {
	files := filestore.NewMemoryStore()
	svc := referral.NewService(
		referral.NewRepoPG(globalPool),
		clinic.NewRepoPG(globalPool),
		expediente.NewRepoPG(globalPool),
		files,
		notification.NopNotifier{},
		policy,
		zerolog.Nop(),
	)
	return svc, files
}

func seedClinic(t *testing.T, ctx context.Context, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if _, err := globalPool.Exec(ctx,
		`INSERT INTO clinic (id, name) VALUES ($1, $2)`, id, name); err != nil {
		t.Fatalf("seed clinic: %v", err)
	}
	return id
}

// seedPatient inserts a patient with one active clinical record and returns
// both ids.
func seedPatient(t *testing.T, ctx context.Context, firstName, lastName string) (uuid.UUID, uuid.UUID) {
	t.Helper()
	patientID := uuid.New()
	if _, err := globalPool.Exec(ctx,
		`INSERT INTO patient (id, first_name, last_name) VALUES ($1, $2, $3)`,
		patientID, firstName, lastName); err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	recordID := uuid.New()
	if _, err := globalPool.Exec(ctx,
		`INSERT INTO clinical_record (id, patient_id) VALUES ($1, $2)`,
		recordID, patientID); err != nil {
		t.Fatalf("seed clinical record: %v", err)
	}
	return patientID, recordID
}

// resetReferrals clears referral data between tests that assert on counts.
func resetReferrals(t *testing.T, ctx context.Context) {
	t.Helper()
	if _, err := globalPool.Exec(ctx, `TRUNCATE referral_comment, referral`); err != nil {
		t.Fatalf("reset referrals: %v", err)
	}
}

func adminActor(clinicID uuid.UUID) auth.Actor {
	return auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin, ClinicID: clinicID}
}

func userActor(clinicID uuid.UUID) auth.Actor {
	return auth.Actor{ID: uuid.New(), Role: auth.RoleUser, ClinicID: clinicID}
}
