package clinic

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("clinic not found")

type Repository interface {
	List(ctx context.Context) ([]*Clinic, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
