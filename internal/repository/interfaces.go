package repository

import (
	"context"

	"github.com/selectphoto/server/internal/models"
)

// ProjectRepo defines the interface for project persistence operations
type ProjectRepo interface {
	GetByID(ctx context.Context, id string) (*models.Project, error)
	// GetByIDForUpdate reads the project and, where the database supports it,
	// holds a row lock on it until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*models.Project, error)
	GetAllForUser(ctx context.Context, userID string) ([]*models.Project, error)
	Add(ctx context.Context, project *models.Project) error
	UpdateStatus(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) (bool, error)
}

// PhotoRepo defines the interface for photo persistence operations
type PhotoRepo interface {
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	GetByProjectID(ctx context.Context, projectID string) ([]*models.Photo, error)
	GetSelectedByProjectID(ctx context.Context, projectID string) ([]*models.Photo, error)
	CountSelected(ctx context.Context, projectID string) (int, error)
	NextPosition(ctx context.Context, projectID string) (int, error)
	Add(ctx context.Context, photo *models.Photo) error
	SetSelected(ctx context.Context, id string, selected bool) error
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByIDs(ctx context.Context, ids []string) (int, error)
}

// Store groups the repositories and runs units of work atomically
type Store interface {
	Projects() ProjectRepo
	Photos() PhotoRepo
	// InTx runs fn against repositories bound to a single transaction.
	// The transaction commits if fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
