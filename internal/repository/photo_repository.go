package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/selectphoto/server/internal/models"
)

const photoColumns = `id, project_id, url, asset_id, is_selected, position, created_at`

// PhotoRepository handles photo persistence
type PhotoRepository struct {
	db DBTX
}

// NewPhotoRepository creates a new PhotoRepository
func NewPhotoRepository(db DBTX) *PhotoRepository {
	return &PhotoRepository{db: db}
}

func scanPhoto(row rowScanner) (*models.Photo, error) {
	var photo models.Photo
	err := row.Scan(
		&photo.ID,
		&photo.ProjectID,
		&photo.URL,
		&photo.AssetID,
		&photo.IsSelected,
		&photo.Position,
		&photo.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &photo, nil
}

func (r *PhotoRepository) queryPhotos(ctx context.Context, query string, args ...interface{}) ([]*models.Photo, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []*models.Photo{}
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}

	return photos, rows.Err()
}

// GetByID retrieves a photo by its ID
func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE id = $1`

	photo, err := scanPhoto(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return photo, nil
}

// GetByProjectID returns every photo of a project in upload order
func (r *PhotoRepository) GetByProjectID(ctx context.Context, projectID string) ([]*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos
			  WHERE project_id = $1 ORDER BY position ASC, created_at ASC`
	return r.queryPhotos(ctx, query, projectID)
}

// GetSelectedByProjectID returns the selected photos of a project in upload order
func (r *PhotoRepository) GetSelectedByProjectID(ctx context.Context, projectID string) ([]*models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos
			  WHERE project_id = $1 AND is_selected = $2 ORDER BY position ASC, created_at ASC`
	return r.queryPhotos(ctx, query, projectID, true)
}

// CountSelected returns how many photos of a project are selected
func (r *PhotoRepository) CountSelected(ctx context.Context, projectID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM photos WHERE project_id = $1 AND is_selected = $2`,
		projectID, true,
	).Scan(&count)
	return count, err
}

// NextPosition returns the position for the next photo appended to a project
func (r *PhotoRepository) NextPosition(ctx context.Context, projectID string) (int, error) {
	var next int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM photos WHERE project_id = $1`,
		projectID,
	).Scan(&next)
	return next, err
}

// Add inserts a new photo
func (r *PhotoRepository) Add(ctx context.Context, photo *models.Photo) error {
	query := `INSERT INTO photos (` + photoColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		photo.ID,
		photo.ProjectID,
		photo.URL,
		photo.AssetID,
		photo.IsSelected,
		photo.Position,
		photo.CreatedAt,
	)

	return err
}

// SetSelected overwrites the selection flag of a photo
func (r *PhotoRepository) SetSelected(ctx context.Context, id string, selected bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE photos SET is_selected = $1 WHERE id = $2`, selected, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrPhotoNotFound
	}
	return nil
}

// Delete removes a photo by ID
func (r *PhotoRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// DeleteByIDs removes the given photos and reports how many rows went away
func (r *PhotoRepository) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `DELETE FROM photos WHERE id IN (` + strings.Join(placeholders, ",") + `)`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(affected), nil
}
