package repository

import (
	"context"
	"database/sql"

	"github.com/selectphoto/server/internal/models"
)

const projectColumns = `id, user_id, title, client_name, max_selection, status, created_at, updated_at`

// ProjectRepository implements ProjectRepo for PostgreSQL/SQLite
type ProjectRepository struct {
	db      DBTX
	dialect Dialect
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db DBTX, dialect Dialect) *ProjectRepository {
	return &ProjectRepository{db: db, dialect: dialect}
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID, &p.UserID, &p.Title, &p.ClientName, &p.MaxSelection, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID retrieves a project by its ID
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByIDForUpdate retrieves a project and locks its row on PostgreSQL.
// SQLite serializes writers at the database level, so a plain read suffices.
func (r *ProjectRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	if r.dialect == DialectPostgres {
		query += ` FOR UPDATE`
	}

	p, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetAllForUser returns the user's non-archived projects, newest first
func (r *ProjectRepository) GetAllForUser(ctx context.Context, userID string) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects
			  WHERE user_id = $1 AND status != $2
			  ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, string(models.StatusArchived))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []*models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Add inserts a new project
func (r *ProjectRepository) Add(ctx context.Context, project *models.Project) error {
	query := `INSERT INTO projects (` + projectColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		project.ID, project.UserID, project.Title, project.ClientName,
		project.MaxSelection, string(project.Status), project.CreatedAt, project.UpdatedAt,
	)
	return err
}

// UpdateStatus persists the project's status and update time
func (r *ProjectRepository) UpdateStatus(ctx context.Context, project *models.Project) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE projects SET status = $1, updated_at = $2 WHERE id = $3`,
		string(project.Status), project.UpdatedAt, project.ID,
	)
	return err
}

// Delete removes a project by ID
func (r *ProjectRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}
