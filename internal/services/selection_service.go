package services

import (
	"context"
	"fmt"

	"github.com/selectphoto/server/internal/locking"
	"github.com/selectphoto/server/internal/models"
	"github.com/selectphoto/server/internal/observability"
	"github.com/selectphoto/server/internal/repository"
)

const selectionServiceName = "SelectionService"

// SelectionService flips photo selections while enforcing the project's cap
type SelectionService struct {
	store   repository.Store
	locker  locking.Locker
	metrics *observability.SelectionMetrics
}

// NewSelectionService creates a new SelectionService
func NewSelectionService(store repository.Store, locker locking.Locker, metrics *observability.SelectionMetrics) *SelectionService {
	return &SelectionService{
		store:   store,
		locker:  locker,
		metrics: metrics,
	}
}

// Toggle flips a photo's selection. Selecting fails with
// models.ErrSelectionLimitReached once the project's cap is reached, and
// any change fails with models.ErrSelectionLocked unless the project is active.
//
// The project lock serializes toggles within and across instances; the
// transaction re-reads the project row with a row lock where supported.
func (s *SelectionService) Toggle(ctx context.Context, projectID, photoID string) (photo *models.Photo, err error) {
	ctx, span := observability.StartServiceSpan(ctx, selectionServiceName, "Toggle")
	span.SetAttributes(observability.ProjectID(projectID), observability.PhotoID(photoID))
	defer func() {
		s.metrics.RecordToggle(ctx, toggleOutcome(photo, err))
		observability.FinishSpan(span, err)
	}()

	unlock, err := lockProject(ctx, s.locker, projectID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		project, err := tx.Projects().GetByIDForUpdate(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}
		if project == nil {
			return models.ErrProjectNotFound
		}
		if !project.IsMutable() {
			return models.ErrSelectionLocked
		}

		p, err := tx.Photos().GetByID(ctx, photoID)
		if err != nil {
			return fmt.Errorf("failed to get photo: %w", err)
		}
		if p == nil || p.ProjectID != projectID {
			return models.ErrPhotoNotFound
		}

		if !p.IsSelected {
			count, err := tx.Photos().CountSelected(ctx, projectID)
			if err != nil {
				return fmt.Errorf("failed to count selection: %w", err)
			}
			if count >= project.MaxSelection {
				return models.ErrSelectionLimitReached
			}
		}

		p.IsSelected = !p.IsSelected
		if err := tx.Photos().SetSelected(ctx, p.ID, p.IsSelected); err != nil {
			return fmt.Errorf("failed to update selection: %w", err)
		}
		photo = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return photo, nil
}

func toggleOutcome(photo *models.Photo, err error) string {
	switch {
	case err == nil && photo.IsSelected:
		return observability.ToggleSelected
	case err == nil:
		return observability.ToggleDeselected
	case models.KindOf(err) == models.KindLocked:
		return observability.ToggleLocked
	case models.KindOf(err) == models.KindLimitExceeded:
		return observability.ToggleLimit
	default:
		return observability.ToggleFailed
	}
}
