package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/selectphoto/server/internal/locking"
	"github.com/selectphoto/server/internal/models"
	"github.com/selectphoto/server/internal/observability"
	"github.com/selectphoto/server/internal/repository"
)

const projectServiceName = "ProjectService"

// ProjectService handles the project lifecycle
type ProjectService struct {
	store               repository.Store
	assets              AssetStore
	locker              locking.Locker
	access              AccessGateway
	metrics             *observability.SelectionMetrics
	defaultMaxSelection int
	assetWorkers        int
}

// ProjectServiceOptions tunes a ProjectService
type ProjectServiceOptions struct {
	DefaultMaxSelection int // used when a project is created without a cap
	AssetWorkers        int // parallel asset deletions during a project delete
}

// NewProjectService creates a new ProjectService
func NewProjectService(
	store repository.Store,
	assets AssetStore,
	locker locking.Locker,
	access AccessGateway,
	metrics *observability.SelectionMetrics,
	opts ProjectServiceOptions,
) *ProjectService {
	if opts.DefaultMaxSelection < 1 {
		opts.DefaultMaxSelection = models.DefaultMaxSelection
	}
	if opts.AssetWorkers < 1 {
		opts.AssetWorkers = 1
	}

	return &ProjectService{
		store:               store,
		assets:              assets,
		locker:              locker,
		access:              access,
		metrics:             metrics,
		defaultMaxSelection: opts.DefaultMaxSelection,
		assetWorkers:        opts.AssetWorkers,
	}
}

// Create creates a new active project owned by ownerID
func (s *ProjectService) Create(ctx context.Context, ownerID string, req *models.CreateProjectRequest) (*models.Project, error) {
	maxSelection := req.MaxSelection
	if maxSelection == nil {
		maxSelection = &s.defaultMaxSelection
	}

	project, err := models.NewProject(ownerID, req.Title, req.ClientName, maxSelection)
	if err != nil {
		return nil, err
	}

	if err := s.store.Projects().Add(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return project, nil
}

// Get retrieves a project by ID
func (s *ProjectService) Get(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.store.Projects().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, models.ErrProjectNotFound
	}
	return project, nil
}

// ListForOwner returns the owner's non-archived projects, newest first
func (s *ProjectService) ListForOwner(ctx context.Context, ownerID string) ([]*models.Project, error) {
	projects, err := s.store.Projects().GetAllForUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// Submit locks the client's selection. Submitting an already submitted
// project changes nothing and reports changed=false.
func (s *ProjectService) Submit(ctx context.Context, id string) (project *models.Project, changed bool, err error) {
	ctx, span := observability.StartServiceSpan(ctx, projectServiceName, "Submit")
	span.SetAttributes(observability.ProjectID(id))
	defer func() { observability.FinishSpan(span, err) }()

	unlock, err := lockProject(ctx, s.locker, id)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		p, err := tx.Projects().GetByIDForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}
		if p == nil {
			return models.ErrProjectNotFound
		}

		changed, err = p.Submit()
		if err != nil || !changed {
			project = p
			return err
		}

		if err := tx.Projects().UpdateStatus(ctx, p); err != nil {
			return fmt.Errorf("failed to submit project: %w", err)
		}
		project = p
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		s.metrics.RecordSubmit(ctx)
	}
	return project, changed, nil
}

// Archive puts a project away. Only the owner may archive; archiving an
// archived project is a no-op.
func (s *ProjectService) Archive(ctx context.Context, id, requesterID string) (project *models.Project, err error) {
	ctx, span := observability.StartServiceSpan(ctx, projectServiceName, "Archive")
	span.SetAttributes(observability.ProjectID(id), observability.UserID(requesterID))
	defer func() { observability.FinishSpan(span, err) }()

	unlock, err := lockProject(ctx, s.locker, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		p, err := tx.Projects().GetByIDForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}
		if p == nil {
			return models.ErrProjectNotFound
		}
		if err := authorize(s.access, requesterID, p); err != nil {
			return err
		}

		project = p
		if !p.Archive() {
			return nil
		}
		if err := tx.Projects().UpdateStatus(ctx, p); err != nil {
			return fmt.Errorf("failed to archive project: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Delete removes a project with all of its photos and their assets.
// Assets go first; a photo record is only removed once its asset is gone.
// If any asset cannot be deleted the project survives with the photos
// whose assets remain, and the error wraps models.ErrAssetStore. Photos
// that arrive while the assets are being removed also keep the project,
// failing the call with models.ErrProjectChanged.
func (s *ProjectService) Delete(ctx context.Context, id, requesterID string) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, projectServiceName, "Delete")
	span.SetAttributes(observability.ProjectID(id), observability.UserID(requesterID))
	defer func() {
		if models.KindOf(err) != models.KindUnauthorized && models.KindOf(err) != models.KindNotFound {
			s.metrics.RecordProjectDelete(ctx, err == nil)
		}
		observability.FinishSpan(span, err)
	}()

	// Held for the whole delete so no upload can add a photo behind us.
	unlock, err := lockProject(ctx, s.locker, id)
	if err != nil {
		return err
	}
	defer unlock()

	project, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(s.access, requesterID, project); err != nil {
		return err
	}

	photos, err := s.store.Photos().GetByProjectID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list photos: %w", err)
	}

	removed, assetErr := deleteAssets(ctx, s.assets, photos, s.assetWorkers)
	observability.AddEvent(span, "assets deleted",
		attribute.Int("removed", len(removed)),
		attribute.Int("total", len(photos)),
	)

	// Photos recorded after the snapshot above (possible once a lock lease
	// has lapsed) would be dropped by the cascade with their assets still
	// stored, so the project only goes when nothing is left.
	var late int
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		locked, err := tx.Projects().GetByIDForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to lock project: %w", err)
		}
		if locked == nil {
			return models.ErrProjectNotFound
		}
		if _, err := tx.Photos().DeleteByIDs(ctx, removed); err != nil {
			return fmt.Errorf("failed to delete photos: %w", err)
		}
		if assetErr != nil {
			return nil
		}

		left, err := tx.Photos().GetByProjectID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list photos: %w", err)
		}
		if late = len(left); late > 0 {
			return nil
		}

		if _, err := tx.Projects().Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.RecordPhotoDeletions(ctx, len(removed))

	if late > 0 {
		observability.WithContext(ctx).Warn("project delete raced an upload",
			"project_id", id,
			"late_photos", late,
		)
		return models.ErrProjectChanged
	}

	if assetErr != nil {
		observability.WithContext(ctx).Warn("project delete left photos behind",
			"project_id", id,
			"removed", len(removed),
			"remaining", len(photos)-len(removed),
			"error", assetErr,
		)
		return assetErr
	}

	observability.WithContext(ctx).Info("project deleted", "project_id", id, "photos", len(photos))
	return nil
}

// deleteAssets removes the assets of photos with bounded parallelism and
// returns the ids of the photos whose asset is gone. The error reports
// how many could not be removed.
func deleteAssets(ctx context.Context, assets AssetStore, photos []*models.Photo, workers int) ([]string, error) {
	ok := make([]bool, len(photos))
	errs := make([]error, len(photos))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, photo := range photos {
		g.Go(func() error {
			if err := assets.Delete(ctx, photo.AssetID); err != nil {
				errs[i] = err
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	g.Wait()

	removed := make([]string, 0, len(photos))
	var failed int
	var firstErr error
	for i, photo := range photos {
		if ok[i] {
			removed = append(removed, photo.ID)
			continue
		}
		failed++
		if firstErr == nil {
			firstErr = errs[i]
		}
	}

	if failed > 0 {
		return removed, fmt.Errorf("%w: %d of %d assets could not be deleted: %v",
			models.ErrAssetStore, failed, len(photos), firstErr)
	}
	return removed, nil
}
