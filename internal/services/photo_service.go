package services

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/selectphoto/server/internal/locking"
	"github.com/selectphoto/server/internal/models"
	"github.com/selectphoto/server/internal/observability"
	"github.com/selectphoto/server/internal/repository"
)

const photoServiceName = "PhotoService"

// UploadFile is one file of an upload request
type UploadFile struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// PhotoService manages the photos of a project
type PhotoService struct {
	store        repository.Store
	assets       AssetStore
	locker       locking.Locker
	access       AccessGateway
	policy       *UploadPolicy
	metrics      *observability.SelectionMetrics
	assetWorkers int
}

// NewPhotoService creates a new PhotoService. assetWorkers bounds how many
// files are pushed to the asset store at once.
func NewPhotoService(
	store repository.Store,
	assets AssetStore,
	locker locking.Locker,
	access AccessGateway,
	policy *UploadPolicy,
	metrics *observability.SelectionMetrics,
	assetWorkers int,
) *PhotoService {
	if assetWorkers < 1 {
		assetWorkers = 1
	}
	return &PhotoService{
		store:        store,
		assets:       assets,
		locker:       locker,
		access:       access,
		policy:       policy,
		metrics:      metrics,
		assetWorkers: assetWorkers,
	}
}

// List returns every photo of a project in upload order
func (s *PhotoService) List(ctx context.Context, projectID string) ([]*models.Photo, error) {
	project, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, models.ErrProjectNotFound
	}

	photos, err := s.store.Photos().GetByProjectID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	return photos, nil
}

// Upload stores files as new photos at the end of the project. Every file
// is validated before any is uploaded. Assets whose record cannot be
// written are removed again.
func (s *PhotoService) Upload(ctx context.Context, projectID, requesterID string, files []UploadFile) (photos []*models.Photo, err error) {
	ctx, span := observability.StartServiceSpan(ctx, photoServiceName, "Upload")
	span.SetAttributes(observability.ProjectID(projectID), observability.UserID(requesterID))
	defer func() { observability.FinishSpan(span, err) }()

	if len(files) == 0 {
		return nil, models.ErrNoFiles
	}

	project, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, models.ErrProjectNotFound
	}
	if err := authorize(s.access, requesterID, project); err != nil {
		return nil, err
	}

	for _, f := range files {
		if err := s.policy.Check(f.Filename, f.Size); err != nil {
			return nil, err
		}
	}

	assets, err := s.pushAssets(ctx, projectID, files)
	if err != nil {
		return nil, err
	}

	photos, err = s.record(ctx, projectID, assets)
	if err != nil {
		s.discardAssets(ctx, assets)
		return nil, err
	}

	for _, f := range files {
		s.metrics.RecordPhotoUpload(ctx, f.Size, true)
	}
	observability.WithContext(ctx).Info("photos uploaded", "project_id", projectID, "count", len(photos))
	return photos, nil
}

// pushAssets uploads files in parallel, keeping their order. On failure
// every asset already uploaded is removed.
func (s *PhotoService) pushAssets(ctx context.Context, projectID string, files []UploadFile) ([]*Asset, error) {
	assets := make([]*Asset, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.assetWorkers)
	for i, f := range files {
		g.Go(func() error {
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", f.Filename, err)
			}
			defer rc.Close()

			asset, err := s.assets.Upload(gctx, NewAssetID(projectID, f.Filename), rc, f.Size)
			if err != nil {
				s.metrics.RecordPhotoUpload(ctx, f.Size, false)
				return fmt.Errorf("%w: %s: %v", models.ErrAssetStore, f.Filename, err)
			}
			assets[i] = asset
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.discardAssets(ctx, assets)
		return nil, err
	}
	return assets, nil
}

// record inserts the photo rows under the project lock, after checking the
// project was not deleted while the assets were uploading
func (s *PhotoService) record(ctx context.Context, projectID string, assets []*Asset) ([]*models.Photo, error) {
	unlock, err := lockProject(ctx, s.locker, projectID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	photos := make([]*models.Photo, 0, len(assets))
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		project, err := tx.Projects().GetByIDForUpdate(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}
		if project == nil {
			return models.ErrProjectNotFound
		}

		next, err := tx.Photos().NextPosition(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to get next position: %w", err)
		}

		for i, asset := range assets {
			photo, err := models.NewPhoto(projectID, asset.URL, asset.ID)
			if err != nil {
				return err
			}
			photo.Position = next + i
			if err := tx.Photos().Add(ctx, photo); err != nil {
				return fmt.Errorf("failed to add photo: %w", err)
			}
			photos = append(photos, photo)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return photos, nil
}

// discardAssets best-effort deletes uploaded assets, even after ctx ends
func (s *PhotoService) discardAssets(ctx context.Context, assets []*Asset) {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, asset := range assets {
		if asset == nil {
			continue
		}
		if err := s.assets.Delete(cleanupCtx, asset.ID); err != nil {
			observability.WithContext(ctx).Warn("failed to discard orphaned asset", "asset_id", asset.ID, "error", err)
		}
	}
}

// Remove deletes a photo and its asset. The record is only deleted once
// the asset is gone.
func (s *PhotoService) Remove(ctx context.Context, projectID, photoID, requesterID string) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, photoServiceName, "Remove")
	span.SetAttributes(observability.ProjectID(projectID), observability.PhotoID(photoID), observability.UserID(requesterID))
	defer func() { observability.FinishSpan(span, err) }()

	unlock, err := lockProject(ctx, s.locker, projectID)
	if err != nil {
		return err
	}
	defer unlock()

	project, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return models.ErrProjectNotFound
	}

	photo, err := s.store.Photos().GetByID(ctx, photoID)
	if err != nil {
		return fmt.Errorf("failed to get photo: %w", err)
	}
	if photo == nil || photo.ProjectID != projectID {
		return models.ErrPhotoNotFound
	}

	if err := authorize(s.access, requesterID, project); err != nil {
		return err
	}

	if err := s.assets.Delete(ctx, photo.AssetID); err != nil {
		return fmt.Errorf("%w: %v", models.ErrAssetStore, err)
	}

	if _, err := s.store.Photos().Delete(ctx, photoID); err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}

	s.metrics.RecordPhotoDeletions(ctx, 1)
	return nil
}
