package services

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/selectphoto/server/internal/models"
	"github.com/selectphoto/server/internal/observability"
	"github.com/selectphoto/server/internal/repository"
)

const exportServiceName = "ExportService"

// Export formats
const (
	FormatCSV = "csv"
	FormatZIP = "zip"
)

// ExportService reads a project's selection and renders it for download
type ExportService struct {
	store   repository.Store
	assets  AssetStore
	access  AccessGateway
	metrics *observability.SelectionMetrics
}

// NewExportService creates a new ExportService
func NewExportService(store repository.Store, assets AssetStore, access AccessGateway, metrics *observability.SelectionMetrics) *ExportService {
	return &ExportService{
		store:   store,
		assets:  assets,
		access:  access,
		metrics: metrics,
	}
}

// selection loads the project and its selected photos for the owner
func (s *ExportService) selection(ctx context.Context, projectID, requesterID string) (*models.Project, []*models.Photo, error) {
	project, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, nil, models.ErrProjectNotFound
	}
	if err := authorize(s.access, requesterID, project); err != nil {
		return nil, nil, err
	}

	photos, err := s.store.Photos().GetSelectedByProjectID(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list selected photos: %w", err)
	}
	return project, photos, nil
}

// SelectedRows returns the asset id and URL of every selected photo
func (s *ExportService) SelectedRows(ctx context.Context, projectID, requesterID string) (*models.Project, []models.SelectedRow, error) {
	project, photos, err := s.selection(ctx, projectID, requesterID)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]models.SelectedRow, len(photos))
	for i, photo := range photos {
		rows[i] = models.SelectedRow{AssetID: photo.AssetID, URL: photo.URL}
	}
	s.metrics.RecordExport(ctx, FormatCSV, len(rows), true)
	return project, rows, nil
}

// WriteCSV writes rows as a Filename,URL table
func WriteCSV(w io.Writer, rows []models.SelectedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Filename", "URL"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.AssetID, row.URL}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Archive is a snapshot of a project's selection ready to be streamed as a ZIP
type Archive struct {
	Filename string
	project  *models.Project
	photos   []*models.Photo
	assets   AssetStore
	metrics  *observability.SelectionMetrics
}

// OpenArchive snapshots the selection for a ZIP download. It fails with
// models.ErrNothingSelected before anything is written when the selection
// is empty.
func (s *ExportService) OpenArchive(ctx context.Context, projectID, requesterID string) (*Archive, error) {
	project, photos, err := s.selection(ctx, projectID, requesterID)
	if err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return nil, models.ErrNothingSelected
	}

	return &Archive{
		Filename: project.ArchiveFilename(),
		project:  project,
		photos:   photos,
		assets:   s.assets,
		metrics:  s.metrics,
	}, nil
}

// Len returns the number of photos in the archive
func (a *Archive) Len() int {
	return len(a.photos)
}

// Stream writes one ZIP entry per selected photo into w, fetching asset
// bytes one photo at a time. It stops between entries once ctx is done.
func (a *Archive) Stream(ctx context.Context, w io.Writer) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, exportServiceName, "WriteArchive")
	span.SetAttributes(observability.ProjectID(a.project.ID))
	defer func() {
		a.metrics.RecordExport(ctx, FormatZIP, len(a.photos), err == nil)
		observability.FinishSpan(span, err)
	}()

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	names := newEntryNames()
	for _, photo := range a.photos {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := a.writeEntry(ctx, zw, names.next(photo.ArchiveName()), photo); err != nil {
			return err
		}
	}

	return zw.Close()
}

func (a *Archive) writeEntry(ctx context.Context, zw *zip.Writer, name string, photo *models.Photo) error {
	rc, err := a.assets.Open(ctx, photo.AssetID)
	if err != nil {
		return fmt.Errorf("failed to open asset %s: %w", photo.AssetID, err)
	}
	defer rc.Close()

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: photo.CreatedAt,
	})
	if err != nil {
		return err
	}

	if _, err := io.Copy(entry, rc); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// entryNames hands out unique archive entry names
type entryNames map[string]int

func newEntryNames() entryNames {
	return entryNames{}
}

// next returns name, or name with a numeric suffix if it was already used
func (n entryNames) next(name string) string {
	key := strings.ToLower(name)
	count := n[key]
	n[key] = count + 1
	if count == 0 {
		return name
	}

	ext := path.Ext(name)
	candidate := strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(count) + ext
	return n.next(candidate)
}
