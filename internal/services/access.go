package services

import (
	"context"
	"fmt"

	"github.com/selectphoto/server/internal/locking"
	"github.com/selectphoto/server/internal/models"
)

// AccessGateway decides who may change a project
type AccessGateway interface {
	CanModify(requesterID string, project *models.Project) bool
}

// OwnerGateway lets only the project's owner modify it
type OwnerGateway struct{}

// CanModify reports whether requesterID owns the project
func (OwnerGateway) CanModify(requesterID string, project *models.Project) bool {
	return project.CanEdit(requesterID)
}

func authorize(access AccessGateway, requesterID string, project *models.Project) error {
	if !access.CanModify(requesterID, project) {
		return models.ErrNotAuthorized
	}
	return nil
}

// projectLockKey is the lock guarding a project's selection and photo set
func projectLockKey(projectID string) string {
	return "project:" + projectID
}

func lockProject(ctx context.Context, locker locking.Locker, projectID string) (func(), error) {
	unlock, err := locker.Lock(ctx, projectLockKey(projectID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock project %s: %w", projectID, err)
	}
	return unlock, nil
}
