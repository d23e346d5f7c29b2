package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxSelection is the selection cap used when a project is created without one
const DefaultMaxSelection = 50

// ProjectStatus represents where a project is in its lifecycle
type ProjectStatus string

const (
	StatusActive    ProjectStatus = "active"    // Client may change the selection
	StatusSubmitted ProjectStatus = "submitted" // Client has locked the selection
	StatusArchived  ProjectStatus = "archived"  // Owner has put the project away
)

// Project is a photographer's photo set shared with a single client
type Project struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user"`
	Title        string        `json:"title"`
	ClientName   string        `json:"clientName"`
	MaxSelection int           `json:"maxSelection"`
	Status       ProjectStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// NewProject creates a new active project owned by userID.
// A nil maxSelection falls back to DefaultMaxSelection.
func NewProject(userID, title, clientName string, maxSelection *int) (*Project, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrProjectOwnerRequired
	}
	if strings.TrimSpace(title) == "" {
		return nil, ErrProjectTitleRequired
	}
	if strings.TrimSpace(clientName) == "" {
		return nil, ErrProjectClientRequired
	}

	limit := DefaultMaxSelection
	if maxSelection != nil {
		if *maxSelection < 1 {
			return nil, ErrInvalidMaxSelection
		}
		limit = *maxSelection
	}

	now := time.Now().UTC()

	return &Project{
		ID:           uuid.New().String(),
		UserID:       userID,
		Title:        strings.TrimSpace(title),
		ClientName:   strings.TrimSpace(clientName),
		MaxSelection: limit,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsMutable reports whether the client may still change the selection
func (p *Project) IsMutable() bool {
	return p.Status == StatusActive
}

// CanEdit checks if a user can modify this project
func (p *Project) CanEdit(userID string) bool {
	return userID != "" && p.UserID == userID
}

// Submit moves an active project to submitted. Submitting an already
// submitted project changes nothing and reports false.
func (p *Project) Submit() (bool, error) {
	switch p.Status {
	case StatusActive:
		p.Status = StatusSubmitted
		p.UpdatedAt = time.Now().UTC()
		return true, nil
	case StatusSubmitted:
		return false, nil
	default:
		return false, ErrSelectionLocked
	}
}

// Archive moves an active or submitted project to archived
func (p *Project) Archive() bool {
	if p.Status == StatusArchived {
		return false
	}
	p.Status = StatusArchived
	p.UpdatedAt = time.Now().UTC()
	return true
}

// ArchiveFilename returns the download name for the selected-photos archive
func (p *Project) ArchiveFilename() string {
	return "Selected_" + strings.ReplaceAll(p.Title, " ", "_") + "_" + p.ClientName + ".zip"
}

// CSVFilename returns the download name for the selected-photos CSV export
func (p *Project) CSVFilename() string {
	return "selected_photos_" + strings.ReplaceAll(p.Title, " ", "_") + ".csv"
}
