package models

import "time"

// CreateProjectRequest is the request body for creating a project
type CreateProjectRequest struct {
	Title        string `json:"title"`
	ClientName   string `json:"clientName"`
	MaxSelection *int   `json:"maxSelection,omitempty"`
}

// SubmitResponse is returned after a client submits their selection
type SubmitResponse struct {
	Message string   `json:"message"`
	Project *Project `json:"project"`
}

// MessageResponse is returned by operations that only report an outcome
type MessageResponse struct {
	Message string `json:"message"`
}

// SelectedRow is one line of the tabular selection export
type SelectedRow struct {
	AssetID string `json:"public_id"`
	URL     string `json:"url"`
}

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
