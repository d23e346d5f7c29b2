package models

import "errors"

// ErrorKind classifies a DomainError for the HTTP boundary
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindNotFound       ErrorKind = "not_found"
	KindUnauthorized   ErrorKind = "unauthorized"
	KindLocked         ErrorKind = "locked"
	KindLimitExceeded  ErrorKind = "limit_exceeded"
	KindEmptySelection ErrorKind = "empty_selection"
	KindUpstream       ErrorKind = "upstream"
	KindConflict       ErrorKind = "conflict"
)

// DomainError is a client-visible failure with a stable code
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e DomainError) Error() string {
	return e.Message
}

var (
	ErrProjectOwnerRequired  = DomainError{KindValidation, "owner_required", "project owner is required"}
	ErrProjectTitleRequired  = DomainError{KindValidation, "title_required", "title is required"}
	ErrProjectClientRequired = DomainError{KindValidation, "client_name_required", "client name is required"}
	ErrInvalidMaxSelection   = DomainError{KindValidation, "invalid_max_selection", "maxSelection must be a positive integer"}
	ErrPhotoProjectRequired  = DomainError{KindValidation, "project_required", "photo project is required"}
	ErrEmptyAssetURL         = DomainError{KindValidation, "asset_url_required", "asset URL cannot be empty"}
	ErrEmptyAssetID          = DomainError{KindValidation, "asset_id_required", "asset identifier cannot be empty"}
	ErrNoFiles               = DomainError{KindValidation, "no_files", "no photos were uploaded"}
	ErrInvalidExtension      = DomainError{KindValidation, "invalid_extension", "file extension not allowed"}
	ErrFileTooLarge          = DomainError{KindValidation, "file_too_large", "file size exceeds maximum allowed"}
	ErrPathTraversal         = DomainError{KindValidation, "invalid_path", "invalid path - path traversal detected"}

	ErrProjectNotFound = DomainError{KindNotFound, "project_not_found", "project not found"}
	ErrPhotoNotFound   = DomainError{KindNotFound, "photo_not_found", "photo not found"}
	ErrAssetNotFound   = DomainError{KindNotFound, "asset_not_found", "asset not found"}

	ErrNotAuthorized = DomainError{KindUnauthorized, "not_authorized", "not authorized"}

	ErrSelectionLocked       = DomainError{KindLocked, "selection_locked", "selection is locked"}
	ErrSelectionLimitReached = DomainError{KindLimitExceeded, "selection_limit_reached", "selection limit reached"}
	ErrNothingSelected       = DomainError{KindEmptySelection, "empty_selection", "no photos selected"}

	ErrAssetStore = DomainError{KindUpstream, "asset_store_failed", "asset store request failed"}

	ErrProjectChanged = DomainError{KindConflict, "project_changed", "photos were added while the project was being deleted, retry the delete"}
)

// KindOf returns the kind of the first DomainError in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var de DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// AsDomainError extracts the first DomainError in err's chain
func AsDomainError(err error) (DomainError, bool) {
	var de DomainError
	ok := errors.As(err, &de)
	return de, ok
}
