package files

import "errors"

var (
	ErrNotFound    = errors.New("file not found")
	ErrDuplicate   = errors.New("file already exists")
	ErrInvalidFile = errors.New("invalid file")
	ErrNotUploaded = errors.New("file content has not been uploaded")
	// ErrNotPending indicates a status transition was attempted on a file
	// that already reached a terminal state.
	ErrNotPending = errors.New("file is not pending")
)
