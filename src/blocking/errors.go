package blocking

import "errors"

var (
	// ErrUnknownFormat is returned by Render for an unsupported output format
	ErrUnknownFormat = errors.New("unknown output format")
	// ErrSnapshot wraps failures capturing the session snapshot
	ErrSnapshot = errors.New("failed to capture session snapshot")
)
