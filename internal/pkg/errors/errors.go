package errors

import "errors"

var (
	// ErrNotFound is returned when no record matches the requested identifier.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a record whose identifier is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidRecord marks a raw document that cannot be normalized.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrBatchUploadFailed marks a batch whose transaction was rolled back.
	ErrBatchUploadFailed = errors.New("batch upload failed")
)
