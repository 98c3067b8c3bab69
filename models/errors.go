package models

import "errors"

// Domain errors returned by label operations. They are always wrapped with
// context, so callers should test them with errors.Is.
var (
	// ErrUnknownLabel means the id is absent or is a reserved pseudo label
	// where a real label is required.
	ErrUnknownLabel = errors.New("unknown label")

	// ErrInvalidName means the name is empty or whitespace only.
	ErrInvalidName = errors.New("invalid label name")

	// ErrDuplicateName means a sibling already uses the name.
	ErrDuplicateName = errors.New("label already exists")

	// ErrInvalidOptions means a configuration patch failed validation.
	ErrInvalidOptions = errors.New("invalid label options")

	// ErrNotInitialized means startup reconciliation has not completed.
	ErrNotInitialized = errors.New("label engine not initialized")
)
