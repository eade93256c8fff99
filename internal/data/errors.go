package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrSlotRequired is returned when a token slot repository has no slot name.
	ErrSlotRequired = errors.New("token slot name is required")
	// ErrEmptyToken is returned when saving an empty token.
	ErrEmptyToken = errors.New("token cannot be empty")
)
