package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrIncompleteStage is returned when a completion flag would violate the record invariant.
var ErrIncompleteStage = errors.New("stage outputs incomplete")

// ErrEmptyMessage is returned when a submitted message is blank after sanitizing.
var ErrEmptyMessage = errors.New("message is empty")
