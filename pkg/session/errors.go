package session

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotInitialized     = errors.New("session not initialized")
	ErrAlreadyInitialized = errors.New("session already initialized")
	ErrOutputBound        = errors.New("another output mode is bound")
	ErrAllocation         = errors.New("frame allocation failed")
)
