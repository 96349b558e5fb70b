package events

import "errors"

var (
	ErrEventNotFound  = errors.New("event not found")
	ErrEventCancelled = errors.New("event is cancelled")
	ErrInvalidStatus  = errors.New("invalid event status transition")
)
