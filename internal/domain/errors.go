package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrQueueFull         = errors.New("queue full")
	ErrQueueStopped      = errors.New("queue stopped")
	ErrDuplicatePosition = errors.New("duplicate position")
	ErrTradeRejected     = errors.New("trade rejected")
	ErrRateLimited       = errors.New("rate limited")
	ErrNoOpenPosition    = errors.New("no open position")
	ErrOverClose         = errors.New("close exceeds remaining amount")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrSigningFailed     = errors.New("signing failed")
	ErrWSDisconnect      = errors.New("websocket disconnected")
	ErrContextDone       = errors.New("context cancelled")
	ErrLockHeld          = errors.New("lock already held")
)
