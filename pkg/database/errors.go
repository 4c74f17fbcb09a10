package database

import "errors"

var (
	// ErrPoolExhausted is returned when no connection became free within
	// the acquire timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrPoolClosed is returned when acquiring from a closed pool.
	ErrPoolClosed = errors.New("connection pool closed")

	// ErrTransport is returned after a transport-level failure survived
	// the executor's single retry.
	ErrTransport = errors.New("transport failure")
)
