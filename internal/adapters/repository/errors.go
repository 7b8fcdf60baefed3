package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrPoolExhausted     = errors.New("connection pool exhausted")
	ErrPoolClosed        = errors.New("connection pool closed")
	ErrPersistence       = errors.New("persistence failed")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrMigrate           = errors.New("migration failed")
	ErrInvalidArgument   = errors.New("invalid argument")
)
