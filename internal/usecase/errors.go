package usecase

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("resource not found")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrBackupFailed       = errors.New("backup failed")
	ErrRunConflict        = errors.New("another run holds the league lock")
	ErrRolledBack         = errors.New("import rolled back")
)
