package domain

import "errors"

var (
	// ErrIndexOutOfRange is returned when a question bank is read outside [0, Count).
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrInvalidTransition is returned when an operation is not allowed on the current screen.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidAnswer indicates an answer value that is not yes, no or skip.
	ErrInvalidAnswer = errors.New("invalid answer value")
	// ErrUnknownRole indicates a question weight references a role the bank does not declare.
	ErrUnknownRole = errors.New("unknown role")
	// ErrNegativeWeight indicates a question weight below zero.
	ErrNegativeWeight = errors.New("negative weight")
	// ErrDuplicateRole indicates the same role key was declared twice.
	ErrDuplicateRole = errors.New("duplicate role")
	// ErrInvalidBank is returned for structurally unusable banks (no roles, no questions).
	ErrInvalidBank = errors.New("invalid question bank")
	// ErrBankNotFound indicates the question bank could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrSessionNotFound is returned when a career check session has not been opened.
	ErrSessionNotFound = errors.New("career check session not found")
)
