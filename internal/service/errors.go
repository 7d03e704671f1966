package service

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrInvalidRecovery   = errors.New("invalid recovery code")
	ErrPrintingDisabled  = errors.New("label printing is disabled")
	ErrNoItems           = errors.New("no matching items")
	ErrAlreadyConfigured = errors.New("admin password already configured")
)
