package service

import (
	"errors"
	"fmt"
)

// Errors returned by the resolver and the admin services. Callers use
// errors.Is; storage failures are wrapped in ErrStorage.
var (
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrExpiredChallenge   = errors.New("challenge timestamp outside accepted window")
	ErrForbidden          = errors.New("forbidden")
	ErrInsufficientRank   = errors.New("insufficient rank for requested role")
	ErrAlreadyInitialized = errors.New("system already initialized")
	ErrAlreadyAdmin       = errors.New("address is already an admin")
	ErrNotFound           = errors.New("not found")
	ErrStorage            = errors.New("storage error")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidCredential  = errors.New("invalid credential")
)

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
