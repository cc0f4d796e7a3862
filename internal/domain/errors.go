package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrSequenceConflict      = errors.New("ledger sequence conflict")
	ErrAppendOnlyViolation   = errors.New("append-only violation")
	ErrChainBreak            = errors.New("ledger chain break")
	ErrSignatureInvalid      = errors.New("signature invalid")
	ErrIdentityUnknown       = errors.New("identity unknown")
	ErrIdentityExists        = errors.New("identity already registered")
	ErrIdentityRevoked       = errors.New("identity revoked")
	ErrIdentityCycle         = errors.New("identity delegation cycle")
	ErrIdempotencyConflict   = errors.New("idempotency key reuse with different request")
	ErrInvalidIdempotencyKey = errors.New("invalid idempotency key")
	ErrInvalidArtifact       = errors.New("invalid artifact")
	ErrSigningUnavailable    = errors.New("signing key material unavailable")
)
