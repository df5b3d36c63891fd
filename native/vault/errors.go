package vault

import "errors"

var (
	ErrNilState         = errors.New("vault: state not configured")
	ErrNilAssets        = errors.New("vault: asset source not configured")
	ErrUnauthorized     = errors.New("vault: unauthorized")
	ErrUnknownEntry     = errors.New("vault: unknown catalog entry")
	ErrInvalidEntry     = errors.New("vault: invalid catalog entry")
	ErrInvalidQuantity  = errors.New("vault: quantity must be positive")
	ErrBelowHurdle      = errors.New("vault: point balance below eligibility hurdle")
	ErrClaimCapExceeded = errors.New("vault: per-address claim cap exceeded")
	ErrOutOfStock       = errors.New("vault: insufficient stock")
	ErrPoolExhausted    = errors.New("vault: pool smaller than requested quantity")
	ErrPickFailed       = errors.New("vault: randomized pick exhausted retry budget")
)
