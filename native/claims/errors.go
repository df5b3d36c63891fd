package claims

import "errors"

var (
	ErrNilState           = errors.New("claims: state not configured")
	ErrNilEngines         = errors.New("claims: staking or vault engine not configured")
	ErrEmptyClaim         = errors.New("claims: no non-zero quantities requested")
	ErrLengthMismatch     = errors.New("claims: catalog and quantity lists differ in length")
	ErrNoPoints           = errors.New("claims: claimant has no spendable points")
	ErrInsufficientPoints = errors.New("claims: aggregate cost exceeds spendable points")
)
