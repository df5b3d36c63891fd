package staking

import "errors"

var (
	ErrNilState            = errors.New("staking: state not configured")
	ErrNilAssets           = errors.New("staking: asset source not configured")
	ErrUnauthorized        = errors.New("staking: unauthorized")
	ErrCollectionNotFound  = errors.New("staking: collection not found")
	ErrCollectionInactive  = errors.New("staking: collection inactive")
	ErrWrongCollectionKind = errors.New("staking: operation does not match collection kind")
	ErrAlreadyStaked       = errors.New("staking: identifier already staked")
	ErrNotStaked           = errors.New("staking: identifier not staked")
	ErrNotOwner            = errors.New("staking: caller does not own asset")
	ErrInsufficientBalance = errors.New("staking: external balance below requested amount")
	ErrInvalidAmount       = errors.New("staking: amount must be positive")
	ErrInvalidCollection   = errors.New("staking: invalid collection config")
)
