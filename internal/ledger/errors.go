package ledger

import "errors"

// Every rejected mutation wraps exactly one of these; match with errors.Is.
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnauthorized          = errors.New("caller is not the privileged account")
	ErrOverflow              = errors.New("amount overflow")
	ErrUnderflow             = errors.New("amount underflow")
)
