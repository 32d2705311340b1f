package money

import "errors"

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrDivisionByZero = errors.New("division by zero")
)
