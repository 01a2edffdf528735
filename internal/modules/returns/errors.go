package returns

import "errors"

// Error kinds reported by the calculator. They are wrapped with context at the
// point of detection; classify with errors.Is.
var (
	// ErrInvalidInput reports a malformed or too-short table.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientData reports too few observations for a statistic.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidParameter reports a window or trading-day count out of range.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrUnknownInstrument reports a requested column that is absent.
	ErrUnknownInstrument = errors.New("unknown instrument")
	// ErrDivisionByZero reports an undefined ratio whose denominator is zero.
	ErrDivisionByZero = errors.New("division by zero")
)
