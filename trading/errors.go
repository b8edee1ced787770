package trading

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrUnpricedSymbol  = errors.New("no usable price for symbol")
	ErrInvalidQuantity = errors.New("quantity must be a positive number")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrNoSession       = errors.New("no sizing session open")
	ErrSessionActive   = errors.New("a sizing session is already open")
	ErrEmptySymbol     = errors.New("symbol cannot be empty")
	ErrInvalidSide     = errors.New("side must be buy or sell")
)

// SubmissionError carries a backend or network failure verbatim
type SubmissionError struct {
	Symbol string
	Side   Side
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s %s order failed: %v", e.Side, e.Symbol, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
