package orders

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrEmptyOrder         = errors.New("order has no items")
	ErrValidationFailed   = errors.New("validation failed")
	ErrTransactionAborted = errors.New("transaction aborted")
	ErrOrderNotFound      = errors.New("order not found")
)

// LineError describes why one requested line could not be reserved.
type LineError struct {
	Index       int
	ProductRef  string
	ProductName string
	Requested   int
	Available   int
	Err         error
}

func (e *LineError) Error() string {
	switch {
	case errors.Is(e.Err, ErrProductNotFound):
		return fmt.Sprintf("Product with ID %s not found.", e.ProductRef)
	case errors.Is(e.Err, ErrInsufficientStock):
		return fmt.Sprintf("Not enough stock for product %s", e.ProductName)
	case errors.Is(e.Err, ErrInvalidQuantity):
		return fmt.Sprintf("Invalid quantity %d for product %s", e.Requested, e.ProductRef)
	case errors.Is(e.Err, ErrEmptyOrder):
		return "Order must contain at least one item"
	}
	return fmt.Sprintf("line %d: %v", e.Index, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ValidationError carries every per-line failure of one request, in request order.
type ValidationError struct {
	Lines []*LineError
}

func (e *ValidationError) Messages() []string {
	out := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		out = append(out, l.Error())
	}
	return out
}

func (e *ValidationError) Error() string { return strings.Join(e.Messages(), "\n") }

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

func (e *ValidationError) Unwrap() []error {
	out := make([]error, 0, len(e.Lines))
	for _, l := range e.Lines {
		out = append(out, l)
	}
	return out
}

// AbortedError reports an infrastructure failure after which the scope was rolled back.
type AbortedError struct {
	Stage string
	Err   error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("transaction aborted during %s: %v", e.Stage, e.Err)
}

func (e *AbortedError) Is(target error) bool { return target == ErrTransactionAborted }

func (e *AbortedError) Unwrap() error { return e.Err }
