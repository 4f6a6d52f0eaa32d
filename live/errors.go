package live

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrConfig = errors.New("configuration error")
	ErrFetch  = errors.New("fetch failed")
	ErrParse  = errors.New("malformed page state")
	ErrStore  = errors.New("state store unavailable")
	ErrNotify = errors.New("notification delivery failed")
)

// Error attaches a kind and, when known, the account to an underlying cause.
type Error struct {
	Kind    error
	Account Account
	Err     error
}

func (e *Error) Error() string {
	if e.Account != "" {
		return fmt.Sprintf("%s: %v: %v", e.Account, e.Kind, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newError(kind error, acc Account, err error) *Error {
	return &Error{Kind: kind, Account: acc, Err: err}
}
