package model

import (
	stderrors "errors"
	"fmt"
	"github.com/jmgilman/go/errors"
)

var (
	ErrInvalidArgument = stderrors.New("invalid argument")
	ErrInvalidConfig   = stderrors.New("invalid config")
	ErrEntryTooLarge   = stderrors.New("entry too large")
	ErrClosed          = stderrors.New("store is closed")
)

// Invalidf reports a malformed method argument.
func Invalidf(format string, args ...any) error {
	return errors.Wrap(ErrInvalidArgument, errors.CodeInvalidInput, fmt.Sprintf(format, args...))
}

// InvalidConfigf reports a malformed constructor option.
func InvalidConfigf(format string, args ...any) error {
	return errors.Wrap(ErrInvalidConfig, errors.CodeInvalidConfig, fmt.Sprintf(format, args...))
}

// TooLarge reports an entry exceeding the per-entry ceiling.
func TooLarge(size, limit int64) error {
	return errors.WrapWithContext(ErrEntryTooLarge, errors.CodeInvalidInput,
		fmt.Sprintf("entry of %d bytes exceeds max entry size of %d bytes", size, limit),
		map[string]interface{}{"size": size, "limit": limit},
	)
}

// Closed reports a call on a released store.
func Closed(store string) error {
	return errors.Wrap(ErrClosed, errors.CodeUnavailable, store)
}

// Database wraps an embedded engine failure.
func Database(err error, op string) error {
	return errors.Wrap(err, errors.CodeDatabase, op)
}

// Network wraps a remote transport failure.
func Network(err error, op string) error {
	return errors.Wrap(err, errors.CodeNetwork, op)
}
