package cache

import (
	perrors "github.com/jmgilman/go/errors"
)

var (
	// ErrInvalidConfig is wrapped by every Options.Validate failure. The
	// offending field is in the error context under "field".
	ErrInvalidConfig = perrors.New(perrors.CodeInvalidConfig, "cache: invalid configuration")

	// ErrNoLoader is returned by GetOrLoad when no Loader was configured in Options.
	ErrNoLoader = perrors.New(perrors.CodeInvalidInput, "cache: no Loader provided")

	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = perrors.New(perrors.CodeUnavailable, "cache: closed")
)

func invalid(field, format string, args ...any) error {
	return perrors.WithContext(
		perrors.Wrapf(ErrInvalidConfig, perrors.CodeInvalidConfig, format, args...),
		"field", field,
	)
}
