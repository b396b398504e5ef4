package cpa

import (
	"errors"
	"fmt"
)

// ErrUnsupported is matched by every UnsupportedError.
var ErrUnsupported = errors.New("unsupported")

// UnsupportedError reports a construct an analysis does not handle. Callers
// can tell it apart from genuine failures with errors.Is(err, ErrUnsupported).
type UnsupportedError struct {
	Feature string
}

func (e UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported: %s", e.Feature)
}

func (e UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// Unsupported builds an UnsupportedError from a format string.
func Unsupported(format string, args ...any) error {
	return UnsupportedError{Feature: fmt.Sprintf(format, args...)}
}

// ConfigurationError is reported before exploration starts when the plugged
// in analysis lacks a required capability.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration of %s: %s", e.Component, e.Reason)
}
