package config

import (
	"errors"
	"fmt"
)

// ErrNotConfiguration is the sentinel wrapped by TypeError.
var ErrNotConfiguration = errors.New("not a recognized configuration")

// TypeError reports a configuration value lacking a required capability.
type TypeError struct {
	Kind       string // configuration kind or Go type
	Capability string // missing interface, e.g. "config.ZAxis"
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("configuration %q does not implement %s", e.Kind, e.Capability)
}

func (e *TypeError) Unwrap() error { return ErrNotConfiguration }
