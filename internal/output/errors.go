package output

import (
	"errors"
	"fmt"
)

// ErrIntegrity is the sentinel wrapped by IntegrityError.
var ErrIntegrity = errors.New("output integrity check failed")

// IntegrityError reports an output whose content does not match its digest.
type IntegrityError struct {
	Path string
	Want string
	Got  string
}

func (e *IntegrityError) Error() string {
	if e.Want == "" {
		return fmt.Sprintf("%s: missing digest", e.Path)
	}
	return fmt.Sprintf("%s: digest mismatch: want %s, got %s", e.Path, e.Want, e.Got)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }
