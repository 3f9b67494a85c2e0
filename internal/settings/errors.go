package settings

import (
	"errors"

	"jellywatch/internal/services"
)

type notConfiguredError struct{}

func (notConfiguredError) Error() string { return "please configure services" }

func (notConfiguredError) Is(target error) bool { return target == services.ErrConfiguration }

// ErrNotConfigured reports that no service row has been saved yet. It matches
// services.ErrConfiguration under errors.Is.
var ErrNotConfigured error = notConfiguredError{}

// IsNotConfigured reports whether err signals a missing service row.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

func validationError(operation, message string) error {
	return services.Wrap(services.ErrValidation, "settings", operation, message, nil)
}

func notFoundError(operation, message string) error {
	return services.Wrap(services.ErrNotFound, "settings", operation, message, nil)
}
