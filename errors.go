package tenants

import (
	"github.com/pkg/errors"
)

var (
	ErrDriverNotInitialized = errors.New("database driver has not been initialized")
	ErrConfiguration        = errors.New("configuration error")
	ErrVersionRequired      = errors.New("VERSION is required")
	ErrInvalidStep          = errors.New("STEP must be a positive integer")
)

// configurationError marks failures detected before any tenant is touched
type configurationError struct {
	err error
}

func (e configurationError) Error() string {
	return e.err.Error()
}

func (e configurationError) Unwrap() error {
	return e.err
}

func (e configurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configuration(err error) error {
	if err == nil {
		return nil
	}

	return configurationError{err: err}
}

// IsConfigurationError reports whether err was raised before any tenant work
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// ConfigurationError marks err as a configuration error for callers
// outside of the operator, such as the command line
func ConfigurationError(err error) error {
	return configuration(err)
}
