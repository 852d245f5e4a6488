package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/joe/lndp/internal/copyengine"
)

// validate is the singleton validator instance.
//
//nolint:gochecknoglobals // Validator caches struct metadata
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration using struct tags and the rules that
// cannot be expressed in tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if cfg.Copy != nil {
		if pattern, ok := copyengine.ValidatePatterns(append(cfg.Copy.Include, cfg.Copy.Exclude...)); !ok {
			return fmt.Errorf("copy: invalid glob pattern %q", pattern) //nolint:err113 // User input error
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]

		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", //nolint:err113 // User input error
			e.Namespace(), e.Tag(), e.Value())
	}

	return fmt.Errorf("invalid configuration: %w", err)
}
