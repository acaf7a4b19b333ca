// Package config holds the module's single init-time configuration
// object, validated with struct tags.
package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"hivehydeanti/internal/telemetry"
)

var log = telemetry.WithComponent("CONFIG")

var validate = validator.New()

// ErrConfigMissing is returned when required fields are absent.
var ErrConfigMissing = errors.New("config: apiBaseUrl is required")

// Config is the module's single init-time configuration object. ApiBaseUrl
// is the only required field.
type Config struct {
	ApiBaseUrl string `validate:"required,url"`
}

// Validate checks Config for errors, wrapping ErrConfigMissing with the
// validator's field-level detail.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			log.Error("config validation failed: %s", verrs.Error())
		}
		return fmt.Errorf("%w: %s", ErrConfigMissing, err.Error())
	}
	return nil
}
