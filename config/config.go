// Package config loads and validates the host Context configuration.
// Values come from TEE_* environment variables; unset variables take the
// envDefault of entities.Config.
package config

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/splitworld/tee-sdk/domain/entities"
)

// validate is a package-level singleton; validators cache struct metadata.
var validate = validator.New()

// FromEnv parses the process environment, applies opts and validates the
// result.
func FromEnv(opts ...entities.ConfigOption) (entities.Config, error) {
	return parse(env.Options{}, opts)
}

// FromMap is FromEnv over an explicit environment.
func FromMap(environ map[string]string, opts ...entities.ConfigOption) (entities.Config, error) {
	return parse(env.Options{Environment: environ}, opts)
}

func parse(envOpts env.Options, opts []entities.ConfigOption) (entities.Config, error) {
	var cfg entities.Config
	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		return entities.Config{}, fmt.Errorf("parse environment: %w", err)
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := Validate(cfg); err != nil {
		return entities.Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against its validate tags.
func Validate(cfg entities.Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stdErrors.As(err, &verrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
}
