package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// A ValidationError names the offending config key.
type ValidationError struct {
	Key string
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Msg)
}

var (
	validateOnce sync.Once
	validateInst *validator.Validate
)

// validatorInstance reports struct errors under the yaml key names.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validateInst = v
	})
	return validateInst
}

// Validate checks field constraints and the cross-field transport
// rules.
func Validate(cfg *Config) error {
	if err := validatorInstance().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return &ValidationError{Key: f.Field(), Msg: "violates " + f.Tag()}
		}
		return err
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return &ValidationError{Key: "log_level", Msg: err.Error()}
	}
	if !cfg.DryRun && cfg.SerialPort == "" {
		return &ValidationError{Key: "serial_port", Msg: "required unless dry_run is set (device path, or port name when spjs_url is set)"}
	}
	return nil
}
