package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

var logLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Server.Address == "" {
		errs = append(errs, ValidationError{"server.address", "must not be empty"})
	} else if _, _, err := net.SplitHostPort(c.Server.Address); err != nil {
		errs = append(errs, ValidationError{"server.address", fmt.Sprintf("invalid address: %v", err)})
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, ValidationError{"server.read_timeout", "must be positive"})
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, ValidationError{"server.write_timeout", "must be positive"})
	}
	if c.Server.MaxParallel < 0 {
		errs = append(errs, ValidationError{"server.max_parallel", "must not be negative"})
	}
	if c.Device.ADBPath == "" && c.Device.PortalURL == "" {
		errs = append(errs, ValidationError{"device", "needs portal_url or adb_path"})
	}
	if c.AI.MaxTokens < 0 {
		errs = append(errs, ValidationError{"ai.max_tokens", "must not be negative"})
	}
	if c.Logging.Level != "" && !logLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, ValidationError{"logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level)})
	}
	if c.License.URL != "" && c.License.Key == "" {
		errs = append(errs, ValidationError{"license.key", "required when license.url is set"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
