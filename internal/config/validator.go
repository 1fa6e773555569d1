package config

import (
	"fmt"
	"regexp"
	"time"

	"bookingsync/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func Validate(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateMailbox(cfg.Mailbox); err != nil {
		errs = append(errs, err)
	}

	if err := validatePipeline(cfg.Pipeline); err != nil {
		errs = append(errs, err)
	}

	if err := validateSources(cfg.Sources); err != nil {
		errs = append(errs, err)
	}

	if cfg.Events.Enabled && len(cfg.Events.Brokers) == 0 {
		errs = append(errs, &ValidationError{
			Field:   "events.brokers",
			Message: "at least one broker is required when events are enabled",
		})
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}
	return nil
}

func validateMailbox(cfg MailboxConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "mailbox.host",
			Message: "IMAP host is required",
		}
	}
	if cfg.Username == "" || cfg.Password == "" {
		return &ValidationError{
			Field:   "mailbox.username",
			Message: "IMAP credentials are required",
		}
	}
	return nil
}

func validatePipeline(cfg PipelineConfig) error {
	if cfg.TickInterval < time.Second {
		return &ValidationError{
			Field:   "pipeline.tick_interval",
			Message: "tick interval must be at least one second",
		}
	}
	if cfg.OnCacheError != constants.FallbackAllow && cfg.OnCacheError != constants.FallbackDeny {
		return &ValidationError{
			Field:   "pipeline.on_cache_error",
			Message: fmt.Sprintf("must be %q or %q", constants.FallbackAllow, constants.FallbackDeny),
		}
	}
	return nil
}

func validateSources(sources []SourceConfig) error {
	if len(sources) == 0 {
		return &ValidationError{
			Field:   "sources",
			Message: "at least one source is required",
		}
	}

	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		if src.Name == "" {
			return &ValidationError{
				Field:   "sources.name",
				Message: "source name is required",
			}
		}
		if seen[src.Name] {
			return &ValidationError{
				Field:   "sources.name",
				Message: fmt.Sprintf("duplicate source name %q", src.Name),
			}
		}
		seen[src.Name] = true

		if src.OrderIDPattern == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("sources[%s].order_id_pattern", src.Name),
				Message: "order id pattern is required",
			}
		}
		if _, err := regexp.Compile(src.OrderIDPattern); err != nil {
			return &ValidationError{
				Field:   fmt.Sprintf("sources[%s].order_id_pattern", src.Name),
				Message: fmt.Sprintf("invalid regexp: %v", err),
			}
		}

		if src.Horizon != "" {
			if _, err := time.Parse("2006-01-02", src.Horizon); err != nil {
				return &ValidationError{
					Field:   fmt.Sprintf("sources[%s].horizon", src.Name),
					Message: "horizon must be YYYY-MM-DD",
				}
			}
		}

		if src.Session.OTP.Enabled && src.Session.OTP.Pattern == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("sources[%s].session.otp.pattern", src.Name),
				Message: "otp pattern is required when otp is enabled",
			}
		}
	}

	return nil
}
