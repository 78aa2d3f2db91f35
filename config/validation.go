package config

import (
	"net/url"
	"strings"
	"time"
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of config validation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ConfigValidationError is returned when config validation fails.
type ConfigValidationError struct {
	Errors []ValidationError
}

func (e *ConfigValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "config validation failed"
	}
	return "config validation failed: " + e.Errors[0].Field + ": " + e.Errors[0].Message
}

// Validate checks the config for invalid values.
func (c *Config) Validate() ValidationResult {
	var errors []ValidationError

	errors = append(errors, validateDashboard(&c.Dashboard)...)
	errors = append(errors, validateLogStream(&c.LogStream)...)
	errors = append(errors, validateUI(&c.UI)...)

	return ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

func validateDashboard(d *DashboardConfig) []ValidationError {
	var errors []ValidationError

	u, err := url.Parse(d.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "dashboard.base_url",
			Message: "must be an absolute http(s) URL",
		})
	}

	if d.HTTPTimeout < 1*time.Second {
		errors = append(errors, ValidationError{
			Field:   "dashboard.http_timeout",
			Message: "must be at least 1 second",
		})
	}

	if d.RefreshInterval < 1*time.Second {
		errors = append(errors, ValidationError{
			Field:   "dashboard.refresh_interval",
			Message: "must be at least 1 second",
		})
	}

	if d.BotLogLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "dashboard.bot_log_limit",
			Message: "must be at least 1",
		})
	}

	return errors
}

func validateLogStream(ls *LogStreamConfig) []ValidationError {
	var errors []ValidationError

	if ls.Transport != TransportSSE && ls.Transport != TransportWebSocket {
		errors = append(errors, ValidationError{
			Field:   "log_stream.transport",
			Message: "must be \"sse\" or \"websocket\"",
		})
	}

	if !strings.HasPrefix(ls.SSEPath, "/") {
		errors = append(errors, ValidationError{
			Field:   "log_stream.sse_path",
			Message: "must start with /",
		})
	}

	if !strings.HasPrefix(ls.WSPath, "/") {
		errors = append(errors, ValidationError{
			Field:   "log_stream.ws_path",
			Message: "must start with /",
		})
	}

	if ls.ReconnectDelay < 100*time.Millisecond {
		errors = append(errors, ValidationError{
			Field:   "log_stream.reconnect_delay",
			Message: "must be at least 100ms",
		})
	}

	if ls.ReconnectMaxDelay < ls.ReconnectDelay {
		errors = append(errors, ValidationError{
			Field:   "log_stream.reconnect_max_delay",
			Message: "must be >= reconnect_delay",
		})
	}

	if ls.ConnectedIndicator <= 0 {
		errors = append(errors, ValidationError{
			Field:   "log_stream.connected_indicator",
			Message: "must be positive",
		})
	}

	if ls.Highlight <= 0 {
		errors = append(errors, ValidationError{
			Field:   "log_stream.highlight",
			Message: "must be positive",
		})
	}

	return errors
}

func validateUI(ui *UIConfig) []ValidationError {
	var errors []ValidationError

	if !strings.HasPrefix(ui.StartPath, "/") {
		errors = append(errors, ValidationError{
			Field:   "ui.start_path",
			Message: "must start with /",
		})
	}

	if ui.NotificationTTL <= 0 {
		errors = append(errors, ValidationError{
			Field:   "ui.notification_ttl",
			Message: "must be positive",
		})
	}

	return errors
}
