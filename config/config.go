package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Log stream transports.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// Config holds all application configuration.
type Config struct {
	// Backend REST surface
	Dashboard DashboardConfig `yaml:"dashboard"`

	// Live bot log feed
	LogStream LogStreamConfig `yaml:"log_stream"`

	// Terminal front end
	UI UIConfig `yaml:"ui"`

	// Local journal of streamed log entries
	Archive ArchiveConfig `yaml:"archive"`

	// Trading mode audit notifications
	Discord  DiscordConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`

	Logging LoggingConfig `yaml:"logging"`

	// In-memory development backend
	DevBackend DevBackendConfig `yaml:"dev_backend"`
}

// DashboardConfig holds the backend connection settings.
type DashboardConfig struct {
	BaseURL         string        `yaml:"base_url"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	RefreshInterval time.Duration `yaml:"refresh_interval"` // dashboard auto-refresh period
	BotLogLimit     int           `yaml:"bot_log_limit"`    // default limit for the REST bot log load
}

// LogStreamConfig holds the server-push log feed settings.
type LogStreamConfig struct {
	Transport          string        `yaml:"transport"` // "sse" or "websocket"
	SSEPath            string        `yaml:"sse_path"`
	WSPath             string        `yaml:"ws_path"`
	ReconnectDelay     time.Duration `yaml:"reconnect_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"` // equal to ReconnectDelay means a fixed delay
	CloseOnLeave       bool          `yaml:"close_on_leave"`      // close the feed when leaving the trading-bot section
	ConnectedIndicator time.Duration `yaml:"connected_indicator"` // how long the "connected" indicator stays up
	Highlight          time.Duration `yaml:"highlight"`           // how long a new entry stays highlighted
}

// UIConfig holds front end settings.
type UIConfig struct {
	StartPath       string        `yaml:"start_path"` // initial address, may carry a #fragment
	AppTitle        string        `yaml:"app_title"`
	NotificationTTL time.Duration `yaml:"notification_ttl"`
}

// ArchiveConfig holds the SQLite log journal settings. Empty path disables it.
type ArchiveConfig struct {
	Path string `yaml:"path"`
}

// DiscordConfig holds Discord-related configuration.
type DiscordConfig struct {
	BotToken  string `yaml:"-"` // Excluded - env var only
	ChannelID string `yaml:"channel_id"`
}

// TelegramConfig holds Telegram-related configuration.
type TelegramConfig struct {
	BotToken string `yaml:"-"` // Excluded - env var only
	ChatID   string `yaml:"chat_id"`
}

// LoggingConfig holds zap output settings.
type LoggingConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// DevBackendConfig holds the development backend settings.
type DevBackendConfig struct {
	Addr string `yaml:"addr"`
}

// Clone creates a copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// SSEURL returns the absolute URL of the SSE log stream.
func (c *Config) SSEURL() string {
	return strings.TrimRight(c.Dashboard.BaseURL, "/") + c.LogStream.SSEPath
}

// WebSocketURL returns the absolute ws:// or wss:// URL of the log stream.
func (c *Config) WebSocketURL() string {
	base := strings.TrimRight(c.Dashboard.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + c.LogStream.WSPath
}

// Defaults returns a config with hardcoded default values.
func Defaults() *Config {
	return &Config{
		Dashboard: DashboardConfig{
			BaseURL:         "http://localhost:8080",
			HTTPTimeout:     30 * time.Second,
			RefreshInterval: 30 * time.Second,
			BotLogLimit:     50,
		},
		LogStream: LogStreamConfig{
			Transport:          TransportSSE,
			SSEPath:            "/api/logs/stream",
			WSPath:             "/api/logs/ws",
			ReconnectDelay:     5 * time.Second,
			ReconnectMaxDelay:  5 * time.Second,
			ConnectedIndicator: 3 * time.Second,
			Highlight:          1 * time.Second,
		},
		UI: UIConfig{
			StartPath:       "/dashboard",
			AppTitle:        "Tinkoff Auto Trading Bot",
			NotificationTTL: 5 * time.Second,
		},
		Logging: LoggingConfig{
			File:  "botconsole.log",
			Level: "info",
		},
		DevBackend: DevBackendConfig{
			Addr: ":8080",
		},
	}
}

// Load loads configuration from a .env file (if present) and environment
// variables, falling back to defaults.
func Load() *Config {
	// A missing .env is not an error; real environment variables still apply.
	_ = godotenv.Load()

	d := Defaults()
	return &Config{
		Dashboard: DashboardConfig{
			BaseURL:         envString("DASHBOARD_BASE_URL", d.Dashboard.BaseURL),
			HTTPTimeout:     envDuration("HTTP_TIMEOUT", d.Dashboard.HTTPTimeout),
			RefreshInterval: envDuration("DASHBOARD_REFRESH_INTERVAL", d.Dashboard.RefreshInterval),
			BotLogLimit:     envInt("BOT_LOG_LIMIT", d.Dashboard.BotLogLimit),
		},

		LogStream: LogStreamConfig{
			Transport:          strings.ToLower(envString("LOG_STREAM_TRANSPORT", d.LogStream.Transport)),
			SSEPath:            envString("LOG_STREAM_PATH", d.LogStream.SSEPath),
			WSPath:             envString("LOG_STREAM_WS_PATH", d.LogStream.WSPath),
			ReconnectDelay:     envDuration("LOG_STREAM_RECONNECT_DELAY", d.LogStream.ReconnectDelay),
			ReconnectMaxDelay:  envDuration("LOG_STREAM_RECONNECT_MAX_DELAY", d.LogStream.ReconnectMaxDelay),
			CloseOnLeave:       envBoolDefault("LOG_STREAM_CLOSE_ON_LEAVE", false),
			ConnectedIndicator: envDuration("LOG_CONNECTED_INDICATOR", d.LogStream.ConnectedIndicator),
			Highlight:          envDuration("LOG_HIGHLIGHT", d.LogStream.Highlight),
		},

		UI: UIConfig{
			StartPath:       envString("START_PATH", d.UI.StartPath),
			AppTitle:        envString("APP_TITLE", d.UI.AppTitle),
			NotificationTTL: envDuration("NOTIFICATION_TTL", d.UI.NotificationTTL),
		},

		Archive: ArchiveConfig{
			Path: envString("LOG_ARCHIVE_PATH", ""),
		},

		Discord: DiscordConfig{
			BotToken:  envString("DISCORD_BOT_TOKEN", ""),
			ChannelID: envString("DISCORD_CHANNEL_ID", ""),
		},

		Telegram: TelegramConfig{
			BotToken: envString("TELEGRAM_BOT_KEY", ""),
			ChatID:   envString("TELEGRAM_CHAT_ID", ""),
		},

		Logging: LoggingConfig{
			File:  envString("LOG_FILE", d.Logging.File),
			Level: strings.ToLower(envString("LOG_LEVEL", d.Logging.Level)),
		},

		DevBackend: DevBackendConfig{
			Addr: envString("DEV_BACKEND_ADDR", d.DevBackend.Addr),
		},
	}
}

// LoadFile overlays the YAML file at path on top of base.
// Fields absent from the file keep the base value.
func LoadFile(path string, base *Config) (*Config, error) {
	if base == nil {
		base = Defaults()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := base.Clone()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	cfg.LogStream.Transport = strings.ToLower(cfg.LogStream.Transport)

	if result := cfg.Validate(); !result.Valid {
		return nil, &ConfigValidationError{Errors: result.Errors}
	}
	return cfg, nil
}

// Helper functions for parsing environment variables

func envString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envBoolDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "1") || strings.EqualFold(v, "yes")
}
