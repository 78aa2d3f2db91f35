package dashboardapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TradingMode is the backend's trading mode.
type TradingMode string

const (
	ModeSandbox    TradingMode = "sandbox"
	ModeProduction TradingMode = "production"
)

// Valid reports whether m is one of the known modes.
func (m TradingMode) Valid() bool {
	return m == ModeSandbox || m == ModeProduction
}

// TradingModeStatus is the /api/trading-mode/status response.
// Older backends answer with "mode", newer ones with "currentMode".
type TradingModeStatus struct {
	Mode         TradingMode `json:"mode,omitempty"`
	CurrentMode  TradingMode `json:"currentMode,omitempty"`
	DisplayName  string      `json:"displayName"`
	BadgeClass   string      `json:"badgeClass"`
	IsSandbox    bool        `json:"isSandbox"`
	IsProduction bool        `json:"isProduction"`
	ModeInfo     string      `json:"modeInfo,omitempty"`
}

// EffectiveMode returns the mode the status reports, preferring "mode".
func (s *TradingModeStatus) EffectiveMode() TradingMode {
	if s.Mode != "" {
		return s.Mode
	}
	if s.CurrentMode != "" {
		return s.CurrentMode
	}
	switch {
	case s.IsProduction:
		return ModeProduction
	case s.IsSandbox:
		return ModeSandbox
	}
	return ""
}

// SwitchResult is the answer of the switch, switch-confirmed and reset endpoints.
type SwitchResult struct {
	Success              bool        `json:"success"`
	Message              string      `json:"message"`
	Warning              string      `json:"warning,omitempty"`
	RequiresConfirmation bool        `json:"requiresConfirmation,omitempty"`
	CurrentMode          TradingMode `json:"currentMode,omitempty"`
	DisplayName          string      `json:"displayName,omitempty"`
	BadgeClass           string      `json:"badgeClass,omitempty"`
	ModeInfo             string      `json:"modeInfo,omitempty"`
}

// Log levels.
const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
	LevelSuccess = "SUCCESS"
	LevelTrade   = "TRADE"
)

// Log categories known to the backend. Unknown categories are kept verbatim.
const (
	CategoryMarketAnalysis      = "MARKET_ANALYSIS"
	CategoryPortfolioManagement = "PORTFOLIO_MANAGEMENT"
	CategoryPortfolioAnalysis   = "PORTFOLIO_ANALYSIS"
	CategoryTradingStrategy     = "TRADING_STRATEGY"
	CategoryRebalancing         = "REBALANCING"
	CategoryTechnicalIndicators = "TECHNICAL_INDICATORS"
	CategoryAutomaticTrading    = "AUTOMATIC_TRADING"
	CategoryRiskManagement      = "RISK_MANAGEMENT"
	CategorySystemStatus        = "SYSTEM_STATUS"
)

// Levels lists every log level in display order.
var Levels = []string{LevelInfo, LevelWarning, LevelError, LevelSuccess, LevelTrade}

// Categories lists every known log category in display order.
var Categories = []string{
	CategoryMarketAnalysis,
	CategoryPortfolioManagement,
	CategoryPortfolioAnalysis,
	CategoryTradingStrategy,
	CategoryRebalancing,
	CategoryTechnicalIndicators,
	CategoryAutomaticTrading,
	CategoryRiskManagement,
	CategorySystemStatus,
}

// LogEntry is one bot log record. Treat it as immutable once decoded.
type LogEntry struct {
	Timestamp          Timestamp `json:"timestamp"`
	FormattedTimestamp string    `json:"formattedTimestamp"`
	Level              string    `json:"level"`
	Category           string    `json:"category"`
	Message            string    `json:"message"`
	Details            string    `json:"details,omitempty"`
	LevelIcon          string    `json:"levelIcon"`
	CategoryIcon       string    `json:"categoryIcon"`
}

// LogStatistics are the server-side aggregate counters.
type LogStatistics struct {
	TotalEntries int64 `json:"totalEntries"`
	InfoCount    int64 `json:"infoCount"`
	WarningCount int64 `json:"warningCount"`
	ErrorCount   int64 `json:"errorCount"`
	SuccessCount int64 `json:"successCount"`
	TradeCount   int64 `json:"tradeCount"`
}

// BotLog is the GET /api/trading-bot/log response.
type BotLog struct {
	Entries      []LogEntry     `json:"entries"`
	TotalEntries int64          `json:"totalEntries"`
	Statistics   *LogStatistics `json:"statistics,omitempty"`
}

// LogFilter narrows a bot log load. Zero values mean "no filter".
type LogFilter struct {
	Limit    int
	Level    string
	Category string
}

// Account is one brokerage account.
type Account struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// TimestampLayout is the backend's formattedTimestamp layout.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp decodes either an ISO-8601 local date-time string or the
// [year, month, day, hour, minute, second, nanos] array form.
type Timestamp struct {
	time.Time
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	TimestampLayout,
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '[' {
		var parts []int
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("timestamp array: %w", err)
		}
		if len(parts) < 3 {
			return fmt.Errorf("timestamp array too short: %d elements", len(parts))
		}
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		t.Time = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.Local)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range isoLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format("2006-01-02T15:04:05.999999999"))
}

// LevelIcon returns the icon the backend uses for level.
func LevelIcon(level string) string {
	switch level {
	case LevelInfo:
		return "ℹ️"
	case LevelWarning:
		return "⚠️"
	case LevelError:
		return "❌"
	case LevelSuccess:
		return "✅"
	case LevelTrade:
		return "💰"
	}
	return "📝"
}

// CategoryIcon returns the icon the backend uses for category.
func CategoryIcon(category string) string {
	switch category {
	case CategoryMarketAnalysis:
		return "📊"
	case CategoryPortfolioManagement:
		return "💼"
	case CategoryPortfolioAnalysis:
		return "📋"
	case CategoryTradingStrategy:
		return "🎯"
	case CategoryRebalancing:
		return "⚖️"
	case CategoryTechnicalIndicators:
		return "📈"
	case CategoryAutomaticTrading:
		return "🤖"
	case CategoryRiskManagement:
		return "🛡️"
	case CategorySystemStatus:
		return "⚙️"
	}
	return "📝"
}

// NewLogEntry builds a fully populated entry the way the backend does.
func NewLogEntry(ts time.Time, level, category, message, details string) LogEntry {
	return LogEntry{
		Timestamp:          Timestamp{ts},
		FormattedTimestamp: ts.Format(TimestampLayout),
		Level:              level,
		Category:           category,
		Message:            message,
		Details:            details,
		LevelIcon:          LevelIcon(level),
		CategoryIcon:       CategoryIcon(category),
	}
}
