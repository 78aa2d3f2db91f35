package dashboardapi

import (
	"botconsole/config"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type DashboardApiClient struct {
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    string
	logLimit   int
}

func NewDashboardApiClient(logger *zap.Logger, cfg *config.Config) *DashboardApiClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Dashboard.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := cfg.Dashboard.BotLogLimit
	if limit <= 0 {
		limit = 50
	}

	return &DashboardApiClient{
		logger: logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  strings.TrimRight(cfg.Dashboard.BaseURL, "/"),
		logLimit: limit,
	}
}

// BaseURL returns the backend root the client talks to.
func (c *DashboardApiClient) BaseURL() string {
	return c.baseURL
}

// ---- Trading mode ----

// GetTradingModeStatus fetches the server's current trading mode.
func (c *DashboardApiClient) GetTradingModeStatus(ctx context.Context) (*TradingModeStatus, error) {
	var status TradingModeStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/trading-mode/status", nil, nil, &status); err != nil {
		return nil, fmt.Errorf("get trading mode status: %w", err)
	}
	return &status, nil
}

// SwitchTradingMode asks the server to switch without prior confirmation.
// The server may answer with RequiresConfirmation set.
func (c *DashboardApiClient) SwitchTradingMode(ctx context.Context, mode TradingMode) (*SwitchResult, error) {
	return c.postMode(ctx, "/api/trading-mode/switch", mode)
}

// SwitchTradingModeConfirmed switches after the user has confirmed.
func (c *DashboardApiClient) SwitchTradingModeConfirmed(ctx context.Context, mode TradingMode) (*SwitchResult, error) {
	return c.postMode(ctx, "/api/trading-mode/switch-confirmed", mode)
}

// ResetTradingMode restores the server's default mode.
func (c *DashboardApiClient) ResetTradingMode(ctx context.Context) (*SwitchResult, error) {
	var result SwitchResult
	if err := c.doModeRequest(ctx, "/api/trading-mode/reset", nil, &result); err != nil {
		return nil, fmt.Errorf("reset trading mode: %w", err)
	}
	return &result, nil
}

func (c *DashboardApiClient) postMode(ctx context.Context, path string, mode TradingMode) (*SwitchResult, error) {
	form := url.Values{}
	form.Set("mode", string(mode))

	var result SwitchResult
	if err := c.doModeRequest(ctx, path, form, &result); err != nil {
		return nil, fmt.Errorf("switch trading mode to %s: %w", mode, err)
	}
	return &result, nil
}

// doModeRequest posts a form to a trading-mode endpoint. Those endpoints
// report refusals as 4xx with a JSON SwitchResult body, so the body is
// decoded whatever the status. Only a body that is not JSON on a non-2xx
// status becomes a StatusError.
func (c *DashboardApiClient) doModeRequest(ctx context.Context, path string, form url.Values, dest *SwitchResult) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	status, raw, err := c.do(req)
	if err != nil {
		return err
	}

	if jerr := json.Unmarshal(raw, dest); jerr != nil {
		if status/100 != 2 {
			return newStatusError(status, raw)
		}
		return &DecodeError{Body: string(raw), Err: jerr}
	}

	if status/100 != 2 && dest.Success {
		// A failing status with success=true is contradictory; trust the status.
		return newStatusError(status, raw)
	}
	return nil
}

// ---- Bot log ----

// GetBotLog loads the bot log with optional level and category filters.
func (c *DashboardApiClient) GetBotLog(ctx context.Context, filter LogFilter) (*BotLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = c.logLimit
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if filter.Level != "" {
		q.Set("level", filter.Level)
	}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}

	var log BotLog
	if err := c.doJSON(ctx, http.MethodGet, "/api/trading-bot/log", q, nil, &log); err != nil {
		return nil, fmt.Errorf("get bot log: %w", err)
	}
	return &log, nil
}

// ClearBotLog deletes every server-side bot log entry.
func (c *DashboardApiClient) ClearBotLog(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/api/trading-bot/log", nil, nil, nil); err != nil {
		return fmt.Errorf("clear bot log: %w", err)
	}
	return nil
}

// ---- Accounts ----

// GetAccounts lists the accounts available in the current mode.
func (c *DashboardApiClient) GetAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := c.doJSON(ctx, http.MethodGet, "/api/accounts", nil, nil, &accounts); err != nil {
		return nil, fmt.Errorf("get accounts: %w", err)
	}
	return accounts, nil
}

// ---- Section loads (opaque) ----

// GetPortfolio fetches the portfolio of accountID.
func (c *DashboardApiClient) GetPortfolio(ctx context.Context, accountID string) (json.RawMessage, error) {
	return c.getRaw(ctx, "get portfolio", "/api/portfolio", url.Values{"accountId": {accountID}})
}

// GetOrders fetches the orders of accountID.
func (c *DashboardApiClient) GetOrders(ctx context.Context, accountID string) (json.RawMessage, error) {
	return c.getRaw(ctx, "get orders", "/api/orders", url.Values{"accountId": {accountID}})
}

// GetInstruments fetches one instrument list, e.g. "shares", "bonds" or "etfs".
func (c *DashboardApiClient) GetInstruments(ctx context.Context, kind string) (json.RawMessage, error) {
	kind = strings.Trim(strings.TrimSpace(kind), "/")
	if kind == "" {
		kind = "shares"
	}
	return c.getRaw(ctx, "get instruments", "/api/instruments/"+url.PathEscape(kind), nil)
}

// GetBotStatus fetches the trading bot overview.
func (c *DashboardApiClient) GetBotStatus(ctx context.Context) (json.RawMessage, error) {
	return c.getRaw(ctx, "get bot status", "/api/trading-bot/status", nil)
}

// GetTradingOpportunities fetches the bot's current opportunities.
func (c *DashboardApiClient) GetTradingOpportunities(ctx context.Context) (json.RawMessage, error) {
	return c.getRaw(ctx, "get trading opportunities", "/api/trading-bot/opportunities", nil)
}

// GetMarginSettings fetches the margin settings form data.
func (c *DashboardApiClient) GetMarginSettings(ctx context.Context) (json.RawMessage, error) {
	return c.getRaw(ctx, "get margin settings", "/api/margin/settings", nil)
}

// GetHardStops fetches the hard-stop settings form data.
func (c *DashboardApiClient) GetHardStops(ctx context.Context) (json.RawMessage, error) {
	return c.getRaw(ctx, "get hard stops", "/api/hard-stops", nil)
}

func (c *DashboardApiClient) getRaw(ctx context.Context, op, path string, q url.Values) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, path, q, nil, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}

// ---- HTTP helpers ----

func (c *DashboardApiClient) doJSON(ctx context.Context, method, path string, q url.Values, body io.Reader, dest any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	status, raw, err := c.do(req)
	if err != nil {
		return err
	}

	if status/100 != 2 {
		return newStatusError(status, raw)
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &DecodeError{Body: string(raw), Err: err}
	}
	return nil
}

func (c *DashboardApiClient) do(req *http.Request) (int, []byte, error) {
	op := req.Method + " " + req.URL.Path

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &TransportError{Op: "read " + op, Err: err}
	}

	c.logger.Debug("dashboard api response",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
	)
	return resp.StatusCode, raw, nil
}
