package app

import (
	"botconsole/clients/dashboardapi"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DashboardAPI is the slice of the backend the section loads need.
type DashboardAPI interface {
	GetAccounts(ctx context.Context) ([]dashboardapi.Account, error)
	GetPortfolio(ctx context.Context, accountID string) (json.RawMessage, error)
	GetOrders(ctx context.Context, accountID string) (json.RawMessage, error)
	GetInstruments(ctx context.Context, kind string) (json.RawMessage, error)
	GetBotStatus(ctx context.Context) (json.RawMessage, error)
	GetTradingOpportunities(ctx context.Context) (json.RawMessage, error)
	GetMarginSettings(ctx context.Context) (json.RawMessage, error)
	GetHardStops(ctx context.Context) (json.RawMessage, error)
}

// SectionLoader fetches the data shown in each section.
type SectionLoader interface {
	LoadDashboard(ctx context.Context) error
	LoadInstruments(ctx context.Context) error
	LoadPortfolio(ctx context.Context) error
	LoadOrders(ctx context.Context) error
	LoadBotOverview(ctx context.Context) error
	LoadSettings(ctx context.Context) error
}

// Payload keys stored by DataLoader.
const (
	PayloadPortfolio     = "portfolio"
	PayloadOrders        = "orders"
	PayloadShares        = "instruments/shares"
	PayloadBonds         = "instruments/bonds"
	PayloadEtfs          = "instruments/etfs"
	PayloadBotStatus     = "trading-bot/status"
	PayloadOpportunities = "trading-bot/opportunities"
	PayloadMargin        = "margin/settings"
	PayloadHardStops     = "hard-stops"
)

// Payload is one opaque backend answer kept for display.
type Payload struct {
	Raw      json.RawMessage
	LoadedAt time.Time
}

// Summary describes the payload shape without interpreting domain fields.
func (p Payload) Summary() string {
	return summarizeJSON(p.Raw)
}

// DataLoader implements SectionLoader on top of the REST backend and keeps
// the account identity the portfolio and order loads depend on.
type DataLoader struct {
	logger   *zap.Logger
	api      DashboardAPI
	toasts   *Toasts
	onChange func()

	mu        sync.Mutex
	accountID string
	payloads  map[string]Payload
}

func NewDataLoader(logger *zap.Logger, api DashboardAPI, toasts *Toasts, onChange func()) *DataLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &DataLoader{
		logger:   logger,
		api:      api,
		toasts:   toasts,
		onChange: onChange,
		payloads: make(map[string]Payload),
	}
}

// AccountID returns the account the loads use, empty until loaded.
func (l *DataLoader) AccountID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accountID
}

// Payload returns the last stored answer for key.
func (l *DataLoader) Payload(key string) (Payload, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.payloads[key]
	return p, ok
}

// LoadAccount picks the first account of the current trading mode.
func (l *DataLoader) LoadAccount(ctx context.Context) error {
	accounts, err := l.api.GetAccounts(ctx)
	if err != nil {
		l.toasts.Error("load accounts", err)
		return err
	}

	if len(accounts) == 0 || accounts[0].ID == "" {
		l.mu.Lock()
		l.accountID = ""
		l.mu.Unlock()
		l.toasts.Error("load accounts", ErrNoAccount)
		return ErrNoAccount
	}

	l.mu.Lock()
	l.accountID = accounts[0].ID
	l.mu.Unlock()

	l.logger.Info("account loaded", zap.String("account", shortID(accounts[0].ID)))
	l.onChange()
	return nil
}

// LoadDashboard refreshes the portfolio, order and instrument counters.
func (l *DataLoader) LoadDashboard(ctx context.Context) error {
	accountID := l.AccountID()
	if accountID == "" {
		l.toasts.Error("load dashboard", ErrNoAccount)
		return ErrNoAccount
	}

	return errors.Join(
		l.fetch(ctx, PayloadPortfolio, func(ctx context.Context) (json.RawMessage, error) {
			return l.api.GetPortfolio(ctx, accountID)
		}),
		l.fetch(ctx, PayloadOrders, func(ctx context.Context) (json.RawMessage, error) {
			return l.api.GetOrders(ctx, accountID)
		}),
		l.fetchInstruments(ctx, "shares", PayloadShares),
	)
}

func (l *DataLoader) LoadInstruments(ctx context.Context) error {
	return errors.Join(
		l.fetchInstruments(ctx, "shares", PayloadShares),
		l.fetchInstruments(ctx, "bonds", PayloadBonds),
		l.fetchInstruments(ctx, "etfs", PayloadEtfs),
	)
}

func (l *DataLoader) LoadPortfolio(ctx context.Context) error {
	accountID := l.AccountID()
	if accountID == "" {
		l.toasts.Error("load portfolio", ErrNoAccount)
		return ErrNoAccount
	}
	return l.fetch(ctx, PayloadPortfolio, func(ctx context.Context) (json.RawMessage, error) {
		return l.api.GetPortfolio(ctx, accountID)
	})
}

func (l *DataLoader) LoadOrders(ctx context.Context) error {
	accountID := l.AccountID()
	if accountID == "" {
		l.toasts.Error("load orders", ErrNoAccount)
		return ErrNoAccount
	}
	return l.fetch(ctx, PayloadOrders, func(ctx context.Context) (json.RawMessage, error) {
		return l.api.GetOrders(ctx, accountID)
	})
}

// LoadBotOverview fetches the bot status and its current opportunities.
func (l *DataLoader) LoadBotOverview(ctx context.Context) error {
	return errors.Join(
		l.fetch(ctx, PayloadBotStatus, l.api.GetBotStatus),
		l.fetch(ctx, PayloadOpportunities, l.api.GetTradingOpportunities),
	)
}

// LoadSettings fetches the margin and hard-stop forms.
func (l *DataLoader) LoadSettings(ctx context.Context) error {
	return errors.Join(
		l.fetch(ctx, PayloadMargin, l.api.GetMarginSettings),
		l.fetch(ctx, PayloadHardStops, l.api.GetHardStops),
	)
}

func (l *DataLoader) fetchInstruments(ctx context.Context, kind, key string) error {
	return l.fetch(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		return l.api.GetInstruments(ctx, kind)
	})
}

func (l *DataLoader) fetch(ctx context.Context, key string, get func(context.Context) (json.RawMessage, error)) error {
	raw, err := get(ctx)
	if err != nil {
		l.toasts.Error("load "+key, err)
		return err
	}

	l.mu.Lock()
	l.payloads[key] = Payload{Raw: raw, LoadedAt: time.Now()}
	l.mu.Unlock()

	l.onChange()
	return nil
}

func summarizeJSON(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "unreadable"
	}
	switch t := v.(type) {
	case []any:
		return fmt.Sprintf("%d items", len(t))
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 6 {
			keys = append(keys[:6], "…")
		}
		return "fields: " + strings.Join(keys, ", ")
	case nil:
		return "empty"
	}
	return fmt.Sprint(v)
}
