package app

import (
	"botconsole/clients/dashboardapi"
	"botconsole/clients/notifier"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GateState is the position of the trading-mode state machine.
type GateState string

const (
	GateIdle                  GateState = "idle"
	GateAwaitingFirstConfirm  GateState = "awaiting-first-confirm"
	GateAwaitingSecondConfirm GateState = "awaiting-second-confirm"
	GateSubmitting            GateState = "submitting"
	GateAwaitingServerConfirm GateState = "awaiting-server-confirm"
	GateAwaitingResetConfirm  GateState = "awaiting-reset-confirm"
)

// PromptKind identifies which confirmation is being asked.
type PromptKind string

const (
	PromptProductionWarning PromptKind = "production-warning"
	PromptProductionConfirm PromptKind = "production-confirm"
	PromptServerConfirm     PromptKind = "server-confirm"
	PromptReset             PromptKind = "reset"
)

// Prompt is a yes/no question the user must answer before the gate proceeds.
type Prompt struct {
	Kind   PromptKind
	Title  string
	Text   string
	Danger bool
}

const (
	textProductionWarning = "ВНИМАНИЕ! Вы переключаетесь в режим реальной торговли. Это может привести к реальным финансовым потерям. Продолжить?"
	textProductionConfirm = "ПОДТВЕРЖДЕНИЕ: Вы уверены, что хотите активировать режим реальной торговли? Все операции будут выполняться с реальными деньгами!"
	textReset             = "Сбросить настройки режима торговли к значениям по умолчанию?"
	textAlreadyActive     = "Режим уже активен"
)

// ModeAPI is the trading-mode surface of the backend.
type ModeAPI interface {
	GetTradingModeStatus(ctx context.Context) (*dashboardapi.TradingModeStatus, error)
	SwitchTradingMode(ctx context.Context, mode dashboardapi.TradingMode) (*dashboardapi.SwitchResult, error)
	SwitchTradingModeConfirmed(ctx context.Context, mode dashboardapi.TradingMode) (*dashboardapi.SwitchResult, error)
	ResetTradingMode(ctx context.Context) (*dashboardapi.SwitchResult, error)
}

// AccountRefresher reloads the data that depends on the trading mode.
type AccountRefresher interface {
	LoadAccount(ctx context.Context) error
	LoadDashboard(ctx context.Context) error
}

// Confirmer answers prompts synchronously.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, p Prompt) bool

func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) bool { return f(ctx, p) }

// modeAttempt is one user action in flight. Never persisted.
type modeAttempt struct {
	id              string
	reset           bool
	from            dashboardapi.TradingMode
	requested       dashboardapi.TradingMode
	confirmations   int
	serverConfirmed bool
}

// ModeGate mediates trading-mode changes. The local mode only ever changes
// on a successful server response.
type ModeGate struct {
	logger    *zap.Logger
	api       ModeAPI
	refresher AccountRefresher
	notifier  notifier.Notifier
	toasts    *Toasts
	onChange  func()

	mu      sync.Mutex
	mode    dashboardapi.TradingMode
	status  *dashboardapi.TradingModeStatus
	state   GateState
	attempt *modeAttempt
	prompt  *Prompt
}

func NewModeGate(
	logger *zap.Logger,
	api ModeAPI,
	refresher AccountRefresher,
	n notifier.Notifier,
	toasts *Toasts,
	onChange func(),
) *ModeGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &ModeGate{
		logger:    logger,
		api:       api,
		refresher: refresher,
		notifier:  n,
		toasts:    toasts,
		onChange:  onChange,
		state:     GateIdle,
	}
}

// RequestSwitch starts a switch to target. It returns the first prompt to
// answer with Respond, or nil when the request completed without one.
func (g *ModeGate) RequestSwitch(ctx context.Context, target dashboardapi.TradingMode) (*Prompt, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, target)
	}

	g.mu.Lock()
	if g.state != GateIdle {
		g.mu.Unlock()
		return nil, ErrAttemptPending
	}
	if target == g.mode {
		g.mu.Unlock()
		g.toasts.Info(textAlreadyActive)
		return nil, nil
	}

	g.attempt = &modeAttempt{
		id:        uuid.NewString(),
		from:      g.mode,
		requested: target,
	}
	g.logger.Info("trading mode switch requested",
		zap.String("attempt", g.attempt.id),
		zap.String("from", string(g.mode)),
		zap.String("to", string(target)),
	)

	if target == dashboardapi.ModeProduction {
		p := g.promptLocked(GateAwaitingFirstConfirm, Prompt{
			Kind:   PromptProductionWarning,
			Title:  "Реальная торговля",
			Text:   textProductionWarning,
			Danger: true,
		})
		g.mu.Unlock()
		g.onChange()
		return p, nil
	}

	g.state = GateSubmitting
	g.mu.Unlock()
	g.onChange()
	return g.submitSwitch(ctx, false)
}

// RequestReset starts a reset of the mode settings. It always asks once.
func (g *ModeGate) RequestReset(ctx context.Context) (*Prompt, error) {
	g.mu.Lock()
	if g.state != GateIdle {
		g.mu.Unlock()
		return nil, ErrAttemptPending
	}

	g.attempt = &modeAttempt{id: uuid.NewString(), reset: true, from: g.mode}
	id := g.attempt.id
	p := g.promptLocked(GateAwaitingResetConfirm, Prompt{
		Kind:  PromptReset,
		Title: "Сброс режима",
		Text:  textReset,
	})
	g.mu.Unlock()

	g.logger.Info("trading mode reset requested", zap.String("attempt", id))
	g.onChange()
	return p, nil
}

// Respond answers the pending prompt. Declining aborts the attempt without
// any network call. It returns the next prompt, if any.
func (g *ModeGate) Respond(ctx context.Context, accept bool) (*Prompt, error) {
	g.mu.Lock()
	state := g.state
	if g.prompt == nil || state == GateIdle || state == GateSubmitting {
		g.mu.Unlock()
		return nil, ErrNoPendingPrompt
	}

	if !accept {
		id := g.attempt.id
		g.clearLocked()
		g.mu.Unlock()
		g.logger.Info("trading mode attempt declined",
			zap.String("attempt", id),
			zap.String("at", string(state)),
		)
		g.onChange()
		return nil, nil
	}

	switch state {
	case GateAwaitingFirstConfirm:
		g.attempt.confirmations = 1
		p := g.promptLocked(GateAwaitingSecondConfirm, Prompt{
			Kind:   PromptProductionConfirm,
			Title:  "Подтверждение",
			Text:   textProductionConfirm,
			Danger: true,
		})
		g.mu.Unlock()
		g.onChange()
		return p, nil

	case GateAwaitingSecondConfirm:
		g.attempt.confirmations = 2
		g.state = GateSubmitting
		g.prompt = nil
		g.mu.Unlock()
		g.onChange()
		return g.submitSwitch(ctx, true)

	case GateAwaitingServerConfirm:
		g.attempt.serverConfirmed = true
		g.state = GateSubmitting
		g.prompt = nil
		g.mu.Unlock()
		g.onChange()
		return g.submitSwitch(ctx, true)

	case GateAwaitingResetConfirm:
		g.state = GateSubmitting
		g.prompt = nil
		g.mu.Unlock()
		g.onChange()
		return nil, g.submitReset(ctx)
	}

	g.mu.Unlock()
	return nil, ErrNoPendingPrompt
}

// Cancel discards a pending prompt. A submission in flight is not affected.
func (g *ModeGate) Cancel() bool {
	g.mu.Lock()
	if g.prompt == nil || g.state == GateSubmitting {
		g.mu.Unlock()
		return false
	}
	g.clearLocked()
	g.mu.Unlock()
	g.onChange()
	return true
}

// Run drives a whole switch, asking c for every prompt.
func (g *ModeGate) Run(ctx context.Context, target dashboardapi.TradingMode, c Confirmer) error {
	p, err := g.RequestSwitch(ctx, target)
	return g.drive(ctx, p, err, c)
}

// RunReset drives a whole reset, asking c for the confirmation.
func (g *ModeGate) RunReset(ctx context.Context, c Confirmer) error {
	p, err := g.RequestReset(ctx)
	return g.drive(ctx, p, err, c)
}

func (g *ModeGate) drive(ctx context.Context, p *Prompt, err error, c Confirmer) error {
	for err == nil && p != nil {
		p, err = g.Respond(ctx, c.Confirm(ctx, *p))
	}
	return err
}

// submitSwitch posts the requested mode. confirmed selects the
// switch-confirmed endpoint.
func (g *ModeGate) submitSwitch(ctx context.Context, confirmed bool) (*Prompt, error) {
	g.mu.Lock()
	attempt := *g.attempt
	g.mu.Unlock()

	endpoint := "switch"
	call := g.api.SwitchTradingMode
	if confirmed {
		endpoint = "switch-confirmed"
		call = g.api.SwitchTradingModeConfirmed
	}

	g.logger.Info("submitting trading mode switch",
		zap.String("attempt", attempt.id),
		zap.String("endpoint", endpoint),
		zap.String("mode", string(attempt.requested)),
	)

	result, err := call(ctx, attempt.requested)
	if err != nil {
		g.fail(attempt, "Ошибка переключения режима: "+userMessage(err), err)
		return nil, err
	}

	if result.Success {
		g.apply(ctx, attempt, result)
		return nil, nil
	}

	if result.RequiresConfirmation && !attempt.serverConfirmed {
		g.mu.Lock()
		p := g.promptLocked(GateAwaitingServerConfirm, Prompt{
			Kind:   PromptServerConfirm,
			Title:  "Требуется подтверждение",
			Text:   nz(result.Message, "Сервер требует подтверждения") + "\n\nПродолжить?",
			Danger: attempt.requested == dashboardapi.ModeProduction,
		})
		g.mu.Unlock()
		g.logger.Info("server demanded confirmation", zap.String("attempt", attempt.id))
		g.onChange()
		return p, nil
	}

	msg := nz(result.Message, "Не удалось переключить режим")
	rejected := fmt.Errorf("trading mode switch rejected: %s", msg)
	g.fail(attempt, msg, rejected)
	return nil, rejected
}

func (g *ModeGate) submitReset(ctx context.Context) error {
	g.mu.Lock()
	attempt := *g.attempt
	g.mu.Unlock()

	result, err := g.api.ResetTradingMode(ctx)
	if err != nil {
		g.fail(attempt, "Ошибка сброса настроек: "+userMessage(err), err)
		return err
	}
	if !result.Success {
		msg := nz(result.Message, "Не удалось сбросить режим")
		rejected := fmt.Errorf("trading mode reset rejected: %s", msg)
		g.fail(attempt, msg, rejected)
		return rejected
	}

	g.apply(ctx, attempt, result)
	return nil
}

// apply adopts a successful server verdict and refreshes mode-dependent data.
func (g *ModeGate) apply(ctx context.Context, attempt modeAttempt, result *dashboardapi.SwitchResult) {
	g.mu.Lock()
	next := result.CurrentMode
	if !next.Valid() {
		next = attempt.requested
	}
	if next.Valid() {
		g.mode = next
	}
	to := g.mode
	g.clearLocked()
	g.mu.Unlock()

	g.logger.Info("trading mode changed",
		zap.String("attempt", attempt.id),
		zap.String("from", string(attempt.from)),
		zap.String("to", string(to)),
		zap.Bool("reset", attempt.reset),
	)

	if err := g.RefreshStatus(ctx); err != nil {
		g.logger.Warn("mode status refresh failed", zap.Error(err))
	}
	g.toasts.Success(nz(result.Message, "Режим торговли обновлен"))
	if result.Warning != "" {
		g.toasts.Warning(result.Warning)
	}

	if g.refresher != nil {
		if err := g.refresher.LoadAccount(ctx); err == nil {
			_ = g.refresher.LoadDashboard(ctx)
		}
	}

	if g.notifier != nil {
		kind := notifier.ChangeKindSwitched
		if attempt.reset {
			kind = notifier.ChangeKindReset
		}
		g.notifier.SendModeChange(notifier.ModeChange{
			AttemptID: attempt.id,
			Kind:      kind,
			From:      string(attempt.from),
			To:        string(to),
			Message:   result.Message,
			Warning:   result.Warning,
			Timestamp: time.Now(),
		})
	}
	g.onChange()
}

func (g *ModeGate) fail(attempt modeAttempt, message string, err error) {
	g.mu.Lock()
	g.clearLocked()
	g.mu.Unlock()

	g.logger.Warn("trading mode attempt failed",
		zap.String("attempt", attempt.id),
		zap.String("requested", string(attempt.requested)),
		zap.Bool("reset", attempt.reset),
		zap.Error(err),
	)
	g.toasts.Push(ToastError, message)
	g.onChange()
}

func (g *ModeGate) promptLocked(state GateState, p Prompt) *Prompt {
	g.state = state
	g.prompt = &p
	out := p
	return &out
}

func (g *ModeGate) clearLocked() {
	g.state = GateIdle
	g.attempt = nil
	g.prompt = nil
}

// RefreshStatus fetches the server's mode status and adopts it.
func (g *ModeGate) RefreshStatus(ctx context.Context) error {
	status, err := g.api.GetTradingModeStatus(ctx)
	if err != nil {
		g.logger.Error("load trading mode status", zap.Error(err))
		return err
	}

	g.mu.Lock()
	g.status = status
	if m := status.EffectiveMode(); m.Valid() {
		g.mode = m
	}
	mode := g.mode
	g.mu.Unlock()

	g.logger.Debug("trading mode status", zap.String("mode", string(mode)))
	g.onChange()
	return nil
}

// Mode returns the last server-confirmed mode, empty before the first status.
func (g *ModeGate) Mode() dashboardapi.TradingMode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// State returns the state machine position.
func (g *ModeGate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pending returns the prompt awaiting an answer, if any.
func (g *ModeGate) Pending() (Prompt, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.prompt == nil {
		return Prompt{}, false
	}
	return *g.prompt, true
}

// Confirmations returns how many production confirmations the pending
// attempt has collected.
func (g *ModeGate) Confirmations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.attempt == nil {
		return 0
	}
	return g.attempt.confirmations
}

// Status returns the last status payload with display fields filled in.
func (g *ModeGate) Status() dashboardapi.TradingModeStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	var s dashboardapi.TradingModeStatus
	if g.status != nil && g.status.EffectiveMode() == g.mode {
		s = *g.status
	}
	if g.mode.Valid() {
		s.Mode = g.mode
		s.IsProduction = g.mode == dashboardapi.ModeProduction
		s.IsSandbox = g.mode == dashboardapi.ModeSandbox
	}
	s.DisplayName = nz(s.DisplayName, ModeDisplayName(g.mode))
	if s.BadgeClass == "" {
		s.BadgeClass = modeBadge(g.mode)
	}
	return s
}

// ModeDisplayName returns the human name of a mode.
func ModeDisplayName(m dashboardapi.TradingMode) string {
	switch m {
	case dashboardapi.ModeSandbox:
		return "Песочница"
	case dashboardapi.ModeProduction:
		return "Реальная торговля"
	}
	return "Неизвестно"
}

func modeBadge(m dashboardapi.TradingMode) string {
	if m == dashboardapi.ModeProduction {
		return "bg-danger"
	}
	return "bg-warning"
}
