package tui

import (
	"botconsole/clients/dashboardapi"
	"botconsole/internal/app"
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

const textClearLog = "Вы уверены, что хотите очистить лог? Это действие нельзя отменить."

// changeMsg means some controller state changed and the view is stale.
type changeMsg struct{}

// actionMsg reports the end of a blocking controller call.
type actionMsg struct {
	op  string
	err error
}

// Model is the bubbletea front end over an app.Session. Controllers own
// all state; the model only keeps view-local bits.
type Model struct {
	ctx     context.Context
	logger  *zap.Logger
	session *app.Session

	width, height int
	confirmClear  bool
	busy          int
}

// New builds the model. ctx bounds every controller call it makes.
func New(ctx context.Context, logger *zap.Logger, session *app.Session) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Model{
		ctx:     ctx,
		logger:  logger,
		session: session,
	}
}

// Run starts the program on the alternate screen and blocks until quit.
func Run(ctx context.Context, logger *zap.Logger, session *app.Session) error {
	p := tea.NewProgram(New(ctx, logger, session), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changeMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return waitForChange(m.session.Changes())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case changeMsg:
		return m, waitForChange(m.session.Changes())
	case actionMsg:
		if m.busy > 0 {
			m.busy--
		}
		if msg.err != nil {
			m.logger.Debug("action finished with error", zap.String("op", msg.op), zap.Error(msg.err))
		}
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		return m, tea.Quit
	}

	// A pending prompt captures every other key.
	if _, ok := m.session.Gate.Pending(); ok {
		switch {
		case key.Matches(msg, keys.Yes):
			return m.run("respond", func(ctx context.Context) error {
				_, err := m.session.Gate.Respond(ctx, true)
				return err
			})
		case key.Matches(msg, keys.No):
			return m.run("respond", func(ctx context.Context) error {
				_, err := m.session.Gate.Respond(ctx, false)
				return err
			})
		}
		return m, nil
	}
	if m.confirmClear {
		switch {
		case key.Matches(msg, keys.Yes):
			m.confirmClear = false
			return m.run("clear log", m.session.Stream.Clear)
		case key.Matches(msg, keys.No):
			m.confirmClear = false
		}
		return m, nil
	}

	for i, b := range keys.Tabs {
		if key.Matches(msg, b) && i < len(app.Links) {
			link := app.Links[i]
			if err := m.session.Nav.Activate(m.ctx, link.Section, app.Origin{Link: link.Label}); err != nil {
				m.logger.Warn("activate section", zap.Error(err))
			}
			return m, nil
		}
	}

	switch {
	case key.Matches(msg, keys.Back):
		m.session.Back(m.ctx)
		return m, nil
	case key.Matches(msg, keys.Forward):
		m.session.Forward(m.ctx)
		return m, nil
	case key.Matches(msg, keys.Dismiss):
		if active := m.session.Toasts.Active(); len(active) > 0 {
			m.session.Toasts.Dismiss(active[0].ID)
		}
		return m, nil
	}

	switch m.session.Nav.CurrentSection() {
	case app.SectionSettings:
		return m.handleSettingsKey(msg)
	case app.SectionTradingBot:
		return m.handleTradingBotKey(msg)
	}
	return m, nil
}

func (m Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Sandbox):
		return m.requestSwitch(dashboardapi.ModeSandbox)
	case key.Matches(msg, keys.Production):
		return m.requestSwitch(dashboardapi.ModeProduction)
	case key.Matches(msg, keys.Reset):
		return m.run("reset mode", func(ctx context.Context) error {
			_, err := m.session.Gate.RequestReset(ctx)
			return err
		})
	}
	return m, nil
}

func (m Model) requestSwitch(mode dashboardapi.TradingMode) (tea.Model, tea.Cmd) {
	return m.run("switch mode", func(ctx context.Context) error {
		_, err := m.session.Gate.RequestSwitch(ctx, mode)
		return err
	})
}

func (m Model) handleTradingBotKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	stream := m.session.Stream
	switch {
	case key.Matches(msg, keys.ReloadLog):
		return m.run("load log", stream.LoadRecent)
	case key.Matches(msg, keys.ClearLog):
		m.confirmClear = true
	case key.Matches(msg, keys.Level):
		f := stream.Filter()
		stream.SetFilter(cycle(dashboardapi.Levels, f.Level), f.Category)
		return m.run("load log", stream.LoadRecent)
	case key.Matches(msg, keys.Category):
		f := stream.Filter()
		stream.SetFilter(f.Level, cycle(dashboardapi.Categories, f.Category))
		return m.run("load log", stream.LoadRecent)
	}
	return m, nil
}

// run executes fn off the update loop.
func (m Model) run(op string, fn func(context.Context) error) (tea.Model, tea.Cmd) {
	m.busy++
	ctx := m.ctx
	return m, func() tea.Msg {
		return actionMsg{op: op, err: fn(ctx)}
	}
}

// cycle returns the value after current in "", values..., wrapping to "".
func cycle(values []string, current string) string {
	if current == "" {
		return values[0]
	}
	for i, v := range values {
		if v == current && i+1 < len(values) {
			return values[i+1]
		}
	}
	return ""
}
