package app

import (
	clts "botconsole/clients"
	"botconsole/config"
	"context"
	"runtime"
	"runtime/debug"

	"go.uber.org/zap"
)

// Build info - populated from embedded VCS info at init time
var (
	BuildCommit = "dev"
	BuildTime   = "unknown"
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if setting.Value != "" {
					BuildCommit = setting.Value
				}
			case "vcs.time":
				BuildTime = setting.Value
			}
		}
	}
}

// Session owns the controllers for one console run. Everything the front
// end reads or mutates goes through its fields.
type Session struct {
	logger  *zap.Logger
	cfg     *config.Config
	clients *clts.Clients
	changes chan struct{}

	Toasts *Toasts
	Loader *DataLoader
	Stream *LogStream
	Gate   *ModeGate
	Nav    *Navigator
}

// NewSession builds the controllers on top of clients. sched may be nil
// for the wall clock.
func NewSession(logger *zap.Logger, cfg *config.Config, clients *clts.Clients, sched Scheduler) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sched == nil {
		sched = RealScheduler()
	}

	s := &Session{
		logger:  logger,
		cfg:     cfg,
		clients: clients,
		changes: make(chan struct{}, 1),
	}
	notify := s.notify

	s.Toasts = NewToasts(logger.Named("toasts"), sched, cfg.UI.NotificationTTL, notify)
	s.Loader = NewDataLoader(logger.Named("loader"), clients.Dashboard, s.Toasts, notify)

	var journal Journal
	if clients.Archive != nil {
		journal = clients.Archive
	}
	s.Stream = NewLogStream(logger.Named("logstream"), clients.LogStream, clients.Dashboard, journal, sched, s.Toasts, LogStreamOptions{
		ReconnectDelay:     cfg.LogStream.ReconnectDelay,
		ReconnectMaxDelay:  cfg.LogStream.ReconnectMaxDelay,
		ConnectedIndicator: cfg.LogStream.ConnectedIndicator,
		Highlight:          cfg.LogStream.Highlight,
		OnChange:           notify,
	})

	s.Gate = NewModeGate(logger.Named("mode"), clients.Dashboard, s.Loader, clients.Notifier, s.Toasts, notify)

	history := NewHistory(ParseAddress(cfg.UI.StartPath))
	s.Nav = NewNavigator(logger.Named("nav"), sched, history, s.Loader, s.Stream, s.Gate, NavigatorOptions{
		AppTitle:        cfg.UI.AppTitle,
		RefreshInterval: cfg.Dashboard.RefreshInterval,
		CloseOnLeave:    cfg.LogStream.CloseOnLeave,
		OnChange:        notify,
	})
	s.Stream.BindSections(s.Nav)

	return s
}

// Changes signals that some controller state changed. Bursts coalesce.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

func (s *Session) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Start loads the account and mode status, then activates the initial section.
func (s *Session) Start(ctx context.Context) error {
	s.logger.Info("console starting",
		zap.String("commit", BuildCommit),
		zap.String("built", BuildTime),
		zap.String("go", runtime.Version()),
		zap.String("backend", s.cfg.Dashboard.BaseURL),
		zap.String("transport", s.cfg.LogStream.Transport),
	)

	if err := s.Loader.LoadAccount(ctx); err != nil {
		s.logger.Warn("account not loaded at start", zap.Error(err))
	}
	if err := s.Gate.RefreshStatus(ctx); err != nil {
		s.logger.Warn("mode status not loaded at start", zap.Error(err))
	}
	return s.Nav.Start(ctx)
}

// Back moves one entry back in the address history and re-resolves the section.
func (s *Session) Back(ctx context.Context) bool {
	if !s.Nav.History().Back() {
		return false
	}
	_ = s.Nav.HandleHistoryNavigation(ctx)
	return true
}

// Forward moves one entry forward in the address history.
func (s *Session) Forward(ctx context.Context) bool {
	if !s.Nav.History().Forward() {
		return false
	}
	_ = s.Nav.HandleHistoryNavigation(ctx)
	return true
}

// Close stops timers and the stream. Clients are closed by their owner.
func (s *Session) Close() {
	s.Nav.Stop()
	s.Stream.Close()
	s.logger.Info("console stopped")
}
