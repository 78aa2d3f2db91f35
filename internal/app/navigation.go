package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Section is one of the dashboard's views.
type Section string

const (
	SectionDashboard   Section = "dashboard"
	SectionInstruments Section = "instruments"
	SectionPortfolio   Section = "portfolio"
	SectionOrders      Section = "orders"
	SectionTradingBot  Section = "trading-bot"
	SectionAnalysis    Section = "analysis"
	SectionSettings    Section = "settings"
)

// NavLink is one navigation affordance.
type NavLink struct {
	Section Section
	Label   string
}

// Links lists the navigation links in display order.
var Links = []NavLink{
	{SectionDashboard, "Dashboard"},
	{SectionInstruments, "Инструменты"},
	{SectionPortfolio, "Портфель"},
	{SectionOrders, "Ордера"},
	{SectionTradingBot, "Торговый бот"},
	{SectionAnalysis, "Анализ"},
	{SectionSettings, "Настройки"},
}

// pathSections maps an address path, stripped of leading and trailing
// slashes, to its section.
var pathSections = map[string]Section{
	"":            SectionDashboard,
	"dashboard":   SectionDashboard,
	"instruments": SectionInstruments,
	"portfolio":   SectionPortfolio,
	"orders":      SectionOrders,
	"trading":     SectionTradingBot,
	"settings":    SectionSettings,
	"analysis":    SectionAnalysis,
	"logs":        SectionTradingBot,
}

// Valid reports whether s is part of the enumeration.
func (s Section) Valid() bool {
	_, ok := linkFor(s)
	return ok
}

// Path returns the canonical address path of s.
func (s Section) Path() string {
	if s == SectionTradingBot {
		return "/trading"
	}
	return "/" + string(s)
}

// Title returns the nav label of s, "Dashboard" for unknown sections.
func (s Section) Title() string {
	if l, ok := linkFor(s); ok {
		return l.Label
	}
	return "Dashboard"
}

func linkFor(s Section) (NavLink, bool) {
	for _, l := range Links {
		if l.Section == s {
			return l, true
		}
	}
	return NavLink{}, false
}

// ResolveSection picks the section for an address: exact path match
// (default dashboard), overridden by a fragment naming a valid section.
func ResolveSection(a Address) Section {
	section := sectionForPath(a.Path)
	if frag := Section(strings.TrimSpace(a.Fragment)); frag.Valid() {
		section = frag
	}
	return section
}

func sectionForPath(path string) Section {
	if s, ok := pathSections[strings.Trim(path, "/")]; ok {
		return s
	}
	return SectionDashboard
}

// Origin identifies the UI element that triggered a navigation. The zero
// value means a programmatic navigation.
type Origin struct {
	Link string // label of the clicked nav link
}

// sectionStream is what the navigator drives on the trading-bot section.
type sectionStream interface {
	LoadRecent(ctx context.Context) error
	Open(ctx context.Context) error
	Close()
}

// statusRefresher is what the navigator drives on the settings section.
type statusRefresher interface {
	RefreshStatus(ctx context.Context) error
}

// Navigator owns the current section, the address history and the
// dashboard auto-refresh timer.
type Navigator struct {
	logger          *zap.Logger
	sched           Scheduler
	history         *History
	loader          SectionLoader
	stream          sectionStream
	gate            statusRefresher
	appTitle        string
	refreshInterval time.Duration
	closeOnLeave    bool
	onChange        func()
	spawn           func(func())

	mu           sync.Mutex
	ctx          context.Context
	current      Section
	visible      map[Section]bool
	activeLink   int
	title        string
	refreshTimer Timer
	refreshGen   uint64
	activeGen    uint64
}

// NavigatorOptions carries the navigator's tunables.
type NavigatorOptions struct {
	AppTitle        string
	RefreshInterval time.Duration
	CloseOnLeave    bool // close the log stream when leaving trading-bot
	OnChange        func()
}

func NewNavigator(
	logger *zap.Logger,
	sched Scheduler,
	history *History,
	loader SectionLoader,
	stream sectionStream,
	gate statusRefresher,
	opts NavigatorOptions,
) *Navigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.OnChange == nil {
		opts.OnChange = func() {}
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 30 * time.Second
	}

	return &Navigator{
		logger:          logger,
		sched:           sched,
		history:         history,
		loader:          loader,
		stream:          stream,
		gate:            gate,
		appTitle:        opts.AppTitle,
		refreshInterval: opts.RefreshInterval,
		closeOnLeave:    opts.CloseOnLeave,
		onChange:        opts.OnChange,
		spawn:           func(fn func()) { go fn() },
		ctx:             context.Background(),
		visible:         make(map[Section]bool),
		activeLink:      -1,
	}
}

// Start resolves the initial section from the history's current address
// and activates it.
func (n *Navigator) Start(ctx context.Context) error {
	n.mu.Lock()
	n.ctx = ctx
	n.mu.Unlock()

	section := ResolveSection(n.history.Current())
	n.logger.Info("initial section resolved",
		zap.String("address", n.history.Current().String()),
		zap.String("section", string(section)),
	)
	return n.activate(ctx, section, Origin{}, true)
}

// Activate shows section, records it in the history and runs its loads.
func (n *Navigator) Activate(ctx context.Context, section Section, origin Origin) error {
	return n.activate(ctx, section, origin, true)
}

// HandleHistoryNavigation re-resolves the section after Back or Forward.
// The fragment is ignored and no history entry is pushed.
func (n *Navigator) HandleHistoryNavigation(ctx context.Context) error {
	section := sectionForPath(n.history.Current().Path)
	return n.activate(ctx, section, Origin{}, false)
}

func (n *Navigator) activate(ctx context.Context, section Section, origin Origin, push bool) error {
	if !section.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}

	n.mu.Lock()
	previous := n.current

	// Leaving the dashboard stops its refresh first.
	n.stopRefreshLocked()

	for _, l := range Links {
		n.visible[l.Section] = l.Section == section
	}
	n.activeLink = n.linkIndex(section, origin)
	n.title = n.appTitle + " - " + section.Title()

	if push {
		if target := section.Path(); n.history.Current().Path != target {
			n.history.Push(Address{Path: target})
		}
	}

	n.current = section
	n.activeGen++
	gen := n.activeGen

	if section == SectionDashboard {
		n.startRefreshLocked()
	}
	n.mu.Unlock()

	n.logger.Info("section activated",
		zap.String("section", string(section)),
		zap.String("previous", string(previous)),
	)

	if previous == SectionTradingBot && section != SectionTradingBot && n.closeOnLeave {
		n.stream.Close()
	}

	n.onChange()
	n.spawn(func() { n.load(ctx, section, gen) })
	return nil
}

// linkIndex finds the link to highlight: the originating link when one
// was clicked, otherwise the link of the section.
func (n *Navigator) linkIndex(section Section, origin Origin) int {
	if origin.Link != "" {
		for i, l := range Links {
			if l.Label == origin.Link {
				return i
			}
		}
	}
	for i, l := range Links {
		if l.Section == section {
			return i
		}
	}
	return -1
}

func (n *Navigator) load(ctx context.Context, section Section, gen uint64) {
	switch section {
	case SectionDashboard:
		_ = n.loader.LoadDashboard(ctx)
	case SectionInstruments:
		_ = n.loader.LoadInstruments(ctx)
	case SectionPortfolio:
		_ = n.loader.LoadPortfolio(ctx)
	case SectionOrders:
		_ = n.loader.LoadOrders(ctx)
	case SectionTradingBot:
		_ = n.loader.LoadBotOverview(ctx)
		_ = n.stream.LoadRecent(ctx)
		if !n.stillActive(gen) {
			n.logger.Debug("trading-bot left before the log stream opened")
			return
		}
		if err := n.stream.Open(ctx); err != nil {
			n.logger.Warn("log stream open failed", zap.Error(err))
		}
	case SectionAnalysis:
		// Loaded on demand.
	case SectionSettings:
		_ = n.gate.RefreshStatus(ctx)
		_ = n.loader.LoadSettings(ctx)
	}
}

// stillActive reports whether the activation numbered gen is the current one.
func (n *Navigator) stillActive(gen uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return gen == n.activeGen
}

func (n *Navigator) startRefreshLocked() {
	n.refreshGen++
	gen := n.refreshGen
	n.refreshTimer = n.sched.Every(n.refreshInterval, func() { n.refreshTick(gen) })
}

func (n *Navigator) stopRefreshLocked() {
	if n.refreshTimer != nil {
		n.refreshTimer.Stop()
		n.refreshTimer = nil
	}
}

func (n *Navigator) refreshTick(gen uint64) {
	n.mu.Lock()
	live := gen == n.refreshGen && n.refreshTimer != nil && n.current == SectionDashboard
	ctx := n.ctx
	n.mu.Unlock()

	if !live {
		return
	}
	n.logger.Debug("dashboard auto-refresh")
	_ = n.loader.LoadDashboard(ctx)
}

// Stop cancels the refresh timer. Used on shutdown.
func (n *Navigator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopRefreshLocked()
}

// CurrentSection returns the active section.
func (n *Navigator) CurrentSection() Section {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// VisibleSections returns the sections currently shown.
func (n *Navigator) VisibleSections() []Section {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Section
	for _, l := range Links {
		if n.visible[l.Section] {
			out = append(out, l.Section)
		}
	}
	return out
}

// ActiveLink returns the highlighted nav link.
func (n *Navigator) ActiveLink() (NavLink, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.activeLink < 0 {
		return NavLink{}, false
	}
	return Links[n.activeLink], true
}

// WindowTitle returns the title for the active section.
func (n *Navigator) WindowTitle() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.title
}

// RefreshRunning reports whether the dashboard auto-refresh timer is live.
func (n *Navigator) RefreshRunning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.refreshTimer != nil
}

// History exposes the address history for Back and Forward.
func (n *Navigator) History() *History {
	return n.history
}
