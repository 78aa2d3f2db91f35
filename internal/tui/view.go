package tui

import (
	"botconsole/clients/dashboardapi"
	"botconsole/internal/app"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the header, tabs, the active section, and toasts. A
// pending confirmation replaces the section body.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	if m.session.Gate.Mode() == dashboardapi.ModeProduction {
		b.WriteString(dangerBannerStyle.Render("РЕАЛЬНАЯ ТОРГОВЛЯ: операции выполняются с реальными деньгами"))
		b.WriteString("\n")
	}

	if modal := m.renderModal(); modal != "" {
		b.WriteString(contentStyle.Render(modal))
	} else {
		b.WriteString(contentStyle.Render(m.renderSection()))
	}
	b.WriteString("\n")

	if toasts := m.renderToasts(); toasts != "" {
		b.WriteString(toasts)
		b.WriteString("\n")
	}
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m Model) renderHeader() string {
	status := m.session.Gate.Status()
	parts := []string{
		titleStyle.Render(m.session.Nav.WindowTitle()),
		modeStyle(m.session.Gate.Mode()).Render(status.DisplayName),
	}
	if ind := m.session.Stream.Indicator(); ind.Visible {
		parts = append(parts, indicatorStyle(ind.State).Render(indicatorText(ind.State)))
	}
	if m.busy > 0 {
		parts = append(parts, mutedStyle.Render("..."))
	}
	return strings.Join(parts, "  ")
}

func indicatorText(s app.ConnState) string {
	switch s {
	case app.ConnConnected:
		return "● Подключено к логам"
	case app.ConnDisconnected:
		return "● Соединение с логами потеряно"
	default:
		return "● Подключение..."
	}
}

func (m Model) renderTabs() string {
	active, _ := m.session.Nav.ActiveLink()
	tabs := make([]string, 0, len(app.Links))
	for i, l := range app.Links {
		label := fmt.Sprintf("%d %s", i+1, l.Label)
		if l.Section == active.Section && l.Label == active.Label {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderModal() string {
	if p, ok := m.session.Gate.Pending(); ok {
		style := modalStyle
		if p.Danger {
			style = dangerModalStyle
		}
		body := titleStyle.Render(p.Title) + "\n\n" + p.Text + "\n\n" +
			hotKey("y", "Да") + "   " + hotKey("n", "Нет")
		return style.Render(body)
	}
	if m.confirmClear {
		return dangerModalStyle.Render(textClearLog + "\n\n" + hotKey("y", "Да") + "   " + hotKey("n", "Нет"))
	}
	return ""
}

func (m Model) renderSection() string {
	loader := m.session.Loader
	switch m.session.Nav.CurrentSection() {
	case app.SectionDashboard:
		account := loader.AccountID()
		if account == "" {
			account = mutedStyle.Render("не найден")
		}
		return strings.Join([]string{
			"Счет: " + account,
			m.payloadLine("Портфель", app.PayloadPortfolio),
			m.payloadLine("Ордера", app.PayloadOrders),
			m.payloadLine("Акции", app.PayloadShares),
		}, "\n")
	case app.SectionInstruments:
		return strings.Join([]string{
			m.payloadLine("Акции", app.PayloadShares),
			m.payloadLine("Облигации", app.PayloadBonds),
			m.payloadLine("ETF", app.PayloadEtfs),
		}, "\n")
	case app.SectionPortfolio:
		return m.payloadLine("Портфель", app.PayloadPortfolio)
	case app.SectionOrders:
		return m.payloadLine("Ордера", app.PayloadOrders)
	case app.SectionTradingBot:
		return m.renderTradingBot()
	case app.SectionAnalysis:
		return mutedStyle.Render("Нет данных для анализа")
	case app.SectionSettings:
		return m.renderSettings()
	}
	return ""
}

func (m Model) payloadLine(label, key string) string {
	p, ok := m.session.Loader.Payload(key)
	if !ok {
		return label + ": " + mutedStyle.Render("не загружено")
	}
	return fmt.Sprintf("%s: %s %s", label, p.Summary(), mutedStyle.Render(p.LoadedAt.Format("15:04:05")))
}

func (m Model) renderTradingBot() string {
	stream := m.session.Stream
	var b strings.Builder

	b.WriteString(m.payloadLine("Статус бота", app.PayloadBotStatus))
	b.WriteString("\n")
	b.WriteString(m.payloadLine("Возможности", app.PayloadOpportunities))
	b.WriteString("\n\n")

	if st := stream.Statistics(); st != nil {
		fmt.Fprintf(&b, "Всего: %d  INFO: %d  WARNING: %d  ERROR: %d  SUCCESS: %d  TRADE: %d\n",
			st.TotalEntries, st.InfoCount, st.WarningCount, st.ErrorCount, st.SuccessCount, st.TradeCount)
	}
	f := stream.Filter()
	fmt.Fprintf(&b, "Фильтр: уровень=%s категория=%s\n\n", orAll(f.Level), orAll(f.Category))

	lines := stream.Lines()
	if len(lines) == 0 {
		b.WriteString(mutedStyle.Render("Лог пуст"))
		return b.String()
	}
	for i, l := range lines {
		if i >= m.logRows() {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("... еще %d", len(lines)-i)))
			break
		}
		b.WriteString(renderLogLine(l))
		b.WriteString("\n")
	}
	return b.String()
}

// logRows is how many log lines fit under the trading-bot header.
func (m Model) logRows() int {
	const chrome = 16
	if m.height <= chrome {
		return 20
	}
	return m.height - chrome
}

func renderLogLine(l app.LogLine) string {
	ts := l.FormattedTimestamp
	if ts == "" && !l.Timestamp.IsZero() {
		ts = l.Timestamp.Format(dashboardapi.TimestampLayout)
	}
	icon := l.LevelIcon
	if icon == "" {
		icon = dashboardapi.LevelIcon(l.Level)
	}
	line := fmt.Sprintf("%s %s %s %s: %s",
		mutedStyle.Render(ts), icon, levelStyle(l.Level).Render(fmt.Sprintf("%-7s", l.Level)), l.Category, l.Message)
	if l.Details != "" {
		line += "\n    " + mutedStyle.Render(l.Details)
	}
	if l.Highlighted {
		return highlightStyle.Render(line)
	}
	return line
}

func orAll(v string) string {
	if v == "" {
		return "все"
	}
	return v
}

func (m Model) renderSettings() string {
	status := m.session.Gate.Status()
	var b strings.Builder

	fmt.Fprintf(&b, "Режим торговли: %s\n", modeStyle(m.session.Gate.Mode()).Render(status.DisplayName))
	if status.ModeInfo != "" {
		b.WriteString(mutedStyle.Render(status.ModeInfo))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.payloadLine("Маржинальная торговля", app.PayloadMargin))
	b.WriteString("\n")
	b.WriteString(m.payloadLine("Hard stops", app.PayloadHardStops))
	b.WriteString("\n\n")
	b.WriteString(hotKey("s", "Песочница") + "   " + hotKey("p", "Реальная торговля") + "   " + hotKey("r", "Сбросить режим"))
	return b.String()
}

func (m Model) renderToasts() string {
	active := m.session.Toasts.Active()
	lines := make([]string, 0, len(active))
	for _, t := range active {
		lines = append(lines, toastStyle(t.Level).Render("▌ "+t.Message))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStatusBar() string {
	hints := []string{hotKey("1-7", "раздел"), hotKey("[ ]", "назад/вперед"), hotKey("x", "скрыть")}
	if m.session.Nav.CurrentSection() == app.SectionTradingBot {
		hints = append(hints, hotKey("l", "обновить"), hotKey("c", "очистить"), hotKey("f/g", "фильтр"))
	}
	hints = append(hints, hotKey("q", "выход"))
	return statusBarStyle.Render(strings.Join(hints, "  "))
}
