package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// renderWelcome рендерит экран приветствия
func (m *SessionModel) renderWelcome() string {
	var content strings.Builder

	content.WriteString(lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")).
		Bold(true).
		Align(lipgloss.Center).
		Width(m.windowWidth).
		Render("⚡ PowerUsage"))

	content.WriteString("\n")
	content.WriteString(lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Align(lipgloss.Center).
		Width(m.windowWidth).
		Render("Сбор данных baseline / test v"+getVersion()))

	content.WriteString("\n\n")
	content.WriteString(lipgloss.NewStyle().
		Align(lipgloss.Center).
		Width(m.windowWidth).
		Render("🔋 Сначала снимаем baseline: ничего не делайте на компьютере,\nчтобы измерить потребление в простое."))

	content.WriteString("\n\n")
	content.WriteString(lipgloss.NewStyle().
		Foreground(lipgloss.Color("246")).
		Align(lipgloss.Center).
		Width(m.windowWidth).
		Render(fmt.Sprintf("📁 %s", m.session.Dir())))

	content.WriteString("\n\n")
	content.WriteString(lipgloss.NewStyle().
		Foreground(lipgloss.Color("246")).
		Align(lipgloss.Center).
		Width(m.windowWidth).
		Render("Нажмите Enter, чтобы начать baseline, или q для выхода"))

	content.WriteString(m.renderError())
	return content.String()
}

// renderPhase рендерит экран текущей фазы сбора
func (m *SessionModel) renderPhase() string {
	var content strings.Builder
	elapsed := time.Since(m.phaseStarted)

	title := "🧘 Baseline"
	hint := "n – перейти к test досрочно, q – остановить"
	if m.state == StateTest {
		title = "🧪 Test: можно запускать эксперимент"
		hint = "q – остановить сбор"
	}

	content.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		Render(title))
	content.WriteString("\n")
	content.WriteString(strings.Repeat("═", 50) + "\n\n")

	if m.state == StateBaseline && m.baselineDuration > 0 {
		ratio := min(float64(elapsed)/float64(m.baselineDuration), 1)
		content.WriteString(m.gauge.ViewAs(ratio))
		content.WriteString(fmt.Sprintf("  %s / %s\n\n", formatDuration(elapsed), formatDuration(m.baselineDuration)))
	} else {
		content.WriteString(fmt.Sprintf("⏱️  Прошло: %s\n\n", formatDuration(elapsed)))
	}

	cfg := m.session.Config()
	content.WriteString(fmt.Sprintf("📁 Папка:  %s\n", m.session.Dir()))
	content.WriteString(fmt.Sprintf("📄 Файлов: %d\n", m.files))
	if cfg.BaselineStartTime > 0 {
		content.WriteString(fmt.Sprintf("▶️  baseline с %s\n", time.Unix(int64(cfg.BaselineStartTime), 0).Format("15:04:05")))
	}
	if cfg.TestStartTime > 0 {
		content.WriteString(fmt.Sprintf("▶️  test с %s\n", time.Unix(int64(cfg.TestStartTime), 0).Format("15:04:05")))
	}

	content.WriteString("\n")
	content.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Render(hint))
	content.WriteString(m.renderError())
	return content.String()
}

// renderDone рендерит экран завершения
func (m *SessionModel) renderDone() string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("46")).
		Render("🛑 Останавливаем сбор, подождите...") + m.renderError()
}

func (m *SessionModel) renderError() string {
	if m.lastError == nil {
		return ""
	}
	return "\n\n" + lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Render("❌ "+m.lastError.Error())
}
