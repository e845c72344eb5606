package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// resultColumns распределяет ширину таблицы результатов
func resultColumns(width int) []table.Column {
	numWidth := 12
	nameWidth := max(width-3*numWidth-8, 20)
	return []table.Column{
		{Title: "Показатель", Width: nameWidth},
		{Title: "baseline", Width: numWidth},
		{Title: "test", Width: numWidth},
		{Title: "Δ", Width: numWidth},
	}
}

// resultRows строит строки таблицы результатов
func resultRows(res ComparisonResult) []table.Row {
	row := func(name string, base, test float64) table.Row {
		return table.Row{
			name,
			fmt.Sprintf("%.2f", base),
			fmt.Sprintf("%.2f", test),
			fmt.Sprintf("%+.2f", test-base),
		}
	}

	rows := []table.Row{
		row("🔋 Разряд, мВт", res.BaselineBattery.AvgMW, res.TestBattery.AvgMW),
		row("🔋 Израсходовано, мВт·ч", res.BaselineBattery.DrainedMWh, res.TestBattery.DrainedMWh),
		row("🔋 Потеряно, %", res.BaselineBattery.PercentLost, res.TestBattery.PercentLost),
		row("🔋 Эпизодов разряда", float64(len(res.BaselineBattery.Segments)), float64(len(res.TestBattery.Segments))),
	}
	for i, col := range res.Header {
		rows = append(rows, row("⚡ "+col+", мВт", at(res.BaselinePower.MW, i), at(res.TestPower.MW, i)))
	}
	for i, col := range res.Header {
		rows = append(rows, row("⚡ "+col+", мВт·ч", at(res.BaselinePower.MWh, i), at(res.TestPower.MWh, i)))
	}
	for _, a := range res.Apps {
		base, test := 0.0, 0.0
		if a.Phase == "baseline" {
			base = a.MW
		} else {
			test = a.MW
		}
		rows = append(rows, row("📱 "+a.App+" ("+a.Phase+"), мВт", base, test))
	}
	return rows
}

func resultTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	return s
}

// renderTable рендерит таблицу результатов
func (m *ResultsModel) renderTable() string {
	var content strings.Builder

	content.WriteString(m.renderHeader())
	content.WriteString("\n\n")
	content.WriteString(lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View()))
	content.WriteString("\n")
	content.WriteString(m.renderWarnings())
	content.WriteString(lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Render("↑↓ – навигация, c – графики, q – выход"))
	return content.String()
}

// renderCharts рендерит графики разряда и спарклайны счетчиков
func (m *ResultsModel) renderCharts() string {
	width := max(m.windowWidth-4, 40)
	height := max(m.windowHeight/4, 6)

	var content strings.Builder
	content.WriteString(m.renderHeader())
	content.WriteString("\n\n")
	content.WriteString(renderBatteryCharts(m.result, width, height))
	if sparks := renderPowerSparklines(m.result, width); sparks != "" {
		content.WriteString("\n\n")
		content.WriteString(sparks)
	}
	content.WriteString("\n\n")
	content.WriteString(lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Render("c – таблица, q – выход"))
	return content.String()
}

func (m *ResultsModel) renderHeader() string {
	title := "🔋 Сравнение baseline / test"
	if len(m.result.Application) > 0 {
		title += ": " + strings.Join(m.result.Application, ", ")
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		Render(title)
}

func (m *ResultsModel) renderWarnings() string {
	var b strings.Builder
	warn := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	if !m.result.BaselineBattery.DrainDetected {
		b.WriteString(warn.Render("⚠️ baseline: разряд батареи не обнаружен") + "\n")
	}
	if !m.result.TestBattery.DrainDetected {
		b.WriteString(warn.Render("⚠️ test: разряд батареи не обнаружен") + "\n")
	}
	return b.String()
}
