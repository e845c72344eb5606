package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
)

// getVersion возвращает версию приложения
func getVersion() string {
	return "1.0"
}

// showVersion показывает версию приложения
func showVersion() {
	color.New(color.FgCyan, color.Bold).Printf("PowerUsage %s\n", getVersion())
	color.New(color.FgWhite).Println("Сравнение энергопотребления приложений Windows (baseline / test)")
}

// resultTables – заголовки CSV по ключам результата
func resultTables(res ComparisonResult) map[string][]string {
	header := func(phase, unit string) []string {
		h := make([]string, len(res.Header))
		for i, col := range res.Header {
			h[i] = fmt.Sprintf("power-%s-%s-%s", phase, col, unit)
		}
		return h
	}
	return map[string][]string{
		"power-base-mw":  header("baseline", "mw"),
		"power-test-mw":  header("testing", "mw"),
		"power-base-mwh": header("baseline", "mwh"),
		"power-test-mwh": header("testing", "mwh"),
		"battery": {
			"battery-baseline-mw", "battery-testing-mw",
			"battery-baseline-mwh", "battery-testing-mwh",
			"battery-baseline-%lost", "battery-testing-%lost",
		},
	}
}

// writeCSVResults пишет по одному CSV на каждый ключ результата: <ключ><epoch>.csv
func writeCSVResults(dir string, res ComparisonResult, now time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("создание папки результатов: %w", err)
	}

	rows := map[string][]float64{
		"power-base-mw":  res.BaselinePower.MW,
		"power-test-mw":  res.TestPower.MW,
		"power-base-mwh": res.BaselinePower.MWh,
		"power-test-mwh": res.TestPower.MWh,
		"battery": {
			res.BaselineBattery.AvgMW, res.TestBattery.AvgMW,
			res.BaselineBattery.DrainedMWh, res.TestBattery.DrainedMWh,
			res.BaselineBattery.PercentLost, res.TestBattery.PercentLost,
		},
	}

	var written []string
	for _, key := range []string{"power-base-mw", "power-test-mw", "power-base-mwh", "power-test-mwh", "battery"} {
		if len(rows[key]) == 0 {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s%d.csv", key, now.Unix()))
		if err := writeCSV(path, resultTables(res)[key], [][]string{formatRow(rows[key])}); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if len(res.Apps) > 0 {
		records := make([][]string, 0, len(res.Apps))
		for _, a := range res.Apps {
			records = append(records, []string{a.Phase, a.App, formatFloat(a.MW), formatFloat(a.MWh)})
		}
		path := filepath.Join(dir, fmt.Sprintf("apps%d.csv", now.Unix()))
		if err := writeCSV(path, []string{"phase", "app", "mw", "mwh"}, records); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeCSV(path string, header []string, records [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("создание %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("закрытие %s: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("запись %s: %w", path, err)
	}
	return nil
}

func formatRow(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = formatFloat(v)
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeJSONResult сохраняет результат целиком в results<epoch>.json
func writeJSONResult(dir string, res ComparisonResult, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("создание папки результатов: %w", err)
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("сериализация результата: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("results%d.json", now.Unix()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("запись %s: %w", path, err)
	}
	return path, nil
}

// printSummary выводит цветную сводку сравнения
func printSummary(res ComparisonResult) {
	title := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgWhite)
	good := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	title.Println("🔋 Сравнение baseline / test")
	if len(res.Application) > 0 {
		label.Printf("Приложение: %s\n", strings.Join(res.Application, ", "))
	}
	fmt.Println()

	line := func(name string, base, test float64, unit string) {
		label.Printf("%-22s %12.2f %12.2f %s  ", name, base, test, unit)
		diff := test - base
		if diff > 0 {
			bad.Printf("+%.2f\n", diff)
		} else {
			good.Printf("%.2f\n", diff)
		}
	}
	title.Printf("%-22s %12s %12s\n", "", "baseline", "test")
	line("Разряд батареи", res.BaselineBattery.AvgMW, res.TestBattery.AvgMW, "мВт")
	line("Израсходовано", res.BaselineBattery.DrainedMWh, res.TestBattery.DrainedMWh, "мВт·ч")
	line("Потеряно заряда", res.BaselineBattery.PercentLost, res.TestBattery.PercentLost, "%")

	for _, phase := range []struct {
		name string
		p    BatteryPhase
	}{{"baseline", res.BaselineBattery}, {"test", res.TestBattery}} {
		if !phase.p.DrainDetected {
			color.New(color.FgYellow).Printf("⚠️ %s: разряд батареи не обнаружен\n", phase.name)
		}
	}

	if len(res.Header) > 0 {
		fmt.Println()
		title.Println("⚡ SRUMUTIL, средняя мощность")
		for i, col := range res.Header {
			line(col, at(res.BaselinePower.MW, i), at(res.TestPower.MW, i), "мВт")
		}
	}

	if len(res.Apps) > 0 {
		fmt.Println()
		title.Println("📱 По приложениям")
		for _, a := range res.Apps {
			label.Printf("%-8s %-40s %10.2f мВт %10.2f мВт·ч\n", a.Phase, a.App, a.MW, a.MWh)
		}
	}
}

func at(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}

// runExportMode запускает режим экспорта
func runExportMode(dbPath, markdownFile string, limit int, quiet bool) error {
	if !quiet {
		fmt.Println("🔋 PowerUsage - Экспорт отчетов")
	}

	db, err := initDB(dbPath)
	if err != nil {
		return fmt.Errorf("инициализация БД: %w", err)
	}
	defer db.Close()

	records, err := getLastNComparisons(db, limit)
	if err != nil {
		return fmt.Errorf("получение сравнений: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("нет данных для экспорта")
	}
	apps := make(map[int64][]AppRate, len(records))
	for _, r := range records {
		rates, err := getAppRates(db, r.ID)
		if err != nil {
			return fmt.Errorf("получение приложений: %w", err)
		}
		apps[r.ID] = rates
	}

	// Отчет без папки в имени кладется рядом с базой
	fullPath := getExportPath(markdownFile, filepath.Dir(dbPath))
	if err := exportToMarkdown(records, apps, time.Now(), fullPath); err != nil {
		return fmt.Errorf("экспорт в Markdown: %w", err)
	}
	if !quiet {
		fmt.Printf("✅ Экспорт в Markdown: %s\n", fullPath)
	}
	return nil
}

// exportToMarkdown экспортирует сохраненные сравнения в формат Markdown
func exportToMarkdown(records []ComparisonRecord, apps map[int64][]AppRate, generated time.Time, filename string) error {
	var content strings.Builder

	content.WriteString("# 🔋 Отчет PowerUsage\n\n")
	content.WriteString(fmt.Sprintf("**Дата генерации:** %s\n", generated.Format("2006-01-02 15:04:05")))
	content.WriteString(fmt.Sprintf("**Версия PowerUsage:** %s\n\n", getVersion()))

	content.WriteString("## 📊 Сравнения\n\n")
	content.WriteString("| # | Дата | Приложение | Батарея, мВт (base → test) | мВт·ч (base → test) | % (base → test) | SRUMUTIL, мВт (base → test) |\n")
	content.WriteString("|---|------|------------|----------------------------|---------------------|-----------------|------------------------------|\n")
	for _, r := range records {
		app := r.Application
		if app == "" {
			app = "все"
		}
		content.WriteString(fmt.Sprintf("| %d | %s | %s | %.1f → %.1f | %.1f → %.1f | %.0f → %.0f | %.1f → %.1f |\n",
			r.ID, r.CreatedAt, app,
			r.BaselineBatteryMW, r.TestBatteryMW,
			r.BaselineBatteryMWh, r.TestBatteryMWh,
			r.BaselinePercentLost, r.TestPercentLost,
			r.BaselinePowerMW, r.TestPowerMW))
	}
	content.WriteString("\n")

	for _, r := range records {
		rates := apps[r.ID]
		if len(rates) == 0 {
			continue
		}
		content.WriteString(fmt.Sprintf("### 📱 Сравнение #%d по приложениям\n\n", r.ID))
		content.WriteString("| Фаза | Приложение | мВт | мВт·ч |\n")
		content.WriteString("|------|------------|-----|-------|\n")
		for _, a := range rates {
			content.WriteString(fmt.Sprintf("| %s | %s | %.2f | %.2f |\n", a.Phase, a.App, a.MW, a.MWh))
		}
		content.WriteString("\n")
	}

	content.WriteString("---\n")
	content.WriteString("*Отчет сгенерирован автоматически PowerUsage*")

	return os.WriteFile(filename, []byte(content.String()), 0644)
}
