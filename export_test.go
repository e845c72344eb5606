package main

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteCSVResults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	now := time.Unix(1700000000, 0)

	files, err := writeCSVResults(dir, sampleResult("chrome.exe", 30000), now)
	require.NoError(t, err)
	assert.Len(t, files, 6)

	battery := readCSV(t, filepath.Join(dir, "battery1700000000.csv"))
	assert.Equal(t, [][]string{
		{"battery-baseline-mw", "battery-testing-mw", "battery-baseline-mwh", "battery-testing-mwh", "battery-baseline-%lost", "battery-testing-%lost"},
		{"15000", "30000", "2250", "4500", "5", "10"},
	}, battery)

	power := readCSV(t, filepath.Join(dir, "power-test-mw1700000000.csv"))
	assert.Equal(t, [][]string{
		{"power-testing-CPU Energy-mw", "power-testing-Display Energy-mw"},
		{"120", "10"},
	}, power)

	assert.Equal(t, []string{"power-baseline-CPU Energy-mwh", "power-baseline-Display Energy-mwh"},
		readCSV(t, filepath.Join(dir, "power-base-mwh1700000000.csv"))[0])
	assert.Equal(t, []string{"power-testing-CPU Energy-mwh", "power-testing-Display Energy-mwh"},
		readCSV(t, filepath.Join(dir, "power-test-mwh1700000000.csv"))[0])

	apps := readCSV(t, filepath.Join(dir, "apps1700000000.csv"))
	require.Len(t, apps, 4)
	assert.Equal(t, []string{"phase", "app", "mw", "mwh"}, apps[0])
	assert.Equal(t, []string{"test", "a.exe", "101", "5.05"}, apps[2])
}

func TestWriteCSVResultsBatteryOnly(t *testing.T) {
	dir := t.TempDir()
	res := ComparisonResult{
		BaselineBattery: BatteryPhase{AvgMW: 1},
		TestBattery:     BatteryPhase{AvgMW: 2},
	}
	files, err := writeCSVResults(dir, res, time.Unix(5, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "battery5.csv")}, files)
}

func TestResultTablesHeaders(t *testing.T) {
	tables := resultTables(ComparisonResult{Header: []string{"CPU"}})
	assert.Equal(t, map[string][]string{
		"power-base-mw":  {"power-baseline-CPU-mw"},
		"power-test-mw":  {"power-testing-CPU-mw"},
		"power-base-mwh": {"power-baseline-CPU-mwh"},
		"power-test-mwh": {"power-testing-CPU-mwh"},
		"battery": {
			"battery-baseline-mw", "battery-testing-mw",
			"battery-baseline-mwh", "battery-testing-mwh",
			"battery-baseline-%lost", "battery-testing-%lost",
		},
	}, tables)
}

func TestWriteCSVReportsErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ok.csv")
	require.NoError(t, writeCSV(path, []string{"a", "b"}, [][]string{{"1", "2"}}))
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}}, readCSV(t, path))

	// Путь занят папкой
	assert.Error(t, writeCSV(dir, []string{"a"}, nil))

	// Устройство без места: ошибка записи не теряется
	if _, err := os.Stat("/dev/full"); err == nil {
		assert.Error(t, writeCSV("/dev/full", []string{"a"}, [][]string{{"1"}}))
	}
}

func TestWriteJSONResult(t *testing.T) {
	dir := t.TempDir()
	res := sampleResult("chrome.exe", 30000)

	path, err := writeJSONResult(dir, res, time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "results1700000000.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got ComparisonResult
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, res.TestBattery.AvgMW, got.TestBattery.AvgMW)
	assert.Equal(t, res.Header, got.Header)
	assert.Len(t, got.Apps, 3)
}

func TestExportToMarkdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "powerusage.sqlite")
	db, err := initDB(dbPath)
	require.NoError(t, err)
	_, err = insertComparison(db, sampleResult("chrome.exe", 30000))
	require.NoError(t, err)
	db.Close()

	md := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, runExportMode(dbPath, md, 10, true))

	data, err := os.ReadFile(md)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "# 🔋 Отчет PowerUsage")
	assert.Contains(t, content, "| 1 | 2024-03-01T10:00:00Z | chrome.exe | 15000.0 → 30000.0 |")
	assert.Contains(t, content, "### 📱 Сравнение #1 по приложениям")
	assert.Contains(t, content, "| test | a.exe | 101.00 | 5.05 |")
}

func TestExportEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "powerusage.sqlite")
	err := runExportMode(dbPath, filepath.Join(t.TempDir(), "report.md"), 10, true)
	assert.Error(t, err)
}
