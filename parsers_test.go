package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanBatteryReport(t *testing.T) {
	s, err := scanBatteryReport(strings.NewReader(batteryReportHTML(87, 41550)))
	require.NoError(t, err)
	assert.Equal(t, 87, s.Battery)
	assert.Equal(t, 41550, s.Capacity)

	// Процент до "Report generated" не считается
	_, err = scanBatteryReport(strings.NewReader(`<span class="percent">50</span>
<td>Report generated</td>
<td class="mw">1,000 mWh</td>`))
	assert.ErrorIs(t, err, ErrReportMarkers)

	_, err = scanBatteryReport(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrReportMarkers)
}

func TestParseThousands(t *testing.T) {
	v, err := parseThousands("41,550")
	require.NoError(t, err)
	assert.Equal(t, 41550, v)

	v, err = parseThousands("41 550")
	require.NoError(t, err)
	assert.Equal(t, 41550, v)

	_, err = parseThousands("n/a")
	assert.Error(t, err)
}

func TestReportCreationTime(t *testing.T) {
	ts, err := reportCreationTime(filepath.Join("x", "batteryreport1700000000.html"))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts)

	_, err = reportCreationTime("battery.html")
	assert.ErrorIs(t, err, ErrReportName)
}

func TestParseBatteryReport(t *testing.T) {
	dir := t.TempDir()
	path := writeBatteryReport(t, dir, 1700000060, 99, 50000)

	s, err := parseBatteryReport(path)
	require.NoError(t, err)
	assert.Equal(t, BatteryReportSample{CreationTime: 1700000060, Battery: 99, Capacity: 50000}, *s)
}

func TestLoadBatteryReportsSkipsBroken(t *testing.T) {
	dir := t.TempDir()
	writeBatteryReport(t, dir, 100, 90, 40000)
	writeBatteryReport(t, dir, 160, 89, 39900)
	writePowerReport(t, dir, "batteryreport220.html", nil) // без меток

	data, err := loadBatteryReports(dir)
	require.NoError(t, err)
	assert.Equal(t, MergedSeries{
		100: {90, 40000},
		160: {89, 39900},
	}, data)
}

func TestAppFilterMatch(t *testing.T) {
	// Пустой фильтр пропускает все
	assert.True(t, AppFilter{}.Match("chrome.exe"))

	// Вхождение подстроки в обе стороны
	assert.True(t, AppFilter{Include: []string{"chrome"}}.Match("chrome.exe"))
	assert.True(t, AppFilter{Include: []string{"chrome.exe"}}.Match("chrome"))
	assert.False(t, AppFilter{Include: []string{"firefox"}}.Match("chrome.exe"))

	// Исключение сильнее включения
	assert.False(t, AppFilter{
		Include: []string{"chrome"},
		Exclude: []string{"chrome.exe"},
	}.Match("chrome.exe"))

	// Пустая строка в исключениях ничего не исключает
	assert.True(t, AppFilter{Exclude: []string{""}}.Match("chrome.exe"))
}

func TestParseReportTimestamp(t *testing.T) {
	a, err := parseReportTimestamp("2024-03-01:10:15:30.1234")
	require.NoError(t, err)
	b, err := parseReportTimestamp(" 2024-03-01:10:16:30 ")
	require.NoError(t, err)
	assert.Equal(t, int64(60), b-a)

	_, err = parseReportTimestamp("0")
	assert.Error(t, err)
}

func TestReadPowerReport(t *testing.T) {
	dir := t.TempDir()
	path := writePowerReport(t, dir, "srumutil1.csv", []powerRow{
		{"old.exe", 1000, []int64{1, 1}}, // старый снимок
		{"chrome.exe", 1060, []int64{100, 200}},
		{"firefox.exe", 1060, []int64{10, 20}},
		{"system", 1060, []int64{5, 5}},
	})

	names, samples, err := readPowerReport(path, AppFilter{Exclude: []string{"system"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"CPU Energy", "Display Energy"}, names)
	require.Len(t, samples, 2)
	assert.Equal(t, "chrome.exe", samples[0].App)
	assert.Equal(t, "user", samples[0].Category)
	assert.Equal(t, int64(1060), samples[0].Timestamp)
	assert.Equal(t, []int64{100, 200}, samples[0].Values)
	assert.Equal(t, "firefox.exe", samples[1].App)
}

func TestReadPowerReportNoTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "srumutil1.csv")
	writePowerReport(t, dir, "srumutil1.csv", nil)

	_, _, err := readPowerReport(path, AppFilter{})
	assert.ErrorIs(t, err, ErrNoTimestamps)
}

func TestLoadPowerSeries(t *testing.T) {
	dir := t.TempDir()
	writePowerReport(t, dir, "srumutil1000.csv", []powerRow{{"a.exe", 1000, []int64{10, 1}}})
	writePowerReport(t, dir, "srumutil1180.csv", []powerRow{{"a.exe", 1180, []int64{30, 3}}})

	data, err := loadPowerSeries(dir, PowerFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"CPU Energy", "Display Energy"}, data.Header)
	assert.Equal(t, int64(1000), data.MinTime)
	assert.Equal(t, int64(1180), data.MaxTime)
	// Дыры на 1060 и 1120 заполнены нулями
	assert.Equal(t, MergedSeries{
		1000: {10, 1},
		1060: {0, 0},
		1120: {0, 0},
		1180: {30, 3},
	}, data.Series)

	// Окно фазы отбрасывает отсчет 1180
	data, err = loadPowerSeries(dir, PowerFilter{StartTime: 1000, Duration: 120})
	require.NoError(t, err)
	assert.Len(t, data.Series, 1)

	data, err = loadPowerSeries(t.TempDir(), PowerFilter{})
	require.NoError(t, err)
	assert.True(t, data.Empty())
}
