package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(app string, testMW float64) ComparisonResult {
	return ComparisonResult{
		CreatedAt:       time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Application:     []string{app},
		Header:          []string{"CPU Energy", "Display Energy"},
		BaselinePower:   PowerPhase{MW: []float64{30, 10}, MWh: []float64{1.5, 0.5}, Seconds: 180},
		TestPower:       PowerPhase{MW: []float64{120, 10}, MWh: []float64{6, 0.5}, Seconds: 180},
		BaselineBattery: BatteryPhase{AvgMW: 15000, DrainedMWh: 2250, PercentLost: 5, DrainDetected: true},
		TestBattery:     BatteryPhase{AvgMW: testMW, DrainedMWh: 4500, PercentLost: 10, DrainDetected: true},
		Apps: []AppRate{
			{Phase: "baseline", App: "a.exe", MW: 11, MWh: 0.55},
			{Phase: "test", App: "a.exe", MW: 101, MWh: 5.05},
			{Phase: "test", App: "b.exe", MW: 20, MWh: 1},
		},
	}
}

func TestComparisonStore(t *testing.T) {
	db, err := initDB(filepath.Join(t.TempDir(), "powerusage.sqlite"))
	require.NoError(t, err)
	defer db.Close()

	first, err := insertComparison(db, sampleResult("chrome.exe", 30000))
	require.NoError(t, err)
	second, err := insertComparison(db, sampleResult("firefox.exe", 20000))
	require.NoError(t, err)
	assert.Greater(t, second, first)

	records, err := getLastNComparisons(db, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first, records[0].ID)
	assert.Equal(t, "chrome.exe", records[0].Application)
	assert.Equal(t, "2024-03-01T10:00:00Z", records[0].CreatedAt)
	assert.Equal(t, 30000.0, records[0].TestBatteryMW)
	assert.Equal(t, 40.0, records[0].BaselinePowerMW)
	assert.Equal(t, 130.0, records[0].TestPowerMW)

	records, err = getLastNComparisons(db, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, second, records[0].ID)

	rates, err := getAppRates(db, first)
	require.NoError(t, err)
	require.Len(t, rates, 3)
	assert.Equal(t, "baseline", rates[0].Phase)
	assert.Equal(t, AppRate{ComparisonID: first, Phase: "test", App: "a.exe", MW: 101, MWh: 5.05}, rates[1])
	assert.Equal(t, "b.exe", rates[2].App)
}

func TestComparisonRecord(t *testing.T) {
	res := sampleResult("chrome.exe", 30000)
	res.Application = []string{"chrome.exe", "msedge.exe"}
	rec := comparisonRecord(res)
	assert.Equal(t, "chrome.exe,msedge.exe", rec.Application)
	assert.Equal(t, 15000.0, rec.BaselineBatteryMW)
	assert.Equal(t, 10.0, rec.TestPercentLost)
}
