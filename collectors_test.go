package main

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTool пишет готовые отчеты вместо вызова powercfg
type fakeTool struct {
	mu       sync.Mutex
	percent  int
	power    []string
	battery  []string
	failNext error
}

func (f *fakeTool) PowerReport(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	f.power = append(f.power, path)
	return os.WriteFile(path, []byte(powerCSV([]powerRow{{"a.exe", time.Now().Unix(), []int64{1, 2}}})), 0644)
}

func (f *fakeTool) BatteryReport(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.battery = append(f.battery, path)
	return os.WriteFile(path, []byte(batteryReportHTML(f.percent, 40000)), 0644)
}

func (f *fakeTool) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.power), len(f.battery)
}

func TestPollerTransitions(t *testing.T) {
	dir := t.TempDir()
	var mu sync.Mutex
	var dirs []string
	p := NewPoller("test", time.Hour, func(ctx context.Context, d string, now time.Time) error {
		mu.Lock()
		dirs = append(dirs, d)
		mu.Unlock()
		return nil
	})
	assert.Equal(t, PollerIdle, p.State())

	// Без папки измерение пропускается
	require.NoError(t, p.Start())
	assert.Equal(t, PollerRunning, p.State())
	assert.Equal(t, 0, p.Ticks())

	require.NoError(t, p.Pause())
	assert.Equal(t, PollerPaused, p.State())

	require.NoError(t, p.SetOutput(dir))
	require.NoError(t, p.Start())
	assert.Equal(t, 1, p.Ticks())

	// Повторный Start в Running ничего не делает
	require.NoError(t, p.Start())
	assert.Equal(t, 1, p.Ticks())

	killed := false
	p.OnKill(func() error {
		killed = true
		return nil
	})
	require.NoError(t, p.Kill())
	assert.True(t, killed)
	assert.Equal(t, PollerStopped, p.State())

	assert.ErrorIs(t, p.Start(), ErrPollerStopped)
	assert.ErrorIs(t, p.Kill(), ErrPollerStopped)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{dir}, dirs)
}

func TestPollerTicksOnInterval(t *testing.T) {
	ticks := make(chan struct{}, 10)
	p := NewPoller("fast", 10*time.Millisecond, func(ctx context.Context, d string, now time.Time) error {
		ticks <- struct{}{}
		return nil
	})
	defer p.Kill()

	require.NoError(t, p.SetOutput(t.TempDir()))
	require.NoError(t, p.Start())
	for i := 0; i < 3; i++ {
		select {
		case <-ticks:
		case <-time.After(2 * time.Second):
			t.Fatal("сборщик не выполнил измерение")
		}
	}
}

func TestPollerFailedTickNotCounted(t *testing.T) {
	p := NewPoller("failing", time.Hour, func(ctx context.Context, d string, now time.Time) error {
		return errors.New("boom")
	})
	defer p.Kill()

	require.NoError(t, p.SetOutput(t.TempDir()))
	require.NoError(t, p.Start())
	assert.Equal(t, 0, p.Ticks())
	assert.Equal(t, PollerRunning, p.State())
}

func TestReportTick(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeTool{percent: 90}
	now := time.Unix(1700000000, 0)

	require.NoError(t, reportTick(tool, true, true)(context.Background(), dir, now))
	assert.FileExists(t, filepath.Join(dir, "srumutil1700000000.csv"))
	assert.FileExists(t, filepath.Join(dir, "batteryreport1700000000.html"))

	require.NoError(t, reportTick(tool, false, true)(context.Background(), dir, now.Add(time.Minute)))
	power, battery := tool.calls()
	assert.Equal(t, 1, power)
	assert.Equal(t, 2, battery)

	tool.failNext = errors.New("access denied")
	assert.Error(t, reportTick(tool, true, true)(context.Background(), dir, now))
}

func TestRAMTick(t *testing.T) {
	dir := t.TempDir()
	tick := ramTick(func(ctx context.Context) (uint64, error) {
		return 2048 << 20, nil
	})

	require.NoError(t, tick(context.Background(), dir, time.Unix(100, 0)))
	require.NoError(t, tick(context.Background(), dir, time.Unix(105, 0)))

	f, err := os.Open(filepath.Join(dir, ramFileName))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"CurrentTime", "RAMUsage", "RAMPowerConsumption"},
		{"100", "2048", "0.2"},
		{"105", "2048", "0.2"},
	}, records)

	failing := ramTick(func(ctx context.Context) (uint64, error) {
		return 0, errors.New("no meminfo")
	})
	assert.Error(t, failing(context.Background(), dir, time.Now()))
}

func TestSessionPhases(t *testing.T) {
	tool := &fakeTool{percent: 80}
	s, err := NewSession(CollectOptions{
		Output:       t.TempDir(),
		PollInterval: time.Hour,
		NoRAMUsage:   true,
		Args:         map[string]string{"output": "runs"},
	}, tool, nil)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(s.Dir(), runConfigName))
	assert.DirExists(t, filepath.Join(s.Dir(), "baseline"))
	assert.DirExists(t, filepath.Join(s.Dir(), "test"))
	assert.Equal(t, "", s.Phase())

	require.NoError(t, s.StartBaseline())
	assert.Equal(t, "baseline", s.Phase())
	assert.Equal(t, 2, s.FilesCount())

	require.NoError(t, s.StartTest())
	assert.Equal(t, "test", s.Phase())
	assert.Equal(t, 4, s.FilesCount())

	require.NoError(t, s.Stop())
	assert.Equal(t, "", s.Phase())

	cfg, err := loadRunConfig(s.Dir())
	require.NoError(t, err)
	assert.Greater(t, cfg.StartTime, 0.0)
	assert.Greater(t, cfg.BaselineStartTime, 0.0)
	assert.Equal(t, cfg.BaselineEndTime, cfg.TestStartTime)
	assert.GreaterOrEqual(t, cfg.TestEndTime, cfg.TestStartTime)
	assert.Equal(t, "runs", cfg.Args["output"])

	base, err := loadBatteryReports(filepath.Join(s.Dir(), "baseline"))
	require.NoError(t, err)
	assert.Len(t, base, 1)

	// Повторная остановка не ошибка
	assert.NoError(t, s.Stop())
}

func TestSessionWithoutPollers(t *testing.T) {
	s, err := NewSession(CollectOptions{
		Output:         t.TempDir(),
		NoPowerUsage:   true,
		NoBatteryUsage: true,
		NoRAMUsage:     true,
	}, &fakeTool{}, nil)
	require.NoError(t, err)

	require.NoError(t, s.StartBaseline())
	require.NoError(t, s.Stop())

	cfg, err := loadRunConfig(filepath.Join(s.Dir(), runConfigName))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cfg.BaselineEndTime, cfg.BaselineStartTime)
	assert.Equal(t, 0, s.FilesCount())
}

func TestRunHeadless(t *testing.T) {
	tool := &fakeTool{percent: 70}
	s, err := NewSession(CollectOptions{
		Output:       t.TempDir(),
		PollInterval: time.Hour,
		NoRAMUsage:   true,
	}, tool, nil)
	require.NoError(t, err)

	require.NoError(t, runHeadless(context.Background(), s, 10*time.Millisecond, 10*time.Millisecond))
	_, battery := tool.calls()
	assert.Equal(t, 2, battery)

	cfg, err := loadRunConfig(s.Dir())
	require.NoError(t, err)
	assert.Greater(t, cfg.TestEndTime, 0.0)
}

func TestRunHeadlessCanceled(t *testing.T) {
	s, err := NewSession(CollectOptions{
		Output:       t.TempDir(),
		PollInterval: time.Hour,
		NoRAMUsage:   true,
	}, &fakeTool{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = runHeadless(ctx, s, time.Hour, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "", s.Phase())
}
