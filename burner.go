package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

const (
	burnTargetLevel  = 98 // уровень заряда, до которого разряжаем батарею
	burnPollInterval = time.Minute
	burnBlockSize    = 64 * 1024
	burnTmpDir       = "batteryburntmp"
)

// LevelFunc возвращает текущий процент заряда
type LevelFunc func(ctx context.Context) (int, error)

// BurnOptions – параметры прожига батареи
type BurnOptions struct {
	Workers  int           // 0 – число логических ядер
	Interval time.Duration // период опроса уровня заряда
	Target   int           // прожиг идет, пока заряд выше Target
}

// reportLevel читает уровень заряда через отчет о батарее во временной папке
func reportLevel(tool ReportTool, dir string) LevelFunc {
	return func(ctx context.Context) (int, error) {
		path := filepath.Join(dir, fmt.Sprintf("%s%d.html", batteryReportMarker, time.Now().Unix()))
		if err := tool.BatteryReport(ctx, path); err != nil {
			return 0, err
		}
		defer os.Remove(path)
		s, err := parseBatteryReport(path)
		if err != nil {
			return 0, err
		}
		return s.Battery, nil
	}
}

// burnWorkers возвращает число горутин прожига
func burnWorkers(n int) int {
	if n > 0 {
		return n
	}
	cores, err := cpu.Counts(true)
	if err != nil || cores < 1 {
		log.Debugf("cpu.Counts: %v, используем GOMAXPROCS", err)
		return runtime.GOMAXPROCS(0)
	}
	return cores
}

// startBurners запускает n горутин, нагружающих процессор до отмены ctx.
// Возвращенная функция останавливает их и ждет завершения.
func startBurners(ctx context.Context, n int) (stop func() int64) {
	ctx, cancel := context.WithCancel(ctx)
	block := make([]byte, burnBlockSize)
	for i := range block {
		block[i] = byte(i % 256)
	}

	var it atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)
	for w := 0; w < n; w++ {
		go func() {
			defer wg.Done()
			hasher := sha256.New()
			for ctx.Err() == nil {
				hasher.Reset()
				_, _ = hasher.Write(block)
				_ = hasher.Sum(nil)
				it.Add(1)
			}
		}()
	}
	return func() int64 {
		cancel()
		wg.Wait()
		return it.Load()
	}
}

// runBurn доводит батарею до свежей границы процента перед прогоном.
// При заряде не выше Target ждет следующего падения процента, иначе жжет процессор до Target.
func runBurn(ctx context.Context, level LevelFunc, opts BurnOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = burnPollInterval
	}
	if opts.Target <= 0 {
		opts.Target = burnTargetLevel
	}
	started := time.Now()

	current, err := level(ctx)
	if err != nil {
		return fmt.Errorf("уровень заряда: %w", err)
	}
	log.Infof("🔋 Текущий заряд: %d%%", current)

	if current <= opts.Target {
		log.Infof("⏸️ Прожиг не нужен, ждем падения заряда")
		for {
			if err := sleepCtx(ctx, opts.Interval); err != nil {
				return err
			}
			l, err := level(ctx)
			if err != nil {
				log.Warnf("⚠️ Уровень заряда: %v", err)
				continue
			}
			if l != current {
				log.Infof("✅ Заряд изменился: %d%% → %d%%, можно начинать запись", current, l)
				return nil
			}
		}
	}

	workers := burnWorkers(opts.Workers)
	log.Infof("🔥 Прожиг на %d горутинах до %d%%", workers, opts.Target)
	stop := startBurners(ctx, workers)
	defer func() {
		n := stop()
		log.Debugf("🔥 Выполнено итераций: %d", n)
	}()

	for current > opts.Target {
		if err := sleepCtx(ctx, opts.Interval); err != nil {
			return err
		}
		l, err := level(ctx)
		if err != nil {
			log.Warnf("⚠️ Уровень заряда: %v", err)
			continue
		}
		if l != current {
			log.Infof("📉 Заряд: %d%%", l)
		}
		current = l
	}
	log.Infof("✅ Прожиг завершен за %s", formatDuration(time.Since(started)))
	return nil
}
