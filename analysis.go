package main

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// CompareOptions – параметры сравнения baseline и test
type CompareOptions struct {
	BaselineDir string
	TestDir     string
	Config      RunConfig

	Application         []string // приложения test-фазы ("" – все)
	BaselineApplication []string // приложения baseline-фазы; nil – все
	ExcludeBaselineApps []string
	ExcludeTestApps     []string

	TimeToAnalyze float64 // секунды, 0 – весь ряд
	BaselineTime  float64 // длительность фаз в секундах, 0 – из config.json
	TestTime      float64

	SmoothBattery bool
	BatteryWindow int
	DeltaWindow   int
	BoundaryMode  BoundaryMode
	RequireDrain  bool

	ConsumptionFrom []string // колонки SRUMUTIL для усреднения; пусто – все
	IgnorePower     bool
	PerApp          bool
}

// compareData загружает данные обеих фаз и строит ComparisonResult.
func compareData(opts CompareOptions) (ComparisonResult, error) {
	if opts.BoundaryMode == "" {
		opts.BoundaryMode = BoundaryRunning
	}
	if _, err := parseBoundaryMode(string(opts.BoundaryMode)); err != nil {
		return ComparisonResult{}, err
	}

	res := ComparisonResult{
		CreatedAt:   time.Now().UTC(),
		Application: opts.Application,
	}

	log.Infof("🔋 Загружаем отчеты о батарее: baseline")
	baseReports, err := loadBatteryReports(opts.BaselineDir)
	if err != nil {
		return ComparisonResult{}, fmt.Errorf("baseline: %w", err)
	}
	log.Infof("🔋 Загружаем отчеты о батарее: test")
	testReports, err := loadBatteryReports(opts.TestDir)
	if err != nil {
		return ComparisonResult{}, fmt.Errorf("test: %w", err)
	}

	if res.BaselineBattery, err = analyzeBattery(baseReports, opts); err != nil {
		return ComparisonResult{}, fmt.Errorf("baseline: %w", err)
	}
	if res.TestBattery, err = analyzeBattery(testReports, opts); err != nil {
		return ComparisonResult{}, fmt.Errorf("test: %w", err)
	}

	if opts.IgnorePower {
		log.Infof("⏭️ Данные SRUMUTIL пропущены")
		return res, nil
	}

	baseSeconds, testSeconds := phaseSeconds(opts)

	log.Infof("⚡ Загружаем данные SRUMUTIL: baseline")
	basePower, err := loadPowerSeries(opts.BaselineDir, PowerFilter{
		Apps:      AppFilter{Include: opts.BaselineApplication, Exclude: opts.ExcludeBaselineApps},
		StartTime: int64(baselineStart(opts.Config)),
		Duration:  int64(baseSeconds),
	})
	if err != nil {
		return ComparisonResult{}, fmt.Errorf("baseline: %w", err)
	}
	log.Infof("⚡ Загружаем данные SRUMUTIL: test")
	testPower, err := loadPowerSeries(opts.TestDir, PowerFilter{
		Apps:      AppFilter{Include: opts.Application, Exclude: opts.ExcludeTestApps},
		StartTime: int64(opts.Config.TestStartTime),
		Duration:  int64(testSeconds),
	})
	if err != nil {
		return ComparisonResult{}, fmt.Errorf("test: %w", err)
	}
	if basePower.Empty() || testPower.Empty() {
		return ComparisonResult{}, fmt.Errorf("нет данных SRUMUTIL: %w", ErrInsufficientData)
	}
	if len(basePower.Header) != len(testPower.Header) {
		return ComparisonResult{}, fmt.Errorf("baseline и test: %d и %d колонок счетчиков", len(basePower.Header), len(testPower.Header))
	}

	cols := selectColumns(basePower.Header, opts.ConsumptionFrom)
	if len(cols) == 0 {
		return ComparisonResult{}, fmt.Errorf("колонки %v не найдены: %w", opts.ConsumptionFrom, ErrInsufficientData)
	}
	res.Header = make([]string, len(cols))
	for i, c := range cols {
		res.Header[i] = basePower.Header[c]
	}

	var baseCut, testCut int64
	res.BaselinePower, baseCut = analyzePower(basePower.Series, cols, baseSeconds, opts.TimeToAnalyze)
	res.TestPower, testCut = analyzePower(testPower.Series, cols, testSeconds, opts.TimeToAnalyze)

	if opts.PerApp {
		res.Apps = append(res.Apps, appBreakdown("baseline", basePower.Apps, cols, res.BaselinePower.Seconds, baseCut)...)
		res.Apps = append(res.Apps, appBreakdown("test", testPower.Apps, cols, res.TestPower.Seconds, testCut)...)
	}
	return res, nil
}

// analyzeBattery считает скорость разряда одной фазы по отчетам о батарее.
func analyzeBattery(reports MergedSeries, opts CompareOptions) (BatteryPhase, error) {
	rows := orderedSeries(reports)
	if len(rows) < 2 {
		return BatteryPhase{}, fmt.Errorf("отчетов о батарее: %d: %w", len(rows), ErrInsufficientData)
	}

	percent := column(rows, 0)
	capacity := column(rows, 1)
	elapsed := elapsedSeconds(rows)

	if opts.SmoothBattery {
		w := opts.BatteryWindow
		if w <= 0 {
			w = defaultBatteryWindow
		}
		smoothed := movingAverage(capacity, w)
		if len(smoothed) < 2 {
			return BatteryPhase{}, fmt.Errorf("окно сглаживания %d больше ряда из %d отчетов: %w", w, len(rows), ErrInsufficientData)
		}
		// Среднее по окну относится к его последнему отсчету
		shift := len(capacity) - len(smoothed)
		capacity = smoothed
		percent = percent[shift:]
		elapsed = elapsed[shift:]
	}

	deltas := computeDeltas(capacity, cadenceSeconds)
	deltaShift := 0
	if opts.SmoothBattery {
		dw := opts.DeltaWindow
		if dw <= 0 {
			dw = defaultDeltaWindow
		}
		if smoothed := movingAverage(deltas, dw); len(smoothed) > 0 {
			deltaShift = len(deltas) - len(smoothed)
			deltas = smoothed
		} else {
			log.Warnf("⚠️ Окно %d больше ряда скоростей (%d), сглаживание пропущено", dw, len(deltas))
		}
	}

	start, ok := firstGoodIndex(deltas)
	if ok {
		start += deltaShift
	} else {
		if opts.RequireDrain {
			return BatteryPhase{}, ErrNoDrainDetected
		}
		log.Warnf("⚠️ Разряд батареи не обнаружен, анализ с первого отсчета")
	}
	if start > len(capacity)-1 {
		start = len(capacity) - 1
	}

	n := cutTimeOut(elapsed, start, opts.TimeToAnalyze)
	capacity, percent, elapsed = capacity[:n], percent[:n], elapsed[:n]
	// deltas[j] сглажена по окну, заканчивающемуся на отсчете j+deltaShift
	if keep := max(n-deltaShift, 0); len(deltas) > keep {
		deltas = deltas[:keep]
	}

	bounds, err := segmentBoundaries(capacity[start:], opts.BoundaryMode)
	if err != nil {
		return BatteryPhase{}, err
	}
	for i := range bounds {
		bounds[i] += start
	}
	end := start
	if len(bounds) > 0 {
		end = bounds[len(bounds)-1]
	}

	last := len(capacity) - 1
	phase := BatteryPhase{
		AvgMW:         averageRate(capacity, elapsed, start, end),
		DrainedMWh:    capacity[start] - capacity[last],
		PercentLost:   percent[start] - percent[last],
		FirstGood:     start,
		End:           end,
		DrainDetected: ok,
		Samples:       len(rows),
		Segments:      segmentRates(capacity, elapsed, bounds),
		Trace: BatteryTrace{
			Elapsed:  elapsed,
			Capacity: capacity,
			Deltas:   deltas,
			Offset:   deltaShift,
		},
	}
	log.Debugf("📉 Разряд: %.1f мВт, %d эпизодов, окно [%d, %d]", phase.AvgMW, len(phase.Segments), start, end)
	return phase, nil
}

// analyzePower усредняет счетчики SRUMUTIL одной фазы.
// Возвращает также время последнего отсчета после обрезки.
func analyzePower(series MergedSeries, cols []int, seconds, timeToAnalyze float64) (PowerPhase, int64) {
	rows := orderedSeries(series)
	if timeToAnalyze > 0 {
		n := cutTimeOut(elapsedSeconds(rows), 0, timeToAnalyze)
		rows = rows[:n]
		seconds = timeToAnalyze
	}
	var cut int64
	if len(rows) > 0 {
		cut = rows[len(rows)-1].Timestamp
	}

	width := 0
	for _, c := range cols {
		if c+1 > width {
			width = c + 1
		}
	}
	sums := sumColumns(rows, width)

	phase := PowerPhase{
		MW:      make([]float64, len(cols)),
		MWh:     make([]float64, len(cols)),
		Seconds: seconds,
		Rows:    make([]SeriesRow, len(rows)),
	}
	for i, c := range cols {
		if seconds > 0 {
			phase.MW[i] = millijoulesToMilliwatts(sums[c], seconds)
		}
		phase.MWh[i] = joulesToMilliwattHours(millijoulesToJoules(sums[c]))
	}
	// Строки фазы хранят только выбранные колонки, в порядке заголовка результата
	for r, row := range rows {
		values := make([]float64, len(cols))
		for i, c := range cols {
			if c < len(row.Values) {
				values[i] = row.Values[c]
			}
		}
		phase.Rows[r] = SeriesRow{Timestamp: row.Timestamp, Values: values}
	}
	return phase, cut
}

// appBreakdown считает потребление каждого приложения до момента cut
func appBreakdown(phase string, apps map[string]MergedSeries, cols []int, seconds float64, cut int64) []AppRate {
	names := make([]string, 0, len(apps))
	for name := range apps {
		names = append(names, name)
	}
	sort.Strings(names)

	rates := make([]AppRate, 0, len(names))
	for _, name := range names {
		total := 0.0
		for ts, values := range apps[name] {
			if ts > cut {
				continue
			}
			for _, c := range cols {
				if c < len(values) {
					total += values[c]
				}
			}
		}
		rate := AppRate{
			Phase: phase,
			App:   name,
			MWh:   joulesToMilliwattHours(millijoulesToJoules(total)),
		}
		if seconds > 0 {
			rate.MW = millijoulesToMilliwatts(total, seconds)
		}
		rates = append(rates, rate)
	}
	return rates
}

// selectColumns возвращает индексы колонок, имя которых совпадает с одной из строк wanted
func selectColumns(header, wanted []string) []int {
	var cols []int
	for i, name := range header {
		if len(wanted) == 0 {
			cols = append(cols, i)
			continue
		}
		for _, w := range wanted {
			if w != "" && strings.TrimSpace(name) == strings.TrimSpace(w) {
				cols = append(cols, i)
				break
			}
		}
	}
	return cols
}

// phaseSeconds определяет длительность фаз: аргументы, затем config.json, затем 600 с.
func phaseSeconds(opts CompareOptions) (float64, float64) {
	pick := func(override, start, end float64, name string) float64 {
		if override > 0 {
			return override
		}
		if end > start && start > 0 {
			return end - start
		}
		log.Warnf("⚠️ Длительность фазы %s неизвестна, используем %d с", name, defaultPhaseSeconds)
		return defaultPhaseSeconds
	}
	base := pick(opts.BaselineTime, baselineStart(opts.Config), opts.Config.BaselineEndTime, "baseline")
	test := pick(opts.TestTime, opts.Config.TestStartTime, opts.Config.TestEndTime, "test")
	return base, test
}

// baselineStart – начало baseline; в старых config.json есть только starttime
func baselineStart(cfg RunConfig) float64 {
	if cfg.BaselineStartTime > 0 {
		return cfg.BaselineStartTime
	}
	return cfg.StartTime
}
