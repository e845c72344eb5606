package main

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	batteryReportMarker = "batteryreport"
	powerReportMarker   = "srumutil"

	// timestampSearchStart – с этой колонки начинается поиск времени в SRUMUTIL
	timestampSearchStart = 2
	// counterShift – счетчики энергии начинаются через столько колонок после времени
	counterShift = 10

	reportTimeLayout = "2006-01-02:15:04:05"
)

var (
	reportGeneratedRe = regexp.MustCompile(`Report generated`)
	reportPercentRe   = regexp.MustCompile(`"percent">(\d+)`)
	reportCapacityRe  = regexp.MustCompile(`"mw">([^<]*?)\s*mWh`)
	reportNameRe      = regexp.MustCompile(`report(\d+)`)

	// reportLocation – часовой пояс, в котором powercfg пишет время
	reportLocation = time.Local
)

// reportCreationTime извлекает время создания из имени отчета (batteryreport<epoch>.html).
func reportCreationTime(path string) (int64, error) {
	name := filepath.Base(path)
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	m := reportNameRe.FindStringSubmatch(name)
	if len(m) != 2 {
		return 0, fmt.Errorf("%s: %w", path, ErrReportName)
	}
	ts, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, ErrReportName)
	}
	return ts, nil
}

// parseBatteryReport читает отчет powercfg /BATTERYREPORT.
// Метки ищутся по порядку: "Report generated", процент заряда, емкость в мВт·ч.
func parseBatteryReport(path string) (*BatteryReportSample, error) {
	creation, err := reportCreationTime(path)
	if err != nil {
		log.Warnf("⚠️ Пропускаем отчет: %v", err)
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("открытие отчета: %w", err)
	}
	defer f.Close()

	sample, err := scanBatteryReport(f)
	if err != nil {
		if errors.Is(err, ErrReportMarkers) {
			log.Warnf("⚠️ Что-то не так с отчетом о батарее %s", path)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sample.CreationTime = creation
	return sample, nil
}

// scanBatteryReport ищет три метки отчета по порядку
func scanBatteryReport(r io.Reader) (*BatteryReportSample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	reportFound, percentFound := false, false
	percentage := 0

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case !reportFound:
			reportFound = reportGeneratedRe.MatchString(line)
		case !percentFound:
			if m := reportPercentRe.FindStringSubmatch(line); len(m) == 2 {
				pct, err := strconv.Atoi(m[1])
				if err != nil || pct < 0 || pct > 100 {
					continue
				}
				percentage = pct
				percentFound = true
			}
		default:
			if m := reportCapacityRe.FindStringSubmatch(line); len(m) == 2 {
				capacity, err := parseThousands(m[1])
				if err != nil {
					continue
				}
				return &BatteryReportSample{Battery: percentage, Capacity: capacity}, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("сканирование отчета: %w", err)
	}
	return nil, ErrReportMarkers
}

// parseThousands убирает разделители разрядов ("41,550" → 41550)
func parseThousands(s string) (int, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ',', '.', ' ', '\u00a0':
			return -1
		}
		return r
	}, s)
	v, err := strconv.Atoi(clean)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("отрицательная емкость: %d", v)
	}
	return v, nil
}

// AppFilter задает списки приложений для отбора строк SRUMUTIL
type AppFilter struct {
	Include []string // пустой список или "" – любые приложения
	Exclude []string
}

// Match проверяет имя приложения. Исключения проверяются первыми,
// совпадение – вхождение подстроки в любую сторону.
func (f AppFilter) Match(app string) bool {
	for _, ex := range f.Exclude {
		if ex == "" {
			continue
		}
		if strings.Contains(app, ex) || strings.Contains(ex, app) {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, in := range f.Include {
		if strings.Contains(app, in) || strings.Contains(in, app) {
			return true
		}
	}
	return false
}

// parseReportTimestamp разбирает время SRUMUTIL "YYYY-MM-DD:HH:MM:SS[.fraction]".
func parseReportTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	t, err := time.ParseInLocation(reportTimeLayout, s, reportLocation)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// detectTimestampColumn перебирает колонки начиная с from, пока одна не окажется временем
func detectTimestampColumn(row []string, from int) (int, int64, bool) {
	for col := from; col < len(row); col++ {
		if ts, err := parseReportTimestamp(row[col]); err == nil {
			return col, ts, true
		}
	}
	return -1, 0, false
}

// readPowerReport читает один CSV powercfg /SRUMUTIL.
// Возвращает имена колонок счетчиков и строки последнего снимка, прошедшие фильтр.
func readPowerReport(path string, filter AppFilter) ([]string, []EnergySample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("открытие %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("чтение CSV %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("%s: %w", path, ErrNoTimestamps)
	}
	header, rows := records[0], records[1:]

	// Время последней строки – момент этого снимка
	tsCol := -1
	var finalTime int64
	for i := len(rows) - 1; i >= 0; i-- {
		if col, ts, ok := detectTimestampColumn(rows[i], timestampSearchStart); ok {
			tsCol, finalTime = col, ts
			break
		}
	}
	if tsCol < 0 {
		return nil, nil, fmt.Errorf("%s: %w", path, ErrNoTimestamps)
	}

	counterStart := tsCol + counterShift
	if counterStart >= len(header) {
		return nil, nil, fmt.Errorf("%s: нет колонок счетчиков после колонки %d", path, counterStart)
	}
	names := make([]string, 0, len(header)-counterStart)
	for _, h := range header[counterStart:] {
		names = append(names, strings.TrimSpace(h))
	}

	var samples []EnergySample
	skipped := 0
	for _, row := range rows {
		if tsCol >= len(row) {
			continue
		}
		ts, err := parseReportTimestamp(row[tsCol])
		if err != nil || ts < finalTime {
			continue
		}
		app := strings.TrimSpace(row[0])
		if !filter.Match(app) {
			continue
		}
		if len(row)-counterStart != len(names) {
			skipped++
			continue
		}
		values, err := parseCounters(row[counterStart:])
		if err != nil {
			skipped++
			continue
		}
		category := ""
		if len(row) > 1 {
			category = strings.TrimSpace(row[1])
		}
		samples = append(samples, EnergySample{
			Timestamp: ts,
			App:       app,
			Category:  category,
			Values:    values,
		})
	}
	if skipped > 0 {
		log.Warnf("⚠️ %s: пропущено %d строк с некорректными счетчиками", path, skipped)
	}
	return names, samples, nil
}

// parseCounters разбирает целые счетчики энергии
func parseCounters(fields []string) ([]int64, error) {
	values := make([]int64, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// loadBatteryReports читает все отчеты о батарее в папке.
// Возвращает timestamp → {процент, емкость}; испорченные отчеты пропускаются.
func loadBatteryReports(dir string) (MergedSeries, error) {
	files, err := getPathsFromDir(dir, []string{batteryReportMarker})
	if err != nil {
		return nil, err
	}

	data := make(MergedSeries, len(files))
	for _, file := range files {
		s, err := parseBatteryReport(file)
		if err != nil {
			if errors.Is(err, ErrReportMarkers) || errors.Is(err, ErrReportName) {
				continue
			}
			return nil, err
		}
		data[s.CreationTime] = []float64{float64(s.Battery), float64(s.Capacity)}
	}
	log.Debugf("📦 Загружено %d отчетов о батарее из %s", len(data), dir)
	return data, nil
}

// PowerFilter – параметры загрузки SRUMUTIL одной фазы
type PowerFilter struct {
	Apps      AppFilter
	StartTime int64 // отбрасываются отсчеты раньше (0 – без ограничения)
	Duration  int64 // и позже StartTime+Duration (0 – без ограничения)
}

func (pf PowerFilter) inWindow(ts int64) bool {
	if pf.StartTime <= 0 {
		return true
	}
	if ts < pf.StartTime {
		return false
	}
	return pf.Duration <= 0 || ts <= pf.StartTime+pf.Duration
}

// loadPowerSeries читает все файлы SRUMUTIL фазы и строит плотную серию.
// Если файлов нет, возвращается пустой PowerData без ошибки.
func loadPowerSeries(dir string, pf PowerFilter) (PowerData, error) {
	files, err := getPathsFromDir(dir, []string{powerReportMarker})
	if err != nil {
		return PowerData{}, err
	}

	var header []string
	perFile := make([]FileSamples, 0, len(files))
	for _, file := range files {
		names, samples, err := readPowerReport(file, pf.Apps)
		if err != nil {
			return PowerData{}, err
		}
		if header == nil {
			header = names
		} else if len(names) != len(header) {
			return PowerData{}, fmt.Errorf("%s: %d колонок счетчиков вместо %d", file, len(names), len(header))
		}

		kept := samples[:0]
		for _, s := range samples {
			if pf.inWindow(s.Timestamp) {
				kept = append(kept, s)
			}
		}
		perFile = append(perFile, FileSamples{Path: file, Samples: kept})
	}

	data := mergeRows(perFile)
	data.Header = header
	if data.Empty() {
		log.Warnf("⚠️ В %s нет данных SRUMUTIL", dir)
		return data, nil
	}
	data.Series = fillHoles(data.Series, data.MinTime, data.MaxTime, cadenceSeconds)
	log.Infof("📊 %s: найдено отсчетов %d", dir, len(data.Series))
	return data, nil
}
