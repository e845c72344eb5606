package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	wpaDataDir      = "etl-data"
	wpaProcessTable = "Processes_Summary_Table_Lifetime_By_Process"
	wpaRate         = 60 // отсчетов в секунду после передискретизации

	// колонки таблицы процессов
	wpaCommandCol = 5
	wpaStartCol   = 6
	wpaEndCol     = 7
)

// wpaKnownTables – таблицы, экспортируемые из WPA
var wpaKnownTables = []string{
	"Processes_Summary_Table_Lifetime_By_Process.",
	"Disk_Usage_Utilization_by_Process,_Path_Name,_Stack",
	"CPU_Usage_(Precise)_Utilization_by_Process,_Thread.",
}

// WPASeries – таблица WPA после обрезки и передискретизации
type WPASeries struct {
	Times []float64 // секунды от начала записи
	Data  []float64
	Rate  int
}

// Mean – среднее значение ряда
func (s WPASeries) Mean() float64 {
	if len(s.Data) == 0 {
		return 0
	}
	return sum(s.Data) / float64(len(s.Data))
}

// readWPATable читает CSV, экспортированный из WPA
func readWPATable(path string) ([]string, [][]string, error) {
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
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s: пустая таблица", path)
	}
	return records[0], records[1:], nil
}

// parseWPANumber разбирает число WPA с разделителями разрядов
func parseWPANumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
}

// wpaBorders находит начало и конец записи по командам wpr.exe.
// Если найден только один маркер, второй вычисляется через testTime.
func wpaBorders(rows [][]string, testTime float64) (float64, float64, error) {
	var start, end float64
	haveStart, haveEnd := false, false
	for _, row := range rows {
		if len(row) <= wpaEndCol {
			continue
		}
		command := row[wpaCommandCol]
		switch {
		case strings.Contains(command, "wpr.exe -start"):
			if v, err := parseWPANumber(row[wpaEndCol]); err == nil {
				start, haveStart = v, true
			}
		case strings.Contains(command, "wpr.exe") && strings.Contains(command, "stop-"):
			if v, err := parseWPANumber(row[wpaStartCol]); err == nil {
				end, haveEnd = v, true
			}
		}
	}

	switch {
	case !haveStart && !haveEnd:
		return 0, 0, ErrNoWPAMarkers
	case !haveEnd:
		log.Warnf("⚠️ Не найден маркер конца записи, конец = начало + %.0f с", testTime)
		end = start + testTime
	case !haveStart:
		log.Warnf("⚠️ Не найден маркер начала записи, начало = конец - %.0f с", testTime)
		start = end - testTime
	}
	return start, end, nil
}

// sortByTime упорядочивает пары (время, значение) по времени
func sortByTime(times, data []float64) {
	sort.Sort(timePairs{times, data})
}

type timePairs struct{ t, v []float64 }

func (p timePairs) Len() int           { return len(p.t) }
func (p timePairs) Less(i, j int) bool { return p.t[i] < p.t[j] }
func (p timePairs) Swap(i, j int) {
	p.t[i], p.t[j] = p.t[j], p.t[i]
	p.v[i], p.v[j] = p.v[j], p.v[i]
}

// trimSeries оставляет отсчеты от первого времени ≥ start до первого времени ≥ end включительно
func trimSeries(times, data []float64, start, end float64) ([]float64, []float64) {
	first := 0
	for first < len(times) && times[first] < start {
		first++
	}
	last := len(times) - 1
	for i := first; i < len(times); i++ {
		if times[i] >= end {
			last = i
			break
		}
	}
	if first > last {
		return nil, nil
	}
	return times[first : last+1], data[first : last+1]
}

// interpolate – линейная интерполяция с удержанием крайних значений
func interpolate(x, xp, fp []float64) []float64 {
	out := make([]float64, len(x))
	if len(xp) == 0 {
		return out
	}
	for i, v := range x {
		j := sort.SearchFloat64s(xp, v)
		switch {
		case j == 0:
			out[i] = fp[0]
		case j >= len(xp):
			out[i] = fp[len(fp)-1]
		case xp[j] == v:
			out[i] = fp[j]
		default:
			t := (v - xp[j-1]) / (xp[j] - xp[j-1])
			out[i] = fp[j-1] + t*(fp[j]-fp[j-1])
		}
	}
	return out
}

// resampleWPA переводит ряд на равномерную сетку wpaRate отсчетов в секунду от start до end
func resampleWPA(times, data []float64, start, end float64) WPASeries {
	n := int((end - start) * wpaRate)
	if n < 0 {
		n = 0
	}
	rel := make([]float64, n)
	abs := make([]float64, n)
	for k := 0; k < n; k++ {
		rel[k] = float64(k) / wpaRate
		abs[k] = start + rel[k]
	}
	return WPASeries{Times: rel, Data: interpolate(abs, times, data), Rate: wpaRate}
}

// loadWPAData читает таблицы WPA из <testDir>/etl-data.
// Первая колонка каждой таблицы – время, вторая – значение.
func loadWPAData(testDir string, testTime float64) (map[string]WPASeries, error) {
	files, err := getPathsFromDir(filepath.Join(testDir, wpaDataDir), wpaKnownTables)
	if err != nil {
		return nil, err
	}

	commandFile := ""
	for _, f := range files {
		if strings.Contains(f, wpaProcessTable) {
			commandFile = f
			break
		}
	}
	if commandFile == "" {
		return nil, fmt.Errorf("таблица %s не найдена: %w", wpaProcessTable, ErrInsufficientData)
	}

	_, rows, err := readWPATable(commandFile)
	if err != nil {
		return nil, err
	}
	start, end, err := wpaBorders(rows, testTime)
	if err != nil {
		return nil, err
	}
	log.Infof("⏱️ Запись WPA: %.3f – %.3f", start, end)

	result := make(map[string]WPASeries)
	for _, file := range files {
		if file == commandFile {
			continue
		}
		name := ""
		for _, table := range wpaKnownTables {
			if strings.Contains(file, table) {
				name = table
				break
			}
		}

		_, rows, err := readWPATable(file)
		if err != nil {
			return nil, err
		}
		var times, data []float64
		for _, row := range rows {
			if len(row) < 2 {
				continue
			}
			t, err1 := parseWPANumber(row[0])
			v, err2 := parseWPANumber(row[1])
			if err1 != nil || err2 != nil {
				continue
			}
			times = append(times, t)
			data = append(data, v)
		}
		sortByTime(times, data)
		times, data = trimSeries(times, data, start, end)
		if len(times) == 0 {
			log.Warnf("⚠️ %s: нет отсчетов внутри записи", file)
			continue
		}
		result[name] = resampleWPA(times, data, start, end)
	}
	log.Infof("📊 Таблиц WPA: %d", len(result))
	return result, nil
}

// wpaTableNames возвращает имена таблиц в алфавитном порядке
func wpaTableNames(tables map[string]WPASeries) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
