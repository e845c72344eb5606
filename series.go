package main

import (
	"sort"
	"strconv"
	"strings"
)

// mergeRows объединяет строки нескольких файлов SRUMUTIL в одну серию.
//
// Каждый timestamp принадлежит первому файлу, в котором он встретился;
// строки с этим временем из других файлов игнорируются. Внутри одного
// времени повторяющиеся строки считаются один раз, остальные суммируются.
func mergeRows(files []FileSamples) PowerData {
	data := PowerData{
		Series: make(MergedSeries),
		Apps:   make(map[string]MergedSeries),
	}
	owner := make(map[int64]string)
	seen := make(map[int64]map[string]struct{})

	for _, f := range files {
		for _, s := range f.Samples {
			if o, ok := owner[s.Timestamp]; ok && o != f.Path {
				continue
			}
			owner[s.Timestamp] = f.Path

			group := seen[s.Timestamp]
			if group == nil {
				group = make(map[string]struct{})
				seen[s.Timestamp] = group
			}
			key := sampleKey(s)
			if _, dup := group[key]; dup {
				continue
			}
			group[key] = struct{}{}

			data.Series[s.Timestamp] = addInto(data.Series[s.Timestamp], s.Values)
			app := data.Apps[s.App]
			if app == nil {
				app = make(MergedSeries)
				data.Apps[s.App] = app
			}
			app[s.Timestamp] = addInto(app[s.Timestamp], s.Values)

			if len(data.Series) == 1 || s.Timestamp < data.MinTime {
				data.MinTime = s.Timestamp
			}
			if len(data.Series) == 1 || s.Timestamp > data.MaxTime {
				data.MaxTime = s.Timestamp
			}
		}
	}
	return data
}

// sampleKey – идентичность строки для удаления дублей
func sampleKey(s EnergySample) string {
	var b strings.Builder
	b.WriteString(s.App)
	b.WriteByte(0)
	b.WriteString(s.Category)
	for _, v := range s.Values {
		b.WriteByte(0)
		b.WriteString(strconv.FormatInt(v, 10))
	}
	return b.String()
}

// addInto поэлементно прибавляет values к acc
func addInto(acc []float64, values []int64) []float64 {
	if acc == nil {
		acc = make([]float64, len(values))
	}
	for i, v := range values {
		if i < len(acc) {
			acc[i] += float64(v)
		}
	}
	return acc
}

// fillHoles возвращает новую серию, в которой есть отсчет на каждом шаге
// cadence от minT до maxT. Пропуски заполняются нулевыми векторами.
func fillHoles(series MergedSeries, minT, maxT, cadence int64) MergedSeries {
	filled := make(MergedSeries, len(series))
	width := 0
	for ts, v := range series {
		filled[ts] = append([]float64(nil), v...)
		width = len(v)
	}
	if len(series) == 0 {
		return filled
	}

	zeros := func() []float64 { return make([]float64, width) }
	if cadence > 0 {
		for ts := minT; ts <= maxT; ts += cadence {
			if _, ok := filled[ts]; !ok {
				filled[ts] = zeros()
			}
		}
	}
	if _, ok := filled[maxT]; !ok {
		filled[maxT] = zeros()
	}
	if _, ok := filled[minT]; !ok {
		filled[minT] = zeros()
	}
	return filled
}

// orderedSeries сортирует серию по возрастанию времени
func orderedSeries(series MergedSeries) []SeriesRow {
	rows := make([]SeriesRow, 0, len(series))
	for ts, v := range series {
		rows = append(rows, SeriesRow{Timestamp: ts, Values: append([]float64(nil), v...)})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Timestamp < rows[j].Timestamp
	})
	return rows
}

// column возвращает i-ю колонку упорядоченной серии
func column(rows []SeriesRow, i int) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if i < len(r.Values) {
			out = append(out, r.Values[i])
		} else {
			out = append(out, 0)
		}
	}
	return out
}

// elapsedSeconds – время каждого отсчета относительно первого
func elapsedSeconds(rows []SeriesRow) []float64 {
	out := make([]float64, len(rows))
	if len(rows) == 0 {
		return out
	}
	t0 := rows[0].Timestamp
	for i, r := range rows {
		out[i] = float64(r.Timestamp - t0)
	}
	return out
}

// movingAverage – простое скользящее среднее через накопленные суммы.
// Возвращаются только полные окна: len(seq)-window+1 значений.
func movingAverage(seq []float64, window int) []float64 {
	if window <= 1 {
		return append([]float64(nil), seq...)
	}
	if window > len(seq) {
		return []float64{}
	}
	cumsum := make([]float64, len(seq)+1)
	for i, v := range seq {
		cumsum[i+1] = cumsum[i] + v
	}
	out := make([]float64, 0, len(seq)-window+1)
	for i := window; i <= len(seq); i++ {
		out = append(out, (cumsum[i]-cumsum[i-window])/float64(window))
	}
	return out
}
