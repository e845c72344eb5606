package main

import (
	"fmt"
	"math"
)

// Перевод единиц. Все функции работают в float64, потеря точности
// ограничена погрешностью двойной точности (~1e-15 относительной).

// millijoulesToJoules переводит мДж в Дж.
func millijoulesToJoules(v float64) float64 {
	return v / 1000
}

// joulesToMilliwattHours переводит Дж в мВт·ч (1 мВт·ч = 3.6 Дж).
func joulesToMilliwattHours(v float64) float64 {
	return v / 3.6
}

// milliwattHoursToMillijoules переводит мВт·ч в мДж.
func milliwattHoursToMillijoules(v float64) float64 {
	return v * 3600
}

// millijoulesToMilliwatts переводит энергию за окно в секундах в среднюю мощность.
// Нулевое окно – ответственность вызывающего.
func millijoulesToMilliwatts(v, seconds float64) float64 {
	return v / seconds
}

// BoundaryMode задает способ поиска границ эпизодов разряда
type BoundaryMode string

const (
	// BoundaryRunning – максимум обновляется на каждом снижении
	BoundaryRunning BoundaryMode = "running"
	// BoundaryFixed – сравнение с начальным максимумом, только первый выход с плато
	BoundaryFixed BoundaryMode = "fixed"
)

// parseBoundaryMode проверяет значение из аргументов
func parseBoundaryMode(s string) (BoundaryMode, error) {
	switch BoundaryMode(s) {
	case BoundaryRunning, BoundaryFixed:
		return BoundaryMode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrBoundaryMode, s)
}

// computeDeltas вычисляет скорость разряда (мВт) между соседними отсчетами емкости (мВт·ч).
// Разряд дает положительные значения, у последнего отсчета нет пары.
func computeDeltas(series []float64, windowSeconds float64) []float64 {
	if len(series) < 2 {
		return nil
	}
	deltas := make([]float64, 0, len(series)-1)
	for i := 0; i < len(series)-1; i++ {
		deltas = append(deltas, millijoulesToMilliwatts(
			milliwattHoursToMillijoules(series[i]-series[i+1]),
			windowSeconds,
		))
	}
	return deltas
}

// firstGoodIndex возвращает первый индекс с положительной скоростью разряда.
// Если разряда нет, возвращает (0, false).
func firstGoodIndex(deltas []float64) (int, bool) {
	for i, v := range deltas {
		if v > 0 {
			return i, true
		}
	}
	return 0, false
}

// segmentBoundaries находит индексы выхода с плато емкости.
// Первая граница всегда 0.
func segmentBoundaries(series []float64, mode BoundaryMode) ([]int, error) {
	if len(series) == 0 {
		return nil, nil
	}
	startMax := series[0]
	for _, v := range series[1:] {
		if v > startMax {
			startMax = v
		}
	}

	switch mode {
	case BoundaryRunning:
		bounds := []int{0}
		curMax := startMax
		for i, v := range series {
			if v < curMax {
				curMax = v
				bounds = append(bounds, i)
			}
		}
		return bounds, nil
	case BoundaryFixed:
		bounds := []int{0}
		for i, v := range series {
			if v != startMax {
				if i > 0 {
					bounds = append(bounds, i)
				}
				break
			}
		}
		return bounds, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrBoundaryMode, mode)
}

// averageRate вычисляет среднюю мощность разряда (мВт) между start и end.
// При нулевом или отрицательном интервале возвращает 0.
func averageRate(series, elapsed []float64, start, end int) float64 {
	if start < 0 || end < 0 || start >= len(series) || end >= len(series) ||
		start >= len(elapsed) || end >= len(elapsed) {
		return 0
	}
	dt := elapsed[end] - elapsed[start]
	if dt <= 0 {
		return 0
	}
	return math.Abs(millijoulesToMilliwatts(
		milliwattHoursToMillijoules(series[start]-series[end]),
		dt,
	))
}

// segmentRates считает среднюю скорость разряда каждого эпизода
func segmentRates(series, elapsed []float64, bounds []int) []SegmentRate {
	if len(bounds) < 2 {
		return nil
	}
	rates := make([]SegmentRate, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		rates = append(rates, SegmentRate{
			Start: bounds[i],
			End:   bounds[i+1],
			MW:    averageRate(series, elapsed, bounds[i], bounds[i+1]),
		})
	}
	return rates
}

// cutTimeOut возвращает длину серии после обрезки окном анализа:
// все индексы до start и индексы, отстоящие от start меньше чем на seconds.
func cutTimeOut(elapsed []float64, start int, seconds float64) int {
	if seconds <= 0 || start >= len(elapsed) {
		return len(elapsed)
	}
	if start < 0 {
		start = 0
	}
	n := start
	for i := start; i < len(elapsed); i++ {
		if elapsed[i]-elapsed[start] >= seconds {
			break
		}
		n = i + 1
	}
	return n
}

// sumColumns суммирует значения по колонкам
func sumColumns(rows []SeriesRow, width int) []float64 {
	sums := make([]float64, width)
	for _, r := range rows {
		for i := 0; i < width && i < len(r.Values); i++ {
			sums[i] += r.Values[i]
		}
	}
	return sums
}
