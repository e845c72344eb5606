package main

import "errors"

var (
	// ErrReportMarkers – в отчете о батарее не найдены метки в нужном порядке
	ErrReportMarkers = errors.New("battery report markers not found")
	// ErrReportName – в имени отчета нет времени создания
	ErrReportName = errors.New("report name has no creation time")
	// ErrNoTimestamps – ни одна строка SRUMUTIL не содержит корректного времени
	ErrNoTimestamps = errors.New("no parseable timestamp in power report")
	// ErrInsufficientData – данных недостаточно для сравнения
	ErrInsufficientData = errors.New("insufficient data")
	// ErrNoDrainDetected – емкость не снижалась за всю фазу
	ErrNoDrainDetected = errors.New("no battery drain detected")
	// ErrBoundaryMode – неизвестный способ поиска границ сегментов
	ErrBoundaryMode = errors.New("unknown segment boundary mode")
	// ErrPollerStopped – сборщик уже остановлен
	ErrPollerStopped = errors.New("poller stopped")
	// ErrNoWPAMarkers – в таблице процессов нет ни начала, ни конца записи wpr.exe
	ErrNoWPAMarkers = errors.New("wpr.exe markers not found")
)
