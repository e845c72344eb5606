package main

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// initDB открывает соединение с SQLite и создаёт таблицы, если их нет.
func initDB(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("соединение с БД: %w", err)
	}

	// Включаем WAL режим для устранения блокировок при одновременном чтении/записи
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Warnf("⚠️ Не удалось включить WAL режим: %v", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS comparisons (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			application TEXT DEFAULT '',
			baseline_battery_mw REAL DEFAULT 0,
			test_battery_mw REAL DEFAULT 0,
			baseline_battery_mwh REAL DEFAULT 0,
			test_battery_mwh REAL DEFAULT 0,
			baseline_percent_lost REAL DEFAULT 0,
			test_percent_lost REAL DEFAULT 0,
			baseline_power_mw REAL DEFAULT 0,
			test_power_mw REAL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS app_rates (
			comparison_id INTEGER NOT NULL REFERENCES comparisons(id) ON DELETE CASCADE,
			phase TEXT NOT NULL,
			app TEXT NOT NULL,
			mw REAL DEFAULT 0,
			mwh REAL DEFAULT 0
		);`,
	}
	for _, q := range schema {
		if _, err = db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("создание таблицы: %w", err)
		}
	}
	return db, nil
}

// comparisonRecord сворачивает результат в строку таблицы comparisons
func comparisonRecord(res ComparisonResult) ComparisonRecord {
	return ComparisonRecord{
		CreatedAt:           res.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Application:         strings.Join(res.Application, ","),
		BaselineBatteryMW:   res.BaselineBattery.AvgMW,
		TestBatteryMW:       res.TestBattery.AvgMW,
		BaselineBatteryMWh:  res.BaselineBattery.DrainedMWh,
		TestBatteryMWh:      res.TestBattery.DrainedMWh,
		BaselinePercentLost: res.BaselineBattery.PercentLost,
		TestPercentLost:     res.TestBattery.PercentLost,
		BaselinePowerMW:     sum(res.BaselinePower.MW),
		TestPowerMW:         sum(res.TestPower.MW),
	}
}

// insertComparison сохраняет результат и разбивку по приложениям в одной транзакции.
func insertComparison(db *sqlx.DB, res ComparisonResult) (int64, error) {
	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("начало транзакции: %w", err)
	}
	defer tx.Rollback()

	rec := comparisonRecord(res)
	r, err := tx.NamedExec(`INSERT INTO comparisons (
		created_at, application,
		baseline_battery_mw, test_battery_mw,
		baseline_battery_mwh, test_battery_mwh,
		baseline_percent_lost, test_percent_lost,
		baseline_power_mw, test_power_mw)
	VALUES (:created_at, :application,
		:baseline_battery_mw, :test_battery_mw,
		:baseline_battery_mwh, :test_battery_mwh,
		:baseline_percent_lost, :test_percent_lost,
		:baseline_power_mw, :test_power_mw)`, rec)
	if err != nil {
		return 0, fmt.Errorf("сохранение сравнения: %w", err)
	}
	id, err := r.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, a := range res.Apps {
		a.ComparisonID = id
		if _, err := tx.NamedExec(`INSERT INTO app_rates (comparison_id, phase, app, mw, mwh)
			VALUES (:comparison_id, :phase, :app, :mw, :mwh)`, a); err != nil {
			return 0, fmt.Errorf("сохранение приложения %s: %w", a.App, err)
		}
	}
	return id, tx.Commit()
}

// getLastNComparisons возвращает последние n сравнений в хронологическом порядке.
func getLastNComparisons(db *sqlx.DB, n int) ([]ComparisonRecord, error) {
	var rs []ComparisonRecord
	query := `SELECT * FROM comparisons ORDER BY id DESC LIMIT ?`
	if err := db.Select(&rs, query, n); err != nil {
		return nil, err
	}
	// Переворачиваем в возрастающий порядок по времени.
	for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
		rs[i], rs[j] = rs[j], rs[i]
	}
	return rs, nil
}

// getAppRates возвращает разбивку по приложениям для сравнения id
func getAppRates(db *sqlx.DB, id int64) ([]AppRate, error) {
	var rates []AppRate
	err := db.Select(&rates, `SELECT comparison_id, phase, app, mw, mwh FROM app_rates
		WHERE comparison_id = ? ORDER BY phase, mw DESC`, id)
	return rates, err
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}
