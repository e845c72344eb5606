package main

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
)

const (
	// cadenceSeconds – ожидаемый шаг между отсчетами SRUMUTIL и отчетами о батарее
	cadenceSeconds = 60

	defaultPhaseSeconds  = 600 // длина фазы, если ее нет ни в аргументах, ни в config.json
	defaultBatteryWindow = 20  // окно сглаживания емкости
	defaultDeltaWindow   = 15  // окно сглаживания скорости разряда
)

// EnergySample – одна строка отчета SRUMUTIL после фильтрации.
type EnergySample struct {
	Timestamp int64   // epoch, секунды
	App       string  // имя приложения
	Category  string  // вторая колонка (пользователь/категория)
	Values    []int64 // счетчики энергии, мДж
}

// FileSamples – строки одного файла SRUMUTIL
type FileSamples struct {
	Path    string
	Samples []EnergySample
}

// MergedSeries отображает timestamp в сумму векторов счетчиков.
// Все векторы одной серии имеют одинаковую длину.
type MergedSeries map[int64][]float64

// BatteryReportSample – данные одного отчета powercfg /BATTERYREPORT
type BatteryReportSample struct {
	CreationTime int64 `json:"creationtime"`
	Battery      int   `json:"battery"`  // % заряда
	Capacity     int   `json:"capacity"` // мВт·ч
}

// SeriesRow – элемент упорядоченной серии: время и значения.
type SeriesRow struct {
	Timestamp int64
	Values    []float64
}

// PowerData – результат загрузки всех файлов SRUMUTIL одной фазы
type PowerData struct {
	Header  []string                // имена колонок счетчиков
	Series  MergedSeries            // плотная серия после заполнения дыр
	Apps    map[string]MergedSeries // та же серия отдельно по каждому приложению
	MinTime int64
	MaxTime int64
}

// Empty сообщает, что данных нет
func (p PowerData) Empty() bool {
	return len(p.Series) == 0
}

// SegmentRate – средняя скорость разряда внутри одного эпизода
type SegmentRate struct {
	Start int     `json:"start"`
	End   int     `json:"end"`
	MW    float64 `json:"mw"`
}

// BatteryTrace – ряды для графиков
type BatteryTrace struct {
	Elapsed  []float64 // секунды от первого отсчета
	Capacity []float64 // мВт·ч
	Deltas   []float64 // мВт
	Offset   int       // Deltas[j] относится к отсчету j+Offset
}

// BatteryPhase содержит результат анализа отчетов о батарее одной фазы
type BatteryPhase struct {
	AvgMW         float64       `json:"avg_mw"`
	DrainedMWh    float64       `json:"drained_mwh"`
	PercentLost   float64       `json:"percent_lost"`
	FirstGood     int           `json:"first_good"`
	End           int           `json:"end"`
	DrainDetected bool          `json:"drain_detected"`
	Samples       int           `json:"samples"`
	Segments      []SegmentRate `json:"segments"`
	Trace         BatteryTrace  `json:"-"`
}

// PowerPhase содержит средние по каждому счетчику SRUMUTIL
type PowerPhase struct {
	MW      []float64   `json:"mw"`
	MWh     []float64   `json:"mwh"`
	Seconds float64     `json:"seconds"`
	Rows    []SeriesRow `json:"-"`
}

// AppRate – строка разбивки по приложениям
type AppRate struct {
	ComparisonID int64   `db:"comparison_id" json:"-"`
	Phase        string  `db:"phase" json:"phase"` // baseline / test
	App          string  `db:"app" json:"app"`
	MW           float64 `db:"mw" json:"mw"`
	MWh          float64 `db:"mwh" json:"mwh"`
}

// ComparisonResult – итог сравнения baseline и test. Создается один раз.
type ComparisonResult struct {
	CreatedAt       time.Time    `json:"created_at"`
	Application     []string     `json:"application"`
	Header          []string     `json:"header"`
	BaselinePower   PowerPhase   `json:"baseline_power"`
	TestPower       PowerPhase   `json:"test_power"`
	BaselineBattery BatteryPhase `json:"baseline_battery"`
	TestBattery     BatteryPhase `json:"test_battery"`
	Apps            []AppRate    `json:"apps,omitempty"`
}

// ComparisonRecord – строка таблицы comparisons
type ComparisonRecord struct {
	ID                  int64   `db:"id"`
	CreatedAt           string  `db:"created_at"` // ISO‑8601 UTC
	Application         string  `db:"application"`
	BaselineBatteryMW   float64 `db:"baseline_battery_mw"`
	TestBatteryMW       float64 `db:"test_battery_mw"`
	BaselineBatteryMWh  float64 `db:"baseline_battery_mwh"`
	TestBatteryMWh      float64 `db:"test_battery_mwh"`
	BaselinePercentLost float64 `db:"baseline_percent_lost"`
	TestPercentLost     float64 `db:"test_percent_lost"`
	BaselinePowerMW     float64 `db:"baseline_power_mw"` // сумма по всем счетчикам
	TestPowerMW         float64 `db:"test_power_mw"`
}

// RunConfig – config.json папки usagerunfrom*
type RunConfig struct {
	StartTime         float64           `mapstructure:"starttime" json:"starttime"`
	BaselineStartTime float64           `mapstructure:"baselinestarttime" json:"baselinestarttime"`
	BaselineEndTime   float64           `mapstructure:"baselineendtime" json:"baselineendtime"`
	TestStartTime     float64           `mapstructure:"teststarttime" json:"teststarttime"`
	TestEndTime       float64           `mapstructure:"testendtime" json:"testendtime"`
	Args              map[string]string `mapstructure:"args" json:"args"`
}

// PollerState – состояние фонового сборщика
type PollerState int

const (
	PollerIdle PollerState = iota
	PollerRunning
	PollerPaused
	PollerStopped
)

func (s PollerState) String() string {
	switch s {
	case PollerIdle:
		return "idle"
	case PollerRunning:
		return "running"
	case PollerPaused:
		return "paused"
	case PollerStopped:
		return "stopped"
	}
	return "unknown"
}

// SessionState – экран интерфейса сессии сбора
type SessionState int

const (
	StateWelcome SessionState = iota
	StateBaseline
	StateTest
	StateDone
)

// SessionModel – модель Bubble Tea для сессии сбора данных
type SessionModel struct {
	state        SessionState
	session      *Session
	windowWidth  int
	windowHeight int

	phaseStarted     time.Time
	baselineDuration time.Duration
	gauge            progress.Model
	files            int

	lastError error
}

// ResultsModel – просмотр результатов сравнения
type ResultsModel struct {
	result       ComparisonResult
	table        table.Model
	windowWidth  int
	windowHeight int
	showCharts   bool
}

// Сообщения Bubble Tea
type tickMsg time.Time
type filesCountMsg int
type errorMsg struct{ err error }
