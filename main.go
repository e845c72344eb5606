package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.New()

// main – точка входа программы.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Errorf("❌ %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   appName,
		Short: "Сравнение энергопотребления приложения Windows: baseline против test",
		Long: `PowerUsage собирает отчеты powercfg /BATTERYREPORT и /SRUMUTIL в двух фазах
(baseline – система в простое, test – работает исследуемое приложение)
и сравнивает скорость разряда батареи и потребление по счетчикам SRUM.

Примеры:
  powerusage collect --output runs
  powerusage compare --data runs/usagerunfrom1700000000 --application chrome.exe --per-app
  powerusage export --md report.md`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setLogLevel(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "уровень логов: debug, info, warn, error")

	root.AddCommand(
		newCompareCmd(),
		newCollectCmd(),
		newBurnCmd(),
		newWPACmd(),
		newExportCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Показать версию",
			Run: func(cmd *cobra.Command, args []string) {
				showVersion()
			},
		},
	)
	return root
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
		log.Warn("Unknown log level, defaulting to info")
	}
}

type compareFlags struct {
	data, baselineData, testData, configData string

	boundaryMode string
	perApp       bool
	plotBattery  bool
	plotPower    bool
	interactive  bool
	output       string
	dbPath       string
	noDB         bool
}

func newCompareCmd() *cobra.Command {
	var f compareFlags
	var o CompareOptions

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Сравнить baseline и test",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(f, o)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.data, "data", "", "папка usagerunfrom<ts> с подпапками baseline и test")
	fl.StringVar(&f.baselineData, "baseline-data", "", "папка данных baseline")
	fl.StringVar(&f.testData, "test-data", "", "папка данных test")
	fl.StringVar(&f.configData, "config-data", "", "config.json прогона")

	fl.StringSliceVar(&o.Application, "application", nil, "приложения test-фазы (подстрока имени)")
	fl.StringSliceVar(&o.BaselineApplication, "baseline-application", nil, "приложения baseline-фазы (по умолчанию все)")
	fl.StringSliceVar(&o.ExcludeBaselineApps, "exclude-baseline-apps", nil, "исключить приложения из baseline")
	fl.StringSliceVar(&o.ExcludeTestApps, "exclude-test-apps", nil, "исключить приложения из test")
	fl.StringSliceVar(&o.ConsumptionFrom, "consumption-from", nil, "усреднять только эти колонки SRUMUTIL (точное имя)")

	fl.Float64Var(&o.TimeToAnalyze, "time-to-analyze", 0, "анализировать только первые N секунд (0 – все)")
	fl.Float64Var(&o.BaselineTime, "baseline-time", 0, "длительность baseline в секундах (0 – из config.json)")
	fl.Float64Var(&o.TestTime, "test-time", 0, "длительность test в секундах (0 – из config.json)")

	fl.BoolVar(&o.SmoothBattery, "smooth-battery", false, "сглаживать емкость и скорость разряда")
	fl.IntVar(&o.BatteryWindow, "battery-window", defaultBatteryWindow, "окно сглаживания емкости")
	fl.IntVar(&o.DeltaWindow, "delta-window", defaultDeltaWindow, "окно сглаживания скорости разряда")
	fl.StringVar(&f.boundaryMode, "boundary-mode", string(BoundaryRunning), "границы эпизодов разряда: running или fixed")
	fl.BoolVar(&o.RequireDrain, "require-drain", false, "ошибка, если разряд батареи не обнаружен")
	fl.BoolVar(&o.IgnorePower, "ignore-power", false, "не анализировать SRUMUTIL")
	fl.BoolVar(&f.perApp, "per-app", false, "разбивка по приложениям")

	fl.BoolVar(&f.plotBattery, "plot-battery", false, "нарисовать графики разряда")
	fl.BoolVar(&f.plotPower, "plot-power", false, "нарисовать спарклайны счетчиков SRUMUTIL")
	fl.BoolVar(&f.interactive, "interactive", false, "открыть интерактивный просмотр результатов")
	fl.StringVar(&f.output, "output", "", "папка для CSV и JSON результатов")
	fl.StringVar(&f.dbPath, "db", "", "файл базы результатов (по умолчанию в папке данных)")
	fl.BoolVar(&f.noDB, "no-db", false, "не сохранять результат в базу")
	return cmd
}

func runCompare(f compareFlags, o CompareOptions) error {
	mode, err := parseBoundaryMode(f.boundaryMode)
	if err != nil {
		return err
	}
	o.BoundaryMode = mode
	o.PerApp = f.perApp

	o.BaselineDir, o.TestDir = f.baselineData, f.testData
	configPath := f.configData
	if f.data != "" {
		if o.BaselineDir == "" {
			o.BaselineDir = filepath.Join(f.data, "baseline")
		}
		if o.TestDir == "" {
			o.TestDir = filepath.Join(f.data, "test")
		}
		if configPath == "" {
			configPath = filepath.Join(f.data, runConfigName)
		}
	}
	if o.BaselineDir == "" || o.TestDir == "" {
		return fmt.Errorf("укажите --data или --baseline-data и --test-data")
	}

	if o.Config, err = loadRunConfig(configPath); err != nil {
		return err
	}

	res, err := compareData(o)
	if err != nil {
		return err
	}

	now := time.Now()
	output := f.output
	if output == "" {
		output = filepath.Join(filepath.Dir(filepath.Clean(o.TestDir)), "results")
	}
	files, err := writeCSVResults(output, res, now)
	if err != nil {
		return err
	}
	jsonPath, err := writeJSONResult(output, res, now)
	if err != nil {
		return err
	}
	log.Infof("💾 Результаты: %d CSV, %s", len(files), jsonPath)

	if !f.noDB {
		dbPath := f.dbPath
		if dbPath == "" {
			dbPath = getDBPath()
		}
		db, err := initDB(dbPath)
		if err != nil {
			return err
		}
		id, err := insertComparison(db, res)
		db.Close()
		if err != nil {
			return err
		}
		log.Infof("🗄️ Сравнение #%d сохранено в %s", id, dbPath)
	}

	if f.interactive {
		_, err := tea.NewProgram(NewResultsModel(res), tea.WithAltScreen()).Run()
		return err
	}

	printSummary(res)
	if f.plotBattery {
		fmt.Println()
		fmt.Println(renderBatteryCharts(res, 80, 12))
	}
	if f.plotPower {
		fmt.Println()
		fmt.Println(renderPowerSparklines(res, 80))
	}
	return nil
}

func newCollectCmd() *cobra.Command {
	var o CollectOptions
	var baseline, test time.Duration
	var headless bool

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Собрать отчеты baseline и test",
		RunE: func(cmd *cobra.Command, args []string) error {
			o.Args = map[string]string{
				"output":            o.Output,
				"baseline_duration": baseline.String(),
				"test_duration":     test.String(),
				"poll_interval":     o.PollInterval.String(),
			}
			return runCollect(o, baseline, test, headless)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&o.Output, "output", "", "папка для прогонов")
	fl.DurationVar(&baseline, "baseline-duration", 5*time.Minute, "длительность baseline")
	fl.DurationVar(&test, "test-duration", 0, "длительность test без интерфейса (0 – до Ctrl+C)")
	fl.BoolVar(&headless, "headless", false, "без интерфейса, фазы по таймеру")
	fl.DurationVar(&o.PollInterval, "poll-interval", pollInterval, "интервал отчетов powercfg (не меньше минуты)")
	fl.DurationVar(&o.RAMPollInterval, "ram-poll-interval", ramPollInterval, "интервал опроса памяти")
	fl.BoolVar(&o.NoBatteryUsage, "no-battery-usage", false, "не снимать отчеты о батарее")
	fl.BoolVar(&o.NoPowerUsage, "no-power-usage", false, "не снимать SRUMUTIL")
	fl.BoolVar(&o.NoRAMUsage, "no-ram-power-usage", false, "не оценивать потребление памяти")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runCollect(o CollectOptions, baseline, test time.Duration, headless bool) error {
	s, err := NewSession(o, newPowercfgTool(), systemUsedMemory)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if headless {
		err := runHeadless(ctx, s, baseline, test)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	// Логи уходят в файл, чтобы не портить интерфейс
	logFile, err := os.Create(filepath.Join(s.Dir(), "powerusage.log"))
	if err == nil {
		log.SetOutput(logFile)
		defer func() {
			log.SetOutput(os.Stderr)
			logFile.Close()
		}()
	}

	p := tea.NewProgram(NewSessionModel(s, baseline), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Join(err, s.Stop())
	}
	// Повторная остановка безопасна: остановленные сборщики пропускаются
	return s.Stop()
}

func newBurnCmd() *cobra.Command {
	var testDir string
	var o BurnOptions

	cmd := &cobra.Command{
		Use:   "burn",
		Short: "Разрядить батарею до свежей границы процента перед прогоном",
		RunE: func(cmd *cobra.Command, args []string) error {
			tmp := filepath.Join(testDir, burnTmpDir)
			if err := os.MkdirAll(tmp, 0755); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBurn(ctx, reportLevel(newPowercfgTool(), tmp), o)
		},
	}
	cmd.Flags().StringVar(&testDir, "test-dir", "", "папка для временных отчетов о батарее")
	cmd.Flags().IntVar(&o.Workers, "workers", 0, "горутин прожига (0 – по числу ядер)")
	cmd.Flags().IntVar(&o.Target, "target", burnTargetLevel, "прожигать, пока заряд выше, %")
	cmd.Flags().DurationVar(&o.Interval, "interval", burnPollInterval, "интервал проверки заряда")
	_ = cmd.MarkFlagRequired("test-dir")
	return cmd
}

func newWPACmd() *cobra.Command {
	var dir string
	var testTime float64

	cmd := &cobra.Command{
		Use:   "wpa",
		Short: "Прочитать таблицы Windows Performance Analyzer",
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := loadWPAData(dir, testTime)
			if err != nil {
				return err
			}
			for _, name := range wpaTableNames(tables) {
				t := tables[name]
				fmt.Printf("%-60s %10d отсчетов, среднее %.3f\n", name, len(t.Data), t.Mean())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "data", "", "папка test с подпапкой etl-data")
	cmd.Flags().Float64Var(&testTime, "test-time", defaultPhaseSeconds, "длительность записи, если не найден один из маркеров")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newExportCmd() *cobra.Command {
	var dbPath, md string
	var limit int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Экспорт сохраненных сравнений в Markdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = getDBPath()
			}
			return runExportMode(dbPath, md, limit, false)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "файл базы результатов")
	cmd.Flags().StringVar(&md, "md", "", "файл отчета Markdown")
	cmd.Flags().IntVar(&limit, "limit", 20, "сколько последних сравнений включить")
	_ = cmd.MarkFlagRequired("md")
	return cmd
}
