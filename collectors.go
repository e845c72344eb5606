package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
)

const (
	pollInterval     = 60 * time.Second // SRUMUTIL обновляется не чаще раза в минуту
	ramPollInterval  = 5 * time.Second
	reportRetries    = 5
	reportRetryDelay = 5 * time.Second

	ramFileName = "ram_usage.csv"
	// ramMilliwattsPerGB – оценка потребления памяти: 0.1 мВт на ГБ
	ramMilliwattsPerGB = 0.1
)

// ReportTool запускает системные утилиты отчетов
type ReportTool interface {
	PowerReport(ctx context.Context, path string) error
	BatteryReport(ctx context.Context, path string) error
}

// powercfgTool вызывает powercfg.exe
type powercfgTool struct {
	retries    int
	retryDelay time.Duration
}

func newPowercfgTool() *powercfgTool {
	return &powercfgTool{retries: reportRetries, retryDelay: reportRetryDelay}
}

// PowerReport выполняет powercfg /SRUMUTIL, при ошибке повторяет до retries раз.
func (t *powercfgTool) PowerReport(ctx context.Context, path string) error {
	var err error
	for attempt := 0; attempt <= t.retries; attempt++ {
		if err = t.run(ctx, "/SRUMUTIL", "/CSV", "/OUTPUT", path); err == nil {
			return nil
		}
		log.Warnf("🔁 powercfg /SRUMUTIL: %v, повтор %d/%d", err, attempt+1, t.retries)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.retryDelay):
		}
	}
	return fmt.Errorf("powercfg /SRUMUTIL: %w", err)
}

// BatteryReport выполняет powercfg /BATTERYREPORT
func (t *powercfgTool) BatteryReport(ctx context.Context, path string) error {
	if err := t.run(ctx, "/BATTERYREPORT", "/OUTPUT", path); err != nil {
		return fmt.Errorf("powercfg /BATTERYREPORT: %w", err)
	}
	return nil
}

func (t *powercfgTool) run(ctx context.Context, args ...string) error {
	out, err := exec.CommandContext(ctx, "powercfg.exe", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(out))
	}
	return nil
}

// TickFunc выполняет одно измерение в папку dir
type TickFunc func(ctx context.Context, dir string, now time.Time) error

type pollerCmd int

const (
	cmdStart pollerCmd = iota
	cmdPause
	cmdSetOutput
	cmdKill
)

type pollerMsg struct {
	cmd  pollerCmd
	dir  string
	done chan struct{}
}

// Poller – фоновый сборщик. Все переходы состояний проходят через канал команд.
type Poller struct {
	name     string
	interval time.Duration
	tick     TickFunc
	onKill   func() error
	now      func() time.Time

	cmds chan pollerMsg
	done chan struct{}

	mu    sync.RWMutex
	state PollerState
	dir   string
	ticks int
}

// NewPoller создает сборщик в состоянии Idle и запускает его горутину
func NewPoller(name string, interval time.Duration, tick TickFunc) *Poller {
	p := &Poller{
		name:     name,
		interval: interval,
		tick:     tick,
		now:      time.Now,
		cmds:     make(chan pollerMsg),
		done:     make(chan struct{}),
	}
	go p.loop()
	return p
}

// OnKill задает действие, выполняемое при остановке (до подтверждения Kill)
func (p *Poller) OnKill(fn func() error) {
	p.mu.Lock()
	p.onKill = fn
	p.mu.Unlock()
}

// Start переводит Idle/Paused → Running; первое измерение выполняется сразу
func (p *Poller) Start() error { return p.send(pollerMsg{cmd: cmdStart}) }

// Pause прерывает текущее ожидание: Running → Paused
func (p *Poller) Pause() error { return p.send(pollerMsg{cmd: cmdPause}) }

// SetOutput меняет папку для следующих измерений
func (p *Poller) SetOutput(dir string) error { return p.send(pollerMsg{cmd: cmdSetOutput, dir: dir}) }

// Kill останавливает сборщик и ждет завершения горутины. Состояние Stopped финальное.
func (p *Poller) Kill() error {
	if err := p.send(pollerMsg{cmd: cmdKill}); err != nil {
		return err
	}
	<-p.done
	return nil
}

// State возвращает текущее состояние
func (p *Poller) State() PollerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Ticks – количество выполненных измерений
func (p *Poller) Ticks() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ticks
}

func (p *Poller) send(m pollerMsg) error {
	m.done = make(chan struct{})
	select {
	case p.cmds <- m:
		<-m.done
		return nil
	case <-p.done:
		return ErrPollerStopped
	}
}

func (p *Poller) setState(s PollerState) {
	p.mu.Lock()
	if p.state != s {
		log.Debugf("🔄 %s: %s → %s", p.name, p.state, s)
	}
	p.state = s
	p.mu.Unlock()
}

func (p *Poller) loop() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer close(p.done)

	var timer *time.Timer
	var wait <-chan time.Time
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		wait = nil
	}
	schedule := func() {
		stopTimer()
		timer = time.NewTimer(p.interval)
		wait = timer.C
	}

	for {
		select {
		case m := <-p.cmds:
			switch m.cmd {
			case cmdStart:
				if st := p.State(); st == PollerIdle || st == PollerPaused {
					p.setState(PollerRunning)
					p.runTick(ctx)
					schedule()
				}
			case cmdPause:
				if p.State() == PollerRunning {
					stopTimer()
					p.setState(PollerPaused)
				}
			case cmdSetOutput:
				p.mu.Lock()
				p.dir = m.dir
				p.mu.Unlock()
			case cmdKill:
				stopTimer()
				p.setState(PollerStopped)
				cancel()
				p.mu.RLock()
				onKill := p.onKill
				p.mu.RUnlock()
				if onKill != nil {
					if err := onKill(); err != nil {
						log.Errorf("❌ %s: ошибка при остановке: %v", p.name, err)
					}
				}
				close(m.done)
				return
			}
			close(m.done)

		case <-wait:
			p.runTick(ctx)
			schedule()
		}
	}
}

func (p *Poller) runTick(ctx context.Context) {
	p.mu.RLock()
	dir := p.dir
	p.mu.RUnlock()
	if dir == "" {
		log.Warnf("⚠️ %s: папка не задана, измерение пропущено", p.name)
		return
	}
	if err := p.tick(ctx, dir, p.now()); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warnf("⚠️ %s: %v", p.name, err)
		}
		return
	}
	p.mu.Lock()
	p.ticks++
	p.mu.Unlock()
}

// reportTick снимает SRUMUTIL и отчет о батарее с общим временем в имени файлов
func reportTick(tool ReportTool, power, battery bool) TickFunc {
	return func(ctx context.Context, dir string, now time.Time) error {
		ts := now.Unix()
		if power {
			if err := tool.PowerReport(ctx, filepath.Join(dir, fmt.Sprintf("%s%d.csv", powerReportMarker, ts))); err != nil {
				return err
			}
		}
		if battery {
			if err := tool.BatteryReport(ctx, filepath.Join(dir, fmt.Sprintf("%s%d.html", batteryReportMarker, ts))); err != nil {
				return err
			}
		}
		return nil
	}
}

// usedMemory возвращает занятую память в байтах
type usedMemory func(ctx context.Context) (uint64, error)

func systemUsedMemory(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Used, nil
}

// ramTick дописывает строку CurrentTime,RAMUsage,RAMPowerConsumption в ram_usage.csv папки.
// RAMUsage – МБ, RAMPowerConsumption – мВт.
func ramTick(used usedMemory) TickFunc {
	return func(ctx context.Context, dir string, now time.Time) error {
		bytes, err := used(ctx)
		if err != nil {
			return fmt.Errorf("чтение памяти: %w", err)
		}
		mb := float64(bytes >> 20)

		path := filepath.Join(dir, ramFileName)
		_, statErr := os.Stat(path)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("открытие %s: %w", path, err)
		}
		defer f.Close()

		w := csv.NewWriter(f)
		if os.IsNotExist(statErr) {
			if err := w.Write([]string{"CurrentTime", "RAMUsage", "RAMPowerConsumption"}); err != nil {
				return err
			}
		}
		if err := w.Write([]string{
			strconv.FormatInt(now.Unix(), 10),
			formatFloat(mb),
			formatFloat(mb / 1024 * ramMilliwattsPerGB),
		}); err != nil {
			return err
		}
		w.Flush()
		return w.Error()
	}
}

// CollectOptions – параметры сессии сбора
type CollectOptions struct {
	Output          string
	PollInterval    time.Duration
	RAMPollInterval time.Duration
	NoPowerUsage    bool
	NoBatteryUsage  bool
	NoRAMUsage      bool
	Args            map[string]string
}

// Session – один прогон: папка usagerunfrom<ts> с фазами baseline и test
type Session struct {
	dir     string
	pollers []*Poller
	now     func() time.Time

	mu     sync.Mutex
	config RunConfig
	phase  string
}

// NewSession создает папки прогона и сборщики. Сборщики ждут StartBaseline.
func NewSession(opts CollectOptions, tool ReportTool, used usedMemory) (*Session, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = pollInterval
	}
	if opts.RAMPollInterval <= 0 {
		opts.RAMPollInterval = ramPollInterval
	}
	if err := os.MkdirAll(opts.Output, 0755); err != nil {
		return nil, fmt.Errorf("создание %s: %w", opts.Output, err)
	}

	now := time.Now()
	dir, err := newRunDir(opts.Output, now)
	if err != nil {
		return nil, err
	}

	s := &Session{
		dir:    dir,
		now:    time.Now,
		config: RunConfig{StartTime: float64(now.Unix()), Args: opts.Args},
	}
	if !opts.NoPowerUsage || !opts.NoBatteryUsage {
		reports := NewPoller("reports", opts.PollInterval, reportTick(tool, !opts.NoPowerUsage, !opts.NoBatteryUsage))
		s.pollers = append(s.pollers, reports)
	}
	if !opts.NoRAMUsage {
		s.pollers = append(s.pollers, NewPoller("ram", opts.RAMPollInterval, ramTick(used)))
	}
	if len(s.pollers) > 0 {
		// config.json сохраняется при остановке первого сборщика
		s.pollers[0].OnKill(s.saveConfig)
	}

	if err := s.saveConfig(); err != nil {
		return nil, err
	}
	log.Infof("📁 Папка прогона: %s", dir)
	return s, nil
}

// Dir возвращает папку прогона
func (s *Session) Dir() string { return s.dir }

// Phase возвращает текущую фазу ("", baseline, test)
func (s *Session) Phase() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Config возвращает копию конфигурации прогона
func (s *Session) Config() RunConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// StartBaseline запускает сбор baseline
func (s *Session) StartBaseline() error {
	s.mu.Lock()
	s.config.BaselineStartTime = float64(s.now().Unix())
	s.phase = "baseline"
	s.mu.Unlock()

	if err := s.switchOutput(filepath.Join(s.dir, "baseline")); err != nil {
		return err
	}
	log.Infof("▶️ Сбор baseline начат")
	return s.saveConfig()
}

// StartTest завершает baseline и переключает сборщики на папку test
func (s *Session) StartTest() error {
	s.mu.Lock()
	t := float64(s.now().Unix())
	s.config.BaselineEndTime = t
	s.config.TestStartTime = t
	s.phase = "test"
	s.mu.Unlock()

	if err := s.switchOutput(filepath.Join(s.dir, "test")); err != nil {
		return err
	}
	log.Infof("▶️ Сбор test начат, можно запускать эксперимент")
	return s.saveConfig()
}

// Stop фиксирует конец текущей фазы и останавливает сборщики
func (s *Session) Stop() error {
	s.mu.Lock()
	t := float64(s.now().Unix())
	switch s.phase {
	case "baseline":
		s.config.BaselineEndTime = t
	case "test":
		s.config.TestEndTime = t
	}
	s.phase = ""
	s.mu.Unlock()

	var errs []error
	for _, p := range s.pollers {
		if err := p.Kill(); err != nil && !errors.Is(err, ErrPollerStopped) {
			errs = append(errs, err)
		}
	}
	if len(s.pollers) == 0 {
		errs = append(errs, s.saveConfig())
	}
	log.Infof("🛑 Сбор остановлен")
	return errors.Join(errs...)
}

// FilesCount считает файлы, собранные в папке прогона
func (s *Session) FilesCount() int {
	count := 0
	for _, sub := range []string{"baseline", "test"} {
		entries, err := os.ReadDir(filepath.Join(s.dir, sub))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				count++
			}
		}
	}
	return count
}

func (s *Session) switchOutput(dir string) error {
	for _, p := range s.pollers {
		if p.State() == PollerRunning {
			if err := p.Pause(); err != nil {
				return err
			}
		}
		if err := p.SetOutput(dir); err != nil {
			return err
		}
		if err := p.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) saveConfig() error {
	cfg := s.Config()
	return saveRunConfig(filepath.Join(s.dir, runConfigName), cfg)
}

// runHeadless проводит обе фазы по таймеру без интерфейса
func runHeadless(ctx context.Context, s *Session, baseline, test time.Duration) error {
	if err := s.StartBaseline(); err != nil {
		return err
	}
	log.Infof("⏳ baseline: %s", formatDuration(baseline))
	if err := sleepCtx(ctx, baseline); err != nil {
		return errors.Join(err, s.Stop())
	}

	if err := s.StartTest(); err != nil {
		return err
	}
	if test > 0 {
		log.Infof("⏳ test: %s", formatDuration(test))
		if err := sleepCtx(ctx, test); err != nil {
			return errors.Join(err, s.Stop())
		}
	} else {
		<-ctx.Done()
	}
	return s.Stop()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
