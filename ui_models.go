package main

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// NewSessionModel создает модель интерфейса сессии сбора
func NewSessionModel(s *Session, baselineDuration time.Duration) *SessionModel {
	return &SessionModel{
		state:            StateWelcome,
		session:          s,
		baselineDuration: baselineDuration,
		gauge: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
		),
	}
}

// Init инициализирует модель
func (m *SessionModel) Init() tea.Cmd {
	return tickEvery()
}

// Update обрабатывает сообщения
func (m *SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.gauge.Width = min(max(msg.Width/2, 20), 60)

	case tea.KeyMsg:
		return m.updateKeys(msg)

	case tickMsg:
		cmds := []tea.Cmd{tickEvery(), countFiles(m.session)}
		if m.state == StateBaseline && m.baselineDuration > 0 &&
			time.Since(m.phaseStarted) >= m.baselineDuration {
			cmds = append(cmds, m.startTest())
		}
		return m, tea.Batch(cmds...)

	case filesCountMsg:
		m.files = int(msg)

	case errorMsg:
		m.lastError = msg.err
	}
	return m, nil
}

// updateKeys обрабатывает нажатия; раскладка клавиатуры нормализуется
func (m *SessionModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := normalizeKeyInput(msg.String())
	if key == "ctrl+c" || key == "q" {
		m.state = StateDone
		return m, tea.Sequence(stopSession(m.session), tea.Quit)
	}

	switch m.state {
	case StateWelcome:
		if key == "enter" || key == " " {
			if err := m.session.StartBaseline(); err != nil {
				m.lastError = err
				return m, nil
			}
			m.state = StateBaseline
			m.phaseStarted = time.Now()
		}
	case StateBaseline:
		if key == "n" || key == "enter" {
			return m, m.startTest()
		}
	}
	return m, nil
}

// startTest переключает сессию на фазу test
func (m *SessionModel) startTest() tea.Cmd {
	if err := m.session.StartTest(); err != nil {
		m.lastError = err
		return nil
	}
	m.state = StateTest
	m.phaseStarted = time.Now()
	return countFiles(m.session)
}

// View рендерит интерфейс
func (m *SessionModel) View() string {
	switch m.state {
	case StateWelcome:
		return m.renderWelcome()
	case StateBaseline, StateTest:
		return m.renderPhase()
	case StateDone:
		return m.renderDone()
	default:
		return "Неизвестное состояние приложения"
	}
}

// Команды Bubble Tea
func tickEvery() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func countFiles(s *Session) tea.Cmd {
	return func() tea.Msg {
		return filesCountMsg(s.FilesCount())
	}
}

func stopSession(s *Session) tea.Cmd {
	return func() tea.Msg {
		if err := s.Stop(); err != nil {
			return errorMsg{err}
		}
		return nil
	}
}

// NewResultsModel создает просмотр результатов сравнения
func NewResultsModel(res ComparisonResult) *ResultsModel {
	t := table.New(
		table.WithColumns(resultColumns(80)),
		table.WithRows(resultRows(res)),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	t.SetStyles(resultTableStyles())
	return &ResultsModel{result: res, table: t}
}

// Init инициализирует модель
func (m *ResultsModel) Init() tea.Cmd {
	return nil
}

// Update обрабатывает сообщения
func (m *ResultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.table.SetColumns(resultColumns(msg.Width - 4))
		m.table.SetHeight(max(msg.Height-8, 5))
		return m, nil

	case tea.KeyMsg:
		switch normalizeKeyInput(msg.String()) {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "c", "tab":
			m.showCharts = !m.showCharts
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View рендерит интерфейс
func (m *ResultsModel) View() string {
	if m.showCharts {
		return m.renderCharts()
	}
	return m.renderTable()
}
