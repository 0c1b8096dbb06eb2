package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/Mr-Dark-debug/freightview/internal/api"
	"github.com/Mr-Dark-debug/freightview/internal/database"
	"github.com/Mr-Dark-debug/freightview/internal/logging"
	"github.com/Mr-Dark-debug/freightview/internal/promotions"
)

// ────────────────────────────────────────────────────────────
// Screens
// ────────────────────────────────────────────────────────────

// Screen is the view currently shown.
type Screen int

const (
	ScreenCharts Screen = iota
	ScreenStage
)

// Options configures the dashboard.
type Options struct {
	Project string
	// Stage, when set, opens the dashboard on that stage's promotions.
	Stage   string
	Backend Backend
	// Prefs persists the show-history toggle. Nil keeps it in memory.
	Prefs  database.Prefs
	Logger *log.Logger
	// RefreshInterval reloads stages periodically; zero disables it.
	RefreshInterval time.Duration
	PageSize        int
}

// ────────────────────────────────────────────────────────────
// Model
// ────────────────────────────────────────────────────────────

// Model is the root BubbleTea model for the freightview dashboard.
// Each screen keeps its own state; the root routes messages and keys.
type Model struct {
	ctx     context.Context
	backend Backend
	prefs   database.Prefs
	logger  *log.Logger
	project string
	refresh time.Duration

	screen       Screen
	charts       chartsModel
	stage        stageModel
	initialStage string

	width     int
	height    int
	statusMsg string
}

// NewModel creates the dashboard model.
func NewModel(ctx context.Context, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	m := Model{
		ctx:          ctx,
		backend:      opts.Backend,
		prefs:        opts.Prefs,
		logger:       logger,
		project:      opts.Project,
		refresh:      opts.RefreshInterval,
		initialStage: opts.Stage,
		statusMsg:    "Loading stages...",
	}
	m.charts = newChartsModel(opts.Project, m.loadShowHistory())
	m.stage = newStageModel(ctx, opts.Backend, logger, opts.PageSize)
	return m
}

// Screen returns the active screen.
func (m Model) Screen() Screen { return m.screen }

func (m Model) historyKey() string {
	return fmt.Sprintf("%s-show-history", m.project)
}

func (m Model) loadShowHistory() bool {
	if m.prefs == nil {
		return false
	}
	v, err := m.prefs.GetBool(m.historyKey(), false)
	if err != nil {
		m.logger.Warn("reading history preference", "err", err)
		return false
	}
	return v
}

// ────────────────────────────────────────────────────────────
// Messages
// ────────────────────────────────────────────────────────────

type stagesLoadedMsg struct {
	project string
	stages  []api.Stage
	err     error
}

type refreshTickMsg struct{}

// ────────────────────────────────────────────────────────────
// Init
// ────────────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadStages(), m.charts.spinner.Tick, m.scheduleRefresh()}
	return tea.Batch(cmds...)
}

func (m Model) loadStages() tea.Cmd {
	ctx, backend, project := m.ctx, m.backend, m.project
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		stages, err := backend.ListStages(ctx, project)
		return stagesLoadedMsg{project: project, stages: stages, err: err}
	}
}

func (m Model) scheduleRefresh() tea.Cmd {
	if m.refresh <= 0 {
		return nil
	}
	return tea.Tick(m.refresh, func(time.Time) tea.Msg { return refreshTickMsg{} })
}

// ────────────────────────────────────────────────────────────
// Update
// ────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var c1, c2 tea.Cmd
		m.charts.spinner, c1 = m.charts.spinner.Update(msg)
		m.stage.spinner, c2 = m.stage.spinner.Update(msg)
		return m, tea.Batch(c1, c2)

	case stagesLoadedMsg:
		if msg.project != m.project {
			return m, nil
		}
		if msg.err != nil {
			m.logger.Error("loading stages", "project", m.project, "err", msg.err)
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
			if !m.charts.loaded {
				m.charts.err = msg.err
			}
			return m, nil
		}
		m.charts.setStages(msg.stages)
		m.statusMsg = fmt.Sprintf("%d stages  %d registries", len(msg.stages), len(m.charts.index.Registries()))
		if m.initialStage != "" {
			name := m.initialStage
			m.initialStage = ""
			return m, m.openStage(name)
		}
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(m.loadStages(), m.scheduleRefresh())

	case promotionsLoadedMsg, watchOpenedMsg, promotionEventMsg, streamClosedMsg, reconnectMsg:
		// Routed regardless of screen so stale streams are still closed.
		return m, m.stage.update(msg)
	}

	return m, nil
}

// openStage switches to the promotions of one stage.
func (m *Model) openStage(name string) tea.Cmd {
	m.screen = ScreenStage
	m.statusMsg = ""
	return m.stage.begin(promotions.Key{Project: m.project, Stage: name})
}

// handleKey routes keyboard input based on the active screen.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		m.stage.close()
		return m, tea.Quit
	}

	if m.screen == ScreenStage {
		switch {
		case key.Matches(msg, keys.Back):
			m.stage.close()
			m.screen = ScreenCharts
			return m, nil
		case key.Matches(msg, keys.Up):
			m.stage.moveCursor(-1)
		case key.Matches(msg, keys.Down):
			m.stage.moveCursor(1)
		case key.Matches(msg, keys.Left):
			m.stage.turnPage(-1)
		case key.Matches(msg, keys.Right):
			m.stage.turnPage(1)
		case key.Matches(msg, keys.Refresh):
			return m, m.stage.retry()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Up):
		m.charts.move(-1, 0)
	case key.Matches(msg, keys.Down):
		m.charts.move(1, 0)
	case key.Matches(msg, keys.Left):
		m.charts.move(0, -1)
	case key.Matches(msg, keys.Right):
		m.charts.move(0, 1)
	case key.Matches(msg, keys.NextRegistry):
		m.charts.cycleRegistry(1)
	case key.Matches(msg, keys.PrevRegistry):
		m.charts.cycleRegistry(-1)
	case key.Matches(msg, keys.History):
		m.toggleHistory()
	case key.Matches(msg, keys.Refresh):
		m.statusMsg = "Refreshing..."
		return m, m.loadStages()
	case key.Matches(msg, keys.Open):
		if stage, _, ok := m.charts.selected(); ok {
			return m, m.openStage(stage)
		}
	}
	return m, nil
}

func (m *Model) toggleHistory() {
	m.charts.showHistory = !m.charts.showHistory
	if m.prefs == nil {
		return
	}
	if err := m.prefs.SetBool(m.historyKey(), m.charts.showHistory); err != nil {
		m.logger.Warn("saving history preference", "err", err)
		m.statusMsg = fmt.Sprintf("Error: %v", err)
	}
}

// ────────────────────────────────────────────────────────────
// View
// ────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	header := renderHeader(&m)
	footer := renderFooter(&m)
	bodyHeight := m.height - 2 // header + footer

	var body string
	switch m.screen {
	case ScreenStage:
		body = m.stage.view(m.width)
	default:
		body = m.charts.view(m.width, bodyHeight)
	}
	body = lipgloss.NewStyle().Height(maxInt(bodyHeight, 0)).MaxHeight(maxInt(bodyHeight, 0)).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// Run starts the dashboard and blocks until it exits.
func Run(ctx context.Context, opts Options) error {
	m := NewModel(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.stage.close()
	}
	if err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
