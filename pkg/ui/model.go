package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	"github.com/fd1az/token-sweeper/pkg/ui/components"
	"github.com/fd1az/token-sweeper/pkg/ui/theme"
)

// Phase is the screen being shown.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"
	PhaseStartup   Phase = "startup"
	PhaseDashboard Phase = "dashboard"
)

// WelcomeDuration is how long the splash stays up without a key press.
const WelcomeDuration = 2 * time.Second

const (
	maxErrors = 3
	maxLogs   = 5
	tickEvery = 100 * time.Millisecond
)

// Startup step states carried by StartupMsg.
const (
	StepPending    = "pending"
	StepConnecting = "connecting"
	StepConnected  = "connected"
	StepDone       = "done"
	StepFailed     = "failed"
)

type startupStep struct {
	key   string
	label string
	state string
}

func (s startupStep) ready() bool {
	return s.state == StepConnected || s.state == StepDone
}

type notice struct {
	text string
	at   time.Time
}

// Model is the dashboard. It is driven entirely by messages; see Send.
type Model struct {
	tokens   *components.TokensComponent
	summary  *components.SummaryComponent
	holdings *components.HoldingsComponent
	status   *components.StatusComponent
	spinner  spinner.Model
	help     help.Model
	keys     KeyMap

	phase    Phase
	shownAt  time.Time
	bootAt   time.Time
	steps    []startupStep
	quitting bool
	width    int

	batch    domain.BatchStatus
	hasBatch bool
	updated  time.Time
	errors   []notice
	logs     []string
}

// New returns a model on the welcome screen.
func New() Model {
	now := time.Now()
	return Model{
		tokens:   components.NewTokensComponent(12),
		summary:  components.NewSummaryComponent(),
		holdings: components.NewHoldingsComponent(),
		status:   components.NewStatusComponent(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.Alert)),
		help:     help.New(),
		keys:     DefaultKeyMap(),
		phase:    PhaseWelcome,
		shownAt:  now,
		bootAt:   now,
		batch:    domain.IdleBatch(),
		steps: []startupStep{
			{key: "config", label: "Loading configuration", state: StepPending},
			{key: "rpc", label: "Connecting to RPC", state: StepPending},
			{key: "wallet", label: "Unlocking wallet", state: StepPending},
			{key: "quote", label: "Preparing quote client", state: StepPending},
		},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.spinner.Tick)
}

func tick() tea.Cmd {
	return tea.Tick(tickEvery, func(time.Time) tea.Msg { return TickMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.onKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.shownAt) >= WelcomeDuration {
			m.boot()
		}
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case BatchMsg:
		m.applyBatch(msg.Status)

	case HoldingsMsg:
		if msg.Snapshot == nil {
			break
		}
		rows := make([]components.HoldingRow, 0, len(msg.Snapshot.Holdings))
		for _, h := range msg.Snapshot.Holdings {
			rows = append(rows, components.HoldingRow{Symbol: h.Symbol, Amount: h.Amount, Share: h.Share})
		}
		m.holdings.Update(rows)
		m.updated = time.Now()

	case ConnectionStatusMsg:
		m.status.Update(components.ConnectionStatus{Name: msg.Name, Connected: msg.Connected, Detail: msg.Detail})
		m.updated = time.Now()

	case ErrorMsg:
		m.fail(msg.Error.Error())

	case LogMsg:
		m.log(msg.Level, msg.Message)

	case StartupMsg:
		m.markStep(msg)
	}

	return m, nil
}

func (m Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	if m.phase == PhaseWelcome {
		m.boot()
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.tokens.ScrollUp()
	case key.Matches(msg, m.keys.Down):
		m.tokens.ScrollDown()
	case key.Matches(msg, m.keys.ClearErrors):
		m.errors = nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// boot leaves the splash and asks main to start the modules. Update must
// not block, so the hook runs on its own goroutine.
func (m *Model) boot() {
	m.phase = PhaseStartup
	m.bootAt = time.Now()
	if OnStartModules != nil {
		go OnStartModules()
	}
}

func (m *Model) markStep(msg StartupMsg) {
	for i := range m.steps {
		if m.steps[i].key == msg.Step {
			m.steps[i].state = msg.Status
		}
	}
	if msg.Status == StepFailed && msg.Message != "" {
		m.log("error", msg.Message)
	}
	if m.phase == PhaseStartup && m.booted() {
		m.phase = PhaseDashboard
	}
}

func (m Model) booted() bool {
	for _, s := range m.steps {
		if !s.ready() {
			return false
		}
	}
	return true
}

// applyBatch shows a batch snapshot. A batch arriving during startup jumps
// straight to the dashboard.
func (m *Model) applyBatch(status domain.BatchStatus) {
	if status.ID != m.batch.ID {
		m.log("info", fmt.Sprintf("batch %s started", shortID(status)))
	}
	m.batch = status
	m.hasBatch = true
	m.phase = PhaseDashboard

	rows := make([]components.TokenRow, 0, len(status.ProcessedTokens))
	for _, t := range status.ProcessedTokens {
		row := components.TokenRow{
			Symbol:  t.Symbol,
			Address: t.Address.Hex(),
			Amount:  t.Amount,
			Status:  string(t.Status),
			Reason:  t.Reason,
		}
		if row.Symbol == "" {
			row.Symbol = "?"
		}
		if t.TxHash != nil {
			row.TxHash = t.TxHash.Hex()
		}
		rows = append(rows, row)
	}
	m.tokens.Update(rows)

	s := status.Summary()
	m.summary.Update(components.Summary{
		Total:      s.Total,
		Success:    s.Success,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
		Confirming: s.Confirming,
		Elapsed:    elapsed(status),
	})

	if status.Status == domain.BatchError && status.Error != "" {
		m.errors = keepLast(append(m.errors, notice{text: status.Error, at: time.Now()}), maxErrors)
	}
	m.updated = time.Now()
}

func (m *Model) fail(text string) {
	m.log("error", text)
	m.errors = keepLast(append(m.errors, notice{text: text, at: time.Now()}), maxErrors)
}

func (m *Model) log(level, text string) {
	line := fmt.Sprintf("[%s] %s: %s", time.Now().Format("15:04:05"), level, text)
	m.logs = keepLast(append(m.logs, line), maxLogs)
}

func keepLast[T any](s []T, n int) []T {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

func elapsed(status domain.BatchStatus) time.Duration {
	switch {
	case status.StartedAt.IsZero():
		return 0
	case status.FinishedAt != nil:
		return status.FinishedAt.Sub(status.StartedAt)
	default:
		return time.Since(status.StartedAt)
	}
}

func shortID(status domain.BatchStatus) string {
	return status.ID.String()[:8]
}

// Program is the running dashboard, nil until main starts it.
var Program *tea.Program

// OnStartModules is set by main and called once the splash is done.
var OnStartModules func()

// Send delivers msg to the running program. StartModulesMsg also fires
// OnStartModules so headless callers can trigger startup.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
	if _, ok := msg.(StartModulesMsg); ok && OnStartModules != nil {
		OnStartModules()
	}
}
