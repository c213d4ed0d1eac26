package sim

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"chaossim/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// Controls is the operator surface the console drives. *Session satisfies it.
type Controls interface {
	View() View
	ToggleFault(telemetry.FaultKind) (bool, error)
	ManualScan(context.Context) error
	ApplyFix() (bool, error)
	RejectFix() error
	Reset()
	SetThreshold(int) error
	DismissNotice() bool
}

// stateMsg carries a node state row.
type stateMsg struct{ telemetry.StateRow }

// logMsg carries one log line for the viewport.
type logMsg struct{ telemetry.LogEntry }

// auditMsg carries one remediation record.
type auditMsg struct{ telemetry.AuditEntry }

// pollMsg asks the model to refresh its view of the session.
type pollMsg struct{}

// viewMsg carries a fresh session view.
type viewMsg struct{ View }

type setControlsMsg struct{ c Controls }

// controlResultMsg reports the outcome of an operator action.
type controlResultMsg struct {
	text string
	err  error
}

const (
	pollInterval   = 500 * time.Millisecond
	sliderMin      = 50
	sliderMax      = 100
	sliderStep     = 5
	consoleLogCap  = 50
	auditTableRows = 5
)

// TUIWriter renders the node and its incidents using a bubbletea console.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter.
func NewTUIWriter(nodeID string) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(nodeID), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// WriteState forwards a state row to the console.
func (w *TUIWriter) WriteState(row telemetry.StateRow) error {
	w.program.Send(stateMsg{row})
	return nil
}

// WriteStates forwards the most recent row of a batch.
func (w *TUIWriter) WriteStates(rows []telemetry.StateRow) error {
	if len(rows) == 0 {
		return nil
	}
	return w.WriteState(rows[len(rows)-1])
}

// WriteLog forwards a log line to the console.
func (w *TUIWriter) WriteLog(entry telemetry.LogEntry) error {
	w.program.Send(logMsg{entry})
	return nil
}

// WriteAudit forwards a remediation record to the console.
func (w *TUIWriter) WriteAudit(entry telemetry.AuditEntry) error {
	w.program.Send(auditMsg{entry})
	return nil
}

// SetControls connects the console keys to a session.
func (w *TUIWriter) SetControls(c Controls) {
	w.program.Send(setControlsMsg{c})
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	nodeID   string
	controls Controls
	vp       viewport.Model
	audit    table.Model
	view     View
	logs     []telemetry.LogEntry
	status   string
	width    int
	height   int
	wrap     bool
	help     bool
}

func newTUIModel(nodeID string) tuiModel {
	cols := []table.Column{
		{Title: "Time", Width: 8},
		{Title: "Actor", Width: 14},
		{Title: "Incident", Width: 16},
		{Title: "Conf", Width: 5},
		{Title: "Details", Width: 40},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(auditTableRows+1))
	return tuiModel{
		nodeID: nodeID,
		vp:     viewport.New(0, 0),
		audit:  t,
		view: View{
			NodeID: nodeID,
			State:  telemetry.NewState(telemetry.DefaultBaseline),
		},
		wrap: true,
	}
}

func (m tuiModel) Init() tea.Cmd { return pollTick() }

func pollTick() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

func fetchView(c Controls) tea.Cmd {
	return func() tea.Msg { return viewMsg{c.View()} }
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width
		m.audit.SetWidth(msg.Width)
		m.layout()
	case setControlsMsg:
		m.controls = msg.c
		return m, fetchView(msg.c)
	case pollMsg:
		if m.controls == nil {
			return m, pollTick()
		}
		return m, tea.Batch(fetchView(m.controls), pollTick())
	case viewMsg:
		m.view = msg.View
		m.logs = append([]telemetry.LogEntry(nil), msg.Logs...)
		m.refreshAudit(msg.Audit)
		m.layout()
	case stateMsg:
		m.view.State = telemetry.ChaosState{
			ActiveFaults: msg.ActiveFaults,
			MemoryMB:     msg.MemoryMB,
			LatencyMs:    msg.LatencyMs,
			DiskPercent:  msg.DiskPercent,
			Health:       msg.Health,
		}
		m.view.UptimeSeconds = msg.UptimeSeconds
	case logMsg:
		for _, l := range m.logs {
			if l.ID == msg.ID {
				return m, nil
			}
		}
		m.logs = append([]telemetry.LogEntry{msg.LogEntry}, m.logs...)
		if len(m.logs) > consoleLogCap {
			m.logs = m.logs[:consoleLogCap]
		}
		m.refreshViewport()
	case auditMsg:
		for _, a := range m.view.Audit {
			if a.ID == msg.ID {
				return m, nil
			}
		}
		m.view.Audit = append([]telemetry.AuditEntry{msg.AuditEntry}, m.view.Audit...)
		m.refreshAudit(m.view.Audit)
		m.layout()
	case controlResultMsg:
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
		} else {
			m.status = msg.text
		}
		if m.controls != nil {
			return m, fetchView(m.controls)
		}
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "h", "?":
		m.help = !m.help
		return m, nil
	case "w":
		m.wrap = !m.wrap
		m.refreshViewport()
		return m, nil
	case "up", "k":
		m.vp.ScrollUp(1)
		return m, nil
	case "down", "j":
		m.vp.ScrollDown(1)
		return m, nil
	}
	c := m.controls
	if c == nil {
		return m, nil
	}
	switch key {
	case "1", "2", "3":
		kind := telemetry.FaultKinds[key[0]-'1']
		return m, func() tea.Msg {
			active, err := c.ToggleFault(kind)
			verb := "cleared"
			if active {
				verb = "triggered"
			}
			return controlResultMsg{text: fmt.Sprintf("%s %s", verb, kind), err: err}
		}
	case "s":
		return m, func() tea.Msg {
			return controlResultMsg{text: "diagnostic scan started", err: c.ManualScan(context.Background())}
		}
	case "a":
		return m, func() tea.Msg {
			applied, err := c.ApplyFix()
			text := "fix applied"
			if !applied {
				text = "nothing to remediate"
			}
			return controlResultMsg{text: text, err: err}
		}
	case "r":
		return m, func() tea.Msg {
			return controlResultMsg{text: "analysis rejected", err: c.RejectFix()}
		}
	case "x":
		return m, func() tea.Msg {
			c.Reset()
			return controlResultMsg{text: "session reset"}
		}
	case "+", "=", "-":
		n := m.view.Threshold + sliderStep
		if key == "-" {
			n = m.view.Threshold - sliderStep
		}
		n = min(max(n, sliderMin), sliderMax)
		m.view.Threshold = n
		return m, func() tea.Msg {
			return controlResultMsg{text: fmt.Sprintf("autonomy threshold %d%%", n), err: c.SetThreshold(n)}
		}
	case "d":
		return m, func() tea.Msg {
			c.DismissNotice()
			return controlResultMsg{text: "notice dismissed"}
		}
	}
	return m, nil
}

func (m *tuiModel) refreshViewport() {
	lines := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		line := fmt.Sprintf("%s %s %s",
			l.Timestamp.Local().Format("15:04:05"),
			levelStyle(l.Level).Render(fmt.Sprintf("%-5s", l.Level)),
			l.Message)
		if m.wrap && m.vp.Width > 0 {
			line = wordwrap.String(line, m.vp.Width)
		}
		lines = append(lines, line)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	m.vp.GotoTop()
}

func (m *tuiModel) refreshAudit(entries []telemetry.AuditEntry) {
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, table.Row{
			e.Timestamp.Local().Format("15:04:05"),
			e.Actor.Label(),
			e.Incident,
			fmt.Sprintf("%d%%", e.ConfidenceAtTime),
			e.Details,
		})
	}
	m.audit.SetRows(rows)
}

// layout gives the log viewport whatever height the other sections leave.
func (m *tuiModel) layout() {
	used := lipgloss.Height(m.renderHeader()) + lipgloss.Height(m.renderAnalysis()) +
		lipgloss.Height(m.audit.View()) + lipgloss.Height(m.renderBottom()) + 4
	if m.view.Notice != nil {
		used += lipgloss.Height(m.renderNotice())
	}
	m.vp.Height = max(m.height-used, 0)
	m.refreshViewport()
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", max(m.width, 1))
	sections := []string{m.renderHeader()}
	if m.view.Notice != nil {
		sections = append(sections, m.renderNotice())
	}
	sections = append(sections,
		divider,
		m.renderAnalysis(),
		divider,
		m.vp.View(),
		divider,
		m.audit.View(),
		divider,
		m.renderBottom(),
	)
	return strings.Join(sections, "\n")
}

func (m tuiModel) renderHeader() string {
	st := m.view.State
	title := lipgloss.NewStyle().Bold(true).Render("CHAOS CONSOLE " + m.nodeID)
	badge := healthStyle(st.Health).Render(" " + strings.ToUpper(string(st.Health)) + " ")
	top := fmt.Sprintf("%s %s uptime %ds", title, badge, m.view.UptimeSeconds)

	faults := make([]string, len(telemetry.FaultKinds))
	for i, k := range telemetry.FaultKinds {
		faults[i] = fmt.Sprintf("[%d] %s %s", i+1, strings.ToUpper(strings.ReplaceAll(string(k), "_", " ")), indicator(st.Has(k), "9", "8"))
	}
	gauges := fmt.Sprintf("RAM %.0fMB  LATENCY %.0fms  DISK %.0f%%", st.MemoryMB, st.LatencyMs, st.DiskPercent)
	return strings.Join([]string{top, gauges, strings.Join(faults, "  ")}, "\n")
}

func (m tuiModel) renderNotice() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10")).Bold(true)
	return style.Render(m.view.Notice.Message)
}

func (m tuiModel) renderAnalysis() string {
	a := m.view.Analysis
	if a == nil {
		if m.view.Analyzing {
			return "ANALYSIS: running..."
		}
		return "ANALYSIS: none"
	}
	lines := []string{
		fmt.Sprintf("ANALYSIS %s %s severity=%s confidence=%d%%", a.ID, a.Incident, a.Severity, a.Confidence),
		"root cause: " + a.RootCause,
		"fix: " + a.RecommendedFix,
	}
	for i, step := range a.ReasoningSteps {
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, step))
	}
	out := strings.Join(lines, "\n")
	if m.wrap && m.width > 0 {
		out = wordwrap.String(out, m.width)
	}
	return out
}

func (m tuiModel) renderBottom() string {
	line := fmt.Sprintf("Autonomy %d%% | Analyzing %s | Throttled %s | Wrap %s | h help",
		m.view.Threshold,
		indicator(m.view.Analyzing, "11", "8"),
		indicator(m.view.Throttled, "9", "10"),
		indicator(m.wrap, "10", "9"))
	if m.status != "" {
		return m.status + "\n" + line
	}
	return line
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q      quit",
		" 1/2/3  toggle memory leak / latency / disk exhaustion",
		" s      run diagnostic scan",
		" a      apply recommended fix",
		" r      reject analysis",
		" +/-    raise or lower autonomy threshold",
		" d      dismiss resolution notice",
		" x      hard reset",
		" w      toggle wrap",
		" j/k    scroll logs",
		" h/?    toggle this help view",
	}
	return strings.Join(lines, "\n")
}

func indicator(on bool, onColor, offColor string) string {
	c := offColor
	if on {
		c = onColor
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Render("●")
}

func healthStyle(h telemetry.HealthStatus) lipgloss.Style {
	bg := lipgloss.Color("10")
	switch h {
	case telemetry.HealthDegraded:
		bg = lipgloss.Color("11")
	case telemetry.HealthCritical:
		bg = lipgloss.Color("9")
	case telemetry.HealthDown:
		bg = lipgloss.Color("13")
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(bg).Bold(true)
}

func levelStyle(l telemetry.LogLevel) lipgloss.Style {
	c := lipgloss.Color("12")
	switch l {
	case telemetry.LevelWarn:
		c = lipgloss.Color("11")
	case telemetry.LevelError, telemetry.LevelFatal:
		c = lipgloss.Color("9")
	}
	return lipgloss.NewStyle().Foreground(c)
}
