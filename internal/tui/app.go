// Package tui is the full-screen player shown by spool play and resume.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/spool/internal/core"
	spoolerrors "github.com/tessro/spool/internal/errors"
	"github.com/tessro/spool/internal/playback"
	"github.com/tessro/spool/internal/settings"
	"github.com/tessro/spool/internal/tail"
)

// ErrQuit is returned by a command line runner to close the player.
var ErrQuit = errors.New("quit")

const (
	defaultRefreshRate = 500 * time.Millisecond
	errorTTL           = 5 * time.Second
	volumeStep         = 5
	seekStep           = 10 * time.Second
	maxLogLines        = 5
)

// Session is the playback surface the player reads and drives.
type Session interface {
	core.Controller
	Status() playback.State
	Settings() settings.Settings
	Ended() <-chan struct{}
}

// CommandRunner executes one console command line and returns its output.
type CommandRunner func(ctx context.Context, line string) (string, error)

// Option configures a Model.
type Option func(*Model)

// WithRefreshRate sets how often the now-playing panel redraws.
func WithRefreshRate(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.refreshRate = d
		}
	}
}

// WithEvents shows playback events from a tail watcher, rendered by format.
func WithEvents(events <-chan tail.Event, format func(tail.Event) string) Option {
	return func(m *Model) {
		m.events = events
		m.format = format
	}
}

// WithCommandLine enables the ':' prompt, handing each line to run.
func WithCommandLine(run CommandRunner) Option {
	return func(m *Model) { m.runLine = run }
}

// Model is the player state.
type Model struct {
	ctx         context.Context
	s           Session
	refreshRate time.Duration
	events      <-chan tail.Event
	format      func(tail.Event) string
	runLine     CommandRunner

	width  int
	height int

	// Queue cursor. It follows the now-playing item until moved by hand.
	cursor int
	follow bool

	log    []string
	output string

	showHelp bool
	typing   bool
	input    textinput.Model

	lastError   error
	errorExpiry time.Time

	ended    bool
	quitting bool
}

// NewModel creates a player over s. Actions run with ctx.
func NewModel(ctx context.Context, s Session, opts ...Option) Model {
	ti := textinput.New()
	ti.Prompt = ":"
	ti.Placeholder = "help"
	ti.CharLimit = 256
	ti.Width = 60

	m := Model{
		ctx:         ctx,
		s:           s,
		refreshRate: defaultRefreshRate,
		follow:      true,
		input:       ti,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.syncCursor()
	return m
}

// Ended reports whether the player closed because the queue played out.
func (m Model) Ended() bool {
	return m.ended
}

// Messages
type tickMsg time.Time
type eventMsg tail.Event
type eventsClosedMsg struct{}
type endedMsg struct{}
type outputMsg string
type actionDoneMsg struct{}
type errMsg error

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForEvent(events <-chan tail.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(e)
	}
}

func waitForEnd(ctx context.Context, ended <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ended:
			return endedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

// Init starts the redraw ticker and the background listeners.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.tick(), waitForEnd(m.ctx, m.s.Ended())}
	if m.events != nil {
		cmds = append(cmds, waitForEvent(m.events))
	}
	return tea.Batch(cmds...)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.lastError != nil && time.Now().After(m.errorExpiry) {
			m.lastError = nil
		}
		m.syncCursor()
		return m, m.tick()

	case eventMsg:
		m.addLog(m.format(tail.Event(msg)))
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		m.events = nil
		return m, nil

	case endedMsg:
		m.ended = true
		m.quitting = true
		return m, tea.Quit

	case outputMsg:
		m.output = strings.TrimRight(string(msg), "\n")
		m.syncCursor()
		return m, nil

	case actionDoneMsg:
		m.syncCursor()
		return m, nil

	case errMsg:
		if errors.Is(msg, ErrQuit) {
			m.quitting = true
			return m, tea.Quit
		}
		m.lastError = msg
		m.errorExpiry = time.Now().Add(errorTTL)
		return m, nil
	}

	if m.typing {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.showHelp {
		switch msg.String() {
		case "?", "esc", "q":
			m.showHelp = false
		}
		return m, nil
	}

	if m.typing {
		return m.handleInputKeyPress(msg)
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "?":
		m.showHelp = true
		return m, nil
	case ":":
		if m.runLine == nil {
			return m, nil
		}
		m.typing = true
		m.input.SetValue("")
		return m, m.input.Focus()
	case "esc":
		m.output = ""
		m.lastError = nil
		return m, nil
	}

	// Playback
	switch msg.String() {
	case " ":
		return m, m.do(func(context.Context) error {
			m.s.TogglePlay()
			return nil
		})
	case "n":
		m.follow = true
		return m, m.do(m.s.Next)
	case "p":
		m.follow = true
		return m, m.do(m.s.Previous)
	case "+", "=":
		return m, m.volume(volumeStep)
	case "-":
		return m, m.volume(-volumeStep)
	case "r":
		mode := m.s.Settings().Repeat.Cycle()
		return m, m.do(func(ctx context.Context) error {
			return m.s.SetRepeat(ctx, mode)
		})
	case "s":
		return m, m.do(m.s.ToggleShuffle)
	case "left":
		return m, m.seek(-seekStep)
	case "right":
		return m, m.seek(seekStep)
	}

	// Queue
	q := m.s.Queue()
	if q == nil || q.Len() == 0 {
		return m, nil
	}
	m.cursor = min(m.cursor, q.Len()-1)
	switch msg.String() {
	case "j", "down":
		m.moveCursor(q, m.cursor+1)
	case "k", "up":
		m.moveCursor(q, m.cursor-1)
	case "g", "home":
		m.moveCursor(q, 0)
	case "G", "end":
		m.moveCursor(q, q.Len()-1)
	case "enter":
		item := q.Items[m.cursor]
		m.follow = true
		return m, m.do(func(ctx context.Context) error {
			return m.s.PlayQueueItem(ctx, item.ID)
		})
	case "d", "delete":
		item := q.Items[m.cursor]
		return m, m.do(func(ctx context.Context) error {
			return m.s.RemoveFromQueue(ctx, item.ID)
		})
	case "K", "shift+up":
		if m.cursor == 0 {
			return m, nil
		}
		item, before := q.Items[m.cursor], q.Items[m.cursor-1]
		m.moveCursor(q, m.cursor-1)
		return m, m.do(func(ctx context.Context) error {
			return m.s.MoveTrack(ctx, []int64{item.ID}, core.DropBeforeItem(before.ID))
		})
	case "J", "shift+down":
		if m.cursor >= q.Len()-1 {
			return m, nil
		}
		item, after := q.Items[m.cursor], q.Items[m.cursor+1]
		m.moveCursor(q, m.cursor+1)
		return m, m.do(func(ctx context.Context) error {
			return m.s.MoveTrack(ctx, []int64{item.ID}, core.DropAfterItem(after.ID))
		})
	}

	return m, nil
}

func (m Model) handleInputKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.typing = false
		m.input.Blur()
		m.input.SetValue("")
		return m, nil

	case "enter":
		line := strings.TrimSpace(m.input.Value())
		m.typing = false
		m.input.Blur()
		m.input.SetValue("")
		if line == "" {
			return m, nil
		}
		return m, m.runCommand(line)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// do runs action off the update loop and reports how it went.
func (m Model) do(action func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := action(ctx); err != nil {
			return errMsg(err)
		}
		return actionDoneMsg{}
	}
}

func (m Model) runCommand(line string) tea.Cmd {
	ctx, run := m.ctx, m.runLine
	return func() tea.Msg {
		out, err := run(ctx, line)
		if err != nil {
			return errMsg(err)
		}
		return outputMsg(out)
	}
}

func (m Model) volume(delta int) tea.Cmd {
	level := min(max(m.s.Settings().Volume+delta, 0), 100)
	return m.do(func(context.Context) error {
		return m.s.SetVolume(level)
	})
}

func (m Model) seek(delta time.Duration) tea.Cmd {
	pos := max(m.s.PlayerState().Position+delta, 0)
	return m.do(func(context.Context) error {
		m.s.Seek(pos)
		return nil
	})
}

func (m *Model) moveCursor(q *core.Queue, to int) {
	m.cursor = min(max(to, 0), q.Len()-1)
	m.follow = false
}

// syncCursor keeps the cursor inside the queue and on the now-playing
// item while it is following.
func (m *Model) syncCursor() {
	q := m.s.Queue()
	if q == nil || q.Len() == 0 {
		m.cursor = 0
		return
	}
	if m.follow {
		if i := q.IndexOf(q.SelectedItemID); i >= 0 {
			m.cursor = i
		}
	}
	m.cursor = min(max(m.cursor, 0), q.Len()-1)
}

func (m *Model) addLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	width := m.width - 2
	nowPlaying := borderStyle.Width(width - 2).Render(m.renderNowPlaying())

	var extras []string
	if len(m.log) > 0 {
		extras = append(extras, dimStyle.Render(strings.Join(m.log, "\n")))
	}
	if m.output != "" {
		extras = append(extras, m.output)
	}
	footer := m.renderStatusBar()

	rows := m.height - lipgloss.Height(nowPlaying) - lipgloss.Height(footer) - 2
	for _, e := range extras {
		rows -= lipgloss.Height(e)
	}
	queueView := focusedBorder.Width(width - 2).Render(m.renderQueue(max(rows, 3), width-4))

	sections := append([]string{nowPlaying, queueView}, extras...)
	sections = append(sections, footer)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderNowPlaying() string {
	item := m.s.NowPlaying()
	if item == nil {
		return dimStyle.Render("■ stopped")
	}

	st := m.s.PlayerState()
	prefs := m.s.Settings()

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", stateLabel(m.s.Status()), titleStyle.Render(item.Track.Title))
	fmt.Fprintf(&b, "   %s\n", mutedStyle.Render(item.Track.Artist+" · "+item.Track.Album))
	fmt.Fprintf(&b, "   %s %s %s\n",
		formatTime(st.Position),
		accentStyle.Render(progressBar(st.Position, st.Duration, 30)),
		formatTime(st.Duration))

	flags := []string{fmt.Sprintf("vol %d%%", prefs.Volume), "repeat " + prefs.Repeat.String()}
	if q := m.s.Queue(); q != nil && q.Shuffled {
		flags = append(flags, "shuffled")
	}
	b.WriteString("   " + dimStyle.Render(strings.Join(flags, " · ")))
	return b.String()
}

func (m Model) renderQueue(rows, width int) string {
	q := m.s.Queue()
	if q == nil || q.Len() == 0 {
		return dimStyle.Render("No active queue")
	}

	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := min(start+rows, q.Len())

	var lines []string
	for i := start; i < end; i++ {
		it := q.Items[i]
		marker := "  "
		if it.ID == q.SelectedItemID {
			marker = playingStyle.Render("● ")
		}
		line := fmt.Sprintf("%3d  %s  %s",
			i+1,
			truncate(it.Track.Title+" · "+it.Track.Artist, max(width-20, 10)),
			dimStyle.Render(formatTime(it.Track.Duration)))
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		lines = append(lines, marker+line)
	}
	if more := q.TotalCount - end; more > 0 {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("     ...and %d more", more)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStatusBar() string {
	if m.typing {
		return m.input.View()
	}

	status := dimStyle.Render("q:quit  ?:help  ::command  space:play/pause  n/p:next/prev  +/-:volume  enter:play  d:remove")
	if m.lastError != nil {
		status = errorStyle.Render(spoolerrors.Format(m.lastError))
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(status)
}

func (m Model) renderHelp() string {
	title := "Spool - Keyboard Shortcuts"
	divider := strings.Repeat("═", len(title))

	help := `
  ` + title + `
  ` + divider + `

  Global
  ──────
  q, Ctrl+C    Quit (the queue is kept for resume)
  ?            Toggle help
  :            Command line (try :help)
  Esc          Clear output

  Playback
  ────────
  Space        Play/Pause
  n            Next track
  p            Previous track
  ←/→          Seek 10s
  +/=          Volume up
  -            Volume down
  r            Cycle repeat
  s            Toggle shuffle

  Queue
  ─────
  j/↓          Cursor down
  k/↑          Cursor up
  g/G          First/last item
  Enter        Play item
  d            Remove item
  J/K          Move item down/up

  Press ? or Esc to close
`

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(borderStyle.Render(help))
}

func stateLabel(s playback.State) string {
	switch s {
	case playback.StatePlaying:
		return playingStyle.Render("▶ playing")
	case playback.StatePaused:
		return pausedStyle.Render("⏸ paused")
	case playback.StateLoading:
		return dimStyle.Render("… loading")
	default:
		return dimStyle.Render("■ stopped")
	}
}

// Run shows the player until the user quits, ctx is done or the queue
// ends. It reports whether the queue played out.
func Run(ctx context.Context, s Session, opts ...Option) (bool, error) {
	p := tea.NewProgram(NewModel(ctx, s, opts...), tea.WithAltScreen(), tea.WithContext(ctx))

	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return false, nil
		}
		return false, err
	}
	m, ok := final.(Model)
	return ok && m.Ended(), nil
}
