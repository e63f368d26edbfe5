// Package tui is the terminal front end over editor.State.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/apiclient"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/editor"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	sidebarWidth  = 28
	defaultWidth  = 100
	defaultHeight = 30
	footerHelp    = "ctrl+n: add  ctrl+d: delete  ctrl+s: save  ctrl+f: fullscreen  pgup/pgdn: navigate  alt+↑/↓: move  esc: exit/dismiss  ctrl+c: quit"
)

// operationDoneMsg carries the outcome of an editor call run off the event loop.
type operationDoneMsg struct {
	note string
	err  error
}

type quitMsg struct {
	err error
}

var (
	sidebarStyle  = lipgloss.NewStyle().Width(sidebarWidth).Padding(0, 1).Border(lipgloss.NormalBorder(), false, true, false, false).BorderForeground(lipgloss.Color("240"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	faintStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("124")).Foreground(lipgloss.Color("255"))
	statusStyle   = lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("236")).Foreground(lipgloss.Color("255"))
	slideBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(1, 4)
)

type Config struct {
	Context context.Context
	State   *editor.State
	Mode    apiclient.Mode
}

type model struct {
	ctx   context.Context
	state *editor.State
	mode  apiclient.Mode

	width  int
	height int

	snapshot  editor.Snapshot
	textarea  textarea.Model
	editingID int64

	minibufferText string
	quitting       bool
}

func newModel(cfg Config) model {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	area := textarea.New()
	area.Placeholder = "Write Markdown…"
	area.CharLimit = 0
	area.ShowLineNumbers = false
	area.Focus()

	m := model{
		ctx:      ctx,
		state:    cfg.State,
		mode:     cfg.Mode,
		width:    defaultWidth,
		height:   defaultHeight,
		textarea: area,
	}
	m.resize()
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case stateChangedMsg:
		m.refresh()
		return m, nil

	case operationDoneMsg:
		if msg.err == nil && msg.note != "" {
			m.minibufferText = msg.note
		}
		m.refresh()
		return m, nil

	case quitMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			m.minibufferText = "Saving…"
			return m, m.closeCmd()
		case "ctrl+n":
			return m, m.run("Slide added", func(ctx context.Context) error {
				_, err := m.state.AddSlide(ctx)
				return err
			})
		case "ctrl+d":
			slideID := m.snapshot.CurrentID
			return m, m.run("Slide deleted", func(ctx context.Context) error {
				return m.state.DeleteSlide(ctx, slideID)
			})
		case "ctrl+s":
			return m, m.run("Saved", m.state.SaveNow)
		case "ctrl+f":
			m.state.ToggleFullscreen(editor.SourceButton)
			m.refresh()
			return m, nil
		case "esc":
			if m.snapshot.Fullscreen {
				m.state.ToggleFullscreen(editor.SourceHotkey)
			} else {
				m.state.DismissError()
				m.minibufferText = ""
			}
			m.refresh()
			return m, nil
		case "pgup":
			m.state.Prev()
			m.refresh()
			return m, nil
		case "pgdown":
			m.state.Next()
			m.refresh()
			return m, nil
		case "alt+up":
			return m, m.moveCmd(-1)
		case "alt+down":
			return m, m.moveCmd(1)
		}
		if m.snapshot.Fullscreen {
			switch msg.String() {
			case "left", "h":
				m.state.Prev()
			case "right", "l", " ":
				m.state.Next()
			}
			m.refresh()
			return m, nil
		}
	}

	before := m.textarea.Value()
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	if after := m.textarea.Value(); after != before && m.editingID != 0 {
		m.state.UpdateContent(after)
		m.refresh()
	}
	return m, cmd
}

// refresh re-reads the editor state and loads the current slide into the textarea when the
// selection changed or the server replaced content that has no unsaved edit.
func (m *model) refresh() {
	m.snapshot = m.state.Snapshot()
	current, ok := m.snapshot.Current()
	if !ok {
		m.editingID = 0
		m.textarea.SetValue("")
		return
	}
	if current.ID != m.editingID {
		m.editingID = current.ID
		m.textarea.SetValue(current.Content)
		return
	}
	if m.snapshot.SaveState(current.ID) == editor.SaveIdle && m.textarea.Value() != current.Content {
		m.textarea.SetValue(current.Content)
	}
}

func (m *model) resize() {
	editorWidth := m.width - sidebarWidth - 4
	if editorWidth < 20 {
		editorWidth = 20
	}
	editorHeight := m.height - 6
	if editorHeight < 5 {
		editorHeight = 5
	}
	m.textarea.SetWidth(editorWidth)
	m.textarea.SetHeight(editorHeight)
}

func (m model) run(note string, operation func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return operationDoneMsg{note: note, err: operation(m.ctx)}
	}
}

func (m model) moveCmd(delta int) tea.Cmd {
	from := m.snapshot.CurrentIndex
	to := from + delta
	if from < 0 || to < 0 || to >= len(m.snapshot.Slides) {
		return nil
	}
	return m.run("Slide moved", func(ctx context.Context) error {
		return m.state.Move(ctx, from, to)
	})
}

func (m model) closeCmd() tea.Cmd {
	return func() tea.Msg {
		return quitMsg{err: m.state.Close(context.Background())}
	}
}

func (m model) View() string {
	if m.snapshot.Fullscreen {
		return m.fullscreenView()
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), " ", m.textarea.View())
	return strings.Join([]string{body, m.statusView(), faintStyle.Render(footerHelp)}, "\n")
}

func (m model) sidebarView() string {
	lines := make([]string, 0, len(m.snapshot.Slides)+2)
	lines = append(lines, lipgloss.NewStyle().Bold(true).Render("Slides"), "")
	if m.snapshot.Loading && len(m.snapshot.Slides) == 0 {
		lines = append(lines, faintStyle.Render("Loading…"))
	}
	for index, slide := range m.snapshot.Slides {
		line := fmt.Sprintf("%2d %s %s", index+1, saveMarker(m.snapshot.SaveState(slide.ID)), slideTitle(slide.Content, sidebarWidth-8))
		if slide.ID == m.snapshot.CurrentID {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return sidebarStyle.Height(m.height - 4).Render(strings.Join(lines, "\n"))
}

func (m model) statusView() string {
	if m.snapshot.Error != "" {
		return errorStyle.Width(m.width).Render(m.snapshot.Error + "  (esc to dismiss)")
	}
	parts := []string{string(m.mode)}
	if current, ok := m.snapshot.Current(); ok {
		parts = append(parts,
			fmt.Sprintf("slide %d/%d", m.snapshot.CurrentIndex+1, len(m.snapshot.Slides)),
			string(current.Layout),
			m.snapshot.SaveState(current.ID).String(),
		)
	}
	if m.minibufferText != "" {
		parts = append(parts, m.minibufferText)
	}
	return statusStyle.Width(m.width).Render(strings.Join(parts, " · "))
}

func (m model) fullscreenView() string {
	current, ok := m.snapshot.Current()
	if !ok {
		return faintStyle.Render("No slides")
	}
	box := slideBoxStyle.Width(m.width - 4).Height(m.height - 6).Render(current.Content)
	position := faintStyle.Render(fmt.Sprintf("%d / %d   ←/→ navigate  esc: exit", m.snapshot.CurrentIndex+1, len(m.snapshot.Slides)))
	view := lipgloss.JoinVertical(lipgloss.Left, box, position)
	if m.snapshot.Error != "" {
		view = lipgloss.JoinVertical(lipgloss.Left, view, errorStyle.Render(m.snapshot.Error))
	}
	return view
}

func saveMarker(state editor.SaveState) string {
	switch state {
	case editor.SavePending:
		return "•"
	case editor.SaveSaving:
		return "…"
	case editor.SaveError:
		return "!"
	default:
		return " "
	}
}

// slideTitle returns the first non-empty line without heading markers, cut to width runes.
func slideTitle(content string, width int) string {
	title := "Untitled"
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if trimmed != "" {
			title = trimmed
			break
		}
	}
	runes := []rune(title)
	if width > 1 && len(runes) > width {
		return string(runes[:width-1]) + "…"
	}
	return title
}

// Run starts the program and blocks until the user quits. The bridge must be the one
// whose OnChange was given to the editor.
func Run(ctx context.Context, bridge *Bridge, state *editor.State, mode apiclient.Mode) error {
	m := newModel(Config{Context: ctx, State: state, Mode: mode})
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	bridge.attach(program)
	go bridge.pump(pumpCtx)

	final, runErr := program.Run()
	if finished, ok := final.(model); ok && finished.quitting {
		return runErr
	}

	return errors.Join(runErr, state.Close(context.Background()))
}
