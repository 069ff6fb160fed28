// Package ui implements the interactive host picker.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"github.com/treykane/ali-bastion/internal/model"
	"github.com/treykane/ali-bastion/internal/util"
)

const (
	headerTitle = "Select a host to connect to:"
	headerHelp  = "(Use ↑/↓ arrows to navigate, Enter to select, Esc/Ctrl+C to cancel)"

	// CancelNotice is printed after the terminal is restored when the user
	// leaves the picker with Ctrl+C.
	CancelNotice = "Cancelled by user (Ctrl+C)"
)

// LineKind tells the view how to style a rendered line.
type LineKind int

const (
	LineHeader LineKind = iota
	LineBlank
	LineHost
)

// Line is one unstyled row of picker output.
type Line struct {
	Kind     LineKind
	Text     string
	Selected bool
}

// Render lays out the picker for items with the given cursor: two header lines,
// a blank separator, then one row per host. It does no terminal I/O.
func Render(items []model.HostProfile, cursor, nameWidth int) []Line {
	if nameWidth <= 0 {
		nameWidth = util.DefaultNameWidth
	}
	lines := make([]Line, 0, len(items)+3)
	lines = append(lines,
		Line{Kind: LineHeader, Text: headerTitle},
		Line{Kind: LineHeader, Text: headerHelp},
		Line{Kind: LineBlank},
	)
	for i, h := range items {
		indicator := "  "
		if i == cursor {
			indicator = "▶ "
		}
		lines = append(lines, Line{
			Kind:     LineHost,
			Text:     indicator + util.PadRight(h.Name, nameWidth) + " " + h.Address(),
			Selected: i == cursor,
		})
	}
	return lines
}

var (
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("4")).Foreground(lipgloss.Color("15"))
)

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Select    key.Binding
	Cancel    key.Binding
	Interrupt key.Binding
}

var keys = keyMap{
	Up:        key.NewBinding(key.WithKeys("up")),
	Down:      key.NewBinding(key.WithKeys("down")),
	Select:    key.NewBinding(key.WithKeys("enter")),
	Cancel:    key.NewBinding(key.WithKeys("esc")),
	Interrupt: key.NewBinding(key.WithKeys("ctrl+c")),
}

// pickerModel is the only state of the picker: the cursor over a fixed list.
type pickerModel struct {
	items       []model.HostProfile
	cursor      int
	nameWidth   int
	done        bool
	selected    bool
	interrupted bool
}

func newPickerModel(items []model.HostProfile, nameWidth int) pickerModel {
	return pickerModel{items: items, nameWidth: nameWidth}
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.done {
		return m, nil
	}
	if _, closed := msg.(inputClosedMsg); closed {
		m.done = true
		return m, tea.Quit
	}
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(km, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(km, keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(km, keys.Select):
		m.done, m.selected = true, true
		return m, tea.Quit
	case key.Matches(km, keys.Cancel):
		m.done = true
		return m, tea.Quit
	case key.Matches(km, keys.Interrupt):
		m.done, m.interrupted = true, true
		return m, tea.Quit
	}
	return m, nil
}

func (m pickerModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	for i, l := range Render(m.items, m.cursor, m.nameWidth) {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch {
		case l.Kind == LineHeader:
			b.WriteString(headerStyle.Render(l.Text))
		case l.Selected:
			b.WriteString(selectedStyle.Render(l.Text))
		default:
			b.WriteString(l.Text)
		}
	}
	return b.String()
}

// choice returns the chosen name, if the picker ended with a selection.
func (m pickerModel) choice() (string, bool) {
	if !m.selected || len(m.items) == 0 {
		return "", false
	}
	return m.items[m.cursor].Name, true
}

// inputClosedMsg tells the picker its input stream has ended.
type inputClosedMsg struct{}

// eofNotifier turns the end of a non-terminal input into an inputClosedMsg.
// bubbletea stops reading silently at io.EOF and would otherwise wait forever.
// Keys read before the end are delivered first, so a scripted selection
// followed by EOF still selects.
type eofNotifier struct {
	r    io.Reader
	prog *tea.Program
}

func (e *eofNotifier) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if errors.Is(err, io.EOF) {
		if n > 0 {
			return n, nil
		}
		e.prog.Send(inputClosedMsg{})
	}
	return n, err
}

// Options configures Select. Zero values use the process terminal.
type Options struct {
	Context   context.Context
	Input     io.Reader
	Output    io.Writer
	AltScreen bool
	NameWidth int
}

// Select shows items and returns the chosen host name. ok is false when the
// user cancels or the terminal fails; neither case is reported as an error.
//
// An empty list returns immediately and a single item is returned without
// touching the terminal. Otherwise the terminal is held in raw mode by the
// bubbletea program for exactly the duration of the call and restored before
// Select returns, on every path.
func Select(items []model.HostProfile, opts Options) (name string, ok bool) {
	switch len(items) {
	case 0:
		return "", false
	case 1:
		return items[0].Name, true
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	in := opts.Input
	if in == nil {
		in = os.Stdin
	}
	// A terminal goes to bubbletea as is so it can enter raw mode; a hung-up
	// terminal ends the process through SIGHUP.
	var notifier *eofNotifier
	if f, isFile := in.(*os.File); !isFile || !term.IsTerminal(int(f.Fd())) {
		notifier = &eofNotifier{r: in}
		in = notifier
	}
	progOpts := []tea.ProgramOption{tea.WithOutput(out), tea.WithInput(in)}
	if opts.Context != nil {
		progOpts = append(progOpts, tea.WithContext(opts.Context))
	}
	if opts.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}

	snapshot := append([]model.HostProfile(nil), items...)
	prog := tea.NewProgram(newPickerModel(snapshot, opts.NameWidth), progOpts...)
	if notifier != nil {
		notifier.prog = prog
	}
	final, err := prog.Run()
	if err != nil {
		slog.Debug("host picker aborted", "error", err)
		return "", false
	}
	m, isPicker := final.(pickerModel)
	if !isPicker {
		return "", false
	}
	if m.interrupted {
		fmt.Fprintf(out, "\n%s\n", CancelNotice)
		return "", false
	}
	return m.choice()
}
