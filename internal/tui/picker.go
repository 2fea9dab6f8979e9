package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/mlplay/internal/playground"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// Opener builds a session for the simulator the user picked.
type Opener func(name string) (playground.Session, error)

// Picker lists simulators and opens the chosen one in the live view.
type Picker struct {
	infos  []playground.Info
	open   Opener
	opts   Options
	cursor int
	err    error
}

func NewPicker(infos []playground.Info, open Opener, opts Options) Picker {
	return Picker{infos: infos, open: open, opts: opts}
}

func (p Picker) Init() tea.Cmd { return nil }

func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return p, tea.Quit
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.infos)-1 {
			p.cursor++
		}
	case "enter", " ":
		if len(p.infos) == 0 {
			return p, nil
		}
		sess, err := p.open(p.infos[p.cursor].Name)
		if err != nil {
			p.err = err
			return p, nil
		}
		live := NewModel(sess, p.opts)
		return live, tea.Batch(tea.ClearScreen, live.Init())
	}
	return p, nil
}

// Selected returns the simulator under the cursor.
func (p Picker) Selected() string {
	if len(p.infos) == 0 {
		return ""
	}
	return p.infos[p.cursor].Name
}

func (p Picker) View() string {
	var b strings.Builder
	b.WriteString("\n  " + cyan.Render("mlplay") + dim.Render("  machine learning, one tick at a time") + "\n\n")
	for i, info := range p.infos {
		cursor := "  "
		name := dim.Render(fmt.Sprintf("%-18s", info.Name))
		if i == p.cursor {
			cursor = cyan.Render("> ")
			name = white.Render(fmt.Sprintf("%-18s", info.Name))
		}
		b.WriteString("  " + cursor + name + dimmer.Render(info.Description) + "\n")
	}
	if p.err != nil {
		b.WriteString("\n  " + red.Render(p.err.Error()) + "\n")
	}
	b.WriteString("\n  " + dimmer.Render("↑↓ select  enter open  q quit") + "\n")
	return b.String()
}
