// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/crucible-build/crucible/store"
)

// renderer is pinned to a fixed ANSI256 color profile rather than
// left to lipgloss's terminal auto-detection, so coloring is
// consistent whether crucible-browse's output goes to a real
// terminal or is captured (e.g. piped to a log), mirroring the
// teacher's markdown highlighter.
var renderer = lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.ANSI256))

// keyMap is the browser's key bindings, grounded on the same
// vim-plus-arrows convention the teacher's terminal UIs use
// throughout.
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Quit   key.Binding
}

var defaultKeyMap = keyMap{
	Up:     key.NewBinding(key.WithKeys("k", "up")),
	Down:   key.NewBinding(key.WithKeys("j", "down")),
	Select: key.NewBinding(key.WithKeys("enter")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
}

var (
	listStyle      = renderer.NewStyle().PaddingRight(2)
	selectedStyle  = renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	helpStyle      = renderer.NewStyle().Foreground(lipgloss.Color("244"))
	titleStyle     = renderer.NewStyle().Bold(true).Underline(true)
	errorLineStyle = renderer.NewStyle().Foreground(lipgloss.Color("203"))
)

// model is the browser's bubbletea state: a fixed list of store entry
// names on the left, and a detail viewport on the right showing the
// selected entry's .drv content (syntax highlighted) or a plain
// message for non-derivation entries.
type model struct {
	store   *store.Store
	entries []string
	cursor  int

	detail   viewport.Model
	width    int
	height   int
	lastErr  error
	readyFor string // entry name the detail viewport currently holds
}

func newModel(s *store.Store) (*model, error) {
	entries, err := s.List()
	if err != nil {
		return nil, fmt.Errorf("listing store: %w", err)
	}
	sort.Strings(entries)

	return &model{
		store:   s,
		entries: entries,
		detail:  viewport.New(0, 0),
	}, nil
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listWidth := m.width / 3
		m.detail.Width = m.width - listWidth - 4
		m.detail.Height = m.height - 2
		m.readyFor = "" // force re-render at the new width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, defaultKeyMap.Quit):
			return m, tea.Quit
		case key.Matches(msg, defaultKeyMap.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, defaultKeyMap.Down):
			if m.cursor < len(m.entries)-1 {
				m.cursor++
			}
		}
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	if len(m.entries) == 0 {
		return "store is empty\n"
	}

	selected := m.entries[m.cursor]
	if m.readyFor != selected {
		m.detail.SetContent(m.renderDetail(selected))
		m.readyFor = selected
	}

	var list strings.Builder
	list.WriteString(titleStyle.Render("store") + "\n\n")
	for i, name := range m.entries {
		line := name
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		list.WriteString(line + "\n")
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, listStyle.Render(list.String()), m.detail.View())
	help := helpStyle.Render("\nj/k: move   pgup/pgdn: scroll detail   q: quit")
	return body + help
}

// renderDetail returns the syntax-highlighted JSON of name's .drv
// file, or a plain description when name isn't a derivation file or
// fails to parse (e.g. a build output directory).
func (m *model) renderDetail(name string) string {
	path := m.store.Dir() + "/" + name
	if !strings.HasSuffix(name, ".drv") {
		return fmt.Sprintf("%s\n\n(not a derivation file; select a .drv entry to view its contents)", name)
	}

	drvFile, err := m.store.ReadDrv(path)
	if err != nil {
		return errorLineStyle.Render(fmt.Sprintf("failed to read %s: %v", name, err))
	}

	pretty, err := json.MarshalIndent(drvFile, "", "  ")
	if err != nil {
		return errorLineStyle.Render(fmt.Sprintf("failed to format %s: %v", name, err))
	}

	var buf strings.Builder
	if err := quick.Highlight(&buf, string(pretty), "json", "terminal256", "monokai"); err != nil {
		return string(pretty)
	}
	return buf.String()
}
