// Package tui provides the interactive menu of nodeexpoctor.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/nodeexpoctor/internal/tui/ui"
)

// Action is a menu entry's command.
type Action string

// Menu actions, in menu order.
const (
	ActionVersion    Action = "version"
	ActionInstall    Action = "install"
	ActionEditConfig Action = "edit-config"
	ActionRemove     Action = "remove"
	ActionStatus     Action = "status"
	ActionExit       Action = "exit"
)

// MenuItem is one numbered menu entry.
type MenuItem struct {
	Action      Action
	Title       string
	Description string
}

// MenuItems returns the menu entries. Entry i is selected with key i+1.
func MenuItems() []MenuItem {
	return []MenuItem{
		{ActionVersion, "Check version", "Compare the installed exporter with the pinned release"},
		{ActionInstall, "Install", "Install or upgrade node_exporter and start it"},
		{ActionEditConfig, "Edit config", "Open the exporter's web config in an editor"},
		{ActionRemove, "Remove", "Stop the service and remove everything that was installed"},
		{ActionStatus, "Status", "Check the service, start it if needed and show recent logs"},
		{ActionExit, "Exit", ""},
	}
}

// MenuModel is the bubbletea model of the menu. It ends the program as
// soon as an entry is chosen.
type MenuModel struct {
	items   []MenuItem
	cursor  int
	chosen  Action
	message string
	failed  bool
	styles  ui.Styles
	keys    ui.KeyMap
}

// NewMenuModel creates a menu with the cursor on the first entry.
func NewMenuModel() MenuModel {
	return MenuModel{
		items:  MenuItems(),
		styles: ui.DefaultStyles(),
		keys:   ui.DefaultKeyMap(),
	}
}

// WithMessage shows the outcome of the previous action above the menu.
func (m MenuModel) WithMessage(message string, failed bool) MenuModel {
	m.message = message
	m.failed = failed
	return m
}

// Chosen returns the selected action, or "" while none is chosen.
func (m MenuModel) Chosen() Action {
	return m.chosen
}

// Cursor returns the highlighted entry.
func (m MenuModel) Cursor() int {
	return m.cursor
}

// Init implements tea.Model.
func (m MenuModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.styles = m.styles.WithWidth(msg.Width)
	case tea.KeyMsg:
		switch {
		case m.keys.IsUp(msg):
			if m.cursor > 0 {
				m.cursor--
			}
		case m.keys.IsDown(msg):
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Select):
			return m.choose(m.cursor)
		case key.Matches(msg, m.keys.Quit):
			m.chosen = ActionExit
			return m, tea.Quit
		case msg.Type == tea.KeyRunes && len(msg.Runes) == 1:
			if n := int(msg.Runes[0] - '1'); n >= 0 && n < len(m.items) {
				return m.choose(n)
			}
		}
	}
	return m, nil
}

func (m MenuModel) choose(i int) (tea.Model, tea.Cmd) {
	m.cursor = i
	m.chosen = m.items[i].Action
	return m, tea.Quit
}

// View implements tea.Model.
func (m MenuModel) View() string {
	if m.chosen != "" {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("nodeexpoctor"))
	b.WriteString("\n")
	b.WriteString(m.styles.Subtitle.Render("Manage the Prometheus node_exporter on this host"))
	b.WriteString("\n")

	if m.message != "" {
		style := m.styles.Success
		if m.failed {
			style = m.styles.Error
		}
		b.WriteString(style.Render(m.message))
		b.WriteString("\n\n")
	}

	for i, item := range m.items {
		line := fmt.Sprintf("%d) %s", i+1, item.Title)
		if i == m.cursor {
			b.WriteString(m.styles.ListItemActive.Render("> " + line))
			if item.Description != "" {
				b.WriteString("  " + m.styles.Description.Render(item.Description))
			}
		} else {
			b.WriteString(m.styles.ListItem.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.keys.Help(m.styles))
	return m.styles.App.Render(b.String())
}

// RunMenu shows the menu once and returns the chosen action. A cancelled
// context selects ActionExit.
func RunMenu(ctx context.Context, in io.Reader, out io.Writer, model MenuModel) (Action, error) {
	p := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return ActionExit, nil
		}
		return "", fmt.Errorf("menu: %w", err)
	}
	chosen := final.(MenuModel).Chosen()
	if chosen == "" {
		chosen = ActionExit
	}
	return chosen, nil
}
