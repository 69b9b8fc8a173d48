// Package tui is the interactive Bubble Tea front end over a todo.Ledger.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todo"
)

// listItem adapts a model.View to bubbles/list.Item
type listItem struct{ model.View }

func (i listItem) Title() string       { return fmt.Sprintf("%s %s", statusSymbols[i.CurrentStatus], i.View.Description) }
func (i listItem) Description() string { return string(i.CurrentStatus) }
func (i listItem) FilterValue() string { return i.View.Description }

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	text := it.View.Description
	if it.CurrentStatus == model.StatusCompleted {
		text = doneStyle.Render(text)
	}
	line := fmt.Sprintf("%s %s %s",
		statusMark(it.CurrentStatus),
		mutedStyle.Render(fmt.Sprintf("#%-3d", it.ID)),
		text)
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+line)
}

type mode int

const (
	browsing mode = iota
	adding
	editing
	viewingHistory
)

// messages produced by ledger commands
type (
	itemsMsg struct {
		views []model.View
		err   error
	}
	changedMsg struct {
		note string
		err  error
	}
	deletedMsg struct {
		view model.View
		err  error
	}
	historyMsg struct {
		view   model.View
		events []model.StatusEvent
		err    error
	}
)

var (
	advanceBind = key.NewBinding(key.WithKeys(" ", "s"), key.WithHelp("space/s", "next status"))
	addBind     = key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	editBind    = key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit"))
	deleteBind  = key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete"))
	undoBind    = key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo"))
	historyBind = key.NewBinding(key.WithKeys("h", "enter"), key.WithHelp("h", "history"))
)

// Model is the Bubble Tea model. Every change goes straight to the ledger;
// the list is reloaded after each one.
type Model struct {
	ctx    context.Context
	ledger todo.Ledger

	list list.Model
	ti   textinput.Model
	mode mode

	editID   int64
	inputErr string
	flash    string

	// single-level undo of the last delete
	undo *model.View

	historyOf model.View
	history   []model.StatusEvent

	width, height int
}

// New builds the model; the first list load happens in Init.
func New(ctx context.Context, l todo.Ledger) Model {
	lst := list.New(nil, itemDelegate{}, 0, 0)
	lst.Title = titleStyle.Render("Todos")
	lst.SetShowHelp(true)
	lst.SetShowPagination(true)
	lst.SetShowStatusBar(true)
	lst.SetFilteringEnabled(true)
	lst.Styles.Title = titleStyle
	lst.Styles.HelpStyle = helpStyle
	lst.Styles.PaginationStyle = helpStyle
	lst.FilterInput.Prompt = "/ "
	lst.SetStatusBarItemName("item", "items")
	extra := func() []key.Binding {
		return []key.Binding{advanceBind, addBind, editBind, deleteBind, undoBind, historyBind}
	}
	lst.AdditionalShortHelpKeys = extra
	lst.AdditionalFullHelpKeys = extra

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = model.MaxDescriptionLen

	m := Model{ctx: ctx, ledger: l, list: lst, ti: ti, width: 80, height: 24}
	m.resize()
	return m
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, l todo.Ledger) error {
	p := tea.NewProgram(New(ctx, l), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd { return m.load() }

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		views, err := m.ledger.List(m.ctx)
		return itemsMsg{views: views, err: err}
	}
}

func (m Model) selected() (model.View, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	return it.View, ok
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case itemsMsg:
		if msg.err != nil {
			m.flash = errorStyle.Render("load: " + msg.err.Error())
			return m, nil
		}
		items := make([]list.Item, 0, len(msg.views))
		for _, v := range msg.views {
			items = append(items, listItem{v})
		}
		m.list.Title = header(msg.views)
		return m, m.list.SetItems(items)

	case changedMsg:
		if msg.err != nil {
			m.flash = errorStyle.Render(msg.err.Error())
		} else {
			m.flash = successStyle.Render("✔ " + msg.note)
		}
		return m, m.load()

	case deletedMsg:
		if msg.err != nil {
			m.flash = errorStyle.Render(msg.err.Error())
			return m, m.load()
		}
		v := msg.view
		m.undo = &v
		m.flash = successStyle.Render(fmt.Sprintf("✔ deleted #%d", v.ID)) + mutedStyle.Render("  (u to undo)")
		return m, m.load()

	case historyMsg:
		if msg.err != nil {
			m.flash = errorStyle.Render(msg.err.Error())
			return m, m.load()
		}
		m.mode = viewingHistory
		m.historyOf, m.history = msg.view, msg.events
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case adding, editing:
			return m.updateInput(msg)
		case viewingHistory:
			switch msg.String() {
			case "q", "esc", "h", "enter":
				m.mode = browsing
				m.history = nil
			}
			return m, nil
		}
		if m.list.FilterState() != list.Filtering {
			if next, cmd, handled := m.handleKey(msg); handled {
				return next, cmd
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "q":
		return m, tea.Quit, true
	case "esc":
		if m.list.FilterState() == list.Unfiltered {
			return m, tea.Quit, true
		}
		return m, nil, false
	}
	m.flash = ""

	switch {
	case key.Matches(msg, advanceBind):
		v, ok := m.selected()
		if !ok {
			return m, nil, true
		}
		next := v.CurrentStatus.Next()
		return m, m.change(fmt.Sprintf("#%d → %s", v.ID, next), func(ctx context.Context) error {
			_, err := m.ledger.Update(ctx, v.ID, "", next.String())
			return err
		}), true

	case key.Matches(msg, addBind):
		m.mode = adding
		m.inputErr = ""
		m.ti.SetValue("")
		m.ti.Placeholder = "New item description..."
		m.resize()
		return m, m.ti.Focus(), true

	case key.Matches(msg, editBind):
		v, ok := m.selected()
		if !ok {
			return m, nil, true
		}
		m.mode = editing
		m.editID = v.ID
		m.inputErr = ""
		m.ti.SetValue(v.Description)
		m.ti.CursorEnd()
		m.ti.Placeholder = "Edit item description..."
		m.resize()
		return m, m.ti.Focus(), true

	case key.Matches(msg, deleteBind):
		v, ok := m.selected()
		if !ok {
			return m, nil, true
		}
		return m, func() tea.Msg {
			return deletedMsg{view: v, err: m.ledger.Delete(m.ctx, v.ID)}
		}, true

	case key.Matches(msg, undoBind):
		if m.undo == nil {
			return m, nil, true
		}
		v := *m.undo
		m.undo = nil
		return m, func() tea.Msg {
			restored, err := m.ledger.Create(m.ctx, v.Description, v.CurrentStatus.String())
			if err != nil {
				return changedMsg{err: err}
			}
			return changedMsg{note: fmt.Sprintf("restored as #%d", restored.ID)}
		}, true

	case key.Matches(msg, historyBind):
		v, ok := m.selected()
		if !ok {
			return m, nil, true
		}
		return m, func() tea.Msg {
			events, err := m.ledger.History(m.ctx, v.ID)
			return historyMsg{view: v, events: events, err: err}
		}, true
	}
	return m, nil, false
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		desc, err := model.CleanDescription(m.ti.Value())
		if err != nil {
			m.inputErr = "Description must be 1-250 characters"
			return m, nil
		}
		var cmd tea.Cmd
		if m.mode == adding {
			cmd = m.change("added", func(ctx context.Context) error {
				_, err := m.ledger.Create(ctx, desc, "")
				return err
			})
		} else {
			id := m.editID
			cmd = m.change(fmt.Sprintf("#%d updated", id), func(ctx context.Context) error {
				_, err := m.ledger.Update(ctx, id, desc, "")
				return err
			})
		}
		m.closeInput()
		return m, cmd
	case "esc":
		m.closeInput()
		return m, nil
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m *Model) closeInput() {
	m.mode = browsing
	m.inputErr = ""
	m.ti.SetValue("")
	m.ti.Blur()
	m.resize()
}

func (m Model) change(note string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(m.ctx); err != nil {
			return changedMsg{err: err}
		}
		return changedMsg{note: note}
	}
}

func (m *Model) resize() {
	h := m.height - 4
	if m.mode == adding || m.mode == editing {
		h -= 3
	}
	if h < 3 {
		h = 3
	}
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	m.list.SetSize(w, h)
	m.ti.Width = w - 4
}

func (m Model) View() string {
	if m.mode == viewingHistory {
		return frameStyle.Render(m.historyView())
	}
	content := m.list.View()
	if m.mode == adding || m.mode == editing {
		bar := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
		title := "Add new item"
		if m.mode == editing {
			title = fmt.Sprintf("Edit item #%d", m.editID)
		}
		if m.inputErr != "" {
			title += "  " + errorStyle.Render(m.inputErr)
		}
		content += "\n" + bar.Render(title+"\n"+m.ti.View())
	}
	if m.flash != "" {
		content += "\n" + m.flash
	}
	return frameStyle.Render(content)
}

func (m Model) historyView() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", titleStyle.Render(fmt.Sprintf("History of #%d", m.historyOf.ID)), m.historyOf.Description)
	for _, ev := range m.history {
		fmt.Fprintf(&b, "%s %-10s %s\n",
			statusMark(ev.Status), ev.Status,
			mutedStyle.Render(ev.Timestamp.Local().Format(time.DateTime)))
	}
	b.WriteString("\n" + helpStyle.Render("esc back"))
	return b.String()
}

// header summarizes the list: one count per status plus the total.
func header(views []model.View) string {
	counts := make(map[model.Status]int, len(model.Statuses))
	for _, v := range views {
		counts[v.CurrentStatus]++
	}
	parts := []string{titleStyle.Render("Todos") + " "}
	for _, s := range model.Statuses {
		parts = append(parts, fmt.Sprintf("%s %d", statusMark(s), counts[s]))
	}
	parts = append(parts, fmt.Sprintf("%s %d", accentStyle.Render("Total"), len(views)))
	return strings.Join(parts, "  ")
}
