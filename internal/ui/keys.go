package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings.
type keyMap struct {
	// Global
	Quit key.Binding
	Help key.Binding
	Back key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding

	// List actions
	Pick       key.Binding
	Undo       key.Binding
	Missing    key.Binding
	Unmissing  key.Binding
	Reserve    key.Binding
	Toggle     key.Binding
	Card       key.Binding
	Search     key.Binding
	Game       key.Binding
	ShowPicked key.Binding
	ShowMiss   key.Binding
	ShowAll    key.Binding
	Name       key.Binding
	Refresh    key.Binding
	Assist     key.Binding

	// Assisted picking
	ModeTop    key.Binding
	ModeBottom key.Binding
	ModeMiddle key.Binding
	ActPicked  key.Binding
	ActAll     key.Binding
	ActSkip    key.Binding
	ActMissing key.Binding
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pick, k.Undo, k.Missing, k.Reserve, k.Toggle, k.Search, k.Assist, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.Back},
		{k.Pick, k.Undo, k.Missing, k.Unmissing, k.Card},
		{k.Reserve, k.Toggle, k.Name, k.Refresh},
		{k.Search, k.Game, k.ShowPicked, k.ShowMiss, k.ShowAll},
		{k.Assist, k.ModeTop, k.ModeBottom, k.ModeMiddle},
		{k.ActPicked, k.ActAll, k.ActSkip, k.ActMissing},
		{k.Help, k.Quit},
	}
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:   key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Top:    key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom: key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),

		Pick:       key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pick")),
		Undo:       key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo")),
		Missing:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mark missing")),
		Unmissing:  key.NewBinding(key.WithKeys("M"), key.WithHelp("M", "unmark missing")),
		Reserve:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reserve set")),
		Toggle:     key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "collapse set")),
		Card:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "card details")),
		Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Game:       key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "game filter")),
		ShowPicked: key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "show picked")),
		ShowMiss:   key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "missing only")),
		ShowAll:    key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "show all")),
		Name:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "operator name")),
		Refresh:    key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reload list")),
		Assist:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "assisted picking")),

		ModeTop:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "top down")),
		ModeBottom: key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "bottom up")),
		ModeMiddle: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "middle out")),
		ActPicked:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "picked one")),
		ActAll:     key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "picked all")),
		ActSkip:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip")),
		ActMissing: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "missing")),
	}
}
