package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up           key.Binding
	Down         key.Binding
	Left         key.Binding
	Right        key.Binding
	Open         key.Binding
	Back         key.Binding
	History      key.Binding
	NextRegistry key.Binding
	PrevRegistry key.Binding
	Refresh      key.Binding
	Quit         key.Binding
}

// h is taken by the history toggle, so horizontal movement is arrows
// and l only.
var keys = keyMap{
	Up:           key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑↓", "navigate")),
	Down:         key.NewBinding(key.WithKeys("down", "j")),
	Left:         key.NewBinding(key.WithKeys("left"), key.WithHelp("←→", "move")),
	Right:        key.NewBinding(key.WithKeys("right", "l")),
	Open:         key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "stage")),
	Back:         key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	History:      key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "history")),
	NextRegistry: key.NewBinding(key.WithKeys("]", "tab"), key.WithHelp("[ ]", "registry")),
	PrevRegistry: key.NewBinding(key.WithKeys("[", "shift+tab")),
	Refresh:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// pageKeys relabels left/right for the promotions table.
var pageKeys = struct {
	Pages key.Binding
}{
	Pages: key.NewBinding(key.WithKeys("left", "right"), key.WithHelp("←→", "page")),
}
