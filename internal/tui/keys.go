package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit, Back, Forward                  key.Binding
	Tabs                                 []key.Binding
	Sandbox, Production, Reset           key.Binding
	ReloadLog, ClearLog, Level, Category key.Binding
	Yes, No                              key.Binding
	Dismiss                              key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c")),
	Back:    key.NewBinding(key.WithKeys("[", "alt+left")),
	Forward: key.NewBinding(key.WithKeys("]", "alt+right")),
	Tabs: []key.Binding{
		key.NewBinding(key.WithKeys("1")),
		key.NewBinding(key.WithKeys("2")),
		key.NewBinding(key.WithKeys("3")),
		key.NewBinding(key.WithKeys("4")),
		key.NewBinding(key.WithKeys("5")),
		key.NewBinding(key.WithKeys("6")),
		key.NewBinding(key.WithKeys("7")),
	},
	Sandbox:    key.NewBinding(key.WithKeys("s")),
	Production: key.NewBinding(key.WithKeys("p")),
	Reset:      key.NewBinding(key.WithKeys("r")),
	ReloadLog:  key.NewBinding(key.WithKeys("l")),
	ClearLog:   key.NewBinding(key.WithKeys("c")),
	Level:      key.NewBinding(key.WithKeys("f")),
	Category:   key.NewBinding(key.WithKeys("g")),
	Yes:        key.NewBinding(key.WithKeys("y", "enter")),
	No:         key.NewBinding(key.WithKeys("n", "esc")),
	Dismiss:    key.NewBinding(key.WithKeys("x")),
}
