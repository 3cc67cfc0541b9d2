// Package hotkey watches for the global Ctrl+Shift+M chord.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

const Chord = "Ctrl+Shift+M"
