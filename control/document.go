// Package control holds the UI-side command layer: the transcript poller,
// the button state machine and the orchestrator that dispatches user
// commands to the workers.
package control

import "strings"

// Document is the editable note. It is only ever touched from the UI
// goroutine.
type Document interface {
	Text() string
	SetText(text string)
	Append(text string)
}

// Buffer is a plain in-memory Document.
type Buffer struct {
	b strings.Builder
}

func (d *Buffer) Text() string { return d.b.String() }

func (d *Buffer) SetText(text string) {
	d.b.Reset()
	d.b.WriteString(text)
}

func (d *Buffer) Append(text string) { d.b.WriteString(text) }
