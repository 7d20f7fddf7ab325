package main

import (
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

type StatusMsg struct{ Text string }
type ErrorMsg struct {
	Title string
	Err   error
}
type StateMsg struct{}

// teaNotifier forwards worker notifications to the UI goroutine in the
// order they were raised. Send on a tea.Program blocks until the event
// loop reads it, so calls only enqueue and one goroutine does the sending.
type teaNotifier struct {
	send func(tea.Msg)

	mu      sync.Mutex
	cond    *sync.Cond
	pending []tea.Msg
	closed  bool
	done    chan struct{}
}

func newTeaNotifier(send func(tea.Msg)) *teaNotifier {
	n := &teaNotifier{send: send, done: make(chan struct{})}
	n.cond = sync.NewCond(&n.mu)
	go n.loop()
	return n
}

func (n *teaNotifier) loop() {
	defer close(n.done)
	for {
		n.mu.Lock()
		for len(n.pending) == 0 && !n.closed {
			n.cond.Wait()
		}
		if len(n.pending) == 0 {
			n.mu.Unlock()
			return
		}
		msg := n.pending[0]
		n.pending = n.pending[1:]
		n.mu.Unlock()
		n.send(msg)
	}
}

func (n *teaNotifier) push(msg tea.Msg) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.pending = append(n.pending, msg)
	n.cond.Signal()
}

func (n *teaNotifier) Status(text string)            { n.push(StatusMsg{Text: text}) }
func (n *teaNotifier) Error(title string, err error) { n.push(ErrorMsg{Title: title, Err: err}) }
func (n *teaNotifier) StateChanged()                 { n.push(StateMsg{}) }

// Close flushes what is already queued and stops the sender.
func (n *teaNotifier) Close() {
	n.mu.Lock()
	n.closed = true
	n.cond.Signal()
	n.mu.Unlock()
	<-n.done
}

// lineNotifier prints notifications one per line for headless mode.
type lineNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func (n *lineNotifier) Status(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "STATUS %s\n", text)
}

func (n *lineNotifier) Error(title string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "ERROR %s: %v\n", title, err)
}

func (n *lineNotifier) StateChanged() {}
