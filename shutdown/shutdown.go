// Package shutdown runs a callback once when the process is asked to stop.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
)

// OnSignal calls fn in its own goroutine on the first termination signal.
// The returned stop function unregisters the handler; fn is not called
// after stop returns.
func OnSignal(fn func()) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	return watch(ch, fn)
}

func watch(ch chan os.Signal, fn func()) func() {
	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-ch:
			fn()
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
			<-done
		})
	}
}
