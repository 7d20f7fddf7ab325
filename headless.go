package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"voxnote/control"
)

const headlessTick = 100 * time.Millisecond

// runHeadless drives the app from a line script on in. The reading
// goroutine acts as the UI goroutine: it alone touches the document and
// polls the transcript queue between commands.
//
//	RECORD | STOP | SPEAK [text] | SAVE [name] | LOAD name | NEW
//	SLEEP ms | WAIT [ms] | WAIT_TEXT [ms] | PRINT | BUTTONS | QUIT
func runHeadless(a *app, in io.Reader, out io.Writer) int {
	doc := &control.Buffer{}
	h := &headless{app: a, doc: doc, out: out}
	defer a.shutdown()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		a.poll(doc)
		if cmd == "QUIT" {
			return 0
		}
		if err := h.exec(cmd, arg); err != nil {
			fmt.Fprintf(out, "ERROR %v\n", err)
		}
	}
	return 0
}

type headless struct {
	app *app
	doc *control.Buffer
	out io.Writer
}

func (h *headless) exec(cmd, arg string) error {
	o := h.app.orch
	switch cmd {
	case "RECORD":
		o.Record()
	case "STOP":
		o.Stop()
	case "SPEAK":
		text := arg
		if text == "" {
			text = h.doc.Text()
		}
		h.app.speak(text)
	case "SAVE":
		o.Save(h.doc, arg)
	case "LOAD":
		o.Load(h.doc, arg)
	case "NEW":
		o.New(h.doc)
	case "PRINT":
		fmt.Fprintf(h.out, "TEXT %s\n", h.doc.Text())
	case "BUTTONS":
		b := o.Buttons()
		fmt.Fprintf(h.out, "BUTTONS record=%t stop=%t speak=%t\n", b.Record, b.Stop, b.Speak)
	case "SLEEP":
		ms, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("SLEEP: %w", err)
		}
		h.pollFor(time.Duration(ms)*time.Millisecond, func() bool { return false })
	case "WAIT":
		// Until neither worker has anything left to do.
		d, err := timeoutArg(arg)
		if err != nil {
			return err
		}
		// Idle must hold on two consecutive polls: an utterance is briefly
		// neither pending nor speaking between dequeue and playback.
		quiet := 0
		idle := func() bool {
			if o.Buttons().Stop {
				quiet = 0
			} else {
				quiet++
			}
			return quiet >= 2
		}
		if !h.pollFor(d, idle) {
			return fmt.Errorf("WAIT: timed out after %v", d)
		}
	case "WAIT_TEXT":
		d, err := timeoutArg(arg)
		if err != nil {
			return err
		}
		if !h.pollFor(d, func() bool { return strings.TrimSpace(h.doc.Text()) != "" }) {
			return fmt.Errorf("WAIT_TEXT: timed out after %v", d)
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// pollFor keeps polling the transcript queue until done reports true or d
// elapses. It returns done's final result.
func (h *headless) pollFor(d time.Duration, done func() bool) bool {
	deadline := time.Now().Add(d)
	for {
		h.app.poll(h.doc)
		if done() {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(min(headlessTick, time.Until(deadline)))
	}
}

func timeoutArg(arg string) (time.Duration, error) {
	if arg == "" {
		return 30 * time.Second, nil
	}
	ms, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("bad timeout %q: %w", arg, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
