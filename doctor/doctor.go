package doctor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"voxnote/audio"
	"voxnote/listen"
	"voxnote/speech"
	"voxnote/transcriber"
)

const speechCheckText = "Voice notes is working."

type Options struct {
	Audio       audio.Context
	Device      *audio.DeviceInfo
	Listen      listen.Config
	Transcriber transcriber.Transcriber
	Speech      speech.Factory

	// Interactive asks the user to confirm recognized and spoken output.
	Interactive   bool
	SkipClipboard bool

	In  io.Reader
	Out io.Writer
}

type doctor struct {
	opts   Options
	out    io.Writer
	in     *bufio.Reader
	stream *listen.Stream
}

// Run executes the diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(ctx context.Context, opts Options) int {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Listen.SampleRate == 0 {
		opts.Listen = listen.DefaultConfig()
	}
	if opts.Interactive {
		defer guardTerminal()()
	}

	d := &doctor{opts: opts, out: opts.Out, in: bufio.NewReader(opts.In)}
	defer func() {
		if d.stream != nil {
			d.stream.Close()
		}
	}()

	fmt.Fprintln(d.out, "voxnote doctor - system diagnostics")
	fmt.Fprintln(d.out, "===================================")

	allPass := d.checkMicrophone()
	if allPass && !d.checkRecognition(ctx) {
		allPass = false
	}
	if !d.checkSpeech(ctx) {
		allPass = false
	}
	if !opts.SkipClipboard && !d.checkClipboard() {
		allPass = false
	}

	fmt.Fprintln(d.out)
	if allPass {
		fmt.Fprintln(d.out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(d.out, "Some checks failed. See details above.")
	return 1
}

func (d *doctor) pass(format string, args ...any) bool {
	fmt.Fprintf(d.out, "  PASS: "+format+"\n", args...)
	return true
}

func (d *doctor) fail(format string, args ...any) bool {
	fmt.Fprintf(d.out, "  FAIL: "+format+"\n", args...)
	return false
}

func (d *doctor) confirm(question string) bool {
	if !d.opts.Interactive {
		return true
	}
	fmt.Fprintf(d.out, "%s [y/n]: ", question)
	answer, _ := d.in.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func (d *doctor) checkMicrophone() bool {
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, "[1/4] Microphone")

	if d.opts.Audio == nil {
		return d.fail("no audio backend")
	}
	stream, err := listen.NewMicrophone(d.opts.Audio, d.opts.Device, d.opts.Listen).Open()
	if err != nil {
		return d.fail("cannot open microphone: %v", err)
	}
	d.stream = stream
	fmt.Fprintf(d.out, "  Using device: %s\n", stream.DeviceName())

	fmt.Fprintln(d.out, "  Calibrating for ambient noise, stay quiet...")
	if err := stream.Calibrate(time.Second); err != nil {
		return d.fail("calibration: %v", err)
	}
	return d.pass("energy threshold %.4f", stream.Threshold())
}

func (d *doctor) checkRecognition(ctx context.Context) bool {
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, "[2/4] Speech recognition")

	if d.opts.Transcriber == nil {
		return d.fail("no speech recognition provider configured (set GROQ_API_KEY, OPENAI_API_KEY or DEEPGRAM_API_KEY)")
	}
	fmt.Fprintf(d.out, "  Provider: %s\n", d.opts.Transcriber.Name())
	fmt.Fprintln(d.out, "  Say a short sentence...")

	phrase, err := d.stream.Listen(5*time.Second, 10*time.Second)
	if errors.Is(err, listen.ErrWaitTimeout) {
		return d.fail("no speech detected within 5s")
	}
	if err != nil {
		return d.fail("listening: %v", err)
	}
	fmt.Fprintf(d.out, "  Captured %.1fs, recognizing...\n", audio.Duration(phrase, d.opts.Listen.SampleRate))

	text, err := d.opts.Transcriber.Recognize(ctx, phrase)
	if errors.Is(err, transcriber.ErrNoMatch) {
		return d.fail("could not understand audio")
	}
	if err != nil {
		return d.fail("recognition: %v", err)
	}
	fmt.Fprintf(d.out, "  Recognized: %s\n", text)
	if !d.confirm("Is this correct?") {
		return d.fail("recognition not confirmed")
	}
	return d.pass("recognition")
}

func (d *doctor) checkSpeech(ctx context.Context) bool {
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, "[3/4] Speech output")

	if d.opts.Speech == nil {
		return d.fail("no speech engine available")
	}
	eng, err := d.opts.Speech()
	if err != nil {
		return d.fail("speech engine init: %v", err)
	}
	defer eng.Close()

	if err := eng.Speak(ctx, speechCheckText); err != nil {
		return d.fail("speaking: %v", err)
	}
	if !d.confirm(fmt.Sprintf("Did you hear %q?", speechCheckText)) {
		return d.fail("speech output not confirmed")
	}
	return d.pass("speech output")
}

func (d *doctor) checkClipboard() bool {
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, "[4/4] Clipboard")

	if clipboard.Unsupported {
		fmt.Fprintln(d.out, "  SKIP: no clipboard utility found")
		return true
	}
	saved, _ := clipboard.ReadAll()
	defer clipboard.WriteAll(saved)

	const sentinel = "voxnote-doctor-check"
	if err := clipboard.WriteAll(sentinel); err != nil {
		return d.fail("clipboard write: %v", err)
	}
	got, err := clipboard.ReadAll()
	if err != nil {
		return d.fail("clipboard read: %v", err)
	}
	if got != sentinel {
		return d.fail("clipboard round trip got %q, want %q", got, sentinel)
	}
	return d.pass("clipboard round trip")
}
