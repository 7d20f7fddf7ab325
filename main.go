package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"voxnote/audio"
	"voxnote/config"
	"voxnote/doctor"
	"voxnote/log"
	"voxnote/metrics"
	"voxnote/shutdown"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg.RegisterFlags(flag.CommandLine)
	setupFlag := flag.Bool("setup", false, "Select microphone device interactively")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	headlessFlag := flag.Bool("headless", false, "Read commands from stdin instead of running the terminal UI")
	wavFlag := flag.String("wav", "", "Use a WAV file as the microphone (headless testing)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("voxnote %s\n", version)
		return 0
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if cfg.MetricsAddr != "" {
		go func() {
			log.Info("metrics server listening on http://" + cfg.MetricsAddr + "/metrics")
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				log.Errorf("metrics server error: %v", err)
			}
		}()
	}

	actx, err := openAudio(*wavFlag)
	if err != nil {
		// The editor and persistence still work without audio.
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: audio unavailable: %v\n", err)
	}
	if actx != nil {
		defer actx.Close()
	}

	if *setupFlag && actx != nil && *wavFlag == "" {
		dev, err := audio.SelectDevice(actx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\n", err)
		} else if dev != nil {
			cfg.Device = dev.Name
		}
	}

	deps, warnings := resolveDeps(cfg, actx)
	for _, w := range warnings {
		log.Warnf("%v", w)
		if *headlessFlag || *doctorFlag {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", w)
		}
	}

	if *doctorFlag {
		return doctor.Run(context.Background(), doctor.Options{
			Audio:       actx,
			Device:      deps.device,
			Listen:      deps.listen,
			Transcriber: deps.transcriber,
			Speech:      deps.speech,
			Interactive: true,
		})
	}

	if *headlessFlag {
		a, err := newApp(cfg, deps, &lineNotifier{w: os.Stdout})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		log.SessionStart(a.asrName(), a.ttsName(), a.deviceName())
		return runHeadless(a, os.Stdin, os.Stdout)
	}
	return runTUI(cfg, deps, warnings)
}

func runTUI(cfg *config.Config, deps appDeps, warnings []error) int {
	var p *tea.Program
	notify := newTeaNotifier(func(msg tea.Msg) { p.Send(msg) })

	a, err := newApp(cfg, deps, notify)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	log.SessionStart(a.asrName(), a.ttsName(), a.deviceName())

	model := newTUIModel(a)
	p = NewTUIProgram(model)
	for _, w := range warnings {
		notify.Status(fmt.Sprintf("Warning: %v", w))
	}

	stop := shutdown.OnSignal(p.Quit)
	_, err = p.Run()
	stop()
	a.shutdown()
	notify.Close()
	if err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func openAudio(wavPath string) (audio.Context, error) {
	if wavPath != "" {
		ctx, err := audio.NewFakeContextFromWAV(wavPath, true)
		if err != nil {
			return nil, err
		}
		return ctx, nil
	}
	return audio.NewContext()
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}
