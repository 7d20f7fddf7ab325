// Package config loads settings from an optional .env file, VOXNOTE_*
// environment variables and command-line flags, in increasing priority.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const Prefix = "VOXNOTE"

// Config fields tagged with an envconfig name are read from
// VOXNOTE_<NAME> first and then from the bare <NAME>, so the usual
// provider variables such as GROQ_API_KEY work unchanged.
type Config struct {
	GroqAPIKey     string `envconfig:"GROQ_API_KEY"`
	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY"`

	ASR      string `envconfig:"ASR"`          // groq, openai, deepgram; empty picks the first configured
	Language string `envconfig:"ASR_LANGUAGE"` // ISO-639-1, empty lets the provider detect
	TTS      string `envconfig:"TTS"`          // espeak, openai; empty picks openai when keyed
	Voice    string `envconfig:"TTS_VOICE"`
	Rate     int    `envconfig:"TTS_RATE" default:"175"`

	Device   string `envconfig:"DEVICE"` // substring of the capture device name
	NotesDir string `envconfig:"NOTES_DIR"`
	Beep     bool   `envconfig:"BEEP" default:"true"`

	MetricsAddr string `envconfig:"METRICS_ADDR"`

	TranscriptQueueSize int `envconfig:"TRANSCRIPT_QUEUE_SIZE" default:"256"`
	UtteranceQueueSize  int `envconfig:"UTTERANCE_QUEUE_SIZE" default:"64"`
}

// Load reads envFile if it exists and then the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.NotesDir == "" {
		dir, err := DefaultNotesDir()
		if err != nil {
			return nil, err
		}
		cfg.NotesDir = dir
	}
	return &cfg, nil
}

// RegisterFlags binds flags that override the loaded values.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ASR, "asr", c.ASR, "Speech recognition provider: groq, openai, deepgram")
	fs.StringVar(&c.Language, "lang", c.Language, "Recognition language code (e.g. en, de)")
	fs.StringVar(&c.TTS, "tts", c.TTS, "Speech engine: espeak, openai")
	fs.StringVar(&c.Voice, "voice", c.Voice, "Speech voice name")
	fs.IntVar(&c.Rate, "rate", c.Rate, "Speech rate in words per minute (espeak)")
	fs.StringVar(&c.Device, "device", c.Device, "Capture device name (substring match)")
	fs.StringVar(&c.NotesDir, "notes", c.NotesDir, "Notes directory")
	fs.BoolVar(&c.Beep, "beep", c.Beep, "Play start/stop cues when recording")
	fs.StringVar(&c.MetricsAddr, "metrics", c.MetricsAddr, "Serve Prometheus metrics and pprof on this address (e.g. localhost:6060)")
}

var (
	asrProviders = map[string]bool{"": true, "groq": true, "openai": true, "deepgram": true}
	ttsEngines   = map[string]bool{"": true, "espeak": true, "openai": true}
)

func (c *Config) Validate() error {
	if !asrProviders[c.ASR] {
		return fmt.Errorf("unknown speech recognition provider %q", c.ASR)
	}
	if !ttsEngines[c.TTS] {
		return fmt.Errorf("unknown speech engine %q", c.TTS)
	}
	if c.Rate < 0 {
		return fmt.Errorf("speech rate must not be negative, got %d", c.Rate)
	}
	if c.TranscriptQueueSize < 1 || c.UtteranceQueueSize < 1 {
		return fmt.Errorf("queue sizes must be positive")
	}
	return nil
}

// DefaultNotesDir follows the platform's per-user data location.
func DefaultNotesDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "voxnote", "notes"), nil
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, "voxnote", "notes"), nil
	}
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "voxnote", "notes"), nil
}
