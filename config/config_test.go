package config

import (
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GROQ_API_KEY", "OPENAI_API_KEY", "DEEPGRAM_API_KEY",
		"VOXNOTE_GROQ_API_KEY", "VOXNOTE_OPENAI_API_KEY", "VOXNOTE_DEEPGRAM_API_KEY",
		"VOXNOTE_ASR", "VOXNOTE_TTS", "VOXNOTE_NOTES_DIR", "VOXNOTE_TTS_RATE", "VOXNOTE_BEEP",
		"ASR", "TTS", "NOTES_DIR", "TTS_RATE", "BEEP",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rate != 175 || !cfg.Beep || cfg.TranscriptQueueSize != 256 || cfg.UtteranceQueueSize != 64 {
		t.Errorf("defaults = %+v", cfg)
	}
	if runtime.GOOS == "linux" && cfg.NotesDir != "/tmp/xdg/voxnote/notes" {
		t.Errorf("NotesDir = %q", cfg.NotesDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadPrefixedBeatsBare(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "bare")
	t.Setenv("OPENAI_API_KEY", "bare-openai")
	t.Setenv("VOXNOTE_OPENAI_API_KEY", "prefixed")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GroqAPIKey != "bare" {
		t.Errorf("GroqAPIKey = %q, want bare fallback", cfg.GroqAPIKey)
	}
	if cfg.OpenAIAPIKey != "prefixed" {
		t.Errorf("OpenAIAPIKey = %q, want prefixed", cfg.OpenAIAPIKey)
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	os.WriteFile(path, []byte("VOXNOTE_ASR=deepgram\nDEEPGRAM_API_KEY=dg\nVOXNOTE_NOTES_DIR=/tmp/n\n"), 0644)
	t.Cleanup(func() {
		os.Unsetenv("VOXNOTE_ASR")
		os.Unsetenv("DEEPGRAM_API_KEY")
		os.Unsetenv("VOXNOTE_NOTES_DIR")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ASR != "deepgram" || cfg.DeepgramAPIKey != "dg" || cfg.NotesDir != "/tmp/n" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOXNOTE_TTS", "openai")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	if err := fs.Parse([]string{"-tts", "espeak", "-beep=false", "-notes", "/x"}); err != nil {
		t.Fatal(err)
	}
	if cfg.TTS != "espeak" || cfg.Beep || cfg.NotesDir != "/x" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	base := Config{Rate: 175, TranscriptQueueSize: 1, UtteranceQueueSize: 1}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(*Config) {}, false},
		{"bad asr", func(c *Config) { c.ASR = "vosk" }, true},
		{"bad tts", func(c *Config) { c.TTS = "say" }, true},
		{"negative rate", func(c *Config) { c.Rate = -1 }, true},
		{"zero queue", func(c *Config) { c.UtteranceQueueSize = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
