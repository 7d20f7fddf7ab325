package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("VOXNOTE_LOG_PATH", "/tmp/voxnote-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/voxnote-env-log" {
		t.Errorf("got %q, want /tmp/voxnote-env-log", got)
	}
}

func TestResolveDirFlagBeatsEnv(t *testing.T) {
	t.Setenv("VOXNOTE_LOG_PATH", "/tmp/from-env")
	got, err := ResolveDir("/tmp/from-flag")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/from-flag" {
		t.Errorf("got %q, want /tmp/from-flag", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("VOXNOTE_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "voxnote") {
		t.Errorf("default dir %q does not mention voxnote", got)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "transcribe_log.txt"} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestRecognizedText(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	RecognizedText("hello world")

	data, err := os.ReadFile(filepath.Join(tmp, "transcribe_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "hello world") {
		t.Errorf("transcribe_log.txt missing text, got: %q", line)
	}
	// format: "2006-01-02 15:04:05\t[pid]\ttext\n"
	if strings.Count(line, "\t") != 2 {
		t.Errorf("expected tab-separated format, got: %q", line)
	}
}

func TestStructuredEvents(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	SessionStart("groq", "espeak", "default")
	Recognition(RecognitionMetrics{Provider: "groq", Format: "flac", AudioS: 1.5, ConnReused: true})
	Utterance("abc", 11, 250*time.Millisecond, "played")
	SessionEnd(3, 1)
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"session_start", "asr=groq", "recognition", "conn=reused", "utterance", "outcome=played", "session_end", "chunks=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnostics log missing %q:\n%s", want, out)
		}
	}
}

func TestNoopBeforeInit(t *testing.T) {
	setupLogDir(t)
	// none of these may panic without Init
	Info("x")
	Warnf("%d", 1)
	RecognizedText("x")
	Utterance("id", 1, time.Second, "played")
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}

func TestDefaultDirPerPlatform(t *testing.T) {
	env := map[string]string{}
	getenv := func(k string) string { return env[k] }

	tests := []struct {
		goos string
		env  map[string]string
		want string
	}{
		{"darwin", nil, filepath.Join("/h", "Library", "Logs", "voxnote")},
		{"linux", nil, filepath.Join("/h", ".config", "voxnote", "logs")},
		{"linux", map[string]string{"XDG_CONFIG_HOME": "/xdg"}, filepath.Join("/xdg", "voxnote", "logs")},
		{"windows", nil, filepath.Join("/h", "AppData", "Local", "voxnote", "logs")},
		{"windows", map[string]string{"LOCALAPPDATA": "/lad"}, filepath.Join("/lad", "voxnote", "logs")},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			clear(env)
			for k, v := range tt.env {
				env[k] = v
			}
			if got := defaultDir(tt.goos, "/h", getenv); got != tt.want {
				t.Errorf("defaultDir(%s) = %q, want %q", tt.goos, got, tt.want)
			}
		})
	}
}
