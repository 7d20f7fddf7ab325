package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcriptFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

// RecognitionMetrics describes one speech-to-text round trip.
type RecognitionMetrics struct {
	Provider    string
	Format      string
	AudioS      float64
	RawKB       float64
	EncodedKB   float64
	EncodeMs    float64
	DNSMs       float64
	TLSMs       float64
	TTFBMs      float64
	TotalMs     float64
	ConnReused  bool
	TLSProtocol string
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absFromWD(flagPath)
	}

	// Priority 2: VOXNOTE_LOG_PATH environment variable
	if envPath := os.Getenv("VOXNOTE_LOG_PATH"); envPath != "" {
		return absFromWD(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absFromWD(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcriptPath := filepath.Join(dir, "transcribe_log.txt")
	transcriptFile, err = os.OpenFile(transcriptPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcriptFile != nil {
		transcriptFile.Close()
		transcriptFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Recognition(m RecognitionMetrics) {
	if !logReady {
		return
	}

	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}

	ev := diagLog.Info().
		Str("provider", m.Provider).
		Str("format", m.Format).
		Str("conn", connStatus)
	if m.TLSProtocol != "" {
		ev = ev.Str("tls_proto", m.TLSProtocol)
	}
	ev.Float64("audio_s", m.AudioS).
		Float64("raw_kb", m.RawKB).
		Float64("encoded_kb", m.EncodedKB).
		Float64("encode_ms", m.EncodeMs).
		Float64("dns_ms", m.DNSMs).
		Float64("tls_ms", m.TLSMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalMs).
		Msg("recognition")
}

// Utterance records the outcome of one synthesis item: "played",
// "failed", "aborted" or "init_failed".
func Utterance(id string, chars int, d time.Duration, outcome string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("id", id).
		Int("chars", chars).
		Float64("duration_ms", float64(d.Microseconds())/1000).
		Str("outcome", outcome).
		Msg("utterance")
}

func RecognizedText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcriptFile.WriteString(line)
}

func SessionStart(asr, tts, device string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("asr", asr).
		Str("tts", tts).
		Str("device", device).
		Msg("session_start")
}

func SessionEnd(chunks, utterances int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("chunks", chunks).
		Int("utterances", utterances).
		Msg("session_end")
}
