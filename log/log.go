// Package log writes two files into the log directory: a zerolog
// diagnostics stream and a plain transcript of everything dictated.
// Every function is a no-op until Init succeeds.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	diagnosticsFile = "diagnostics_log.txt"
	transcriptFile  = "transcribe_log.txt"
	timeLayout      = "2006-01-02 15:04:05"
)

type files struct {
	diag       zerolog.Logger
	diagF      *os.File
	transcript *os.File
	pid        int
}

var (
	mu    sync.Mutex
	ready atomic.Bool
	out   files
	dir   string
)

// Metrics describes one engine round trip.
type Metrics struct {
	AudioLengthS   float64
	RawSizeKB      float64
	EncodedSizeKB  float64
	CompressionPct float64
	EncodeTimeMs   float64
	DNSTimeMs      float64
	TLSTimeMs      float64
	TTFBMs         float64
	TotalTimeMs    float64
	Attempts       int
}

// ResolveDir picks the log directory: the flag value, then
// SCRIBE_LOG_PATH, then the platform default. Relative paths resolve
// against the working directory.
func ResolveDir(flagPath string) (string, error) {
	for _, p := range []string{flagPath, os.Getenv("SCRIBE_LOG_PATH")} {
		if p != "" {
			return filepath.Abs(p)
		}
	}
	return defaultDir(runtime.GOOS)
}

func defaultDir(goos string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "scribe"), nil
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, "scribe", "logs"), nil
	default:
		base := os.Getenv("XDG_STATE_HOME")
		if base == "" {
			base = filepath.Join(home, ".local", "state")
		}
		return filepath.Join(base, "scribe", "logs"), nil
	}
}

func SetDir(d string) { dir = d }

func Dir() string { return dir }

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	return nil
}

func openAppend(name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func Init() error {
	mu.Lock()
	defer mu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}
	diagF, err := openAppend(diagnosticsFile)
	if err != nil {
		return err
	}
	transcript, err := openAppend(transcriptFile)
	if err != nil {
		diagF.Close()
		return err
	}

	pid := os.Getpid()
	w := zerolog.ConsoleWriter{Out: diagF, TimeFormat: timeLayout, NoColor: true}
	out = files{
		diag:       zerolog.New(w).With().Timestamp().Int("pid", pid).Logger(),
		diagF:      diagF,
		transcript: transcript,
		pid:        pid,
	}
	ready.Store(true)
	return nil
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	ready.Store(false)
	for _, f := range []*os.File{out.diagF, out.transcript} {
		if f != nil {
			f.Close()
		}
	}
	out = files{}
}

// event returns nil when logging is off; zerolog treats a nil event as
// disabled.
func event(level zerolog.Level) *zerolog.Event {
	if !ready.Load() {
		return nil
	}
	return out.diag.WithLevel(level)
}

func Info(msg string)                   { event(zerolog.InfoLevel).Msg(msg) }
func Infof(format string, args ...any)  { event(zerolog.InfoLevel).Msgf(format, args...) }
func Warn(msg string)                   { event(zerolog.WarnLevel).Msg(msg) }
func Warnf(format string, args ...any)  { event(zerolog.WarnLevel).Msgf(format, args...) }
func Error(msg string)                  { event(zerolog.ErrorLevel).Msg(msg) }
func Errorf(format string, args ...any) { event(zerolog.ErrorLevel).Msgf(format, args...) }

// Event logs a named event with structured fields.
func Event(name string, fields map[string]any) {
	event(zerolog.InfoLevel).Fields(fields).Msg(name)
}

func TranscriptionMetrics(m Metrics, engine, format string, connReused bool, tlsProto string) {
	conn := "new"
	if connReused {
		conn = "reused"
	}
	ev := event(zerolog.InfoLevel).
		Str("engine", engine).
		Str("format", format).
		Str("conn", conn)
	if tlsProto != "" {
		ev = ev.Str("tls_proto", tlsProto)
	}
	ev.Float64("audio_s", m.AudioLengthS).
		Float64("raw_kb", m.RawSizeKB).
		Float64("encoded_kb", m.EncodedSizeKB).
		Float64("compression_pct", m.CompressionPct).
		Float64("encode_ms", m.EncodeTimeMs).
		Float64("dns_ms", m.DNSTimeMs).
		Float64("tls_ms", m.TLSTimeMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalTimeMs).
		Int("attempts", m.Attempts).
		Msg("transcription")
}

// TranscriptionText appends one "time\t[pid]\ttext" line to the
// transcript file.
func TranscriptionText(text string) {
	if !ready.Load() {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if out.transcript == nil {
		return
	}
	fmt.Fprintf(out.transcript, "%s\t[%d]\t%s\n", time.Now().Format(timeLayout), out.pid, text)
}

// UtteranceDone records the outcome of one dictation cycle.
func UtteranceDone(id, outcome string, audioS float64, chars int, err error) {
	level := zerolog.InfoLevel
	if err != nil {
		level = zerolog.WarnLevel
	}
	event(level).Err(err).
		Str("id", id).
		Str("outcome", outcome).
		Float64("audio_s", audioS).
		Int("chars", chars).
		Msg("utterance")
}

func SessionStart(engine, device string) {
	event(zerolog.InfoLevel).Str("engine", engine).Str("device", device).Msg("session_start")
}

func SessionEnd(count int) {
	event(zerolog.InfoLevel).Int("count", count).Msg("session_end")
}
