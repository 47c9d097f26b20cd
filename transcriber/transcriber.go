package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	ProviderWhisper = "whisper"
	ProviderGroq    = "groq"
	ProviderOpenAI  = "openai"
	ProviderFake    = "fake"
)

var ErrNoAudioData = errors.New("no audio data")

// FakeText is what the fake provider returns for every capture.
const FakeText = "testing one two three"

// EngineError is a failed transcription request. Retryable marks
// transport failures, rate limiting and server errors.
type EngineError struct {
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
	Err        error
}

func (e *EngineError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

func (e *EngineError) Unwrap() error { return e.Err }

// Options are per-request recognition hints.
type Options struct {
	Language      string // empty for auto-detect
	VAD           bool
	InitialPrompt string
}

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

type Segment struct {
	Text         string
	NoSpeechProb float64
	AvgLogProb   float64
	Start        float64
	End          float64
}

type Result struct {
	Text         string
	Language     string
	Duration     float64
	NoSpeechProb float64
	AvgLogProb   float64
	Segments     []Segment
	Metrics      *NetworkMetrics
	RateLimit    string
	Format       string
	EncodedBytes int
	Attempts     int
}

// Engine converts one finished PCM buffer (16-bit little-endian mono) to
// text.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, pcm []byte, opts Options) (*Result, error)
}

// HealthChecker is implemented by engines that can probe their backend.
type HealthChecker interface {
	Check(ctx context.Context) error
}

type Config struct {
	Provider      string
	URL           string
	APIKey        string
	Model         string
	Device        string
	ComputeType   string
	Format        string // upload container: flac or wav
	SampleRate    int
	Timeout       time.Duration
	Retries       int
	RetryInterval time.Duration
}

// New builds the engine named by cfg.Provider. Remote providers fall back
// to GROQ_API_KEY / OPENAI_API_KEY when no key is configured.
func New(cfg Config) (Engine, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderWhisper, "":
		return NewWhisper(cfg), nil
	case ProviderGroq:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("GROQ_API_KEY")
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("groq: set engine.api_key or GROQ_API_KEY")
		}
		return NewGroq(cfg), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai: set engine.api_key or OPENAI_API_KEY")
		}
		return NewOpenAI(cfg), nil
	case ProviderFake:
		return NewFake(FakeText, nil), nil
	default:
		return nil, fmt.Errorf("unknown engine provider %q", cfg.Provider)
	}
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// noSpeechThreshold matches whisper's own no_speech_threshold.
const noSpeechThreshold = 0.6

// dropSilentSegments removes segments the model itself flagged as
// non-speech and rebuilds the text from what remains.
func dropSilentSegments(r *Result) {
	if len(r.Segments) == 0 {
		return
	}
	kept := r.Segments[:0]
	var parts []string
	for _, s := range r.Segments {
		if s.NoSpeechProb >= noSpeechThreshold && s.AvgLogProb < -1.0 {
			continue
		}
		kept = append(kept, s)
		parts = append(parts, strings.TrimSpace(s.Text))
	}
	r.Segments = kept
	r.Text = strings.Join(parts, " ")
}

func summarizeSegments(r *Result) {
	if len(r.Segments) == 0 {
		return
	}
	var logProbSum float64
	for _, seg := range r.Segments {
		if seg.NoSpeechProb > r.NoSpeechProb {
			r.NoSpeechProb = seg.NoSpeechProb
		}
		logProbSum += seg.AvgLogProb
	}
	r.AvgLogProb = logProbSum / float64(len(r.Segments))
}
