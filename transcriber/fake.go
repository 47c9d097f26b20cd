package transcriber

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Fake returns canned text. It records every call so tests can assert on
// the audio and options the pipeline sent.
type Fake struct {
	mu    sync.Mutex
	text  string
	err   error
	delay time.Duration
	calls []FakeCall
}

type FakeCall struct {
	PCMBytes int
	Options  Options
}

func NewFake(text string, err error) *Fake {
	return &Fake{text: text, err: err}
}

// WithDelay makes Transcribe block for d or until ctx is done.
func (f *Fake) WithDelay(d time.Duration) *Fake {
	f.delay = d
	return f
}

func (f *Fake) Name() string { return ProviderFake }

func (f *Fake) Check(context.Context) error { return nil }

func (f *Fake) Transcribe(ctx context.Context, pcm []byte, opts Options) (*Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{PCMBytes: len(pcm), Options: opts})
	f.mu.Unlock()

	if len(pcm) == 0 {
		return nil, ErrNoAudioData
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, fmt.Errorf("fake transcriber error: %w", f.err)
	}
	return &Result{
		Text:     f.text,
		Language: opts.Language,
		Duration: float64(len(pcm)/2) / 16000,
		Metrics:  &NetworkMetrics{Total: 10 * time.Millisecond},
		Format:   "pcm",
		Attempts: 1,
	}, nil
}

func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
