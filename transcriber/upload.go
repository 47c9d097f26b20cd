package transcriber

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"scribe/encoder"
	"scribe/log"
)

const (
	defaultTimeout       = 120 * time.Second
	defaultRetryInterval = 300 * time.Millisecond
)

// baseEngine holds what every HTTP upload engine shares: the traced
// client, the upload format and the retry policy.
type baseEngine struct {
	name          string
	client        *TracedClient
	apiURL        string
	format        string
	sampleRate    int
	retries       int
	retryInterval time.Duration
}

func newBaseEngine(name, apiURL string, cfg Config) baseEngine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = encoder.SampleRate
	}
	format := cfg.Format
	if format == "" {
		format = encoder.FormatFLAC
	}
	return baseEngine{
		name:          name,
		client:        NewTracedClient(timeout),
		apiURL:        apiURL,
		format:        format,
		sampleRate:    sampleRate,
		retries:       max(cfg.Retries, 0),
		retryInterval: interval,
	}
}

func (b *baseEngine) Name() string { return b.name }

// multipartForm is a request body built once and replayed per attempt.
type multipartForm struct {
	body        []byte
	contentType string
}

func newMultipartForm(fileField string, audio *encoder.Encoded, fields map[string]string) (*multipartForm, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(fileField, "audio."+audio.Format)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, err
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := writer.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return &multipartForm{body: body.Bytes(), contentType: writer.FormDataContentType()}, nil
}

func (b *baseEngine) encode(pcm []byte) (*encoder.Encoded, error) {
	if len(pcm) < 2 {
		return nil, ErrNoAudioData
	}
	audio, err := encoder.Encode(pcm, b.sampleRate, b.format)
	if err != nil {
		return nil, &EngineError{Provider: b.name, Message: "encoding audio", Err: err}
	}
	return audio, nil
}

// post sends form to url, retrying transport errors, 429 and 5xx with
// exponential backoff. Other statuses fail immediately.
func (b *baseEngine) post(ctx context.Context, url string, form *multipartForm, header http.Header) (*TracedResponse, int, error) {
	attempts := 0
	op := func() (*TracedResponse, error) {
		attempts++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(form.body))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Content-Type", form.contentType)

		resp, err := b.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			log.Warnf("%s: attempt %d: %v", b.name, attempts, err)
			return nil, &EngineError{Provider: b.name, Retryable: true, Err: err}
		}
		if resp.StatusCode != http.StatusOK {
			ee := &EngineError{
				Provider:   b.name,
				StatusCode: resp.StatusCode,
				Message:    truncate(strings.TrimSpace(string(resp.Body)), 300),
				Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			}
			if !ee.Retryable {
				return nil, backoff.Permanent(ee)
			}
			log.Warnf("%s: attempt %d: status %d", b.name, attempts, resp.StatusCode)
			return nil, ee
		}
		return resp, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.retryInterval
	bo.MaxInterval = 10 * b.retryInterval

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(b.retries+1)),
	)
	if err != nil {
		var ee *EngineError
		if !errors.As(err, &ee) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			err = &EngineError{Provider: b.name, Err: err}
		}
		return nil, attempts, err
	}
	return resp, attempts, nil
}

func (b *baseEngine) logMetrics(pcm []byte, audio *encoder.Encoded, resp *TracedResponse, attempts int) {
	m := resp.Metrics
	rawKB := float64(len(pcm)) / 1024
	encodedKB := float64(len(audio.Data)) / 1024
	compression := 0.0
	if rawKB > 0 {
		compression = (1 - encodedKB/rawKB) * 100
	}
	log.TranscriptionMetrics(log.Metrics{
		AudioLengthS:   float64(len(pcm)/2) / float64(b.sampleRate),
		RawSizeKB:      rawKB,
		EncodedSizeKB:  encodedKB,
		CompressionPct: compression,
		EncodeTimeMs:   float64(audio.EncodeTime.Milliseconds()),
		DNSTimeMs:      float64(m.DNS.Milliseconds()),
		TLSTimeMs:      float64(m.TLS.Milliseconds()),
		TTFBMs:         float64(m.TTFB.Milliseconds()),
		TotalTimeMs:    float64(m.Sum().Milliseconds()),
		Attempts:       attempts,
	}, b.name, audio.Format, m.ConnReused, m.TLSProtocol)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
