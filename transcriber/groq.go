package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	groqAPIURL = "https://api.groq.com/openai/v1/audio/transcriptions"
	groqModel  = "whisper-large-v3-turbo"
)

type Groq struct {
	baseEngine
	apiKey string
	model  string
}

func NewGroq(cfg Config) *Groq {
	apiURL := cfg.URL
	if apiURL == "" {
		apiURL = groqAPIURL
	}
	model := cfg.Model
	if model == "" || model == defaultWhisperModel {
		model = groqModel
	}
	return &Groq{
		baseEngine: newBaseEngine(ProviderGroq, apiURL, cfg),
		apiKey:     cfg.APIKey,
		model:      model,
	}
}

// Check warms the connection; the API has no health endpoint.
func (g *Groq) Check(ctx context.Context) error {
	if _, err := g.client.WarmConnection(ctx, g.apiURL); err != nil {
		return &EngineError{Provider: g.name, Message: "health check", Err: err}
	}
	return nil
}

type groqResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		Start        float64 `json:"start"`
		End          float64 `json:"end"`
		NoSpeechProb float64 `json:"no_speech_prob"`
		AvgLogProb   float64 `json:"avg_logprob"`
	} `json:"segments"`
}

func (g *Groq) Transcribe(ctx context.Context, pcm []byte, opts Options) (*Result, error) {
	audio, err := g.encode(pcm)
	if err != nil {
		return nil, err
	}
	form, err := newMultipartForm("file", audio, map[string]string{
		"model":           g.model,
		"response_format": "verbose_json",
		"temperature":     "0",
		"language":        opts.Language,
		"prompt":          opts.InitialPrompt,
	})
	if err != nil {
		return nil, &EngineError{Provider: g.name, Message: "building request", Err: err}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+g.apiKey)
	resp, attempts, err := g.post(ctx, g.apiURL, form, header)
	if err != nil {
		return nil, err
	}
	g.logMetrics(pcm, audio, resp, attempts)

	var gResp groqResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return nil, &EngineError{Provider: g.name, Message: "parsing response", Err: fmt.Errorf("groq response parse error: %w", err)}
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	r := &Result{
		Text:         strings.TrimSpace(gResp.Text),
		Language:     gResp.Language,
		Duration:     gResp.Duration,
		Metrics:      resp.Metrics,
		RateLimit:    remaining + "/" + limit,
		Format:       audio.Format,
		EncodedBytes: len(audio.Data),
		Attempts:     attempts,
	}
	for _, seg := range gResp.Segments {
		r.Segments = append(r.Segments, Segment{
			Text:         seg.Text,
			NoSpeechProb: seg.NoSpeechProb,
			AvgLogProb:   seg.AvgLogProb,
			Start:        seg.Start,
			End:          seg.End,
		})
	}
	summarizeSegments(r)
	if opts.VAD {
		dropSilentSegments(r)
	}
	return r, nil
}
