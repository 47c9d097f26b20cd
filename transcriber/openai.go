package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	openAIAPIURL = "https://api.openai.com/v1/audio/transcriptions"
	openAIModel  = "gpt-4o-transcribe"
)

type OpenAI struct {
	baseEngine
	apiKey string
	model  string
}

func NewOpenAI(cfg Config) *OpenAI {
	apiURL := cfg.URL
	if apiURL == "" {
		apiURL = openAIAPIURL
	}
	model := cfg.Model
	if model == "" || model == defaultWhisperModel {
		model = openAIModel
	}
	return &OpenAI{
		baseEngine: newBaseEngine(ProviderOpenAI, apiURL, cfg),
		apiKey:     cfg.APIKey,
		model:      model,
	}
}

func (o *OpenAI) Check(ctx context.Context) error {
	if _, err := o.client.WarmConnection(ctx, o.apiURL); err != nil {
		return &EngineError{Provider: o.name, Message: "health check", Err: err}
	}
	return nil
}

// Transcribe uploads pcm. The json response format carries no segments,
// so Options.VAD has no effect here.
func (o *OpenAI) Transcribe(ctx context.Context, pcm []byte, opts Options) (*Result, error) {
	audio, err := o.encode(pcm)
	if err != nil {
		return nil, err
	}
	form, err := newMultipartForm("file", audio, map[string]string{
		"model":           o.model,
		"response_format": "json",
		"language":        opts.Language,
		"prompt":          opts.InitialPrompt,
	})
	if err != nil {
		return nil, &EngineError{Provider: o.name, Message: "building request", Err: err}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+o.apiKey)
	resp, attempts, err := o.post(ctx, o.apiURL, form, header)
	if err != nil {
		return nil, err
	}
	o.logMetrics(pcm, audio, resp, attempts)

	var oResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &oResp); err != nil {
		return nil, &EngineError{Provider: o.name, Message: "parsing response", Err: fmt.Errorf("openai response parse error: %w", err)}
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	return &Result{
		Text:         strings.TrimSpace(oResp.Text),
		Language:     opts.Language,
		Metrics:      resp.Metrics,
		RateLimit:    remaining + "/" + limit,
		Format:       audio.Format,
		EncodedBytes: len(audio.Data),
		Attempts:     attempts,
	}, nil
}
