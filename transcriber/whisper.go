package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	defaultWhisperURL         = "http://localhost:8387"
	defaultWhisperModel       = "base"
	defaultWhisperDevice      = "cpu"
	defaultWhisperComputeType = "int8"

	vadThreshold         = 0.5
	minSpeechDurationMs  = 250
	minSilenceDurationMs = 500
	beamSize             = 5
)

// Whisper talks to a local faster-whisper HTTP sidecar. Voice activity
// detection runs inside the sidecar when Options.VAD is set.
type Whisper struct {
	baseEngine
	url         string
	model       string
	device      string
	computeType string
}

func NewWhisper(cfg Config) *Whisper {
	url := strings.TrimRight(cfg.URL, "/")
	if url == "" {
		url = defaultWhisperURL
	}
	w := &Whisper{
		baseEngine:  newBaseEngine(ProviderWhisper, url+"/transcribe", cfg),
		url:         url,
		model:       cfg.Model,
		device:      cfg.Device,
		computeType: cfg.ComputeType,
	}
	if w.model == "" {
		w.model = defaultWhisperModel
	}
	if w.device == "" {
		w.device = defaultWhisperDevice
	}
	if w.computeType == "" {
		w.computeType = defaultWhisperComputeType
	}
	return w
}

// Check reports whether the sidecar answers its health endpoint.
func (w *Whisper) Check(ctx context.Context) error {
	resp, err := w.client.Get(ctx, w.url+"/health")
	if err != nil {
		return &EngineError{Provider: w.name, Message: "sidecar unreachable at " + w.url, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &EngineError{Provider: w.name, StatusCode: resp.StatusCode, Message: "health check failed"}
	}
	return nil
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
}

type whisperSegment struct {
	Text         string  `json:"text"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	NoSpeechProb float64 `json:"no_speech_prob"`
	AvgLogProb   float64 `json:"avg_logprob"`
}

func (w *Whisper) fields(opts Options) map[string]string {
	f := map[string]string{
		"model":        w.model,
		"device":       w.device,
		"compute_type": w.computeType,
		"language":     opts.Language,
		"beam_size":    strconv.Itoa(beamSize),
		"temperature":  "0",
	}
	if opts.InitialPrompt != "" {
		f["initial_prompt"] = opts.InitialPrompt
	}
	if opts.VAD {
		f["vad_filter"] = "true"
		f["vad_threshold"] = strconv.FormatFloat(vadThreshold, 'f', -1, 64)
		f["min_speech_duration_ms"] = strconv.Itoa(minSpeechDurationMs)
		f["min_silence_duration_ms"] = strconv.Itoa(minSilenceDurationMs)
	} else {
		f["vad_filter"] = "false"
	}
	return f
}

func (w *Whisper) Transcribe(ctx context.Context, pcm []byte, opts Options) (*Result, error) {
	audio, err := w.encode(pcm)
	if err != nil {
		return nil, err
	}
	form, err := newMultipartForm("audio", audio, w.fields(opts))
	if err != nil {
		return nil, &EngineError{Provider: w.name, Message: "building request", Err: err}
	}

	resp, attempts, err := w.post(ctx, w.apiURL, form, nil)
	if err != nil {
		return nil, err
	}
	w.logMetrics(pcm, audio, resp, attempts)

	var wResp whisperResponse
	if err := json.Unmarshal(resp.Body, &wResp); err != nil {
		return nil, &EngineError{Provider: w.name, Message: "parsing response", Err: fmt.Errorf("decode whisper response: %w", err)}
	}

	r := &Result{
		Text:         strings.TrimSpace(wResp.Text),
		Language:     wResp.Language,
		Duration:     wResp.Duration,
		Metrics:      resp.Metrics,
		Format:       audio.Format,
		EncodedBytes: len(audio.Data),
		Attempts:     attempts,
	}
	for _, seg := range wResp.Segments {
		r.Segments = append(r.Segments, Segment{
			Text:         seg.Text,
			Start:        seg.Start,
			End:          seg.End,
			NoSpeechProb: seg.NoSpeechProb,
			AvgLogProb:   seg.AvgLogProb,
		})
	}
	if r.Duration == 0 && len(r.Segments) > 0 {
		r.Duration = r.Segments[len(r.Segments)-1].End
	}
	summarizeSegments(r)
	return r, nil
}
