package main

import (
	"context"
	"fmt"

	"scribe/audio"
	"scribe/clipboard"
	"scribe/config"
	"scribe/dictation"
	"scribe/history"
	"scribe/refine"
	"scribe/transcriber"
)

func engineConfig(cfg *config.Config) transcriber.Config {
	return transcriber.Config{
		Provider:    cfg.Engine.Provider,
		URL:         cfg.Engine.URL,
		APIKey:      cfg.Engine.APIKey,
		Model:       cfg.Engine.Model,
		Device:      cfg.Engine.Device,
		ComputeType: cfg.Engine.ComputeType,
		Format:      cfg.Engine.Format,
		SampleRate:  cfg.Audio.SampleRate,
		Timeout:     cfg.Engine.Timeout,
		Retries:     cfg.Engine.Retries,
	}
}

func transcribeOptions(cfg *config.Config) transcriber.Options {
	prompt := cfg.Engine.Prompt
	if prompt == "" {
		prompt = transcriber.BuildPrompt(cfg.Engine.Keywords)
	}
	return transcriber.Options{
		Language:      cfg.Engine.Language,
		VAD:           cfg.Engine.VAD,
		InitialPrompt: prompt,
	}
}

// newRefiner layers the jargon file, then inline jargon, over the
// built-in table.
func newRefiner(cfg *config.Config) (*refine.Refiner, error) {
	opts := []refine.Option{refine.WithContractions(cfg.Refine.Contractions)}
	if cfg.Refine.JargonFile != "" {
		m, err := refine.LoadJargonFile(cfg.Refine.JargonFile)
		if err != nil {
			return nil, fmt.Errorf("jargon file: %w", err)
		}
		opts = append(opts, refine.WithJargon(m))
	}
	if len(cfg.Refine.Jargon) > 0 {
		opts = append(opts, refine.WithJargon(cfg.Refine.Jargon))
	}
	return refine.New(opts...), nil
}

func captureConfig(cfg *config.Config) audio.CaptureConfig {
	return audio.CaptureConfig{
		SampleRate: uint32(cfg.Audio.SampleRate),
		Channels:   uint32(cfg.Audio.Channels),
	}
}

// session is one running dictation controller with the resources it owns.
type session struct {
	buffer *audio.Buffer
	engine transcriber.Engine
	store  history.Store
	ctrl   *dictation.Controller
}

type sessionOptions struct {
	device   *audio.DeviceInfo
	noPaste  bool
	observer dictation.Observer
}

func newSession(ctx context.Context, cfg *config.Config, actx audio.Context, so sessionOptions) (*session, error) {
	engine, err := transcriber.New(engineConfig(cfg))
	if err != nil {
		return nil, err
	}
	refiner, err := newRefiner(cfg)
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cfg.History.Backend, cfg.History.Path)
	if err != nil {
		return nil, err
	}

	s := &session{
		buffer: audio.NewBuffer(actx, so.device, captureConfig(cfg)),
		engine: engine,
		store:  store,
	}
	deps := dictation.Deps{
		Recorder: s.buffer,
		Engine:   engine,
		Refiner:  refiner,
		History:  store,
		Observer: so.observer,
	}
	if cfg.Paste.Auto && !so.noPaste {
		deps.Paste = clipboard.NewSink(cfg.Paste.Delay)
	}
	s.ctrl = dictation.New(deps,
		dictation.WithContext(ctx),
		dictation.WithTranscribeOptions(transcribeOptions(cfg)),
		dictation.WithMinDuration(cfg.Audio.MinDuration),
	)
	return s, nil
}

func (s *session) Close(ctx context.Context) error {
	err := s.ctrl.Close(ctx)
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// fanOut delivers each status to every observer in order.
func fanOut(observers ...dictation.Observer) dictation.Observer {
	return dictation.ObserverFunc(func(s dictation.Status) {
		for _, o := range observers {
			if o != nil {
				o.OnStatus(s)
			}
		}
	})
}
