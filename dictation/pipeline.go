package dictation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"scribe/audio"
	"scribe/history"
	"scribe/log"
	"scribe/transcriber"
)

// run executes one pipeline and always returns the controller to Idle
// with exactly one terminal status.
func (c *Controller) run(t *Task) {
	u := Utterance{ID: t.id, CreatedAt: time.Now()}
	final := Status{Kind: StatusError, Message: "pipeline did not finish"}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrPanic, r)
			log.Errorf("utterance %s: %v", u.ID, err)
			u.Outcome, u.Err = OutcomeError, err
			final = Status{Kind: StatusError, Message: err.Error()}
		}
		c.finish(t, u, final)
	}()

	final = c.process(&u)
}

func (c *Controller) finish(t *Task, u Utterance, final Status) {
	final.UtteranceID = u.ID

	c.mu.Lock()
	c.state = Idle
	c.last = &u
	c.completed++
	c.mu.Unlock()

	log.UtteranceDone(u.ID, string(u.Outcome), u.AudioSeconds, len([]rune(u.Text)), u.Err)
	c.emit(final)
	t.finish(u)
}

func (c *Controller) process(u *Utterance) Status {
	pcm, err := c.deps.Recorder.DisarmAndDrain()
	if errors.Is(err, audio.ErrEmptyCapture) {
		return noSpeech(u, "empty capture")
	}
	if err != nil {
		return failed(u, fmt.Errorf("drain audio: %w", err))
	}

	if rate := c.deps.Recorder.SampleRate(); rate > 0 {
		u.AudioSeconds = float64(len(pcm)/2) / float64(rate)
	}
	if u.AudioSeconds < c.opts.minDuration.Seconds() {
		return noSpeech(u, fmt.Sprintf("capture %.3fs shorter than %s", u.AudioSeconds, c.opts.minDuration))
	}

	u.Engine = c.deps.Engine.Name()
	c.emit(Status{Kind: StatusTranscribing, UtteranceID: u.ID})
	res, err := c.deps.Engine.Transcribe(c.base, pcm, c.opts.transcribe)
	if errors.Is(err, transcriber.ErrNoAudioData) {
		return noSpeech(u, "engine reported no audio")
	}
	if err != nil {
		return failed(u, err)
	}
	if res.RateLimit != "" && res.RateLimit != "?/?" {
		log.Info("rate_limit: " + res.RateLimit)
	}

	u.Raw = strings.TrimSpace(res.Text)
	u.Language = res.Language
	if u.Raw == "" {
		return noSpeech(u, "empty transcript")
	}

	u.Text = c.deps.Refiner.Refine(u.Raw)
	if u.Text == "" {
		return noSpeech(u, "refined transcript is empty")
	}
	log.TranscriptionText(u.Text)

	if c.deps.History != nil {
		c.save(u)
	}

	if c.deps.Paste != nil {
		if err := c.deps.Paste.Copy(u.Text); err != nil {
			return failed(u, err)
		}
		if err := c.deps.Paste.Paste(c.base); err != nil {
			c.warn(u, fmt.Sprintf("paste failed, text is on the clipboard: %v", err))
		} else {
			u.Pasted = true
		}
	}

	u.Outcome = OutcomeSuccess
	return Status{Kind: StatusDone}
}

// save appends u to history. Failures are warnings so the text still
// reaches the clipboard.
func (c *Controller) save(u *Utterance) {
	e := history.NewEntry(u.Text)
	e.Transcription = u.Raw
	e.Metadata = &history.Metadata{
		ID:        u.ID,
		DurationS: u.AudioSeconds,
		Engine:    u.Engine,
		Language:  u.Language,
	}
	saved, err := c.deps.History.Append(c.base, e)
	if err != nil {
		c.warn(u, fmt.Sprintf("history not saved: %v", err))
		return
	}
	u.Saved = saved
}

func (c *Controller) warn(u *Utterance, msg string) {
	log.Warnf("utterance %s: %s", u.ID, msg)
	u.Warnings = append(u.Warnings, msg)
	c.emit(Status{Kind: StatusWarning, Message: msg, UtteranceID: u.ID})
}

func noSpeech(u *Utterance, reason string) Status {
	log.Infof("utterance %s: no speech (%s)", u.ID, reason)
	u.Outcome = OutcomeNoSpeech
	return Status{Kind: StatusNoSpeech}
}

func failed(u *Utterance, err error) Status {
	log.Errorf("utterance %s: %v", u.ID, err)
	u.Outcome, u.Err = OutcomeError, err
	return Status{Kind: StatusError, Message: err.Error()}
}
