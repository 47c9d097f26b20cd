// Package dictation sequences one push-to-talk cycle: capture, transcribe,
// refine, save and paste.
package dictation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"scribe/history"
	"scribe/log"
	"scribe/transcriber"
)

const defaultMinDuration = 100 * time.Millisecond

// Recorder is satisfied by *audio.Buffer.
type Recorder interface {
	Arm() error
	DisarmAndDrain() ([]byte, error)
	Discard()
	CurrentDurationSeconds() float64
	SampleRate() int
}

type Refiner interface {
	Refine(text string) string
}

// History is the subset of history.Store the pipeline writes to.
type History interface {
	Append(ctx context.Context, e history.Entry) (bool, error)
}

// PasteSink is satisfied by *clipboard.Sink.
type PasteSink interface {
	Copy(text string) error
	Paste(ctx context.Context) error
}

// Deps are the controller's collaborators. History and Paste may be nil
// to skip those steps.
type Deps struct {
	Recorder Recorder
	Engine   transcriber.Engine
	Refiner  Refiner
	History  History
	Paste    PasteSink
	Observer Observer
}

type options struct {
	ctx          context.Context
	transcribe   transcriber.Options
	minDuration  time.Duration
	statusBuffer int
}

type Option func(*options)

// WithContext sets the parent of every pipeline context.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

func WithTranscribeOptions(opts transcriber.Options) Option {
	return func(o *options) { o.transcribe = opts }
}

// WithMinDuration sets the capture length below which a recording is
// reported as no speech without calling the engine.
func WithMinDuration(d time.Duration) Option {
	return func(o *options) { o.minDuration = d }
}

func WithStatusBuffer(n int) Option {
	return func(o *options) { o.statusBuffer = n }
}

type Controller struct {
	deps   Deps
	opts   options
	notify *notifier

	base   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	arming    bool // Arm in progress; state is still Idle
	closed    bool
	task      *Task
	last      *Utterance
	completed int
}

func New(deps Deps, opts ...Option) *Controller {
	o := options{
		ctx:         context.Background(),
		transcribe:  transcriber.Options{VAD: true, InitialPrompt: transcriber.BuildPrompt(nil)},
		minDuration: defaultMinDuration,
	}
	for _, opt := range opts {
		opt(&o)
	}
	base, cancel := context.WithCancel(o.ctx)
	return &Controller{
		deps:   deps,
		opts:   o,
		notify: newNotifier(deps.Observer, o.statusBuffer),
		base:   base,
		cancel: cancel,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Last returns a copy of the most recent finished utterance, or nil.
func (c *Controller) Last() *Utterance {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return nil
	}
	u := *c.last
	return &u
}

// Completed counts finished pipeline runs, whatever their outcome.
func (c *Controller) Completed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// RecordingSeconds is the length of the capture in progress.
func (c *Controller) RecordingSeconds() float64 {
	if c.State() != Recording {
		return 0
	}
	return c.deps.Recorder.CurrentDurationSeconds()
}

// BeginCapture arms the recorder. It fails with ErrNotIdle outside Idle
// or while another BeginCapture is opening the device, and leaves the
// controller Idle when the recorder cannot start. The device is opened
// without holding the controller lock, so State and RecordingSeconds
// stay responsive.
func (c *Controller) BeginCapture() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != Idle || c.arming {
		state := c.state.String()
		if c.arming {
			state = "arming"
		}
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotIdle, state)
	}
	c.arming = true
	c.mu.Unlock()

	err := c.deps.Recorder.Arm()

	c.mu.Lock()
	c.arming = false
	if err != nil {
		c.mu.Unlock()
		log.Errorf("arm recorder: %v", err)
		c.emit(Status{Kind: StatusError, Message: err.Error()})
		return err
	}
	if c.closed {
		c.deps.Recorder.Discard()
		c.mu.Unlock()
		return ErrClosed
	}
	c.state = Recording
	c.mu.Unlock()

	c.emit(Status{Kind: StatusRecording})
	return nil
}

// EndCapture moves Recording to Processing and starts the pipeline on
// its own goroutine. The returned Task may be waited on or dropped.
func (c *Controller) EndCapture() (*Task, error) {
	c.mu.Lock()
	if c.state != Recording {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotRecording, state)
	}
	c.state = Processing
	t := newTask(uuid.NewString())
	c.task = t
	c.mu.Unlock()

	c.emit(Status{Kind: StatusProcessing, UtteranceID: t.id})
	go c.run(t)
	return t, nil
}

// Cancel drops the recording in progress. Processing cannot be
// interrupted and reports ErrBusy.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	switch c.state {
	case Processing:
		c.mu.Unlock()
		return ErrBusy
	case Idle:
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRecording, Idle)
	}
	seconds := c.deps.Recorder.CurrentDurationSeconds()
	c.deps.Recorder.Discard()
	c.state = Idle
	u := &Utterance{ID: uuid.NewString(), CreatedAt: time.Now(), AudioSeconds: seconds, Outcome: OutcomeCanceled}
	c.last = u
	c.mu.Unlock()

	log.UtteranceDone(u.ID, string(OutcomeCanceled), seconds, 0, nil)
	c.emit(Status{Kind: StatusCanceled})
	return nil
}

// Close discards an active recording, waits for the outstanding pipeline
// and stops status delivery. If ctx ends first the pipeline's context is
// canceled and ctx.Err is returned.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.state == Recording {
		c.deps.Recorder.Discard()
		c.state = Idle
	}
	t := c.task
	c.mu.Unlock()

	var err error
	if t != nil {
		select {
		case <-t.Done():
		case <-ctx.Done():
			c.cancel()
			<-t.Done()
			err = ctx.Err()
		}
	}
	c.cancel()
	c.notify.close()
	return err
}

func (c *Controller) emit(s Status) {
	if s.Time.IsZero() {
		s.Time = time.Now()
	}
	c.notify.emit(s)
}
