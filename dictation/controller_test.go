package dictation

import (
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"scribe/audio"
	"scribe/history"
	"scribe/refine"
	"scribe/transcriber"
)

// statusLog records statuses and signals each terminal one.
type statusLog struct {
	mu       sync.Mutex
	statuses []Status
	terminal chan Status
}

func newStatusLog() *statusLog {
	return &statusLog{terminal: make(chan Status, 16)}
}

func (l *statusLog) OnStatus(s Status) {
	l.mu.Lock()
	l.statuses = append(l.statuses, s)
	l.mu.Unlock()
	if s.Terminal() {
		l.terminal <- s
	}
}

func (l *statusLog) strings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, s := range l.statuses {
		out = append(out, s.String())
	}
	return out
}

func (l *statusLog) waitTerminal(t *testing.T) Status {
	t.Helper()
	select {
	case s := <-l.terminal:
		return s
	case <-time.After(5 * time.Second):
		t.Fatalf("no terminal status; got %v", l.strings())
		return Status{}
	}
}

type fakeRecorder struct {
	mu       sync.Mutex
	armErr   error
	pcm      []byte
	drainErr error
	panicMsg string
	armed    bool
	discards int
	// armGate, when set, holds Arm until it is closed.
	armGate chan struct{}
}

func (r *fakeRecorder) Arm() error {
	if r.armGate != nil {
		<-r.armGate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.armErr != nil {
		return r.armErr
	}
	r.armed = true
	return nil
}

func (r *fakeRecorder) DisarmAndDrain() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	r.armed = false
	return r.pcm, r.drainErr
}

func (r *fakeRecorder) Discard() {
	r.mu.Lock()
	r.armed = false
	r.discards++
	r.mu.Unlock()
}

func (r *fakeRecorder) CurrentDurationSeconds() float64 { return float64(len(r.pcm)/2) / 16000 }
func (r *fakeRecorder) SampleRate() int { return 16000 }

type fakeHistory struct {
	mu      sync.Mutex
	err     error
	entries []history.Entry
}

func (h *fakeHistory) Append(_ context.Context, e history.Entry) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return false, h.err
	}
	h.entries = append(h.entries, e)
	return true, nil
}

type fakePaste struct {
	mu       sync.Mutex
	copyErr  error
	pasteErr error
	copied   []string
	pastes   int
}

func (p *fakePaste) Copy(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.copyErr != nil {
		return p.copyErr
	}
	p.copied = append(p.copied, text)
	return nil
}

func (p *fakePaste) Paste(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pastes++
	return p.pasteErr
}

type harness struct {
	ctrl   *Controller
	rec    *fakeRecorder
	engine *transcriber.Fake
	hist   *fakeHistory
	paste  *fakePaste
	status *statusLog
}

func newHarness(t *testing.T, text string, engineErr error, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		rec:    &fakeRecorder{pcm: pcm(0.5)},
		engine: transcriber.NewFake(text, engineErr),
		hist:   &fakeHistory{},
		paste:  &fakePaste{},
		status: newStatusLog(),
	}
	h.ctrl = New(Deps{
		Recorder: h.rec,
		Engine:   h.engine,
		Refiner:  refine.New(),
		History:  h.hist,
		Paste:    h.paste,
		Observer: h.status,
	}, opts...)
	t.Cleanup(func() { h.ctrl.Close(context.Background()) })
	return h
}

// cycle records and processes one utterance, returning its result.
func (h *harness) cycle(t *testing.T) (Utterance, Status) {
	t.Helper()
	if err := h.ctrl.BeginCapture(); err != nil {
		t.Fatalf("BeginCapture: %v", err)
	}
	task, err := h.ctrl.EndCapture()
	if err != nil {
		t.Fatalf("EndCapture: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	u, _ := task.Wait(ctx)
	return u, h.status.waitTerminal(t)
}

func TestSuccessfulCycle(t *testing.T) {
	h := newHarness(t, "i am working with python and javascript on aws", nil)

	u, final := h.cycle(t)
	if final.Kind != StatusDone {
		t.Fatalf("final = %s", final)
	}
	want := "I am working with Python and JavaScript on AWS."
	if u.Text != want || u.Outcome != OutcomeSuccess || !u.Saved || !u.Pasted {
		t.Errorf("utterance = %+v", u)
	}
	if u.Raw != "i am working with python and javascript on aws" || u.Engine != transcriber.ProviderFake {
		t.Errorf("raw %q engine %q", u.Raw, u.Engine)
	}
	if h.ctrl.State() != Idle {
		t.Errorf("state = %s", h.ctrl.State())
	}

	if len(h.hist.entries) != 1 || h.hist.entries[0].Content != want {
		t.Fatalf("history = %+v", h.hist.entries)
	}
	meta := h.hist.entries[0].Metadata
	if meta == nil || meta.ID != u.ID || meta.DurationS != 0.5 || h.hist.entries[0].Transcription != u.Raw {
		t.Errorf("history metadata = %+v", meta)
	}
	if len(h.paste.copied) != 1 || h.paste.copied[0] != want || h.paste.pastes != 1 {
		t.Errorf("paste = %+v", h.paste)
	}

	got := h.status.strings()
	wantStatuses := []string{"Recording...", "Processing...", "Transcribing...", "Done"}
	if len(got) != len(wantStatuses) {
		t.Fatalf("statuses = %v", got)
	}
	for i := range got {
		if got[i] != wantStatuses[i] {
			t.Errorf("status[%d] = %q, want %q", i, got[i], wantStatuses[i])
		}
	}

	calls := h.engine.Calls()
	if len(calls) != 1 || !calls[0].Options.VAD || calls[0].Options.InitialPrompt == "" {
		t.Errorf("engine calls = %+v, want VAD and a prompt by default", calls)
	}
	if last := h.ctrl.Last(); last == nil || last.ID != u.ID {
		t.Errorf("Last = %+v", last)
	}
}

func TestStateMachineRejections(t *testing.T) {
	h := newHarness(t, "hello", nil)
	h.engine.WithDelay(200 * time.Millisecond)

	if _, err := h.ctrl.EndCapture(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("EndCapture from Idle = %v", err)
	}
	if err := h.ctrl.Cancel(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Cancel from Idle = %v", err)
	}

	if err := h.ctrl.BeginCapture(); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.BeginCapture(); !errors.Is(err, ErrNotIdle) {
		t.Errorf("BeginCapture from Recording = %v", err)
	}
	if h.ctrl.State() != Recording {
		t.Errorf("state = %s", h.ctrl.State())
	}

	task, err := h.ctrl.EndCapture()
	if err != nil {
		t.Fatal(err)
	}
	if h.ctrl.State() != Processing {
		t.Errorf("state right after EndCapture = %s", h.ctrl.State())
	}
	if err := h.ctrl.BeginCapture(); !errors.Is(err, ErrNotIdle) {
		t.Errorf("BeginCapture from Processing = %v", err)
	}
	if _, err := h.ctrl.EndCapture(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("EndCapture from Processing = %v", err)
	}
	if err := h.ctrl.Cancel(); !errors.Is(err, ErrBusy) {
		t.Errorf("Cancel from Processing = %v", err)
	}

	<-task.Done()
	h.status.waitTerminal(t)
	if h.ctrl.State() != Idle {
		t.Errorf("state after pipeline = %s", h.ctrl.State())
	}
	if n := len(h.engine.Calls()); n != 1 {
		t.Errorf("engine called %d times, want 1", n)
	}
}

func TestConcurrentEndCaptureStartsOnePipeline(t *testing.T) {
	h := newHarness(t, "hello", nil)
	h.engine.WithDelay(50 * time.Millisecond)
	if err := h.ctrl.BeginCapture(); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var tasks []*Task
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if task, err := h.ctrl.EndCapture(); err == nil {
				mu.Lock()
				tasks = append(tasks, task)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(tasks) != 1 {
		t.Fatalf("%d EndCapture calls succeeded, want 1", len(tasks))
	}
	<-tasks[0].Done()
	h.status.waitTerminal(t)
	if n := len(h.engine.Calls()); n != 1 {
		t.Errorf("engine called %d times", n)
	}
}

func TestCancelDiscardsRecording(t *testing.T) {
	h := newHarness(t, "hello", nil)
	if err := h.ctrl.BeginCapture(); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if s := h.status.waitTerminal(t); s.Kind != StatusCanceled {
		t.Errorf("terminal = %s", s)
	}
	if h.ctrl.State() != Idle || h.rec.discards != 1 {
		t.Errorf("state %s discards %d", h.ctrl.State(), h.rec.discards)
	}
	if len(h.engine.Calls()) != 0 || len(h.hist.entries) != 0 {
		t.Error("canceled recording reached the engine or history")
	}
	if last := h.ctrl.Last(); last == nil || last.Outcome != OutcomeCanceled {
		t.Errorf("Last = %+v", last)
	}
}

func TestArmFailureStaysIdle(t *testing.T) {
	h := newHarness(t, "hello", nil)
	h.rec.armErr = audio.ErrDeviceUnavailable

	err := h.ctrl.BeginCapture()
	if !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("BeginCapture = %v", err)
	}
	if h.ctrl.State() != Idle {
		t.Errorf("state = %s", h.ctrl.State())
	}
	s := h.status.waitTerminal(t)
	if s.Kind != StatusError || s.String() != "Error: "+audio.ErrDeviceUnavailable.Error() {
		t.Errorf("status = %q", s)
	}
}

func TestNoSpeechOutcomes(t *testing.T) {
	for _, tt := range []struct {
		name   string
		setup  func(h *harness)
		engine bool
	}{
		{"empty capture", func(h *harness) { h.rec.pcm, h.rec.drainErr = nil, audio.ErrEmptyCapture }, false},
		{"too short", func(h *harness) { h.rec.pcm = pcm(0.05) }, false},
		{"blank transcript", func(h *harness) {}, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "   ", nil)
			tt.setup(h)
			u, final := h.cycle(t)
			if final.Kind != StatusNoSpeech || final.String() != "No speech detected" {
				t.Errorf("final = %s", final)
			}
			if u.Outcome != OutcomeNoSpeech || u.Err != nil {
				t.Errorf("utterance = %+v", u)
			}
			if called := len(h.engine.Calls()) > 0; called != tt.engine {
				t.Errorf("engine called = %v, want %v", called, tt.engine)
			}
			if len(h.hist.entries) != 0 || len(h.paste.copied) != 0 {
				t.Error("no-speech cycle reached history or clipboard")
			}
			if h.ctrl.State() != Idle {
				t.Errorf("state = %s", h.ctrl.State())
			}
		})
	}
}

func TestEngineErrorAborts(t *testing.T) {
	engineErr := &transcriber.EngineError{Provider: "groq", StatusCode: 401, Message: "bad key"}
	h := newHarness(t, "", engineErr)

	u, final := h.cycle(t)
	if final.Kind != StatusError {
		t.Fatalf("final = %s", final)
	}
	var ee *transcriber.EngineError
	if !errors.As(u.Err, &ee) || ee.StatusCode != 401 {
		t.Errorf("utterance err = %v", u.Err)
	}
	if len(h.hist.entries) != 0 || len(h.paste.copied) != 0 {
		t.Error("failed cycle reached history or clipboard")
	}
	if h.ctrl.State() != Idle {
		t.Errorf("state = %s", h.ctrl.State())
	}
}

func TestHistoryFailureIsWarning(t *testing.T) {
	h := newHarness(t, "hello world", nil)
	h.hist.err = errors.New("disk full")

	u, final := h.cycle(t)
	if final.Kind != StatusDone {
		t.Fatalf("final = %s", final)
	}
	if u.Saved || !u.Pasted || len(u.Warnings) != 1 {
		t.Errorf("utterance = %+v", u)
	}
	found := false
	for _, s := range h.status.strings() {
		if s == "Warning: history not saved: disk full" {
			found = true
		}
	}
	if !found {
		t.Errorf("statuses = %v", h.status.strings())
	}
}

func TestPasteFailureIsWarning(t *testing.T) {
	h := newHarness(t, "hello world", nil)
	h.paste.pasteErr = errors.New("no uinput")

	u, final := h.cycle(t)
	if final.Kind != StatusDone {
		t.Fatalf("final = %s", final)
	}
	if u.Pasted || len(h.paste.copied) != 1 {
		t.Errorf("pasted %v copied %v", u.Pasted, h.paste.copied)
	}
	if len(u.Warnings) != 1 {
		t.Errorf("warnings = %v", u.Warnings)
	}
}

func TestCopyFailureIsError(t *testing.T) {
	h := newHarness(t, "hello world", nil)
	h.paste.copyErr = errors.New("no display")

	u, final := h.cycle(t)
	if final.Kind != StatusError || final.Message != "no display" {
		t.Fatalf("final = %s", final)
	}
	if u.Text != "Hello world." || !u.Saved {
		t.Errorf("utterance = %+v, want text kept and saved", u)
	}
	if h.paste.pastes != 0 {
		t.Error("paste attempted after copy failure")
	}
}

func TestPanicIsRecovered(t *testing.T) {
	h := newHarness(t, "hello", nil)
	h.rec.panicMsg = "driver exploded"

	u, final := h.cycle(t)
	if final.Kind != StatusError || !errors.Is(u.Err, ErrPanic) {
		t.Fatalf("final %s err %v", final, u.Err)
	}
	if h.ctrl.State() != Idle {
		t.Errorf("state = %s", h.ctrl.State())
	}

	h.rec.panicMsg = ""
	if _, final := h.cycle(t); final.Kind != StatusDone {
		t.Errorf("controller unusable after panic: %s", final)
	}
}

func TestEveryCycleEndsWithOneTerminalStatus(t *testing.T) {
	h := newHarness(t, "again", nil)
	for i := 0; i < 5; i++ {
		h.cycle(t)
	}
	terminals := 0
	for _, s := range h.status.strings() {
		if s == "Done" {
			terminals++
		}
	}
	if terminals != 5 || h.ctrl.Completed() != 5 {
		t.Errorf("terminals %d completed %d", terminals, h.ctrl.Completed())
	}
}

// blockingObserver never returns until released.
type blockingObserver struct{ release chan struct{} }

func (o blockingObserver) OnStatus(Status) { <-o.release }

func TestSlowObserverNeverBlocksController(t *testing.T) {
	obs := blockingObserver{release: make(chan struct{})}
	rec := &fakeRecorder{pcm: pcm(0.5)}
	ctrl := New(Deps{
		Recorder: rec,
		Engine:   transcriber.NewFake("hi", nil),
		Refiner:  refine.New(),
		Observer: obs,
	}, WithStatusBuffer(1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			if err := ctrl.BeginCapture(); err != nil {
				t.Error(err)
				return
			}
			task, err := ctrl.EndCapture()
			if err != nil {
				t.Error(err)
				return
			}
			<-task.Done()
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("controller blocked on a stalled observer")
	}
	close(obs.release)
	ctrl.Close(context.Background())
}

func TestTaskWaitDetaches(t *testing.T) {
	h := newHarness(t, "slow", nil)
	h.engine.WithDelay(300 * time.Millisecond)
	h.ctrl.BeginCapture()
	task, err := h.ctrl.EndCapture()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := task.Utterance(); ok {
		t.Error("Utterance ready before the pipeline finished")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := task.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v", err)
	}
	<-task.Done()
	if u, ok := task.Utterance(); !ok || u.Text != "Slow." {
		t.Errorf("Utterance = %+v, %v", u, ok)
	}
}

func TestCloseWaitsAndCancels(t *testing.T) {
	h := newHarness(t, "late", nil)
	h.engine.WithDelay(time.Hour)
	h.ctrl.BeginCapture()
	task, _ := h.ctrl.EndCapture()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := h.ctrl.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close = %v", err)
	}
	u, ok := task.Utterance()
	if !ok || u.Outcome != OutcomeError || !errors.Is(u.Err, context.Canceled) {
		t.Errorf("utterance after Close = %+v", u)
	}
	if err := h.ctrl.BeginCapture(); !errors.Is(err, ErrClosed) {
		t.Errorf("BeginCapture after Close = %v", err)
	}
}

func TestWithAudioBufferAndFileHistory(t *testing.T) {
	ctx := audio.NewFakeContext(pcm(1), false)
	buf := audio.NewBuffer(ctx, nil, audio.CaptureConfig{SampleRate: 16000, Channels: 1})
	store := history.NewFileStore(filepath.Join(t.TempDir(), "history.json"))
	status := newStatusLog()

	ctrl := New(Deps{
		Recorder: buf,
		Engine:   transcriber.NewFake("deploy the docker image to kubernetes", nil),
		Refiner:  refine.New(),
		History:  store,
		Observer: status,
	}, WithTranscribeOptions(transcriber.Options{Language: "en"}))
	defer ctrl.Close(context.Background())

	if err := ctrl.BeginCapture(); err != nil {
		t.Fatal(err)
	}
	task, err := ctrl.EndCapture()
	if err != nil {
		t.Fatal(err)
	}
	u, err := task.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if u.Text != "Deploy the Docker image to Kubernetes." || u.AudioSeconds != 1 || u.Language != "en" {
		t.Errorf("utterance = %+v", u)
	}
	entries, err := store.List(context.Background(), 0)
	if err != nil || len(entries) != 1 || entries[0].Content != u.Text {
		t.Errorf("history = %+v, %v", entries, err)
	}
	if buf.Armed() {
		t.Error("buffer still armed")
	}
}

// pcm returns seconds of a quiet square wave at 16 kHz.
func pcm(seconds float64) []byte {
	n := int(seconds * 16000)
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(1000)
		if (i/40)%2 == 0 {
			v = -1000
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func TestSlowArmDoesNotBlockStateReads(t *testing.T) {
	h := newHarness(t, "hello", nil)
	gate := make(chan struct{})
	h.rec.armGate = gate

	began := make(chan error, 1)
	go func() { began <- h.ctrl.BeginCapture() }()

	waitArming(t, h.ctrl)
	if err := h.ctrl.BeginCapture(); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("second BeginCapture = %v, want ErrNotIdle", err)
	}

	read := make(chan State, 1)
	go func() { read <- h.ctrl.State() }()
	select {
	case s := <-read:
		if s != Idle {
			t.Errorf("State while arming = %s, want idle", s)
		}
	case <-time.After(time.Second):
		t.Fatal("State blocked while the recorder was arming")
	}
	if got := h.ctrl.RecordingSeconds(); got != 0 {
		t.Errorf("RecordingSeconds while arming = %v", got)
	}

	close(gate)
	if err := <-began; err != nil {
		t.Fatalf("BeginCapture: %v", err)
	}
	if h.ctrl.State() != Recording {
		t.Errorf("State = %s, want recording", h.ctrl.State())
	}
}

func TestCloseWhileArmingDiscards(t *testing.T) {
	h := newHarness(t, "hello", nil)
	gate := make(chan struct{})
	h.rec.armGate = gate

	began := make(chan error, 1)
	go func() { began <- h.ctrl.BeginCapture() }()
	waitArming(t, h.ctrl)
	if err := h.ctrl.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(gate)
	if err := <-began; !errors.Is(err, ErrClosed) {
		t.Fatalf("BeginCapture = %v, want ErrClosed", err)
	}
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	if h.rec.armed || h.rec.discards != 1 {
		t.Errorf("recorder armed=%v discards=%d, want released", h.rec.armed, h.rec.discards)
	}
}

func waitArming(t *testing.T, c *Controller) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		arming := c.arming
		c.mu.Unlock()
		if arming {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("BeginCapture never started arming")
		}
		time.Sleep(time.Millisecond)
	}
}
