package dictation

import "context"

// Task is the handle of one background pipeline run. Callers may join
// it with Wait or ignore it; the pipeline finishes either way.
type Task struct {
	id   string
	done chan struct{}
	utt  Utterance
}

func newTask(id string) *Task {
	return &Task{id: id, done: make(chan struct{})}
}

func (t *Task) ID() string { return t.id }

func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the pipeline finishes or ctx ends. A ctx error
// detaches the caller without affecting the pipeline.
func (t *Task) Wait(ctx context.Context) (Utterance, error) {
	select {
	case <-t.done:
		return t.utt, t.utt.Err
	case <-ctx.Done():
		return Utterance{}, ctx.Err()
	}
}

// Utterance returns the result without blocking; ok is false while the
// pipeline is still running.
func (t *Task) Utterance() (u Utterance, ok bool) {
	select {
	case <-t.done:
		return t.utt, true
	default:
		return Utterance{}, false
	}
}

func (t *Task) finish(u Utterance) {
	t.utt = u
	close(t.done)
}
