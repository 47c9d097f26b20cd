package dictation

import (
	"fmt"
	"sync"

	"scribe/log"
)

const defaultStatusBuffer = 32

// notifier hands statuses to the observer on its own goroutine. emit
// never blocks: when the buffer is full the status is dropped.
type notifier struct {
	obs  Observer
	ch   chan Status
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newNotifier(obs Observer, size int) *notifier {
	if size <= 0 {
		size = defaultStatusBuffer
	}
	n := &notifier{
		obs:  obs,
		ch:   make(chan Status, size),
		done: make(chan struct{}),
	}
	go n.dispatch()
	return n
}

func (n *notifier) emit(s Status) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.ch <- s:
	default:
		log.Warnf("status dropped, observer too slow: %s", s)
	}
}

func (n *notifier) dispatch() {
	defer close(n.done)
	for s := range n.ch {
		n.deliver(s)
	}
}

func (n *notifier) deliver(s Status) {
	if n.obs == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error(fmt.Sprintf("observer panic on %q: %v", s, r))
		}
	}()
	n.obs.OnStatus(s)
}

// close flushes queued statuses and stops the dispatcher.
func (n *notifier) close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.ch)
	}
	n.mu.Unlock()
	<-n.done
}
