package session

import (
	"sync"
	"time"
)

// Timer counts whole elapsed intervals from Start. It runs at most once:
// after Stop it cannot be started again.
type Timer struct {
	interval time.Duration

	mu      sync.Mutex
	elapsed int
	started bool
	stop    chan struct{}
	done    chan struct{}
}

func NewTimer(interval time.Duration) *Timer {
	if interval <= 0 {
		interval = time.Second
	}
	return &Timer{interval: interval}
}

// Start reports whether this call started the timer.
func (t *Timer) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return false
	}

	t.started = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(t.stop, t.done)

	return true
}

func (t *Timer) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			t.elapsed++
			t.mu.Unlock()
		}
	}
}

// Stop halts the timer and waits until no further tick can land.
func (t *Timer) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop = nil
	t.mu.Unlock()

	if stop == nil {
		return
	}

	close(stop)
	<-done
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *Timer) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}
