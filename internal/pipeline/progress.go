package pipeline

import "sync"

// Event is one progress update. Fraction is a monotone non-decreasing
// value in [0, 1]; Total is zero while the stage's work count is still
// unknown.
type Event struct {
	RunID     string
	Stage     Stage
	Processed int
	Total     int
	Fraction  float64
	Message   string
}

// emitter publishes events on a buffered channel without ever blocking
// the run: a slow or absent consumer drops intermediate events, and the
// returned Report stays authoritative. The monotone guard lives here so
// no producer can push the fraction backwards.
type emitter struct {
	runID string

	mu     sync.Mutex
	ch     chan Event
	last   float64
	closed bool
}

func newEmitter(runID string) *emitter {
	return &emitter{
		runID: runID,
		ch:    make(chan Event, 128),
	}
}

func (e *emitter) events() <-chan Event { return e.ch }

func (e *emitter) emit(stage Stage, processed, total int, fraction float64, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	if fraction < e.last {
		fraction = e.last
	}
	if fraction > 1 {
		fraction = 1
	}
	e.last = fraction

	ev := Event{
		RunID:     e.runID,
		Stage:     stage,
		Processed: processed,
		Total:     total,
		Fraction:  fraction,
		Message:   message,
	}
	select {
	case e.ch <- ev:
	default:
	}
}

func (e *emitter) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}
