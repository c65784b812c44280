package pipeline

import (
	"sync"
	"sync/atomic"
)

// Stage identifies where a run currently is. Stages advance strictly
// forward; Cancelled and Failed are terminal and reachable from any
// non-terminal stage.
type Stage int

const (
	StageIdle Stage = iota
	StageParsing
	StageDetectingScenes
	StageSelectingKeyframes
	StageCaptioning
	StageSummarizing
	StageDone
	StageCancelled
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageParsing:
		return "parsing"
	case StageDetectingScenes:
		return "detecting_scenes"
	case StageSelectingKeyframes:
		return "selecting_keyframes"
	case StageCaptioning:
		return "captioning"
	case StageSummarizing:
		return "summarizing"
	case StageDone:
		return "done"
	case StageCancelled:
		return "cancelled"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageCancelled || s == StageFailed
}

// Status is the terminal outcome of a run.
type Status string

const (
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// State is the per-run pipeline state. One instance per run, reset at
// run start, never shared across runs. It is mutated only by the run's
// own control flow; the cancellation flag is the sole field written from
// outside and it lives behind an atomic.
type State struct {
	Stage           Stage
	ProcessedFrames int
	// TotalFrames is zero while unknown (streaming sources reveal it
	// only at end of stream).
	TotalFrames int
	Err         error
}

// stateBox guards State snapshots across goroutines.
type stateBox struct {
	mu    sync.Mutex
	state State
}

func (b *stateBox) update(fn func(*State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.state)
}

func (b *stateBox) snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// CancelToken is the single shared cancellation flag for a run. Callers
// hold a reference and flip it at any time; the run polls it at frame
// reads, scene boundaries and before external model calls, finishing the
// in-flight unit of work before stopping. Cancellation is best-effort
// and never destroys already-produced results.
type CancelToken struct {
	flag atomic.Bool
}

// Cancel requests a cooperative stop. Safe to call from any goroutine,
// repeatedly.
func (t *CancelToken) Cancel() { t.flag.Store(true) }

// Cancelled reports whether a stop has been requested.
func (t *CancelToken) Cancelled() bool { return t.flag.Load() }
