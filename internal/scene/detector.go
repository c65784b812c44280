package scene

// detector.go implements streaming shot-boundary detection. The detector
// is online: it sees each frame exactly once, keeps causal running
// statistics of the difference scores, and never requires a second pass.

import (
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sagevision/sagevision/internal/video"
)

// Boundary is a half-open frame index range [Start, End) forming one
// scene. Boundaries emitted by a detector partition the full frame range:
// ordered, gap-free and overlap-free, with each End equal to the next
// Start and the last End equal to the total frame count.
type Boundary struct {
	Start int
	End   int
}

// Len returns the number of frames in the boundary.
func (b Boundary) Len() int { return b.End - b.Start }

// Options configures a Detector.
type Options struct {
	// Sigma is how many standard deviations above the running mean a
	// score must be to open a new scene.
	Sigma float64

	// MinSceneLen is the minimum frames per scene; boundaries that would
	// create a shorter scene are suppressed. It also sets the warm-up:
	// the detector never fires until it has observed this many scores.
	MinSceneLen int

	// Score is the frame-difference strategy. Nil means ChiSquare.
	Score ScoreFunc
}

// Detector consumes frames one at a time and closes a Boundary whenever
// the difference score spikes past the adaptive threshold. One instance
// serves one run.
type Detector struct {
	score  ScoreFunc
	sigma  float64
	minLen int

	prev       *Histogram
	sceneStart int
	nextIndex  int

	// Welford running statistics over scores seen so far.
	count int
	mean  float64
	m2    float64

	logger zerolog.Logger
}

// NewDetector creates a streaming detector.
func NewDetector(opts Options) *Detector {
	score := opts.Score
	if score == nil {
		score = ChiSquare
	}
	minLen := opts.MinSceneLen
	if minLen < 1 {
		minLen = 1
	}
	return &Detector{
		score:  score,
		sigma:  opts.Sigma,
		minLen: minLen,
		logger: log.With().Str("component", "scene-detector").Logger(),
	}
}

// Feed consumes the next frame in stream order. It returns a closed
// Boundary and true when this frame starts a new scene; the boundary
// covers the frames before it.
func (d *Detector) Feed(frame video.Frame) (Boundary, bool) {
	hist := ComputeHistogram(frame.Image)
	idx := d.nextIndex
	d.nextIndex++

	if d.prev == nil {
		d.prev = hist
		return Boundary{}, false
	}

	score := d.score(d.prev, hist)
	d.prev = hist

	// Threshold from scores seen before this one, so the decision is
	// causal and a single spike cannot raise its own bar.
	fire := d.count >= d.minLen &&
		score > d.mean+d.sigma*math.Sqrt(d.variance()) &&
		idx-d.sceneStart >= d.minLen

	d.observe(score)

	if !fire {
		return Boundary{}, false
	}

	b := Boundary{Start: d.sceneStart, End: idx}
	d.sceneStart = idx

	d.logger.Debug().
		Int("frame", idx).
		Float64("score", score).
		Float64("mean", d.mean).
		Msg("scene change detected")

	return b, true
}

// Finish closes the trailing scene. It returns false only when no frames
// were ever fed. A video shorter than MinSceneLen, or one where no
// boundary ever fired, yields exactly one scene covering everything.
func (d *Detector) Finish() (Boundary, bool) {
	if d.nextIndex == 0 || d.sceneStart >= d.nextIndex {
		return Boundary{}, false
	}
	b := Boundary{Start: d.sceneStart, End: d.nextIndex}
	d.sceneStart = d.nextIndex
	return b, true
}

// FramesSeen reports how many frames have been fed so far.
func (d *Detector) FramesSeen() int { return d.nextIndex }

func (d *Detector) observe(score float64) {
	d.count++
	delta := score - d.mean
	d.mean += delta / float64(d.count)
	d.m2 += delta * (score - d.mean)
}

func (d *Detector) variance() float64 {
	if d.count < 2 {
		return 0
	}
	return d.m2 / float64(d.count-1)
}
