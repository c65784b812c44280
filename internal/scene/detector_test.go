package scene

import (
	"image/color"
	"testing"

	"github.com/sagevision/sagevision/internal/video"
)

var (
	testRed   = color.RGBA{R: 255, A: 255}
	testBlue  = color.RGBA{B: 255, A: 255}
	testGreen = color.RGBA{G: 255, A: 255}
)

// colorFrames builds runs of solid-color frames, one run per color, with
// contiguous frame indexes.
func colorFrames(runs ...struct {
	c color.RGBA
	n int
}) []video.Frame {
	var frames []video.Frame
	idx := 0
	for _, run := range runs {
		img := solidImage(run.c, 32, 32)
		for i := 0; i < run.n; i++ {
			frames = append(frames, video.Frame{Index: idx, Timestamp: float64(idx), Image: img})
			idx++
		}
	}
	return frames
}

func run(c color.RGBA, n int) struct {
	c color.RGBA
	n int
} {
	return struct {
		c color.RGBA
		n int
	}{c, n}
}

// feedAll drives the detector over all frames and returns every boundary
// including the one from Finish.
func feedAll(d *Detector, frames []video.Frame) []Boundary {
	var boundaries []Boundary
	for _, f := range frames {
		if b, ok := d.Feed(f); ok {
			boundaries = append(boundaries, b)
		}
	}
	if b, ok := d.Finish(); ok {
		boundaries = append(boundaries, b)
	}
	return boundaries
}

func assertPartition(t *testing.T, boundaries []Boundary, total int) {
	t.Helper()
	if len(boundaries) == 0 {
		t.Fatal("no boundaries produced")
	}
	if boundaries[0].Start != 0 {
		t.Errorf("first boundary starts at %d, want 0", boundaries[0].Start)
	}
	for i := 1; i < len(boundaries); i++ {
		if boundaries[i].Start != boundaries[i-1].End {
			t.Errorf("boundary %d starts at %d, previous ends at %d", i, boundaries[i].Start, boundaries[i-1].End)
		}
	}
	if last := boundaries[len(boundaries)-1].End; last != total {
		t.Errorf("last boundary ends at %d, want %d", last, total)
	}
}

func TestDetector_UniformVideoSingleScene(t *testing.T) {
	frames := colorFrames(run(testRed, 20))
	d := NewDetector(Options{Sigma: 2.5, MinSceneLen: 5})

	boundaries := feedAll(d, frames)

	if len(boundaries) != 1 {
		t.Fatalf("got %d scenes, want 1", len(boundaries))
	}
	if boundaries[0] != (Boundary{Start: 0, End: 20}) {
		t.Errorf("boundary = %+v, want {0 20}", boundaries[0])
	}
}

func TestDetector_DetectsCuts(t *testing.T) {
	frames := colorFrames(run(testRed, 10), run(testBlue, 10), run(testGreen, 10))
	d := NewDetector(Options{Sigma: 2.5, MinSceneLen: 3})

	boundaries := feedAll(d, frames)

	want := []Boundary{{0, 10}, {10, 20}, {20, 30}}
	if len(boundaries) != len(want) {
		t.Fatalf("got %d scenes %v, want %d", len(boundaries), boundaries, len(want))
	}
	for i, b := range boundaries {
		if b != want[i] {
			t.Errorf("scene %d = %+v, want %+v", i, b, want[i])
		}
	}
	assertPartition(t, boundaries, 30)
}

func TestDetector_MinSceneLenSuppressesEarlyCut(t *testing.T) {
	// The cut at frame 3 falls inside both the warm-up and the minimum
	// scene length, so the whole clip stays one scene.
	frames := colorFrames(run(testRed, 3), run(testBlue, 7))
	d := NewDetector(Options{Sigma: 2.5, MinSceneLen: 5})

	boundaries := feedAll(d, frames)

	if len(boundaries) != 1 {
		t.Fatalf("got %d scenes %v, want 1", len(boundaries), boundaries)
	}
	assertPartition(t, boundaries, 10)
}

func TestDetector_ShortVideoSingleScene(t *testing.T) {
	frames := colorFrames(run(testRed, 2))
	d := NewDetector(Options{Sigma: 2.5, MinSceneLen: 5})

	boundaries := feedAll(d, frames)

	if len(boundaries) != 1 || boundaries[0] != (Boundary{Start: 0, End: 2}) {
		t.Fatalf("boundaries = %v, want [{0 2}]", boundaries)
	}
}

func TestDetector_FinishWithoutFrames(t *testing.T) {
	d := NewDetector(Options{Sigma: 2.5, MinSceneLen: 5})
	if b, ok := d.Finish(); ok {
		t.Errorf("Finish() on empty detector returned %+v", b)
	}
}

func TestDetector_Deterministic(t *testing.T) {
	frames := colorFrames(run(testRed, 12), run(testBlue, 12))

	first := feedAll(NewDetector(Options{Sigma: 2.5, MinSceneLen: 3}), frames)
	second := feedAll(NewDetector(Options{Sigma: 2.5, MinSceneLen: 3}), frames)

	if len(first) != len(second) {
		t.Fatalf("runs differ in scene count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("scene %d differs across runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestBoundary_Len(t *testing.T) {
	if got := (Boundary{Start: 5, End: 12}).Len(); got != 7 {
		t.Errorf("Len() = %d, want 7", got)
	}
}
