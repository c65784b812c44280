package pipeline

import (
	"sort"

	"github.com/sagevision/sagevision/internal/scene"
	"github.com/sagevision/sagevision/internal/video"
)

// Scene is one detected scene and everything the run produced for it.
// Scenes in a Report are ordered by ID and their boundaries partition the
// processed frame range.
type Scene struct {
	// ID is the 0-based scene position in the video.
	ID int

	// Boundary is the half-open frame range [Start, End) of the scene.
	Boundary scene.Boundary

	// Keyframes are the selected representative frames in temporal order.
	// Pixel data is released once captioning finishes; Index, Timestamp
	// and Path survive.
	Keyframes []video.Frame

	// Captions maps a keyframe's frame index to its caption. Keyframes
	// whose caption call failed are absent.
	Captions map[int]string

	// Summary is the tier-1 scene summary. Empty marks a scene whose
	// captions or summarization failed; such scenes are excluded from the
	// final summary but stay in the record.
	Summary string

	// Degraded is set when any capability fell back or failed for this
	// scene. Diag carries the human-readable reasons.
	Degraded bool
	Diag     string
}

// orderedCaptions returns the scene's captions in keyframe temporal
// order, skipping keyframes that never got one.
func (s *Scene) orderedCaptions() []string {
	indexes := make([]int, 0, len(s.Captions))
	for idx := range s.Captions {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	captions := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		captions = append(captions, s.Captions[idx])
	}
	return captions
}

// VideoSummary is the hierarchical summary of a whole run.
type VideoSummary struct {
	// SceneSummaries holds one entry per scene, in scene order. Entries
	// are empty for scenes that degraded past recovery.
	SceneSummaries []string

	// FinalText is the tier-2 summary over the non-empty scene summaries.
	FinalText string
}

// Report is the complete outcome of a run. It is always produced, even
// for cancelled and failed runs, carrying whatever was assembled before
// the run stopped.
type Report struct {
	RunID      string
	Status     Status
	Summary    VideoSummary
	Scenes     []Scene
	FramesRead int

	// Err is the fatal error for a Failed run, nil otherwise.
	Err error
}
