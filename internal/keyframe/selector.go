// Package keyframe selects a small, diverse, temporally ordered subset of
// a scene's frames to represent it to the captioning model. Diversity is
// greedy farthest-point sampling in embedding space; when the embedder is
// unavailable the selector degrades to uniform temporal sampling instead
// of failing the run.
package keyframe

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sagevision/sagevision/internal/capability"
	"github.com/sagevision/sagevision/internal/video"
)

// Selector picks at most MaxKeyframes frames per scene.
type Selector struct {
	embedder capability.Embedder

	// MaxKeyframes is the per-scene budget (K).
	MaxKeyframes int

	// MaxEmbedFrames caps embedding calls for long scenes; candidates
	// beyond it are uniformly sub-sampled away before embedding.
	MaxEmbedFrames int

	logger zerolog.Logger
}

// NewSelector creates a selector over the given embedder.
func NewSelector(embedder capability.Embedder, maxKeyframes, maxEmbedFrames int) *Selector {
	return &Selector{
		embedder:       embedder,
		MaxKeyframes:   maxKeyframes,
		MaxEmbedFrames: maxEmbedFrames,
		logger:         log.With().Str("component", "keyframe-selector").Logger(),
	}
}

// Select returns the chosen keyframes in temporal order. The boolean
// reports whether selection degraded to uniform sampling because the
// embedder failed; that path is observable but never fatal.
func (s *Selector) Select(ctx context.Context, frames []video.Frame) ([]video.Frame, bool, error) {
	n := len(frames)
	if n == 0 {
		return nil, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	// A scene shorter than the budget needs no selection.
	if n <= s.MaxKeyframes {
		return append([]video.Frame(nil), frames...), false, nil
	}

	candidates := frames
	if s.MaxEmbedFrames > 0 && n > s.MaxEmbedFrames {
		candidates = uniformSample(frames, s.MaxEmbedFrames)
	}

	embeddings, err := s.embedder.Embed(ctx, candidates)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		s.logger.Warn().Err(err).
			Int("scene_frames", n).
			Msg("embedder failed, falling back to uniform temporal sampling")
		return uniformSample(frames, s.MaxKeyframes), true, nil
	}

	picked := farthestPoint(embeddings, s.MaxKeyframes)

	selected := make([]video.Frame, len(picked))
	for i, idx := range picked {
		selected[i] = candidates[idx]
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].Index < selected[j].Index })

	return selected, false, nil
}

// farthestPoint greedily selects k diverse points. The seed is the
// temporal midpoint (deterministic, avoids bias toward scene start); each
// following pick maximizes the minimum cosine distance to the current
// selection, with distance ties broken toward the lower index.
func farthestPoint(embeddings [][]float32, k int) []int {
	n := len(embeddings)
	if k >= n {
		idxs := make([]int, n)
		for i := range idxs {
			idxs[i] = i
		}
		return idxs
	}

	seed := n / 2
	selected := []int{seed}
	chosen := make([]bool, n)
	chosen[seed] = true

	minDists := make([]float64, n)
	for i := range minDists {
		minDists[i] = cosineDistance(embeddings[i], embeddings[seed])
	}

	for len(selected) < k {
		best := -1
		bestDist := -1.0
		for i := 0; i < n; i++ {
			if !chosen[i] && minDists[i] > bestDist {
				bestDist = minDists[i]
				best = i
			}
		}
		if best < 0 {
			break
		}
		selected = append(selected, best)
		chosen[best] = true
		for i := 0; i < n; i++ {
			if d := cosineDistance(embeddings[i], embeddings[best]); d < minDists[i] {
				minDists[i] = d
			}
		}
	}

	return selected
}

// cosineDistance is 1 - dot product; embedders L2-normalize their output
// so no norm division is needed here.
func cosineDistance(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot
}

// uniformSample picks k evenly spaced frames, always including progress
// through the whole range, preserving order.
func uniformSample(frames []video.Frame, k int) []video.Frame {
	n := len(frames)
	if k >= n {
		return append([]video.Frame(nil), frames...)
	}
	out := make([]video.Frame, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, frames[i*n/k])
	}
	return out
}
