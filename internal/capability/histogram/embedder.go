// Package histogram provides a deterministic, model-free image embedder:
// the frame's normalized per-channel RGB histogram. It is the last-resort
// fallback in the embedder chain, keeping keyframe selection functional
// on machines with no local model and no network.
package histogram

import (
	"context"
	"math"

	"github.com/sagevision/sagevision/internal/capability"
	"github.com/sagevision/sagevision/internal/scene"
	"github.com/sagevision/sagevision/internal/video"
)

// Embedder maps frames to L2-normalized histogram vectors
// (3 x scene.HistogramBins dimensions).
type Embedder struct{}

// New constructs the histogram embedder. It never fails.
func New(ctx context.Context, s capability.Settings) (capability.Embedder, error) {
	return &Embedder{}, nil
}

func (e *Embedder) Embed(ctx context.Context, frames []video.Frame) ([][]float32, error) {
	vectors := make([][]float32, len(frames))
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hist := scene.ComputeHistogram(frame.Image)

		vec := make([]float32, len(hist.Bins))
		var norm float64
		for j, v := range hist.Bins {
			vec[j] = float32(v)
			norm += v * v
		}
		if norm > 0 {
			inv := float32(1 / math.Sqrt(norm))
			for j := range vec {
				vec[j] *= inv
			}
		}
		vectors[i] = vec
	}
	return vectors, nil
}

var _ capability.Embedder = (*Embedder)(nil)
