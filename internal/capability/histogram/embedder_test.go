package histogram

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/sagevision/sagevision/internal/capability"
	"github.com/sagevision/sagevision/internal/video"
)

func solidFrame(idx int, c color.RGBA) video.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return video.Frame{Index: idx, Image: img}
}

func TestEmbed_NormalizedVectors(t *testing.T) {
	embedder, err := New(context.Background(), capability.Settings{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	frames := []video.Frame{
		solidFrame(0, color.RGBA{R: 255, A: 255}),
		solidFrame(1, color.RGBA{B: 255, A: 255}),
	}
	vectors, err := embedder.Embed(context.Background(), frames)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vectors))
	}

	for i, vec := range vectors {
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if math.Abs(norm-1.0) > 1e-5 {
			t.Errorf("vector %d has squared norm %v, want 1.0", i, norm)
		}
	}
}

func TestEmbed_Deterministic(t *testing.T) {
	embedder, err := New(context.Background(), capability.Settings{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	frames := []video.Frame{solidFrame(0, color.RGBA{R: 120, G: 40, B: 200, A: 255})}

	first, err := embedder.Embed(context.Background(), frames)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	second, err := embedder.Embed(context.Background(), frames)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	for i := range first[0] {
		if first[0][i] != second[0][i] {
			t.Fatalf("embeddings differ at component %d", i)
		}
	}
}

func TestEmbed_DistinctColorsDistinctVectors(t *testing.T) {
	embedder, err := New(context.Background(), capability.Settings{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	vectors, err := embedder.Embed(context.Background(), []video.Frame{
		solidFrame(0, color.RGBA{R: 255, A: 255}),
		solidFrame(1, color.RGBA{B: 255, A: 255}),
	})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	var dot float64
	for i := range vectors[0] {
		dot += float64(vectors[0][i]) * float64(vectors[1][i])
	}
	// Red and blue share only the green channel's empty-bin mass, so the
	// vectors must be far from parallel.
	if dot > 0.9 {
		t.Errorf("dot product = %v, want clearly below 1", dot)
	}
}
