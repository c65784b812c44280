// Package clip embeds frames with a CLIP image encoder exported to ONNX,
// executed locally through ONNX Runtime. Identical input produces
// identical vectors, which keeps keyframe selection reproducible.
package clip

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"

	"github.com/sagevision/sagevision/internal/capability"
	"github.com/sagevision/sagevision/internal/video"
)

const (
	inputSize = 224

	// embedDim is the output dimension of the ViT-B/32 image encoder.
	embedDim = 512
)

// CLIP preprocessing constants (OpenAI CLIP mean/std).
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// Embedder runs a CLIP image encoder (pixel_values -> image_embeds) over
// ONNX Runtime.
type Embedder struct {
	logger     zerolog.Logger
	session    *ort.DynamicAdvancedSession
	inputShape ort.Shape
}

// New loads the ONNX model at s.CLIPModelPath. A missing path or model
// file reports ErrUnavailable so the chain can fall through to the
// histogram embedder.
func New(ctx context.Context, s capability.Settings) (capability.Embedder, error) {
	if s.CLIPModelPath == "" {
		return nil, fmt.Errorf("no CLIP model path configured: %w", capability.ErrUnavailable)
	}
	if _, err := os.Stat(s.CLIPModelPath); err != nil {
		return nil, fmt.Errorf("CLIP model not found at %s: %w", s.CLIPModelPath, capability.ErrUnavailable)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		s.CLIPModelPath,
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CLIP session: %w", err)
	}

	log.Info().Str("model", s.CLIPModelPath).Msg("CLIP image encoder loaded")

	return &Embedder{
		logger:     log.With().Str("component", "clip-embedder").Logger(),
		session:    session,
		inputShape: ort.NewShape(1, 3, inputSize, inputSize),
	}, nil
}

func (e *Embedder) Embed(ctx context.Context, frames []video.Frame) ([][]float32, error) {
	vectors := make([][]float32, len(frames))
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.embedOne(frame)
		if err != nil {
			return nil, &capability.Error{Role: capability.RoleEmbedder, Provider: "clip", Err: err}
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *Embedder) embedOne(frame video.Frame) ([]float32, error) {
	pixelTensor, err := ort.NewTensor(e.inputShape, preprocess(frame.Image))
	if err != nil {
		return nil, fmt.Errorf("failed to create pixel_values tensor: %w", err)
	}
	defer pixelTensor.Destroy()

	embedsTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, embedDim))
	if err != nil {
		return nil, fmt.Errorf("failed to create image_embeds tensor: %w", err)
	}
	defer embedsTensor.Destroy()

	inputs := []ort.ArbitraryTensor{pixelTensor}
	outputs := []ort.ArbitraryTensor{embedsTensor}
	if err := e.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("CLIP inference failed: %w", err)
	}

	data := embedsTensor.GetData()
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image_embeds tensor")
	}

	vec := make([]float32, len(data))
	copy(vec, data)
	normalize(vec)
	return vec, nil
}

// preprocess converts a frame into CLIP pixel_values: 224x224 bilinear
// resize, channel-first float32, CLIP mean/std normalization.
func preprocess(img image.Image) []float32 {
	resized := image.NewRGBA(image.Rect(0, 0, inputSize, inputSize))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

	data := make([]float32, 3*inputSize*inputSize)
	idx := 0
	for ch := 0; ch < 3; ch++ {
		for y := 0; y < inputSize; y++ {
			for x := 0; x < inputSize; x++ {
				r, g, b, _ := resized.At(x, y).RGBA()
				var v float32
				switch ch {
				case 0:
					v = float32(r>>8) / 255.0
				case 1:
					v = float32(g>>8) / 255.0
				case 2:
					v = float32(b>>8) / 255.0
				}
				data[idx] = (v - clipMean[ch]) / clipStd[ch]
				idx++
			}
		}
	}
	return data
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
}

// Close releases the CLIP session and the ONNX environment.
func (e *Embedder) Close() error {
	e.logger.Info().Msg("closing CLIP session")
	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			return err
		}
	}
	return ort.DestroyEnvironment()
}

var _ capability.Embedder = (*Embedder)(nil)
