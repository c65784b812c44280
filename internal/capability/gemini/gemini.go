// Package gemini implements the captioner and summarizer roles against
// the Gemini API. One client serves both; the model name resolves from
// configuration or the GEMINI_MODEL environment variable.
package gemini

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/sagevision/sagevision/internal/capability"
	"github.com/sagevision/sagevision/internal/video"
)

// DefaultModelName is the default Gemini model. Flash models are the
// right trade-off for short per-frame captions.
const DefaultModelName = "gemini-3-flash-preview"

const captionSystemPrompt = "You are a visual analysis assistant. " +
	"Describe the image in one or two factual sentences: the setting, the subjects, " +
	"and what is happening. Do not speculate about things not visible in the image."

const summarySystemPrompt = "You are a video summarization assistant. " +
	"You receive descriptions of consecutive moments from a video, in order. " +
	"Merge them into one coherent summary of what the video shows. " +
	"Keep it concise, preserve chronology, and do not invent details."

// Client wraps a genai.Client for both text roles.
type Client struct {
	client *genai.Client
	model  string
}

// New creates the shared Gemini client. A missing GEMINI_API_KEY reports
// ErrUnavailable so provider chains can fall through.
func New(ctx context.Context, s capability.Settings) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set: %w", capability.ErrUnavailable)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := s.GeminiModel
	if model == "" {
		model = os.Getenv("GEMINI_MODEL")
	}
	if model == "" {
		model = DefaultModelName
	}

	log.Info().Str("model", model).Msg("Gemini client initialized")

	return &Client{client: client, model: model}, nil
}

// NewCaptioner is the registry factory for the captioner role.
func NewCaptioner(ctx context.Context, s capability.Settings) (capability.Captioner, error) {
	return New(ctx, s)
}

// NewSummarizer is the registry factory for the summarizer role.
func NewSummarizer(ctx context.Context, s capability.Settings) (capability.Summarizer, error) {
	return New(ctx, s)
}

// Caption sends the frame as an inline JPEG and returns the model's
// description.
func (c *Client) Caption(ctx context.Context, frame video.Frame) (string, error) {
	data, err := frameJPEG(frame)
	if err != nil {
		return "", &capability.Error{Role: capability.RoleCaptioner, Provider: "gemini", Err: err}
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: captionSystemPrompt}},
		},
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: data}},
		{Text: "Describe this video frame."},
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", &capability.Error{Role: capability.RoleCaptioner, Provider: "gemini",
			Err: fmt.Errorf("failed to generate content: %w", err)}
	}
	if resp == nil || resp.Text() == "" {
		return "", &capability.Error{Role: capability.RoleCaptioner, Provider: "gemini",
			Err: fmt.Errorf("received empty response from Gemini API")}
	}

	caption := strings.TrimSpace(resp.Text())
	log.Debug().Int("frame", frame.Index).Int("caption_length", len(caption)).Msg("frame captioned")
	return caption, nil
}

// Summarize joins the input texts in order and asks the model to
// compress them into one summary.
func (c *Client) Summarize(ctx context.Context, texts []string) (string, error) {
	if len(texts) == 0 {
		return "", &capability.Error{Role: capability.RoleSummarizer, Provider: "gemini",
			Err: fmt.Errorf("no texts to summarize")}
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: summarySystemPrompt}},
		},
	}

	prompt := strings.Join(texts, "\n")
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", &capability.Error{Role: capability.RoleSummarizer, Provider: "gemini",
			Err: fmt.Errorf("failed to generate content: %w", err)}
	}
	if resp == nil || resp.Text() == "" {
		return "", &capability.Error{Role: capability.RoleSummarizer, Provider: "gemini",
			Err: fmt.Errorf("received empty response from Gemini API")}
	}

	return strings.TrimSpace(resp.Text()), nil
}

// frameJPEG returns the frame's JPEG bytes, preferring the extracted file
// on disk over re-encoding the decoded image.
func frameJPEG(frame video.Frame) ([]byte, error) {
	if frame.Path != "" {
		data, err := os.ReadFile(frame.Path)
		if err == nil {
			return data, nil
		}
		log.Warn().Err(err).Str("path", frame.Path).Msg("failed to read frame file, re-encoding")
	}
	if frame.Image == nil {
		return nil, fmt.Errorf("frame %d has no image data", frame.Index)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	_ capability.Captioner  = (*Client)(nil)
	_ capability.Summarizer = (*Client)(nil)
)
