package capability

// registry.go binds provider names to constructors and resolves ordered
// fallback chains at initialisation time. The first provider in a chain
// that constructs successfully is bound for the whole run; a later
// provider is never silently retried mid-run.

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Settings carries the configuration providers may need to construct.
type Settings struct {
	// CLIPModelPath locates the ONNX CLIP image encoder.
	CLIPModelPath string

	// GeminiModel overrides the Gemini model name. Empty uses the
	// provider default (or the GEMINI_MODEL environment variable).
	GeminiModel string
}

// Factories build providers. Returning an error wrapping ErrUnavailable
// moves the chain on to the next provider.
type (
	CaptionerFactory  func(ctx context.Context, s Settings) (Captioner, error)
	EmbedderFactory   func(ctx context.Context, s Settings) (Embedder, error)
	SummarizerFactory func(ctx context.Context, s Settings) (Summarizer, error)
)

// Registry holds the named provider constructors for each role.
type Registry struct {
	captioners  map[string]CaptionerFactory
	embedders   map[string]EmbedderFactory
	summarizers map[string]SummarizerFactory
}

func NewRegistry() *Registry {
	return &Registry{
		captioners:  make(map[string]CaptionerFactory),
		embedders:   make(map[string]EmbedderFactory),
		summarizers: make(map[string]SummarizerFactory),
	}
}

func (r *Registry) RegisterCaptioner(name string, f CaptionerFactory) {
	r.captioners[name] = f
}

func (r *Registry) RegisterEmbedder(name string, f EmbedderFactory) {
	r.embedders[name] = f
}

func (r *Registry) RegisterSummarizer(name string, f SummarizerFactory) {
	r.summarizers[name] = f
}

// ParseChain splits a comma-separated provider list into names.
func ParseChain(chain string) []string {
	var names []string
	for _, part := range strings.Split(chain, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ResolveCaptioner binds the first captioner in the chain that
// constructs. Returns the provider and its name.
func (r *Registry) ResolveCaptioner(ctx context.Context, chain []string, s Settings) (Captioner, string, error) {
	var lastErr error
	for _, name := range chain {
		factory, ok := r.captioners[name]
		if !ok {
			return nil, "", fmt.Errorf("unknown captioner provider %q", name)
		}
		c, err := factory(ctx, s)
		if err != nil {
			log.Warn().Err(err).Str("provider", name).Msg("captioner provider unavailable, trying next")
			lastErr = err
			continue
		}
		log.Info().Str("provider", name).Msg("captioner bound")
		return c, name, nil
	}
	return nil, "", fmt.Errorf("no captioner provider available: %w", lastErr)
}

// ResolveEmbedder binds the first embedder in the chain that constructs.
func (r *Registry) ResolveEmbedder(ctx context.Context, chain []string, s Settings) (Embedder, string, error) {
	var lastErr error
	for _, name := range chain {
		factory, ok := r.embedders[name]
		if !ok {
			return nil, "", fmt.Errorf("unknown embedder provider %q", name)
		}
		e, err := factory(ctx, s)
		if err != nil {
			log.Warn().Err(err).Str("provider", name).Msg("embedder provider unavailable, trying next")
			lastErr = err
			continue
		}
		log.Info().Str("provider", name).Msg("embedder bound")
		return e, name, nil
	}
	return nil, "", fmt.Errorf("no embedder provider available: %w", lastErr)
}

// ResolveSummarizer binds the first summarizer in the chain that constructs.
func (r *Registry) ResolveSummarizer(ctx context.Context, chain []string, s Settings) (Summarizer, string, error) {
	var lastErr error
	for _, name := range chain {
		factory, ok := r.summarizers[name]
		if !ok {
			return nil, "", fmt.Errorf("unknown summarizer provider %q", name)
		}
		sm, err := factory(ctx, s)
		if err != nil {
			log.Warn().Err(err).Str("provider", name).Msg("summarizer provider unavailable, trying next")
			lastErr = err
			continue
		}
		log.Info().Str("provider", name).Msg("summarizer bound")
		return sm, name, nil
	}
	return nil, "", fmt.Errorf("no summarizer provider available: %w", lastErr)
}
