// Package summarize implements the two-tier compression that keeps model
// input bounded regardless of video length: keyframe captions collapse
// into one scene summary, scene summaries collapse into the final video
// summary. Each tier short-circuits single inputs so no model call is
// wasted on text that needs no compression.
package summarize

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sagevision/sagevision/internal/capability"
)

// Hierarchical runs both tiers over one Summarizer capability.
type Hierarchical struct {
	summarizer capability.Summarizer
	logger     zerolog.Logger
}

func New(summarizer capability.Summarizer) *Hierarchical {
	return &Hierarchical{
		summarizer: summarizer,
		logger:     log.With().Str("component", "summarizer").Logger(),
	}
}

// SceneSummary collapses a scene's ordered captions into one summary
// (tier 1).
//
//   - No captions: the summary is the empty sentinel and the scene is
//     degraded; it stays in the record for diagnostics but is excluded
//     from tier 2.
//   - Exactly one caption: that caption IS the summary; no model call.
//   - Summarizer failure: empty sentinel plus degraded, never fatal.
//
// The returned diag is empty unless the summary degraded.
func (h *Hierarchical) SceneSummary(ctx context.Context, captions []string) (summary string, diag string, err error) {
	switch len(captions) {
	case 0:
		return "", "no captions available for scene", nil
	case 1:
		return captions[0], "", nil
	}

	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	out, serr := h.summarizer.Summarize(ctx, captions)
	if serr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", "", ctxErr
		}
		h.logger.Warn().Err(serr).Int("captions", len(captions)).Msg("scene summarization failed, marking scene empty")
		return "", "scene summarization failed: " + serr.Error(), nil
	}
	return strings.TrimSpace(out), "", nil
}

// VideoSummary collapses the ordered non-empty scene summaries into the
// final text (tier 2). A single scene's summary is returned verbatim. On
// summarizer failure the final text degrades to the joined scene
// summaries so the caller never receives a silent empty result.
func (h *Hierarchical) VideoSummary(ctx context.Context, sceneSummaries []string) (string, string, error) {
	nonEmpty := make([]string, 0, len(sceneSummaries))
	for _, s := range sceneSummaries {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}

	switch len(nonEmpty) {
	case 0:
		return "", "no scene produced a summary", nil
	case 1:
		return nonEmpty[0], "", nil
	}

	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	out, serr := h.summarizer.Summarize(ctx, nonEmpty)
	if serr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", "", ctxErr
		}
		h.logger.Warn().Err(serr).Int("scenes", len(nonEmpty)).Msg("final summarization failed, joining scene summaries")
		return strings.Join(nonEmpty, "\n"), "final summarization failed: " + serr.Error(), nil
	}
	return strings.TrimSpace(out), "", nil
}
