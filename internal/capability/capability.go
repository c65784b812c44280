// Package capability defines the narrow interfaces the pipeline uses to
// talk to external models, plus a registry of named providers so the
// concrete model behind each role is chosen at configuration time. Core
// code depends only on these interfaces, never on a concrete model.
package capability

import (
	"context"
	"errors"
	"fmt"

	"github.com/sagevision/sagevision/internal/video"
)

// Captioner turns one keyframe into a short textual description.
type Captioner interface {
	Caption(ctx context.Context, frame video.Frame) (string, error)
}

// Embedder maps frames to fixed-length vectors used for diversity
// scoring. Implementations must be deterministic for identical input and
// should L2-normalize their output.
type Embedder interface {
	Embed(ctx context.Context, frames []video.Frame) ([][]float32, error)
}

// Summarizer compresses an ordered list of texts into one. It must
// tolerate 1..N inputs.
type Summarizer interface {
	Summarize(ctx context.Context, texts []string) (string, error)
}

// ErrUnavailable marks a provider that cannot serve at all (missing model
// file, missing API key). Chains skip unavailable providers at bind time.
var ErrUnavailable = errors.New("capability unavailable")

// Role identifies which capability slot an error belongs to.
type Role string

const (
	RoleCaptioner  Role = "captioner"
	RoleEmbedder   Role = "embedder"
	RoleSummarizer Role = "summarizer"
)

// Error wraps a per-call capability failure. These are isolated: the
// orchestrator degrades the affected unit and continues the run.
type Error struct {
	Role     Role
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %q failed: %v", e.Role, e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
