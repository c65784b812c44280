package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeSummarizer records calls and returns a canned result.
type fakeSummarizer struct {
	calls  int
	inputs [][]string
	out    string
	err    error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, texts []string) (string, error) {
	f.calls++
	f.inputs = append(f.inputs, texts)
	if f.err != nil {
		return "", f.err
	}
	if f.out != "" {
		return f.out, nil
	}
	return "merged: " + strings.Join(texts, " + "), nil
}

func TestSceneSummary(t *testing.T) {
	tests := []struct {
		name        string
		captions    []string
		summarizer  *fakeSummarizer
		wantSummary string
		wantDiag    bool
		wantCalls   int
	}{
		{
			name:        "no captions yields empty sentinel",
			captions:    nil,
			summarizer:  &fakeSummarizer{},
			wantSummary: "",
			wantDiag:    true,
			wantCalls:   0,
		},
		{
			name:        "single caption returned verbatim",
			captions:    []string{"a dog runs on the beach"},
			summarizer:  &fakeSummarizer{},
			wantSummary: "a dog runs on the beach",
			wantCalls:   0,
		},
		{
			name:        "multiple captions summarized",
			captions:    []string{"a dog", "a beach"},
			summarizer:  &fakeSummarizer{out: "a dog on a beach"},
			wantSummary: "a dog on a beach",
			wantCalls:   1,
		},
		{
			name:        "failure degrades to empty sentinel",
			captions:    []string{"a dog", "a beach"},
			summarizer:  &fakeSummarizer{err: errors.New("quota exceeded")},
			wantSummary: "",
			wantDiag:    true,
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(tt.summarizer)
			summary, diag, err := h.SceneSummary(context.Background(), tt.captions)
			if err != nil {
				t.Fatalf("SceneSummary() error = %v", err)
			}
			if summary != tt.wantSummary {
				t.Errorf("summary = %q, want %q", summary, tt.wantSummary)
			}
			if (diag != "") != tt.wantDiag {
				t.Errorf("diag = %q, want diag: %v", diag, tt.wantDiag)
			}
			if tt.summarizer.calls != tt.wantCalls {
				t.Errorf("summarizer called %d times, want %d", tt.summarizer.calls, tt.wantCalls)
			}
		})
	}
}

func TestVideoSummary_ExcludesEmptySceneSummaries(t *testing.T) {
	summarizer := &fakeSummarizer{}
	h := New(summarizer)

	_, diag, err := h.VideoSummary(context.Background(), []string{"scene one", "", "scene three"})
	if err != nil {
		t.Fatalf("VideoSummary() error = %v", err)
	}
	if diag != "" {
		t.Errorf("unexpected diag %q", diag)
	}
	if summarizer.calls != 1 {
		t.Fatalf("summarizer called %d times, want 1", summarizer.calls)
	}
	got := summarizer.inputs[0]
	if len(got) != 2 || got[0] != "scene one" || got[1] != "scene three" {
		t.Errorf("summarizer input = %v, want non-empty summaries only", got)
	}
}

func TestVideoSummary_SingleSceneShortCircuits(t *testing.T) {
	summarizer := &fakeSummarizer{}
	h := New(summarizer)

	final, diag, err := h.VideoSummary(context.Background(), []string{"", "only scene", ""})
	if err != nil {
		t.Fatalf("VideoSummary() error = %v", err)
	}
	if final != "only scene" {
		t.Errorf("final = %q, want scene summary verbatim", final)
	}
	if diag != "" || summarizer.calls != 0 {
		t.Errorf("diag = %q calls = %d, want no call and no diag", diag, summarizer.calls)
	}
}

func TestVideoSummary_AllScenesEmpty(t *testing.T) {
	summarizer := &fakeSummarizer{}
	h := New(summarizer)

	final, diag, err := h.VideoSummary(context.Background(), []string{"", ""})
	if err != nil {
		t.Fatalf("VideoSummary() error = %v", err)
	}
	if final != "" || diag == "" || summarizer.calls != 0 {
		t.Errorf("got final %q diag %q calls %d, want empty final with diag and no call", final, diag, summarizer.calls)
	}
}

func TestVideoSummary_FailureFallsBackToJoin(t *testing.T) {
	summarizer := &fakeSummarizer{err: errors.New("timeout")}
	h := New(summarizer)

	final, diag, err := h.VideoSummary(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("VideoSummary() error = %v", err)
	}
	if final != "first\nsecond" {
		t.Errorf("final = %q, want joined scene summaries", final)
	}
	if diag == "" {
		t.Error("expected diag for degraded final summary")
	}
}

func TestSceneSummary_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := New(&fakeSummarizer{})
	if _, _, err := h.SceneSummary(ctx, []string{"a", "b"}); !errors.Is(err, context.Canceled) {
		t.Errorf("SceneSummary() error = %v, want context.Canceled", err)
	}
}
