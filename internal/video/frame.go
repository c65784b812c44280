package video

import (
	"context"
	"fmt"
	"image"
	"io"
)

// Frame is a single decoded video frame. Frames are immutable once
// produced and are owned transiently by the stage processing them; they
// are not retained after their scene closes.
type Frame struct {
	// Index is the position of the frame in the extracted stream (0-based).
	Index int

	// Timestamp is the frame's position in the video, in seconds.
	Timestamp float64

	// Image is the decoded pixel data.
	Image image.Image

	// Path optionally points at the frame's JPEG file on disk. Capability
	// providers that talk to external processes prefer the file; in-memory
	// sources leave it empty.
	Path string
}

// FrameSource produces frames in strict timestamp order. It has a single
// consumer and cannot be rewound.
//
// Next returns io.EOF when the stream ends cleanly. Any other error is a
// read failure: the source is dead and no further frames will be produced.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// SourceError wraps a frame-source read failure. It is fatal to the run:
// the pipeline keeps every scene closed before the failure but produces
// no further scenes.
type SourceError struct {
	Frame int // index of the frame that failed to read
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("frame source failed at frame %d: %v", e.Frame, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// SliceSource serves frames from memory. It backs tests and library
// callers that already hold decoded frames. FailAfter, when non-negative,
// makes the source return a read error once that many frames have been
// served, exercising the fatal-error path.
type SliceSource struct {
	Frames    []Frame
	FailAfter int

	pos int
}

// NewSliceSource wraps frames in a FrameSource that never fails.
func NewSliceSource(frames []Frame) *SliceSource {
	return &SliceSource{Frames: frames, FailAfter: -1}
}

func (s *SliceSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.FailAfter >= 0 && s.pos >= s.FailAfter {
		return Frame{}, &SourceError{Frame: s.pos, Err: fmt.Errorf("simulated read failure")}
	}
	if s.pos >= len(s.Frames) {
		return Frame{}, io.EOF
	}
	f := s.Frames[s.pos]
	s.pos++
	return f, nil
}

// TotalFrames reports the number of frames the source will serve on the
// happy path. Progress reporting treats it as an estimate.
func (s *SliceSource) TotalFrames() int { return len(s.Frames) }

func (s *SliceSource) Close() error { return nil }
