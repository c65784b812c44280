// Package pipeline orchestrates a full summarization run: frames stream
// through scene detection, detected scenes fan out to a bounded worker
// pool for keyframe selection and captioning, and the captions collapse
// through two summarization tiers into one video summary. Capability
// failures degrade the unit they hit; only a dead frame source or an
// invalid configuration can fail a run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sagevision/sagevision/internal/capability"
	"github.com/sagevision/sagevision/internal/config"
	"github.com/sagevision/sagevision/internal/keyframe"
	"github.com/sagevision/sagevision/internal/scene"
	"github.com/sagevision/sagevision/internal/summarize"
	"github.com/sagevision/sagevision/internal/video"
)

// Progress fractions at stage boundaries. Detection dominates wall time
// for long videos, captioning for short ones; the bands are fixed so the
// fraction stays comparable across runs.
const (
	fracParsing    = 0.02
	fracDetectEnd  = 0.40
	fracScenesEnd  = 0.85
	fracSummarized = 1.0
)

// detectionEventEvery throttles per-frame progress events.
const detectionEventEvery = 25

// Capabilities are the bound model providers a run uses. All three must
// be set; resolve them through the capability registry first.
type Capabilities struct {
	Captioner  capability.Captioner
	Embedder   capability.Embedder
	Summarizer capability.Summarizer
}

// Runner executes exactly one run. Create a fresh Runner per video.
type Runner struct {
	cfg  *config.Config
	caps Capabilities

	runID   string
	token   *CancelToken
	emitter *emitter
	box     stateBox
	started atomic.Bool

	logger zerolog.Logger
}

// NewRunner validates the configuration and prepares a run. A
// ConfigError here means nothing has started and nothing needs cleanup.
func NewRunner(cfg *config.Config, caps Capabilities) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if caps.Captioner == nil {
		return nil, &config.ConfigError{Field: "Captioner", Reason: "no captioner capability bound"}
	}
	if caps.Embedder == nil {
		return nil, &config.ConfigError{Field: "Embedder", Reason: "no embedder capability bound"}
	}
	if caps.Summarizer == nil {
		return nil, &config.ConfigError{Field: "Summarizer", Reason: "no summarizer capability bound"}
	}

	runID := uuid.NewString()
	return &Runner{
		cfg:     cfg,
		caps:    caps,
		runID:   runID,
		token:   &CancelToken{},
		emitter: newEmitter(runID),
		logger:  log.With().Str("component", "pipeline").Str("run_id", runID).Logger(),
	}, nil
}

// RunID identifies this run in events, logs and the diagnostics store.
func (r *Runner) RunID() string { return r.runID }

// Events is the progress stream for this run. The channel closes when
// the run reaches a terminal stage; slow consumers may miss intermediate
// events but the Report returned by Run is always complete.
func (r *Runner) Events() <-chan Event { return r.emitter.events() }

// Cancel requests a cooperative stop from any goroutine. The run
// finishes its in-flight unit of work, skips everything not yet started
// and reports Cancelled with the partial summary assembled so far.
func (r *Runner) Cancel() { r.token.Cancel() }

// State returns a snapshot of the run's current stage and counters.
func (r *Runner) State() State { return r.box.snapshot() }

// sceneJob carries one closed scene and its frames to the worker pool.
type sceneJob struct {
	id       int
	boundary scene.Boundary
	frames   []video.Frame
}

// Run executes the pipeline over the source until Done, Cancelled or
// Failed. The returned Report is non-nil for every started run; the
// error is non-nil only when the run Failed.
func (r *Runner) Run(ctx context.Context, source video.FrameSource) (*Report, error) {
	if !r.started.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("runner already used: create a new Runner per run")
	}
	defer r.emitter.close()

	report := &Report{RunID: r.runID}

	r.setStage(StageParsing)
	r.emitter.emit(StageParsing, 0, 0, fracParsing, "opening frame source")

	jobs, fatal, cancelled := r.detectScenes(ctx, source)
	report.FramesRead = r.box.snapshot().ProcessedFrames

	scenes := r.processScenes(ctx, jobs)

	r.summarizeScenes(ctx, report, scenes)

	switch {
	case fatal != nil:
		report.Status = StatusFailed
		report.Err = fatal
		r.finish(StageFailed, fatal, "run failed: "+fatal.Error())
		return report, fatal
	case cancelled || r.stopRequested(ctx):
		report.Status = StatusCancelled
		r.finish(StageCancelled, nil, "run cancelled")
		return report, nil
	default:
		report.Status = StatusDone
		r.emitter.emit(StageSummarizing, len(scenes), len(scenes), fracSummarized, "summary complete")
		r.finish(StageDone, nil, "run complete")
		return report, nil
	}
}

// detectScenes drives the streaming detector over the source and returns
// one job per closed scene. A source read failure closes the trailing
// scene at the last good frame and is returned as the fatal error;
// cancellation discards the unfinished trailing scene.
func (r *Runner) detectScenes(ctx context.Context, source video.FrameSource) (jobs []sceneJob, fatal error, cancelled bool) {
	r.setStage(StageDetectingScenes)

	total := 0
	if counter, ok := source.(interface{ TotalFrames() int }); ok {
		total = counter.TotalFrames()
	}
	r.box.update(func(s *State) { s.TotalFrames = total })

	detector := scene.NewDetector(scene.Options{
		Sigma:       r.cfg.ThresholdSigma,
		MinSceneLen: r.cfg.MinSceneLen,
	})

	var current []video.Frame
	processed := 0

	closeScene := func(b scene.Boundary) {
		jobs = append(jobs, sceneJob{id: len(jobs), boundary: b, frames: current})
		current = nil
	}

	for {
		if r.stopRequested(ctx) {
			// The unfinished trailing scene was never closed; it is
			// not-yet-started work and is discarded.
			cancelled = true
			return jobs, nil, true
		}

		frame, err := source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				if b, ok := detector.Finish(); ok {
					closeScene(b)
				}
				return jobs, nil, false
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return jobs, nil, true
			default:
				// Fatal: close the trailing scene at the last frame that
				// read successfully so its work is kept.
				var srcErr *video.SourceError
				if !errors.As(err, &srcErr) {
					err = &video.SourceError{Frame: processed, Err: err}
				}
				r.logger.Error().Err(err).Int("frame", processed).Msg("frame source failed")
				if b, ok := detector.Finish(); ok {
					closeScene(b)
				}
				return jobs, err, false
			}
		}

		if b, ok := detector.Feed(frame); ok {
			closeScene(b)
		}
		current = append(current, frame)
		processed++
		r.box.update(func(s *State) { s.ProcessedFrames = processed })

		if processed%detectionEventEvery == 0 {
			r.emitter.emit(StageDetectingScenes, processed, total,
				detectionFraction(processed, total),
				fmt.Sprintf("detected %d scenes over %d frames", len(jobs), processed))
		}
	}
}

func detectionFraction(processed, total int) float64 {
	if total <= 0 {
		return fracParsing
	}
	return fracParsing + (fracDetectEnd-fracParsing)*float64(processed)/float64(total)
}

// processScenes runs the bounded worker pool: each worker selects
// keyframes for a scene and captions them. Results come back out of
// order; only the contiguous prefix from scene 0 is kept, which matters
// when cancellation makes workers skip queued scenes.
func (r *Runner) processScenes(ctx context.Context, jobs []sceneJob) []Scene {
	if len(jobs) == 0 {
		return nil
	}

	r.setStage(StageSelectingKeyframes)
	r.emitter.emit(StageSelectingKeyframes, 0, len(jobs), fracDetectEnd,
		fmt.Sprintf("processing %d scenes", len(jobs)))

	selector := keyframe.NewSelector(r.caps.Embedder, r.cfg.MaxKeyframes, r.cfg.MaxEmbedFrames)

	workers := r.cfg.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	jobCh := make(chan sceneJob)
	resultCh := make(chan Scene, workers)

	var wg sync.WaitGroup
	var captioningStarted atomic.Bool
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if r.stopRequested(ctx) {
					continue
				}
				resultCh <- r.processScene(ctx, selector, &captioningStarted, job)
			}
		}()
	}
	go func() {
		for _, job := range jobs {
			jobCh <- job
		}
		close(jobCh)
		wg.Wait()
		close(resultCh)
	}()

	pending := make(map[int]Scene, len(jobs))
	var ordered []Scene
	for sc := range resultCh {
		pending[sc.ID] = sc
		for {
			next, ok := pending[len(ordered)]
			if !ok {
				break
			}
			delete(pending, next.ID)
			ordered = append(ordered, next)
			r.emitter.emit(StageCaptioning, len(ordered), len(jobs),
				sceneFraction(len(ordered), len(jobs)),
				fmt.Sprintf("scene %d captioned (%d keyframes)", next.ID, len(next.Keyframes)))
		}
	}
	return ordered
}

func sceneFraction(done, total int) float64 {
	return fracDetectEnd + (fracScenesEnd-fracDetectEnd)*float64(done)/float64(total)
}

// processScene is one worker's unit of work. Once started, the scene is
// carried to completion even under cancellation; capability failures
// degrade the scene instead of failing it.
func (r *Runner) processScene(ctx context.Context, selector *keyframe.Selector, captioningStarted *atomic.Bool, job sceneJob) Scene {
	sc := Scene{
		ID:       job.id,
		Boundary: job.boundary,
		Captions: make(map[int]string),
	}

	keyframes, degraded, err := selector.Select(ctx, job.frames)
	if err != nil {
		sc.Degraded = true
		sc.Diag = "keyframe selection aborted: " + err.Error()
		return sc
	}
	sc.Keyframes = keyframes
	if degraded {
		sc.Degraded = true
		sc.Diag = "keyframe selection degraded to uniform sampling"
	}

	if captioningStarted.CompareAndSwap(false, true) {
		r.setStage(StageCaptioning)
	}

	var failures []string
	for _, kf := range keyframes {
		caption, err := r.caps.Captioner.Caption(ctx, kf)
		if err != nil {
			r.logger.Warn().Err(err).Int("scene", job.id).Int("frame", kf.Index).Msg("caption failed, skipping keyframe")
			failures = append(failures, fmt.Sprintf("frame %d: %v", kf.Index, err))
			continue
		}
		sc.Captions[kf.Index] = caption
	}
	if len(failures) > 0 {
		sc.Degraded = true
		sc.Diag = joinDiag(sc.Diag, "captions failed: "+strings.Join(failures, "; "))
	}

	// Captions and paths are all later stages need; drop the pixel data
	// so completed scenes stay cheap to hold.
	for i := range sc.Keyframes {
		sc.Keyframes[i].Image = nil
	}
	return sc
}

// summarizeScenes runs both summarization tiers over the completed
// scenes in order and fills in the report. It runs even for cancelled
// and failed runs so partial results still get a summary.
func (r *Runner) summarizeScenes(ctx context.Context, report *Report, scenes []Scene) {
	r.setStage(StageSummarizing)

	hier := summarize.New(r.caps.Summarizer)

	summaries := make([]string, 0, len(scenes))
	for i := range scenes {
		sc := &scenes[i]
		summary, diag, err := hier.SceneSummary(ctx, sc.orderedCaptions())
		if err != nil {
			summary, diag = "", "scene summarization aborted: "+err.Error()
		}
		sc.Summary = summary
		if diag != "" {
			sc.Degraded = true
			sc.Diag = joinDiag(sc.Diag, diag)
		}
		summaries = append(summaries, summary)
		r.emitter.emit(StageSummarizing, i+1, len(scenes),
			fracScenesEnd+(fracSummarized-fracScenesEnd)*float64(i+1)/float64(len(scenes)+1),
			fmt.Sprintf("scene %d summarized", sc.ID))
	}

	finalText, diag, err := hier.VideoSummary(ctx, summaries)
	if err != nil {
		finalText, diag = "", "final summarization aborted: "+err.Error()
	}
	if diag != "" {
		r.logger.Warn().Str("diag", diag).Msg("final summary degraded")
	}

	report.Scenes = scenes
	report.Summary = VideoSummary{SceneSummaries: summaries, FinalText: finalText}
}

// stopRequested folds the cancellation token and the context into one
// cooperative stop signal.
func (r *Runner) stopRequested(ctx context.Context) bool {
	return r.token.Cancelled() || ctx.Err() != nil
}

func (r *Runner) setStage(stage Stage) {
	r.box.update(func(s *State) { s.Stage = stage })
	r.logger.Info().Stringer("stage", stage).Msg("stage entered")
}

func (r *Runner) finish(stage Stage, err error, message string) {
	r.box.update(func(s *State) {
		s.Stage = stage
		s.Err = err
	})
	state := r.box.snapshot()
	r.emitter.emit(stage, state.ProcessedFrames, state.TotalFrames, 0, message)
	r.logger.Info().Stringer("stage", stage).Msg("run finished")
}

func joinDiag(existing, added string) string {
	if existing == "" {
		return added
	}
	return existing + "; " + added
}
