package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sagevision/sagevision/internal/capability"
	"github.com/sagevision/sagevision/internal/capability/clip"
	"github.com/sagevision/sagevision/internal/capability/gemini"
	"github.com/sagevision/sagevision/internal/capability/histogram"
	"github.com/sagevision/sagevision/internal/config"
	"github.com/sagevision/sagevision/internal/logging"
	"github.com/sagevision/sagevision/internal/pipeline"
	"github.com/sagevision/sagevision/internal/store"
	"github.com/sagevision/sagevision/internal/video"
)

// CLI flags
var (
	inputFlag          string
	maxKeyframesFlag   int
	minSceneLenFlag    int
	thresholdSigmaFlag float64
	fpsFlag            float64
	workersFlag        int
	captionerFlag      string
	embedderFlag       string
	summarizerFlag     string
	clipModelFlag      string
	dbFlag             string
	modelFlag          string
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "sagevision",
	Short: "Visual-only video summarization",
	Long: `SageVision summarizes a video from its pictures alone: no audio, no
subtitles, no external metadata. It splits the video into scenes, picks a
handful of visually diverse keyframes per scene, captions them, and
compresses the captions into one summary of what the video shows.

Examples:
  sagevision --input vacation.mp4
  sagevision -i lecture.mp4 -k 3 --workers 2
  sagevision -i clip.mov --embedder histogram --db runs.db
  sagevision -i demo.mp4 --clip-model models/clip-vit-b32.onnx -m gemini-3-pro-preview`,
	RunE: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&inputFlag, "input", "i", "", "Video file to summarize (required)")
	rootCmd.Flags().IntVarP(&maxKeyframesFlag, "max-keyframes", "k", 0, "Keyframes per scene (default from environment)")
	rootCmd.Flags().IntVar(&minSceneLenFlag, "min-scene-len", 0, "Minimum frames per scene")
	rootCmd.Flags().Float64Var(&thresholdSigmaFlag, "threshold-sigma", 0, "Scene-change sensitivity in standard deviations")
	rootCmd.Flags().Float64Var(&fpsFlag, "fps", 0, "Frame extraction rate (0 = adaptive)")
	rootCmd.Flags().IntVar(&workersFlag, "workers", 0, "Concurrent scene workers")
	rootCmd.Flags().StringVar(&captionerFlag, "captioner", "", "Captioner provider chain (e.g. gemini)")
	rootCmd.Flags().StringVar(&embedderFlag, "embedder", "", "Embedder provider chain (e.g. clip,histogram)")
	rootCmd.Flags().StringVar(&summarizerFlag, "summarizer", "", "Summarizer provider chain (e.g. gemini)")
	rootCmd.Flags().StringVar(&clipModelFlag, "clip-model", "", "Path to the ONNX CLIP image encoder")
	rootCmd.Flags().StringVar(&dbFlag, "db", "", "SQLite file to persist run diagnostics")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini model to use (e.g. gemini-3-flash-preview)")
	rootCmd.MarkFlagRequired("input")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) error {
	logging.Init()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	info, err := os.Stat(inputFlag)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("video not found: %s", inputFlag)
		}
		return fmt.Errorf("failed to access video: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, expected a video file: %s", inputFlag)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	caps, cleanup, err := resolveCapabilities(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	source, err := video.NewFFmpegSource(ctx, inputFlag, cfg.ExtractFPS)
	if err != nil {
		return fmt.Errorf("failed to open video: %w", err)
	}
	defer source.Close()

	runner, err := pipeline.NewRunner(cfg, caps)
	if err != nil {
		return err
	}

	// First interrupt cancels cooperatively, second one kills the process.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ninterrupt received, finishing current work...")
		runner.Cancel()
		<-sigCh
		os.Exit(1)
	}()

	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for ev := range runner.Events() {
			fmt.Fprintf(os.Stderr, "[%3.0f%%] %-20s %s\n", ev.Fraction*100, ev.Stage, ev.Message)
		}
	}()

	report, runErr := runner.Run(ctx, source)
	<-progressDone

	if report != nil {
		printReport(report)
		persistReport(ctx, cfg, report)
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

// loadConfig reads the environment configuration and overlays any flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("max-keyframes") {
		cfg.MaxKeyframes = maxKeyframesFlag
	}
	if cmd.Flags().Changed("min-scene-len") {
		cfg.MinSceneLen = minSceneLenFlag
	}
	if cmd.Flags().Changed("threshold-sigma") {
		cfg.ThresholdSigma = thresholdSigmaFlag
	}
	if cmd.Flags().Changed("fps") {
		cfg.ExtractFPS = fpsFlag
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workersFlag
	}
	if captionerFlag != "" {
		cfg.Captioner = captionerFlag
	}
	if embedderFlag != "" {
		cfg.Embedder = embedderFlag
	}
	if summarizerFlag != "" {
		cfg.Summarizer = summarizerFlag
	}
	if clipModelFlag != "" {
		cfg.CLIPModelPath = clipModelFlag
	}
	if dbFlag != "" {
		cfg.DBPath = dbFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveCapabilities registers the built-in providers and binds each
// role from its configured chain.
func resolveCapabilities(ctx context.Context, cfg *config.Config) (pipeline.Capabilities, func(), error) {
	registry := capability.NewRegistry()
	registry.RegisterCaptioner("gemini", gemini.NewCaptioner)
	registry.RegisterSummarizer("gemini", gemini.NewSummarizer)
	registry.RegisterEmbedder("clip", clip.New)
	registry.RegisterEmbedder("histogram", histogram.New)

	settings := capability.Settings{
		CLIPModelPath: cfg.CLIPModelPath,
		GeminiModel:   modelFlag,
	}

	captioner, captionerName, err := registry.ResolveCaptioner(ctx, capability.ParseChain(cfg.Captioner), settings)
	if err != nil {
		return pipeline.Capabilities{}, nil, err
	}
	embedder, embedderName, err := registry.ResolveEmbedder(ctx, capability.ParseChain(cfg.Embedder), settings)
	if err != nil {
		return pipeline.Capabilities{}, nil, err
	}
	summarizer, summarizerName, err := registry.ResolveSummarizer(ctx, capability.ParseChain(cfg.Summarizer), settings)
	if err != nil {
		return pipeline.Capabilities{}, nil, err
	}

	log.Info().
		Str("captioner", captionerName).
		Str("embedder", embedderName).
		Str("summarizer", summarizerName).
		Msg("capabilities bound")

	cleanup := func() {
		if closer, ok := embedder.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close embedder")
			}
		}
	}

	caps := pipeline.Capabilities{
		Captioner:  captioner,
		Embedder:   embedder,
		Summarizer: summarizer,
	}
	return caps, cleanup, nil
}

// printReport writes the human-readable result to stdout.
func printReport(report *pipeline.Report) {
	fmt.Println()
	fmt.Println("============================================")
	fmt.Printf("Video Summary (%s)\n", report.Status)
	fmt.Println("============================================")
	fmt.Printf("Video: %s\n", filepath.Base(inputFlag))
	fmt.Printf("Frames processed: %d\n", report.FramesRead)
	fmt.Printf("Scenes: %d\n", len(report.Scenes))
	fmt.Println("--------------------------------------------")

	for _, sc := range report.Scenes {
		marker := ""
		if sc.Degraded {
			marker = " [degraded]"
		}
		summary := sc.Summary
		if summary == "" {
			summary = "(no summary)"
		}
		fmt.Printf("Scene %d [frames %d-%d]%s\n   %s\n",
			sc.ID+1, sc.Boundary.Start, sc.Boundary.End-1, marker, summary)
	}

	fmt.Println("--------------------------------------------")
	if report.Summary.FinalText != "" {
		fmt.Println(report.Summary.FinalText)
	} else {
		fmt.Println("(no summary produced)")
	}
	fmt.Println("============================================")
}

// persistReport saves the run to the diagnostics store when one is
// configured. Store failures are logged, never fatal.
func persistReport(ctx context.Context, cfg *config.Config, report *pipeline.Report) {
	if cfg.DBPath == "" {
		return
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Warn().Err(err).Str("db", cfg.DBPath).Msg("failed to open diagnostics store")
		return
	}
	defer st.Close()

	if err := st.SaveReport(ctx, report); err != nil {
		log.Warn().Err(err).Msg("failed to persist run report")
		return
	}
	log.Info().Str("run_id", report.RunID).Str("db", cfg.DBPath).Msg("run persisted")
}
