package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voxsplit/internal/pipeline"
	"voxsplit/internal/progress"
	"voxsplit/internal/runs"
	"voxsplit/internal/services/demucs"
	"voxsplit/internal/services/pyannote"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		clusteringThreshold float64
		onset               float64
		offset              float64
		numSpeakers         int
		minDuration         float64
		noOverlapRemoval    bool
		noPreprocessing     bool
		device              string
		model               string
		jsonOutput          bool
	)

	cmd := &cobra.Command{
		Use:   "run <audio-file>",
		Short: "Extract per-speaker audio from a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if device != "" {
				cfg.Separation.Device = device
			}
			if model != "" {
				cfg.Separation.Model = model
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			p := cfg.DiarizationParams()
			if cmd.Flags().Changed("clustering-threshold") {
				p.ClusteringThreshold = clusteringThreshold
			}
			if cmd.Flags().Changed("onset") {
				p.SegmentationOnset = onset
			}
			if cmd.Flags().Changed("offset") {
				p.SegmentationOffset = offset
			}
			if cmd.Flags().Changed("num-speakers") {
				p.ForceNumSpeakers = numSpeakers
			}
			if cmd.Flags().Changed("min-duration") {
				p.MinSegmentDuration = minDuration
			}
			if noOverlapRemoval {
				p.OverlapRemoval = false
			}
			if noPreprocessing {
				p.AudioPreprocessing = false
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			store, err := runs.Open(cfg.Paths.DBPath)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer store.Close()

			sepOpts := []demucs.Option{demucs.WithWorkDir(cfg.Paths.WorkDir)}
			if cfg.Separation.Binary != "" {
				sepOpts = append(sepOpts, demucs.WithBinary(cfg.Separation.Binary))
			}
			diarOpts := []pyannote.Option{pyannote.WithWorkDir(cfg.Paths.WorkDir)}
			if cfg.Diarization.Binary != "" {
				diarOpts = append(diarOpts, pyannote.WithBinary(cfg.Diarization.Binary))
			}

			orc := pipeline.New(cfg, demucs.NewCLI(sepOpts...), pyannote.NewCLI(diarOpts...), store, logger)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			renderer := newProgressRenderer(cmd.ErrOrStderr())
			result, err := orc.Run(runCtx, args[0], p, progress.SinkFunc(renderer.render))
			renderer.finish()
			if err != nil {
				if result != nil && result.Status == runs.StatusCancelled {
					fmt.Fprintln(cmd.ErrOrStderr(), "run cancelled")
				}
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, result.Report)
			}
			printSummary(cmd, result)
			return nil
		},
	}

	cmd.Flags().Float64Var(&clusteringThreshold, "clustering-threshold", 0.7, "Speaker clustering distance threshold (0-1)")
	cmd.Flags().Float64Var(&onset, "onset", 0.5, "Speech activation onset threshold (0-1)")
	cmd.Flags().Float64Var(&offset, "offset", 0.35, "Speech activation offset threshold (0-1)")
	cmd.Flags().IntVar(&numSpeakers, "num-speakers", 0, "Force an exact speaker count (0 = automatic, max 10)")
	cmd.Flags().Float64Var(&minDuration, "min-duration", 1.0, "Minimum segment duration in seconds")
	cmd.Flags().BoolVar(&noOverlapRemoval, "no-overlap-removal", false, "Keep overlapping segments instead of trimming at the midpoint")
	cmd.Flags().BoolVar(&noPreprocessing, "no-preprocessing", false, "Skip DC offset removal before diarization")
	cmd.Flags().StringVar(&device, "device", "", "Separation device: auto, cpu, or cuda")
	cmd.Flags().StringVar(&model, "model", "", "Separation model name")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run report as JSON")

	return cmd
}

func printSummary(cmd *cobra.Command, result *pipeline.RunResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Output directory: %s\n", result.OutputDir)
	if result.FallbackUsed {
		fmt.Fprintln(out, "Note: diarization used the energy-based fallback segmenter; speaker labels are positional, not identity-based")
	}

	rows := make([][]string, 0, len(result.Groups))
	for _, group := range result.Groups {
		rows = append(rows, []string{
			group.Label,
			fmt.Sprintf("%d", len(group.Segments)),
			formatSeconds(group.TotalDuration()),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Speaker", "Segments", "Total Duration"},
		rows,
		1, 2,
	))
	if result.Report != nil {
		fmt.Fprintf(out, "Processed %s of audio in %s (fallback: %s)\n",
			formatSeconds(result.Report.SourceDuration),
			formatSeconds(result.Report.ProcessingSeconds),
			yesNo(result.Report.FallbackUsed))
	}
}

func formatSeconds(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	return d.Round(100 * time.Millisecond).String()
}

func defaultLogPath(logDir string) string {
	return filepath.Join(logDir, "voxsplit.log")
}
