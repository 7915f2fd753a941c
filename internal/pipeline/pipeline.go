// Package pipeline orchestrates a full extraction run: decode, separation,
// diarization, and assembly, with progress tracking, cancellation at stage
// boundaries, and run ledger bookkeeping.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"voxsplit/internal/assemble"
	"voxsplit/internal/config"
	"voxsplit/internal/diarize"
	"voxsplit/internal/logging"
	"voxsplit/internal/media"
	"voxsplit/internal/params"
	"voxsplit/internal/progress"
	"voxsplit/internal/runs"
	"voxsplit/internal/segments"
	"voxsplit/internal/separation"
	"voxsplit/internal/services"
)

// gpuGate serializes separation across concurrent runs in the same process.
// Device memory cannot be shared between two separations.
var gpuGate sync.Mutex

// Orchestrator wires the stages together and executes runs.
type Orchestrator struct {
	cfg     *config.Config
	sep     *separation.Stage
	diar    *diarize.Stage
	store  *runs.Store
	base   *slog.Logger
	logger *slog.Logger
	gpu    *sync.Mutex
	now    func() time.Time
}

// New constructs an orchestrator. store may be nil when no ledger is wanted
// (tests, one-off invocations).
func New(cfg *config.Config, sepModel separation.Model, diarModel diarize.Model, store *runs.Store, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		sep:     separation.New(sepModel, cfg.Separation.Model, separation.Device(cfg.Separation.Device), logger),
		diar:    diarize.New(diarModel, cfg.Diarization.Model, cfg.Diarization.AuthToken, nil, logger),
		store:  store,
		base:   logger,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		gpu:    &gpuGate,
		now:    time.Now,
	}
}

// RunResult carries everything a completed (or terminated) run produced.
type RunResult struct {
	RunID        string
	Status       runs.Status
	OutputDir    string
	Groups       []segments.Group
	Manifest     *assemble.Manifest
	Report       *assemble.Report
	FallbackUsed bool
}

// Run executes the full pipeline for one source file. Artifacts are written
// under a per-source directory inside the configured output root. sink
// receives every progress event; pass nil to discard them.
func (o *Orchestrator) Run(ctx context.Context, sourcePath string, p params.Set, sink progress.Sink) (*RunResult, error) {
	if sink == nil {
		sink = progress.NopSink{}
	}

	// Parameters are checked before any stage runs or artifact is written.
	if err := p.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)

	track, err := media.Decode(sourcePath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "decode",
			fmt.Sprintf("cannot decode source %s", sourcePath), err)
	}

	baseName := sourceBaseName(sourcePath)
	outputDir := filepath.Join(o.cfg.Paths.OutputDir, baseName)
	lock, err := o.claimOutputDir(outputDir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	if o.store != nil {
		if _, err := o.store.Create(ctx, runID, sourcePath, outputDir); err != nil {
			return nil, services.Wrap(services.ErrIO, "pipeline", "ledger", "failed to record run", err)
		}
	}

	logger.Info("run started",
		logging.String("source", sourcePath),
		logging.String("output_dir", outputDir),
		logging.Float64("track_seconds", track.Seconds()),
		logging.String(logging.FieldEventType, "run_started"))

	result, err := o.execute(ctx, runID, track, p, baseName, outputDir, sink)
	status := runs.StatusDone
	detail := ""
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		// A cancelled context can surface as a collaborator kill error; the
		// cancellation wins over whatever the dying stage reported.
		status = runs.StatusCancelled
	default:
		status = runs.StatusFailed
		detail = services.Details(err)
	}

	if o.store != nil {
		// The run context may already be cancelled; the terminal status must
		// still reach the ledger.
		if ferr := o.store.Finish(context.WithoutCancel(ctx), runID, status, detail); ferr != nil {
			logger.Warn("failed to finalize run record", logging.Error(ferr))
		}
	}

	if err != nil {
		logger.Error("run terminated",
			logging.String("status", string(status)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "run_terminated"))
		if result == nil {
			result = &RunResult{RunID: runID, OutputDir: outputDir}
		}
		result.Status = status
		return result, err
	}

	result.Status = runs.StatusDone
	logger.Info("run completed",
		logging.Int("speakers", len(result.Groups)),
		logging.Bool("fallback_used", result.FallbackUsed),
		logging.String(logging.FieldEventType, "run_completed"))
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, runID string, track *media.Track, p params.Set, baseName, outputDir string, sink progress.Sink) (*RunResult, error) {
	result := &RunResult{RunID: runID, OutputDir: outputDir}
	logger := logging.WithContext(ctx, o.logger)
	started := o.now()

	tracker := progress.NewTracker(o.observeSink(ctx, sink), track.Seconds())
	tracker.SeedEstimate(EstimateProcessingTime(track.Seconds(), separation.Device(o.cfg.Separation.Device)))

	if p.AudioPreprocessing {
		track = media.RemoveDCOffset(track)
	}

	// Separation fills the first half of the progress bar.
	sepCtx, sepLogger := o.stageContext(ctx, progress.StageSeparation)
	sepLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_started"))
	vocals, bgm, err := o.runSeparation(sepCtx, track, tracker)
	if err != nil {
		return result, err
	}
	sepLogger.Info("stage completed", logging.String(logging.FieldEventType, "stage_completed"))

	manifest := assemble.NewManifest()
	if o.cfg.Output.WriteStems {
		vocalsPath := filepath.Join(outputDir, "vocals.wav")
		bgmPath := filepath.Join(outputDir, "bgm.wav")
		if err := media.Encode(vocals, vocalsPath, o.cfg.Audio.BitDepth); err != nil {
			return result, services.Wrap(services.ErrIO, "separation", "write stems", "failed to write vocals stem", err)
		}
		if err := media.Encode(bgm, bgmPath, o.cfg.Audio.BitDepth); err != nil {
			return result, services.Wrap(services.ErrIO, "separation", "write stems", "failed to write bgm stem", err)
		}
		manifest.Add("vocals", assemble.Entry{Path: vocalsPath, End: vocals.Seconds()})
		manifest.Add("bgm", assemble.Entry{Path: bgmPath, End: bgm.Seconds()})
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	diarCtx, diarLogger := o.stageContext(ctx, progress.StageDiarization)
	diarLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_started"))
	diarization, err := o.diar.Run(diarCtx, vocals, p, func(fraction float64) {
		tracker.Update(progress.StageDiarization, fraction, "identifying speakers")
	})
	if err != nil {
		return result, err
	}
	diarLogger.Info("stage completed",
		logging.Bool("fallback_used", diarization.FallbackUsed),
		logging.String(logging.FieldEventType, "stage_completed"))
	result.FallbackUsed = diarization.FallbackUsed
	if diarization.FallbackUsed && o.store != nil {
		if err := o.store.SetFallbackUsed(ctx, runID); err != nil {
			logger.Warn("failed to record fallback flag", logging.Error(err))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	asm := assemble.New(assemble.Options{
		FadeSeconds:   o.cfg.Audio.FadeSeconds,
		NormalizePeak: o.cfg.Audio.NormalizePeak,
		BitDepth:      o.cfg.Audio.BitDepth,
		WriteSegments: o.cfg.Output.WriteSegments,
		WriteCombined: o.cfg.Output.WriteCombined,
	}, o.base)
	asmCtx, asmLogger := o.stageContext(ctx, progress.StageAssembly)
	asmLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_started"))
	assembled, err := asm.Run(asmCtx, vocals, diarization.Segments, p, baseName, outputDir, func(fraction float64, message string) {
		tracker.Update(progress.StageAssembly, fraction, message)
	})
	if err != nil {
		return result, err
	}
	asmLogger.Info("stage completed",
		logging.Int("speakers", len(assembled.Groups)),
		logging.String(logging.FieldEventType, "stage_completed"))
	result.Groups = assembled.Groups
	for _, name := range assembled.Manifest.Names() {
		entry, _ := assembled.Manifest.Lookup(name)
		manifest.Add(name, entry)
	}
	result.Manifest = manifest

	processing := o.now().Sub(started).Seconds()
	result.Report = assemble.NewReport(p, assembled.TrimmedSegments, track.Seconds(), processing, diarization.FallbackUsed)
	reportPath := filepath.Join(outputDir, "separation_report.json")
	if err := result.Report.Write(reportPath); err != nil {
		return result, err
	}
	manifest.Add("report", assemble.Entry{Path: reportPath})
	if err := manifest.Write(filepath.Join(outputDir, "manifest.json")); err != nil {
		return result, err
	}

	tracker.Complete("extraction complete")
	return result, nil
}

func (o *Orchestrator) runSeparation(ctx context.Context, track *media.Track, tracker *progress.Tracker) (*media.Track, *media.Track, error) {
	// Serialize access to the device even when the effective device ends up
	// being the CPU; the collaborator decides under "auto".
	o.gpu.Lock()
	defer o.gpu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return o.sep.Run(ctx, track, func(fraction float64) {
		tracker.Update(progress.StageSeparation, fraction, "separating vocals from music")
	})
}

// stageContext decorates the run context with the stage name and a fresh
// correlation id, and returns a logger carrying both.
func (o *Orchestrator) stageContext(ctx context.Context, stage progress.Stage) (context.Context, *slog.Logger) {
	ctx = services.WithStage(ctx, string(stage))
	ctx = services.WithRequestID(ctx, uuid.NewString())
	return ctx, logging.WithContext(ctx, o.logger)
}

// observeSink fans each progress event out to the caller's sink, the sampled
// log stream, and the run ledger.
func (o *Orchestrator) observeSink(ctx context.Context, sink progress.Sink) progress.Sink {
	logger := logging.WithContext(ctx, o.logger)
	runID, _ := services.RunIDFromContext(ctx)
	// One sampler per run; concurrent runs must not share sampling state.
	sampler := logging.NewProgressSampler(5)
	return progress.SinkFunc(func(e progress.Event) {
		sink.Publish(e)
		if !sampler.ShouldLog(e.Percent, string(e.Stage)) {
			return
		}
		attrs := []logging.Attr{
			logging.String(logging.FieldStage, string(e.Stage)),
			logging.Float64("percent", e.Percent),
			logging.String("message", e.Message),
		}
		if e.KnownETA {
			attrs = append(attrs, logging.Duration("eta", e.ETA))
		}
		if e.KnownSpeed {
			attrs = append(attrs, logging.Float64("speed_ratio", e.SpeedRatio))
		}
		logger.Info("progress", logging.Args(attrs...)...)
		if o.store != nil && runID != "" {
			if err := o.store.UpdateProgress(ctx, runID, string(e.Stage), e.Percent, e.Message); err != nil {
				logger.Debug("failed to persist progress", logging.Error(err))
			}
		}
	})
}

// claimOutputDir creates the run's output directory, verifies it is writable,
// and takes an exclusive lock so concurrent runs cannot interleave artifacts.
func (o *Orchestrator) claimOutputDir(outputDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrIO, "pipeline", "prepare output",
			fmt.Sprintf("failed to create output directory %s", outputDir), err)
	}
	if err := unix.Access(outputDir, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return nil, services.Wrap(services.ErrIO, "pipeline", "prepare output",
			fmt.Sprintf("insufficient permissions on output directory %s", outputDir), err)
	}
	lock := flock.New(filepath.Join(outputDir, ".voxsplit.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "pipeline", "prepare output", "failed to acquire output directory lock", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrTransient, "pipeline", "prepare output",
			fmt.Sprintf("output directory %s is locked by another run", outputDir), nil)
	}
	return lock, nil
}

func sourceBaseName(sourcePath string) string {
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		base = "audio"
	}
	return base
}
