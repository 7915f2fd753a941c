// Package diarize adapts the speaker diarization collaborator and selects the
// deterministic fallback segmenter when the collaborator is unavailable.
package diarize

import (
	"context"
	"log/slog"

	"voxsplit/internal/logging"
	"voxsplit/internal/media"
	"voxsplit/internal/params"
	"voxsplit/internal/segments"
	"voxsplit/internal/services"
)

// Handle is a loaded diarization model ready to process tracks.
type Handle interface {
	Diarize(ctx context.Context, track *media.Track, p params.Set, onProgress func(fraction float64)) ([]segments.Segment, error)
}

// Model loads diarization model handles.
type Model interface {
	Load(ctx context.Context, modelName, credential string) (Handle, error)
}

// Result carries the segment set plus whether the heuristic fallback produced
// it, so callers can warn about reduced diarization quality.
type Result struct {
	Segments     []segments.Segment
	FallbackUsed bool
}

// Stage runs diarization as a two-attempt state machine: the primary
// collaborator first, then the fallback segmenter when the failure is
// classified as unavailable or unauthorized. Any other primary failure is
// fatal.
type Stage struct {
	model      Model
	modelName  string
	credential string
	fallback   *Segmenter
	logger     *slog.Logger
}

// New constructs the diarization stage.
func New(model Model, modelName, credential string, fallback *Segmenter, logger *slog.Logger) *Stage {
	if fallback == nil {
		fallback = NewSegmenter(DefaultWindowSeconds)
	}
	return &Stage{
		model:      model,
		modelName:  modelName,
		credential: credential,
		fallback:   fallback,
		logger:     logging.NewComponentLogger(logger, "diarization"),
	}
}

// Run produces the segment set over the vocals track. The returned list is
// flat and unordered; the assembler imposes ordering.
func (s *Stage) Run(ctx context.Context, vocals *media.Track, p params.Set, onProgress func(float64)) (Result, error) {
	if s == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "diarization", "run", "diarization stage is not configured", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	segs, err := s.attemptPrimary(ctx, vocals, p, onProgress)
	if err == nil {
		return Result{Segments: segs}, nil
	}
	if !services.FallbackEligible(err) {
		return Result{}, err
	}

	logger.Warn("diarization collaborator unavailable; using heuristic segmenter",
		logging.Error(err),
		logging.String(logging.FieldEventType, "diarization_fallback"),
		logging.String(logging.FieldErrorHint, "install the diarization collaborator and configure its credential for real speaker discrimination"),
	)

	segs, err = s.fallback.Segment(ctx, vocals, p, onProgress)
	if err != nil {
		return Result{}, err
	}
	return Result{Segments: segs, FallbackUsed: true}, nil
}

func (s *Stage) attemptPrimary(ctx context.Context, vocals *media.Track, p params.Set, onProgress func(float64)) ([]segments.Segment, error) {
	if s.model == nil {
		return nil, services.Wrap(services.ErrUnavailable, "diarization", "load", "no diarization collaborator configured", nil)
	}
	handle, err := s.model.Load(ctx, s.modelName, s.credential)
	if err != nil {
		return nil, err
	}
	segs, err := handle.Diarize(ctx, vocals, p, onProgress)
	if err != nil {
		return nil, err
	}
	trackSeconds := vocals.Seconds()
	for _, seg := range segs {
		if err := seg.Validate(trackSeconds); err != nil {
			return nil, err
		}
	}
	return segs, nil
}
