// Package params defines the validated, immutable configuration for a single
// pipeline run. A Set is validated once at run start; rejected runs never
// execute any stage.
package params

import (
	"fmt"

	"voxsplit/internal/services"
)

// MaxForcedSpeakers bounds force_num_speakers; 0 means automatic detection.
const MaxForcedSpeakers = 10

// Set carries the per-run tuning parameters shared by the diarization stage,
// the fallback segmenter, and the assembler.
type Set struct {
	// ClusteringThreshold controls how aggressively distinct voices are
	// merged or split by the diarization collaborator. Range (0, 1).
	ClusteringThreshold float64
	// SegmentationOnset is the voice-activity entry threshold. Range (0, 1).
	SegmentationOnset float64
	// SegmentationOffset is the voice-activity exit threshold. Range (0, 1).
	SegmentationOffset float64
	// ForceNumSpeakers pins the speaker count; 0 selects automatic detection.
	ForceNumSpeakers int
	// OverlapRemoval trims overlapping segments at the overlap midpoint.
	OverlapRemoval bool
	// AudioPreprocessing applies DC-offset removal and peak normalization to
	// the vocals track before diarization.
	AudioPreprocessing bool
	// MinSegmentDuration is the shortest surviving segment in seconds. Gaps
	// shorter than this are merged by the fallback segmenter.
	MinSegmentDuration float64
}

// Default returns the parameter values used when the caller does not
// override them.
func Default() Set {
	return Set{
		ClusteringThreshold: 0.7,
		SegmentationOnset:   0.5,
		SegmentationOffset:  0.35,
		ForceNumSpeakers:    0,
		OverlapRemoval:      true,
		AudioPreprocessing:  true,
		MinSegmentDuration:  1.0,
	}
}

// Validate ensures every field is in range. Failures are tagged with the
// validation marker so the orchestrator rejects the run before any stage.
func (s Set) Validate() error {
	if s.ClusteringThreshold <= 0 || s.ClusteringThreshold >= 1 {
		return services.Wrap(services.ErrValidation, "params", "validate",
			fmt.Sprintf("clustering_threshold must be in (0, 1), got %g", s.ClusteringThreshold), nil)
	}
	if s.SegmentationOnset <= 0 || s.SegmentationOnset >= 1 {
		return services.Wrap(services.ErrValidation, "params", "validate",
			fmt.Sprintf("segmentation_onset must be in (0, 1), got %g", s.SegmentationOnset), nil)
	}
	if s.SegmentationOffset <= 0 || s.SegmentationOffset >= 1 {
		return services.Wrap(services.ErrValidation, "params", "validate",
			fmt.Sprintf("segmentation_offset must be in (0, 1), got %g", s.SegmentationOffset), nil)
	}
	if s.ForceNumSpeakers < 0 || s.ForceNumSpeakers > MaxForcedSpeakers {
		return services.Wrap(services.ErrValidation, "params", "validate",
			fmt.Sprintf("force_num_speakers must be 0 or in [1, %d], got %d", MaxForcedSpeakers, s.ForceNumSpeakers), nil)
	}
	if s.MinSegmentDuration < 0 {
		return services.Wrap(services.ErrValidation, "params", "validate",
			fmt.Sprintf("min_segment_duration must be >= 0, got %g", s.MinSegmentDuration), nil)
	}
	return nil
}
