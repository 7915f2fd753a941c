// Package segments defines the speaker segment and speaker group values
// flowing between the diarization stage and the assembler.
package segments

import (
	"fmt"
	"sort"

	"voxsplit/internal/media"
	"voxsplit/internal/services"
)

// Segment is a contiguous time interval attributed to one speaker. Segments
// are never mutated after creation; trimming produces new values.
type Segment struct {
	Speaker    string
	Start      float64
	End        float64
	Confidence float64
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Validate checks the interval invariants against the source track length.
func (s Segment) Validate(trackSeconds float64) error {
	if s.Start >= s.End {
		return services.Wrap(services.ErrValidation, "segments", "validate",
			fmt.Sprintf("segment %s start %.3f must precede end %.3f", s.Speaker, s.Start, s.End), nil)
	}
	if s.Start < 0 || s.End > trackSeconds {
		return services.Wrap(services.ErrValidation, "segments", "validate",
			fmt.Sprintf("segment %s [%.3f, %.3f] outside track bounds [0, %.3f]", s.Speaker, s.Start, s.End, trackSeconds), nil)
	}
	return nil
}

// Group holds every segment attributed to one speaker label, ordered by
// start time, plus the concatenated per-speaker track built by the assembler.
type Group struct {
	Label    string
	Segments []Segment
	Combined *media.Track
}

// TotalDuration sums the group's segment durations in seconds.
func (g Group) TotalDuration() float64 {
	total := 0.0
	for _, seg := range g.Segments {
		total += seg.Duration()
	}
	return total
}

// SortByStart orders segments chronologically in place, breaking ties by
// speaker label for determinism.
func SortByStart(segs []Segment) {
	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].Start != segs[j].Start {
			return segs[i].Start < segs[j].Start
		}
		return segs[i].Speaker < segs[j].Speaker
	})
}

// SpeakerStats summarizes one speaker's share of a run.
type SpeakerStats struct {
	Label         string
	SegmentCount  int
	TotalDuration float64
	MinConfidence float64
	AvgConfidence float64
	MaxConfidence float64
}

// Analyze computes per-speaker statistics in first-appearance order.
func Analyze(segs []Segment) []SpeakerStats {
	ordered := make([]Segment, len(segs))
	copy(ordered, segs)
	SortByStart(ordered)

	index := map[string]int{}
	var stats []SpeakerStats
	for _, seg := range ordered {
		i, ok := index[seg.Speaker]
		if !ok {
			i = len(stats)
			index[seg.Speaker] = i
			stats = append(stats, SpeakerStats{
				Label:         seg.Speaker,
				MinConfidence: seg.Confidence,
				MaxConfidence: seg.Confidence,
			})
		}
		s := &stats[i]
		s.SegmentCount++
		s.TotalDuration += seg.Duration()
		s.AvgConfidence += seg.Confidence
		if seg.Confidence < s.MinConfidence {
			s.MinConfidence = seg.Confidence
		}
		if seg.Confidence > s.MaxConfidence {
			s.MaxConfidence = seg.Confidence
		}
	}
	for i := range stats {
		stats[i].AvgConfidence /= float64(stats[i].SegmentCount)
	}
	return stats
}
