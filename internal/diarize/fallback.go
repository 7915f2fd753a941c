package diarize

import (
	"context"
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/window"

	"voxsplit/internal/media"
	"voxsplit/internal/params"
	"voxsplit/internal/segments"
)

// DefaultWindowSeconds is the RMS analysis window for the fallback segmenter.
const DefaultWindowSeconds = 0.03

// SpeakerLabel formats the canonical zero-padded speaker label.
func SpeakerLabel(index int) string {
	return fmt.Sprintf("SPEAKER_%02d", index)
}

// Segmenter is the deterministic, content-free voice-activity segmenter used
// when the diarization collaborator is unavailable. It thresholds Hann-
// weighted short-window RMS energy with onset/offset hysteresis, merges and
// filters intervals by minimum duration, and assigns speaker labels
// round-robin in chronological order. It attempts no real speaker
// discrimination.
type Segmenter struct {
	windowSeconds float64
}

// NewSegmenter constructs a fallback segmenter with the given RMS window.
func NewSegmenter(windowSeconds float64) *Segmenter {
	if windowSeconds <= 0 {
		windowSeconds = DefaultWindowSeconds
	}
	return &Segmenter{windowSeconds: windowSeconds}
}

type interval struct {
	start float64
	end   float64
}

// Segment produces at least one segment for any non-empty track: when no
// voiced interval survives filtering, a single whole-track segment is emitted
// so downstream stages always receive one speaker group.
func (s *Segmenter) Segment(ctx context.Context, vocals *media.Track, p params.Set, onProgress func(float64)) ([]segments.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	energies := s.windowRMS(media.Downmix(vocals))
	if onProgress != nil {
		onProgress(0.4)
	}

	intervals := s.detectVoiced(energies, p)
	if onProgress != nil {
		onProgress(0.7)
	}

	intervals = mergeShortGaps(intervals, p.MinSegmentDuration)
	intervals = dropShort(intervals, p.MinSegmentDuration)

	trackSeconds := vocals.Seconds()
	if len(intervals) == 0 {
		if onProgress != nil {
			onProgress(1)
		}
		return []segments.Segment{{
			Speaker:    SpeakerLabel(0),
			Start:      0,
			End:        trackSeconds,
			Confidence: 1,
		}}, nil
	}

	speakerCount := p.ForceNumSpeakers
	if speakerCount < 1 {
		speakerCount = 1
	}
	segs := make([]segments.Segment, 0, len(intervals))
	for i, iv := range intervals {
		end := iv.end
		if end > trackSeconds {
			end = trackSeconds
		}
		segs = append(segs, segments.Segment{
			Speaker:    SpeakerLabel(i % speakerCount),
			Start:      iv.start,
			End:        end,
			Confidence: 1,
		})
	}
	if onProgress != nil {
		onProgress(1)
	}
	return segs, nil
}

// windowRMS computes Hann-weighted RMS energy over consecutive windows of the
// mono track.
func (s *Segmenter) windowRMS(mono *media.Track) []float64 {
	samples := mono.Samples()
	size := int(s.windowSeconds * float64(mono.SampleRate()))
	if size < 1 {
		size = 1
	}
	weights := window.Hann(size)
	weightSum := 0.0
	for _, w := range weights {
		weightSum += w
	}
	if weightSum == 0 {
		weightSum = 1
	}

	count := (len(samples) + size - 1) / size
	energies := make([]float64, 0, count)
	for offset := 0; offset < len(samples); offset += size {
		sum := 0.0
		used := 0.0
		for i := 0; i < size && offset+i < len(samples); i++ {
			v := samples[offset+i]
			sum += weights[i] * v * v
			used += weights[i]
		}
		if used == 0 {
			used = 1
		}
		energies = append(energies, math.Sqrt(sum/used))
	}
	return energies
}

// detectVoiced thresholds the energy series with hysteresis: onset/offset are
// scaled to the observed energy range, entry requires crossing the onset
// bound, exit requires falling below the offset bound.
func (s *Segmenter) detectVoiced(energies []float64, p params.Set) []interval {
	if len(energies) == 0 {
		return nil
	}
	minE, maxE := energies[0], energies[0]
	for _, e := range energies {
		if e < minE {
			minE = e
		}
		if e > maxE {
			maxE = e
		}
	}
	if maxE-minE < 1e-12 {
		// Flat energy (silence or constant tone): nothing to threshold.
		return nil
	}
	onThreshold := minE + p.SegmentationOnset*(maxE-minE)
	offThreshold := minE + p.SegmentationOffset*(maxE-minE)

	var out []interval
	voiced := false
	start := 0.0
	for i, e := range energies {
		t := float64(i) * s.windowSeconds
		if !voiced && e >= onThreshold {
			voiced = true
			start = t
		} else if voiced && e < offThreshold {
			voiced = false
			out = append(out, interval{start: start, end: t})
		}
	}
	if voiced {
		out = append(out, interval{start: start, end: float64(len(energies)) * s.windowSeconds})
	}
	return out
}

func mergeShortGaps(intervals []interval, minGap float64) []interval {
	if len(intervals) < 2 {
		return intervals
	}
	merged := []interval{intervals[0]}
	for _, iv := range intervals[1:] {
		last := &merged[len(merged)-1]
		if iv.start-last.end < minGap {
			last.end = iv.end
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func dropShort(intervals []interval, minDuration float64) []interval {
	out := intervals[:0]
	for _, iv := range intervals {
		if iv.end-iv.start >= minDuration {
			out = append(out, iv)
		}
	}
	return out
}
