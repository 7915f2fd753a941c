package media

import (
	"fmt"
	"math"
	"time"
)

// Track is an in-memory audio buffer: interleaved float64 samples in
// [-1, 1], a sample rate, and a channel count. Tracks are immutable once
// created; every operation returns a new Track.
type Track struct {
	samples    []float64
	sampleRate int
	channels   int
}

// NewTrack constructs a track from interleaved samples. The sample slice is
// owned by the track after the call.
func NewTrack(samples []float64, sampleRate, channels int) (*Track, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("sample count %d not divisible by %d channels", len(samples), channels)
	}
	return &Track{samples: samples, sampleRate: sampleRate, channels: channels}, nil
}

// Samples returns the interleaved sample buffer. Callers must not mutate it.
func (t *Track) Samples() []float64 { return t.samples }

// SampleRate returns the track sample rate in Hz.
func (t *Track) SampleRate() int { return t.sampleRate }

// Channels returns the channel count.
func (t *Track) Channels() int { return t.channels }

// Frames returns the per-channel frame count.
func (t *Track) Frames() int {
	if t.channels == 0 {
		return 0
	}
	return len(t.samples) / t.channels
}

// Duration returns the track length derived from frames and sample rate.
func (t *Track) Duration() time.Duration {
	if t.sampleRate == 0 {
		return 0
	}
	seconds := float64(t.Frames()) / float64(t.sampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// Seconds returns the track length in seconds.
func (t *Track) Seconds() float64 {
	if t.sampleRate == 0 {
		return 0
	}
	return float64(t.Frames()) / float64(t.sampleRate)
}

// Slice returns a new track covering [startSec, endSec), clamped to the
// track bounds. Frame boundaries are respected for multi-channel audio.
func (t *Track) Slice(startSec, endSec float64) *Track {
	startFrame := int(math.Round(startSec * float64(t.sampleRate)))
	endFrame := int(math.Round(endSec * float64(t.sampleRate)))
	if startFrame < 0 {
		startFrame = 0
	}
	if endFrame > t.Frames() {
		endFrame = t.Frames()
	}
	if endFrame <= startFrame {
		return &Track{samples: nil, sampleRate: t.sampleRate, channels: t.channels}
	}
	out := make([]float64, (endFrame-startFrame)*t.channels)
	copy(out, t.samples[startFrame*t.channels:endFrame*t.channels])
	return &Track{samples: out, sampleRate: t.sampleRate, channels: t.channels}
}

// Concat joins tracks in order. All tracks must share sample rate and
// channel count.
func Concat(tracks ...*Track) (*Track, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no tracks to concatenate")
	}
	first := tracks[0]
	total := 0
	for _, tr := range tracks {
		if tr.sampleRate != first.sampleRate || tr.channels != first.channels {
			return nil, fmt.Errorf("track format mismatch: %dHz/%dch vs %dHz/%dch",
				tr.sampleRate, tr.channels, first.sampleRate, first.channels)
		}
		total += len(tr.samples)
	}
	out := make([]float64, 0, total)
	for _, tr := range tracks {
		out = append(out, tr.samples...)
	}
	return &Track{samples: out, sampleRate: first.sampleRate, channels: first.channels}, nil
}
