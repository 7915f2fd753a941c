package media

import "math"

// ApplyFade returns a copy of the track with a linear fade-in and fade-out of
// the given duration in seconds. Fades longer than half the track are clamped.
func ApplyFade(t *Track, fadeSec float64) *Track {
	frames := t.Frames()
	fadeFrames := int(fadeSec * float64(t.sampleRate))
	if fadeFrames <= 0 || frames == 0 {
		return t
	}
	if fadeFrames > frames/2 {
		fadeFrames = frames / 2
	}
	out := make([]float64, len(t.samples))
	copy(out, t.samples)
	for i := 0; i < fadeFrames; i++ {
		gain := float64(i) / float64(fadeFrames)
		for ch := 0; ch < t.channels; ch++ {
			out[i*t.channels+ch] *= gain
			out[(frames-1-i)*t.channels+ch] *= gain
		}
	}
	return &Track{samples: out, sampleRate: t.sampleRate, channels: t.channels}
}

// Normalize returns a copy of the track scaled so the peak magnitude reaches
// the target level (e.g. 0.95). Silent tracks are returned unchanged.
func Normalize(t *Track, target float64) *Track {
	peak := 0.0
	for _, s := range t.samples {
		if abs := math.Abs(s); abs > peak {
			peak = abs
		}
	}
	if peak == 0 || target <= 0 {
		return t
	}
	gain := target / peak
	out := make([]float64, len(t.samples))
	for i, s := range t.samples {
		out[i] = s * gain
	}
	return &Track{samples: out, sampleRate: t.sampleRate, channels: t.channels}
}

// RemoveDCOffset returns a copy of the track with the per-channel mean
// subtracted from every sample.
func RemoveDCOffset(t *Track) *Track {
	frames := t.Frames()
	if frames == 0 {
		return t
	}
	means := make([]float64, t.channels)
	for i, s := range t.samples {
		means[i%t.channels] += s
	}
	for ch := range means {
		means[ch] /= float64(frames)
	}
	out := make([]float64, len(t.samples))
	for i, s := range t.samples {
		out[i] = s - means[i%t.channels]
	}
	return &Track{samples: out, sampleRate: t.sampleRate, channels: t.channels}
}

// Downmix returns a mono view of the track by averaging channels. Mono input
// is returned as-is.
func Downmix(t *Track) *Track {
	if t.channels == 1 {
		return t
	}
	frames := t.Frames()
	out := make([]float64, frames)
	for f := 0; f < frames; f++ {
		sum := 0.0
		for ch := 0; ch < t.channels; ch++ {
			sum += t.samples[f*t.channels+ch]
		}
		out[f] = sum / float64(t.channels)
	}
	return &Track{samples: out, sampleRate: t.sampleRate, channels: 1}
}
