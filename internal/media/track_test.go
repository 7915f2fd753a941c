package media

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"voxsplit/internal/services"
)

func sine(t *testing.T, seconds float64, rate, channels int, freq float64) *Track {
	t.Helper()
	frames := int(seconds * float64(rate))
	samples := make([]float64, frames*channels)
	for f := 0; f < frames; f++ {
		v := 0.5 * math.Sin(2*math.Pi*freq*float64(f)/float64(rate))
		for ch := 0; ch < channels; ch++ {
			samples[f*channels+ch] = v
		}
	}
	track, err := NewTrack(samples, rate, channels)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	return track
}

func TestNewTrackRejectsBadShapes(t *testing.T) {
	if _, err := NewTrack(make([]float64, 3), 44100, 2); err == nil {
		t.Fatal("expected error for sample count not divisible by channels")
	}
	if _, err := NewTrack(nil, 0, 1); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if _, err := NewTrack(nil, 44100, 0); err == nil {
		t.Fatal("expected error for zero channels")
	}
}

func TestSampleScaleRejectsBogusBitDepths(t *testing.T) {
	for _, depth := range []int{0, -8, 12, 64} {
		if _, err := sampleScale(depth); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("sampleScale(%d) error = %v, want ErrValidation", depth, err)
		}
	}
	scale, err := sampleScale(16)
	if err != nil {
		t.Fatalf("sampleScale(16): %v", err)
	}
	if scale != 1.0/32768 {
		t.Fatalf("sampleScale(16) = %v, want %v", scale, 1.0/32768)
	}
}

func TestSliceClampsToBounds(t *testing.T) {
	track := sine(t, 2.0, 8000, 1, 440)
	slice := track.Slice(1.5, 5.0)
	if got, want := slice.Frames(), 4000; got != want {
		t.Fatalf("frames = %d, want %d", got, want)
	}
	empty := track.Slice(3.0, 4.0)
	if empty.Frames() != 0 {
		t.Fatalf("out-of-range slice should be empty, got %d frames", empty.Frames())
	}
}

func TestSliceStereoKeepsFrameAlignment(t *testing.T) {
	track := sine(t, 1.0, 8000, 2, 440)
	slice := track.Slice(0.25, 0.75)
	if slice.Channels() != 2 {
		t.Fatalf("channels = %d, want 2", slice.Channels())
	}
	if len(slice.Samples())%2 != 0 {
		t.Fatal("stereo slice produced unpaired samples")
	}
	if got := slice.Seconds(); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("slice duration = %f, want 0.5", got)
	}
}

func TestConcatDurations(t *testing.T) {
	a := sine(t, 1.0, 8000, 1, 440)
	b := sine(t, 0.5, 8000, 1, 220)
	joined, err := Concat(a, b)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	if got := joined.Seconds(); math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("joined duration = %f, want 1.5", got)
	}
}

func TestConcatRejectsFormatMismatch(t *testing.T) {
	a := sine(t, 1.0, 8000, 1, 440)
	b := sine(t, 1.0, 16000, 1, 440)
	if _, err := Concat(a, b); err == nil {
		t.Fatal("expected format mismatch error")
	}
}

func TestApplyFadeSilencesEdges(t *testing.T) {
	frames := 8000
	samples := make([]float64, frames)
	for i := range samples {
		samples[i] = 1.0
	}
	track, _ := NewTrack(samples, 8000, 1)
	faded := ApplyFade(track, 0.01)
	out := faded.Samples()
	if out[0] != 0 {
		t.Fatalf("first sample = %f, want 0", out[0])
	}
	if out[len(out)-1] != 0 {
		t.Fatalf("last sample = %f, want 0", out[len(out)-1])
	}
	if out[frames/2] != 1.0 {
		t.Fatalf("middle sample = %f, want 1.0", out[frames/2])
	}
	// Original buffer must be untouched.
	if track.Samples()[0] != 1.0 {
		t.Fatal("fade mutated the source track")
	}
}

func TestNormalizePeaksAtTarget(t *testing.T) {
	track, _ := NewTrack([]float64{0.1, -0.2, 0.05}, 8000, 1)
	normalized := Normalize(track, 0.95)
	peak := 0.0
	for _, s := range normalized.Samples() {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if math.Abs(peak-0.95) > 1e-9 {
		t.Fatalf("peak = %f, want 0.95", peak)
	}
}

func TestRemoveDCOffset(t *testing.T) {
	track, _ := NewTrack([]float64{1.1, 0.9, 1.0, 1.0}, 8000, 1)
	centered := RemoveDCOffset(track)
	sum := 0.0
	for _, s := range centered.Samples() {
		sum += s
	}
	if math.Abs(sum) > 1e-9 {
		t.Fatalf("mean after DC removal = %f, want 0", sum/4)
	}
}

func TestDownmixAveragesChannels(t *testing.T) {
	track, _ := NewTrack([]float64{1.0, 0.0, 0.5, 0.5}, 8000, 2)
	mono := Downmix(track)
	if mono.Channels() != 1 {
		t.Fatalf("channels = %d, want 1", mono.Channels())
	}
	want := []float64{0.5, 0.5}
	for i, s := range mono.Samples() {
		if math.Abs(s-want[i]) > 1e-9 {
			t.Fatalf("sample %d = %f, want %f", i, s, want[i])
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	track := sine(t, 0.5, 16000, 2, 440)
	path := filepath.Join(t.TempDir(), "roundtrip.wav")
	if err := Encode(track, path, 16); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.SampleRate() != 16000 || decoded.Channels() != 2 {
		t.Fatalf("format = %dHz/%dch, want 16000Hz/2ch", decoded.SampleRate(), decoded.Channels())
	}
	if decoded.Frames() != track.Frames() {
		t.Fatalf("frames = %d, want %d", decoded.Frames(), track.Frames())
	}
	for i := 0; i < len(track.Samples()); i += 1000 {
		if diff := math.Abs(decoded.Samples()[i] - track.Samples()[i]); diff > 1.0/32768*2 {
			t.Fatalf("sample %d drifted by %f after 16-bit round trip", i, diff)
		}
	}
}

func TestDecodeRejectsNonWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := writeFile(path, []byte("definitely not a wav")); err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(path); err == nil {
		t.Fatal("expected error for invalid WAV data")
	}
}
