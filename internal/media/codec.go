package media

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"voxsplit/internal/services"
)

// Decode reads a PCM WAV file into a Track. Samples are normalized to
// [-1, 1] according to the source bit depth.
func Decode(path string) (*Track, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "media", "decode", fmt.Sprintf("open %s", path), err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, services.Wrap(services.ErrValidation, "media", "decode", fmt.Sprintf("%s is not a valid WAV file", path), nil)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "media", "decode", fmt.Sprintf("read PCM data from %s", path), err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, services.Wrap(services.ErrValidation, "media", "decode", fmt.Sprintf("%s has no usable format chunk", path), nil)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(decoder.BitDepth)
	}
	scale, err := sampleScale(bitDepth)
	if err != nil {
		return nil, err
	}
	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) * scale
	}

	return NewTrack(samples, buf.Format.SampleRate, buf.Format.NumChannels)
}

// sampleScale returns the normalization factor for a PCM bit depth.
func sampleScale(bitDepth int) (float64, error) {
	switch bitDepth {
	case 8, 16, 24, 32:
		return 1.0 / float64(int64(1)<<(bitDepth-1)), nil
	}
	return 0, services.Wrap(services.ErrValidation, "media", "decode",
		fmt.Sprintf("unsupported source bit depth %d", bitDepth), nil)
}

// Encode writes the track to a PCM WAV file at the given bit depth.
func Encode(t *Track, path string, bitDepth int) error {
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return services.Wrap(services.ErrValidation, "media", "encode", fmt.Sprintf("unsupported bit depth %d", bitDepth), nil)
	}
	file, err := os.Create(path)
	if err != nil {
		return services.Wrap(services.ErrIO, "media", "encode", fmt.Sprintf("create %s", path), err)
	}
	defer file.Close()

	limit := float64(int64(1)<<(bitDepth-1)) - 1
	data := make([]int, len(t.samples))
	for i, s := range t.samples {
		v := math.Round(s * limit)
		if v > limit {
			v = limit
		}
		if v < -limit-1 {
			v = -limit - 1
		}
		data[i] = int(v)
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: t.channels,
			SampleRate:  t.sampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}

	encoder := wav.NewEncoder(file, t.sampleRate, bitDepth, t.channels, 1)
	if err := encoder.Write(buf); err != nil {
		return services.Wrap(services.ErrIO, "media", "encode", fmt.Sprintf("write PCM data to %s", path), err)
	}
	if err := encoder.Close(); err != nil {
		return services.Wrap(services.ErrIO, "media", "encode", fmt.Sprintf("finalize %s", path), err)
	}
	return nil
}
