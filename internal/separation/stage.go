// Package separation adapts the BGM/vocal separation collaborator and owns
// the GPU-to-CPU device retry policy.
package separation

import (
	"context"
	"fmt"
	"log/slog"

	"voxsplit/internal/logging"
	"voxsplit/internal/media"
	"voxsplit/internal/services"
)

// Device names a processing device requested from the collaborator.
type Device string

const (
	DeviceAuto Device = "auto"
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// Handle is a loaded separation model ready to process tracks.
type Handle interface {
	// Separate splits the track into vocals and accompaniment. Both outputs
	// share the input's sample rate, channel count, and frame count.
	Separate(ctx context.Context, track *media.Track, onProgress func(fraction float64)) (vocals, bgm *media.Track, err error)
}

// Model loads separation model handles for a given device.
type Model interface {
	Load(ctx context.Context, modelName string, device Device) (Handle, error)
}

// Stage runs source separation with the single-retry device policy: a
// resource-class failure on the requested device triggers exactly one CPU
// retry; any other failure is fatal.
type Stage struct {
	model     Model
	modelName string
	device    Device
	logger    *slog.Logger
}

// New constructs the separation stage.
func New(model Model, modelName string, device Device, logger *slog.Logger) *Stage {
	if device == "" {
		device = DeviceAuto
	}
	return &Stage{
		model:     model,
		modelName: modelName,
		device:    device,
		logger:    logging.NewComponentLogger(logger, "separation"),
	}
}

// Run separates the track into vocals and bgm, reporting fractional progress
// through onProgress.
func (s *Stage) Run(ctx context.Context, track *media.Track, onProgress func(float64)) (*media.Track, *media.Track, error) {
	if s == nil || s.model == nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "separation", "run", "separation model is not configured", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	vocals, bgm, err := s.separateOn(ctx, s.device, track, onProgress)
	if err != nil && services.ResourceClass(err) && s.device != DeviceCPU {
		logger.Warn("device failure during separation; retrying once on CPU",
			logging.Error(err),
			logging.String(logging.FieldEventType, "separation_device_retry"),
			logging.String("requested_device", string(s.device)),
			logging.String(logging.FieldErrorHint, "reduce model size or free device memory to keep GPU acceleration"),
		)
		vocals, bgm, err = s.separateOn(ctx, DeviceCPU, track, onProgress)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := checkOutputs(track, vocals, bgm); err != nil {
		return nil, nil, err
	}
	return vocals, bgm, nil
}

func (s *Stage) separateOn(ctx context.Context, device Device, track *media.Track, onProgress func(float64)) (*media.Track, *media.Track, error) {
	handle, err := s.model.Load(ctx, s.modelName, device)
	if err != nil {
		return nil, nil, err
	}
	return handle.Separate(ctx, track, onProgress)
}

// checkOutputs enforces the stage contract: vocals and bgm are sample-accurate
// mirrors of the input format.
func checkOutputs(in, vocals, bgm *media.Track) error {
	for name, out := range map[string]*media.Track{"vocals": vocals, "bgm": bgm} {
		if out == nil {
			return services.Wrap(services.ErrTransient, "separation", "verify",
				fmt.Sprintf("collaborator returned no %s track", name), nil)
		}
		if out.SampleRate() != in.SampleRate() || out.Channels() != in.Channels() {
			return services.Wrap(services.ErrTransient, "separation", "verify",
				fmt.Sprintf("%s format %dHz/%dch does not match input %dHz/%dch",
					name, out.SampleRate(), out.Channels(), in.SampleRate(), in.Channels()), nil)
		}
		if out.Frames() != in.Frames() {
			return services.Wrap(services.ErrTransient, "separation", "verify",
				fmt.Sprintf("%s has %d frames, input has %d", name, out.Frames(), in.Frames()), nil)
		}
	}
	return nil
}
