package separation

import (
	"context"
	"errors"
	"testing"

	"voxsplit/internal/logging"
	"voxsplit/internal/media"
	"voxsplit/internal/services"
)

type fakeHandle struct {
	separate func(ctx context.Context, track *media.Track, onProgress func(float64)) (*media.Track, *media.Track, error)
}

func (h *fakeHandle) Separate(ctx context.Context, track *media.Track, onProgress func(float64)) (*media.Track, *media.Track, error) {
	return h.separate(ctx, track, onProgress)
}

type fakeModel struct {
	loads []Device
	load  func(device Device) (Handle, error)
}

func (m *fakeModel) Load(ctx context.Context, modelName string, device Device) (Handle, error) {
	m.loads = append(m.loads, device)
	return m.load(device)
}

func silentTrack(t *testing.T, seconds float64) *media.Track {
	t.Helper()
	track, err := media.NewTrack(make([]float64, int(seconds*8000)), 8000, 1)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	return track
}

func passthroughHandle(t *testing.T) Handle {
	return &fakeHandle{separate: func(_ context.Context, track *media.Track, onProgress func(float64)) (*media.Track, *media.Track, error) {
		if onProgress != nil {
			onProgress(0.5)
			onProgress(1)
		}
		vocals, _ := media.NewTrack(append([]float64(nil), track.Samples()...), track.SampleRate(), track.Channels())
		bgm, _ := media.NewTrack(make([]float64, len(track.Samples())), track.SampleRate(), track.Channels())
		return vocals, bgm, nil
	}}
}

func TestRunSuccessOnRequestedDevice(t *testing.T) {
	model := &fakeModel{}
	model.load = func(Device) (Handle, error) { return passthroughHandle(t), nil }
	stage := New(model, "htdemucs", DeviceCUDA, logging.NewNop())

	track := silentTrack(t, 2)
	vocals, bgm, err := stage.Run(context.Background(), track, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if vocals.Frames() != track.Frames() || bgm.Frames() != track.Frames() {
		t.Fatal("outputs must be sample-accurate")
	}
	if len(model.loads) != 1 || model.loads[0] != DeviceCUDA {
		t.Fatalf("loads = %v, want one CUDA attempt", model.loads)
	}
}

func TestResourceFailureRetriesOnceOnCPU(t *testing.T) {
	model := &fakeModel{}
	model.load = func(device Device) (Handle, error) {
		if device == DeviceCUDA {
			return nil, services.Wrap(services.ErrResource, "demucs", "load", "insufficient device memory", nil)
		}
		return passthroughHandle(t), nil
	}
	stage := New(model, "htdemucs", DeviceCUDA, logging.NewNop())

	if _, _, err := stage.Run(context.Background(), silentTrack(t, 1), nil); err != nil {
		t.Fatalf("Run after CPU retry: %v", err)
	}
	if len(model.loads) != 2 || model.loads[1] != DeviceCPU {
		t.Fatalf("loads = %v, want CUDA then CPU", model.loads)
	}
}

func TestResourceFailureOnCPUIsFatal(t *testing.T) {
	model := &fakeModel{}
	model.load = func(Device) (Handle, error) {
		return nil, services.Wrap(services.ErrResource, "demucs", "load", "insufficient memory", nil)
	}
	stage := New(model, "htdemucs", DeviceCPU, logging.NewNop())

	_, _, err := stage.Run(context.Background(), silentTrack(t, 1), nil)
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if len(model.loads) != 1 {
		t.Fatalf("loads = %v, CPU failure must not retry", model.loads)
	}
}

func TestNonResourceFailureDoesNotRetry(t *testing.T) {
	model := &fakeModel{}
	model.load = func(Device) (Handle, error) {
		return nil, services.Wrap(services.ErrModelLoad, "demucs", "load", "corrupt model file", nil)
	}
	stage := New(model, "htdemucs", DeviceCUDA, logging.NewNop())

	_, _, err := stage.Run(context.Background(), silentTrack(t, 1), nil)
	if !errors.Is(err, services.ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
	if len(model.loads) != 1 {
		t.Fatalf("loads = %v, model-load failure must not retry", model.loads)
	}
}

func TestRunRejectsMismatchedOutputs(t *testing.T) {
	model := &fakeModel{}
	model.load = func(Device) (Handle, error) {
		return &fakeHandle{separate: func(_ context.Context, track *media.Track, _ func(float64)) (*media.Track, *media.Track, error) {
			short, _ := media.NewTrack(make([]float64, 10), track.SampleRate(), track.Channels())
			return short, short, nil
		}}, nil
	}
	stage := New(model, "htdemucs", DeviceCPU, logging.NewNop())

	if _, _, err := stage.Run(context.Background(), silentTrack(t, 1), nil); err == nil {
		t.Fatal("expected error for frame count mismatch")
	}
}
