package demucs

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"voxsplit/internal/media"
	"voxsplit/internal/separation"
	"voxsplit/internal/services"
)

func TestLoadRejectsUnknownModel(t *testing.T) {
	cli := NewCLI()
	_, err := cli.Load(context.Background(), "not-a-model", separation.DeviceCPU)
	if !errors.Is(err, services.ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
}

func TestLoadReportsUnavailableWhenBinaryMissing(t *testing.T) {
	restore := lookPath
	lookPath = func(string) (string, error) { return "", errors.New("not found") }
	defer func() { lookPath = restore }()

	cli := NewCLI(WithBinary("definitely-missing-binary"))
	_, err := cli.Load(context.Background(), "htdemucs", separation.DeviceCPU)
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClassifyResourceErrors(t *testing.T) {
	cases := []struct {
		name   string
		detail string
		marker error
	}{
		{"cuda oom", "CUDA error: out of memory", services.ErrResource},
		{"generic oom", "insufficient memory on device", services.ErrResource},
		{"bad rate", "unsupported sample rate 7999", services.ErrValidation},
		{"corrupt", "corrupt input file", services.ErrValidation},
		{"model", "model checkpoint missing tensor", services.ErrModelLoad},
		{"other", "segfault", services.ErrTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify(errors.New("exit status 1"), tc.detail, "")
			if !errors.Is(err, tc.marker) {
				t.Fatalf("classify(%q) = %v, want marker %v", tc.detail, err, tc.marker)
			}
		})
	}
}

func TestSeparateReportsCancellationWhenInterrupted(t *testing.T) {
	restore := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sleep", "30")
	}
	defer func() { commandContext = restore }()

	track, err := media.NewTrack(make([]float64, 800), 8000, 1)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	s := &session{cli: NewCLI(WithWorkDir(t.TempDir())), model: "htdemucs", device: separation.DeviceCPU}
	_, _, err = s.Separate(ctx, track, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestClassifyPrefersToolErrorOverStderr(t *testing.T) {
	err := classify(errors.New("exit status 1"), "out of memory", "unrelated noise")
	if !errors.Is(err, services.ErrResource) {
		t.Fatalf("expected ErrResource from tool error, got %v", err)
	}
}
