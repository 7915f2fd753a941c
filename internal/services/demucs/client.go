// Package demucs wraps the external source-separation tool as an exec-based
// collaborator. The tool is treated as a black box that reads a WAV file and
// emits JSON progress lines on stdout while writing vocals/bgm stems.
package demucs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"voxsplit/internal/media"
	"voxsplit/internal/separation"
	"voxsplit/internal/services"
)

var commandContext = exec.CommandContext

var lookPath = exec.LookPath

// DefaultBinary is the separator executable looked up on PATH when the
// configuration does not name one.
const DefaultBinary = "demucs"

// KnownModels lists the separation models the adapter accepts.
var KnownModels = map[string]string{
	"htdemucs":    "hybrid transformer model, best quality",
	"htdemucs_ft": "fine-tuned hybrid transformer, slower",
	"mdx_extra":   "MDX challenge model, fast",
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithWorkDir overrides the scratch directory used for stem exchange.
func WithWorkDir(dir string) Option {
	return func(c *CLI) {
		if dir != "" {
			c.workDir = dir
		}
	}
}

// CLI wraps the demucs command-line separator.
type CLI struct {
	binary  string
	workDir string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: DefaultBinary, workDir: os.TempDir()}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Load validates the model name and binary availability and returns a handle
// bound to the requested device.
func (c *CLI) Load(ctx context.Context, modelName string, device separation.Device) (separation.Handle, error) {
	modelName = strings.TrimSpace(modelName)
	if _, ok := KnownModels[modelName]; !ok {
		return nil, services.Wrap(services.ErrModelLoad, "demucs", "load",
			fmt.Sprintf("unknown separation model %q", modelName), nil)
	}
	if _, err := lookPath(c.binary); err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "demucs", "load",
			fmt.Sprintf("%s binary not found on PATH", c.binary), err)
	}
	return &session{cli: c, model: modelName, device: device}, nil
}

type session struct {
	cli    *CLI
	model  string
	device separation.Device
}

type progressLine struct {
	Fraction float64 `json:"fraction"`
	Message  string  `json:"message"`
	Error    string  `json:"error"`
}

// Separate writes the track to a scratch WAV, launches the separator, streams
// progress, and reads the vocals/bgm stems back.
func (s *session) Separate(ctx context.Context, track *media.Track, onProgress func(float64)) (*media.Track, *media.Track, error) {
	scratch, err := os.MkdirTemp(s.cli.workDir, "demucs-*")
	if err != nil {
		return nil, nil, services.Wrap(services.ErrIO, "demucs", "separate", "create scratch directory", err)
	}
	defer os.RemoveAll(scratch)

	inputPath := filepath.Join(scratch, "input.wav")
	if err := media.Encode(track, inputPath, 16); err != nil {
		return nil, nil, err
	}

	args := []string{
		"--model", s.model,
		"--device", string(s.device),
		"--two-stems", "vocals",
		"--input", inputPath,
		"--output-dir", scratch,
		"--progress-json",
	}
	cmd := commandContext(ctx, s.cli.binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "demucs", "separate", "stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, services.Wrap(services.ErrUnavailable, "demucs", "separate", "start separator", err)
	}

	scanner := bufio.NewScanner(stdout)
	var toolError string
	for scanner.Scan() {
		var line progressLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Error != "" {
			toolError = line.Error
		}
		if onProgress != nil && line.Fraction >= 0 {
			onProgress(line.Fraction)
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return nil, nil, services.Wrap(services.ErrTransient, "demucs", "separate", "read separator output", err)
	}

	if err := cmd.Wait(); err != nil {
		// A cancelled context kills the child; report the cancellation, not
		// the resulting signal.
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, classify(err, toolError, stderr.String())
	}

	vocals, err := media.Decode(filepath.Join(scratch, "vocals.wav"))
	if err != nil {
		return nil, nil, err
	}
	bgm, err := media.Decode(filepath.Join(scratch, "no_vocals.wav"))
	if err != nil {
		return nil, nil, err
	}
	return vocals, bgm, nil
}

// classify maps separator failures onto the shared taxonomy so the stage can
// apply the single CPU retry only to device-capacity errors.
func classify(waitErr error, toolError, stderr string) error {
	detail := strings.TrimSpace(toolError)
	if detail == "" {
		detail = strings.TrimSpace(stderr)
	}
	lowered := strings.ToLower(detail)
	switch {
	case strings.Contains(lowered, "out of memory"),
		strings.Contains(lowered, "insufficient memory"),
		strings.Contains(lowered, "cuda error"):
		return services.Wrap(services.ErrResource, "demucs", "separate", detail, waitErr)
	case strings.Contains(lowered, "unsupported sample rate"),
		strings.Contains(lowered, "corrupt input"):
		return services.Wrap(services.ErrValidation, "demucs", "separate", detail, waitErr)
	case strings.Contains(lowered, "model"):
		return services.Wrap(services.ErrModelLoad, "demucs", "separate", detail, waitErr)
	}
	var execErr *exec.Error
	if errors.As(waitErr, &execErr) {
		return services.Wrap(services.ErrUnavailable, "demucs", "separate", "separator binary failed to run", waitErr)
	}
	return services.Wrap(services.ErrTransient, "demucs", "separate", detail, waitErr)
}
