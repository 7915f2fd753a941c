// Package pyannote wraps the external speaker-diarization tool as an
// exec-based collaborator. The tool reads a WAV file, emits JSON progress
// lines on stdout, and finishes with a JSON segments document.
package pyannote

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
	"strconv"
	"strings"

	"voxsplit/internal/diarize"
	"voxsplit/internal/media"
	"voxsplit/internal/params"
	"voxsplit/internal/segments"
	"voxsplit/internal/services"
)

var commandContext = exec.CommandContext

var lookPath = exec.LookPath

// DefaultBinary is the diarizer executable looked up on PATH when the
// configuration does not name one.
const DefaultBinary = "pyannote"

// KnownModels lists the diarization models the adapter accepts.
var KnownModels = map[string]string{
	"pyannote/speaker-diarization-3.1": "v3.1 diarization pipeline, best quality",
	"pyannote/speaker-diarization":     "standard diarization pipeline, faster",
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

// WithWorkDir overrides the scratch directory used for track exchange.
func WithWorkDir(dir string) Option {
	return func(c *CLI) {
		if dir != "" {
			c.workDir = dir
		}
	}
}

// CLI wraps the pyannote command-line diarizer.
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

// Load validates the model, credential, and binary availability. A missing
// credential is reported as an authorization failure so the stage can fall
// back instead of failing the run.
func (c *CLI) Load(ctx context.Context, modelName, credential string) (diarize.Handle, error) {
	modelName = strings.TrimSpace(modelName)
	if _, ok := KnownModels[modelName]; !ok {
		return nil, services.Wrap(services.ErrModelLoad, "pyannote", "load",
			fmt.Sprintf("unknown diarization model %q", modelName), nil)
	}
	if strings.TrimSpace(credential) == "" {
		return nil, services.Wrap(services.ErrAuth, "pyannote", "load",
			"no access token configured for the diarization model", nil)
	}
	if _, err := lookPath(c.binary); err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "pyannote", "load",
			fmt.Sprintf("%s binary not found on PATH", c.binary), err)
	}
	return &session{cli: c, model: modelName, credential: credential}, nil
}

type session struct {
	cli        *CLI
	model      string
	credential string
}

type eventLine struct {
	Type     string        `json:"type"`
	Fraction float64       `json:"fraction"`
	Error    string        `json:"error"`
	Segments []segmentLine `json:"segments"`
}

type segmentLine struct {
	Speaker    string  `json:"speaker"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Diarize runs the collaborator over the track and returns its segment list.
func (s *session) Diarize(ctx context.Context, track *media.Track, p params.Set, onProgress func(float64)) ([]segments.Segment, error) {
	scratch, err := os.MkdirTemp(s.cli.workDir, "pyannote-*")
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "pyannote", "diarize", "create scratch directory", err)
	}
	defer os.RemoveAll(scratch)

	inputPath := filepath.Join(scratch, "input.wav")
	if err := media.Encode(track, inputPath, 16); err != nil {
		return nil, err
	}

	args := []string{
		"diarize",
		"--model", s.model,
		"--input", inputPath,
		"--clustering-threshold", strconv.FormatFloat(p.ClusteringThreshold, 'f', -1, 64),
		"--onset", strconv.FormatFloat(p.SegmentationOnset, 'f', -1, 64),
		"--offset", strconv.FormatFloat(p.SegmentationOffset, 'f', -1, 64),
		"--min-duration", strconv.FormatFloat(p.MinSegmentDuration, 'f', -1, 64),
		"--progress-json",
	}
	if p.ForceNumSpeakers > 0 {
		args = append(args, "--num-speakers", strconv.Itoa(p.ForceNumSpeakers))
	}

	cmd := commandContext(ctx, s.cli.binary, args...) //nolint:gosec
	cmd.Env = append(os.Environ(), "HF_TOKEN="+s.credential)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "pyannote", "diarize", "stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "pyannote", "diarize", "start diarizer", err)
	}

	var (
		result    []segments.Segment
		gotResult bool
		toolError string
	)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		var line eventLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		switch line.Type {
		case "progress":
			if onProgress != nil && line.Fraction >= 0 {
				onProgress(line.Fraction)
			}
		case "result":
			result = convertSegments(line.Segments)
			gotResult = true
		case "error":
			toolError = line.Error
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return nil, services.Wrap(services.ErrTransient, "pyannote", "diarize", "read diarizer output", err)
	}

	if err := cmd.Wait(); err != nil {
		// A cancelled context kills the child; report the cancellation, not
		// the resulting signal.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify(err, toolError, stderr.String())
	}
	if !gotResult {
		return nil, services.Wrap(services.ErrTransient, "pyannote", "diarize", "diarizer produced no result document", nil)
	}
	return result, nil
}

func convertSegments(lines []segmentLine) []segments.Segment {
	out := make([]segments.Segment, 0, len(lines))
	for _, l := range lines {
		out = append(out, segments.Segment{
			Speaker:    l.Speaker,
			Start:      l.Start,
			End:        l.End,
			Confidence: l.Confidence,
		})
	}
	return out
}

// classify maps diarizer failures onto the shared taxonomy. Credential and
// availability problems are fallback-eligible; everything else is fatal.
func classify(waitErr error, toolError, stderr string) error {
	detail := strings.TrimSpace(toolError)
	if detail == "" {
		detail = strings.TrimSpace(stderr)
	}
	lowered := strings.ToLower(detail)
	switch {
	case strings.Contains(lowered, "unauthorized"),
		strings.Contains(lowered, "401"),
		strings.Contains(lowered, "invalid token"),
		strings.Contains(lowered, "access token"):
		return services.Wrap(services.ErrAuth, "pyannote", "diarize", detail, waitErr)
	case strings.Contains(lowered, "download failed"),
		strings.Contains(lowered, "model fetch"),
		strings.Contains(lowered, "connection"):
		return services.Wrap(services.ErrUnavailable, "pyannote", "diarize", detail, waitErr)
	case strings.Contains(lowered, "malformed"),
		strings.Contains(lowered, "invalid input"):
		return services.Wrap(services.ErrValidation, "pyannote", "diarize", detail, waitErr)
	}
	var execErr *exec.Error
	if errors.As(waitErr, &execErr) {
		return services.Wrap(services.ErrUnavailable, "pyannote", "diarize", "diarizer binary failed to run", waitErr)
	}
	return services.Wrap(services.ErrTransient, "pyannote", "diarize", detail, waitErr)
}
