package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"voxsplit/internal/params"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	WorkDir   string `toml:"work_dir"`
	LogDir    string `toml:"log_dir"`
	DBPath    string `toml:"db_path"`
}

// Separation contains configuration for the music separation stage.
type Separation struct {
	Model  string `toml:"model"`
	Device string `toml:"device"`
	Binary string `toml:"binary"`
}

// Diarization contains configuration for the speaker diarization stage,
// including the tunable parameter defaults a run starts from.
type Diarization struct {
	Model               string  `toml:"model"`
	Binary              string  `toml:"binary"`
	AuthToken           string  `toml:"auth_token"`
	ClusteringThreshold float64 `toml:"clustering_threshold"`
	SegmentationOnset   float64 `toml:"segmentation_onset"`
	SegmentationOffset  float64 `toml:"segmentation_offset"`
	ForceNumSpeakers    int     `toml:"force_num_speakers"`
	OverlapRemoval      bool    `toml:"overlap_removal"`
	MinSegmentDuration  float64 `toml:"min_segment_duration"`
}

// Audio contains configuration for audio post-processing.
type Audio struct {
	Preprocessing bool    `toml:"preprocessing"`
	FadeSeconds   float64 `toml:"fade_seconds"`
	NormalizePeak float64 `toml:"normalize_peak"`
	BitDepth      int     `toml:"bit_depth"`
}

// Output contains toggles for which artifacts a run writes.
type Output struct {
	WriteStems    bool `toml:"write_stems"`
	WriteSegments bool `toml:"write_segments"`
	WriteCombined bool `toml:"write_combined"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for voxsplit.
//
// Configuration sections by subsystem:
//   - Paths: output, scratch, log, and ledger locations
//   - Separation: music separation model and device selection
//   - Diarization: diarization model, credentials, and parameter defaults
//   - Audio: preprocessing, fades, normalization, and encoding depth
//   - Output: which artifacts a run writes
//   - Logging: log format, level, and retention
type Config struct {
	Paths       Paths       `toml:"paths"`
	Separation  Separation  `toml:"separation"`
	Diarization Diarization `toml:"diarization"`
	Audio       Audio       `toml:"audio"`
	Output      Output      `toml:"output"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/voxsplit/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. It reports the resolved
// path and whether a file actually existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("voxsplit.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run needs before any stage
// starts.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.DBPath); strings.TrimSpace(dir) != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DiarizationParams translates the configured diarization defaults into a
// parameter set.
func (c *Config) DiarizationParams() params.Set {
	return params.Set{
		ClusteringThreshold: c.Diarization.ClusteringThreshold,
		SegmentationOnset:   c.Diarization.SegmentationOnset,
		SegmentationOffset:  c.Diarization.SegmentationOffset,
		ForceNumSpeakers:    c.Diarization.ForceNumSpeakers,
		OverlapRemoval:      c.Diarization.OverlapRemoval,
		AudioPreprocessing:  c.Audio.Preprocessing,
		MinSegmentDuration:  c.Diarization.MinSegmentDuration,
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
