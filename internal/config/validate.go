package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSeparation(); err != nil {
		return err
	}
	if err := c.validateDiarization(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSeparation() error {
	switch c.Separation.Device {
	case "auto", "cpu", "cuda":
	default:
		return fmt.Errorf("separation.device must be one of auto, cpu, cuda (got %q)", c.Separation.Device)
	}
	return nil
}

func (c *Config) validateDiarization() error {
	if c.Diarization.Model == "" {
		return errors.New("diarization.model must be set")
	}
	if err := c.DiarizationParams().Validate(); err != nil {
		return fmt.Errorf("diarization defaults: %w", err)
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.FadeSeconds < 0 {
		return errors.New("audio.fade_seconds must be >= 0")
	}
	if c.Audio.NormalizePeak < 0 || c.Audio.NormalizePeak > 1 {
		return errors.New("audio.normalize_peak must be between 0 and 1")
	}
	switch c.Audio.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("audio.bit_depth must be 16, 24, or 32 (got %d)", c.Audio.BitDepth)
	}
	return nil
}

func (c *Config) validateOutput() error {
	if !c.Output.WriteSegments && !c.Output.WriteCombined && !c.Output.WriteStems {
		return errors.New("output: at least one of write_stems, write_segments, write_combined must be true")
	}
	return nil
}
