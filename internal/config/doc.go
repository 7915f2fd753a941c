// Package config loads, normalizes, and validates the TOML configuration
// file controlling paths, model selection, diarization parameter defaults,
// audio post-processing, output toggles, and logging.
package config
