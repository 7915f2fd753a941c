package config

const (
	defaultOutputDir        = "~/voxsplit/output"
	defaultWorkDir          = "~/.local/share/voxsplit/work"
	defaultLogDir           = "~/.local/share/voxsplit/logs"
	defaultDBPath           = "~/.local/share/voxsplit/runs.db"
	defaultSeparationModel  = "htdemucs"
	defaultSeparationDevice = "auto"
	defaultDiarizationModel = "pyannote/speaker-diarization-3.1"
	defaultFadeSeconds      = 0.01
	defaultNormalizePeak    = 0.95
	defaultBitDepth         = 16
	defaultLogFormat        = "auto"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
			DBPath:    defaultDBPath,
		},
		Separation: Separation{
			Model:  defaultSeparationModel,
			Device: defaultSeparationDevice,
		},
		Diarization: Diarization{
			Model:               defaultDiarizationModel,
			ClusteringThreshold: 0.7,
			SegmentationOnset:   0.5,
			SegmentationOffset:  0.35,
			OverlapRemoval:      true,
			MinSegmentDuration:  1.0,
		},
		Audio: Audio{
			Preprocessing: true,
			FadeSeconds:   defaultFadeSeconds,
			NormalizePeak: defaultNormalizePeak,
			BitDepth:      defaultBitDepth,
		},
		Output: Output{
			WriteStems:    true,
			WriteSegments: true,
			WriteCombined: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
