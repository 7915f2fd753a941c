// Package assemble turns diarized segment intervals into per-speaker audio
// artifacts: individual segment files, a combined track per speaker, and the
// manifest and report describing what was written.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"voxsplit/internal/logging"
	"voxsplit/internal/media"
	"voxsplit/internal/params"
	"voxsplit/internal/segments"
	"voxsplit/internal/services"
)

const stageName = "assembly"

// Options controls which artifacts the assembler emits and how segment audio
// is post-processed before writing.
type Options struct {
	// FadeSeconds is the linear fade applied to each extracted segment to
	// avoid clicks at the cut points.
	FadeSeconds float64
	// NormalizePeak, when positive, scales each combined track so its peak
	// reaches this level.
	NormalizePeak float64
	// BitDepth selects the PCM bit depth of written WAV files.
	BitDepth int
	// WriteSegments emits one file per segment under speaker_NN/.
	WriteSegments bool
	// WriteCombined emits one concatenated track per speaker.
	WriteCombined bool
}

// DefaultOptions mirrors the shipped configuration defaults.
func DefaultOptions() Options {
	return Options{
		FadeSeconds:   0.01,
		NormalizePeak: 0.95,
		BitDepth:      16,
		WriteSegments: true,
		WriteCombined: true,
	}
}

// Assembler extracts per-speaker audio from the vocal stem.
type Assembler struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Assembler {
	if opts.BitDepth == 0 {
		opts.BitDepth = 16
	}
	return &Assembler{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "assembler"),
	}
}

// Result carries everything the assembly stage produced.
type Result struct {
	Groups   []segments.Group
	Manifest *Manifest
	// TrimmedSegments is the post-overlap-removal segment list the artifacts
	// were cut from, in start order.
	TrimmedSegments []segments.Segment
}

// Run groups segments by speaker, removes overlaps when requested, extracts
// the audio for every surviving segment from vocals, and writes the artifacts
// under outputDir. baseName seeds the deterministic filenames. onProgress, if
// non-nil, receives the fraction of segments processed so far.
func (a *Assembler) Run(ctx context.Context, vocals *media.Track, segs []segments.Segment, p params.Set, baseName, outputDir string, onProgress func(fraction float64, message string)) (*Result, error) {
	if vocals == nil || vocals.Frames() == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "assemble", "vocal track is empty", nil)
	}
	if len(segs) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "assemble", "no segments to assemble", nil)
	}
	trackSeconds := vocals.Seconds()
	for _, seg := range segs {
		if err := seg.Validate(trackSeconds); err != nil {
			return nil, err
		}
	}

	ordered := make([]segments.Segment, len(segs))
	copy(ordered, segs)
	segments.SortByStart(ordered)
	if p.OverlapRemoval {
		before := len(ordered)
		ordered = TrimOverlaps(ordered)
		if dropped := before - len(ordered); dropped > 0 {
			a.logger.Debug("dropped fully overlapped segments", logging.Int("count", dropped))
		}
	}

	groups := groupBySpeaker(ordered)
	manifest := NewManifest()
	total := len(ordered)
	done := 0
	report := func(message string) {
		if onProgress != nil && total > 0 {
			onProgress(float64(done)/float64(total), message)
		}
	}
	report("assembling speaker segments")

	for gi := range groups {
		group := &groups[gi]
		speakerDir := filepath.Join(outputDir, SpeakerDirName(gi))
		if a.opts.WriteSegments || a.opts.WriteCombined {
			if err := os.MkdirAll(speakerDir, 0o755); err != nil {
				return nil, services.Wrap(services.ErrIO, stageName, "assemble",
					fmt.Sprintf("failed to create speaker directory %s", speakerDir), err)
			}
		}

		pieces := make([]*media.Track, 0, len(group.Segments))
		for si, seg := range group.Segments {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			piece := media.ApplyFade(vocals.Slice(seg.Start, seg.End), a.opts.FadeSeconds)
			pieces = append(pieces, piece)

			if a.opts.WriteSegments {
				name := SegmentFileName(baseName, gi, si+1, seg.Start, seg.End)
				path := filepath.Join(speakerDir, name)
				if err := media.Encode(piece, path, a.opts.BitDepth); err != nil {
					return nil, services.Wrap(services.ErrIO, stageName, "assemble",
						fmt.Sprintf("failed to write segment file %s", name), err)
				}
				manifest.Add(fmt.Sprintf("speaker_%02d_seg_%03d", gi, si+1), Entry{
					Path:  path,
					Start: seg.Start,
					End:   seg.End,
				})
			}
			done++
			report(fmt.Sprintf("extracted segment %d of %d", done, total))
		}

		combined, err := media.Concat(pieces...)
		if err != nil {
			return nil, services.Wrap(services.ErrIO, stageName, "assemble",
				fmt.Sprintf("failed to combine segments for %s", group.Label), err)
		}
		if a.opts.NormalizePeak > 0 {
			combined = media.Normalize(combined, a.opts.NormalizePeak)
		}
		group.Combined = combined

		if a.opts.WriteCombined {
			name := CombinedFileName(baseName, gi)
			path := filepath.Join(speakerDir, name)
			if err := media.Encode(combined, path, a.opts.BitDepth); err != nil {
				return nil, services.Wrap(services.ErrIO, stageName, "assemble",
					fmt.Sprintf("failed to write combined file %s", name), err)
			}
			manifest.Add(fmt.Sprintf("speaker_%02d_combined", gi), Entry{Path: path})
		}

		a.logger.Info("assembled speaker",
			logging.String("speaker", group.Label),
			logging.Int("segments", len(group.Segments)),
			logging.Float64("total_seconds", group.TotalDuration()))
	}

	report("assembly complete")
	return &Result{Groups: groups, Manifest: manifest, TrimmedSegments: ordered}, nil
}

// TrimOverlaps resolves overlaps between chronologically ordered segments by
// cutting both at the midpoint of the overlapping region. Segments left with
// no duration are dropped. The input must already be sorted by start time.
func TrimOverlaps(ordered []segments.Segment) []segments.Segment {
	out := make([]segments.Segment, 0, len(ordered))
	for _, cur := range ordered {
		if len(out) == 0 {
			out = append(out, cur)
			continue
		}
		prev := &out[len(out)-1]
		if cur.Start < prev.End {
			mid := (cur.Start + prev.End) / 2
			prev.End = mid
			cur.Start = mid
			if prev.End <= prev.Start {
				out = out[:len(out)-1]
			}
		}
		if cur.End > cur.Start {
			out = append(out, cur)
		}
	}
	return out
}

// groupBySpeaker buckets segments by label in first-appearance order. The
// bucket index doubles as the speaker's output directory index.
func groupBySpeaker(ordered []segments.Segment) []segments.Group {
	index := map[string]int{}
	var groups []segments.Group
	for _, seg := range ordered {
		i, ok := index[seg.Speaker]
		if !ok {
			i = len(groups)
			index[seg.Speaker] = i
			groups = append(groups, segments.Group{Label: seg.Speaker})
		}
		groups[i].Segments = append(groups[i].Segments, seg)
	}
	return groups
}
