package assemble

import (
	"fmt"
	"regexp"
	"strconv"
)

// FormatTimestamp encodes seconds as a filename-safe minute/second token,
// e.g. 15.4s -> "0m15s". The encoding round-trips via ParseTimestamp.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%dm%02ds", total/60, total%60)
}

// ParseTimestamp decodes a token produced by FormatTimestamp back to seconds.
func ParseTimestamp(token string) (float64, error) {
	m := timestampPattern.FindStringSubmatch(token)
	if m == nil {
		return 0, fmt.Errorf("malformed timestamp token %q", token)
	}
	minutes, _ := strconv.Atoi(m[1])
	secs, _ := strconv.Atoi(m[2])
	return float64(minutes*60 + secs), nil
}

var timestampPattern = regexp.MustCompile(`^(\d+)m(\d{2})s$`)

var segmentNamePattern = regexp.MustCompile(`_speaker(\d{2})_seg(\d{3})_(\d+m\d{2}s)-(\d+m\d{2}s)\.wav$`)

// SegmentFileName builds the deterministic per-segment filename:
// {base}_speaker{NN}_seg{MMM}_{start}-{end}.wav.
func SegmentFileName(base string, speakerIndex, segmentIndex int, startSec, endSec float64) string {
	return fmt.Sprintf("%s_speaker%02d_seg%03d_%s-%s.wav",
		base, speakerIndex, segmentIndex, FormatTimestamp(startSec), FormatTimestamp(endSec))
}

// CombinedFileName builds the deterministic combined-track filename:
// {base}_speaker{NN}_combined.wav.
func CombinedFileName(base string, speakerIndex int) string {
	return fmt.Sprintf("%s_speaker%02d_combined.wav", base, speakerIndex)
}

// SpeakerDirName builds the per-speaker output subdirectory name.
func SpeakerDirName(speakerIndex int) string {
	return fmt.Sprintf("speaker_%02d", speakerIndex)
}

// ParseSegmentFileName extracts the start/end seconds encoded in a segment
// filename. It exists so tooling can recover timing without the manifest.
func ParseSegmentFileName(name string) (startSec, endSec float64, err error) {
	m := segmentNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, fmt.Errorf("filename %q does not match the segment naming scheme", name)
	}
	startSec, err = ParseTimestamp(m[3])
	if err != nil {
		return 0, 0, err
	}
	endSec, err = ParseTimestamp(m[4])
	if err != nil {
		return 0, 0, err
	}
	return startSec, endSec, nil
}
