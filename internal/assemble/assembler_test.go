package assemble

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"voxsplit/internal/media"
	"voxsplit/internal/params"
	"voxsplit/internal/segments"
)

func sineTrack(t *testing.T, seconds float64, sampleRate int) *media.Track {
	t.Helper()
	frames := int(seconds * float64(sampleRate))
	samples := make([]float64, frames)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate))
	}
	track, err := media.NewTrack(samples, sampleRate, 1)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	return track
}

func TestTimestampRoundTrip(t *testing.T) {
	cases := []float64{0, 15.4, 59.99, 60, 61.2, 754.8, 3600}
	for _, sec := range cases {
		token := FormatTimestamp(sec)
		parsed, err := ParseTimestamp(token)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", token, err)
		}
		if math.Abs(parsed-sec) >= 1.0 {
			t.Fatalf("round trip of %.2f via %q drifted to %.2f", sec, token, parsed)
		}
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "12s", "1m5s", "m05s", "1h02s"} {
		if _, err := ParseTimestamp(token); err == nil {
			t.Fatalf("expected error for token %q", token)
		}
	}
}

func TestSegmentFileNameRoundTrip(t *testing.T) {
	name := SegmentFileName("interview", 1, 3, 75.6, 92.1)
	want := "interview_speaker01_seg003_1m15s-1m32s.wav"
	if name != want {
		t.Fatalf("filename = %q, want %q", name, want)
	}
	start, end, err := ParseSegmentFileName(name)
	if err != nil {
		t.Fatalf("ParseSegmentFileName: %v", err)
	}
	if math.Abs(start-75.6) >= 1.0 || math.Abs(end-92.1) >= 1.0 {
		t.Fatalf("parsed interval [%.2f, %.2f] drifted from [75.60, 92.10]", start, end)
	}
}

func TestTrimOverlapsMidpoint(t *testing.T) {
	segs := []segments.Segment{
		{Speaker: "SPEAKER_00", Start: 0, End: 5},
		{Speaker: "SPEAKER_01", Start: 4, End: 8},
	}
	segments.SortByStart(segs)
	trimmed := TrimOverlaps(segs)
	if len(trimmed) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(trimmed))
	}
	if trimmed[0].End != 4.5 || trimmed[1].Start != 4.5 {
		t.Fatalf("overlap not cut at midpoint: [%v, %v]", trimmed[0].End, trimmed[1].Start)
	}
}

func TestTrimOverlapsDropsSwallowedSegment(t *testing.T) {
	segs := []segments.Segment{
		{Speaker: "SPEAKER_00", Start: 0, End: 10},
		{Speaker: "SPEAKER_01", Start: 2, End: 3},
	}
	trimmed := TrimOverlaps(segs)
	for i := 1; i < len(trimmed); i++ {
		if trimmed[i].Start < trimmed[i-1].End {
			t.Fatalf("segments %d and %d overlap after trimming: %+v", i-1, i, trimmed)
		}
	}
}

func TestTrimOverlapsProperty(t *testing.T) {
	segs := []segments.Segment{
		{Speaker: "SPEAKER_00", Start: 0, End: 4},
		{Speaker: "SPEAKER_01", Start: 3, End: 7},
		{Speaker: "SPEAKER_00", Start: 6.5, End: 9},
		{Speaker: "SPEAKER_02", Start: 8.9, End: 12},
	}
	segments.SortByStart(segs)
	trimmed := TrimOverlaps(segs)
	for i := 1; i < len(trimmed); i++ {
		if trimmed[i].Start < trimmed[i-1].End {
			t.Fatalf("segments %d and %d overlap after trimming: %+v", i-1, i, trimmed)
		}
	}
	for _, seg := range trimmed {
		if seg.End <= seg.Start {
			t.Fatalf("trimmed segment has no duration: %+v", seg)
		}
	}
}

func TestAssemblerWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	vocals := sineTrack(t, 10, 8000)
	segs := []segments.Segment{
		{Speaker: "SPEAKER_00", Start: 1, End: 3},
		{Speaker: "SPEAKER_01", Start: 4, End: 6},
		{Speaker: "SPEAKER_00", Start: 7, End: 9},
	}

	asm := New(DefaultOptions(), nil)
	res, err := asm.Run(context.Background(), vocals, segs, params.Default(), "session", dir, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Groups) != 2 {
		t.Fatalf("expected 2 speaker groups, got %d", len(res.Groups))
	}
	if res.Groups[0].Label != "SPEAKER_00" || res.Groups[1].Label != "SPEAKER_01" {
		t.Fatalf("groups not in first-appearance order: %q, %q", res.Groups[0].Label, res.Groups[1].Label)
	}

	wantFiles := []string{
		filepath.Join(dir, "speaker_00", "session_speaker00_seg001_0m01s-0m03s.wav"),
		filepath.Join(dir, "speaker_00", "session_speaker00_seg002_0m07s-0m09s.wav"),
		filepath.Join(dir, "speaker_00", "session_speaker00_combined.wav"),
		filepath.Join(dir, "speaker_01", "session_speaker01_seg001_0m04s-0m06s.wav"),
		filepath.Join(dir, "speaker_01", "session_speaker01_combined.wav"),
	}
	for _, path := range wantFiles {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected artifact %s: %v", path, err)
		}
	}
	if res.Manifest.Len() != 5 {
		t.Fatalf("manifest has %d entries, want 5", res.Manifest.Len())
	}
	entry, ok := res.Manifest.Lookup("speaker_00_seg_001")
	if !ok {
		t.Fatal("manifest missing speaker_00_seg_001")
	}
	if entry.Start != 1 || entry.End != 3 {
		t.Fatalf("manifest entry interval [%v, %v], want [1, 3]", entry.Start, entry.End)
	}
}

func TestAssemblerCombinedDurationMatchesSegments(t *testing.T) {
	dir := t.TempDir()
	vocals := sineTrack(t, 12, 8000)
	segs := []segments.Segment{
		{Speaker: "SPEAKER_00", Start: 0.5, End: 2.25},
		{Speaker: "SPEAKER_00", Start: 5, End: 8.4},
	}

	asm := New(DefaultOptions(), nil)
	res, err := asm.Run(context.Background(), vocals, segs, params.Default(), "clip", dir, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	group := res.Groups[0]
	want := group.TotalDuration()
	got := group.Combined.Seconds()
	if math.Abs(got-want) > 0.001 {
		t.Fatalf("combined duration %.4f differs from segment sum %.4f", got, want)
	}
}

func TestAssemblerRespectsOutputToggles(t *testing.T) {
	dir := t.TempDir()
	vocals := sineTrack(t, 5, 8000)
	segs := []segments.Segment{{Speaker: "SPEAKER_00", Start: 1, End: 2}}

	opts := DefaultOptions()
	opts.WriteSegments = false
	asm := New(opts, nil)
	res, err := asm.Run(context.Background(), vocals, segs, params.Default(), "clip", dir, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Manifest.Len() != 1 {
		t.Fatalf("manifest has %d entries, want only the combined track", res.Manifest.Len())
	}
	if _, ok := res.Manifest.Lookup("speaker_00_combined"); !ok {
		t.Fatal("manifest missing speaker_00_combined")
	}
	entries, err := os.ReadDir(filepath.Join(dir, "speaker_00"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 file in speaker dir, found %d", len(entries))
	}
}

func TestAssemblerTrimsOverlapsWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	vocals := sineTrack(t, 10, 8000)
	segs := []segments.Segment{
		{Speaker: "SPEAKER_00", Start: 1, End: 5},
		{Speaker: "SPEAKER_01", Start: 4, End: 8},
	}

	asm := New(DefaultOptions(), nil)
	res, err := asm.Run(context.Background(), vocals, segs, params.Default(), "clip", dir, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i := 1; i < len(res.TrimmedSegments); i++ {
		if res.TrimmedSegments[i].Start < res.TrimmedSegments[i-1].End {
			t.Fatalf("output segments overlap: %+v", res.TrimmedSegments)
		}
	}
	if res.TrimmedSegments[0].End != 4.5 {
		t.Fatalf("first segment end = %v, want midpoint 4.5", res.TrimmedSegments[0].End)
	}
}

func TestAssemblerRejectsBadInput(t *testing.T) {
	vocals := sineTrack(t, 5, 8000)
	asm := New(DefaultOptions(), nil)

	if _, err := asm.Run(context.Background(), vocals, nil, params.Default(), "clip", t.TempDir(), nil); err == nil {
		t.Fatal("expected error for empty segment list")
	}
	bad := []segments.Segment{{Speaker: "SPEAKER_00", Start: 2, End: 99}}
	if _, err := asm.Run(context.Background(), vocals, bad, params.Default(), "clip", t.TempDir(), nil); err == nil {
		t.Fatal("expected error for out-of-bounds segment")
	}
}

func TestReportRoundTrip(t *testing.T) {
	segs := []segments.Segment{
		{Speaker: "SPEAKER_01", Start: 4, End: 6},
		{Speaker: "SPEAKER_00", Start: 1, End: 3},
		{Speaker: "SPEAKER_00", Start: 7, End: 9},
	}
	report := NewReport(params.Default(), segs, 10, 23.5, true)
	if report.Version != ReportVersion {
		t.Fatalf("version = %q", report.Version)
	}
	if len(report.Speakers) != 2 || report.Speakers[0].Label != "SPEAKER_00" {
		t.Fatalf("speakers not in first-appearance order: %+v", report.Speakers)
	}
	if report.Speakers[0].SegmentCount != 2 || report.Speakers[0].TotalDuration != 4 {
		t.Fatalf("unexpected stats for SPEAKER_00: %+v", report.Speakers[0])
	}
	if report.Segments[0].Speaker != "SPEAKER_00" || report.Segments[0].Start != 1 {
		t.Fatalf("segments not in start order: %+v", report.Segments)
	}
	if !report.FallbackUsed {
		t.Fatal("fallbackUsed not carried through")
	}

	path := filepath.Join(t.TempDir(), "separation_report.json")
	if err := report.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.SourceDuration != 10 || decoded.ProcessingSeconds != 23.5 {
		t.Fatalf("decoded durations drifted: %+v", decoded)
	}
	if decoded.Parameters.MinSegmentDuration != params.Default().MinSegmentDuration {
		t.Fatalf("decoded parameters drifted: %+v", decoded.Parameters)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	m := NewManifest()
	m.Add("vocals", Entry{Path: "/out/vocals.wav"})
	m.Add("speaker_00_seg_001", Entry{Path: "/out/speaker_00/a.wav", Start: 1, End: 3})

	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := m.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var decoded Manifest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	entry, ok := decoded.Lookup("speaker_00_seg_001")
	if !ok || entry.End != 3 {
		t.Fatalf("decoded manifest missing entry: %+v", decoded)
	}
	if names := decoded.Names(); len(names) != 2 || names[0] != "speaker_00_seg_001" {
		t.Fatalf("unexpected names: %v", names)
	}
}
