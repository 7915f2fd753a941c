package assemble

import (
	"encoding/json"
	"os"
	"path/filepath"

	"voxsplit/internal/params"
	"voxsplit/internal/segments"
	"voxsplit/internal/services"
)

// ReportVersion identifies the report schema. Bump on incompatible changes.
const ReportVersion = "1.0"

// ReportParameters is the serialized form of the parameter set a run used.
type ReportParameters struct {
	ClusteringThreshold float64 `json:"clusteringThreshold"`
	SegmentationOnset   float64 `json:"segmentationOnset"`
	SegmentationOffset  float64 `json:"segmentationOffset"`
	ForceNumSpeakers    int     `json:"forceNumSpeakers"`
	OverlapRemoval      bool    `json:"overlapRemoval"`
	AudioPreprocessing  bool    `json:"audioPreprocessing"`
	MinSegmentDuration  float64 `json:"minSegmentDuration"`
}

// ReportSpeaker summarizes one speaker's share of the run.
type ReportSpeaker struct {
	Label         string  `json:"label"`
	SegmentCount  int     `json:"segmentCount"`
	TotalDuration float64 `json:"totalDuration"`
}

// ReportSegment records one emitted segment interval.
type ReportSegment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Report is the machine-readable summary written alongside the run's audio
// artifacts.
type Report struct {
	Version           string           `json:"version"`
	Parameters        ReportParameters `json:"parameters"`
	Speakers          []ReportSpeaker  `json:"speakers"`
	Segments          []ReportSegment  `json:"segments"`
	SourceDuration    float64          `json:"sourceDuration"`
	ProcessingSeconds float64          `json:"processingSeconds"`
	FallbackUsed      bool             `json:"fallbackUsed"`
}

// NewReport assembles a report from the run's final segments. Speakers are
// listed in first-appearance order; segments in start order.
func NewReport(p params.Set, segs []segments.Segment, sourceDuration, processingSeconds float64, fallbackUsed bool) *Report {
	ordered := make([]segments.Segment, len(segs))
	copy(ordered, segs)
	segments.SortByStart(ordered)
	report := &Report{
		Version: ReportVersion,
		Parameters: ReportParameters{
			ClusteringThreshold: p.ClusteringThreshold,
			SegmentationOnset:   p.SegmentationOnset,
			SegmentationOffset:  p.SegmentationOffset,
			ForceNumSpeakers:    p.ForceNumSpeakers,
			OverlapRemoval:      p.OverlapRemoval,
			AudioPreprocessing:  p.AudioPreprocessing,
			MinSegmentDuration:  p.MinSegmentDuration,
		},
		Speakers:          make([]ReportSpeaker, 0),
		Segments:          make([]ReportSegment, 0, len(ordered)),
		SourceDuration:    sourceDuration,
		ProcessingSeconds: processingSeconds,
		FallbackUsed:      fallbackUsed,
	}
	for _, stats := range segments.Analyze(ordered) {
		report.Speakers = append(report.Speakers, ReportSpeaker{
			Label:         stats.Label,
			SegmentCount:  stats.SegmentCount,
			TotalDuration: stats.TotalDuration,
		})
	}
	for _, seg := range ordered {
		report.Segments = append(report.Segments, ReportSegment{
			Speaker: seg.Speaker,
			Start:   seg.Start,
			End:     seg.End,
		})
	}
	return report
}

// Write persists the report as indented JSON at path.
func (r *Report) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(services.ErrIO, "assembly", "write report", "failed to create report directory", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrIO, "assembly", "write report", "failed to encode report", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrIO, "assembly", "write report", "failed to write report file", err)
	}
	return nil
}
