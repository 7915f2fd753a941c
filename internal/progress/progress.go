// Package progress implements the stage-weighted progress model for a
// pipeline run: global percent mapped through fixed stage windows, forced
// monotonic, with ETA and processing-speed estimates recomputed on every
// event. The tracker knows nothing about audio content.
package progress

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage identifies a pipeline stage in the weight table.
type Stage string

const (
	StageSeparation  Stage = "separation"
	StageDiarization Stage = "diarization"
	StageAssembly    Stage = "assembly"
)

var titleCaser = cases.Title(language.English)

// Label returns the human-readable stage name used in progress messages.
func (s Stage) Label() string {
	return titleCaser.String(strings.TrimSpace(string(s)))
}

type window struct {
	start float64
	end   float64
}

// Stage weight table: separation fills the first half of the bar, diarization
// most of the rest, assembly the tail.
var windows = map[Stage]window{
	StageSeparation:  {0, 50},
	StageDiarization: {50, 90},
	StageAssembly:    {90, 100},
}

// Event is one progress observation published to the sink.
type Event struct {
	Stage   Stage
	Percent float64
	Message string
	// ETA is the estimated remaining wall time. Valid only when KnownETA.
	ETA      time.Duration
	KnownETA bool
	// SpeedRatio is processed audio seconds per elapsed wall second. Valid
	// only when KnownSpeed.
	SpeedRatio float64
	KnownSpeed bool
	Elapsed    time.Duration
}

// Sink receives progress events. Implementations must be cheap: events are
// published synchronously on the pipeline's executing goroutine.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Publish calls the function.
func (f SinkFunc) Publish(e Event) { f(e) }

// NopSink discards events.
type NopSink struct{}

// Publish discards the event.
func (NopSink) Publish(Event) {}

// Tracker converts per-stage fractional progress into the global, monotonic
// percent sequence for one run.
type Tracker struct {
	sink         Sink
	trackSeconds float64
	started      time.Time
	lastPercent  float64
	seedEstimate time.Duration
	now          func() time.Time
}

// NewTracker constructs a tracker for a run over trackSeconds of audio.
func NewTracker(sink Sink, trackSeconds float64) *Tracker {
	if sink == nil {
		sink = NopSink{}
	}
	t := &Tracker{sink: sink, trackSeconds: trackSeconds, now: time.Now}
	t.started = t.now()
	return t
}

// SeedEstimate supplies a duration-based wall-time estimate used as the ETA
// before the first measurable progress arrives.
func (t *Tracker) SeedEstimate(estimate time.Duration) {
	if estimate > 0 {
		t.seedEstimate = estimate
	}
}

// Update records fractional progress (0.0-1.0) for a stage and publishes the
// resulting global event. The published percent never decreases, even when a
// collaborator reports a lower fraction than previously observed.
func (t *Tracker) Update(stage Stage, fraction float64, message string) Event {
	w, ok := windows[stage]
	if !ok {
		w = window{0, 100}
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	percent := w.start + fraction*(w.end-w.start)
	if percent < t.lastPercent {
		percent = t.lastPercent
	}
	if percent > 100 {
		percent = 100
	}
	t.lastPercent = percent

	elapsed := t.now().Sub(t.started)
	event := Event{
		Stage:   stage,
		Percent: percent,
		Message: message,
		Elapsed: elapsed,
	}

	overall := percent / 100
	if overall > 0 && elapsed > 0 {
		remaining := float64(elapsed) / overall * (1 - overall)
		event.ETA = time.Duration(remaining)
		event.KnownETA = true
		if t.trackSeconds > 0 {
			event.SpeedRatio = (t.trackSeconds * overall) / elapsed.Seconds()
			event.KnownSpeed = true
		}
	} else if t.seedEstimate > 0 {
		event.ETA = t.seedEstimate
		event.KnownETA = true
	}

	t.sink.Publish(event)
	return event
}

// Complete publishes the terminal 100% event for the final stage.
func (t *Tracker) Complete(message string) Event {
	return t.Update(StageAssembly, 1, message)
}

// Percent returns the last published global percent.
func (t *Tracker) Percent() float64 { return t.lastPercent }
