package progress

import (
	"math"
	"testing"
	"time"
)

type captureSink struct {
	events []Event
}

func (c *captureSink) Publish(e Event) { c.events = append(c.events, e) }

func newTestTracker(sink Sink, trackSeconds float64) (*Tracker, *time.Time) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(sink, trackSeconds)
	tr.now = func() time.Time { return clock }
	tr.started = clock
	return tr, &clock
}

func TestStageWindowsMapToGlobalPercent(t *testing.T) {
	sink := &captureSink{}
	tr, clock := newTestTracker(sink, 60)
	*clock = clock.Add(time.Second)

	cases := []struct {
		stage    Stage
		fraction float64
		want     float64
	}{
		{StageSeparation, 0, 0},
		{StageSeparation, 0.5, 25},
		{StageSeparation, 1, 50},
		{StageDiarization, 0.5, 70},
		{StageDiarization, 1, 90},
		{StageAssembly, 0.5, 95},
		{StageAssembly, 1, 100},
	}
	for _, tc := range cases {
		e := tr.Update(tc.stage, tc.fraction, "")
		if math.Abs(e.Percent-tc.want) > 1e-9 {
			t.Fatalf("%s@%.2f: percent = %f, want %f", tc.stage, tc.fraction, e.Percent, tc.want)
		}
	}
}

func TestPercentIsMonotonic(t *testing.T) {
	sink := &captureSink{}
	tr, clock := newTestTracker(sink, 60)
	*clock = clock.Add(time.Second)

	tr.Update(StageSeparation, 0.8, "")
	e := tr.Update(StageSeparation, 0.3, "collaborator regressed")
	if e.Percent < 40 {
		t.Fatalf("percent regressed to %f after collaborator reported lower fraction", e.Percent)
	}
	last := -1.0
	for _, ev := range sink.events {
		if ev.Percent < last {
			t.Fatalf("event sequence not monotonic: %f after %f", ev.Percent, last)
		}
		last = ev.Percent
	}
}

func TestFractionIsClamped(t *testing.T) {
	tr, clock := newTestTracker(&captureSink{}, 60)
	*clock = clock.Add(time.Second)
	if e := tr.Update(StageSeparation, 1.7, ""); e.Percent != 50 {
		t.Fatalf("overshoot fraction should clamp to window end, got %f", e.Percent)
	}
	tr2, clock2 := newTestTracker(&captureSink{}, 60)
	*clock2 = clock2.Add(time.Second)
	if e := tr2.Update(StageSeparation, -0.2, ""); e.Percent != 0 {
		t.Fatalf("negative fraction should clamp to window start, got %f", e.Percent)
	}
}

func TestETAAndSpeedUnknownAtZeroProgress(t *testing.T) {
	tr, clock := newTestTracker(&captureSink{}, 60)
	*clock = clock.Add(time.Second)
	e := tr.Update(StageSeparation, 0, "starting")
	if e.KnownETA || e.KnownSpeed {
		t.Fatalf("ETA/speed must be unknown at zero progress: %+v", e)
	}
}

func TestSeedEstimateUsedBeforeProgress(t *testing.T) {
	tr, clock := newTestTracker(&captureSink{}, 60)
	*clock = clock.Add(time.Second)
	tr.SeedEstimate(90 * time.Second)
	e := tr.Update(StageSeparation, 0, "starting")
	if !e.KnownETA || e.ETA != 90*time.Second {
		t.Fatalf("seed estimate not applied: %+v", e)
	}
	if e.KnownSpeed {
		t.Fatal("speed ratio must stay unknown until measurable progress")
	}
}

func TestETAAndSpeedComputation(t *testing.T) {
	tr, clock := newTestTracker(&captureSink{}, 100)
	*clock = clock.Add(10 * time.Second)

	// Separation at 100% puts the run at 50% overall after 10s: 10 more
	// seconds remain and 50 audio-seconds were processed.
	e := tr.Update(StageSeparation, 1, "")
	if !e.KnownETA {
		t.Fatal("ETA should be known at 50% overall")
	}
	if math.Abs(e.ETA.Seconds()-10) > 0.01 {
		t.Fatalf("ETA = %v, want ~10s", e.ETA)
	}
	if !e.KnownSpeed || math.Abs(e.SpeedRatio-5) > 0.01 {
		t.Fatalf("speed ratio = %f, want ~5", e.SpeedRatio)
	}
}

func TestCompleteEndsAtExactlyHundred(t *testing.T) {
	sink := &captureSink{}
	tr, clock := newTestTracker(sink, 60)
	*clock = clock.Add(time.Second)
	tr.Update(StageSeparation, 1, "")
	tr.Update(StageDiarization, 1, "")
	e := tr.Complete("done")
	if e.Percent != 100 {
		t.Fatalf("terminal percent = %f, want exactly 100", e.Percent)
	}
}

func TestStageLabel(t *testing.T) {
	if got := StageSeparation.Label(); got != "Separation" {
		t.Fatalf("label = %q, want %q", got, "Separation")
	}
}
