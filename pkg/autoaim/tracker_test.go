package autoaim

import (
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"
)

func testTrackingConfig() TrackingConfig {
	cfg := DefaultTrackingConfig()
	cfg.FitSamples = 5
	cfg.TemporaryLostTimeout = 50 * time.Millisecond
	cfg.LostTimeout = 150 * time.Millisecond
	return cfg
}

func detAt(x, y, z float64) Detection3D {
	var d Detection3D
	d.Center3D = mat.NewVecDense(3, []float64{x, y, z})
	d.Direction = 0
	d.PitchToBarrel = 0
	d.BulletTimeOfFlight = 0.1
	return d
}

func TestTrackerStartsLost(t *testing.T) {
	tr := NewTracker(LabelHero, testTrackingConfig())
	if tr.Status() != StatusLost {
		t.Errorf("expected new tracker to start Lost, got %s", tr.Status())
	}
}

func TestTrackerFirstUpdateEntersFitting(t *testing.T) {
	tr := NewTracker(LabelHero, testTrackingConfig())
	tr.Update(detAt(1, 0, 3), time.Now())
	if tr.Status() != StatusFitting {
		t.Errorf("expected Fitting after first update from Lost, got %s", tr.Status())
	}
}

func TestTrackerReachesTrackingAfterFitSamples(t *testing.T) {
	cfg := testTrackingConfig()
	tr := NewTracker(LabelHero, cfg)
	now := time.Now()
	for i := 0; i < cfg.FitSamples; i++ {
		now = now.Add(10 * time.Millisecond)
		tr.Update(detAt(1, 0, 3), now)
	}
	if tr.Status() != StatusTracking {
		t.Errorf("expected Tracking after %d updates, got %s", cfg.FitSamples, tr.Status())
	}
}

// TestTrackerLostRecovery: five updates bring a tracker to Tracking, then
// starving it past LostTimeout demotes it to Lost, and the first
// post-lost update starts a fresh fit (never immediately Tracking).
func TestTrackerLostRecovery(t *testing.T) {
	cfg := testTrackingConfig()
	tr := NewTracker(LabelHero, cfg)
	now := time.Now()
	for i := 0; i < cfg.FitSamples; i++ {
		now = now.Add(10 * time.Millisecond)
		tr.Update(detAt(1, 0, 3), now)
	}
	if tr.Status() != StatusTracking {
		t.Fatalf("expected Tracking before starving, got %s", tr.Status())
	}

	now = now.Add(cfg.LostTimeout + 10*time.Millisecond)
	tr.CheckStatus(now)
	if tr.Status() != StatusLost {
		t.Fatalf("expected Lost after starving past LostTimeout, got %s", tr.Status())
	}

	now = now.Add(10 * time.Millisecond)
	tr.Update(detAt(1, 0, 3), now)
	if tr.Status() != StatusFitting {
		t.Errorf("expected first post-lost update to restart Fitting, got %s", tr.Status())
	}
}

func TestTrackerCheckStatusDemotesToTemporaryLost(t *testing.T) {
	cfg := testTrackingConfig()
	tr := NewTracker(LabelHero, cfg)
	now := time.Now()
	for i := 0; i < cfg.FitSamples; i++ {
		now = now.Add(10 * time.Millisecond)
		tr.Update(detAt(1, 0, 3), now)
	}

	now = now.Add(cfg.TemporaryLostTimeout + 5*time.Millisecond)
	tr.CheckStatus(now)
	if tr.Status() != StatusTemporaryLost {
		t.Errorf("expected TemporaryLost after exceeding TemporaryLostTimeout, got %s", tr.Status())
	}
}

func TestTrackerSetGetUnknownLabelReturnsNil(t *testing.T) {
	ts := NewTrackerSet(testTrackingConfig())
	if ts.Get(LabelNone) != nil {
		t.Error("expected Get(LabelNone) to return nil")
	}
}

func TestTrackerSetHasOneTrackerPerLabel(t *testing.T) {
	ts := NewTrackerSet(testTrackingConfig())
	for _, label := range AllLabels {
		if ts.Get(label) == nil {
			t.Errorf("expected a tracker for %s", label)
		}
	}
}

func TestClampSpeed(t *testing.T) {
	if got := clampSpeed(10, 6); got != 6 {
		t.Errorf("expected clamp to 6, got %f", got)
	}
	if got := clampSpeed(-10, 6); got != -6 {
		t.Errorf("expected clamp to -6, got %f", got)
	}
	if got := clampSpeed(3, 6); got != 3 {
		t.Errorf("expected unclamped 3, got %f", got)
	}
}
