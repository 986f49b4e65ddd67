package autoaim

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
)

// TrackingConfig configures every per-label tracker: the Kalman filter's
// process/measurement noise and time step, the finite-difference velocity
// clamp, the yaw low-pass coefficient, the fitting duration before a
// target is trusted, and the two status-watchdog timeouts.
type TrackingConfig struct {
	Dt               float64
	ProcessNoise     float64
	MeasurementNoise float64
	MaxSpeed         float64 // m/s, clamps finite-differenced velocity observations
	LowPassAlpha     float64

	FitSamples           int // consecutive updates required to leave Fitting
	TemporaryLostTimeout time.Duration
	LostTimeout          time.Duration

	FireTimeDelay float64 // seconds, added to bullet_time_of_flight before forward-predicting
}

// DefaultTrackingConfig returns reasonable defaults for an indoor RoboMaster
// arena target (distances in meters, speeds in m/s).
func DefaultTrackingConfig() TrackingConfig {
	return TrackingConfig{
		Dt:                   1.0 / 60.0,
		ProcessNoise:         0.01,
		MeasurementNoise:     0.05,
		MaxSpeed:             6.0,
		LowPassAlpha:         0.75,
		FitSamples:           5,
		TemporaryLostTimeout: 200 * time.Millisecond,
		LostTimeout:          1 * time.Second,
		FireTimeDelay:        0.02,
	}
}

// Tracker holds the constant-velocity Kalman filter and state machine for
// one armor label. One Tracker exists per AllLabels entry for the process
// lifetime; it must only be touched from the S4 goroutine and the status
// watchdog, which serialize via mu.
type Tracker struct {
	mu sync.Mutex

	label   Labels
	cfg     TrackingConfig
	kf      *KalmanFilter
	lowPass *LowPassFilter

	status        TrackingStatus
	fitCount      int
	lastTrackTime time.Time
	prevCenter3D  *mat.VecDense
	havePrev      bool
}

// NewTracker creates a tracker for label in the Lost state; the first
// detection promotes it to Fitting.
func NewTracker(label Labels, cfg TrackingConfig) *Tracker {
	return &Tracker{
		label:   label,
		cfg:     cfg,
		kf:      NewKalmanFilter(cfg.Dt, cfg.ProcessNoise, cfg.MeasurementNoise),
		lowPass: NewLowPassFilter(cfg.LowPassAlpha),
		status:  StatusLost,
	}
}

// Status returns the tracker's current state.
func (t *Tracker) Status() TrackingStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Update folds a new barrel-frame detection into the filter and returns
// the bullet-time-of-flight-compensated predicted aim point.
func (t *Tracker) Update(det Detection3D, now time.Time) PredictedPosition {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status == StatusLost {
		t.status = StatusFitting
		t.fitCount = 0
		t.kf = NewKalmanFilter(t.cfg.Dt, t.cfg.ProcessNoise, t.cfg.MeasurementNoise)
	}

	vx, vy, vz := 0.0, 0.0, 0.0
	if t.havePrev && !t.lastTrackTime.IsZero() {
		duration := now.Sub(t.lastTrackTime).Seconds()
		if duration > 0 {
			vx = clampSpeed((det.Center3D.AtVec(0)-t.prevCenter3D.AtVec(0))/duration, t.cfg.MaxSpeed)
			vy = clampSpeed((det.Center3D.AtVec(1)-t.prevCenter3D.AtVec(1))/duration, t.cfg.MaxSpeed)
			vz = clampSpeed((det.Center3D.AtVec(2)-t.prevCenter3D.AtVec(2))/duration, t.cfg.MaxSpeed)
		}
	}

	observation := mat.NewVecDense(observeDim, []float64{
		det.Center3D.AtVec(0), det.Center3D.AtVec(1), det.Center3D.AtVec(2),
		vx, vy, vz,
		det.Direction, det.PitchToBarrel,
	})

	t.kf.Predict()
	estimate := t.kf.Correct(observation)

	t.prevCenter3D = mat.NewVecDense(3, []float64{det.Center3D.AtVec(0), det.Center3D.AtVec(1), det.Center3D.AtVec(2)})
	t.lastTrackTime = now
	t.havePrev = true

	if t.status == StatusFitting {
		t.fitCount++
		if t.fitCount >= t.cfg.FitSamples {
			t.status = StatusTracking
		}
	} else if t.status == StatusTemporaryLost {
		t.status = StatusTracking
	}

	return t.predict(estimate, det)
}

func (t *Tracker) predict(estimate *mat.VecDense, det Detection3D) PredictedPosition {
	tFly := det.BulletTimeOfFlight + t.cfg.FireTimeDelay

	x := estimate.AtVec(idxX) + estimate.AtVec(idxVX)*tFly
	y := estimate.AtVec(idxY) + estimate.AtVec(idxVY)*tFly
	z := estimate.AtVec(idxZ) + estimate.AtVec(idxVZ)*tFly
	direction := estimate.AtVec(idxDirection) + estimate.AtVec(idxVDirection)*tFly
	pitch := estimate.AtVec(idxPitch) + estimate.AtVec(idxVPitch)*tFly

	yaw := math.Atan2(y, x)
	yaw = t.lowPass.Filter(yaw)

	return PredictedPosition{
		Label:     t.label,
		X:         x,
		Y:         y,
		Z:         z,
		Direction: direction,
		Pitch:     pitch,
		Yaw:       yaw,
		Distance:  math.Sqrt(x*x + y*y + z*z),
	}
}

// CheckStatus demotes a tracker whose last update is older than the
// configured timeouts: Tracking -> TemporaryLost after
// TemporaryLostTimeout, anything (except Lost) -> Lost after LostTimeout.
// Run periodically by the tracker-status watchdog goroutine.
func (t *Tracker) CheckStatus(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status == StatusLost || t.lastTrackTime.IsZero() {
		return
	}

	elapsed := now.Sub(t.lastTrackTime)
	if elapsed > t.cfg.LostTimeout {
		t.status = StatusLost
		t.havePrev = false
		return
	}
	if elapsed > t.cfg.TemporaryLostTimeout && t.status == StatusTracking {
		t.status = StatusTemporaryLost
	}
}

func clampSpeed(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < -max {
		return -max
	}
	return v
}

// TrackerSet owns one Tracker per engageable label and the watchdog loop
// that demotes stale trackers.
type TrackerSet struct {
	trackers map[Labels]*Tracker
}

// NewTrackerSet creates a tracker for every label in AllLabels.
func NewTrackerSet(cfg TrackingConfig) *TrackerSet {
	ts := &TrackerSet{trackers: make(map[Labels]*Tracker, len(AllLabels))}
	for _, label := range AllLabels {
		ts.trackers[label] = NewTracker(label, cfg)
	}
	return ts
}

// Get returns the tracker for label, or nil if label is not engageable.
func (ts *TrackerSet) Get(label Labels) *Tracker {
	return ts.trackers[label]
}

// CheckAll runs the status watchdog over every tracker.
func (ts *TrackerSet) CheckAll(now time.Time) {
	for _, t := range ts.trackers {
		t.CheckStatus(now)
	}
}

// Watch runs CheckAll on interval until done is closed. Intended to run
// as the tracker-status watchdog goroutine.
func (ts *TrackerSet) Watch(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			ts.CheckAll(now)
		}
	}
}
