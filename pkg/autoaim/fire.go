package autoaim

import (
	"math"
	"time"
)

// FireConfig carries the bullet physics and armor-cone constants the fire
// gate needs.
type FireConfig struct {
	BulletVelocity float64 // m/s

	// PatrolCooldown holds the gate in "engaged" (non-patrolling) mode for
	// this long after the last successful fire, even if the target is
	// briefly lost, so a single dropped frame doesn't flap the mode back
	// to patrolling and re-trigger a patrol sweep.
	PatrolCooldown time.Duration

	SmallArmorWidthM, SmallArmorHeightM float64
	LargeArmorWidthM, LargeArmorHeightM float64
}

// DefaultFireConfig carries the standard small/large plate dimensions.
// The forward-prediction time offset lives on TrackingConfig.FireTimeDelay,
// since it is the tracker, not the fire gate, that applies it.
func DefaultFireConfig() FireConfig {
	return FireConfig{
		BulletVelocity:    15.0,
		PatrolCooldown:    300 * time.Millisecond,
		SmallArmorWidthM:  SmallArmorWidthM,
		SmallArmorHeightM: SmallArmorHeightM,
		LargeArmorWidthM:  LargeArmorWidthM,
		LargeArmorHeightM: LargeArmorHeightM,
	}
}

// FireController packs the chosen target's prediction and the frame's raw
// detections into a FireCommand: the pitch/yaw aim point plus the found/
// fire/patrolling/done_fitting/updated flags.
type FireController struct {
	cfg FireConfig

	allowed      Labels
	updated      bool
	lastFireTime time.Time
}

// NewFireController creates a controller with no label currently allowed.
func NewFireController(cfg FireConfig) *FireController {
	return &FireController{cfg: cfg, allowed: LabelNone}
}

// SetAllowed sets the label the controller is currently permitted to
// engage.
func (f *FireController) SetAllowed(label Labels) {
	f.allowed = label
}

// armorHalfExtents returns the physical half-width/half-height for an
// armor size class, in meters.
func (f *FireController) armorHalfExtents(size ArmorSize) (halfW, halfH float64) {
	if size == ArmorLarge {
		return f.cfg.LargeArmorWidthM / 2, f.cfg.LargeArmorHeightM / 2
	}
	return f.cfg.SmallArmorWidthM / 2, f.cfg.SmallArmorHeightM / 2
}

// Pack builds the FireCommand for the chosen label's prediction, given
// the frame's raw Detection3D set, the current IMU attitude, and the
// tracker set (consulted only for the done_fitting flag).
func (f *FireController) Pack(chosen Labels, pred *PredictedPosition, detections []Detection3D, imu IMUSample, trackers *TrackerSet, now time.Time) FireCommand {
	found := f.checkFound(detections)
	fire := found && f.checkFire(chosen, pred, detections, imu)
	patrol := f.checkPatrol(found, fire, now)
	doneFitting := f.checkDoneFitting(chosen, trackers)

	cmd := FireCommand{
		Found:       found,
		Fire:        fire,
		Patrolling:  patrol,
		DoneFitting: doneFitting,
		HasUpdated:  f.updated,
	}
	if pred != nil {
		cmd.Pitch = float32(pred.Pitch)
		cmd.Yaw = float32(pred.Yaw)
	}

	f.updated = !f.updated
	if fire {
		f.lastFireTime = now
	}
	return cmd
}

// checkFound reports whether any Detection3D this frame carries the
// currently allowed label.
func (f *FireController) checkFound(detections []Detection3D) bool {
	for _, d := range detections {
		if d.Label == f.allowed {
			return true
		}
	}
	return false
}

// checkFire reports whether the prediction's angular offset from the
// current IMU attitude falls within the armor's subtended cone.
func (f *FireController) checkFire(chosen Labels, pred *PredictedPosition, detections []Detection3D, imu IMUSample) bool {
	if pred == nil || chosen == LabelNone {
		return false
	}

	var size ArmorSize
	found := false
	for _, d := range detections {
		if d.Label == chosen {
			size = d.ArmorSize
			found = true
			break
		}
	}
	if !found {
		return false
	}

	halfW, halfH := f.armorHalfExtents(size)
	d := pred.Distance
	if d <= 0 {
		return false
	}
	coneYaw := math.Atan(halfW / d)
	conePitch := math.Atan(halfH / d)

	relativeYaw := pred.Yaw - degToRad(imu.Yaw)
	relativePitch := pred.Pitch - degToRad(imu.Pitch)

	return math.Abs(relativePitch) < conePitch && math.Abs(relativeYaw) < coneYaw
}

// checkPatrol is true when no eligible target was found or engaged, unless
// a fire happened within the last PatrolCooldown: a single dropped frame
// right after a shot should not flap the turret back into patrol mode.
func (f *FireController) checkPatrol(found, fire bool, now time.Time) bool {
	if !found && !fire {
		if !f.lastFireTime.IsZero() && now.Sub(f.lastFireTime) < f.cfg.PatrolCooldown {
			return false
		}
		return true
	}
	return false
}

// checkDoneFitting is true only for Outpost once its tracker reaches
// Tracking: outposts rotate in place, so "done fitting" means the tracker
// has collected enough samples to trust the fitted rotation rather than
// merely having a detection this frame.
func (f *FireController) checkDoneFitting(chosen Labels, trackers *TrackerSet) bool {
	if chosen != LabelOutpost || trackers == nil {
		return false
	}
	t := trackers.Get(LabelOutpost)
	return t != nil && t.Status() == StatusTracking
}
