// Package autoaim implements the real-time perception-to-fire-control
// pipeline for a RoboMaster turret: time-synchronized capture, armor
// detection and digit classification, pose conversion into the barrel
// frame, per-target tracking, target selection, and fire-command emission.
package autoaim

import (
	"image"
	"time"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// Labels is the closed enum of armor digits the detector can classify and
// the tracker can hold state for. The numeric mapping is fixed and
// observable on the wire protocol.
type Labels int

const (
	LabelNone Labels = iota
	LabelHero
	LabelEngineer
	LabelInfantry3
	LabelInfantry4
	LabelInfantry5
	LabelSentry
	LabelOutpost
	LabelBase
)

func (l Labels) String() string {
	switch l {
	case LabelNone:
		return "none"
	case LabelHero:
		return "hero"
	case LabelEngineer:
		return "engineer"
	case LabelInfantry3:
		return "infantry3"
	case LabelInfantry4:
		return "infantry4"
	case LabelInfantry5:
		return "infantry5"
	case LabelSentry:
		return "sentry"
	case LabelOutpost:
		return "outpost"
	case LabelBase:
		return "base"
	default:
		return "unknown"
	}
}

// AllLabels lists every engageable label (excludes LabelNone). A tracker
// exists for each of these for the lifetime of the process.
var AllLabels = []Labels{
	LabelHero, LabelEngineer, LabelInfantry3, LabelInfantry4,
	LabelInfantry5, LabelSentry, LabelOutpost, LabelBase,
}

// ShootDecision is the eight-bit field from the micro-controller selecting
// which enemy classes the vision system may currently engage. Bit i (0
// indexed) corresponds to Labels value i+1.
type ShootDecision uint8

// Allows reports whether the bitmask permits engaging label.
func (s ShootDecision) Allows(label Labels) bool {
	if label == LabelNone || int(label) > 8 {
		return false
	}
	return s&(1<<uint(label-1)) != 0
}

// ArmorSize is the physical size class of an armor plate.
type ArmorSize int

const (
	ArmorSmall ArmorSize = iota
	ArmorLarge
)

func (a ArmorSize) String() string {
	if a == ArmorLarge {
		return "large"
	}
	return "small"
}

// EnemyColor is the configured color of enemy lightbars, fixed for the
// process lifetime and passed as immutable configuration into the
// components that need it.
type EnemyColor int

const (
	ColorRed EnemyColor = iota
	ColorBlue
)

// FrameSample is a single camera capture: the decoded image and the
// monotonic timestamp assigned at SDK buffer acquire.
type FrameSample struct {
	Image       gocv.Mat
	CaptureTime time.Time
}

// IMUSample is a single stamped attitude reading from the micro-controller
// link.
type IMUSample struct {
	Roll, Pitch, Yaw float64 // degrees
	ShootDecision    ShootDecision
	AllyColor        byte
	AimMode          byte
	RemainingHP      uint8
	Timestamp        time.Time
}

// AnnotatedFrame is the S1 output: an image paired with the IMU sample
// closest in time to its capture.
type AnnotatedFrame struct {
	Image       gocv.Mat
	IMU         IMUSample
	CaptureTime time.Time
}

// LightBar is the plain-record geometry of one accepted lightbar: a value
// carrying an ellipse plus derived geometry.
type LightBar struct {
	Ellipse     gocv.RotatedRect
	Contour     []image.Point
	EllipseArea float64
	ContourArea float64
	Solidity    float64
	LongAxis    float64
	ShortAxis   float64
	Angle       float64 // degrees, normalized to [-90, 90)
}

// Center returns the lightbar's ellipse center.
func (l LightBar) Center() gocv.Point2f {
	return gocv.Point2f{X: float32(l.Ellipse.Center.X), Y: float32(l.Ellipse.Center.Y)}
}

// Detection2D is one paired, classified armor plate in image space.
type Detection2D struct {
	LeftLightBar, RightLightBar LightBar
	Vertices                    [4]gocv.Point2f // TL, TR, BR, BL
	Center                      gocv.Point2f
	ArmorSize                   ArmorSize
	Label                       Labels
	Confidence                  float32
	IMUAtCapture                IMUSample
	CaptureTime                 time.Time
}

// Detection3D extends Detection2D with the barrel-frame pose recovered by
// S3's pose-conversion chain.
type Detection3D struct {
	Detection2D

	Rvec, Tvec *mat.VecDense // camera frame, meters/radians

	Center3D                   *mat.VecDense // barrel frame
	Distance                   float64
	Direction                  float64 // yaw of armor face about vertical, radians
	PitchToBarrel, YawToBarrel float64 // radians
	BulletTimeOfFlight         float64 // seconds
}

// TrackingStatus is the tracker's fitting/tracking/lost state machine.
type TrackingStatus int

const (
	StatusFitting TrackingStatus = iota
	StatusTracking
	StatusTemporaryLost
	StatusLost
)

func (s TrackingStatus) String() string {
	switch s {
	case StatusFitting:
		return "fitting"
	case StatusTracking:
		return "tracking"
	case StatusTemporaryLost:
		return "temporary_lost"
	case StatusLost:
		return "lost"
	default:
		return "unknown"
	}
}

// PredictedPosition is the tracker's output: the posterior state predicted
// forward by bullet time-of-flight, ready for the fire controller.
type PredictedPosition struct {
	Label     Labels
	X, Y, Z   float64
	Direction float64
	Pitch     float64
	Yaw       float64 // atan2(y,x), low-pass filtered
	Distance  float64
}

// FireCommand is the S4 output sent to the attitude/command link.
type FireCommand struct {
	Pitch, Yaw                                       float32
	Found, Fire, Patrolling, DoneFitting, HasUpdated bool
}
