package autoaim

import (
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

func axisAlignedBar(cx, cy, w, h int) LightBar {
	rect := gocv.RotatedRect{
		Center: image.Pt(cx, cy),
		Width:  w,
		Height: h,
		Angle:  0,
		BoundingRect: image.Rect(
			cx-w/2, cy-h/2, cx+w/2, cy+h/2,
		),
	}
	return LightBar{Ellipse: rect}
}

func TestRawArmorAngleLevelBars(t *testing.T) {
	left := axisAlignedBar(0, 10, 2, 20)
	right := axisAlignedBar(100, 10, 2, 20)
	if got := rawArmorAngle(left, right); math.Abs(got) > 1e-9 {
		t.Errorf("expected 0 degrees for level centers, got %f", got)
	}
}

func TestRawArmorAngleTiltedBars(t *testing.T) {
	left := axisAlignedBar(0, 0, 2, 20)
	right := axisAlignedBar(100, 100, 2, 20)
	want := 45.0
	if got := rawArmorAngle(left, right); math.Abs(got-want) > 1e-6 {
		t.Errorf("expected 45 degrees for a diagonal pair, got %f", got)
	}
}

func TestRawArmorAngleZeroDistanceIsZero(t *testing.T) {
	left := axisAlignedBar(5, 5, 2, 20)
	right := axisAlignedBar(5, 5, 2, 20)
	if got := rawArmorAngle(left, right); got != 0 {
		t.Errorf("expected 0 for coincident centers, got %f", got)
	}
}

func TestContainsAnotherLightBarDetectsInterference(t *testing.T) {
	left := axisAlignedBar(0, 0, 4, 20)
	right := axisAlignedBar(100, 0, 4, 20)
	interfering := axisAlignedBar(50, 0, 4, 20)

	bars := []LightBar{left, right, interfering}
	if !containsAnotherLightBar(left, right, bars) {
		t.Error("expected a third lightbar centered between the pair to be detected as interference")
	}
}

func TestContainsAnotherLightBarIgnoresThePairItself(t *testing.T) {
	left := axisAlignedBar(0, 0, 4, 20)
	right := axisAlignedBar(100, 0, 4, 20)

	bars := []LightBar{left, right}
	if containsAnotherLightBar(left, right, bars) {
		t.Error("expected no interference when only the pair itself is present")
	}
}

func TestContainsAnotherLightBarIgnoresOutsideBars(t *testing.T) {
	left := axisAlignedBar(0, 0, 4, 20)
	right := axisAlignedBar(100, 0, 4, 20)
	outside := axisAlignedBar(500, 500, 4, 20)

	bars := []LightBar{left, right, outside}
	if containsAnotherLightBar(left, right, bars) {
		t.Error("expected a far-away lightbar not to count as interference")
	}
}

func TestDefaultArmorConfigBigArmorRatio(t *testing.T) {
	cfg := DefaultArmorConfig()
	if cfg.BigArmorRatio <= cfg.MinAspectRatio {
		t.Errorf("expected BigArmorRatio (%f) to exceed MinAspectRatio (%f)", cfg.BigArmorRatio, cfg.MinAspectRatio)
	}
}
