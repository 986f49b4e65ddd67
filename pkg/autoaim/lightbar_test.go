package autoaim

import "testing"

func validLightBar(cfg LightBarConfig) LightBar {
	return LightBar{
		EllipseArea: (cfg.MinArea + cfg.MaxArea) / 2,
		Solidity:    cfg.MinSolidity + 0.1,
		LongAxis:    cfg.MinAspectRatio + 1,
		ShortAxis:   1,
		Angle:       0,
	}
}

func TestLightBarIsValidAcceptsNominalBar(t *testing.T) {
	cfg := DefaultLightBarConfig()
	bar := validLightBar(cfg)
	if !bar.IsValid(cfg) {
		t.Error("expected a nominal lightbar to validate")
	}
}

func TestLightBarIsValidRejectsZeroShortAxis(t *testing.T) {
	cfg := DefaultLightBarConfig()
	bar := validLightBar(cfg)
	bar.ShortAxis = 0
	if bar.IsValid(cfg) {
		t.Error("expected a zero short axis to be rejected")
	}
}

func TestLightBarIsValidAreaBounds(t *testing.T) {
	cfg := DefaultLightBarConfig()

	tooSmall := validLightBar(cfg)
	tooSmall.EllipseArea = cfg.MinArea - 1
	if tooSmall.IsValid(cfg) {
		t.Error("expected area below MinArea to be rejected")
	}

	tooBig := validLightBar(cfg)
	tooBig.EllipseArea = cfg.MaxArea + 1
	if tooBig.IsValid(cfg) {
		t.Error("expected area above MaxArea to be rejected")
	}
}

func TestLightBarIsValidSolidityFloor(t *testing.T) {
	cfg := DefaultLightBarConfig()
	bar := validLightBar(cfg)
	bar.Solidity = cfg.MinSolidity - 0.01
	if bar.IsValid(cfg) {
		t.Error("expected solidity below MinSolidity to be rejected")
	}
}

func TestLightBarIsValidAspectRatioBounds(t *testing.T) {
	cfg := DefaultLightBarConfig()

	tooNarrow := validLightBar(cfg)
	tooNarrow.LongAxis = cfg.MinAspectRatio - 0.01 // aspect ratio == LongAxis/ShortAxis(=1)
	if tooNarrow.IsValid(cfg) {
		t.Error("expected aspect ratio below MinAspectRatio to be rejected")
	}

	tooWide := validLightBar(cfg)
	tooWide.LongAxis = cfg.MaxAspectRatio + 0.01
	if tooWide.IsValid(cfg) {
		t.Error("expected aspect ratio above MaxAspectRatio to be rejected")
	}
}

// TestLightBarIsValidAngleBoundary checks the exact-equal-accepted,
// epsilon-over-rejected boundary behavior at the tilt limit.
func TestLightBarIsValidAngleBoundary(t *testing.T) {
	cfg := DefaultLightBarConfig()

	atLimit := validLightBar(cfg)
	atLimit.Angle = cfg.MaxAngle
	if !atLimit.IsValid(cfg) {
		t.Error("expected angle exactly at MaxAngle to be accepted")
	}

	atNegativeLimit := validLightBar(cfg)
	atNegativeLimit.Angle = -cfg.MaxAngle
	if !atNegativeLimit.IsValid(cfg) {
		t.Error("expected angle exactly at -MaxAngle to be accepted")
	}

	overLimit := validLightBar(cfg)
	overLimit.Angle = cfg.MaxAngle + 1e-9
	if overLimit.IsValid(cfg) {
		t.Error("expected angle just over MaxAngle to be rejected")
	}
}
