package autoaim

import "testing"

func TestLowPassFilterFirstSampleSeeds(t *testing.T) {
	f := NewLowPassFilter(0.75)
	got := f.Filter(10.0)
	if got != 10.0 {
		t.Errorf("expected first sample to seed the filter unchanged, got %f", got)
	}
}

func TestLowPassFilterSmoothsTowardInput(t *testing.T) {
	f := NewLowPassFilter(0.5)
	f.Filter(0.0)
	got := f.Filter(10.0)
	want := 5.0
	if got != want {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestLowPassFilterReset(t *testing.T) {
	f := NewLowPassFilter(0.5)
	f.Filter(100.0)
	f.Reset()

	got := f.Filter(3.0)
	if got != 3.0 {
		t.Errorf("expected reseed to 3.0 after reset, got %f", got)
	}
}
