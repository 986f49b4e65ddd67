package autoaim

import (
	"testing"
	"time"
)

// TestNextIMUForFrameFreshnessBoundary checks the exact-equal-accepted,
// epsilon-over-rejected behavior of the 10ms IMU-to-frame pairing window.
func TestNextIMUForFrameFreshnessBoundary(t *testing.T) {
	l := &SerialLink{cfg: DefaultSerialConfig()}
	capture := time.Now()

	l.lastIMU = IMUSample{Timestamp: capture.Add(-l.cfg.IMUFreshness)}
	l.haveIMU = true
	if _, ok := l.NextIMUForFrame(capture); !ok {
		t.Error("expected a sample exactly at the freshness bound to be accepted")
	}

	l.lastIMU.Timestamp = capture.Add(-l.cfg.IMUFreshness - time.Microsecond)
	if _, ok := l.NextIMUForFrame(capture); ok {
		t.Error("expected a sample just past the freshness bound to be rejected")
	}

	// A sample stamped slightly after the capture is equally valid; the
	// window is symmetric.
	l.lastIMU.Timestamp = capture.Add(l.cfg.IMUFreshness / 2)
	if _, ok := l.NextIMUForFrame(capture); !ok {
		t.Error("expected a fresh future-stamped sample to be accepted")
	}
}

func TestNextIMUNoWaitEmptyLink(t *testing.T) {
	l := &SerialLink{cfg: DefaultSerialConfig()}
	if _, ok := l.NextIMUNoWait(); ok {
		t.Error("expected no sample before the reader has published one")
	}
}

func TestSerialModeMapsConfig(t *testing.T) {
	l := &SerialLink{cfg: SerialConfig{
		BaudRate: 460800,
		DataBits: 8,
		StopBits: 2,
		Parity:   "even",
	}}
	mode := l.mode()
	if mode.BaudRate != 460800 {
		t.Errorf("expected baud 460800, got %d", mode.BaudRate)
	}
	if mode.DataBits != 8 {
		t.Errorf("expected 8 data bits, got %d", mode.DataBits)
	}
}
