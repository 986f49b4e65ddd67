package autoaim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const fourccMJPEG = 0x47504A4D

// CameraConfig mirrors the TOML camera section: pixel format, ADC bit
// depth, trigger mode, exposure/gain/gamma, optional frame-rate cap, and
// sensor geometry.
type CameraConfig struct {
	DeviceID int

	PixelFormat string // "BayerRG8", "BayerGB8", "BGR8"
	ADCBitDepth int
	TriggerMode string

	ExposureAuto bool
	ExposureUs   float64
	GainAuto     bool
	Gain         float64
	GammaEnable  bool
	Gamma        float64

	FrameRateEnable bool
	FrameRate       float64

	Width, Height    int
	OffsetX, OffsetY int
}

// DefaultCameraConfig returns a BGR8, auto-exposure default configuration.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		DeviceID:     0,
		PixelFormat:  "BGR8",
		ADCBitDepth:  8,
		TriggerMode:  "off",
		ExposureAuto: true,
		GainAuto:     true,
		GammaEnable:  true,
		Gamma:        1.0,
		Width:        1280,
		Height:       1024,
	}
}

// FrameSource yields timestamped frames from the vendor camera SDK.
// GetFrame must return within its internal timeout rather than block
// indefinitely.
type FrameSource interface {
	GetFrame(ctx context.Context) (FrameSample, error)
	Close() error
}

// OpenCVFrameSource implements FrameSource over gocv.VideoCapture: V4L2
// backend, MJPEG FourCC, warm-up read to let the sensor settle before the
// first real frame. Frames stay in BGR, which is what the detector
// consumes.
type OpenCVFrameSource struct {
	mu      sync.Mutex
	webcam  *gocv.VideoCapture
	timeout time.Duration
}

// NewOpenCVFrameSource opens cfg.DeviceID with the given sensor geometry.
func NewOpenCVFrameSource(cfg CameraConfig) (*OpenCVFrameSource, error) {
	webcam, err := gocv.OpenVideoCaptureWithAPI(cfg.DeviceID, gocv.VideoCaptureV4L2)
	if err != nil {
		return nil, fmt.Errorf("camera: open device %d: %w", cfg.DeviceID, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("camera: device %d not found or unavailable", cfg.DeviceID)
	}

	webcam.Set(gocv.VideoCaptureFOURCC, fourccMJPEG)
	if cfg.Width > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.FrameRateEnable && cfg.FrameRate > 0 {
		webcam.Set(gocv.VideoCaptureFPS, cfg.FrameRate)
	}
	if !cfg.ExposureAuto && cfg.ExposureUs > 0 {
		webcam.Set(gocv.VideoCaptureExposure, cfg.ExposureUs)
	}
	if !cfg.GainAuto && cfg.Gain > 0 {
		webcam.Set(gocv.VideoCaptureGain, cfg.Gain)
	}
	if cfg.GammaEnable {
		webcam.Set(gocv.VideoCaptureGamma, cfg.Gamma)
	}

	warmup := gocv.NewMat()
	webcam.Read(&warmup)
	warmup.Close()

	return &OpenCVFrameSource{webcam: webcam, timeout: time.Second}, nil
}

// GetFrame reads one frame, enforcing the 1s internal timeout by racing
// the blocking Read against ctx and a local deadline.
func (c *OpenCVFrameSource) GetFrame(ctx context.Context) (FrameSample, error) {
	type result struct {
		mat gocv.Mat
		ok  bool
	}
	resCh := make(chan result, 1)

	c.mu.Lock()
	webcam := c.webcam
	c.mu.Unlock()
	if webcam == nil {
		return FrameSample{}, fmt.Errorf("camera: closed")
	}

	go func() {
		frame := gocv.NewMat()
		ok := webcam.Read(&frame)
		resCh <- result{mat: frame, ok: ok}
	}()

	timeout := time.NewTimer(c.timeout)
	defer timeout.Stop()

	select {
	case <-ctx.Done():
		return FrameSample{}, ctx.Err()
	case <-timeout.C:
		return FrameSample{}, fmt.Errorf("camera: get_frame timed out after %s", c.timeout)
	case res := <-resCh:
		captureTime := time.Now()
		if !res.ok || res.mat.Empty() {
			res.mat.Close()
			return FrameSample{}, fmt.Errorf("camera: failed to read frame")
		}
		return FrameSample{Image: res.mat, CaptureTime: captureTime}, nil
	}
}

// Close releases the underlying video capture device.
func (c *OpenCVFrameSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.webcam == nil {
		return nil
	}
	err := c.webcam.Close()
	c.webcam = nil
	return err
}
