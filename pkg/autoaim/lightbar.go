package autoaim

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// LightBarConfig thresholds a contour must clear to be accepted as a
// lightbar, and the two binarization thresholds used to build the contour
// mask.
type LightBarConfig struct {
	MinArea             float64
	MaxArea             float64
	MinSolidity         float64
	MinAspectRatio      float64
	MaxAspectRatio      float64
	MaxAngle            float64 // degrees
	BrightnessThreshold float64
	ColorThreshold      float64
}

// DefaultLightBarConfig returns thresholds tuned for LED lightbars under
// indoor arena lighting.
func DefaultLightBarConfig() LightBarConfig {
	return LightBarConfig{
		MinArea:             30.0,
		MaxArea:             5e4,
		MinSolidity:         0.5,
		MinAspectRatio:      1.5,
		MaxAspectRatio:      15,
		MaxAngle:            60.0,
		BrightnessThreshold: 60,
		ColorThreshold:      60,
	}
}

// NewLightBar builds a LightBar from a contour, fitting an ellipse and
// normalizing the angle into [-90, 90), swapping the long/short axis when
// the raw fit returns a horizontal major axis.
func NewLightBar(contour []image.Point) LightBar {
	pv := gocv.NewPointVectorFromPoints(contour)
	defer pv.Close()

	ellipse := gocv.FitEllipse(pv)
	shortAxis := float64(ellipse.Width)
	longAxis := float64(ellipse.Height)
	angle := ellipse.Angle

	ellipseArea := math.Pi * shortAxis * longAxis / 4
	contourArea := gocv.ContourArea(pv)
	solidity := 0.0
	if ellipseArea != 0 {
		solidity = contourArea / ellipseArea
	}

	for angle >= 90 {
		angle -= 180
	}
	for angle < -90 {
		angle += 180
	}
	if angle >= 45 {
		longAxis, shortAxis = shortAxis, longAxis
		angle -= 90
	}
	if angle <= -45 {
		longAxis, shortAxis = shortAxis, longAxis
		angle += 90
	}

	return LightBar{
		Ellipse:     ellipse,
		Contour:     contour,
		EllipseArea: ellipseArea,
		ContourArea: contourArea,
		Solidity:    solidity,
		LongAxis:    longAxis,
		ShortAxis:   shortAxis,
		Angle:       angle,
	}
}

// IsValid reports whether the lightbar clears every LightBarConfig
// threshold (area, solidity, aspect ratio, tilt).
func (l LightBar) IsValid(cfg LightBarConfig) bool {
	if l.ShortAxis == 0 {
		return false
	}
	aspectRatio := l.LongAxis / l.ShortAxis
	if l.EllipseArea < cfg.MinArea || l.EllipseArea > cfg.MaxArea {
		return false
	}
	if l.Solidity < cfg.MinSolidity {
		return false
	}
	if aspectRatio < cfg.MinAspectRatio || aspectRatio > cfg.MaxAspectRatio {
		return false
	}
	if math.Abs(l.Angle) > cfg.MaxAngle {
		return false
	}
	return true
}

// BoundingRect returns the lightbar ellipse's axis-aligned bounding box.
func (l LightBar) BoundingRect() image.Rectangle {
	return l.Ellipse.BoundingRect
}

// DetectLightBars extracts lightbars of the configured enemy color from a
// BGR frame: a brightness mask (grayscale threshold) ANDed with a color
// mask (difference of the enemy channel against the other, thresholded),
// dilated to bridge small gaps, then one candidate per external contour of
// at least 5 points (the minimum cv.FitEllipse needs).
func (d *Detector) DetectLightBars(bgr gocv.Mat) []LightBar {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	brightnessMask := gocv.NewMat()
	defer brightnessMask.Close()
	gocv.Threshold(gray, &brightnessMask, float32(d.lightBarConfig.BrightnessThreshold), 255, gocv.ThresholdBinary)

	channels := gocv.Split(bgr)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	blue, red := channels[0], channels[2]

	diff := gocv.NewMat()
	defer diff.Close()
	if d.enemyColor == ColorRed {
		gocv.Subtract(red, blue, &diff)
	} else {
		gocv.Subtract(blue, red, &diff)
	}

	colorMask := gocv.NewMat()
	defer colorMask.Close()
	gocv.Threshold(diff, &colorMask, float32(d.lightBarConfig.ColorThreshold), 255, gocv.ThresholdBinary)

	combined := gocv.NewMat()
	defer combined.Close()
	gocv.BitwiseAnd(brightnessMask, colorMask, &combined)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(3, 3))
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(combined, &dilated, kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var bars []LightBar
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if contour.Size() < 5 {
			continue
		}
		bar := NewLightBar(contour.ToPoints())
		if bar.IsValid(d.lightBarConfig) {
			bars = append(bars, bar)
		}
	}
	return bars
}
