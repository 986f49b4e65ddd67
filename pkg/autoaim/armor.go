package autoaim

import (
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"
)

// ArmorConfig thresholds a lightbar pair must clear to be accepted as an
// armor plate.
type ArmorConfig struct {
	BinaryThreshold float64 // grayscale preprocessing threshold, unused by the dual-mask detector path

	LightBarAreaRatio          float64
	MinArea                    float64
	MaxLightBarArmorAreaRatio  float64
	MaxRollAngle               float64 // degrees
	MaxHeightDiffRatio         float64
	MaxYDiffRatio              float64
	MinXDiffRatio              float64
	MinAspectRatio             float64
	MaxAspectRatio             float64
	MaxAngleDiff               float64 // degrees
	BigArmorRatio              float64
}

// DefaultArmorConfig returns pairing thresholds tuned against standard
// plates at typical engagement distances.
func DefaultArmorConfig() ArmorConfig {
	return ArmorConfig{
		BinaryThreshold:           120,
		LightBarAreaRatio:         2.0,
		MinArea:                   400,
		MaxLightBarArmorAreaRatio: 0.8,
		MaxRollAngle:              35,
		MaxHeightDiffRatio:        0.3,
		MaxYDiffRatio:             0.5,
		MinXDiffRatio:             0.6,
		MinAspectRatio:            1.0,
		MaxAspectRatio:            5.0,
		MaxAngleDiff:              15,
		BigArmorRatio:             3.2,
	}
}

// boxPoints returns a RotatedRect's four corner points, mirroring
// cv::RotatedRect::points via gocv.BoxPoints.
func boxPoints(rect gocv.RotatedRect) [4]gocv.Point2f {
	m := gocv.NewMat()
	defer m.Close()
	gocv.BoxPoints(rect, &m)

	var pts [4]gocv.Point2f
	for i := 0; i < 4 && i < m.Rows(); i++ {
		pts[i] = gocv.Point2f{X: m.GetFloatAt(i, 0), Y: m.GetFloatAt(i, 1)}
	}
	return pts
}

// rearrangeVertices rebuilds the four RotatedRect corner points of each
// lightbar into [topLeft, topRight, bottomRight, bottomLeft] armor
// vertices, averaging the two top corners and the two bottom corners of
// each lightbar.
func rearrangeVertices(left, right [4]gocv.Point2f) [4]gocv.Point2f {
	sortByY := func(pts []gocv.Point2f) {
		sort.Slice(pts, func(i, j int) bool { return pts[i].Y < pts[j].Y })
	}
	l := append([]gocv.Point2f{}, left[:]...)
	r := append([]gocv.Point2f{}, right[:]...)
	sortByY(l)
	sortByY(r)

	midpoint := func(a, b gocv.Point2f) gocv.Point2f {
		return gocv.Point2f{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	}

	tmp := []gocv.Point2f{
		midpoint(l[0], l[1]),
		midpoint(r[0], r[1]),
		midpoint(r[2], r[3]),
		midpoint(l[2], l[3]),
	}
	sort.Slice(tmp, func(i, j int) bool { return tmp[i].X < tmp[j].X })

	var out [4]gocv.Point2f
	if tmp[0].Y < tmp[1].Y {
		out[0], out[3] = tmp[0], tmp[1]
	} else {
		out[0], out[3] = tmp[1], tmp[0]
	}
	if tmp[2].Y < tmp[3].Y {
		out[1], out[2] = tmp[2], tmp[3]
	} else {
		out[1], out[2] = tmp[3], tmp[2]
	}
	return out
}

// rawArmorAngle returns the roll angle (degrees) between two lightbar
// centers.
func rawArmorAngle(left, right LightBar) float64 {
	lc, rc := left.Center(), right.Center()
	dx, dy := float64(rc.X-lc.X), float64(rc.Y-lc.Y)
	distance := math.Hypot(dx, dy)
	if distance == 0 {
		return 0
	}
	return math.Asin(math.Abs(float64(lc.Y-rc.Y))/distance) * 180.0 / math.Pi
}

// buildArmor constructs a candidate Detection2D from a lightbar pair,
// without yet classifying it or checking validity.
func buildArmor(left, right LightBar) Detection2D {
	vertices := rearrangeVertices(boxPoints(left.Ellipse), boxPoints(right.Ellipse))
	center := gocv.Point2f{
		X: (vertices[0].X + vertices[1].X + vertices[2].X + vertices[3].X) / 4,
		Y: (vertices[0].Y + vertices[1].Y + vertices[2].Y + vertices[3].Y) / 4,
	}
	return Detection2D{
		LeftLightBar:  left,
		RightLightBar: right,
		Vertices:      vertices,
		Center:        center,
	}
}

// minRectArea is the area of the minimum-area bounding rect of the armor's
// four vertices, used for the armor-area and lightbar-area-ratio checks.
func minRectArea(vertices [4]gocv.Point2f) float64 {
	pts := make([]image.Point, 4)
	for i, v := range vertices {
		pts[i] = image.Pt(int(v.X), int(v.Y))
	}
	pv := gocv.NewPointVectorFromPoints(pts)
	defer pv.Close()
	rect := gocv.MinAreaRect(pv)
	return float64(rect.Width) * float64(rect.Height)
}

// isValidArmorPair runs every pairing reject rule in order, returning the
// armor size classification on success.
func isValidArmorPair(left, right LightBar, cfg ArmorConfig) (ArmorSize, bool) {
	if left.BoundingRect().Max.Y < right.BoundingRect().Min.Y {
		return 0, false
	}
	if right.BoundingRect().Max.Y < left.BoundingRect().Min.Y {
		return 0, false
	}

	areaRatio := left.EllipseArea / right.EllipseArea
	if areaRatio > cfg.LightBarAreaRatio || areaRatio < 1.0/cfg.LightBarAreaRatio {
		return 0, false
	}

	vertices := rearrangeVertices(boxPoints(left.Ellipse), boxPoints(right.Ellipse))
	armorArea := minRectArea(vertices)
	if armorArea < cfg.MinArea {
		return 0, false
	}

	lightBarAreaOverArmorArea := (left.EllipseArea + right.EllipseArea) / armorArea
	if lightBarAreaOverArmorArea > cfg.MaxLightBarArmorAreaRatio {
		return 0, false
	}

	angle := rawArmorAngle(left, right)
	if math.Abs(angle) > cfg.MaxRollAngle {
		return 0, false
	}

	meanLength := (left.LongAxis + right.LongAxis) / 2.0
	heightDiffRatio := math.Abs(left.LongAxis-right.LongAxis) / math.Max(left.LongAxis, right.LongAxis)
	if heightDiffRatio > cfg.MaxHeightDiffRatio {
		return 0, false
	}

	lc, rc := left.Center(), right.Center()
	yDiffRatio := math.Abs(float64(lc.Y-rc.Y)) / meanLength
	if yDiffRatio > cfg.MaxYDiffRatio {
		return 0, false
	}

	centerDistance := math.Hypot(float64(rc.X-lc.X), float64(rc.Y-lc.Y))
	xDiffRatio := centerDistance / meanLength
	if xDiffRatio < cfg.MinXDiffRatio {
		return 0, false
	}

	aspectRatio := centerDistance / meanLength
	if aspectRatio < cfg.MinAspectRatio || aspectRatio > cfg.MaxAspectRatio {
		return 0, false
	}

	// Both angles live in [-90, 90), so the diff folds about 180: a pair at
	// +89 and -89 is 2 degrees apart, not 178.
	angleDiff := math.Abs(left.Angle - right.Angle)
	if angleDiff > 170 {
		angleDiff = 180 - angleDiff
	}
	if angleDiff > cfg.MaxAngleDiff {
		return 0, false
	}

	if aspectRatio > cfg.BigArmorRatio {
		return ArmorLarge, true
	}
	return ArmorSmall, true
}

// MatchLightBars sorts the accepted lightbars by center x and enumerates
// every ordered pair (L, R) with L left of R, rejects pairs containing a
// third interfering lightbar, and keeps the ones that pass
// isValidArmorPair.
func (d *Detector) MatchLightBars(bars []LightBar) []Detection2D {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Ellipse.Center.X < bars[j].Ellipse.Center.X
	})

	var armors []Detection2D
	for i := 0; i < len(bars); i++ {
		for j := i + 1; j < len(bars); j++ {
			left, right := bars[i], bars[j]
			if containsAnotherLightBar(left, right, bars) {
				continue
			}
			size, ok := isValidArmorPair(left, right, d.armorConfig)
			if !ok {
				continue
			}
			armor := buildArmor(left, right)
			armor.ArmorSize = size
			armors = append(armors, armor)
		}
	}
	return armors
}

// containsAnotherLightBar rejects a candidate pair if a third lightbar's
// center falls inside the bounding box spanned by the pair: an
// interfering lightbar forbids pairing.
func containsAnotherLightBar(left, right LightBar, bars []LightBar) bool {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	consider := func(p gocv.Point2f) {
		minX, maxX = math.Min(minX, float64(p.X)), math.Max(maxX, float64(p.X))
		minY, maxY = math.Min(minY, float64(p.Y)), math.Max(maxY, float64(p.Y))
	}
	for _, pt := range boxPoints(left.Ellipse) {
		consider(pt)
	}
	for _, pt := range boxPoints(right.Ellipse) {
		consider(pt)
	}

	inside := func(p gocv.Point2f) bool {
		return float64(p.X) >= minX && float64(p.X) <= maxX && float64(p.Y) >= minY && float64(p.Y) <= maxY
	}

	for _, bar := range bars {
		c := bar.Center()
		lc, rc := left.Center(), right.Center()
		if c == lc || c == rc {
			continue
		}
		if inside(c) {
			return true
		}
	}
	return false
}
