package autoaim

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// Armor physical dimensions in meters: small plates are 135x56mm, large
// plates 230x56mm.
const (
	SmallArmorWidthM  = 0.135
	SmallArmorHeightM = 0.056
	LargeArmorWidthM  = 0.230
	LargeArmorHeightM = 0.056
)

// cv::SOLVEPNP_IPPE, the planar solver the armor's coplanar 3-D points
// call for. gocv takes the flag as a plain int.
const solvePnPIPPE = 6

func armorDimensions(size ArmorSize) (width, height float64) {
	if size == ArmorLarge {
		return LargeArmorWidthM, LargeArmorHeightM
	}
	return SmallArmorWidthM, SmallArmorHeightM
}

// PoseConverter lifts 2-D detections into the barrel frame: PnP, the
// armor→camera→imu→base→barrel composition, and the bullet-time-of-flight
// estimate. Solve hard-codes the five-frame chain as an explicit
// composition; TestPoseConvertRoundTrip checks it against the same chain
// resolved through a generic CoordinateManager graph.
type PoseConverter struct {
	cameraMatrix gocv.Mat
	distCoeffs   gocv.Mat

	hCameraToBarrel *mat.Dense
	hCameraToIMU    *mat.Dense
	hBaseToBarrel   *mat.Dense

	bulletVelocity float64
}

// TransformConfig carries the static calibration loaded once at startup:
// camera intrinsics/distortion, the static camera/barrel, camera/IMU and
// base/barrel transforms, and the muzzle velocity.
type TransformConfig struct {
	CameraMatrix [9]float64
	DistCoeffs   [5]float64

	CameraToBarrelTranslation [3]float64

	CameraToIMUTranslation [3]float64
	CameraToIMURotation    [3]float64 // rx, ry, rz radians

	BaseToBarrelTranslation [3]float64
	BaseToBarrelRotation    [3]float64 // rx, ry, rz radians

	BulletVelocity float64 // m/s
}

// NewPoseConverter builds the static transform chain from calibration.
func NewPoseConverter(cfg TransformConfig) *PoseConverter {
	camMat := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			camMat.SetDoubleAt(i, j, cfg.CameraMatrix[i*3+j])
		}
	}
	dist := gocv.NewMatWithSize(1, 5, gocv.MatTypeCV64F)
	for i := 0; i < 5; i++ {
		dist.SetDoubleAt(0, i, cfg.DistCoeffs[i])
	}

	hCameraToBarrel := TranslationMatrix(
		cfg.CameraToBarrelTranslation[0],
		cfg.CameraToBarrelTranslation[1],
		cfg.CameraToBarrelTranslation[2],
	)

	rCamIMU := rotationFromEulerXYZ(cfg.CameraToIMURotation[0], cfg.CameraToIMURotation[1], cfg.CameraToIMURotation[2])
	tCamIMU := mat.NewVecDense(3, cfg.CameraToIMUTranslation[:])
	hCameraToIMU := HomogeneousFromRotTrans(rCamIMU, tCamIMU)

	rBaseBarrel := rotationFromEulerXYZ(cfg.BaseToBarrelRotation[0], cfg.BaseToBarrelRotation[1], cfg.BaseToBarrelRotation[2])
	tBaseBarrel := mat.NewVecDense(3, cfg.BaseToBarrelTranslation[:])
	hBaseToBarrel := HomogeneousFromRotTrans(rBaseBarrel, tBaseBarrel)

	return &PoseConverter{
		cameraMatrix:    camMat,
		distCoeffs:      dist,
		hCameraToBarrel: hCameraToBarrel,
		hCameraToIMU:    hCameraToIMU,
		hBaseToBarrel:   hBaseToBarrel,
		bulletVelocity:  cfg.BulletVelocity,
	}
}

// rotationFromEulerXYZ builds a 3x3 rotation matrix R = Rz*Ry*Rx, dropped
// to the upper-left 3x3 block (rotation-only, no translation row/col).
func rotationFromEulerXYZ(rx, ry, rz float64) *mat.Dense {
	h := MulHomogeneous(RotateAroundZ(rz), RotateAroundY(ry), RotateAroundX(rx))
	r, _ := DecomposeHomogeneous(h)
	return r
}

// Close releases the converter's OpenCV resources.
func (p *PoseConverter) Close() {
	p.cameraMatrix.Close()
	p.distCoeffs.Close()
}

// Solve lifts a 2-D detection to a barrel-frame Detection3D by fusing the
// PnP solution with the IMU attitude recorded at capture time.
func (p *PoseConverter) Solve(det Detection2D) (Detection3D, error) {
	width, height := armorDimensions(det.ArmorSize)
	halfW, halfH := width/2, height/2

	objectPoints := gocv.NewPoint3fVectorFromPoints([]gocv.Point3f{
		{X: float32(-halfW), Y: float32(-halfH), Z: 0},
		{X: float32(halfW), Y: float32(-halfH), Z: 0},
		{X: float32(halfW), Y: float32(halfH), Z: 0},
		{X: float32(-halfW), Y: float32(halfH), Z: 0},
	})
	defer objectPoints.Close()

	imagePoints := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		det.Vertices[0], det.Vertices[1], det.Vertices[2], det.Vertices[3],
	})
	defer imagePoints.Close()

	rvecMat := gocv.NewMat()
	defer rvecMat.Close()
	tvecMat := gocv.NewMat()
	defer tvecMat.Close()

	ok := gocv.SolvePnP(
		objectPoints, imagePoints,
		p.cameraMatrix, p.distCoeffs,
		&rvecMat, &tvecMat,
		false, solvePnPIPPE,
	)
	if !ok {
		return Detection3D{}, fmt.Errorf("pose convert: PnP failed to converge")
	}

	rotMat := gocv.NewMat()
	defer rotMat.Close()
	gocv.Rodrigues(rvecMat, &rotMat)

	rArmorCamera := matFromGocv(rotMat, 3, 3)
	tArmorCamera := vecFromGocvColumn(tvecMat, 3)
	hArmorCamera := HomogeneousFromRotTrans(rArmorCamera, tArmorCamera)

	hIMUBase := RotateAroundZ(degToRad(det.IMUAtCapture.Yaw))
	hIMUBaseY := RotateAroundY(degToRad(det.IMUAtCapture.Pitch))
	hIMUBaseX := RotateAroundX(degToRad(det.IMUAtCapture.Roll))
	hIMUToBase := MulHomogeneous(hIMUBase, hIMUBaseY, hIMUBaseX)

	hArmorToBarrel := MulHomogeneous(p.hBaseToBarrel, hIMUToBase, p.hCameraToIMU, hArmorCamera)

	rBarrel, tBarrel := DecomposeHomogeneous(hArmorToBarrel)
	distance := vecNorm(tBarrel)
	direction := math.Atan2(rBarrel.At(1, 0), rBarrel.At(0, 0))

	tx, ty, tz := tArmorCamera.AtVec(0), tArmorCamera.AtVec(1), tArmorCamera.AtVec(2)
	yawToBarrel := math.Atan2(tx, tz)
	pitchToBarrel := math.Atan2(-ty, math.Hypot(tx, tz))

	thetaIMU := degToRad(det.IMUAtCapture.Pitch)
	thetaPnP := math.Atan2(ty, tz)
	tof := distance * math.Cos(math.Abs(thetaIMU)-math.Abs(thetaPnP)) / (p.bulletVelocity * math.Cos(thetaIMU))

	return Detection3D{
		Detection2D:        det,
		Rvec:               vecFromGocvColumn(rvecMat, 3),
		Tvec:               tArmorCamera,
		Center3D:           tBarrel,
		Distance:           distance,
		Direction:          direction,
		PitchToBarrel:      pitchToBarrel,
		YawToBarrel:        yawToBarrel,
		BulletTimeOfFlight: tof,
	}, nil
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }

func vecNorm(v *mat.VecDense) float64 {
	sum := 0.0
	for i := 0; i < v.Len(); i++ {
		sum += v.AtVec(i) * v.AtVec(i)
	}
	return math.Sqrt(sum)
}

func matFromGocv(m gocv.Mat, rows, cols int) *mat.Dense {
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.GetDoubleAt(i, j))
		}
	}
	return out
}

func vecFromGocvColumn(m gocv.Mat, n int) *mat.VecDense {
	out := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		out.SetVec(i, m.GetDoubleAt(i, 0))
	}
	return out
}
