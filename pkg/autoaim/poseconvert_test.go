package autoaim

import (
	"math"
	"testing"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

func testTransformConfig() TransformConfig {
	return TransformConfig{
		CameraMatrix:              [9]float64{600, 0, 320, 0, 600, 240, 0, 0, 1},
		DistCoeffs:                [5]float64{0, 0, 0, 0, 0},
		CameraToBarrelTranslation: [3]float64{0.01, 0.02, 0.03},
		CameraToIMUTranslation:    [3]float64{0.05, 0, -0.02},
		CameraToIMURotation:       [3]float64{0.1, -0.05, 0.02},
		BaseToBarrelTranslation:   [3]float64{0, 0, 0.1},
		BaseToBarrelRotation:      [3]float64{0, 0, 0},
		BulletVelocity:            15.0,
	}
}

// TestPoseConvertRoundTrip checks that the explicit five-frame composition
// PoseConverter.Solve uses agrees with resolving the same chain through a
// general CoordinateManager graph built from identical edges: the
// composition equals the product of the individual stage matrices in the
// specified order regardless of which path computes it.
func TestPoseConvertRoundTrip(t *testing.T) {
	cfg := testTransformConfig()
	pc := NewPoseConverter(cfg)
	defer pc.Close()

	imu := IMUSample{Roll: 2, Pitch: -3, Yaw: 15}

	rArmorCamera := RotateAroundY(0.2)
	rArmorCamera3, _ := DecomposeHomogeneous(rArmorCamera)
	tArmorCamera := mat.NewVecDense(3, []float64{0.1, -0.05, 1.2})
	hArmorCamera := HomogeneousFromRotTrans(rArmorCamera3, tArmorCamera)

	hIMUToBase := MulHomogeneous(
		RotateAroundZ(degToRad(imu.Yaw)),
		RotateAroundY(degToRad(imu.Pitch)),
		RotateAroundX(degToRad(imu.Roll)),
	)

	fastPath := MulHomogeneous(pc.hBaseToBarrel, hIMUToBase, pc.hCameraToIMU, hArmorCamera)

	cm := NewCoordinateManager()
	cm.RegisterTransform(FrameArmor, FrameCamera, hArmorCamera)
	cm.RegisterTransform(FrameCamera, FrameIMU, pc.hCameraToIMU)
	cm.RegisterTransform(FrameIMU, FrameBase, hIMUToBase)
	cm.RegisterTransform(FrameBase, FrameBarrel, pc.hBaseToBarrel)

	graphPath, err := cm.Resolve(FrameArmor, FrameBarrel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := frobeniusDiff(fastPath, graphPath); diff > 1e-9 {
		t.Errorf("expected fast-path and graph-resolved compositions to agree within 1e-9, got diff %e", diff)
	}
}

func TestArmorDimensionsBySize(t *testing.T) {
	w, h := armorDimensions(ArmorSmall)
	if w != SmallArmorWidthM || h != SmallArmorHeightM {
		t.Errorf("expected small armor dims, got %f,%f", w, h)
	}
	w, h = armorDimensions(ArmorLarge)
	if w != LargeArmorWidthM || h != LargeArmorHeightM {
		t.Errorf("expected large armor dims, got %f,%f", w, h)
	}
}

func TestDegToRadRadToDegRoundTrip(t *testing.T) {
	for _, deg := range []float64{0, 30, -90, 180, 359} {
		got := radToDeg(degToRad(deg))
		if math.Abs(got-deg) > 1e-9 {
			t.Errorf("round-trip failed for %f: got %f", deg, got)
		}
	}
}

func TestVecNorm(t *testing.T) {
	v := mat.NewVecDense(3, []float64{3, 4, 0})
	if got := vecNorm(v); math.Abs(got-5) > 1e-9 {
		t.Errorf("expected norm 5, got %f", got)
	}
}

func TestMatFromGocvAndVecFromGocvColumn(t *testing.T) {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer m.Close()
	for i := 0; i < 3; i++ {
		m.SetDoubleAt(i, i, float64(i+1))
	}
	dense := matFromGocv(m, 3, 3)
	for i := 0; i < 3; i++ {
		if dense.At(i, i) != float64(i+1) {
			t.Errorf("expected diagonal %d at (%d,%d), got %f", i+1, i, i, dense.At(i, i))
		}
	}

	col := gocv.NewMatWithSize(3, 1, gocv.MatTypeCV64F)
	defer col.Close()
	col.SetDoubleAt(0, 0, 1)
	col.SetDoubleAt(1, 0, 2)
	col.SetDoubleAt(2, 0, 3)
	vec := vecFromGocvColumn(col, 3)
	if vec.AtVec(0) != 1 || vec.AtVec(1) != 2 || vec.AtVec(2) != 3 {
		t.Errorf("expected (1,2,3), got (%f,%f,%f)", vec.AtVec(0), vec.AtVec(1), vec.AtVec(2))
	}
}
