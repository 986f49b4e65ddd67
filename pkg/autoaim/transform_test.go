package autoaim

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func frobeniusDiff(a, b mat.Matrix) float64 {
	ra, ca := a.Dims()
	sum := 0.0
	for i := 0; i < ra; i++ {
		for j := 0; j < ca; j++ {
			d := a.At(i, j) - b.At(i, j)
			sum += d * d
		}
	}
	return math.Sqrt(sum)
}

func TestRotateAroundZQuarterTurn(t *testing.T) {
	r := RotateAroundZ(math.Pi / 2)
	// (1,0,0) rotates to (0,1,0) about Z.
	v := mat.NewVecDense(4, []float64{1, 0, 0, 1})
	var out mat.VecDense
	out.MulVec(r, v)

	if math.Abs(out.AtVec(0)) > 1e-9 || math.Abs(out.AtVec(1)-1) > 1e-9 {
		t.Errorf("expected (0,1,0,1), got (%f,%f,%f,%f)", out.AtVec(0), out.AtVec(1), out.AtVec(2), out.AtVec(3))
	}
}

func TestTranslationMatrixMovesPoint(t *testing.T) {
	m := TranslationMatrix(1, 2, 3)
	p := mat.NewVecDense(4, []float64{0, 0, 0, 1})
	var out mat.VecDense
	out.MulVec(m, p)
	if out.AtVec(0) != 1 || out.AtVec(1) != 2 || out.AtVec(2) != 3 {
		t.Errorf("expected (1,2,3,1), got (%f,%f,%f,%f)", out.AtVec(0), out.AtVec(1), out.AtVec(2), out.AtVec(3))
	}
}

// TestInvertRigidRoundTrip checks that for any rigid transform H, composing
// H with its inverse yields the identity to within 1e-9 Frobenius norm.
func TestInvertRigidRoundTrip(t *testing.T) {
	h := MulHomogeneous(
		RotateAroundZ(0.3),
		RotateAroundY(0.6),
		RotateAroundX(-0.2),
		TranslationMatrix(1.5, -2.0, 0.75),
	)
	hInv := InvertRigid(h)

	var product mat.Dense
	product.Mul(h, hInv)

	if diff := frobeniusDiff(&product, identity(4)); diff > 1e-9 {
		t.Errorf("expected H * H^-1 == I within 1e-9, got Frobenius diff %e", diff)
	}

	var product2 mat.Dense
	product2.Mul(hInv, h)
	if diff := frobeniusDiff(&product2, identity(4)); diff > 1e-9 {
		t.Errorf("expected H^-1 * H == I within 1e-9, got Frobenius diff %e", diff)
	}
}

func TestMulHomogeneousEmptyReturnsIdentity(t *testing.T) {
	m := MulHomogeneous()
	if diff := frobeniusDiff(m, identity(4)); diff > 1e-12 {
		t.Errorf("expected identity for empty composition, got diff %e", diff)
	}
}

func TestMulHomogeneousComposesLeftToRight(t *testing.T) {
	a := TranslationMatrix(1, 0, 0)
	b := TranslationMatrix(0, 1, 0)
	got := MulHomogeneous(a, b)

	var want mat.Dense
	want.Mul(a, b)

	if diff := frobeniusDiff(got, &want); diff > 1e-12 {
		t.Errorf("expected MulHomogeneous(a,b) == a*b, got diff %e", diff)
	}
}

func TestCoordinateManagerResolveDirectEdge(t *testing.T) {
	cm := NewCoordinateManager()
	tf := TranslationMatrix(1, 2, 3)
	cm.RegisterTransform(FrameCamera, FrameIMU, tf)

	got, err := cm.Resolve(FrameCamera, FrameIMU)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := frobeniusDiff(got, tf); diff > 1e-12 {
		t.Errorf("expected direct edge transform, got diff %e", diff)
	}
}

func TestCoordinateManagerResolveInverseEdge(t *testing.T) {
	cm := NewCoordinateManager()
	tf := TranslationMatrix(1, 2, 3)
	cm.RegisterTransform(FrameCamera, FrameIMU, tf)

	got, err := cm.Resolve(FrameIMU, FrameCamera)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := InvertRigid(tf)
	if diff := frobeniusDiff(got, want); diff > 1e-9 {
		t.Errorf("expected inverse edge transform, got diff %e", diff)
	}
}

func TestCoordinateManagerResolveMultiHop(t *testing.T) {
	cm := NewCoordinateManager()
	cm.RegisterTransform(FrameArmor, FrameCamera, TranslationMatrix(1, 0, 0))
	cm.RegisterTransform(FrameCamera, FrameIMU, TranslationMatrix(0, 1, 0))
	cm.RegisterTransform(FrameIMU, FrameBase, TranslationMatrix(0, 0, 1))
	cm.RegisterTransform(FrameBase, FrameBarrel, TranslationMatrix(1, 1, 1))

	got, err := cm.Resolve(FrameArmor, FrameBarrel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := MulHomogeneous(
		TranslationMatrix(1, 1, 1),
		TranslationMatrix(0, 0, 1),
		TranslationMatrix(0, 1, 0),
		TranslationMatrix(1, 0, 0),
	)
	if diff := frobeniusDiff(got, want); diff > 1e-9 {
		t.Errorf("expected composed multi-hop transform, got diff %e", diff)
	}
}

func TestCoordinateManagerResolveSameFrameIsIdentity(t *testing.T) {
	cm := NewCoordinateManager()
	cm.RegisterTransform(FrameArmor, FrameCamera, TranslationMatrix(1, 0, 0))

	got, err := cm.Resolve(FrameArmor, FrameArmor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := frobeniusDiff(got, identity(4)); diff > 1e-12 {
		t.Errorf("expected identity for same-frame resolve, got diff %e", diff)
	}
}

func TestCoordinateManagerResolveUnknownFrameErrors(t *testing.T) {
	cm := NewCoordinateManager()
	cm.RegisterTransform(FrameArmor, FrameCamera, TranslationMatrix(1, 0, 0))

	if _, err := cm.Resolve(FrameArmor, FrameBarrel); err == nil {
		t.Error("expected an error resolving to a frame with no registered path")
	}
	if _, err := cm.Resolve("nonexistent", FrameCamera); err == nil {
		t.Error("expected an error resolving from an unknown frame")
	}
}
