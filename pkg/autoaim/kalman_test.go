package autoaim

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestKalmanFilterPredictAdvancesPositionByVelocity(t *testing.T) {
	kf := NewKalmanFilter(1.0, 0.01, 0.05)
	kf.x = mat.NewVecDense(stateDim, nil)
	kf.x.SetVec(idxX, 0)
	kf.x.SetVec(idxVX, 2.0)

	kf.Predict()

	got := kf.x.AtVec(idxX)
	want := 2.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected x to advance to %f, got %f", want, got)
	}
}

func TestKalmanFilterCorrectPullsStateTowardObservation(t *testing.T) {
	kf := NewKalmanFilter(1.0, 0.01, 0.05)
	kf.x = mat.NewVecDense(stateDim, nil)
	for i := 0; i < stateDim; i++ {
		kf.P.Set(i, i, 1)
	}

	obs := mat.NewVecDense(observeDim, []float64{10, 0, 0, 0, 0, 0, 0, 0})
	kf.Predict()
	estimate := kf.Correct(obs)

	got := estimate.AtVec(idxX)
	if got <= 0 || got > 10 {
		t.Errorf("expected corrected x between 0 and 10, got %f", got)
	}
}

func TestKalmanFilterCorrectSingularInnovationKeepsPrediction(t *testing.T) {
	kf := NewKalmanFilter(1.0, 0.01, 0.05)
	// Zero out Q, R and P so S = H (F P F^T + Q) H^T + R is singular.
	kf.Q = mat.NewDense(stateDim, stateDim, nil)
	kf.R = mat.NewDense(observeDim, observeDim, nil)
	kf.P = mat.NewDense(stateDim, stateDim, nil)

	kf.Predict()
	before := mat.NewVecDense(stateDim, nil)
	before.CopyVec(kf.x)

	obs := mat.NewVecDense(observeDim, []float64{1, 1, 1, 1, 1, 1, 1, 1})
	got := kf.Correct(obs)

	for i := 0; i < stateDim; i++ {
		if math.Abs(got.AtVec(i)-before.AtVec(i)) > 1e-9 {
			t.Errorf("expected state unchanged at index %d on singular innovation, got %f want %f", i, got.AtVec(i), before.AtVec(i))
		}
	}
}

func TestIdentityBuildsIdentityMatrix(t *testing.T) {
	m := identity(3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if m.At(i, j) != want {
				t.Errorf("identity(3)[%d][%d] = %f, want %f", i, j, m.At(i, j), want)
			}
		}
	}
}
