package autoaim

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// State and observation dimensions for the per-target constant-velocity
// Kalman filter. State:
//
//	x = [x, y, z, direction, pitch, vx, vy, vz, v_direction, v_pitch]
//
// Observation:
//
//	z = [x, y, z, vx, vy, vz, direction, pitch]
const (
	stateDim   = 10
	observeDim = 8
)

// Indices into the state vector.
const (
	idxX = iota
	idxY
	idxZ
	idxDirection
	idxPitch
	idxVX
	idxVY
	idxVZ
	idxVDirection
	idxVPitch
)

// KalmanFilter is a textbook linear Kalman filter over the 10-dimensional
// barrel-frame target state. A constant-velocity model covers everything
// the trackers need today; non-linear motion models would need an EKF.
type KalmanFilter struct {
	F *mat.Dense // transitionMatrix, stateDim x stateDim
	H *mat.Dense // measurementMatrix, observeDim x stateDim
	Q *mat.Dense // processNoiseCov, stateDim x stateDim
	R *mat.Dense // measurementNoiseCov, observeDim x observeDim

	x *mat.VecDense // statePost
	P *mat.Dense    // errorCovPost
}

// NewKalmanFilter builds the filter's fixed matrices for the given time
// step, process noise q, and measurement noise r, and seeds the state
// from N(0, 0.1^2 I).
func NewKalmanFilter(dt, q, r float64) *KalmanFilter {
	kf := &KalmanFilter{
		F: mat.NewDense(stateDim, stateDim, nil),
		H: mat.NewDense(observeDim, stateDim, nil),
		Q: mat.NewDense(stateDim, stateDim, nil),
		R: mat.NewDense(observeDim, observeDim, nil),
		x: mat.NewVecDense(stateDim, nil),
		P: mat.NewDense(stateDim, stateDim, nil),
	}

	for i := 0; i < stateDim; i++ {
		kf.F.Set(i, i, 1)
	}
	kf.F.Set(idxX, idxVX, dt)
	kf.F.Set(idxY, idxVY, dt)
	kf.F.Set(idxZ, idxVZ, dt)
	kf.F.Set(idxDirection, idxVDirection, dt)
	kf.F.Set(idxPitch, idxVPitch, dt)

	kf.H.Set(0, idxX, 1)
	kf.H.Set(1, idxY, 1)
	kf.H.Set(2, idxZ, 1)
	kf.H.Set(3, idxVX, 1)
	kf.H.Set(4, idxVY, 1)
	kf.H.Set(5, idxVZ, 1)
	kf.H.Set(6, idxDirection, 1)
	kf.H.Set(7, idxPitch, 1)

	for i := 0; i < stateDim; i++ {
		kf.Q.Set(i, i, q)
		kf.P.Set(i, i, 1)
	}
	for i := 0; i < observeDim; i++ {
		kf.R.Set(i, i, r)
	}

	for i := 0; i < stateDim; i++ {
		kf.x.SetVec(i, rand.NormFloat64()*0.1)
	}

	return kf
}

// Predict advances the state estimate by one time step.
func (kf *KalmanFilter) Predict() {
	var xPred mat.VecDense
	xPred.MulVec(kf.F, kf.x)
	kf.x = &xPred

	var ft, fp, pPred mat.Dense
	ft.CloneFrom(kf.F.T())
	fp.Mul(kf.F, kf.P)
	pPred.Mul(&fp, &ft)
	pPred.Add(&pPred, kf.Q)
	kf.P = &pPred
}

// Correct folds an observation into the predicted state and returns the
// posterior state estimate.
func (kf *KalmanFilter) Correct(observation *mat.VecDense) *mat.VecDense {
	var hx mat.VecDense
	hx.MulVec(kf.H, kf.x)

	innovation := mat.NewVecDense(observeDim, nil)
	innovation.SubVec(observation, &hx)

	var ht, ph, s mat.Dense
	ht.CloneFrom(kf.H.T())
	ph.Mul(kf.P, &ht)
	s.Mul(kf.H, &ph)
	s.Add(&s, kf.R)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		// Singular innovation covariance: skip the update, keep prediction.
		return kf.x
	}

	var k mat.Dense
	k.Mul(&ph, &sInv)

	var correction mat.VecDense
	correction.MulVec(&k, innovation)

	var xNew mat.VecDense
	xNew.AddVec(kf.x, &correction)
	kf.x = &xNew

	var kh, identityMinusKH, pNew mat.Dense
	kh.Mul(&k, kf.H)
	identityMinusKH.Sub(identity(stateDim), &kh)
	pNew.Mul(&identityMinusKH, kf.P)
	kf.P = &pNew

	return kf.x
}

// State returns the current posterior state estimate.
func (kf *KalmanFilter) State() *mat.VecDense {
	return kf.x
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
