package tracker

import (
	"errors"
	"fmt"
	"gonum.org/v1/gonum/mat"
)

// PointState is the state mean and covariance of a filtered point.  The mean
// is a 4x1 vector of x, y, x velocity and y velocity
type PointState struct {
	Mean *mat.VecDense
	Cov  *mat.Dense
}

// Position returns the filtered x, y position
func (s *PointState) Position() (float64, float64) {
	return s.Mean.AtVec(0), s.Mean.AtVec(1)
}

// KalmanFilter is a constant velocity Kalman filter for a single 2D point
// measured once per frame
type KalmanFilter struct {
	// measureStd is the standard deviation of the measurement noise in pixels
	measureStd float64
	// processStd is the standard deviation of the per frame velocity change
	processStd float64
	motionMat  *mat.Dense
	updateMat  *mat.Dense
}

// NewKalmanFilter initializes and returns a new KalmanFilter
func NewKalmanFilter(measureStd, processStd float64) *KalmanFilter {

	ndim := 2
	dt := 1.0

	// create identity matrix for motionMat with the velocity terms
	motionMat := mat.NewDense(4, 4, nil)

	for i := 0; i < 4; i++ {
		motionMat.Set(i, i, 1.0)
	}

	for i := 0; i < ndim; i++ {
		motionMat.Set(i, ndim+i, dt)
	}

	// create updateMat as a 2x4 matrix selecting the position
	updateMat := mat.NewDense(2, 4, nil)

	for i := 0; i < ndim; i++ {
		updateMat.Set(i, i, 1.0)
	}

	return &KalmanFilter{
		measureStd: measureStd,
		processStd: processStd,
		motionMat:  motionMat,
		updateMat:  updateMat,
	}
}

// Initiate returns the state for a first measurement with zero velocity
func (kf *KalmanFilter) Initiate(x, y float64) *PointState {

	mean := mat.NewVecDense(4, []float64{x, y, 0, 0})

	// velocity is unknown so starts with a wide variance
	std := []float64{
		kf.measureStd,
		kf.measureStd,
		10 * kf.processStd,
		10 * kf.processStd,
	}

	cov := mat.NewDense(4, 4, nil)

	for i, v := range std {
		cov.Set(i, i, v*v)
	}

	return &PointState{Mean: mean, Cov: cov}
}

// Predict advances the state by one frame
func (kf *KalmanFilter) Predict(s *PointState) {

	// position noise is driven by the velocity noise over one frame
	q := kf.processStd * kf.processStd
	motionCov := mat.NewDiagDense(4, []float64{q / 4, q / 4, q, q})

	mean := mat.NewVecDense(4, nil)
	mean.MulVec(kf.motionMat, s.Mean)
	s.Mean = mean

	cov := mat.NewDense(4, 4, nil)
	cov.Mul(kf.motionMat, s.Cov)
	cov.Mul(cov, kf.motionMat.T())
	cov.Add(cov, motionCov)
	s.Cov = cov
}

// Update corrects the state with a measured position
func (kf *KalmanFilter) Update(s *PointState, x, y float64) error {

	// project the state covariance to measurement space
	hp := mat.NewDense(2, 4, nil)
	hp.Mul(kf.updateMat, s.Cov)

	proj := mat.NewDense(2, 2, nil)
	proj.Mul(hp, kf.updateMat.T())

	r := kf.measureStd * kf.measureStd
	projectedCov := mat.NewSymDense(2, []float64{
		proj.At(0, 0) + r, proj.At(0, 1),
		proj.At(0, 1), proj.At(1, 1) + r,
	})

	// perform Cholesky factorization of the projected covariance matrix
	chol := mat.Cholesky{}

	if ok := chol.Factorize(projectedCov); !ok {
		return errors.New("failed to factorize projected covariance")
	}

	// solve for the transposed Kalman gain
	var gainT mat.Dense
	err := chol.SolveTo(&gainT, hp)

	if err != nil {
		return fmt.Errorf("failed to compute kalman gain: %w", err)
	}

	// compute the innovation (measurement residual)
	innovation := mat.NewVecDense(2, []float64{
		x - s.Mean.AtVec(0),
		y - s.Mean.AtVec(1),
	})

	correction := mat.NewVecDense(4, nil)
	correction.MulVec(gainT.T(), innovation)
	s.Mean.AddVec(s.Mean, correction)

	// update the state covariance
	temp := mat.NewDense(4, 2, nil)
	temp.Mul(gainT.T(), projectedCov)

	temp2 := mat.NewDense(4, 4, nil)
	temp2.Mul(temp, &gainT)

	newCov := mat.NewDense(4, 4, nil)
	newCov.Sub(s.Cov, temp2)
	s.Cov = newCov

	return nil
}
