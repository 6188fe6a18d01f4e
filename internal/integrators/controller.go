package integrators

import "math"

// stepController picks the next step size from the error ratio of the
// current one using the usual safety-factored power law.
type stepController struct {
	safety   float64
	minScale float64
	maxScale float64
	order    int
}

func newStepController(order int) stepController {
	return stepController{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
		order:    order,
	}
}

func (c stepController) next(dt, errRatio float64) float64 {
	if errRatio <= 0 {
		return dt * c.maxScale
	}
	scale := c.safety * math.Pow(errRatio, -1.0/float64(c.order))
	return dt * math.Max(c.minScale, math.Min(c.maxScale, scale))
}
