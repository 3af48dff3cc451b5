package derive

// Option applies a configuration option to the Deriver.
type Option func(*Deriver)

// WithSmoothingFactor sets the EWMA weight on the newest sample.
// Values outside (0, 1] are ignored.
func WithSmoothingFactor(alpha float64) Option {
	return func(d *Deriver) {
		if alpha > 0 && alpha <= 1 {
			d.smoothing = alpha
		}
	}
}

// WithMaxStepPerCycle bounds how far the stress index may move in a
// single derivation cycle.
func WithMaxStepPerCycle(step float64) Option {
	return func(d *Deriver) {
		if step > 0 {
			d.maxStep = step
		}
	}
}

// WithTrendDeadZone sets the threshold below which a delta reads as stable.
func WithTrendDeadZone(zone float64) Option {
	return func(d *Deriver) {
		if zone > 0 {
			d.deadZone = zone
		}
	}
}

// WithWeights sets the wellness composite weights. Non-positive
// components are ignored and keep their defaults.
func WithWeights(w Weights) Option {
	return func(d *Deriver) {
		if w.InverseStress > 0 {
			d.weights.InverseStress = w.InverseStress
		}
		if w.HRV > 0 {
			d.weights.HRV = w.HRV
		}
		if w.Sleep > 0 {
			d.weights.Sleep = w.Sleep
		}
	}
}
