package training

import "fmt"

// GradScaler coordinates loss scaling for backward passes under reduced
// precision. Scaling keeps small gradients out of the underflow range;
// the scaler adjusts its factor from observed overflows.
type GradScaler interface {
	// Scale multiplies the loss by the current scale factor.
	Scale(loss float64) float64

	// Step unscales the model's gradients and applies one optimizer step,
	// skipping the step entirely when the batch overflowed. A skipped step
	// is not an error; it is invisible to the caller.
	Step(model Model, optimizer Optimizer) error

	// Update adjusts the scale factor based on the batch just finished.
	// Must be called after every Step.
	Update()
}

// GradScalerConfig configures the standard gradient scaler.
type GradScalerConfig struct {
	InitScale      float64 // initial loss scale factor
	GrowthFactor   float64 // multiplier applied after a clean growth interval
	BackoffFactor  float64 // multiplier applied after an overflow
	GrowthInterval int     // consecutive clean steps before growth
}

// DefaultGradScalerConfig returns the standard dynamic-scaling parameters.
func DefaultGradScalerConfig() GradScalerConfig {
	return GradScalerConfig{
		InitScale:      65536.0,
		GrowthFactor:   2.0,
		BackoffFactor:  0.5,
		GrowthInterval: 2000,
	}
}

// StandardGradScaler implements dynamic loss scaling: grow the factor after
// a run of clean steps, back off immediately on overflow.
type StandardGradScaler struct {
	scale          float64
	growthFactor   float64
	backoffFactor  float64
	growthInterval int

	cleanSteps int
	overflowed bool
}

// NewGradScaler creates a scaler from config, applying defaults for any
// non-positive field.
func NewGradScaler(config GradScalerConfig) *StandardGradScaler {
	defaults := DefaultGradScalerConfig()
	if config.InitScale <= 0 {
		config.InitScale = defaults.InitScale
	}
	if config.GrowthFactor <= 1 {
		config.GrowthFactor = defaults.GrowthFactor
	}
	if config.BackoffFactor <= 0 || config.BackoffFactor >= 1 {
		config.BackoffFactor = defaults.BackoffFactor
	}
	if config.GrowthInterval <= 0 {
		config.GrowthInterval = defaults.GrowthInterval
	}
	return &StandardGradScaler{
		scale:          config.InitScale,
		growthFactor:   config.GrowthFactor,
		backoffFactor:  config.BackoffFactor,
		growthInterval: config.GrowthInterval,
	}
}

// GetScale returns the current loss scale factor.
func (s *StandardGradScaler) GetScale() float64 {
	return s.scale
}

// Scale multiplies the loss by the current scale factor.
func (s *StandardGradScaler) Scale(loss float64) float64 {
	return loss * s.scale
}

// Step checks the batch's overflow status, unscales gradients, and applies
// the optimizer step. On overflow the step is skipped without error.
func (s *StandardGradScaler) Step(model Model, optimizer Optimizer) error {
	s.overflowed = !model.GradientsFinite()
	if s.overflowed {
		return nil
	}
	if err := model.ScaleGradients(1.0 / s.scale); err != nil {
		return fmt.Errorf("gradient unscale failed: %v", err)
	}
	if err := optimizer.Step(); err != nil {
		return fmt.Errorf("optimizer step failed: %v", err)
	}
	return nil
}

// Update adjusts the scale factor from the batch just finished. Skipping
// this after a Step stalls or blows up the factor.
func (s *StandardGradScaler) Update() {
	if s.overflowed {
		s.scale *= s.backoffFactor
		s.cleanSteps = 0
		s.overflowed = false
		return
	}
	s.cleanSteps++
	if s.cleanSteps >= s.growthInterval {
		s.scale *= s.growthFactor
		s.cleanSteps = 0
	}
}

// PrecisionContext wraps forward/loss computation in reduced-precision
// arithmetic and coordinates gradient scaling for backward passes.
type PrecisionContext struct {
	scaler GradScaler
}

// NewPrecisionContext creates a precision context. A nil scaler gets a
// fresh default scaler; defaults are constructed here, per context, so no
// scaler state is ever shared between unrelated training runs.
func NewPrecisionContext(scaler GradScaler) *PrecisionContext {
	if scaler == nil {
		scaler = NewGradScaler(DefaultGradScalerConfig())
	}
	return &PrecisionContext{scaler: scaler}
}

// RunReducedPrecision evaluates a forward+loss closure under reduced
// precision and returns the loss as a full-precision scalar. The float32
// round-trip keeps loss magnitudes consistent between training and
// validation phases.
func (pc *PrecisionContext) RunReducedPrecision(fn func() (float64, error)) (float64, error) {
	loss, err := fn()
	if err != nil {
		return 0, err
	}
	return float64(float32(loss)), nil
}

// BackwardStep runs the scaled-backward protocol for one training batch:
// scale the loss, backpropagate the scaled loss, step the optimizer under
// the scaler's supervision, then update the scale factor. The ordering is
// mandatory: the scaler must see the batch's overflow status before the
// optimizer steps, and its factor must be updated after every batch.
func (pc *PrecisionContext) BackwardStep(model Model, optimizer Optimizer, loss float64) error {
	scaled := pc.scaler.Scale(loss)
	if err := model.Backward(scaled); err != nil {
		return fmt.Errorf("backward pass failed: %v", err)
	}
	if err := pc.scaler.Step(model, optimizer); err != nil {
		return err
	}
	pc.scaler.Update()
	return nil
}
