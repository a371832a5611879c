package training

// PlateauScheduler reduces the optimizer's learning rate when the monitored
// metric has stopped improving for a patience window. The trainer feeds it
// the summed validation loss once per epoch; the reduction policy is
// entirely the scheduler's.
type PlateauScheduler struct {
	Factor    float64 // multiplier applied to the LR on a plateau
	Patience  int     // epochs without improvement before reduction
	Threshold float64 // minimum change counting as improvement
	Mode      string  // "min" or "max"
	MinLR     float64 // floor for the reduced learning rate

	optimizer   Optimizer
	bestMetric  float64
	badEpochs   int
	initialized bool
}

// NewPlateauScheduler creates a plateau scheduler bound to an optimizer,
// applying defaults for out-of-range parameters.
func NewPlateauScheduler(optimizer Optimizer, factor float64, patience int, threshold float64, mode string) *PlateauScheduler {
	if factor <= 0 || factor >= 1 {
		factor = 0.1
	}
	if patience <= 0 {
		patience = 10
	}
	if threshold < 0 {
		threshold = 1e-4
	}
	if mode != "min" && mode != "max" {
		mode = "min"
	}
	return &PlateauScheduler{
		Factor:    factor,
		Patience:  patience,
		Threshold: threshold,
		Mode:      mode,
		optimizer: optimizer,
	}
}

// Step observes one epoch's monitored metric and reduces the learning rate
// after Patience epochs without improvement.
func (s *PlateauScheduler) Step(metric float64) {
	if !s.initialized {
		s.bestMetric = metric
		s.initialized = true
		return
	}

	improved := false
	if s.Mode == "min" {
		improved = metric < s.bestMetric-s.Threshold
	} else {
		improved = metric > s.bestMetric+s.Threshold
	}

	if improved {
		s.bestMetric = metric
		s.badEpochs = 0
		return
	}

	s.badEpochs++
	if s.badEpochs >= s.Patience {
		lr := s.optimizer.GetLR() * s.Factor
		if lr < s.MinLR {
			lr = s.MinLR
		}
		s.optimizer.SetLR(lr)
		s.badEpochs = 0
	}
}

func (s *PlateauScheduler) GetName() string {
	return "ReduceLROnPlateau"
}

// ConstantScheduler leaves the learning rate untouched.
type ConstantScheduler struct{}

func (s *ConstantScheduler) Step(metric float64) {}

func (s *ConstantScheduler) GetName() string {
	return "ConstantLR"
}
