package training

import "encoding/json"

// Emissions holds per-token label scores produced by a model forward pass,
// indexed [batch][position][label].
type Emissions [][][]float64

// Reduction modes accepted by SequenceCriterion.Score.
const (
	ReductionMean = "mean"
	ReductionSum  = "sum"
)

// Stateful is implemented by collaborators whose state is carried across
// runs through checkpoints. State blobs are opaque to the trainer; only the
// collaborator that produced a blob can interpret it.
type Stateful interface {
	StateDict() (json.RawMessage, error)
	LoadStateDict(state json.RawMessage) error
}

// SequenceCriterion scores a whole label sequence jointly (as opposed to
// independent per-token classification) and decodes the most likely full
// sequence. A linear-chain CRF is the canonical implementation.
type SequenceCriterion interface {
	// Score returns the joint log-likelihood of labels given the emission
	// scores, considering only positions where mask is true. The training
	// loss is the negated result.
	Score(scores Emissions, labels [][]int, mask [][]bool, reduction string) (float64, error)

	// Decode returns the most likely label sequence per batch element,
	// one label per unmasked position.
	Decode(scores Emissions, mask [][]bool) ([][]int, error)
}

// Model is the training-side contract for the sequence-labeling model. The
// trainer never inspects parameters; it drives forward/backward passes and
// moves opaque state blobs in and out. Implementations must not record
// gradients while IsTraining reports false.
type Model interface {
	Stateful

	// Forward produces per-token label scores for the batch.
	Forward(inputIDs [][]int, mask [][]bool) (Emissions, error)

	// Criterion exposes the structured decoding/loss sub-collaborator.
	Criterion() SequenceCriterion

	// Backward accumulates gradients of the given scalar loss into the
	// model's parameters.
	Backward(loss float64) error

	// ScaleGradients multiplies all accumulated gradients by factor. The
	// gradient scaler uses it to unscale before an optimizer step.
	ScaleGradients(factor float64) error

	// GradientsFinite reports whether all accumulated gradients are finite.
	// A false result marks the current batch as overflowed.
	GradientsFinite() bool

	Train()            // sets training mode
	Eval()             // sets evaluation mode; disables gradient tracking
	IsTraining() bool
}

// Optimizer updates model parameters from accumulated gradients. It is an
// opaque stateful collaborator; the step policy is its own.
type Optimizer interface {
	Stateful

	Step() error      // applies one update from current gradients
	ZeroGrad()        // clears accumulated gradients
	GetLR() float64
	SetLR(lr float64)
}

// Scheduler adapts the learning rate from a monitored validation metric.
// The trainer calls Step exactly once per epoch, after the full validation
// pass, with the raw summed validation loss.
type Scheduler interface {
	Step(metric float64)
	GetName() string
}
