package training

import "fmt"

// trainPass iterates one pass over the training data, yielding one loss per
// batch. A pass is finite and not restartable mid-way; the trainer starts a
// fresh pass per epoch.
type trainPass struct {
	trainer *Trainer
	done    bool
}

func (t *Trainer) newTrainPass() *trainPass {
	t.trainData.Reset()
	return &trainPass{trainer: t}
}

// Next runs the next batch's full forward/backward/update cycle and returns
// its loss. ok is false once the pass is complete.
func (p *trainPass) Next() (loss float64, ok bool, err error) {
	if p.done {
		return 0, false, nil
	}
	batch, err := p.trainer.trainData.Next()
	if err != nil {
		p.done = true
		return 0, false, fmt.Errorf("failed to load training batch: %v", err)
	}
	if batch == nil {
		p.done = true
		return 0, false, nil
	}
	loss, err = p.trainer.trainStep(batch)
	if err != nil {
		p.done = true
		return 0, false, err
	}
	return loss, true, nil
}

// trainStep processes one training batch. Gradients are cleared before the
// forward pass, never after the previous step, so no stale gradients carry
// across iterations; the scaled-backward protocol then mutates the model
// parameters in place.
func (t *Trainer) trainStep(batch *Batch) (float64, error) {
	if err := batch.Validate(); err != nil {
		return 0, fmt.Errorf("invalid training batch: %v", err)
	}

	t.optimizer.ZeroGrad()

	loss, err := t.precision.RunReducedPrecision(func() (float64, error) {
		scores, err := t.model.Forward(batch.InputIDs, batch.AttentionMask)
		if err != nil {
			return 0, fmt.Errorf("forward pass failed: %v", err)
		}
		logLikelihood, err := t.model.Criterion().Score(scores, batch.Labels, batch.AttentionMask, ReductionMean)
		if err != nil {
			return 0, fmt.Errorf("sequence scoring failed: %v", err)
		}
		return -logLikelihood, nil
	})
	if err != nil {
		return 0, err
	}

	if err := t.precision.BackwardStep(t.model, t.optimizer, loss); err != nil {
		return 0, err
	}
	return loss, nil
}

// ValidationResult is one validation batch's loss and accuracy.
type ValidationResult struct {
	Loss     float64
	Accuracy float64
}

// validationPass iterates one pass over validation data with gradient
// tracking disabled, yielding a (loss, accuracy) pair per batch.
type validationPass struct {
	trainer *Trainer
	source  BatchSource
	done    bool
}

func (t *Trainer) newValidationPass(source BatchSource) *validationPass {
	source.Reset()
	return &validationPass{trainer: t, source: source}
}

// Next evaluates the next batch forward-only. ok is false once the pass is
// complete.
func (p *validationPass) Next() (result ValidationResult, ok bool, err error) {
	if p.done {
		return ValidationResult{}, false, nil
	}
	batch, err := p.source.Next()
	if err != nil {
		p.done = true
		return ValidationResult{}, false, fmt.Errorf("failed to load validation batch: %v", err)
	}
	if batch == nil {
		p.done = true
		return ValidationResult{}, false, nil
	}
	result, err = p.trainer.validationStep(batch)
	if err != nil {
		p.done = true
		return ValidationResult{}, false, err
	}
	return result, true, nil
}

// validationStep computes the structured loss forward-only and scores the
// decoded sequence against the labels. No backward pass and no scaling.
func (t *Trainer) validationStep(batch *Batch) (ValidationResult, error) {
	if err := batch.Validate(); err != nil {
		return ValidationResult{}, fmt.Errorf("invalid validation batch: %v", err)
	}

	scores, err := t.model.Forward(batch.InputIDs, batch.AttentionMask)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("validation forward pass failed: %v", err)
	}

	loss, err := t.precision.RunReducedPrecision(func() (float64, error) {
		logLikelihood, err := t.model.Criterion().Score(scores, batch.Labels, batch.AttentionMask, ReductionMean)
		if err != nil {
			return 0, fmt.Errorf("validation scoring failed: %v", err)
		}
		return -logLikelihood, nil
	})
	if err != nil {
		return ValidationResult{}, err
	}

	decoded, err := t.model.Criterion().Decode(scores, batch.AttentionMask)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("sequence decoding failed: %v", err)
	}

	return ValidationResult{
		Loss:     loss,
		Accuracy: MaskedAccuracy(decoded, batch.Labels, batch.AttentionMask),
	}, nil
}
