package training

import (
	"fmt"

	"github.com/SyqJzcX/Ykz-deeplearning-env/checkpoints"
)

// TrainerConfig holds configuration for a Trainer. Zero values select
// factory defaults; collaborator defaults are constructed inside NewTrainer,
// per trainer, so no stateful default is ever shared across runs.
type TrainerConfig struct {
	BatchSize int        // nominal batch size used for per-sample loss scaling
	ModelPath string     // checkpoint directory
	Scaler    GradScaler // gradient scaler; nil selects a fresh default scaler
	Scheduler Scheduler  // LR scheduler; nil selects a fresh plateau scheduler
	Progress  bool       // render per-phase progress bars
}

// DefaultTrainerConfig returns the stock trainer configuration.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		BatchSize: 512,
		ModelPath: "./model/checkpoint",
		Progress:  true,
	}
}

// EpochRecord is one completed epoch's aggregated metrics. Epoch is 1-based
// across the whole run lineage, not just the current Fit call.
type EpochRecord struct {
	Epoch     int
	TrainLoss float64
	DevLoss   float64
	DevAcc    float64
}

// RunState is the outcome of one Fit call: the epoch count the call started
// from and the records it produced. It is not mutated after Fit returns.
type RunState struct {
	StartEpoch int
	History    []EpochRecord
}

// Trainer drives epoch iteration, loss computation under reduced precision,
// validation scoring, learning-rate adaptation, and checkpoint persistence
// for a sequence-labeling model.
type Trainer struct {
	model     Model
	optimizer Optimizer
	scheduler Scheduler
	precision *PrecisionContext

	trainData BatchSource
	devData   BatchSource

	batchSize   int
	checkpoints *checkpoints.Manager
	progress    bool
}

// NewTrainer wires a trainer from its collaborators. Scaler and scheduler
// defaults are built here, at call time.
func NewTrainer(model Model, optimizer Optimizer, trainData, devData BatchSource, config TrainerConfig) *Trainer {
	defaults := DefaultTrainerConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.ModelPath == "" {
		config.ModelPath = defaults.ModelPath
	}
	scheduler := config.Scheduler
	if scheduler == nil {
		scheduler = NewPlateauScheduler(optimizer, 0, 0, -1, "")
	}

	return &Trainer{
		model:       model,
		optimizer:   optimizer,
		scheduler:   scheduler,
		precision:   NewPrecisionContext(config.Scaler),
		trainData:   trainData,
		devData:     devData,
		batchSize:   config.BatchSize,
		checkpoints: checkpoints.NewManager(config.ModelPath),
		progress:    config.Progress,
	}
}

// Fit trains for epochNum epochs and writes exactly one checkpoint at
// identity pretrain+epochNum. A pretrain of 0 starts fresh; a positive
// value resumes from that checkpoint identity, restoring model and
// optimizer state first. Resume failures abort immediately: no partial
// training happens without an explicit base state.
func (t *Trainer) Fit(epochNum int, pretrain int) (*RunState, error) {
	if epochNum < 1 {
		return nil, fmt.Errorf("epoch count must be positive, got %d", epochNum)
	}

	startEpoch := 0
	if pretrain > 0 {
		checkpoint, err := t.checkpoints.LoadEpoch(pretrain)
		if err != nil {
			return nil, fmt.Errorf("failed to resume from checkpoint %d: %w", pretrain, err)
		}
		if err := t.model.LoadStateDict(checkpoint.ModelState); err != nil {
			return nil, fmt.Errorf("failed to restore model state: %v", err)
		}
		if err := t.optimizer.LoadStateDict(checkpoint.OptimizerState); err != nil {
			return nil, fmt.Errorf("failed to restore optimizer state: %v", err)
		}
		lastEpoch, lastLoss, lastAcc := checkpoint.Last()
		startEpoch = lastEpoch
		fmt.Printf("Resumed checkpoint %d: %d epochs trained, train loss %.4f, dev accuracy %.2f%%\n",
			pretrain, lastEpoch, lastLoss, lastAcc*100)
	} else {
		fmt.Println("No pretrained checkpoint, training from scratch...")
	}

	fmt.Printf("Starting training for %d epochs (scheduler: %s)\n", epochNum, t.scheduler.GetName())

	state := &RunState{StartEpoch: startEpoch}
	for i := 0; i < epochNum; i++ {
		epoch := pretrain + i + 1

		trainLoss, err := t.runTrainPhase(i+1, epochNum)
		if err != nil {
			return nil, fmt.Errorf("training epoch %d failed: %v", epoch, err)
		}

		devLoss, devAcc, err := t.runValidationPhase(i+1, epochNum)
		if err != nil {
			return nil, fmt.Errorf("validation epoch %d failed: %v", epoch, err)
		}

		record := EpochRecord{
			Epoch:     epoch,
			TrainLoss: trainLoss,
			DevLoss:   devLoss,
			DevAcc:    devAcc,
		}
		state.History = append(state.History, record)

		fmt.Printf("Epoch %d complete: train loss %.4f, dev loss %.4f, dev accuracy %.2f%%\n",
			epoch, record.TrainLoss, record.DevLoss, record.DevAcc*100)
	}

	if err := t.saveCheckpoint(state); err != nil {
		return nil, err
	}
	return state, nil
}

// runTrainPhase consumes one full training pass and returns the per-sample
// scaled training loss: the summed batch losses divided by the loader's
// batch count, multiplied by the nominal batch size.
func (t *Trainer) runTrainPhase(epoch, epochNum int) (float64, error) {
	t.model.Train()

	var bar *ProgressBar
	if t.progress {
		bar = NewProgressBar(fmt.Sprintf("Epoch %d/%d (Training)", epoch, epochNum), t.trainData.Len())
	}

	sum := 0.0
	batches := 0
	pass := t.newTrainPass()
	for {
		loss, ok, err := pass.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		sum += loss
		batches++
		if bar != nil {
			bar.Update(batches, map[string]float64{"loss": sum / float64(batches)})
		}
	}
	if bar != nil {
		bar.Finish()
	}

	return t.perSampleLoss(sum, t.trainData.Len()), nil
}

// runValidationPhase consumes one full validation pass, feeds the scheduler
// the raw summed validation loss, and returns the per-sample scaled loss
// and mean accuracy.
func (t *Trainer) runValidationPhase(epoch, epochNum int) (devLoss, devAcc float64, err error) {
	t.model.Eval()

	var bar *ProgressBar
	if t.progress {
		bar = NewProgressBar(fmt.Sprintf("Epoch %d/%d (Validation)", epoch, epochNum), t.devData.Len())
	}

	sum := 0.0
	var accuracies []float64
	pass := t.newValidationPass(t.devData)
	for {
		result, ok, err := pass.Next()
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			break
		}
		sum += result.Loss
		accuracies = append(accuracies, result.Accuracy)
		if bar != nil {
			bar.Update(len(accuracies), map[string]float64{
				"loss": sum / float64(len(accuracies)),
				"acc":  meanFloat64(accuracies),
			})
		}
	}
	if bar != nil {
		bar.Finish()
	}

	// The scheduler monitors the unnormalized sum, once per epoch, after
	// the full pass and before checkpointing.
	t.scheduler.Step(sum)

	return t.perSampleLoss(sum, t.devData.Len()), meanFloat64(accuracies), nil
}

// perSampleLoss converts a summed per-batch loss into the reported
// per-sample scale: sum / batchCount * nominal batch size.
func (t *Trainer) perSampleLoss(sum float64, batchCount int) float64 {
	if batchCount == 0 {
		return 0
	}
	return sum / float64(batchCount) * float64(t.batchSize)
}

// saveCheckpoint writes this call's lineage segment as one checkpoint file
// named by the new cumulative epoch count.
func (t *Trainer) saveCheckpoint(state *RunState) error {
	modelState, err := t.model.StateDict()
	if err != nil {
		return fmt.Errorf("failed to serialize model state: %v", err)
	}
	optimizerState, err := t.optimizer.StateDict()
	if err != nil {
		return fmt.Errorf("failed to serialize optimizer state: %v", err)
	}

	checkpoint := &checkpoints.Checkpoint{
		ModelState:     modelState,
		OptimizerState: optimizerState,
		Epoch:          make([]int, 0, len(state.History)),
		TrainLoss:      make([]float64, 0, len(state.History)),
		DevLoss:        make([]float64, 0, len(state.History)),
		DevAcc:         make([]float64, 0, len(state.History)),
	}
	for _, record := range state.History {
		checkpoint.Epoch = append(checkpoint.Epoch, record.Epoch)
		checkpoint.TrainLoss = append(checkpoint.TrainLoss, record.TrainLoss)
		checkpoint.DevLoss = append(checkpoint.DevLoss, record.DevLoss)
		checkpoint.DevAcc = append(checkpoint.DevAcc, record.DevAcc)
	}

	if err := t.checkpoints.Save(checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %v", err)
	}
	return nil
}

// Evaluate runs one validation-style pass over an arbitrary batch source
// and returns the per-sample scaled loss and mean accuracy. Training state
// is untouched: no scheduler step, no checkpoint.
func (t *Trainer) Evaluate(source BatchSource) (loss, accuracy float64, err error) {
	t.model.Eval()

	sum := 0.0
	var accuracies []float64
	pass := t.newValidationPass(source)
	for {
		result, ok, err := pass.Next()
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			break
		}
		sum += result.Loss
		accuracies = append(accuracies, result.Accuracy)
	}

	return t.perSampleLoss(sum, source.Len()), meanFloat64(accuracies), nil
}
