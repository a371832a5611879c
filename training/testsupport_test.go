package training

import (
	"encoding/json"
	"fmt"
)

// eventLog records the order of collaborator calls so tests can assert the
// training protocol's sequencing.
type eventLog struct {
	events []string
}

func (l *eventLog) add(event string) {
	l.events = append(l.events, event)
}

// fakeModel implements Model and SequenceCriterion with behavior derived
// from batch content: the NLL of a batch is float64(labels[0][0]), and
// Decode recovers the batch's input IDs from the emissions, so tests
// control loss via labels and accuracy via inputIDs-vs-labels agreement.
type fakeModel struct {
	log         *eventLog
	training    bool
	gradsFinite func(call int) bool // nil means always finite
	backwards   int
	scaledLoss  []float64 // loss values passed to Backward
	unscales    []float64 // factors passed to ScaleGradients
	state       json.RawMessage
	failForward bool
}

func newFakeModel(log *eventLog) *fakeModel {
	return &fakeModel{log: log, training: true, state: json.RawMessage(`{"weights":[0]}`)}
}

func (m *fakeModel) Forward(inputIDs [][]int, mask [][]bool) (Emissions, error) {
	if m.log != nil {
		m.log.add("forward")
	}
	if m.failForward {
		return nil, fmt.Errorf("scripted forward failure")
	}
	scores := make(Emissions, len(inputIDs))
	for i, seq := range inputIDs {
		scores[i] = make([][]float64, len(seq))
		for j, id := range seq {
			scores[i][j] = []float64{float64(id)}
		}
	}
	return scores, nil
}

func (m *fakeModel) Criterion() SequenceCriterion { return m }

func (m *fakeModel) Score(scores Emissions, labels [][]int, mask [][]bool, reduction string) (float64, error) {
	if m.log != nil {
		m.log.add("score")
	}
	if len(labels) == 0 || len(labels[0]) == 0 {
		return 0, fmt.Errorf("empty labels")
	}
	return -float64(labels[0][0]), nil
}

func (m *fakeModel) Decode(scores Emissions, mask [][]bool) ([][]int, error) {
	decoded := make([][]int, len(scores))
	for i, seq := range scores {
		decoded[i] = make([]int, len(seq))
		for j, token := range seq {
			decoded[i][j] = int(token[0])
		}
	}
	return decoded, nil
}

func (m *fakeModel) Backward(loss float64) error {
	if m.log != nil {
		m.log.add("backward")
	}
	m.backwards++
	m.scaledLoss = append(m.scaledLoss, loss)
	return nil
}

func (m *fakeModel) ScaleGradients(factor float64) error {
	if m.log != nil {
		m.log.add("unscale")
	}
	m.unscales = append(m.unscales, factor)
	return nil
}

func (m *fakeModel) GradientsFinite() bool {
	if m.gradsFinite == nil {
		return true
	}
	return m.gradsFinite(m.backwards)
}

func (m *fakeModel) Train()           { m.training = true }
func (m *fakeModel) Eval()            { m.training = false }
func (m *fakeModel) IsTraining() bool { return m.training }

func (m *fakeModel) StateDict() (json.RawMessage, error) { return m.state, nil }

func (m *fakeModel) LoadStateDict(state json.RawMessage) error {
	m.state = state
	return nil
}

// fakeOptimizer records protocol events and carries a mutable LR.
type fakeOptimizer struct {
	log   *eventLog
	lr    float64
	steps int
	zeros int
}

func newFakeOptimizer(log *eventLog, lr float64) *fakeOptimizer {
	return &fakeOptimizer{log: log, lr: lr}
}

func (o *fakeOptimizer) Step() error {
	if o.log != nil {
		o.log.add("step")
	}
	o.steps++
	return nil
}

func (o *fakeOptimizer) ZeroGrad() {
	if o.log != nil {
		o.log.add("zero")
	}
	o.zeros++
}

func (o *fakeOptimizer) GetLR() float64   { return o.lr }
func (o *fakeOptimizer) SetLR(lr float64) { o.lr = lr }

func (o *fakeOptimizer) StateDict() (json.RawMessage, error) {
	return json.Marshal(map[string]float64{"lr": o.lr})
}

func (o *fakeOptimizer) LoadStateDict(state json.RawMessage) error {
	var decoded map[string]float64
	if err := json.Unmarshal(state, &decoded); err != nil {
		return err
	}
	o.lr = decoded["lr"]
	return nil
}

// recordingScheduler captures every monitored metric it is stepped with.
type recordingScheduler struct {
	metrics []float64
}

func (s *recordingScheduler) Step(metric float64) { s.metrics = append(s.metrics, metric) }
func (s *recordingScheduler) GetName() string     { return "Recording" }

// uniformBatch builds a batch whose loss (under fakeModel) is loss and
// whose decoded-vs-labels agreement is exact, for size sequences of the
// given length.
func uniformBatch(loss int, size, seqLen int) *Batch {
	inputIDs := make([][]int, size)
	mask := make([][]bool, size)
	labels := make([][]int, size)
	for i := 0; i < size; i++ {
		inputIDs[i] = make([]int, seqLen)
		mask[i] = make([]bool, seqLen)
		labels[i] = make([]int, seqLen)
		for j := 0; j < seqLen; j++ {
			inputIDs[i][j] = loss
			mask[i][j] = true
			labels[i][j] = loss
		}
	}
	return &Batch{InputIDs: inputIDs, AttentionMask: mask, Labels: labels}
}

// mustSource wraps NewSliceBatchSource for test setup.
func mustSource(batches ...*Batch) *SliceBatchSource {
	source, err := NewSliceBatchSource(batches)
	if err != nil {
		panic(err)
	}
	return source
}
