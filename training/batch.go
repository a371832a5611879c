package training

import "fmt"

// Batch groups the three parallel views of a batch of labeled sequences.
// All three share batch size and sequence length.
type Batch struct {
	InputIDs      [][]int
	AttentionMask [][]bool
	Labels        [][]int
}

// Size returns the number of sequences in the batch.
func (b *Batch) Size() int {
	return len(b.InputIDs)
}

// Validate checks the shared-shape invariant across the three fields.
func (b *Batch) Validate() error {
	if len(b.AttentionMask) != len(b.InputIDs) || len(b.Labels) != len(b.InputIDs) {
		return fmt.Errorf("batch size mismatch: input_ids=%d attention_mask=%d labels=%d",
			len(b.InputIDs), len(b.AttentionMask), len(b.Labels))
	}
	for i := range b.InputIDs {
		n := len(b.InputIDs[i])
		if len(b.AttentionMask[i]) != n || len(b.Labels[i]) != n {
			return fmt.Errorf("sequence length mismatch at index %d: input_ids=%d attention_mask=%d labels=%d",
				i, n, len(b.AttentionMask[i]), len(b.Labels[i]))
		}
	}
	return nil
}

// BatchSource supplies batches one pass at a time. Reset starts a new pass;
// Next returns a nil batch when the current pass is exhausted. Iteration
// order and batching policy belong to the implementation.
type BatchSource interface {
	Len() int               // number of batches per pass
	Reset()                 // begin a new pass
	Next() (*Batch, error)  // next batch, or nil at end of pass
}

// SliceBatchSource serves a fixed slice of pre-built batches. It covers
// tests and small in-memory datasets.
type SliceBatchSource struct {
	batches  []*Batch
	position int
}

// NewSliceBatchSource validates every batch up front and returns a source
// positioned at the start of its first pass.
func NewSliceBatchSource(batches []*Batch) (*SliceBatchSource, error) {
	for i, batch := range batches {
		if err := batch.Validate(); err != nil {
			return nil, fmt.Errorf("invalid batch %d: %v", i, err)
		}
	}
	return &SliceBatchSource{batches: batches}, nil
}

// Len returns the number of batches per pass.
func (s *SliceBatchSource) Len() int {
	return len(s.batches)
}

// Reset starts a new pass over the batches.
func (s *SliceBatchSource) Reset() {
	s.position = 0
}

// Next returns the next batch, or nil once the pass is complete.
func (s *SliceBatchSource) Next() (*Batch, error) {
	if s.position >= len(s.batches) {
		return nil, nil
	}
	batch := s.batches[s.position]
	s.position++
	return batch, nil
}
