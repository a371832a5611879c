package checkpoints

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"
)

// History is the merged metric record of every checkpoint in a directory.
// Lineages saved from divergent resume points may overlap; no de-duplication
// is performed, so the same epoch index can appear more than once.
type History struct {
	Epochs    []int
	TrainLoss []float64
	DevLoss   []float64
	DevAcc    []float64
}

// Len returns the number of merged history entries.
func (h *History) Len() int {
	return len(h.Epochs)
}

// append extends the history with one checkpoint's parallel sequences.
func (h *History) append(c *Checkpoint) {
	h.Epochs = append(h.Epochs, c.Epoch...)
	h.TrainLoss = append(h.TrainLoss, c.TrainLoss...)
	h.DevLoss = append(h.DevLoss, c.DevLoss...)
	h.DevAcc = append(h.DevAcc, c.DevAcc...)
}

// SortByEpoch orders the merged entries by epoch ascending. The sort is
// stable so overlapping lineages keep their scan order within an epoch.
func (h *History) SortByEpoch() {
	idx := make([]int, len(h.Epochs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return h.Epochs[idx[a]] < h.Epochs[idx[b]]
	})

	sorted := History{
		Epochs:    make([]int, len(idx)),
		TrainLoss: make([]float64, len(idx)),
		DevLoss:   make([]float64, len(idx)),
		DevAcc:    make([]float64, len(idx)),
	}
	for i, j := range idx {
		sorted.Epochs[i] = h.Epochs[j]
		sorted.TrainLoss[i] = h.TrainLoss[j]
		sorted.DevLoss[i] = h.DevLoss[j]
		sorted.DevAcc[i] = h.DevAcc[j]
	}
	*h = sorted
}

// ScanHistory enumerates every checkpoint file under dir and merges their
// metric histories. A file that cannot be read or parsed is logged and
// skipped; one corrupt checkpoint never blocks reporting on the rest.
func (m *Manager) ScanHistory() (*History, error) {
	return ScanHistory(m.dir)
}

// ScanHistory merges the metric history of all checkpoints under dir.
func ScanHistory(dir string) (*History, error) {
	pattern := filepath.Join(dir, "checkpoint_*.pth")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan checkpoint directory: %v", err)
	}
	sort.Strings(paths)

	loader := NewManager(dir)
	history := &History{}
	for _, path := range paths {
		checkpoint, err := loader.Load(path)
		if err != nil {
			log.Printf("warning: skipping checkpoint %s: %v", path, err)
			continue
		}
		history.append(checkpoint)
	}

	return history, nil
}
