package checkpoints

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanHistoryMergesLineages(t *testing.T) {
	manager := NewManager(t.TempDir())

	// Two Fit calls: epochs 1-2 in checkpoint_2.pth, 3-5 in checkpoint_5.pth.
	if err := manager.Save(sampleCheckpoint(1, 2)); err != nil {
		t.Fatal(err)
	}
	if err := manager.Save(sampleCheckpoint(3, 4, 5)); err != nil {
		t.Fatal(err)
	}

	history, err := manager.ScanHistory()
	if err != nil {
		t.Fatalf("ScanHistory failed: %v", err)
	}
	if history.Len() != 5 {
		t.Fatalf("expected 5 merged entries, got %d", history.Len())
	}

	history.SortByEpoch()
	for i, epoch := range history.Epochs {
		if epoch != i+1 {
			t.Errorf("entry %d: expected epoch %d, got %d", i, i+1, epoch)
		}
	}
	if len(history.TrainLoss) != 5 || len(history.DevLoss) != 5 || len(history.DevAcc) != 5 {
		t.Error("metric sequences not parallel after merge")
	}
}

func TestScanHistorySkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	manager := NewManager(dir)

	if err := manager.Save(sampleCheckpoint(1)); err != nil {
		t.Fatal(err)
	}
	if err := manager.Save(sampleCheckpoint(2)); err != nil {
		t.Fatal(err)
	}
	garbage := filepath.Join(dir, "checkpoint_3.pth")
	if err := os.WriteFile(garbage, []byte("not a checkpoint"), 0644); err != nil {
		t.Fatal(err)
	}

	history, err := manager.ScanHistory()
	if err != nil {
		t.Fatalf("ScanHistory failed: %v", err)
	}
	if history.Len() != 2 {
		t.Errorf("expected the 2 valid checkpoints only, got %d entries", history.Len())
	}
}

func TestScanHistoryIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	manager := NewManager(dir)

	if err := manager.Save(sampleCheckpoint(1)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "training_metrics.html"), []byte("<html>"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}

	history, err := manager.ScanHistory()
	if err != nil {
		t.Fatalf("ScanHistory failed: %v", err)
	}
	if history.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", history.Len())
	}
}

func TestScanHistoryEmptyDirectory(t *testing.T) {
	history, err := ScanHistory(t.TempDir())
	if err != nil {
		t.Fatalf("ScanHistory failed: %v", err)
	}
	if history.Len() != 0 {
		t.Errorf("expected empty history, got %d entries", history.Len())
	}
}

func TestSortByEpochIsStable(t *testing.T) {
	history := &History{
		Epochs:    []int{3, 1, 3, 2},
		TrainLoss: []float64{30, 10, 31, 20},
		DevLoss:   []float64{3, 1, 3, 2},
		DevAcc:    []float64{0.3, 0.1, 0.3, 0.2},
	}
	history.SortByEpoch()

	wantEpochs := []int{1, 2, 3, 3}
	wantTrain := []float64{10, 20, 30, 31}
	for i := range wantEpochs {
		if history.Epochs[i] != wantEpochs[i] || history.TrainLoss[i] != wantTrain[i] {
			t.Fatalf("sorted history = %v/%v, want %v/%v",
				history.Epochs, history.TrainLoss, wantEpochs, wantTrain)
		}
	}
}
