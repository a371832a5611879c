package checkpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Sentinel errors for checkpoint loading. Callers distinguish a missing file
// (resume target does not exist) from a file that exists but cannot be used.
var (
	ErrNotFound = errors.New("checkpoint not found")
	ErrCorrupt  = errors.New("checkpoint corrupt")
)

// Checkpoint is one persisted training snapshot: opaque model and optimizer
// state blobs plus the metric history recorded by the fit call that wrote it.
// The four history sequences are parallel and cover the epoch range
// [Epoch[0], Epoch[len-1]] of the writing call only.
type Checkpoint struct {
	ModelState     json.RawMessage `json:"model_state_dict"`
	OptimizerState json.RawMessage `json:"optimizer_state_dict"`

	Epoch     []int     `json:"epoch"`
	TrainLoss []float64 `json:"train_loss"`
	DevLoss   []float64 `json:"dev_loss"`
	DevAcc    []float64 `json:"dev_acc"`

	Metadata Metadata `json:"metadata"`
}

// Metadata contains checkpoint provenance information.
type Metadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// Last returns the lineage's most recent epoch, train loss, and dev accuracy.
// Used for logging when a run resumes from this checkpoint.
func (c *Checkpoint) Last() (epoch int, trainLoss, devAcc float64) {
	n := len(c.Epoch)
	if n == 0 {
		return 0, 0, 0
	}
	return c.Epoch[n-1], c.TrainLoss[n-1], c.DevAcc[n-1]
}

// validate checks the structural invariants a loadable checkpoint must hold.
func (c *Checkpoint) validate() error {
	if c.ModelState == nil {
		return fmt.Errorf("missing model_state_dict")
	}
	if c.OptimizerState == nil {
		return fmt.Errorf("missing optimizer_state_dict")
	}
	if len(c.Epoch) == 0 {
		return fmt.Errorf("missing epoch sequence")
	}
	if len(c.TrainLoss) != len(c.Epoch) || len(c.DevLoss) != len(c.Epoch) || len(c.DevAcc) != len(c.Epoch) {
		return fmt.Errorf("metric sequences not parallel: epoch=%d train_loss=%d dev_loss=%d dev_acc=%d",
			len(c.Epoch), len(c.TrainLoss), len(c.DevLoss), len(c.DevAcc))
	}
	return nil
}

// Manager owns checkpoint file identity and serialization for one directory.
type Manager struct {
	dir string
}

// NewManager creates a checkpoint manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Dir returns the managed checkpoint directory.
func (m *Manager) Dir() string {
	return m.dir
}

// PathFor returns the file path for the checkpoint identified by the given
// cumulative epoch count.
func (m *Manager) PathFor(epoch int) string {
	return filepath.Join(m.dir, fmt.Sprintf("checkpoint_%d.pth", epoch))
}

// Save writes the checkpoint to a file identified by the final value of its
// epoch sequence. An existing file with that identity is overwritten.
func (m *Manager) Save(checkpoint *Checkpoint) error {
	if err := checkpoint.validate(); err != nil {
		return fmt.Errorf("refusing to save invalid checkpoint: %v", err)
	}

	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata.Framework = "ykz-deeplearning-env"
		checkpoint.Metadata.Version = "1.0.0"
		checkpoint.Metadata.CreatedAt = time.Now()
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %v", err)
	}

	path := m.PathFor(checkpoint.Epoch[len(checkpoint.Epoch)-1])
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}

	return nil
}

// Load reads a checkpoint file. A missing file yields ErrNotFound; malformed
// JSON or a structurally incomplete checkpoint yields ErrCorrupt.
func (m *Manager) Load(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %v", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	if err := checkpoint.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	return &checkpoint, nil
}

// LoadEpoch reads the checkpoint identified by a cumulative epoch count.
func (m *Manager) LoadEpoch(epoch int) (*Checkpoint, error) {
	return m.Load(m.PathFor(epoch))
}
