package trainer

import "github.com/neurlang/finetune/datasets"
import "github.com/neurlang/finetune/random"

// Model is the trainable classifier the loop drives. Implementations are bound
// to their compute device when constructed.
type Model interface {

	// ForwardBackward computes the mean batch loss and applies one parameter update
	ForwardBackward(b datasets.Batch) (loss float64, err error)

	// ForwardOnly computes the mean batch loss and predicted labels in inference
	// mode: no parameter update and no gradient bookkeeping.
	ForwardOnly(b datasets.Batch) (loss float64, predicted []int, err error)

	SaveParameters(path string) error
	LoadParameters(path string) error
}

// Initializer constructs a fresh, device-bound model for every run
type Initializer interface {
	NewModel(run int, rng *random.Source) (Model, error)
}

// Persister stores checkpoints. Checkpoint is called on every improvement,
// Final once when a run terminates.
type Persister interface {
	Checkpoint(run int, m EpochMetrics, model Model) error
	Final(run int, s RunSummary, model Model) error
}

// BestPather is implemented by persisters which can point at the best
// checkpoint of a run, enabling Config.RestoreBest.
type BestPather interface {
	BestPath(run int) string
}

// F1Func scores predicted labels against true labels
type F1Func func(trueLabels, predicted []int) float64
