package trainer

import "math"

// Decision is the early-stopping verdict for one epoch
type Decision int

const (
	Continue Decision = iota
	CheckpointContinue
	Stop
)

func (d Decision) String() string {
	switch d {
	case Continue:
		return "continue"
	case CheckpointContinue:
		return "checkpoint"
	case Stop:
		return "stop"
	}
	return "unknown"
}

// EarlyStopping tracks the best validation loss. It never performs I/O, the
// caller persists the model on CheckpointContinue.
type EarlyStopping struct {
	patience         int
	best             float64
	bestEpoch        int
	sinceImprovement int
}

// NewEarlyStopping creates a controller stopping after patience epochs without improvement
func NewEarlyStopping(patience int) *EarlyStopping {
	return &EarlyStopping{
		patience: patience,
		best:     math.Inf(1),
	}
}

// Observe consumes the metrics of one epoch
func (e *EarlyStopping) Observe(m EpochMetrics) Decision {
	if m.AvgValLoss < e.best {
		e.best = m.AvgValLoss
		e.bestEpoch = m.Epoch
		e.sinceImprovement = 0
		return CheckpointContinue
	}
	e.sinceImprovement++
	if e.sinceImprovement >= e.patience {
		return Stop
	}
	return Continue
}

// Best returns the best validation loss seen, +Inf before the first epoch
func (e *EarlyStopping) Best() float64 {
	return e.best
}

// BestEpoch returns the epoch of the best validation loss, 0 if none
func (e *EarlyStopping) BestEpoch() int {
	return e.bestEpoch
}

// SinceImprovement returns the number of consecutive epochs without improvement
func (e *EarlyStopping) SinceImprovement() int {
	return e.sinceImprovement
}
