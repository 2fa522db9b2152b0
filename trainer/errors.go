package trainer

import "fmt"

import "github.com/pkg/errors"

// ErrNoRuns is returned by RunMany when asked for zero runs
var ErrNoRuns = errors.New("number of runs must be positive")

// ErrNoImprovement is the cause of a run whose validation loss never became
// finite, which means the model diverged
var ErrNoImprovement = errors.New("validation loss never improved, the model diverged")

// Phase names the part of a run an error happened in
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseTrain      Phase = "train"
	PhaseValidate   Phase = "validate"
	PhaseCheckpoint Phase = "checkpoint"
	PhaseFinal      Phase = "final"
)

// RunError is a fatal error inside a run, with the context needed to diagnose it
type RunError struct {
	Run   int
	Epoch int // 0 outside the epoch loop
	Phase Phase
	Err   error
}

func (e *RunError) Error() string {
	if e.Epoch > 0 {
		return fmt.Sprintf("run %d epoch %d %s: %v", e.Run, e.Epoch, e.Phase, e.Err)
	}
	return fmt.Sprintf("run %d %s: %v", e.Run, e.Phase, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Cause() error {
	return e.Err
}
