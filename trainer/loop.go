package trainer

import "fmt"
import "time"

import "github.com/pkg/errors"
import "github.com/sbwhitecap/tqdm"
import "github.com/sbwhitecap/tqdm/iterators"
import "go.uber.org/zap"

import "github.com/neurlang/finetune/datasets"
import "github.com/neurlang/finetune/metrics"
import "github.com/neurlang/finetune/random"

// State is the loop state
type State int

const (
	Idle State = iota
	TrainingEpoch
	ValidatingEpoch
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case TrainingEpoch:
		return "training"
	case ValidatingEpoch:
		return "validating"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// StopReason tells why a run terminated
type StopReason int

const (
	StopPatience StopReason = iota + 1
	StopMaxEpochs
)

func (r StopReason) String() string {
	switch r {
	case StopPatience:
		return "patience exhausted"
	case StopMaxEpochs:
		return "max epochs reached"
	}
	return "not stopped"
}

// MarshalText encodes the reason by name
func (r StopReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// EpochMetrics is computed once per epoch
type EpochMetrics struct {
	Run          int           `json:"run"`
	Epoch        int           `json:"epoch"`
	AvgTrainLoss float64       `json:"avg_train_loss"`
	AvgValLoss   float64       `json:"avg_val_loss"`
	AvgValF1     float64       `json:"avg_val_f1"`
	ValAccuracy  float64       `json:"val_accuracy"`
	Decision     Decision      `json:"-"`
	Duration     time.Duration `json:"duration_ns"`
}

// RunSummary is the outcome of one run
type RunSummary struct {
	Run              int            `json:"run"`
	FinalBestValLoss float64        `json:"final_best_val_loss"`
	FinalAvgValF1    float64        `json:"final_avg_val_f1"`
	FinalValAccuracy float64        `json:"final_val_accuracy"`
	BestEpoch        int            `json:"best_epoch"`
	Epochs           int            `json:"epochs"`
	Reason           StopReason     `json:"reason"`
	History          []EpochMetrics `json:"history"`
}

// Config bounds one run
type Config struct {
	BatchSize   int
	MaxEpochs   int
	Patience    int
	RestoreBest bool // reload the best checkpoint before the final save
	Progress    bool // show a progress bar over training batches
}

// Loop drives the epochs of one run over fixed train and validation views
type Loop struct {
	Config    Config
	Train     datasets.View
	Val       datasets.View
	Persister Persister // optional
	Logger    *zap.Logger
	F1        F1Func

	// OnState is called on every state transition when set
	OnState func(run, epoch int, s State)
}

func (l *Loop) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

func (l *Loop) enter(run, epoch int, s State) {
	if l.OnState != nil {
		l.OnState(run, epoch, s)
	}
}

func (l *Loop) validate() error {
	if l.Config.MaxEpochs < 1 {
		return errors.Errorf("max epochs %d must be positive", l.Config.MaxEpochs)
	}
	if l.Config.Patience < 1 {
		return errors.Errorf("patience %d must be positive", l.Config.Patience)
	}
	if l.Train.Len() == 0 || l.Val.Len() == 0 {
		return errors.Errorf("empty partition: %d training, %d validation examples", l.Train.Len(), l.Val.Len())
	}
	return nil
}

// Run trains model until early stopping or the epoch ceiling. rng drives the
// training shuffle order. A failed run reports no partial metrics; earlier
// checkpoints stay on disk untouched.
func (l *Loop) Run(run int, model Model, rng *random.Source) (RunSummary, error) {
	if err := l.validate(); err != nil {
		return RunSummary{}, &RunError{Run: run, Phase: PhaseInit, Err: err}
	}
	f1 := l.F1
	if f1 == nil {
		f1 = metrics.WeightedF1
	}
	log := l.logger().With(zap.Int("run", run))

	train, err := datasets.NewBatcher(l.Train, l.Config.BatchSize, true, rng)
	if err != nil {
		return RunSummary{}, &RunError{Run: run, Phase: PhaseInit, Err: err}
	}
	val, err := datasets.NewBatcher(l.Val, l.Config.BatchSize, false, nil)
	if err != nil {
		return RunSummary{}, &RunError{Run: run, Phase: PhaseInit, Err: err}
	}

	var es = NewEarlyStopping(l.Config.Patience)
	var summary = RunSummary{Run: run}
	l.enter(run, 0, Idle)

	for epoch := 1; epoch <= l.Config.MaxEpochs; epoch++ {
		start := time.Now()
		var m = EpochMetrics{Run: run, Epoch: epoch}

		l.enter(run, epoch, TrainingEpoch)
		m.AvgTrainLoss, err = l.trainEpoch(train, model, fmt.Sprintf("run %d epoch %d", run, epoch))
		if err != nil {
			return RunSummary{}, &RunError{Run: run, Epoch: epoch, Phase: PhaseTrain, Err: err}
		}

		l.enter(run, epoch, ValidatingEpoch)
		m.AvgValLoss, m.AvgValF1, m.ValAccuracy, err = l.validateEpoch(val, model, f1)
		if err != nil {
			return RunSummary{}, &RunError{Run: run, Epoch: epoch, Phase: PhaseValidate, Err: err}
		}
		m.Duration = time.Since(start)

		m.Decision = es.Observe(m)
		summary.History = append(summary.History, m)
		summary.Epochs = epoch

		log.Info("epoch",
			zap.Int("epoch", epoch),
			zap.Float64("train_loss", m.AvgTrainLoss),
			zap.Float64("val_loss", m.AvgValLoss),
			zap.Float64("val_f1", m.AvgValF1),
			zap.Float64("val_accuracy", m.ValAccuracy),
			zap.Stringer("decision", m.Decision),
			zap.Duration("took", m.Duration),
		)

		if m.Decision == CheckpointContinue && l.Persister != nil {
			if err := l.Persister.Checkpoint(run, m, model); err != nil {
				return RunSummary{}, &RunError{Run: run, Epoch: epoch, Phase: PhaseCheckpoint, Err: err}
			}
		}
		if m.Decision == Stop {
			summary.Reason = StopPatience
			break
		}
	}
	if summary.Reason == 0 {
		summary.Reason = StopMaxEpochs
	}
	l.enter(run, summary.Epochs, Stopped)

	if es.BestEpoch() == 0 {
		return RunSummary{}, &RunError{Run: run, Epoch: summary.Epochs, Phase: PhaseValidate, Err: ErrNoImprovement}
	}

	last := summary.History[len(summary.History)-1]
	summary.FinalBestValLoss = es.Best()
	summary.BestEpoch = es.BestEpoch()
	summary.FinalAvgValF1 = last.AvgValF1
	summary.FinalValAccuracy = last.ValAccuracy

	log.Info("stopped",
		zap.Stringer("reason", summary.Reason),
		zap.Int("epochs", summary.Epochs),
		zap.Int("best_epoch", summary.BestEpoch),
		zap.Float64("best_val_loss", summary.FinalBestValLoss),
	)

	if l.Persister != nil {
		if bp, ok := l.Persister.(BestPather); ok && l.Config.RestoreBest && summary.BestEpoch > 0 {
			if err := model.LoadParameters(bp.BestPath(run)); err != nil {
				return RunSummary{}, &RunError{Run: run, Phase: PhaseFinal, Err: errors.Wrapf(err, "restore best")}
			}
		}
		if err := l.Persister.Final(run, summary, model); err != nil {
			return RunSummary{}, &RunError{Run: run, Phase: PhaseFinal, Err: err}
		}
	}
	return summary, nil
}

func (l *Loop) trainEpoch(b *datasets.Batcher, model Model, desc string) (float64, error) {
	var total float64
	var count int
	var err error
	step := func(batch datasets.Batch) bool {
		var loss float64
		loss, err = model.ForwardBackward(batch)
		if err != nil {
			return true
		}
		total += loss
		count++
		return false
	}

	pass := b.Pass()
	if l.Config.Progress {
		perr := tqdm.With(iterators.Interval(0, b.NumBatches()), desc, func(interface{}) (brk bool) {
			batch, ok := pass.Next()
			if !ok {
				return true
			}
			return step(batch)
		})
		if perr != nil && err == nil {
			err = perr
		}
	} else {
		for batch, ok := pass.Next(); ok; batch, ok = pass.Next() {
			if step(batch) {
				break
			}
		}
	}
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, errors.New("no training batches")
	}
	return total / float64(count), nil
}

func (l *Loop) validateEpoch(b *datasets.Batcher, model Model, f1 F1Func) (loss, avgF1, accuracy float64, err error) {
	var totalLoss, totalF1 float64
	var batches, correct, seen int

	pass := b.Pass()
	for batch, ok := pass.Next(); ok; batch, ok = pass.Next() {
		bl, predicted, err := model.ForwardOnly(batch)
		if err != nil {
			return 0, 0, 0, err
		}
		if len(predicted) != batch.Len() {
			return 0, 0, 0, errors.Errorf("model predicted %d labels for a batch of %d", len(predicted), batch.Len())
		}
		totalLoss += bl
		totalF1 += f1(batch.Labels, predicted)
		correct += metrics.CountEqual(predicted, batch.Labels)
		seen += batch.Len()
		batches++
	}
	if batches == 0 {
		return 0, 0, 0, errors.New("no validation batches")
	}
	return totalLoss / float64(batches), totalF1 / float64(batches), float64(correct) / float64(seen), nil
}
