package trainer

import (
	"fmt"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/finetune/datasets"
	"github.com/neurlang/finetune/device"
	"github.com/neurlang/finetune/random"
	"github.com/neurlang/finetune/tokenizer"
)

// stubModel returns scripted losses, cycling through them one value per call
type stubModel struct {
	trainLosses []float64
	valLosses   []float64
	failTrainAt int // 1-based ForwardBackward call that fails with a device error
	zeros       bool

	trainCalls int
	valCalls   int
	loaded     []string
}

func (s *stubModel) ForwardBackward(b datasets.Batch) (float64, error) {
	s.trainCalls++
	if s.failTrainAt > 0 && s.trainCalls == s.failTrainAt {
		return 0, &device.Error{Kind: device.CUDA, Reason: "lost"}
	}
	return s.trainLosses[(s.trainCalls-1)%len(s.trainLosses)], nil
}

func (s *stubModel) ForwardOnly(b datasets.Batch) (float64, []int, error) {
	s.valCalls++
	predicted := make([]int, b.Len())
	if !s.zeros {
		copy(predicted, b.Labels)
	}
	return s.valLosses[(s.valCalls-1)%len(s.valLosses)], predicted, nil
}

func (s *stubModel) SaveParameters(path string) error {
	return nil
}

func (s *stubModel) LoadParameters(path string) error {
	s.loaded = append(s.loaded, path)
	return nil
}

type stubPersister struct {
	checkpoints []int
	finals      []RunSummary
}

func (p *stubPersister) Checkpoint(run int, m EpochMetrics, model Model) error {
	p.checkpoints = append(p.checkpoints, m.Epoch)
	return nil
}

func (p *stubPersister) Final(run int, s RunSummary, model Model) error {
	p.finals = append(p.finals, s)
	return nil
}

type bestPersister struct {
	stubPersister
}

func (p *bestPersister) BestPath(run int) string {
	return fmt.Sprintf("run-%d/best", run)
}

func views(t *testing.T, n int, fraction float64) (datasets.View, datasets.View) {
	texts := make([]string, n)
	labels := make([]int, n)
	for i := range texts {
		texts[i] = fmt.Sprint("example number ", i)
		labels[i] = i % 2
	}
	store, err := datasets.NewStore(texts, labels)
	require.NoError(t, err)
	tok, err := tokenizer.NewHashing(100, 4)
	require.NoError(t, err)
	ds, err := datasets.NewDataset(store, tok, 2)
	require.NoError(t, err)
	train, val, err := datasets.Split(ds, fraction, random.New(1))
	require.NoError(t, err)
	return train, val
}

func newLoop(t *testing.T, cfg Config, p Persister) *Loop {
	train, val := views(t, 100, 0.8)
	return &Loop{Config: cfg, Train: train, Val: val, Persister: p}
}

func metricsWithLoss(epoch int, loss float64) EpochMetrics {
	return EpochMetrics{Epoch: epoch, AvgValLoss: loss}
}

func TestEarlyStoppingDecreasing(t *testing.T) {
	es := NewEarlyStopping(2)
	require.True(t, math.IsInf(es.Best(), 1))
	for i := 0; i < 20; i++ {
		loss := 10 - 0.5*float64(i)
		require.Equal(t, CheckpointContinue, es.Observe(metricsWithLoss(i+1, loss)))
		require.Equal(t, loss, es.Best())
		require.Equal(t, 0, es.SinceImprovement())
	}
}

func TestEarlyStoppingPatience(t *testing.T) {
	es := NewEarlyStopping(3)
	require.Equal(t, CheckpointContinue, es.Observe(metricsWithLoss(1, 1.0)))
	// equal loss is not an improvement
	require.Equal(t, Continue, es.Observe(metricsWithLoss(2, 1.0)))
	require.Equal(t, Continue, es.Observe(metricsWithLoss(3, 1.5)))
	require.Equal(t, Stop, es.Observe(metricsWithLoss(4, 2.0)))
	require.Equal(t, 1.0, es.Best())
	require.Equal(t, 1, es.BestEpoch())
}

func TestEarlyStoppingResetsOnImprovement(t *testing.T) {
	es := NewEarlyStopping(2)
	require.Equal(t, CheckpointContinue, es.Observe(metricsWithLoss(1, 1.0)))
	require.Equal(t, Continue, es.Observe(metricsWithLoss(2, 1.1)))
	require.Equal(t, CheckpointContinue, es.Observe(metricsWithLoss(3, 0.9)))
	require.Equal(t, Continue, es.Observe(metricsWithLoss(4, 0.95)))
	require.Equal(t, Stop, es.Observe(metricsWithLoss(5, 0.95)))
}

func TestEarlyStoppingBestMonotone(t *testing.T) {
	rng := random.New(9)
	es := NewEarlyStopping(1000)
	prev := es.Best()
	for i := 0; i < 200; i++ {
		es.Observe(metricsWithLoss(i+1, rng.Float64()))
		require.True(t, es.Best() <= prev)
		prev = es.Best()
	}
}

func TestLoopAverages(t *testing.T) {
	// 80 training examples in 10 batches, 20 validation examples in batches of 8, 8, 4
	loop := newLoop(t, Config{BatchSize: 8, MaxEpochs: 1, Patience: 1}, nil)
	model := &stubModel{
		trainLosses: []float64{1, 2, 3, 4, 5},
		valLosses:   []float64{0.5, 1.0, 1.5},
	}
	s, err := loop.Run(0, model, random.New(1))
	require.NoError(t, err)
	require.Len(t, s.History, 1)
	require.Equal(t, 10, model.trainCalls)
	require.Equal(t, 3, model.valCalls)

	m := s.History[0]
	require.InDelta(t, 3.0, m.AvgTrainLoss, 1e-12)
	require.InDelta(t, 1.0, m.AvgValLoss, 1e-12)
	require.InDelta(t, 1.0, m.AvgValF1, 1e-12)
	require.InDelta(t, 1.0, m.ValAccuracy, 1e-12)
	require.Equal(t, StopMaxEpochs, s.Reason)
}

// Validation F1 is the mean of per-batch scores, not a pooled score.
func TestLoopF1IsPerBatchMean(t *testing.T) {
	loop := newLoop(t, Config{BatchSize: 8, MaxEpochs: 1, Patience: 1}, nil)
	scores := []float64{1.0, 0.0, 0.5}
	var calls int
	loop.F1 = func(trueLabels, predicted []int) float64 {
		calls++
		return scores[calls-1]
	}
	s, err := loop.Run(0, &stubModel{trainLosses: []float64{1}, valLosses: []float64{1}}, random.New(1))
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.InDelta(t, 0.5, s.FinalAvgValF1, 1e-12)
}

func TestLoopAccuracy(t *testing.T) {
	loop := newLoop(t, Config{BatchSize: 64, MaxEpochs: 1, Patience: 1}, nil)
	var zeros int
	for i := 0; i < loop.Val.Len(); i++ {
		if loop.Val.At(i).Label == 0 {
			zeros++
		}
	}
	s, err := loop.Run(0, &stubModel{trainLosses: []float64{1}, valLosses: []float64{1}, zeros: true}, random.New(1))
	require.NoError(t, err)
	require.InDelta(t, float64(zeros)/20, s.FinalValAccuracy, 1e-12)
}

func TestLoopPatienceAtMaxEpochs(t *testing.T) {
	p := &stubPersister{}
	loop := newLoop(t, Config{BatchSize: 64, MaxEpochs: 5, Patience: 4}, p)
	model := &stubModel{
		trainLosses: []float64{1},
		valLosses:   []float64{0.5, 0.6, 0.7, 0.8, 0.9},
	}
	s, err := loop.Run(0, model, random.New(1))
	require.NoError(t, err)

	require.Equal(t, 10, model.trainCalls) // 64 + 16 per epoch
	require.Equal(t, 5, model.valCalls)    // 20 per epoch
	require.Equal(t, 5, s.Epochs)
	require.Equal(t, StopPatience, s.Reason)
	require.Equal(t, "patience exhausted", s.Reason.String())
	require.Equal(t, 1, s.BestEpoch)
	require.Equal(t, 0.5, s.FinalBestValLoss)
	require.Equal(t, []int{1}, p.checkpoints)
	require.Len(t, p.finals, 1)
	require.Equal(t, Stop, s.History[4].Decision)
}

func TestLoopMaxEpochs(t *testing.T) {
	p := &stubPersister{}
	loop := newLoop(t, Config{BatchSize: 64, MaxEpochs: 3, Patience: 2}, p)
	s, err := loop.Run(0, &stubModel{trainLosses: []float64{1}, valLosses: []float64{0.9, 0.8, 0.7, 0.6}}, random.New(1))
	require.NoError(t, err)
	require.Equal(t, StopMaxEpochs, s.Reason)
	require.Equal(t, 3, s.Epochs)
	require.Equal(t, []int{1, 2, 3}, p.checkpoints)
	require.InDelta(t, 0.7, s.FinalBestValLoss, 1e-12)
}

func TestLoopStopsEarly(t *testing.T) {
	loop := newLoop(t, Config{BatchSize: 64, MaxEpochs: 10, Patience: 2}, nil)
	s, err := loop.Run(0, &stubModel{trainLosses: []float64{1}, valLosses: []float64{0.5, 0.6, 0.7, 0.1}}, random.New(1))
	require.NoError(t, err)
	require.Equal(t, 3, s.Epochs)
	require.Equal(t, StopPatience, s.Reason)
	require.Equal(t, 0.5, s.FinalBestValLoss)
}

func TestLoopStates(t *testing.T) {
	loop := newLoop(t, Config{BatchSize: 64, MaxEpochs: 2, Patience: 2}, nil)
	var states []State
	loop.OnState = func(run, epoch int, s State) {
		states = append(states, s)
	}
	_, err := loop.Run(0, &stubModel{trainLosses: []float64{1}, valLosses: []float64{1}}, random.New(1))
	require.NoError(t, err)
	require.Equal(t, []State{Idle, TrainingEpoch, ValidatingEpoch, TrainingEpoch, ValidatingEpoch, Stopped}, states)
}

func TestLoopDeviceErrorAborts(t *testing.T) {
	p := &stubPersister{}
	loop := newLoop(t, Config{BatchSize: 64, MaxEpochs: 5, Patience: 4}, p)
	model := &stubModel{trainLosses: []float64{1}, valLosses: []float64{0.5}, failTrainAt: 3}
	_, err := loop.Run(7, model, random.New(1))
	require.Error(t, err)

	var re *RunError
	require.True(t, errors.As(err, &re))
	require.Equal(t, 7, re.Run)
	require.Equal(t, 2, re.Epoch)
	require.Equal(t, PhaseTrain, re.Phase)

	var de *device.Error
	require.True(t, errors.As(err, &de))

	require.Equal(t, []int{1}, p.checkpoints)
	require.Empty(t, p.finals)
}

func TestLoopDivergedModel(t *testing.T) {
	p := &stubPersister{}
	loop := newLoop(t, Config{BatchSize: 64, MaxEpochs: 5, Patience: 2}, p)
	model := &stubModel{trainLosses: []float64{math.NaN()}, valLosses: []float64{math.NaN()}}
	_, err := loop.Run(1, model, random.New(1))
	require.True(t, errors.Is(err, ErrNoImprovement))

	var re *RunError
	require.True(t, errors.As(err, &re))
	require.Equal(t, 2, re.Epoch)
	require.Equal(t, PhaseValidate, re.Phase)
	require.Empty(t, p.checkpoints)
	require.Empty(t, p.finals)
}

func TestLoopRestoreBest(t *testing.T) {
	p := &bestPersister{}
	loop := newLoop(t, Config{BatchSize: 64, MaxEpochs: 3, Patience: 3, RestoreBest: true}, p)
	model := &stubModel{trainLosses: []float64{1}, valLosses: []float64{0.5, 0.6, 0.7}}
	_, err := loop.Run(2, model, random.New(1))
	require.NoError(t, err)
	require.Equal(t, []string{"run-2/best"}, model.loaded)
	require.Len(t, p.finals, 1)
}

func TestLoopInvalidConfig(t *testing.T) {
	for _, cfg := range []Config{
		{BatchSize: 0, MaxEpochs: 1, Patience: 1},
		{BatchSize: 8, MaxEpochs: 0, Patience: 1},
		{BatchSize: 8, MaxEpochs: 1, Patience: 0},
	} {
		loop := newLoop(t, cfg, nil)
		_, err := loop.Run(0, &stubModel{trainLosses: []float64{1}, valLosses: []float64{1}}, random.New(1))
		var re *RunError
		require.True(t, errors.As(err, &re))
		require.Equal(t, PhaseInit, re.Phase)
	}
}

// stubInit hands out stub models whose validation loss is run+1
type stubInit struct {
	calls  int
	failAt int // run index that fails, -1 never
}

func (s *stubInit) NewModel(run int, rng *random.Source) (Model, error) {
	s.calls++
	m := &stubModel{trainLosses: []float64{1}, valLosses: []float64{float64(run + 1)}}
	if run == s.failAt {
		m.failTrainAt = 1
	}
	return m, nil
}

func TestRunManyNoRuns(t *testing.T) {
	inits := &stubInit{failAt: -1}
	loop := newLoop(t, Config{BatchSize: 64, MaxEpochs: 1, Patience: 1}, nil)
	report, err := RunMany(0, inits, loop, random.New(42))
	require.Equal(t, ErrNoRuns, err)
	require.Equal(t, 0, inits.calls)
	require.Empty(t, report.Runs)
	require.Nil(t, report.Aggregate)
}

func TestRunManyAggregate(t *testing.T) {
	inits := &stubInit{failAt: -1}
	loop := newLoop(t, Config{BatchSize: 64, MaxEpochs: 2, Patience: 1}, nil)
	report, err := RunMany(3, inits, loop, random.New(42))
	require.NoError(t, err)
	require.Equal(t, 3, inits.calls)
	require.Len(t, report.Runs, 3)
	require.NotNil(t, report.Aggregate)
	for k, r := range report.Runs {
		require.Equal(t, k, r.Run)
		require.Equal(t, float64(k+1), r.FinalBestValLoss)
	}
	require.InDelta(t, 2.0, report.Aggregate.MeanValLoss, 1e-12)
	require.InDelta(t, math.Sqrt(2.0/3.0), report.Aggregate.StdValLoss, 1e-12)
	require.InDelta(t, 1.0, report.Aggregate.MeanValF1, 1e-12)
	require.InDelta(t, 0.0, report.Aggregate.StdValF1, 1e-12)
}

func TestRunManyFailureKeepsCompletedRuns(t *testing.T) {
	inits := &stubInit{failAt: 1}
	loop := newLoop(t, Config{BatchSize: 64, MaxEpochs: 2, Patience: 1}, nil)
	report, err := RunMany(3, inits, loop, random.New(42))
	require.Error(t, err)
	require.Equal(t, 2, inits.calls)
	require.Len(t, report.Runs, 1)
	require.Nil(t, report.Aggregate)

	var re *RunError
	require.True(t, errors.As(err, &re))
	require.Equal(t, 1, re.Run)
}

func TestAggregate(t *testing.T) {
	agg, err := Aggregate([]RunSummary{
		{FinalBestValLoss: 1.0, FinalAvgValF1: 0.5},
		{FinalBestValLoss: 2.0, FinalAvgValF1: 0.7},
		{FinalBestValLoss: 3.0, FinalAvgValF1: 0.9},
	})
	require.NoError(t, err)
	require.Equal(t, 3, agg.Runs)
	require.InDelta(t, 2.0, agg.MeanValLoss, 1e-12)
	require.InDelta(t, 0.8165, agg.StdValLoss, 1e-4)
	require.InDelta(t, 0.7, agg.MeanValF1, 1e-12)
	require.InDelta(t, math.Sqrt(0.08/3), agg.StdValF1, 1e-12)

	_, err = Aggregate(nil)
	require.Equal(t, ErrNoRuns, err)
}
