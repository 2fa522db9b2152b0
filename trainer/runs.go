package trainer

import "fmt"

import "github.com/montanaflynn/stats"
import "github.com/pkg/errors"
import "go.uber.org/zap"

import "github.com/neurlang/finetune/random"

// AggregateSummary is the spread of the final metrics across runs
type AggregateSummary struct {
	Runs        int     `json:"runs"`
	MeanValLoss float64 `json:"mean_val_loss"`
	StdValLoss  float64 `json:"std_val_loss"`
	MeanValF1   float64 `json:"mean_val_f1"`
	StdValF1    float64 `json:"std_val_f1"`
}

// Report collects the completed runs and, when all of them completed, their aggregate
type Report struct {
	Runs      []RunSummary      `json:"runs"`
	Aggregate *AggregateSummary `json:"aggregate,omitempty"`
}

// RunMany performs n independent runs of loop, each with a fresh model and a
// fresh early-stopping state. Run k draws its model initialization from the
// "run/k/init" stream of rng and its shuffle order from "run/k/shuffle".
// A failing run aborts the aggregation; the returned report keeps the runs
// completed before it.
func RunMany(n int, initializer Initializer, loop *Loop, rng *random.Source) (Report, error) {
	var report Report
	if n <= 0 {
		return report, ErrNoRuns
	}
	log := loop.logger()

	for k := 0; k < n; k++ {
		model, err := initializer.NewModel(k, rng.Derive(fmt.Sprintf("run/%d/init", k)))
		if err != nil {
			return report, &RunError{Run: k, Phase: PhaseInit, Err: err}
		}
		summary, err := loop.Run(k, model, rng.Derive(fmt.Sprintf("run/%d/shuffle", k)))
		if err != nil {
			return report, err
		}
		report.Runs = append(report.Runs, summary)
	}

	agg, err := Aggregate(report.Runs)
	if err != nil {
		return report, err
	}
	report.Aggregate = &agg

	log.Info("aggregate",
		zap.Int("runs", agg.Runs),
		zap.Float64("mean_val_loss", agg.MeanValLoss),
		zap.Float64("std_val_loss", agg.StdValLoss),
		zap.Float64("mean_val_f1", agg.MeanValF1),
		zap.Float64("std_val_f1", agg.StdValF1),
	)
	return report, nil
}

// Aggregate computes the mean and population standard deviation of the best
// validation loss and of the final validation F1 over runs
func Aggregate(runs []RunSummary) (AggregateSummary, error) {
	if len(runs) == 0 {
		return AggregateSummary{}, ErrNoRuns
	}
	var losses, f1s stats.Float64Data
	for _, r := range runs {
		losses = append(losses, r.FinalBestValLoss)
		f1s = append(f1s, r.FinalAvgValF1)
	}

	var agg = AggregateSummary{Runs: len(runs)}
	var err error
	if agg.MeanValLoss, err = stats.Mean(losses); err != nil {
		return AggregateSummary{}, errors.Wrapf(err, "mean validation loss")
	}
	if agg.StdValLoss, err = stats.StandardDeviationPopulation(losses); err != nil {
		return AggregateSummary{}, errors.Wrapf(err, "std validation loss")
	}
	if agg.MeanValF1, err = stats.Mean(f1s); err != nil {
		return AggregateSummary{}, errors.Wrapf(err, "mean validation f1")
	}
	if agg.StdValF1, err = stats.StandardDeviationPopulation(f1s); err != nil {
		return AggregateSummary{}, errors.Wrapf(err, "std validation f1")
	}
	return agg, nil
}
