// Package report writes the outcome of a fine-tuning job
package report

import "fmt"
import "io"

import "github.com/pkg/errors"
import "gonum.org/v1/plot"
import "gonum.org/v1/plot/plotter"
import "gonum.org/v1/plot/plotutil"
import "gonum.org/v1/plot/vg"

import "github.com/neurlang/finetune/checkpoint"
import "github.com/neurlang/finetune/trainer"

// WriteJSON writes the report to path
func WriteJSON(path string, r trainer.Report) error {
	return errors.Wrapf(checkpoint.WriteJSON(path, r), "report")
}

// PlotLosses draws the training and validation loss of every run against the
// epoch number and saves the chart to path. The image format follows the
// extension of path.
func PlotLosses(path string, runs []trainer.RunSummary) error {
	if len(runs) == 0 {
		return errors.Wrapf(trainer.ErrNoRuns, "plot losses")
	}
	p, err := plot.New()
	if err != nil {
		return errors.Wrapf(err, "plot losses")
	}
	p.Title.Text = "loss per epoch"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"

	var lines []interface{}
	for _, r := range runs {
		train, val := Curves(r)
		lines = append(lines,
			fmt.Sprintf("run %d train", r.Run), train,
			fmt.Sprintf("run %d val", r.Run), val,
		)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return errors.Wrapf(err, "plot losses")
	}
	return errors.Wrapf(p.Save(6*vg.Inch, 4*vg.Inch, path), "save %s", path)
}

// Curves returns the training and validation loss curves of a run
func Curves(r trainer.RunSummary) (train, val plotter.XYs) {
	train = make(plotter.XYs, len(r.History))
	val = make(plotter.XYs, len(r.History))
	for i, m := range r.History {
		train[i].X, train[i].Y = float64(m.Epoch), m.AvgTrainLoss
		val[i].X, val[i].Y = float64(m.Epoch), m.AvgValLoss
	}
	return
}

// Print writes a plain text table of the runs and their aggregate
func Print(w io.Writer, r trainer.Report) {
	fmt.Fprintf(w, "%-5s %-8s %-10s %-12s %-10s %s\n", "run", "epochs", "best", "val_loss", "val_f1", "reason")
	for _, s := range r.Runs {
		fmt.Fprintf(w, "%-5d %-8d %-10d %-12.6f %-10.4f %s\n",
			s.Run, s.Epochs, s.BestEpoch, s.FinalBestValLoss, s.FinalAvgValF1, s.Reason)
	}
	if a := r.Aggregate; a != nil {
		fmt.Fprintf(w, "val_loss %.6f ± %.6f, val_f1 %.4f ± %.4f over %d runs\n",
			a.MeanValLoss, a.StdValLoss, a.MeanValF1, a.StdValF1, a.Runs)
	}
}
