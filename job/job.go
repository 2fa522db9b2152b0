// Package job wires a config into a complete fine-tuning job: corpus,
// tokenizer, dataset, split, runs, checkpoints and report.
package job

import "os"
import "path/filepath"

import "github.com/pkg/errors"
import "go.uber.org/zap"

import "github.com/neurlang/finetune/checkpoint"
import "github.com/neurlang/finetune/config"
import "github.com/neurlang/finetune/datasets"
import "github.com/neurlang/finetune/datasets/topics"
import "github.com/neurlang/finetune/device"
import "github.com/neurlang/finetune/net/linear"
import "github.com/neurlang/finetune/random"
import "github.com/neurlang/finetune/report"
import "github.com/neurlang/finetune/tokenizer"
import "github.com/neurlang/finetune/trainer"

// Output files next to the run directories
const (
	ConfigFile = "config.yaml"
	ReportFile = "report.json"
	PlotFile   = "losses.png"
)

// Corpus loads the configured corpus, or generates the topics corpus
func Corpus(cfg config.Config) (*datasets.Store, error) {
	if cfg.Corpus != "" {
		return datasets.LoadFile(cfg.Corpus)
	}
	return topics.Dataslice{N: cfg.CorpusSize, Seed: cfg.RandomSeed}.Store(), nil
}

// Run executes the job described by cfg. When a run fails the returned report
// holds the runs completed before it and is still written to the output directory.
func Run(cfg config.Config, log *zap.Logger) (trainer.Report, error) {
	var rep trainer.Report
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.NumRuns < 1 {
		return rep, trainer.ErrNoRuns
	}
	if err := cfg.Validate(); err != nil {
		return rep, err
	}

	kind, err := device.Parse(cfg.Device)
	if err != nil {
		return rep, err
	}
	dev, err := device.Probe(kind)
	if err != nil {
		return rep, err
	}
	log.Info("device", zap.Stringer("device", dev))

	store, err := Corpus(cfg)
	if err != nil {
		return rep, err
	}
	tok, err := tokenizer.NewHashing(cfg.VocabSize, cfg.MaxSequenceLength)
	if err != nil {
		return rep, err
	}
	ds, err := datasets.NewDataset(store, tok, store.NumClasses())
	if err != nil {
		return rep, errors.Wrapf(err, "dataset")
	}

	rng := random.New(cfg.RandomSeed)
	train, val, err := datasets.Split(ds, cfg.TrainFraction, rng.Derive("split"))
	if err != nil {
		return rep, errors.Wrapf(err, "split")
	}
	var seen []string
	for _, i := range train.Indices() {
		seen = append(seen, store.At(i).Text)
	}
	tok.Fit(seen)

	log.Info("dataset",
		zap.Int("examples", ds.Len()),
		zap.Int("classes", ds.NumClasses()),
		zap.Int("train", train.Len()),
		zap.Int("validation", val.Len()),
		zap.Uint32("vocab", tok.VocabSize()),
	)

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return rep, errors.Wrapf(err, "output dir")
	}
	if err := cfg.Save(filepath.Join(cfg.OutputDir, ConfigFile)); err != nil {
		return rep, err
	}

	loop := &trainer.Loop{
		Config: trainer.Config{
			BatchSize:   cfg.BatchSize,
			MaxEpochs:   cfg.MaxEpochs,
			Patience:    cfg.Patience,
			RestoreBest: cfg.RestoreBest,
			Progress:    cfg.Progress,
		},
		Train:     train,
		Val:       val,
		Persister: &checkpoint.Writer{Dir: cfg.OutputDir, Tokenizer: tok, Logger: log},
		Logger:    log,
	}
	inits := linear.Initializer{
		Options: linear.Options{
			VocabSize:    tok.VocabSize(),
			EmbeddingDim: cfg.EmbeddingDim,
			NumClasses:   ds.NumClasses(),
			LearningRate: cfg.LearningRate,
		},
		Device: dev,
	}

	rep, err = trainer.RunMany(cfg.NumRuns, inits, loop, rng)
	if len(rep.Runs) > 0 {
		if werr := report.WriteJSON(filepath.Join(cfg.OutputDir, ReportFile), rep); werr != nil && err == nil {
			err = werr
		}
		if cfg.Plot {
			if perr := report.PlotLosses(filepath.Join(cfg.OutputDir, PlotFile), rep.Runs); perr != nil && err == nil {
				err = perr
			}
		}
	}
	return rep, err
}
