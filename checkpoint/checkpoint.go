// Package checkpoint persists the model, the tokenizer config and the epoch
// metrics of every run under an output directory:
//
//	<out>/run-000/best/{model.json.lzw,tokenizer.json,metrics.json}
//	<out>/run-000/final/{model.json.lzw,tokenizer.json,metrics.json}
//
// best is overwritten on every improvement, final is written once per run.
package checkpoint

import "encoding/json"
import "fmt"
import "os"
import "path/filepath"

import "github.com/dustin/go-humanize"
import "github.com/pkg/errors"
import "go.uber.org/zap"

import "github.com/neurlang/finetune/trainer"

const (
	ModelFile     = "model.json.lzw"
	TokenizerFile = "tokenizer.json"
	MetricsFile   = "metrics.json"

	bestDir  = "best"
	finalDir = "final"
)

// ConfigSaver writes a tokenizer config next to the model
type ConfigSaver interface {
	SaveConfig(path string) error
}

// Writer implements trainer.Persister and trainer.BestPather
type Writer struct {
	Dir       string
	Tokenizer ConfigSaver // optional
	Logger    *zap.Logger
}

// RunDir is the directory of run
func (w *Writer) RunDir(run int) string {
	return filepath.Join(w.Dir, fmt.Sprintf("run-%03d", run))
}

// BestPath is the model file of the best checkpoint of run
func (w *Writer) BestPath(run int) string {
	return filepath.Join(w.RunDir(run), bestDir, ModelFile)
}

// FinalDir is the directory of the final checkpoint of run
func (w *Writer) FinalDir(run int) string {
	return filepath.Join(w.RunDir(run), finalDir)
}

// Checkpoint saves the improving epoch of run as the best checkpoint
func (w *Writer) Checkpoint(run int, m trainer.EpochMetrics, model trainer.Model) error {
	return w.save(filepath.Join(w.RunDir(run), bestDir), m, model)
}

// Final saves the model as it is at the end of run
func (w *Writer) Final(run int, s trainer.RunSummary, model trainer.Model) error {
	return w.save(w.FinalDir(run), s, model)
}

func (w *Writer) save(dir string, metrics interface{}, model trainer.Model) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "checkpoint dir %s", dir)
	}
	path := filepath.Join(dir, ModelFile)
	if err := model.SaveParameters(path); err != nil {
		return errors.Wrapf(err, "checkpoint")
	}
	if w.Tokenizer != nil {
		if err := w.Tokenizer.SaveConfig(filepath.Join(dir, TokenizerFile)); err != nil {
			return errors.Wrapf(err, "checkpoint tokenizer")
		}
	}
	if err := WriteJSON(filepath.Join(dir, MetricsFile), metrics); err != nil {
		return errors.Wrapf(err, "checkpoint metrics")
	}

	if w.Logger != nil {
		var size uint64
		if fi, err := os.Stat(path); err == nil {
			size = uint64(fi.Size())
		}
		w.Logger.Info("checkpoint",
			zap.String("dir", dir),
			zap.String("model_size", humanize.Bytes(size)),
		)
	}
	return nil
}

// WriteJSON writes v indented to path
func WriteJSON(path string, v interface{}) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshal %s", path)
	}
	return errors.Wrapf(os.WriteFile(path, append(buf, '\n'), 0644), "write %s", path)
}

// ReadMetrics reads the metrics saved with a checkpoint into v
func ReadMetrics(dir string, v interface{}) error {
	buf, err := os.ReadFile(filepath.Join(dir, MetricsFile))
	if err != nil {
		return errors.Wrapf(err, "read metrics")
	}
	return errors.Wrapf(json.Unmarshal(buf, v), "decode metrics %s", dir)
}
