// Package config holds the fine-tuning hyper-parameters. A Config is read
// from a YAML file and then overridden by command line flags.
package config

import "os"

import "github.com/pkg/errors"
import "gopkg.in/yaml.v2"

// Config is the full set of knobs of a fine-tuning job
type Config struct {
	// data
	Corpus        string  `yaml:"corpus" arg:"--corpus" help:"corpus file: .tsv of label<TAB>text or .jsonl of {text,label}, optionally .gz; empty for the built-in topics corpus"`
	CorpusSize    int     `yaml:"corpusSize" arg:"--corpus-size" help:"examples generated for the built-in corpus"`
	TrainFraction float64 `yaml:"trainFraction" arg:"--train-fraction" help:"share of examples used for training"`

	// tokenizer
	VocabSize         uint32 `yaml:"vocabSize" arg:"--vocab-size" help:"hash buckets, rounded up to a prime"`
	MaxSequenceLength int    `yaml:"maxSequenceLength" arg:"--max-sequence-length"`

	// model
	EmbeddingDim int     `yaml:"embeddingDim" arg:"--embedding-dim"`
	LearningRate float64 `yaml:"learningRate" arg:"--learning-rate"`
	Device       string  `yaml:"device" arg:"--device" help:"auto, cpu, avx512 or cuda"`

	// loop
	BatchSize   int   `yaml:"batchSize" arg:"--batch-size"`
	MaxEpochs   int   `yaml:"maxEpochs" arg:"--max-epochs"`
	Patience    int   `yaml:"patience" arg:"--patience" help:"epochs without improvement before stopping"`
	NumRuns     int   `yaml:"numRuns" arg:"--num-runs"`
	RandomSeed  int64 `yaml:"randomSeed" arg:"--seed"`
	RestoreBest bool  `yaml:"restoreBest" arg:"--restore-best" help:"save the best checkpoint as final instead of the last epoch"`

	// output
	OutputDir string `yaml:"outputDir" arg:"--out"`
	Plot      bool   `yaml:"plot" arg:"--plot" help:"draw loss curves to losses.png"`
	Progress  bool   `yaml:"progress" arg:"--progress"`
}

// Default returns the stock configuration
func Default() Config {
	return Config{
		CorpusSize:        2000,
		TrainFraction:     0.8,
		VocabSize:         16384,
		MaxSequenceLength: 512,
		EmbeddingDim:      16,
		LearningRate:      5e-5,
		Device:            "auto",
		BatchSize:         64,
		MaxEpochs:         5,
		Patience:          4,
		NumRuns:           1,
		RandomSeed:        42,
		OutputDir:         "finetune-out",
	}
}

// Overlay reads the YAML file at path on top of c. Unknown keys are an error.
func (c *Config) Overlay(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config")
	}
	if err := yaml.UnmarshalStrict(buf, c); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

// Load reads the YAML file at path over the defaults
func Load(path string) (Config, error) {
	c := Default()
	err := c.Overlay(path)
	return c, err
}

// Save writes c as YAML
func (c Config) Save(path string) error {
	buf, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrapf(err, "marshal config")
	}
	return errors.Wrapf(os.WriteFile(path, buf, 0644), "write config %s", path)
}

// Validate rejects values no job could run with
func (c Config) Validate() error {
	switch {
	case !(c.TrainFraction > 0 && c.TrainFraction < 1):
		return errors.Errorf("trainFraction %g must lie strictly between 0 and 1", c.TrainFraction)
	case c.BatchSize < 1:
		return errors.Errorf("batchSize %d must be positive", c.BatchSize)
	case c.MaxEpochs < 1:
		return errors.Errorf("maxEpochs %d must be positive", c.MaxEpochs)
	case c.Patience < 1:
		return errors.Errorf("patience %d must be positive", c.Patience)
	case c.NumRuns < 1:
		return errors.Errorf("numRuns %d must be positive", c.NumRuns)
	case !(c.LearningRate > 0):
		return errors.Errorf("learningRate %g must be positive", c.LearningRate)
	case c.MaxSequenceLength < 2:
		return errors.Errorf("maxSequenceLength %d must leave room for a token", c.MaxSequenceLength)
	case c.VocabSize < 3:
		return errors.Errorf("vocabSize %d is too small", c.VocabSize)
	case c.EmbeddingDim < 1:
		return errors.Errorf("embeddingDim %d must be positive", c.EmbeddingDim)
	case c.Corpus == "" && c.CorpusSize < 2:
		return errors.Errorf("corpusSize %d must be at least 2", c.CorpusSize)
	case c.OutputDir == "":
		return errors.New("outputDir is required")
	}
	return nil
}
