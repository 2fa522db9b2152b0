// Package inference classifies texts with a fine-tuned checkpoint
package inference

import "path/filepath"

import "github.com/pkg/errors"

import "github.com/neurlang/finetune/checkpoint"
import "github.com/neurlang/finetune/device"
import "github.com/neurlang/finetune/net/linear"
import "github.com/neurlang/finetune/parallel"
import "github.com/neurlang/finetune/tokenizer"

// Model predicts the class of one encoded text
type Model interface {
	Predict(ids []uint32, mask []uint8) (int, []float64)
}

// Prediction is the outcome for one text
type Prediction struct {
	Text        string    `json:"text"`
	Label       int       `json:"label"`
	Name        string    `json:"name,omitempty"`
	Probability float64   `json:"probability"`
	Probs       []float64 `json:"probs"`

	// Unseen is the share of words never met in training
	Unseen float64 `json:"unseen"`
}

// Classifier pairs a tokenizer with a model
type Classifier struct {
	Tokenizer *tokenizer.Hashing
	Model     Model
	Names     []string // optional class names by label
	Threads   int
}

// Load reads the tokenizer config and the model weights of a checkpoint
// directory, such as <out>/run-000/final
func Load(dir string, d device.Device) (*Classifier, error) {
	tok, err := tokenizer.LoadConfig(filepath.Join(dir, checkpoint.TokenizerFile))
	if err != nil {
		return nil, errors.Wrapf(err, "load classifier")
	}
	model, err := linear.Load(filepath.Join(dir, checkpoint.ModelFile), d)
	if err != nil {
		return nil, errors.Wrapf(err, "load classifier")
	}
	if model.Options().VocabSize != tok.VocabSize() {
		return nil, errors.Errorf("load classifier: tokenizer vocab %d, model vocab %d", tok.VocabSize(), model.Options().VocabSize)
	}
	return &Classifier{Tokenizer: tok, Model: model, Threads: d.Threads}, nil
}

// Classify predicts the class of text
func (c *Classifier) Classify(text string) Prediction {
	ids, mask := c.Tokenizer.EncodeOne(text)
	label, probs := c.Model.Predict(ids, mask)
	p := Prediction{
		Text:        text,
		Label:       label,
		Probability: probs[label],
		Probs:       probs,
		Unseen:      c.Tokenizer.UnseenShare(text),
	}
	if label < len(c.Names) {
		p.Name = c.Names[label]
	}
	return p
}

// ClassifyAll predicts every text concurrently, keeping the input order
func (c *Classifier) ClassifyAll(texts []string) []Prediction {
	out := make([]Prediction, len(texts))
	parallel.ForEach(len(texts), c.Threads, func(i int) {
		out[i] = c.Classify(texts[i])
	})
	return out
}
