package linear

import "compress/lzw"
import "encoding/json"
import "io"
import "os"

import "github.com/pkg/errors"

import "github.com/neurlang/finetune/device"
import "github.com/neurlang/finetune/random"

const weightsVersion = 1

type weights struct {
	Version      int       `json:"version"`
	VocabSize    uint32    `json:"vocab_size"`
	EmbeddingDim int       `json:"embedding_dim"`
	NumClasses   int       `json:"num_classes"`
	Embedding    []float64 `json:"embedding"`
	Weights      []float64 `json:"weights"`
	Bias         []float64 `json:"bias"`
}

// SaveParameters writes the model weights to a lzw compressed json file
func (m *Model) SaveParameters(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	err = m.WriteCompressedWeights(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "save parameters %s", path)
}

// WriteCompressedWeights writes model weights to a writer
func (m *Model) WriteCompressedWeights(w io.Writer) error {
	lw := lzw.NewWriter(w, lzw.LSB, 8)
	err := json.NewEncoder(lw).Encode(weights{
		Version:      weightsVersion,
		VocabSize:    m.opts.VocabSize,
		EmbeddingDim: m.opts.EmbeddingDim,
		NumClasses:   m.opts.NumClasses,
		Embedding:    m.emb,
		Weights:      m.w,
		Bias:         m.b,
	})
	if err != nil {
		lw.Close()
		return err
	}
	return lw.Close()
}

// LoadParameters reads model weights written by SaveParameters. The shapes must match.
func (m *Model) LoadParameters(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()
	return errors.Wrapf(m.ReadCompressedWeights(file), "load parameters %s", path)
}

// ReadCompressedWeights reads model weights from a reader
func (m *Model) ReadCompressedWeights(r io.Reader) error {
	lr := lzw.NewReader(r, lzw.LSB, 8)
	defer lr.Close()

	var in weights
	if err := json.NewDecoder(lr).Decode(&in); err != nil {
		return err
	}
	if in.Version != weightsVersion {
		return errors.Errorf("unsupported weights version %d", in.Version)
	}
	if in.VocabSize != m.opts.VocabSize || in.EmbeddingDim != m.opts.EmbeddingDim || in.NumClasses != m.opts.NumClasses {
		return errors.Errorf("weights shape vocab %d dim %d classes %d, model has vocab %d dim %d classes %d",
			in.VocabSize, in.EmbeddingDim, in.NumClasses, m.opts.VocabSize, m.opts.EmbeddingDim, m.opts.NumClasses)
	}
	if len(in.Embedding) != len(m.emb) || len(in.Weights) != len(m.w) || len(in.Bias) != len(m.b) {
		return errors.New("truncated weights")
	}
	copy(m.emb, in.Embedding)
	copy(m.w, in.Weights)
	copy(m.b, in.Bias)
	return nil
}

// ReadShape reads only the shape of saved weights, for building a model to load them into
func ReadShape(path string) (Options, error) {
	file, err := os.Open(path)
	if err != nil {
		return Options{}, errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()
	lr := lzw.NewReader(file, lzw.LSB, 8)
	defer lr.Close()

	var in weights
	if err := json.NewDecoder(lr).Decode(&in); err != nil {
		return Options{}, errors.Wrapf(err, "decode %s", path)
	}
	return Options{VocabSize: in.VocabSize, EmbeddingDim: in.EmbeddingDim, NumClasses: in.NumClasses}, nil
}

// Load builds a model of the saved shape, reads its weights and binds it to d.
// The optimizer state starts fresh.
func Load(path string, d device.Device) (*Model, error) {
	opts, err := ReadShape(path)
	if err != nil {
		return nil, err
	}
	opts.LearningRate = 1
	m, err := New(opts, random.New(0))
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	if err := m.LoadParameters(path); err != nil {
		return nil, err
	}
	return m.ToDevice(d)
}
