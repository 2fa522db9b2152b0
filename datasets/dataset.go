// Package datasets implements the labeled corpus, the tokenized dataset,
// the train/validation partitioner and the batch source.
package datasets

import "github.com/pkg/errors"

// Feature names of the fixed tensor fields every dataset carries
const (
	FieldInputIDs      = "input_ids"
	FieldAttentionMask = "attention_mask"
)

// Features is the encoder output for a whole corpus, one row per text.
// All rows share the same width.
type Features struct {
	InputIDs      [][]uint32
	AttentionMask [][]uint8
}

// Encoder encodes texts into padded, truncated features
type Encoder interface {
	Encode(texts []string) (Features, error)
}

// Encoded is one tokenized example
type Encoded struct {
	InputIDs      []uint32
	AttentionMask []uint8
	Label         int
}

// Dataset is an immutable, indexable collection of encoded examples
type Dataset struct {
	features   Features
	labels     []int
	width      int
	numClasses int
}

// NewDataset encodes the whole store once and validates the result
func NewDataset(store *Store, enc Encoder, numClasses int) (*Dataset, error) {
	n := store.Len()
	for i, l := range store.labels {
		if l < 0 || l >= numClasses {
			return nil, &LabelRangeError{Index: i, Label: l, NumClasses: numClasses}
		}
	}
	f, err := enc.Encode(store.texts)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %d texts", n)
	}
	if len(f.InputIDs) != n {
		return nil, &EncodingError{Field: FieldInputIDs, Expected: n, Got: len(f.InputIDs), Row: -1}
	}
	if len(f.AttentionMask) != n {
		return nil, &EncodingError{Field: FieldAttentionMask, Expected: n, Got: len(f.AttentionMask), Row: -1}
	}
	var width int
	if n > 0 {
		width = len(f.InputIDs[0])
	}
	for i := 0; i < n; i++ {
		if len(f.InputIDs[i]) != width {
			return nil, &EncodingError{Field: FieldInputIDs, Expected: width, Got: len(f.InputIDs[i]), Row: i}
		}
		if len(f.AttentionMask[i]) != width {
			return nil, &EncodingError{Field: FieldAttentionMask, Expected: width, Got: len(f.AttentionMask[i]), Row: i}
		}
	}
	return &Dataset{
		features:   f,
		labels:     append([]int(nil), store.labels...),
		width:      width,
		numClasses: numClasses,
	}, nil
}

// Len returns the number of examples
func (d *Dataset) Len() int {
	return len(d.labels)
}

// Width returns the padded sequence length shared by all examples
func (d *Dataset) Width() int {
	return d.width
}

// NumClasses returns the declared class count
func (d *Dataset) NumClasses() int {
	return d.numClasses
}

// At returns the n-th encoded example. The returned slices must not be modified.
func (d *Dataset) At(n int) Encoded {
	return Encoded{
		InputIDs:      d.features.InputIDs[n],
		AttentionMask: d.features.AttentionMask[n],
		Label:         d.labels[n],
	}
}

// All returns a view over the whole dataset in index order
func (d *Dataset) All() View {
	idx := make([]int, d.Len())
	for i := range idx {
		idx[i] = i
	}
	return View{ds: d, idx: idx}
}
