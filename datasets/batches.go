package datasets

import "github.com/pkg/errors"

import "github.com/neurlang/finetune/random"

// Batch is a group of examples stacked along the first dimension
type Batch struct {
	InputIDs      [][]uint32 // [size][width]
	AttentionMask [][]uint8  // [size][width]
	Labels        []int      // [size]
	Indices       []int      // dataset indices of the rows
}

// Len returns the number of rows in the batch
func (b Batch) Len() int {
	return len(b.Labels)
}

// Batcher groups a view into fixed-size batches
type Batcher struct {
	view    View
	size    int
	shuffle bool
	rng     *random.Source
}

// NewBatcher creates a batch source over view. rng is required when shuffle is set.
func NewBatcher(view View, batchSize int, shuffle bool, rng *random.Source) (*Batcher, error) {
	if batchSize < 1 {
		return nil, ErrInvalidBatchSize
	}
	if shuffle && rng == nil {
		return nil, errors.New("shuffled batcher needs a random source")
	}
	return &Batcher{view: view, size: batchSize, shuffle: shuffle, rng: rng}, nil
}

// NumBatches returns the number of batches in one pass
func (b *Batcher) NumBatches() int {
	return (b.view.Len() + b.size - 1) / b.size
}

// Pass starts one full pass over the view. Each pass of a shuffling batcher draws a new order.
func (b *Batcher) Pass() *Pass {
	order := make([]int, b.view.Len())
	for i := range order {
		order[i] = i
	}
	if b.shuffle {
		b.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return &Pass{view: b.view, size: b.size, order: order}
}

// Pass is a finite, lazily built sequence of batches
type Pass struct {
	view  View
	size  int
	order []int
	pos   int
}

// Next returns the next batch, or false when the pass is exhausted
func (p *Pass) Next() (Batch, bool) {
	if p.pos >= len(p.order) {
		return Batch{}, false
	}
	end := p.pos + p.size
	if end > len(p.order) {
		end = len(p.order)
	}
	n := end - p.pos
	batch := Batch{
		InputIDs:      make([][]uint32, n),
		AttentionMask: make([][]uint8, n),
		Labels:        make([]int, n),
		Indices:       make([]int, n),
	}
	for i, pos := range p.order[p.pos:end] {
		e := p.view.At(pos)
		batch.InputIDs[i] = e.InputIDs
		batch.AttentionMask[i] = e.AttentionMask
		batch.Labels[i] = e.Label
		batch.Indices[i] = p.view.Index(pos)
	}
	p.pos = end
	return batch, true
}
