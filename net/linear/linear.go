// Package linear implements an embedding-bag softmax classifier over hashed token ids.
// It is the model collaborator the trainer fine-tunes.
package linear

import "math"

import "github.com/pkg/errors"

import "github.com/neurlang/finetune/datasets"
import "github.com/neurlang/finetune/device"
import "github.com/neurlang/finetune/parallel"
import "github.com/neurlang/finetune/random"

// Options are the model shape and optimizer settings
type Options struct {
	VocabSize    uint32
	EmbeddingDim int
	NumClasses   int

	LearningRate float64
	Beta1        float64 // default 0.9
	Beta2        float64 // default 0.999
	Epsilon      float64 // default 1e-8
	InitScale    float64 // standard deviation of initial weights, default 0.1
}

func (o *Options) defaults() {
	if o.Beta1 == 0 {
		o.Beta1 = 0.9
	}
	if o.Beta2 == 0 {
		o.Beta2 = 0.999
	}
	if o.Epsilon == 0 {
		o.Epsilon = 1e-8
	}
	if o.InitScale == 0 {
		o.InitScale = 0.1
	}
}

// Model is the classifier. A model must be bound to a device with ToDevice before use.
type Model struct {
	opts  Options
	dev   device.Device
	bound bool

	emb []float64 // [VocabSize][EmbeddingDim]
	w   []float64 // [EmbeddingDim][NumClasses]
	b   []float64 // [NumClasses]

	// adam moments, embedding rows are updated lazily
	mEmb, vEmb []float64
	mW, vW     []float64
	mB, vB     []float64
	step       int
}

// New allocates a model with weights drawn from rng
func New(opts Options, rng *random.Source) (*Model, error) {
	opts.defaults()
	if opts.VocabSize == 0 || opts.EmbeddingDim < 1 || opts.NumClasses < 2 {
		return nil, errors.Errorf("invalid model shape: vocab %d, dim %d, classes %d",
			opts.VocabSize, opts.EmbeddingDim, opts.NumClasses)
	}
	if !(opts.LearningRate > 0) {
		return nil, errors.Errorf("learning rate %g must be positive", opts.LearningRate)
	}
	var m = &Model{opts: opts}
	m.allocate()
	for i := range m.emb {
		m.emb[i] = rng.NormFloat64() * opts.InitScale
	}
	for i := range m.w {
		m.w[i] = rng.NormFloat64() * opts.InitScale
	}
	return m, nil
}

func (m *Model) allocate() {
	v, d, c := int(m.opts.VocabSize), m.opts.EmbeddingDim, m.opts.NumClasses
	m.emb = make([]float64, v*d)
	m.w = make([]float64, d*c)
	m.b = make([]float64, c)
	m.mEmb = make([]float64, v*d)
	m.vEmb = make([]float64, v*d)
	m.mW = make([]float64, d*c)
	m.vW = make([]float64, d*c)
	m.mB = make([]float64, c)
	m.vB = make([]float64, c)
}

// ToDevice binds the model to a compute device. The model only has CPU kernels,
// asking for CUDA fails with a device error.
func (m *Model) ToDevice(d device.Device) (*Model, error) {
	switch d.Kind {
	case device.CPU, device.AVX512:
	default:
		return nil, &device.Error{Kind: d.Kind, Reason: "linear model has no kernels for this device"}
	}
	if d.Threads < 1 {
		d.Threads = 1
	}
	m.dev = d
	m.bound = true
	return m, nil
}

// Device returns the bound device
func (m *Model) Device() device.Device {
	return m.dev
}

// Options returns the model options
func (m *Model) Options() Options {
	return m.opts
}

// row is the forward state of one example
type row struct {
	ids   []uint32 // unmasked ids
	h     []float64
	probs []float64
	loss  float64
}

func (m *Model) forward(ids []uint32, mask []uint8, label int) (r row) {
	d, c := m.opts.EmbeddingDim, m.opts.NumClasses
	r.h = make([]float64, d)
	for i, id := range ids {
		if mask[i] == 0 {
			continue
		}
		if id >= m.opts.VocabSize {
			id %= m.opts.VocabSize
		}
		r.ids = append(r.ids, id)
		e := m.emb[int(id)*d : int(id)*d+d]
		for j := range r.h {
			r.h[j] += e[j]
		}
	}
	if len(r.ids) > 0 {
		inv := 1 / float64(len(r.ids))
		for j := range r.h {
			r.h[j] *= inv
		}
	}

	r.probs = make([]float64, c)
	copy(r.probs, m.b)
	for j, hj := range r.h {
		wj := m.w[j*c : j*c+c]
		for k := range r.probs {
			r.probs[k] += hj * wj[k]
		}
	}
	softmax(r.probs)
	if label >= 0 {
		r.loss = -math.Log(math.Max(r.probs[label], 1e-12))
	}
	return
}

func softmax(x []float64) {
	top := x[0]
	for _, v := range x[1:] {
		if v > top {
			top = v
		}
	}
	var sum float64
	for i := range x {
		x[i] = math.Exp(x[i] - top)
		sum += x[i]
	}
	for i := range x {
		x[i] /= sum
	}
}

func argmax(x []float64) (o int) {
	for i := range x {
		if x[i] > x[o] {
			o = i
		}
	}
	return
}

func (m *Model) check(b datasets.Batch) error {
	if !m.bound {
		return &device.Error{Kind: device.Auto, Reason: "model is not bound to a device"}
	}
	if b.Len() == 0 {
		return errors.New("empty batch")
	}
	for _, l := range b.Labels {
		if l < 0 || l >= m.opts.NumClasses {
			return errors.Errorf("label %d outside %d classes", l, m.opts.NumClasses)
		}
	}
	return nil
}

func (m *Model) rows(b datasets.Batch, labels bool) []row {
	rows := make([]row, b.Len())
	parallel.ForEach(len(rows), m.dev.Threads, func(i int) {
		label := -1
		if labels {
			label = b.Labels[i]
		}
		rows[i] = m.forward(b.InputIDs[i], b.AttentionMask[i], label)
	})
	return rows
}

// ForwardBackward computes the mean cross-entropy of the batch and applies one Adam step
func (m *Model) ForwardBackward(b datasets.Batch) (float64, error) {
	if err := m.check(b); err != nil {
		return 0, err
	}
	d, c := m.opts.EmbeddingDim, m.opts.NumClasses
	rows := m.rows(b, true)
	scale := 1 / float64(len(rows))

	gW := make([]float64, d*c)
	gB := make([]float64, c)
	gEmb := make(map[uint32][]float64)
	var loss float64

	// reduce in row order, the sum is identical for every thread count
	for i := range rows {
		r := &rows[i]
		loss += r.loss
		dl := r.probs
		dl[b.Labels[i]] -= 1
		for k := range dl {
			dl[k] *= scale
			gB[k] += dl[k]
		}
		for j, hj := range r.h {
			for k := range dl {
				gW[j*c+k] += hj * dl[k]
			}
		}
		if len(r.ids) == 0 {
			continue
		}
		dh := make([]float64, d)
		inv := 1 / float64(len(r.ids))
		for j := range dh {
			wj := m.w[j*c : j*c+c]
			for k := range dl {
				dh[j] += wj[k] * dl[k]
			}
			dh[j] *= inv
		}
		for _, id := range r.ids {
			g := gEmb[id]
			if g == nil {
				g = make([]float64, d)
				gEmb[id] = g
			}
			for j := range g {
				g[j] += dh[j]
			}
		}
	}

	m.step++
	m.adam(m.w, m.mW, m.vW, gW)
	m.adam(m.b, m.mB, m.vB, gB)
	for id, g := range gEmb {
		lo, hi := int(id)*d, int(id)*d+d
		m.adam(m.emb[lo:hi], m.mEmb[lo:hi], m.vEmb[lo:hi], g)
	}
	return loss * scale, nil
}

func (m *Model) adam(p, mom, vel, g []float64) {
	o := m.opts
	c1 := 1 - math.Pow(o.Beta1, float64(m.step))
	c2 := 1 - math.Pow(o.Beta2, float64(m.step))
	for i := range p {
		mom[i] = o.Beta1*mom[i] + (1-o.Beta1)*g[i]
		vel[i] = o.Beta2*vel[i] + (1-o.Beta2)*g[i]*g[i]
		p[i] -= o.LearningRate * (mom[i] / c1) / (math.Sqrt(vel[i]/c2) + o.Epsilon)
	}
}

// ForwardOnly computes the mean cross-entropy and the predicted labels without updating anything
func (m *Model) ForwardOnly(b datasets.Batch) (float64, []int, error) {
	if err := m.check(b); err != nil {
		return 0, nil, err
	}
	rows := m.rows(b, true)
	predicted := make([]int, len(rows))
	var loss float64
	for i := range rows {
		loss += rows[i].loss
		predicted[i] = argmax(rows[i].probs)
	}
	return loss / float64(len(rows)), predicted, nil
}

// Predict returns the most probable class and the class probabilities of one encoded text
func (m *Model) Predict(ids []uint32, mask []uint8) (int, []float64) {
	r := m.forward(ids, mask, -1)
	return argmax(r.probs), r.probs
}
