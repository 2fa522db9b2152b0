package datasets

import "math"

import "github.com/neurlang/finetune/random"

// Split partitions the dataset into a training view of floor(trainFraction*N)
// examples and a validation view of the rest. Index assignment follows a
// permutation drawn from rng, so a fixed seed reproduces the split.
func Split(ds *Dataset, trainFraction float64, rng *random.Source) (train, val View, err error) {
	if !(trainFraction > 0 && trainFraction < 1) {
		return View{}, View{}, ErrInvalidFraction
	}
	n := ds.Len()
	size := int(math.Floor(trainFraction * float64(n)))
	if n < 2 || size < 1 || size >= n {
		return View{}, View{}, &InsufficientDataError{Len: n, TrainFraction: trainFraction}
	}
	perm := rng.Perm(n)
	train = View{ds: ds, idx: perm[:size:size]}
	val = View{ds: ds, idx: perm[size:]}
	return train, val, nil
}
