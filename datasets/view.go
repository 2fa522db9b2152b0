package datasets

// View is an immutable index view over a Dataset. Views share the underlying storage read-only.
type View struct {
	ds  *Dataset
	idx []int
}

// Len returns the number of examples in the view
func (v View) Len() int {
	return len(v.idx)
}

// At returns the n-th example of the view
func (v View) At(n int) Encoded {
	return v.ds.At(v.idx[n])
}

// Index maps a view position to the dataset index
func (v View) Index(n int) int {
	return v.idx[n]
}

// Indices returns a copy of the dataset indices covered by the view, in view order
func (v View) Indices() []int {
	return append([]int(nil), v.idx...)
}

// Dataset returns the underlying dataset
func (v View) Dataset() *Dataset {
	return v.ds
}
