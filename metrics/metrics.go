// Package metrics implements the classification metrics reported during validation
package metrics

import "sort"

// CountEqual counts positions where a and b agree
func CountEqual(a, b []int) (o int) {
	for i := range a {
		if i < len(b) && a[i] == b[i] {
			o++
		}
	}
	return
}

// Accuracy is CountEqual divided by the number of true labels, 0 for no labels
func Accuracy(trueLabels, predicted []int) float64 {
	if len(trueLabels) == 0 {
		return 0
	}
	return float64(CountEqual(trueLabels, predicted)) / float64(len(trueLabels))
}

// WeightedF1 computes the F1 score of every class present in either sequence and
// averages them weighted by the class support in trueLabels. A class with zero
// precision or recall denominator scores 0. Empty input scores 0.
func WeightedF1(trueLabels, predicted []int) float64 {
	if len(trueLabels) == 0 {
		return 0
	}
	tp := make(map[int]int)
	fp := make(map[int]int)
	support := make(map[int]int)
	for i, y := range trueLabels {
		support[y]++
		if i >= len(predicted) {
			continue
		}
		if p := predicted[i]; p == y {
			tp[y]++
		} else {
			fp[p]++
		}
	}

	classes := make([]int, 0, len(support))
	for c := range support {
		classes = append(classes, c)
	}
	// deterministic summation order
	sort.Ints(classes)

	var sum float64
	for _, c := range classes {
		fn := support[c] - tp[c]
		var f1 float64
		if d := 2*tp[c] + fp[c] + fn; d > 0 {
			f1 = 2 * float64(tp[c]) / float64(d)
		}
		sum += f1 * float64(support[c])
	}
	return sum / float64(len(trueLabels))
}

// PooledWeightedF1 computes WeightedF1 over all batches concatenated
func PooledWeightedF1(trueBatches, predictedBatches [][]int) float64 {
	var t, p []int
	for i := range trueBatches {
		t = append(t, trueBatches[i]...)
		p = append(p, predictedBatches[i]...)
	}
	return WeightedF1(t, p)
}
