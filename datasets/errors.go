package datasets

import "fmt"

import "github.com/pkg/errors"

// ErrInvalidFraction is returned when the train fraction is outside (0, 1)
var ErrInvalidFraction = errors.New("train fraction must be inside (0, 1)")

// ErrInvalidBatchSize is returned for batch sizes below 1
var ErrInvalidBatchSize = errors.New("batch size must be positive")

// EncodingError reports a length mismatch between the corpus and its encoded features
type EncodingError struct {
	Field    string
	Expected int
	Got      int
	Row      int // -1 when the mismatch is a row count
}

func (e *EncodingError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("encoding: field %s row %d has width %d, expected %d", e.Field, e.Row, e.Got, e.Expected)
	}
	return fmt.Sprintf("encoding: field %s has %d rows, expected %d", e.Field, e.Got, e.Expected)
}

// LabelRangeError reports a label outside [0, NumClasses)
type LabelRangeError struct {
	Index      int
	Label      int
	NumClasses int
}

func (e *LabelRangeError) Error() string {
	return fmt.Sprintf("label %d at index %d is outside [0, %d)", e.Label, e.Index, e.NumClasses)
}

// InsufficientDataError reports a dataset too small to yield non-empty train and validation sets
type InsufficientDataError struct {
	Len           int
	TrainFraction float64
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("dataset of %d examples cannot be split with train fraction %g", e.Len, e.TrainFraction)
}
