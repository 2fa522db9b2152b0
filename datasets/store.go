package datasets

// LabeledExample is one raw text with its class label
type LabeledExample struct {
	Text  string
	Label int
}

// Store holds the corpus as two index-aligned sequences
type Store struct {
	texts  []string
	labels []int
}

// NewStore creates a store. texts and labels must have the same length.
func NewStore(texts []string, labels []int) (*Store, error) {
	if len(texts) != len(labels) {
		return nil, &EncodingError{Field: "labels", Expected: len(texts), Got: len(labels), Row: -1}
	}
	return &Store{
		texts:  append([]string(nil), texts...),
		labels: append([]int(nil), labels...),
	}, nil
}

// Append adds one example
func (s *Store) Append(e LabeledExample) {
	s.texts = append(s.texts, e.Text)
	s.labels = append(s.labels, e.Label)
}

// Len returns the number of examples
func (s *Store) Len() int {
	return len(s.texts)
}

// At returns the n-th example
func (s *Store) At(n int) LabeledExample {
	return LabeledExample{Text: s.texts[n], Label: s.labels[n]}
}

// Texts returns the texts. The slice must not be modified.
func (s *Store) Texts() []string {
	return s.texts
}

// Labels returns the labels. The slice must not be modified.
func (s *Store) Labels() []int {
	return s.labels
}

// NumClasses returns the largest label plus one, or 0 for an empty store
func (s *Store) NumClasses() (o int) {
	for _, l := range s.labels {
		if l+1 > o {
			o = l + 1
		}
	}
	return
}
