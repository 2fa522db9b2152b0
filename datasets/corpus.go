package datasets

import "bufio"
import "compress/gzip"
import "encoding/json"
import "io"
import "os"
import "strconv"
import "strings"

import "github.com/pkg/errors"

// ReadTSV reads "label<TAB>text" lines into a store. Empty lines are skipped.
func ReadTSV(r io.Reader) (*Store, error) {
	var s = new(Store)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		columns := strings.SplitN(text, "\t", 2)
		if len(columns) != 2 {
			return nil, errors.Errorf("line %d: expected label and text separated by a tab", line)
		}
		label, err := strconv.Atoi(strings.TrimSpace(columns[0]))
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: label", line)
		}
		s.Append(LabeledExample{Text: columns[1], Label: label})
	}
	return s, errors.Wrapf(scanner.Err(), "read tsv")
}

// ReadJSONL reads one {"text": ..., "label": ...} object per line into a store
func ReadJSONL(r io.Reader) (*Store, error) {
	var s = new(Store)
	dec := json.NewDecoder(r)
	for n := 0; ; n++ {
		var e struct {
			Text  string `json:"text"`
			Label *int   `json:"label"`
		}
		err := dec.Decode(&e)
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", n)
		}
		if e.Label == nil {
			return nil, errors.Errorf("record %d: missing label", n)
		}
		s.Append(LabeledExample{Text: e.Text, Label: *e.Label})
	}
}

// LoadFile reads a corpus by extension: .tsv or .jsonl, optionally gzipped
func LoadFile(path string) (*Store, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open corpus")
	}
	defer file.Close()

	var r io.Reader = file
	name := path
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, errors.Wrapf(err, "gunzip %s", path)
		}
		defer gz.Close()
		r = gz
		name = strings.TrimSuffix(name, ".gz")
	}

	var s *Store
	switch {
	case strings.HasSuffix(name, ".tsv"):
		s, err = ReadTSV(r)
	case strings.HasSuffix(name, ".jsonl"), strings.HasSuffix(name, ".json"):
		s, err = ReadJSONL(r)
	default:
		return nil, errors.Errorf("corpus %s: unknown format, want .tsv or .jsonl", path)
	}
	return s, errors.Wrapf(err, "corpus %s", path)
}
