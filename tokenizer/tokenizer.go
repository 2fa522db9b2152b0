// Package tokenizer implements a hashing word tokenizer with fixed padding and truncation.
package tokenizer

import "encoding/json"
import "os"
import "strings"
import "unicode"

import "github.com/jbarham/primegen"
import "github.com/neurlang/quaternary"
import "github.com/pkg/errors"

import "github.com/neurlang/finetune/datasets"
import "github.com/neurlang/finetune/hash"

// Reserved ids
const (
	PadID uint32 = 0
	ClsID uint32 = 1

	reserved = 2
)

// Config is the persisted tokenizer configuration
type Config struct {
	VocabSize uint32 `json:"vocab_size"`
	MaxLength int    `json:"max_length"`
	Salt      uint32 `json:"salt"`
	Lowercase bool   `json:"lowercase"`

	// Seen is a quaternary filter over the buckets observed by Fit
	Seen     []byte `json:"seen,omitempty"`
	SeenSize int    `json:"seen_size"`
}

// Hashing maps words to vocabulary buckets with the modular hash
type Hashing struct {
	cfg    Config
	seen   map[uint32]bool   // set by Fit
	filter quaternary.Filter // built from seen, or restored from a config
}

// Prime returns the smallest prime >= n
func Prime(n uint32) uint32 {
	pg := primegen.New()
	for {
		p := pg.Next()
		if p >= uint64(n) {
			return uint32(p)
		}
	}
}

// NewHashing creates a tokenizer with at least vocabSize ids (rounded up to a prime)
// which pads and truncates every text to maxLength ids.
func NewHashing(vocabSize uint32, maxLength int) (*Hashing, error) {
	if maxLength < 1 {
		return nil, errors.Errorf("max sequence length %d must be positive", maxLength)
	}
	if vocabSize <= reserved {
		return nil, errors.Errorf("vocabulary size %d must exceed %d reserved ids", vocabSize, reserved)
	}
	return &Hashing{
		cfg: Config{
			VocabSize: Prime(vocabSize),
			MaxLength: maxLength,
			Lowercase: true,
		},
	}, nil
}

// FromConfig restores a tokenizer from its configuration
func FromConfig(cfg Config) (*Hashing, error) {
	if cfg.MaxLength < 1 || cfg.VocabSize <= reserved {
		return nil, errors.Errorf("invalid tokenizer config: vocab %d, max length %d", cfg.VocabSize, cfg.MaxLength)
	}
	h := &Hashing{cfg: cfg}
	if len(cfg.Seen) > 0 {
		h.filter = quaternary.Filter(cfg.Seen)
	}
	return h, nil
}

// Config returns the configuration including the filter of seen buckets.
// The filter holds an answer for every word bucket, so lookups are exact.
func (h *Hashing) Config() Config {
	if h.seen != nil && h.filter == nil {
		all := make(map[uint32]bool, h.cfg.VocabSize-reserved)
		for id := uint32(reserved); id < h.cfg.VocabSize; id++ {
			all[id] = h.seen[id]
		}
		h.filter = quaternary.Make(all)
		h.cfg.Seen = []byte(h.filter)
		h.cfg.SeenSize = len(h.seen)
	}
	return h.cfg
}

// Seen reports whether the word bucket id occurred in the fitted texts.
// A tokenizer that was never fitted has seen every bucket.
func (h *Hashing) Seen(id uint32) bool {
	switch {
	case h.seen != nil:
		return h.seen[id]
	case h.filter != nil:
		return h.filter.GetUint32(id)
	}
	return true
}

// UnseenShare returns the share of words of text whose bucket never occurred
// in the fitted texts, 0 for a text without words
func (h *Hashing) UnseenShare(text string) float64 {
	words := h.Words(text)
	if len(words) == 0 {
		return 0
	}
	var unseen int
	for _, w := range words {
		if !h.Seen(h.ID(w)) {
			unseen++
		}
	}
	return float64(unseen) / float64(len(words))
}

// VocabSize returns the number of ids, including reserved ones
func (h *Hashing) VocabSize() uint32 {
	return h.cfg.VocabSize
}

// MaxLength returns the padded width
func (h *Hashing) MaxLength() int {
	return h.cfg.MaxLength
}

// Words splits text into words on runs of non letter, non digit runes
func (h *Hashing) Words(text string) []string {
	if h.cfg.Lowercase {
		text = strings.ToLower(text)
	}
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ID maps one word to its bucket
func (h *Hashing) ID(word string) uint32 {
	return reserved + hash.String(word, h.cfg.Salt, h.cfg.VocabSize-reserved)
}

// Fit records which buckets occur in texts. It does not change the mapping.
func (h *Hashing) Fit(texts []string) {
	if h.seen == nil {
		h.seen = make(map[uint32]bool)
	}
	h.filter = nil
	for _, text := range texts {
		for _, w := range h.Words(text) {
			h.seen[h.ID(w)] = true
		}
	}
}

// EncodeOne encodes a single text: [CLS] followed by word ids, truncated and padded
func (h *Hashing) EncodeOne(text string) (ids []uint32, mask []uint8) {
	ids = make([]uint32, h.cfg.MaxLength)
	mask = make([]uint8, h.cfg.MaxLength)
	ids[0], mask[0] = ClsID, 1
	pos := 1
	for _, w := range h.Words(text) {
		if pos >= h.cfg.MaxLength {
			break
		}
		ids[pos], mask[pos] = h.ID(w), 1
		pos++
	}
	return
}

// Encode implements datasets.Encoder
func (h *Hashing) Encode(texts []string) (f datasets.Features, err error) {
	f.InputIDs = make([][]uint32, len(texts))
	f.AttentionMask = make([][]uint8, len(texts))
	for i, text := range texts {
		f.InputIDs[i], f.AttentionMask[i] = h.EncodeOne(text)
	}
	return f, nil
}

// SaveConfig writes the configuration as JSON
func (h *Hashing) SaveConfig(path string) error {
	data, err := json.MarshalIndent(h.Config(), "", "\t")
	if err != nil {
		return errors.Wrapf(err, "marshal tokenizer config")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0666), "write tokenizer config %s", path)
}

// LoadConfig reads a tokenizer from a JSON configuration
func LoadConfig(path string) (*Hashing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read tokenizer config %s", path)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse tokenizer config %s", path)
	}
	return FromConfig(cfg)
}
