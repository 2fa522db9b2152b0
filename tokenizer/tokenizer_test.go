package tokenizer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neurlang/finetune/datasets"
)

func TestPrime(t *testing.T) {
	require.Equal(t, uint32(2), Prime(0))
	require.Equal(t, uint32(2), Prime(2))
	require.Equal(t, uint32(11), Prime(8))
	require.Equal(t, uint32(97), Prime(97))
	require.Equal(t, uint32(32771), Prime(32768))
}

func TestNewHashingValidation(t *testing.T) {
	_, err := NewHashing(1000, 0)
	require.Error(t, err)
	_, err = NewHashing(2, 8)
	require.Error(t, err)
}

func TestEncodeShape(t *testing.T) {
	h, err := NewHashing(1000, 6)
	require.NoError(t, err)
	require.Equal(t, uint32(1009), h.VocabSize())

	f, err := h.Encode([]string{"The match ended, 2-1!", "", "one two three four five six seven"})
	require.NoError(t, err)
	require.Len(t, f.InputIDs, 3)
	require.Len(t, f.AttentionMask, 3)

	for i := range f.InputIDs {
		require.Len(t, f.InputIDs[i], 6)
		require.Len(t, f.AttentionMask[i], 6)
		require.Equal(t, ClsID, f.InputIDs[i][0])
		for _, id := range f.InputIDs[i] {
			require.True(t, id < h.VocabSize())
		}
	}
	// the, match, ended, 2, 1
	require.Equal(t, []uint8{1, 1, 1, 1, 1, 1}, f.AttentionMask[0])
	// empty text keeps only [CLS]
	require.Equal(t, []uint8{1, 0, 0, 0, 0, 0}, f.AttentionMask[1])
	require.Equal(t, []uint32{ClsID, PadID, PadID, PadID, PadID, PadID}, f.InputIDs[1])
	// truncated
	require.Equal(t, []uint8{1, 1, 1, 1, 1, 1}, f.AttentionMask[2])
}

func TestEncodeCaseInsensitive(t *testing.T) {
	h, err := NewHashing(1000, 4)
	require.NoError(t, err)
	a, _ := h.EncodeOne("Goal scored")
	b, _ := h.EncodeOne("goal SCORED")
	require.Equal(t, a, b)
	require.Equal(t, []string{"goal", "scored"}, h.Words("Goal... scored!"))
}

func TestEncoderInterface(t *testing.T) {
	h, err := NewHashing(100, 3)
	require.NoError(t, err)
	var _ datasets.Encoder = h

	s, err := datasets.NewStore([]string{"a b", "c"}, []int{0, 1})
	require.NoError(t, err)
	ds, err := datasets.NewDataset(s, h, 2)
	require.NoError(t, err)
	require.Equal(t, 3, ds.Width())
}

func TestConfigRoundTrip(t *testing.T) {
	h, err := NewHashing(500, 16)
	require.NoError(t, err)
	h.Fit([]string{"rain and wind", "sunny weather"})
	cfg := h.Config()
	require.True(t, cfg.SeenSize > 0 && cfg.SeenSize <= 5)
	require.NotEmpty(t, cfg.Seen)

	path := filepath.Join(t.TempDir(), "tokenizer.json")
	require.NoError(t, h.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, h.VocabSize(), loaded.VocabSize())
	require.Equal(t, h.MaxLength(), loaded.MaxLength())

	a, _ := h.EncodeOne("windy rain")
	b, _ := loaded.EncodeOne("windy rain")
	require.Equal(t, a, b)
}

func TestSeenSurvivesConfig(t *testing.T) {
	h, err := NewHashing(500, 16)
	require.NoError(t, err)
	h.Fit([]string{"rain and wind", "sunny weather"})

	path := filepath.Join(t.TempDir(), "tokenizer.json")
	require.NoError(t, h.SaveConfig(path))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)

	var seen int
	for id := uint32(reserved); id < h.VocabSize(); id++ {
		require.Equal(t, h.Seen(id), loaded.Seen(id), "bucket %d", id)
		if loaded.Seen(id) {
			seen++
		}
	}
	require.Equal(t, h.Config().SeenSize, seen)
}

func TestUnseenShare(t *testing.T) {
	h, err := NewHashing(500, 16)
	require.NoError(t, err)
	require.Equal(t, 0.0, h.UnseenShare("anything at all"))

	h.Fit([]string{"rain and wind"})
	require.Equal(t, 0.0, h.UnseenShare("Wind and RAIN"))
	require.Equal(t, 0.0, h.UnseenShare("!!"))

	fitted := map[uint32]bool{h.ID("rain"): true, h.ID("and"): true, h.ID("wind"): true}
	require.False(t, fitted[h.ID("snow")])
	require.Equal(t, 0.5, h.UnseenShare("rain snow"))
}

func TestFitRebuildsFilter(t *testing.T) {
	h, err := NewHashing(500, 16)
	require.NoError(t, err)
	h.Fit([]string{"rain"})
	before := h.Config().SeenSize
	h.Fit([]string{"snow"})
	require.True(t, h.Config().SeenSize >= before)

	loaded, err := FromConfig(h.Config())
	require.NoError(t, err)
	require.True(t, loaded.Seen(h.ID("snow")))
	require.True(t, loaded.Seen(h.ID("rain")))
}
