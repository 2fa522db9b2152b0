package topics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBalanced(t *testing.T) {
	s := Dataslice{N: 100, Seed: 1}.Store()
	require.Equal(t, 100, s.Len())
	require.Equal(t, 4, s.NumClasses())

	var counts [4]int
	for _, l := range s.Labels() {
		counts[l]++
	}
	require.Equal(t, [4]int{25, 25, 25, 25}, counts)
}

func TestDeterministic(t *testing.T) {
	a := Dataslice{N: 20, Seed: 7}.Store()
	b := Dataslice{N: 20, Seed: 7}.Store()
	c := Dataslice{N: 20, Seed: 8}.Store()
	require.Equal(t, a.Texts(), b.Texts())
	require.NotEqual(t, a.Texts(), c.Texts())
}

func TestTopicWordsOnly(t *testing.T) {
	s := Dataslice{N: 8, Seed: 3, TopicShare: 1}.Store()
	for i := 0; i < s.Len(); i++ {
		e := s.At(i)
		for _, w := range strings.Fields(strings.ToLower(e.Text)) {
			require.Contains(t, vocabulary[e.Label], w)
		}
	}
}
