// Package topics implements a synthetic news headline dataset of four topics.
// Every headline mixes words of its topic with shared filler words, so the
// classes are separable but not trivially so.
package topics

import "strings"

import "github.com/neurlang/finetune/datasets"
import "github.com/neurlang/finetune/random"

const (
	Sports = iota
	Politics
	Science
	Food
)

// Names are the class names by label
var Names = []string{"sports", "politics", "science", "food"}

var vocabulary = [][]string{
	Sports:   {"match", "goal", "league", "coach", "striker", "season", "tournament", "referee", "stadium", "champion", "penalty", "transfer"},
	Politics: {"election", "senate", "minister", "vote", "campaign", "parliament", "policy", "coalition", "treaty", "governor", "ballot", "reform"},
	Science:  {"study", "researchers", "molecule", "telescope", "genome", "experiment", "physics", "climate", "laboratory", "particle", "species", "quantum"},
	Food:     {"recipe", "chef", "restaurant", "flavor", "bakery", "dessert", "harvest", "kitchen", "spices", "menu", "noodles", "vineyard"},
}

var filler = []string{"the", "a", "new", "after", "with", "report", "says", "year", "local", "big", "first", "week", "today", "over", "why"}

// Dataslice is a corpus of n headlines generated from seed
type Dataslice struct {
	N    int
	Seed int64

	// TopicShare is the probability of a word being drawn from the topic, 0.6 when unset
	TopicShare float64
}

// Len returns the number of headlines
func (d Dataslice) Len() int {
	return d.N
}

// Store materializes the headlines. Labels cycle through the topics, so each
// class holds a quarter of the corpus.
func (d Dataslice) Store() *datasets.Store {
	share := d.TopicShare
	if share == 0 {
		share = 0.6
	}
	rng := random.New(d.Seed)
	var s = new(datasets.Store)
	for n := 0; n < d.N; n++ {
		label := n % len(Names)
		s.Append(datasets.LabeledExample{Text: headline(rng, label, share), Label: label})
	}
	return s
}

func headline(rng *random.Source, label int, share float64) string {
	words := make([]string, 5+rng.Intn(8))
	for i := range words {
		if rng.Float64() < share {
			topic := vocabulary[label]
			words[i] = topic[rng.Intn(len(topic))]
		} else {
			words[i] = filler[rng.Intn(len(filler))]
		}
	}
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ")
}
