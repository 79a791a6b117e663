// Package emotion defines the fixed emotion vocabulary and the percentage
// distributions exchanged between the classifier, the backend and the client.
package emotion

import (
	"math"
	"strings"
)

// Emotion is a label from the classifier vocabulary.
type Emotion string

// Supported emotions.
const (
	Angry    Emotion = "angry"
	Disgust  Emotion = "disgust"
	Fear     Emotion = "fear"
	Happy    Emotion = "happy"
	Sad      Emotion = "sad"
	Surprise Emotion = "surprise"
	Neutral  Emotion = "neutral"
)

// Vocabulary lists every supported emotion. Ties in Dominant resolve to the
// emotion that appears first here.
var Vocabulary = []Emotion{Angry, Disgust, Fear, Happy, Sad, Surprise, Neutral}

// consistencyTolerance is how far a distribution total may drift from 100
// before it is reported as inconsistent.
const consistencyTolerance = 0.5

// Parse returns the emotion for a label, ignoring case and surrounding space.
func Parse(label string) (Emotion, bool) {
	e := Emotion(strings.ToLower(strings.TrimSpace(label)))
	for _, known := range Vocabulary {
		if e == known {
			return e, true
		}
	}
	return "", false
}

// Distribution maps each emotion to a percentage.
type Distribution map[Emotion]float64

// Zero returns a distribution with every emotion set to 0.
func Zero() Distribution {
	d := make(Distribution, len(Vocabulary))
	for _, e := range Vocabulary {
		d[e] = 0
	}
	return d
}

// Normalize builds a distribution from raw classifier output. Unknown labels are
// dropped, missing emotions become 0 and values are rounded to two decimals.
func Normalize(raw map[string]float64) Distribution {
	d := Zero()
	for label, v := range raw {
		if e, ok := Parse(label); ok {
			d[e] = Round2(v)
		}
	}
	return d
}

// Dominant returns the emotion with the highest score.
func (d Distribution) Dominant() Emotion {
	best := Neutral
	bestScore := math.Inf(-1)
	for _, e := range Vocabulary {
		if v := d[e]; v > bestScore {
			best, bestScore = e, v
		}
	}
	return best
}

// Total returns the plain sum of all scores. It is not forced to 100.
func (d Distribution) Total() float64 {
	var total float64
	for _, e := range Vocabulary {
		total += d[e]
	}
	return total
}

// Inconsistent reports whether the total is not close to 100.
func (d Distribution) Inconsistent() bool {
	return math.Abs(d.Total()-100) > consistencyTolerance
}

// ToMap converts the distribution to plain string keys for JSON payloads.
func (d Distribution) ToMap() map[string]float64 {
	m := make(map[string]float64, len(Vocabulary))
	for _, e := range Vocabulary {
		m[string(e)] = d[e]
	}
	return m
}

// Average returns the per-emotion mean of the given distributions, rounded to two
// decimals. An empty slice yields Zero.
func Average(dists []Distribution) Distribution {
	avg := Zero()
	if len(dists) == 0 {
		return avg
	}
	for _, e := range Vocabulary {
		var sum float64
		for _, d := range dists {
			sum += d[e]
		}
		avg[e] = Round2(sum / float64(len(dists)))
	}
	return avg
}

// Row is one line of a displayed distribution.
type Row struct {
	Emotion Emotion
	Percent float64
}

// Percentages returns the distribution as display rows, highest first, together
// with the total of the rows. Values are shown as received; an upstream total
// that is not 100 stays visible instead of being rescaled.
func (d Distribution) Percentages() ([]Row, float64) {
	rows := make([]Row, 0, len(Vocabulary))
	for _, e := range Vocabulary {
		rows = append(rows, Row{Emotion: e, Percent: d[e]})
	}
	// insertion sort keeps vocabulary order for equal values
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j].Percent > rows[j-1].Percent; j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
	var total float64
	for _, r := range rows {
		total += r.Percent
	}
	return rows, total
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
