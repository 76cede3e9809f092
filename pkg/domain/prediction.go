package domain

import "sort"

type ConfidenceBand string

const (
	BandHigh   ConfidenceBand = "high"
	BandMedium ConfidenceBand = "medium"
	BandLow    ConfidenceBand = "low"
)

// BandFor buckets a confidence the way the triage page colours it.
func BandFor(confidence float64) ConfidenceBand {
	switch {
	case confidence > 0.8:
		return BandHigh
	case confidence > 0.5:
		return BandMedium
	default:
		return BandLow
	}
}

// Score is one entry of a prediction's distribution.
type Score struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Prediction is the outcome of classifying one complaint.
type Prediction struct {
	TopID      int            `json:"-"`
	TopLabel   string         `json:"top_label"`
	Confidence float64        `json:"confidence"`
	Band       ConfidenceBand `json:"band"`
	// sorted by score, descending; equal scores keep class id order
	Distribution []Score `json:"distribution"`
}

// Argmax returns the index of the first maximum, -1 for an empty slice.
func Argmax(xs []float64) int {
	if len(xs) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}

// NewPrediction builds a prediction from per-class probabilities indexed by class id.
// The top class is the first maximum, so ties go to the lowest id.
func NewPrediction(labels *LabelRegistry, probs []float64) *Prediction {
	if len(probs) == 0 {
		return &Prediction{TopID: -1, TopLabel: UnknownLabel, Band: BandLow}
	}

	top := Argmax(probs)

	dist := make([]Score, len(probs))
	for i, p := range probs {
		dist[i] = Score{Label: labels.Name(i, UnknownLabel), Score: p}
	}
	sort.SliceStable(dist, func(a, b int) bool {
		return dist[a].Score > dist[b].Score
	})

	return &Prediction{
		TopID:        top,
		TopLabel:     labels.Name(top, UnknownLabel),
		Confidence:   probs[top],
		Band:         BandFor(probs[top]),
		Distribution: dist,
	}
}
