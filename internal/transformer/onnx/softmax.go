package onnx

import "math"

// Softmax turns logits into probabilities that sum to 1.
// The max logit is subtracted first so large scores do not overflow.
func Softmax(logits []float32) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}

	maxLogit := math.Inf(-1)
	for _, x := range logits {
		if float64(x) > maxLogit {
			maxLogit = float64(x)
		}
	}

	var sum float64
	for i, x := range logits {
		e := math.Exp(float64(x) - maxLogit)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
