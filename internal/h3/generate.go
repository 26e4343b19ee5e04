package h3

import (
	"fmt"
	"math"
)

// Generate extends a token-id sequence greedily until it reaches maxLength
// tokens. The prompt is always included in the returned sequence.
func (m *Model) Generate(ids []int, maxLength int) ([]int, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("empty prompt")
	}
	if maxLength < len(ids) {
		return nil, fmt.Errorf("max length %d shorter than prompt (%d tokens)", maxLength, len(ids))
	}

	s, err := m.newSession()
	if err != nil {
		return nil, err
	}

	out := append([]int(nil), ids...)
	var logits []float32
	for _, id := range out {
		logits, err = s.step(id)
		if err != nil {
			return nil, err
		}
	}
	for len(out) < maxLength {
		next := argmax(logits)
		out = append(out, next)
		logits, err = s.step(next)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func argmax(x []float32) int {
	best := 0
	for i, v := range x {
		if v > x[best] {
			best = i
		}
	}
	return best
}

func expf(x float32) float32 {
	return float32(math.Exp(float64(x)))
}

func invSqrt(n int) float32 {
	return float32(1.0 / math.Sqrt(float64(n)))
}
