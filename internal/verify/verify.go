// Package verify is the conversion acceptance check: a fixed-input forward
// pass compared against known-good logits, plus a best-effort generation
// sample for human inspection.
package verify

import (
	"fmt"
	"math"

	"github.com/samcharles93/hippo/internal/h3"
)

// Tolerance is the absolute tolerance for the logit comparison.
const Tolerance = 1e-2

// probeToken is the fixed single-token input the references were recorded
// with.
const probeToken = 101

// ForwardModel is the slice of the destination model contract the logit
// check needs.
type ForwardModel interface {
	Forward(ids []int) ([][]float32, error)
}

// Generator is the slice of the contract the generation sample needs.
type Generator interface {
	Generate(ids []int, maxLength int) ([]int, error)
}

// referenceSlice returns the expected first three logits of the probe
// forward pass. Only two of the four sizes have a recorded reference; for
// the others the check is skipped, not failed.
func referenceSlice(size h3.Size) ([]float32, bool) {
	switch size {
	case h3.Size125M:
		return []float32{5.9570, 7.0703, 4.4727}, true
	case h3.Size355M:
		return []float32{4.5926, 6.2018, 4.6021}, true
	case h3.Size1_3B, h3.Size2_7B:
		return nil, false
	}
	return nil, false
}

// HasReference reports whether recorded reference logits exist for this size.
func HasReference(size h3.Size) bool {
	_, ok := referenceSlice(size)
	return ok
}

// Logits runs the probe forward pass and compares the leading logits against
// the recorded reference for this size. A mismatch means the conversion is
// wrong and is returned as an error; a size without a reference passes
// without comparison. The probe logits are returned for display either way.
func Logits(m ForwardModel, size h3.Size) ([]float32, error) {
	rows, err := m.Forward([]int{probeToken})
	if err != nil {
		return nil, fmt.Errorf("verification forward pass: %w", err)
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("verification forward pass: %d logit rows for 1 token", len(rows))
	}
	logits := rows[0]
	if len(logits) < 3 {
		return nil, fmt.Errorf("verification forward pass: logits too short (%d)", len(logits))
	}

	want, ok := referenceSlice(size)
	if !ok {
		return logits[:3], nil
	}
	for i, w := range want {
		if diff := math.Abs(float64(logits[i] - w)); diff > Tolerance {
			return logits[:3], fmt.Errorf(
				"logit mismatch for %s at index %d: got %.4f, want %.4f (tolerance %g)",
				size, i, logits[i], w, Tolerance)
		}
	}
	return logits[:3], nil
}

// Tokenizer maps text to token ids and back.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
}

// Generation sampling defaults, matching the original conversion script.
const (
	SamplePrompt    = "I enjoy walking with my cute dog"
	SampleNewTokens = 128
)

// Sample runs the best-effort greedy generation and returns the decoded
// continuation. Its output is for human inspection only; nothing is asserted
// against it.
func Sample(m Generator, tok Tokenizer, prompt string, newTokens int) (string, error) {
	ids, err := tok.Encode(prompt)
	if err != nil {
		return "", fmt.Errorf("encode prompt: %w", err)
	}
	out, err := m.Generate(ids, len(ids)+newTokens)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	text, err := tok.Decode(out)
	if err != nil {
		return "", fmt.Errorf("decode sample: %w", err)
	}
	return text, nil
}
