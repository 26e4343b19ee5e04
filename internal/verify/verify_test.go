package verify

import (
	"fmt"
	"strings"
	"testing"

	"github.com/samcharles93/hippo/internal/h3"
)

type stubModel struct {
	rows [][]float32
	err  error
}

func (s *stubModel) Forward(ids []int) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func row(lead ...float32) []float32 {
	out := append([]float32(nil), lead...)
	for len(out) < 8 {
		out = append(out, 0)
	}
	return out
}

func TestLogitsPass(t *testing.T) {
	m := &stubModel{rows: [][]float32{row(5.9570, 7.0703, 4.4727)}}
	logits, err := Logits(m, h3.Size125M)
	if err != nil {
		t.Fatalf("Logits: %v", err)
	}
	if len(logits) != 3 {
		t.Fatalf("returned %d logits, want 3", len(logits))
	}
}

func TestLogitsWithinTolerance(t *testing.T) {
	m := &stubModel{rows: [][]float32{row(5.9570+0.009, 7.0703-0.009, 4.4727)}}
	if _, err := Logits(m, h3.Size125M); err != nil {
		t.Fatalf("deviation below tolerance rejected: %v", err)
	}
}

func TestLogitsMismatch(t *testing.T) {
	m := &stubModel{rows: [][]float32{row(5.9570, 7.0703+0.02, 4.4727)}}
	_, err := Logits(m, h3.Size125M)
	if err == nil {
		t.Fatal("mismatched logits passed verification")
	}
	if !strings.Contains(err.Error(), "index 1") {
		t.Errorf("error does not name the mismatched index: %v", err)
	}
}

func TestLogits355mReference(t *testing.T) {
	m := &stubModel{rows: [][]float32{row(4.5926, 6.2018, 4.6021)}}
	if _, err := Logits(m, h3.Size355M); err != nil {
		t.Fatalf("Logits: %v", err)
	}

	m = &stubModel{rows: [][]float32{row(5.9570, 7.0703, 4.4727)}}
	if _, err := Logits(m, h3.Size355M); err == nil {
		t.Error("125m logits passed the 355m reference")
	}
}

func TestHasReference(t *testing.T) {
	if !HasReference(h3.Size125M) || !HasReference(h3.Size355M) {
		t.Error("sizes with recorded logits report no reference")
	}
	if HasReference(h3.Size1_3B) || HasReference(h3.Size2_7B) {
		t.Error("sizes without recorded logits report a reference")
	}
}

func TestLogitsSkipsSizesWithoutReference(t *testing.T) {
	for _, size := range []h3.Size{h3.Size1_3B, h3.Size2_7B} {
		m := &stubModel{rows: [][]float32{row(1, 2, 3)}}
		logits, err := Logits(m, size)
		if err != nil {
			t.Errorf("%v: check not skipped: %v", size, err)
		}
		if len(logits) != 3 {
			t.Errorf("%v: probe logits not returned", size)
		}
	}
}

func TestLogitsForwardFailure(t *testing.T) {
	m := &stubModel{err: fmt.Errorf("boom")}
	if _, err := Logits(m, h3.Size125M); err == nil {
		t.Error("forward failure not propagated")
	}

	m = &stubModel{rows: [][]float32{row(1), row(2)}}
	if _, err := Logits(m, h3.Size125M); err == nil {
		t.Error("wrong row count accepted")
	}
}

type stubGenerator struct{}

func (stubGenerator) Generate(ids []int, maxLength int) ([]int, error) {
	out := append([]int(nil), ids...)
	for len(out) < maxLength {
		out = append(out, 0)
	}
	return out, nil
}

type stubTokenizer struct{}

func (stubTokenizer) Encode(text string) ([]int, error) {
	return []int{1, 2}, nil
}

func (stubTokenizer) Decode(ids []int) (string, error) {
	return fmt.Sprintf("decoded %d tokens", len(ids)), nil
}

func TestSample(t *testing.T) {
	text, err := Sample(stubGenerator{}, stubTokenizer{}, "hello", 3)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if text != "decoded 5 tokens" {
		t.Errorf("Sample = %q", text)
	}
}
