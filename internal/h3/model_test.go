package h3

import (
	"strings"
	"testing"

	"github.com/samcharles93/hippo/internal/checkpoint"
)

// tinyConfig is a hybrid model small enough to materialize in tests: one SSM
// block and one attention block.
func tinyConfig() Config {
	return Config{
		HiddenSize:        4,
		NumHiddenLayers:   2,
		NumAttentionHeads: 2,
		AttnLayerIdx:      []int{1},
		VocabSize:         6,
		PadVocabMultiple:  1,
		SSMStateSize:      2,
		LayerNormEps:      1e-5,
	}
}

// manifestState builds a state with a zero tensor for every expected
// parameter.
func manifestState(t *testing.T, cfg Config) *checkpoint.State {
	t.Helper()
	specs := cfg.Manifest()
	st := checkpoint.NewState(len(specs))
	for _, spec := range specs {
		n := 1
		for _, d := range spec.Shape {
			n *= d
		}
		tensor := &checkpoint.Tensor{
			Shape: append([]int(nil), spec.Shape...),
			Data:  make([]float32, n),
		}
		if err := st.Insert(spec.Name, tensor); err != nil {
			t.Fatalf("insert %s: %v", spec.Name, err)
		}
	}
	return st
}

func TestLoadStateStrict(t *testing.T) {
	cfg := tinyConfig()
	m, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.LoadState(manifestState(t, cfg)); err != nil {
		t.Fatalf("LoadState on exact manifest: %v", err)
	}
}

func TestLoadStateMissingKey(t *testing.T) {
	cfg := tinyConfig()
	m, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	st := manifestState(t, cfg)
	if _, err := st.Pop("h3.final_layernorm.weight"); err != nil {
		t.Fatal(err)
	}

	err = m.LoadState(st)
	if err == nil {
		t.Fatal("LoadState accepted a state with a missing parameter")
	}
	if !strings.Contains(err.Error(), "h3.final_layernorm.weight") {
		t.Errorf("error does not name the missing key: %v", err)
	}
}

func TestLoadStateUnexpectedKey(t *testing.T) {
	cfg := tinyConfig()
	m, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	st := manifestState(t, cfg)
	extra := &checkpoint.Tensor{Shape: []int{1}, Data: []float32{0}}
	if err := st.Insert("h3.blocks.9.norm1.weight", extra); err != nil {
		t.Fatal(err)
	}

	err = m.LoadState(st)
	if err == nil {
		t.Fatal("LoadState accepted a state with an unexpected parameter")
	}
	if !strings.Contains(err.Error(), "h3.blocks.9.norm1.weight") {
		t.Errorf("error does not name the unexpected key: %v", err)
	}
}

func TestLoadStateShapeMismatch(t *testing.T) {
	cfg := tinyConfig()
	m, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	st := manifestState(t, cfg)
	if _, err := st.Pop("lm_head.weight"); err != nil {
		t.Fatal(err)
	}
	bad := &checkpoint.Tensor{Shape: []int{2, 2}, Data: make([]float32, 4)}
	if err := st.Insert("lm_head.weight", bad); err != nil {
		t.Fatal(err)
	}

	err = m.LoadState(st)
	if err == nil {
		t.Fatal("LoadState accepted a wrong-shaped parameter")
	}
	if !strings.Contains(err.Error(), "lm_head.weight") {
		t.Errorf("error does not name the mismatched key: %v", err)
	}
}

func TestForwardShapes(t *testing.T) {
	cfg := tinyConfig()
	m, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.LoadState(manifestState(t, cfg)); err != nil {
		t.Fatal(err)
	}
	m.Eval()

	ids := []int{0, 3, 5}
	rows, err := m.Forward(ids)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(rows) != len(ids) {
		t.Fatalf("got %d logit rows, want %d", len(rows), len(ids))
	}
	for i, row := range rows {
		if len(row) != cfg.PaddedVocabSize() {
			t.Fatalf("row %d has %d logits, want %d", i, len(row), cfg.PaddedVocabSize())
		}
		for j, v := range row {
			if v != v {
				t.Fatalf("row %d logit %d is NaN", i, j)
			}
		}
	}
}

func TestForwardRejectsOutOfRangeToken(t *testing.T) {
	cfg := tinyConfig()
	m, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.LoadState(manifestState(t, cfg)); err != nil {
		t.Fatal(err)
	}
	m.Eval()

	if _, err := m.Forward([]int{cfg.PaddedVocabSize()}); err == nil {
		t.Error("Forward accepted an out-of-range token id")
	}
}

func TestGenerateGreedy(t *testing.T) {
	cfg := tinyConfig()
	m, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.LoadState(manifestState(t, cfg)); err != nil {
		t.Fatal(err)
	}
	m.Eval()

	// All-zero weights produce identical logits, so greedy decoding always
	// picks token 0.
	out, err := m.Generate([]int{2}, 4)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []int{2, 0, 0, 0}
	if len(out) != len(want) {
		t.Fatalf("generated %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("generated %v, want %v", out, want)
		}
	}

	if _, err := m.Generate(nil, 4); err == nil {
		t.Error("Generate accepted an empty prompt")
	}
	if _, err := m.Generate([]int{1, 2, 3}, 2); err == nil {
		t.Error("Generate accepted max length shorter than the prompt")
	}
}
