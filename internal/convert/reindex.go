package convert

import (
	"fmt"

	"github.com/samcharles93/hippo/internal/checkpoint"
)

// SentinelKey marks the legacy pre-norm layout: the zero-th normalization
// applied before the first block. Its presence means every norm parameter
// must be shifted one block boundary forward.
const SentinelKey = "backbone.ln_0.weight"

// renameOp rebinds the tensor stored under From in the input mapping to To
// in the output mapping. Ops always reference input keys, so the whole set
// can be applied as one rewrite pass.
type renameOp struct {
	From string
	To   string
}

// ReindexNorms shifts normalization-parameter ownership across block
// boundaries for legacy checkpoints:
//
//   - the last block's trailing norm (norm2) becomes the final norm (ln_f),
//   - every block's leading norm (norm1) becomes its trailing norm (norm2),
//   - every block inherits its leading norm from the previous block's
//     trailing norm,
//   - the zero-th norm seeds block 0's leading norm.
//
// The net effect is a one-step backward rotation over the norm stack. Tensor
// values are untouched; only the keys they are stored under change. If the
// sentinel key is absent the mapping is already in the destination layout
// and is returned as-is.
func ReindexNorms(st *checkpoint.State, numLayers int) (*checkpoint.State, error) {
	if !st.Has(SentinelKey) {
		return st, nil
	}
	if numLayers <= 0 {
		return nil, fmt.Errorf("invalid layer count %d", numLayers)
	}

	ops := make([]renameOp, 0, 4*numLayers+4)
	addPair := func(from, to string) {
		ops = append(ops,
			renameOp{From: from + ".weight", To: to + ".weight"},
			renameOp{From: from + ".bias", To: to + ".bias"},
		)
	}

	addPair(layerNorm(numLayers-1, 2), "backbone.ln_f")
	for l := numLayers - 1; l >= 0; l-- {
		addPair(layerNorm(l, 1), layerNorm(l, 2))
		if l > 0 {
			addPair(layerNorm(l-1, 2), layerNorm(l, 1))
		}
	}
	// The zero-th norm has no predecessor block to borrow from; it lands on
	// block 0 directly, already in destination form.
	addPair("backbone.ln_0", "h3.blocks.0.norm1")

	moved := make(map[string]bool, len(ops))
	for _, op := range ops {
		if moved[op.From] {
			return nil, fmt.Errorf("norm reindex: key %q moved twice", op.From)
		}
		moved[op.From] = true
	}

	out := checkpoint.NewState(st.Len())
	for _, name := range st.Names() {
		if moved[name] {
			continue
		}
		t, _ := st.Get(name)
		if err := out.Insert(name, t); err != nil {
			return nil, err
		}
	}
	for _, op := range ops {
		t, ok := st.Get(op.From)
		if !ok {
			return nil, fmt.Errorf("norm reindex: missing %q", op.From)
		}
		if err := out.Insert(op.To, t); err != nil {
			return nil, fmt.Errorf("norm reindex: %w", err)
		}
	}
	return out, nil
}

func layerNorm(layer, which int) string {
	return fmt.Sprintf("backbone.layers.%d.norm%d", layer, which)
}
