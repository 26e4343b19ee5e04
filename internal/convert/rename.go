// Package convert rewrites a source H3 checkpoint's parameter mapping into
// the destination model's layout: a normalization reindex for legacy
// checkpoints followed by a prefix rename pass.
package convert

import (
	"strings"

	"github.com/samcharles93/hippo/internal/checkpoint"
)

// Rule rewrites keys containing Match by replacing the From substring with
// To. Match and From differ for the embeddings rule, which is selected by the
// full sub-path but rewrites only the top-level prefix.
type Rule struct {
	Match string
	From  string
	To    string
}

// Rules is the fixed rename priority order. The patterns are mutually
// exclusive under the source naming convention; first match wins so the
// result stays deterministic even if a future source key overlapped.
var Rules = []Rule{
	{Match: "backbone.embeddings", From: "backbone", To: "h3"},
	{Match: "backbone.layers", From: "backbone.layers", To: "h3.blocks"},
	{Match: "backbone.ln_f", From: "backbone.ln_f", To: "h3.final_layernorm"},
}

// RenameKey rewrites one parameter name into the destination hierarchy. Keys
// matching no rule pass through unchanged.
func RenameKey(name string) string {
	for _, r := range Rules {
		if strings.Contains(name, r.Match) {
			return strings.Replace(name, r.From, r.To, 1)
		}
	}
	return name
}

// RenameAll applies RenameKey to every key, preserving entry order.
func RenameAll(st *checkpoint.State) (*checkpoint.State, error) {
	out := checkpoint.NewState(st.Len())
	for _, name := range st.Names() {
		t, _ := st.Get(name)
		if err := out.Insert(RenameKey(name), t); err != nil {
			return nil, err
		}
	}
	return out, nil
}
