// Package h3 implements the destination H3 model: its architecture
// configuration, expected parameter layout, strict checkpoint loading, and a
// reference forward/generation path.
package h3

import (
	"fmt"
	"strings"
)

// Size identifies one of the released H3 model variants. The enumeration is
// closed: every switch over Size handles all four values and fails on
// anything else.
type Size int

const (
	Size125M Size = iota
	Size355M
	Size1_3B
	Size2_7B
)

var sizeNames = [...]string{
	Size125M: "H3-125m",
	Size355M: "H3-355m",
	Size1_3B: "H3-1.3b",
	Size2_7B: "H3-2.7b",
}

func (s Size) String() string {
	if int(s) < 0 || int(s) >= len(sizeNames) {
		return fmt.Sprintf("Size(%d)", int(s))
	}
	return sizeNames[s]
}

// ParseSize resolves a model-size identifier. Unrecognized identifiers are an
// input error; there is deliberately no default.
func ParseSize(name string) (Size, error) {
	for s, n := range sizeNames {
		if n == name {
			return Size(s), nil
		}
	}
	return 0, fmt.Errorf("unknown model size %q (expected one of %s)", name, strings.Join(SizeNames(), ", "))
}

// SizeNames returns the accepted model-size identifiers.
func SizeNames() []string {
	out := make([]string, len(sizeNames))
	copy(out, sizeNames[:])
	return out
}

// Checkpoint returns the hub repository and filename holding the original
// checkpoint for this size.
func (s Size) Checkpoint() (repo, filename string) {
	switch s {
	case Size125M:
		return "danfu09/H3-125M", "model.pt"
	case Size355M:
		return "danfu09/H3-355M", "model.pt"
	case Size1_3B:
		return "danfu09/H3-1.3B", "model.pt"
	case Size2_7B:
		return "danfu09/H3-2.7B", "model-3attn.pt"
	}
	panic(fmt.Sprintf("unhandled size %d", int(s)))
}

// Config is the immutable architecture record for one model size.
type Config struct {
	HiddenSize        int   `json:"hidden_size"`
	NumHiddenLayers   int   `json:"num_hidden_layers"`
	NumAttentionHeads int   `json:"num_attention_heads"`
	AttnLayerIdx      []int `json:"attn_layer_idx"`

	// Fixed across all released sizes.
	VocabSize        int     `json:"vocab_size"`
	PadVocabMultiple int     `json:"pad_vocab_size_multiple"`
	SSMStateSize     int     `json:"ssm_state_size"`
	LayerNormEps     float64 `json:"layer_norm_epsilon"`
}

const (
	defaultVocabSize        = 50257
	defaultPadVocabMultiple = 8
	defaultSSMStateSize     = 64
	defaultLayerNormEps     = 1e-5
)

// ConfigForSize returns the architecture config for a model size.
func ConfigForSize(s Size) (Config, error) {
	cfg := Config{
		VocabSize:        defaultVocabSize,
		PadVocabMultiple: defaultPadVocabMultiple,
		SSMStateSize:     defaultSSMStateSize,
		LayerNormEps:     defaultLayerNormEps,
	}
	switch s {
	case Size125M:
		cfg.HiddenSize = 768
		cfg.NumHiddenLayers = 12
		cfg.NumAttentionHeads = 12
		cfg.AttnLayerIdx = []int{6}
	case Size355M:
		cfg.HiddenSize = 1024
		cfg.NumHiddenLayers = 24
		cfg.NumAttentionHeads = 16
		cfg.AttnLayerIdx = []int{8, 16}
	case Size1_3B:
		cfg.HiddenSize = 2048
		cfg.NumHiddenLayers = 24
		cfg.NumAttentionHeads = 16
		cfg.AttnLayerIdx = []int{8, 16}
	case Size2_7B:
		cfg.HiddenSize = 2560
		cfg.NumHiddenLayers = 32
		cfg.NumAttentionHeads = 20
		cfg.AttnLayerIdx = []int{8, 16, 24}
	default:
		return Config{}, fmt.Errorf("unknown model size %d", int(s))
	}
	return cfg, nil
}

// PaddedVocabSize returns the vocabulary size rounded up to the pad multiple,
// matching the embedding rows the original training code allocates.
func (c Config) PaddedVocabSize() int {
	m := c.PadVocabMultiple
	if m <= 1 {
		return c.VocabSize
	}
	return (c.VocabSize + m - 1) / m * m
}

// IntermediateSize returns the MLP inner dimension.
func (c Config) IntermediateSize() int {
	return 4 * c.HiddenSize
}

// IsAttnLayer reports whether layer i uses the attention mixer rather than
// the SSM mixer.
func (c Config) IsAttnLayer(i int) bool {
	for _, idx := range c.AttnLayerIdx {
		if idx == i {
			return true
		}
	}
	return false
}

// HeadDim returns the per-head dimension of the attention mixer.
func (c Config) HeadDim() int {
	return c.HiddenSize / c.NumAttentionHeads
}

// Validate rejects configs the materializer cannot build a model from.
func (c Config) Validate() error {
	if c.HiddenSize <= 0 || c.NumHiddenLayers <= 0 || c.NumAttentionHeads <= 0 {
		return fmt.Errorf("invalid config: hidden=%d layers=%d heads=%d", c.HiddenSize, c.NumHiddenLayers, c.NumAttentionHeads)
	}
	if c.HiddenSize%c.NumAttentionHeads != 0 {
		return fmt.Errorf("hidden_size %d not divisible by num_attention_heads %d", c.HiddenSize, c.NumAttentionHeads)
	}
	if c.VocabSize <= 0 || c.SSMStateSize <= 0 {
		return fmt.Errorf("invalid config: vocab=%d ssm_state=%d", c.VocabSize, c.SSMStateSize)
	}
	for _, idx := range c.AttnLayerIdx {
		if idx < 0 || idx >= c.NumHiddenLayers {
			return fmt.Errorf("attn_layer_idx %d out of range [0,%d)", idx, c.NumHiddenLayers)
		}
	}
	return nil
}
