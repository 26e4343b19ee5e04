package h3

import "fmt"

// ParamSpec names one expected parameter and its shape.
type ParamSpec struct {
	Name  string
	Shape []int
}

// Destination module hierarchy. The converter's rename pass produces exactly
// these prefixes.
const (
	embeddingsKey = "h3.embeddings.word_embeddings.weight"
	finalNormKey  = "h3.final_layernorm"
	blockPrefix   = "h3.blocks"
	lmHeadKey     = "lm_head.weight"
)

// BlockParam returns the full key of a per-block parameter.
func BlockParam(layer int, suffix string) string {
	return fmt.Sprintf("%s.%d.%s", blockPrefix, layer, suffix)
}

// Manifest enumerates every parameter the materialized model expects, in
// deterministic order: embeddings, blocks in layer order, final norm,
// lm head. The strict load checks the incoming mapping against exactly this
// set.
func (c Config) Manifest() []ParamSpec {
	h := c.HiddenSize
	vp := c.PaddedVocabSize()
	inner := c.IntermediateSize()
	state := c.SSMStateSize

	specs := make([]ParamSpec, 0, 2+c.NumHiddenLayers*24)
	specs = append(specs, ParamSpec{embeddingsKey, []int{vp, h}})

	for i := 0; i < c.NumHiddenLayers; i++ {
		add := func(suffix string, shape ...int) {
			specs = append(specs, ParamSpec{BlockParam(i, suffix), shape})
		}
		add("norm1.weight", h)
		add("norm1.bias", h)
		if c.IsAttnLayer(i) {
			add("mixer.Wqkv.weight", 3*h, h)
			add("mixer.Wqkv.bias", 3*h)
			add("mixer.out_proj.weight", h, h)
			add("mixer.out_proj.bias", h)
		} else {
			add("mixer.q_proj.weight", h, h)
			add("mixer.q_proj.bias", h)
			add("mixer.k_proj.weight", h, h)
			add("mixer.k_proj.bias", h)
			add("mixer.v_proj.weight", h, h)
			add("mixer.v_proj.bias", h)
			add("mixer.out_proj.weight", h, h)
			add("mixer.out_proj.bias", h)
			add("mixer.ssm.shift_kernel", h, state)
			add("mixer.ssm.log_A", h, state)
			add("mixer.ssm.B", h, state)
			add("mixer.ssm.C", h, state)
			add("mixer.ssm.D", h)
			add("mixer.ssm.log_dt", h)
		}
		add("norm2.weight", h)
		add("norm2.bias", h)
		add("mlp.fc1.weight", inner, h)
		add("mlp.fc1.bias", inner)
		add("mlp.fc2.weight", h, inner)
		add("mlp.fc2.bias", h)
	}

	specs = append(specs,
		ParamSpec{finalNormKey + ".weight", []int{h}},
		ParamSpec{finalNormKey + ".bias", []int{h}},
		ParamSpec{lmHeadKey, []int{vp, h}},
	)
	return specs
}
