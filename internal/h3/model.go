package h3

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samcharles93/hippo/internal/checkpoint"
)

// Model is the destination H3 causal language model. It is constructed empty
// from a config and populated exactly once by LoadState; afterwards it can
// run forward passes, generate, save, and push.
type Model struct {
	cfg      Config
	params   map[string]*checkpoint.Tensor
	loaded   bool
	training bool
}

// New constructs an unloaded model for the given config.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg, training: true}, nil
}

// Config returns the architecture config the model was built from.
func (m *Model) Config() Config {
	return m.cfg
}

// Eval switches the model to evaluation mode. H3 has no dropout-style
// behavior in this implementation, so the switch only flips the flag, but
// callers are expected to invoke it before Forward, matching the destination
// model contract.
func (m *Model) Eval() {
	m.training = false
}

// LoadState performs the strict load: the state's key set must exactly equal
// the model's parameter manifest and every shape must match. This is the
// single point that validates the reindex and rename stages did their job.
func (m *Model) LoadState(st *checkpoint.State) error {
	manifest := m.cfg.Manifest()
	expected := make(map[string][]int, len(manifest))
	for _, spec := range manifest {
		expected[spec.Name] = spec.Shape
	}

	var missing, unexpected []string
	for name := range expected {
		if !st.Has(name) {
			missing = append(missing, name)
		}
	}
	for _, name := range st.Names() {
		if _, ok := expected[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	if len(missing) > 0 || len(unexpected) > 0 {
		sort.Strings(missing)
		sort.Strings(unexpected)
		return fmt.Errorf("state dict mismatch: missing [%s], unexpected [%s]",
			strings.Join(missing, " "), strings.Join(unexpected, " "))
	}

	params := make(map[string]*checkpoint.Tensor, len(manifest))
	for _, spec := range manifest {
		t, _ := st.Get(spec.Name)
		if !t.ShapeEquals(spec.Shape) {
			return fmt.Errorf("parameter %q: shape %v, expected %v", spec.Name, t.Shape, spec.Shape)
		}
		params[spec.Name] = t
	}

	m.params = params
	m.loaded = true
	return nil
}

// param returns a loaded parameter by name. Every name passed here comes from
// the manifest, so absence after a successful LoadState is a bug.
func (m *Model) param(name string) *checkpoint.Tensor {
	t, ok := m.params[name]
	if !ok {
		panic(fmt.Sprintf("parameter %q not loaded", name))
	}
	return t
}

func (m *Model) blockParam(layer int, suffix string) *checkpoint.Tensor {
	return m.param(BlockParam(layer, suffix))
}
