package checkpoint

import (
	"fmt"
	"strings"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

const (
	// Lightning checkpoints wrap the raw state dict and are detected by the
	// presence of this version marker.
	lightningVersionKey = "pytorch-lightning_version"
	lightningStateKey   = "state_dict"
	lightningPrefix     = "model."
)

// LoadTorch reads a PyTorch checkpoint file into a State. If the file is a
// PyTorch-Lightning checkpoint, only the entries of its nested state dict
// carrying the "model." prefix are kept, with the prefix stripped.
func LoadTorch(path string) (*State, error) {
	obj, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load torch checkpoint %q: %w", path, err)
	}

	entries, err := dictEntries(obj)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %q: %w", path, err)
	}

	if wrapped := hasKey(entries, lightningVersionKey); wrapped {
		inner, ok := getKey(entries, lightningStateKey)
		if !ok {
			return nil, fmt.Errorf("checkpoint %q: lightning wrapper without %q", path, lightningStateKey)
		}
		entries, err = dictEntries(inner)
		if err != nil {
			return nil, fmt.Errorf("checkpoint %q: state_dict: %w", path, err)
		}
		entries = unwrapLightning(entries)
	}

	st := NewState(len(entries))
	for _, e := range entries {
		t, ok := e.value.(*pytorch.Tensor)
		if !ok {
			// Non-tensor entries (e.g. stray buffers of builtin types) have
			// no place in a parameter mapping.
			return nil, fmt.Errorf("parameter %q: unexpected value type %T", e.key, e.value)
		}
		tensor, err := convertTensor(t)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", e.key, err)
		}
		if err := st.Insert(e.key, tensor); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// unwrapLightning keeps only the "model."-prefixed entries, stripped.
func unwrapLightning(entries []dictEntry) []dictEntry {
	out := make([]dictEntry, 0, len(entries))
	for _, e := range entries {
		name, ok := strings.CutPrefix(e.key, lightningPrefix)
		if !ok {
			continue
		}
		out = append(out, dictEntry{key: name, value: e.value})
	}
	return out
}

type dictEntry struct {
	key   string
	value any
}

// dictEntries flattens a pickled dict (plain or ordered) into key order.
func dictEntries(obj any) ([]dictEntry, error) {
	switch d := obj.(type) {
	case *types.Dict:
		out := make([]dictEntry, 0, len(d.Keys()))
		for _, k := range d.Keys() {
			name, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string dict key %v (%T)", k, k)
			}
			out = append(out, dictEntry{key: name, value: d.MustGet(k)})
		}
		return out, nil
	case *types.OrderedDict:
		out := make([]dictEntry, 0, len(d.Map))
		for el := d.List.Front(); el != nil; el = el.Next() {
			entry, ok := el.Value.(*types.OrderedDictEntry)
			if !ok {
				return nil, fmt.Errorf("unexpected ordered dict element %T", el.Value)
			}
			name, ok := entry.Key.(string)
			if !ok {
				return nil, fmt.Errorf("non-string dict key %v (%T)", entry.Key, entry.Key)
			}
			out = append(out, dictEntry{key: name, value: entry.Value})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a dict, got %T", obj)
	}
}

func hasKey(entries []dictEntry, key string) bool {
	_, ok := getKey(entries, key)
	return ok
}

func getKey(entries []dictEntry, key string) (any, bool) {
	for _, e := range entries {
		if e.key == key {
			return e.value, true
		}
	}
	return nil, false
}

// convertTensor materializes a pickled tensor as float32 data. The storage
// may be shared between tensors, so the relevant slice is copied out.
func convertTensor(t *pytorch.Tensor) (*Tensor, error) {
	shape := make([]int, len(t.Size))
	n := 1
	for i, d := range t.Size {
		if d < 0 {
			return nil, fmt.Errorf("invalid dimension %d", d)
		}
		shape[i] = d
		n *= d
	}

	data := make([]float32, n)
	off := t.StorageOffset
	switch src := t.Source.(type) {
	case *pytorch.FloatStorage:
		if off+n > len(src.Data) {
			return nil, fmt.Errorf("storage too small: need %d, have %d", off+n, len(src.Data))
		}
		copy(data, src.Data[off:off+n])
	case *pytorch.HalfStorage:
		if off+n > len(src.Data) {
			return nil, fmt.Errorf("storage too small: need %d, have %d", off+n, len(src.Data))
		}
		copy(data, src.Data[off:off+n])
	case *pytorch.BFloat16Storage:
		if off+n > len(src.Data) {
			return nil, fmt.Errorf("storage too small: need %d, have %d", off+n, len(src.Data))
		}
		copy(data, src.Data[off:off+n])
	case *pytorch.DoubleStorage:
		if off+n > len(src.Data) {
			return nil, fmt.Errorf("storage too small: need %d, have %d", off+n, len(src.Data))
		}
		for i := 0; i < n; i++ {
			data[i] = float32(src.Data[off+i])
		}
	default:
		return nil, fmt.Errorf("unsupported storage type %T", t.Source)
	}

	return &Tensor{Shape: shape, Data: data}, nil
}
