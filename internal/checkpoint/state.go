package checkpoint

import (
	"fmt"
)

// Tensor is an opaque multi-dimensional array of float32 values in row-major
// layout. The converter never interprets tensor contents; it only rebinds
// names to tensors.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NumElements returns the product of the tensor's dimensions.
func (t *Tensor) NumElements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// ShapeEquals reports whether the tensor's shape matches want exactly.
func (t *Tensor) ShapeEquals(want []int) bool {
	if len(t.Shape) != len(want) {
		return false
	}
	for i, d := range t.Shape {
		if d != want[i] {
			return false
		}
	}
	return true
}

// State is an ordered mapping of parameter names to tensors. Keys are unique;
// iteration order is insertion order, matching the ordering semantics of the
// checkpoint formats it is loaded from.
type State struct {
	names   []string
	tensors map[string]*Tensor
}

// NewState returns an empty state with capacity for n entries.
func NewState(n int) *State {
	return &State{
		names:   make([]string, 0, n),
		tensors: make(map[string]*Tensor, n),
	}
}

// Insert appends a new entry. Inserting a duplicate key is an error: the
// source formats guarantee unique parameter names, so a collision means the
// conversion produced a corrupt mapping.
func (s *State) Insert(name string, t *Tensor) error {
	if _, ok := s.tensors[name]; ok {
		return fmt.Errorf("duplicate parameter %q", name)
	}
	s.names = append(s.names, name)
	s.tensors[name] = t
	return nil
}

// Get returns the tensor bound to name.
func (s *State) Get(name string) (*Tensor, bool) {
	t, ok := s.tensors[name]
	return t, ok
}

// Has reports whether name is present.
func (s *State) Has(name string) bool {
	_, ok := s.tensors[name]
	return ok
}

// Pop removes and returns the tensor bound to name.
func (s *State) Pop(name string) (*Tensor, error) {
	t, ok := s.tensors[name]
	if !ok {
		return nil, fmt.Errorf("parameter %q not found", name)
	}
	delete(s.tensors, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			break
		}
	}
	return t, nil
}

// Names returns the parameter names in insertion order.
func (s *State) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of entries.
func (s *State) Len() int {
	return len(s.names)
}
