// Package safetensors reads and writes the Hugging Face safetensors format:
// an 8-byte little-endian header length, a JSON header mapping tensor names
// to dtype/shape/offsets, and a flat data region.
package safetensors

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/d4l3k/go-bfloat16"
	"github.com/goccy/go-json"
	"github.com/x448/float16"
)

// A defensive cap; real-world headers are typically in the KBs.
const maxHeaderSize = 256 << 20 // 256 MiB

// DType identifies a tensor element encoding, using the safetensors spec
// names.
type DType string

const (
	DTypeF32  DType = "F32"
	DTypeF16  DType = "F16"
	DTypeBF16 DType = "BF16"
)

func (d DType) elemSize() (int, bool) {
	switch d {
	case DTypeF32:
		return 4, true
	case DTypeF16, DTypeBF16:
		return 2, true
	default:
		return 0, false
	}
}

// TensorInfo describes one tensor in the file. Start/End are byte offsets
// relative to the data region (End exclusive).
type TensorInfo struct {
	DType DType
	Shape []int
	Start int64
	End   int64
}

type tensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

// File provides access to tensors inside a single safetensors file. The data
// region is memory-mapped where the platform supports it.
type File struct {
	Path    string
	Tensors map[string]TensorInfo

	data      []byte
	dataStart int64
	closer    func() error
}

// Open parses a .safetensors file.
func Open(path string) (*File, error) {
	data, closer, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	f, err := parse(path, data)
	if err != nil {
		if closer != nil {
			_ = closer()
		}
		return nil, err
	}
	f.closer = closer
	return f, nil
}

func parse(path string, data []byte) (*File, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("safetensors: file too small: %s", path)
	}
	headerLen := binary.LittleEndian.Uint64(data)
	if headerLen > maxHeaderSize || 8+headerLen > uint64(len(data)) {
		return nil, fmt.Errorf("safetensors: invalid header length %d", headerLen)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &raw); err != nil {
		return nil, fmt.Errorf("safetensors: parse header: %w", err)
	}
	delete(raw, "__metadata__")

	dataStart := int64(8 + headerLen)
	dataLen := int64(len(data)) - dataStart
	tensors := make(map[string]TensorInfo, len(raw))
	for name, msg := range raw {
		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("safetensors: tensor %s: %w", name, err)
		}
		if len(th.DataOffsets) != 2 || th.DataOffsets[0] < 0 || th.DataOffsets[0] > th.DataOffsets[1] || th.DataOffsets[1] > dataLen {
			return nil, fmt.Errorf("safetensors: tensor %s: invalid data_offsets", name)
		}
		tensors[name] = TensorInfo{
			DType: DType(th.DType),
			Shape: th.Shape,
			Start: th.DataOffsets[0],
			End:   th.DataOffsets[1],
		}
	}
	return &File{Path: path, Tensors: tensors, data: data, dataStart: dataStart}, nil
}

// Close releases the underlying mapping.
func (f *File) Close() error {
	if f.closer != nil {
		err := f.closer()
		f.closer = nil
		return err
	}
	return nil
}

// Names returns tensor names ordered by their position in the data region.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Tensors))
	for name := range f.Tensors {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := f.Tensors[names[i]], f.Tensors[names[j]]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return names[i] < names[j]
	})
	return names
}

// Tensor returns the descriptor of a tensor.
func (f *File) Tensor(name string) (TensorInfo, bool) {
	t, ok := f.Tensors[name]
	return t, ok
}

// ReadTensorF32 decodes a tensor's data to float32.
func (f *File) ReadTensorF32(name string) ([]float32, TensorInfo, error) {
	t, ok := f.Tensors[name]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("tensor not found: %s", name)
	}
	n, err := numElements(t.Shape)
	if err != nil {
		return nil, TensorInfo{}, fmt.Errorf("tensor %s: %w", name, err)
	}
	elemSize, ok := t.DType.elemSize()
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("tensor %s: unsupported dtype %s", name, t.DType)
	}
	raw := f.data[f.dataStart+t.Start : f.dataStart+t.End]
	if len(raw) != n*elemSize {
		return nil, TensorInfo{}, fmt.Errorf("tensor %s: data size %d does not match shape %v", name, len(raw), t.Shape)
	}

	out := make([]float32, n)
	switch t.DType {
	case DTypeF32:
		for i := 0; i < n; i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case DTypeF16:
		for i := 0; i < n; i++ {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:])).Float32()
		}
	case DTypeBF16:
		copy(out, bfloat16.DecodeFloat32(raw))
	}
	return out, t, nil
}

func numElements(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("invalid dim %d", d)
		}
		if n > (int(^uint(0)>>1))/d {
			return 0, fmt.Errorf("tensor too large")
		}
		n *= d
	}
	return n, nil
}

func fileSize(f *os.File) (int, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return int(st.Size()), nil
}
