package safetensors

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/d4l3k/go-bfloat16"
	"github.com/goccy/go-json"
	"github.com/x448/float16"
)

// NamedTensor is one tensor to serialize.
type NamedTensor struct {
	Name  string
	Shape []int
	Data  []float32
}

// Write serializes tensors to path, encoding every tensor with the given
// dtype. Tensor payloads are laid out in the order given.
func Write(path string, tensors []NamedTensor, dtype DType) error {
	elemSize, ok := dtype.elemSize()
	if !ok {
		return fmt.Errorf("safetensors: unsupported dtype %s", dtype)
	}

	header := make(map[string]any, len(tensors)+1)
	header["__metadata__"] = map[string]string{"format": "pt"}
	var offset int64
	for _, t := range tensors {
		n, err := numElements(t.Shape)
		if err != nil {
			return fmt.Errorf("safetensors: tensor %s: %w", t.Name, err)
		}
		if n != len(t.Data) {
			return fmt.Errorf("safetensors: tensor %s: %d values for shape %v", t.Name, len(t.Data), t.Shape)
		}
		if _, dup := header[t.Name]; dup {
			return fmt.Errorf("safetensors: duplicate tensor %s", t.Name)
		}
		end := offset + int64(n*elemSize)
		header[t.Name] = tensorHeader{
			DType:       string(dtype),
			Shape:       t.Shape,
			DataOffsets: []int64{offset, end},
		}
		offset = end
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("safetensors: marshal header: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriterSize(f, 1<<20)

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(headerBytes)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		_ = f.Close()
		return err
	}
	if _, err := w.Write(headerBytes); err != nil {
		_ = f.Close()
		return err
	}

	for _, t := range tensors {
		if err := writePayload(w, t.Data, dtype); err != nil {
			_ = f.Close()
			return fmt.Errorf("safetensors: tensor %s: %w", t.Name, err)
		}
	}

	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writePayload(w *bufio.Writer, data []float32, dtype DType) error {
	switch dtype {
	case DTypeF32:
		var buf [4]byte
		for _, v := range data {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		}
	case DTypeF16:
		var buf [2]byte
		for _, v := range data {
			binary.LittleEndian.PutUint16(buf[:], float16.Fromfloat32(v).Bits())
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		}
	case DTypeBF16:
		if _, err := w.Write(bfloat16.EncodeFloat32(data)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported dtype %s", dtype)
	}
	return nil
}
