package tensor

// Mat represents a dense row-major matrix of float32 values.
//
// R and C are the number of rows and columns. Stride is the number of
// elements between the starts of two consecutive rows; for the matrices used
// here it always equals C. Mat performs no bounds checking beyond what Go's
// slice types provide.
type Mat struct {
	R, C   int
	Stride int
	Data   []float32
}

// NewMatFromData creates a matrix over existing data. It panics if the data
// length does not match r*c; weights reaching this point have already been
// shape-checked by the strict load.
func NewMatFromData(r, c int, data []float32) Mat {
	if r*c != len(data) {
		panic("data length mismatch")
	}
	return Mat{R: r, C: c, Stride: c, Data: data}
}

// Row returns a view of the i-th row.
func (m *Mat) Row(i int) []float32 {
	off := i * m.Stride
	return m.Data[off : off+m.C]
}

// MatVec computes dst = m · x. dst must have length m.R and x length m.C.
func MatVec(dst []float32, m *Mat, x []float32) {
	for i := 0; i < m.R; i++ {
		dst[i] = Dot(m.Row(i), x)
	}
}

// MatVecBias computes dst = m · x + b.
func MatVecBias(dst []float32, m *Mat, x, b []float32) {
	for i := 0; i < m.R; i++ {
		dst[i] = Dot(m.Row(i), x) + b[i]
	}
}
