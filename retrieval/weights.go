package retrieval

import (
	"fmt"
	"math/rand/v2"

	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"gonum.org/v1/gonum/mat"
)

// Gate defaults.
const (
	DefaultNumHeads  = 8
	DefaultHeadDim   = 64
	DefaultGateScale = 0.02
	DefaultGateBias  = -2.0
)

const weightsFormatVersion = 1

// Weights are the gate parameters: a dim x hidden projection and a bias of
// length hidden.
type Weights struct {
	Gate *mat.Dense
	Bias []float64
}

// NewWeights validates and wraps a gate projection and bias. Both are copied.
func NewWeights(gate mat.Matrix, bias []float64) (*Weights, error) {
	if gate == nil {
		return nil, ErrWeightsRequired
	}
	_, hidden := gate.Dims()
	if len(bias) != hidden {
		return nil, fmt.Errorf("%w: bias length %d, gate width %d", ErrInvalidWeights, len(bias), hidden)
	}
	return &Weights{
		Gate: mat.DenseCopyOf(gate),
		Bias: append([]float64(nil), bias...),
	}, nil
}

// GateInit describes a deterministic random initialization.
type GateInit struct {
	Seed  uint64
	Scale float64 // Standard deviation of the gate entries
	Bias  float64 // Constant bias; negative values bias the gate toward sparsity
}

// DefaultGateInit returns the default initialization for a seed.
func DefaultGateInit(seed uint64) GateInit {
	return GateInit{Seed: seed, Scale: DefaultGateScale, Bias: DefaultGateBias}
}

// SeededWeights builds dim x hidden gate weights from normally distributed
// entries scaled by init.Scale. The same init always yields the same weights.
func SeededWeights(dim, hidden int, init GateInit) (*Weights, error) {
	if dim <= 0 || hidden <= 0 {
		return nil, fmt.Errorf("%w: dims %dx%d", ErrInvalidWeights, dim, hidden)
	}
	r := rand.New(rand.NewPCG(init.Seed, init.Seed^0x9e3779b97f4a7c15))

	data := make([]float64, dim*hidden)
	for i := range data {
		data[i] = r.NormFloat64() * init.Scale
	}
	bias := make([]float64, hidden)
	for i := range bias {
		bias[i] = init.Bias
	}
	return &Weights{Gate: mat.NewDense(dim, hidden, data), Bias: bias}, nil
}

// Dims returns the input dimension and the gate width.
func (w *Weights) Dims() (dim, hidden int) {
	return w.Gate.Dims()
}

// MarshalBinary encodes the weights as a version, the gate shape, the
// row-major gate entries and the bias.
func (w *Weights) MarshalBinary() ([]byte, error) {
	rows, cols := w.Gate.Dims()
	size := varint.Uint64.Size(weightsFormatVersion) +
		varint.Uint64.Size(uint64(rows)) +
		varint.Uint64.Size(uint64(cols)) +
		(rows*cols+len(w.Bias))*raw.Float64.Size(0)
	bs := make([]byte, size)

	n := varint.Uint64.Marshal(weightsFormatVersion, bs)
	n += varint.Uint64.Marshal(uint64(rows), bs[n:])
	n += varint.Uint64.Marshal(uint64(cols), bs[n:])
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			n += raw.Float64.Marshal(w.Gate.At(i, j), bs[n:])
		}
	}
	for _, b := range w.Bias {
		n += raw.Float64.Marshal(b, bs[n:])
	}
	return bs[:n], nil
}

// UnmarshalWeights decodes weights produced by MarshalBinary.
func UnmarshalWeights(data []byte) (*Weights, error) {
	version, n, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWeights, err)
	}
	if version != weightsFormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrInvalidWeights, version)
	}

	dims := make([]uint64, 2)
	for i := range dims {
		v, m, err := varint.Uint64.Unmarshal(data[n:])
		n += m
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidWeights, err)
		}
		dims[i] = v
	}
	rows, cols := dims[0], dims[1]
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: empty gate", ErrInvalidWeights)
	}
	if rows > uint64(len(data)) || cols > uint64(len(data)) {
		return nil, fmt.Errorf("%w: gate shape %dx%d exceeds payload", ErrInvalidWeights, rows, cols)
	}
	want := (rows*cols + cols) * 8
	if uint64(len(data)-n) != want {
		return nil, fmt.Errorf("%w: expected %d payload bytes, got %d", ErrInvalidWeights, want, len(data)-n)
	}

	values := make([]float64, rows*cols+cols)
	for i := range values {
		v, m, err := raw.Float64.Unmarshal(data[n:])
		n += m
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidWeights, err)
		}
		values[i] = v
	}

	gate := values[:rows*cols]
	bias := values[rows*cols:]
	return &Weights{
		Gate: mat.NewDense(int(rows), int(cols), gate),
		Bias: bias,
	}, nil
}
