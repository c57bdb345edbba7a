package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSeededWeights_Deterministic(t *testing.T) {
	a, err := SeededWeights(16, 8, DefaultGateInit(42))
	require.NoError(t, err)
	b, err := SeededWeights(16, 8, DefaultGateInit(42))
	require.NoError(t, err)
	c, err := SeededWeights(16, 8, DefaultGateInit(43))
	require.NoError(t, err)

	assert.True(t, mat.Equal(a.Gate, b.Gate))
	assert.False(t, mat.Equal(a.Gate, c.Gate))
	assert.Equal(t, a.Bias, b.Bias)

	dim, hidden := a.Dims()
	assert.Equal(t, 16, dim)
	assert.Equal(t, 8, hidden)
	for _, v := range a.Bias {
		assert.Equal(t, DefaultGateBias, v)
	}
}

func TestSeededWeights_InvalidDims(t *testing.T) {
	_, err := SeededWeights(0, 8, DefaultGateInit(1))
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func TestNewWeights(t *testing.T) {
	gate := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})

	w, err := NewWeights(gate, []float64{0, 0, 0})
	require.NoError(t, err)

	// Inputs are copied.
	gate.Set(0, 0, 99)
	assert.Equal(t, 1.0, w.Gate.At(0, 0))

	_, err = NewWeights(gate, []float64{0})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	_, err = NewWeights(nil, nil)
	assert.ErrorIs(t, err, ErrWeightsRequired)
}

func TestWeights_MarshalRoundTrip(t *testing.T) {
	w, err := SeededWeights(12, 5, GateInit{Seed: 7, Scale: 0.5, Bias: -1.5})
	require.NoError(t, err)

	data, err := w.MarshalBinary()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalWeights(data)
	require.NoError(t, err)
	assert.True(t, mat.Equal(w.Gate, decoded.Gate))
	assert.Equal(t, w.Bias, decoded.Bias)
}

func TestUnmarshalWeights_Invalid(t *testing.T) {
	w, err := SeededWeights(4, 2, DefaultGateInit(1))
	require.NoError(t, err)
	data, err := w.MarshalBinary()
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"wrong version", []byte{9, 1, 1}},
		{"truncated", data[:len(data)-3]},
		{"trailing bytes", append(append([]byte{}, data...), 0, 0)},
		{"zero shape", []byte{1, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalWeights(tt.data)
			assert.ErrorIs(t, err, ErrInvalidWeights)
		})
	}
}
