package vecmath

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Epsilon is the additive guard used in every division.
const Epsilon = 1e-8

// SigmoidClip bounds sigmoid inputs. exp(30) is far from overflow and keeps
// the result strictly inside (0, 1) in float64.
const SigmoidClip = 30.0

// Dot returns the dot product of a and b. The slices must have equal length.
func Dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

// Norm returns the Euclidean norm of v.
func Norm(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, 2)
}

// Normalize returns v / (|v| + Epsilon) as a new slice. A zero vector comes
// back as a zero vector.
func Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	if len(v) == 0 {
		return out
	}
	return floats.ScaleTo(out, 1/(Norm(v)+Epsilon), v)
}

// SafeDiv returns num / (den + Epsilon).
func SafeDiv(num, den float64) float64 {
	return num / (den + Epsilon)
}

// Scale returns c*v as a new slice.
func Scale(c float64, v []float64) []float64 {
	return floats.ScaleTo(make([]float64, len(v)), c, v)
}

// Sub returns a-b as a new slice.
func Sub(a, b []float64) []float64 {
	return floats.SubTo(make([]float64, len(a)), a, b)
}

// Mean returns the arithmetic mean of v, or 0 for an empty slice.
func Mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Sum(v) / float64(len(v))
}

// Softmax returns exp(x - max(x)) / (sum + Epsilon).
func Softmax(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	m := floats.Max(x)
	var sum float64
	for i, v := range x {
		out[i] = math.Exp(v - m)
		sum += out[i]
	}
	floats.Scale(1/(sum+Epsilon), out)
	return out
}

// Sigmoid returns 1 / (1 + exp(-x)) with x clipped to ±SigmoidClip.
func Sigmoid(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0.5
	case x > SigmoidClip:
		x = SigmoidClip
	case x < -SigmoidClip:
		x = -SigmoidClip
	}
	return 1 / (1 + math.Exp(-x))
}

// Align fits v to length n by truncating it or tiling it cyclically.
func Align(v []float64, n int) []float64 {
	out := make([]float64, n)
	if len(v) == 0 {
		return out
	}
	for i := range out {
		out[i] = v[i%len(v)]
	}
	return out
}

// IsFinite reports whether every element of v is finite.
func IsFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Clamp01 bounds x to [0, 1].
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
