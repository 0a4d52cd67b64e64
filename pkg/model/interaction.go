package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Interaction is the scoring function of a single triple on its
// representations. Higher scores mean more plausible triples.
type Interaction interface {
	Score(h, r, t []float64) float64
	// Gradient adds g * dScore/d{h,r,t} to dh, dr and dt.
	Gradient(h, r, t []float64, g float64, dh, dr, dt []float64)
}

// Initializer fills a freshly allocated representation matrix.
type Initializer func(m *mat.Dense, rng *rand.Rand)

// Constrainer projects a representation matrix back onto its feasible set.
type Constrainer func(m *mat.Dense)

// Regularizer computes a penalty on the representations of one scored
// triple and adds scale * its gradient to dh, dr and dt.
type Regularizer interface {
	Penalty(h, r, t []float64, scale float64, dh, dr, dt []float64) float64
}

// TableRegularizer computes a penalty over the complete entity and relation
// tables and adds its gradient to dEntity and dRelation. It is applied once
// per collect.
type TableRegularizer interface {
	PenaltyTables(entity, relation, dEntity, dRelation *mat.Dense) float64
}

// CenteredUniform draws every value from U(-0.5, 0.5) / cols.
func CenteredUniform(m *mat.Dense, rng *rand.Rand) {
	_, cols := m.Dims()
	apply(m, func() float64 { return (rng.Float64() - 0.5) / float64(cols) })
}

// XavierUniform draws from U(-b, b) with b = sqrt(6 / (rows + cols)).
func XavierUniform(m *mat.Dense, rng *rand.Rand) {
	rows, cols := m.Dims()
	bound := math.Sqrt(6.0 / float64(rows+cols))
	apply(m, func() float64 { return (2*rng.Float64() - 1) * bound })
}

// XavierNormal draws from N(0, 2 / (rows + cols)).
func XavierNormal(m *mat.Dense, rng *rand.Rand) {
	rows, cols := m.Dims()
	std := math.Sqrt(2.0 / float64(rows+cols))
	apply(m, func() float64 { return rng.NormFloat64() * std })
}

// UnitPhase sets every complex pair (re, im) to a random point on the unit
// circle.
func UnitPhase(m *mat.Dense, rng *rand.Rand) {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for k := 0; k+1 < cols; k += 2 {
			phase := rng.Float64() * 2 * math.Pi
			row[k], row[k+1] = math.Cos(phase), math.Sin(phase)
		}
	}
}

// RandomPhase draws complex pairs with uniform phase and a magnitude in
// [0.5, 1) / (cols/2).
func RandomPhase(m *mat.Dense, rng *rand.Rand) {
	rows, cols := m.Dims()
	half := float64(cols / 2)
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for k := 0; k+1 < cols; k += 2 {
			phase := rng.Float64() * 2 * math.Pi
			magnitude := (rng.Float64()*0.5 + 0.5) / half
			row[k], row[k+1] = magnitude*math.Cos(phase), magnitude*math.Sin(phase)
		}
	}
}

func apply(m *mat.Dense, draw func() float64) {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for j := range row {
			row[j] = draw()
		}
	}
}

// NormalizeRows scales every row to unit L2 norm.
func NormalizeRows(m *mat.Dense) {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		normalize(m.RawRowView(i))
	}
}

// ClampRowNorm scales rows whose L2 norm exceeds max down to max.
func ClampRowNorm(max float64) Constrainer {
	return func(m *mat.Dense) {
		rows, _ := m.Dims()
		for i := 0; i < rows; i++ {
			row := m.RawRowView(i)
			if n := floats.Norm(row, 2); n > max {
				floats.Scale(max/n, row)
			}
		}
	}
}

// NormalizeComplex scales every complex pair (re, im) to unit modulus.
func NormalizeComplex(m *mat.Dense) {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for k := 0; k+1 < cols; k += 2 {
			if n := math.Hypot(row[k], row[k+1]); n > 1e-10 {
				row[k] /= n
				row[k+1] /= n
			}
		}
	}
}

// normalize scales v to unit L2 norm in place.
func normalize(v []float64) {
	if n := floats.Norm(v, 2); n > 1e-10 {
		floats.Scale(1/n, v)
	}
}

// LpRegularizer penalizes Weight * sum ||x||_p^p over the head, relation and
// tail representations. P = 1 selects the L1 penalty, anything else the
// squared L2 penalty.
type LpRegularizer struct {
	Weight float64
	P      float64
}

func (l LpRegularizer) Penalty(h, r, t []float64, scale float64, dh, dr, dt []float64) float64 {
	total := 0.0
	for _, pair := range [][2][]float64{{h, dh}, {r, dr}, {t, dt}} {
		total += l.vector(pair[0], scale, pair[1])
	}
	return total
}

func (l LpRegularizer) vector(x []float64, scale float64, dx []float64) float64 {
	total := 0.0
	for i, v := range x {
		if l.P == 1 {
			total += math.Abs(v)
			dx[i] += scale * l.Weight * sign(v)
			continue
		}
		total += v * v
		dx[i] += scale * l.Weight * 2 * v
	}
	return l.Weight * total
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// ComplexAt reads the k-th (re, im) pair of v.
func ComplexAt(v []float64, k int) complex128 { return complex(v[2*k], v[2*k+1]) }

// AddComplex adds c to the k-th (re, im) pair of v.
func AddComplex(v []float64, k int, c complex128) {
	v[2*k] += real(c)
	v[2*k+1] += imag(c)
}
