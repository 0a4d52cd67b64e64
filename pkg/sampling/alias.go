package sampling

import (
	"math"
	"math/rand"
)

// aliasTable draws an index with probability proportional to a fixed weight
// in O(1) per draw (Vose's alias method).
type aliasTable struct {
	prob  []float64
	alias []int64
}

// newAliasTable builds the table for weights raised to power. Non-positive
// weights are never drawn; if every weight is non-positive the draw is
// uniform.
func newAliasTable(weights []float64, power float64) aliasTable {
	n := len(weights)
	t := aliasTable{prob: make([]float64, n), alias: make([]int64, n)}
	if n == 0 {
		return t
	}

	scaled := make([]float64, n)
	sum := 0.0
	for i, w := range weights {
		if w > 0 {
			scaled[i] = math.Pow(w, power)
		}
		sum += scaled[i]
	}
	if sum == 0 {
		for i := range t.prob {
			t.prob[i] = 1
			t.alias[i] = int64(i)
		}
		return t
	}

	small := make([]int, 0, n)
	large := make([]int, 0, n)
	for i := range scaled {
		scaled[i] *= float64(n) / sum
		if scaled[i] < 1 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		l := small[len(small)-1]
		small = small[:len(small)-1]
		g := large[len(large)-1]
		large = large[:len(large)-1]

		t.prob[l] = scaled[l]
		t.alias[l] = int64(g)

		scaled[g] += scaled[l] - 1
		if scaled[g] < 1 {
			small = append(small, g)
		} else {
			large = append(large, g)
		}
	}
	// leftovers are 1 up to rounding
	for _, i := range append(small, large...) {
		t.prob[i] = 1
		t.alias[i] = int64(i)
	}
	return t
}

func (t aliasTable) draw(rng *rand.Rand) int64 {
	i := rng.Intn(len(t.prob))
	if rng.Float64() < t.prob[i] {
		return int64(i)
	}
	return t.alias[i]
}
