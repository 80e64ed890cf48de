package fit

import (
	"math"

	hungarian "github.com/arthurkushman/go-hungarian"
)

// Assigner resolves the per-layer hit-to-candidate assignment. costs[i][j]
// is the squared residual between candidate i and hit unit j, normalized by
// the candidate's 3-sigma gate: entries above 1 lie outside the gate and
// must not be assigned. Assign returns, for every candidate row, the index
// of the assigned hit unit or -1. A hit unit may serve at most one
// candidate.
type Assigner interface {
	Assign(costs [][]float64) []int
}

// Greedy assigns each candidate, in spawn order, the nearest hit unit still
// available within its gate, without regard to the preferences of the
// candidates that follow. This is the contractual baseline assignment.
type Greedy struct{}

// Assign implements Assigner.
func (Greedy) Assign(costs [][]float64) []int {
	out := make([]int, len(costs))
	taken := make(map[int]bool)
	for i, row := range costs {
		out[i] = -1
		best := math.Inf(1)
		for j, c := range row {
			if taken[j] || c > 1 {
				continue
			}
			if c < best {
				best = c
				out[i] = j
			}
		}
		if out[i] >= 0 {
			taken[out[i]] = true
		}
	}
	return out
}

// Hungarian assigns hit units to candidates by minimizing the total gated
// cost over the whole layer, trading the spawn-order bias of Greedy for a
// globally optimal pairing.
type Hungarian struct{}

// Assign implements Assigner.
func (Hungarian) Assign(costs [][]float64) []int {
	numRows := len(costs)
	out := make([]int, numRows)
	for i := range out {
		out[i] = -1
	}
	if numRows == 0 || len(costs[0]) == 0 {
		return out
	}
	numCols := len(costs[0])

	// pad to square and convert cost to profit; anything outside the gate
	// is clamped so padding cannot look attractive
	const maxCost = 2.0
	size := numRows
	if numCols > size {
		size = numCols
	}
	profit := make([][]float64, size)
	for i := range profit {
		profit[i] = make([]float64, size)
		for j := range profit[i] {
			if i < numRows && j < numCols {
				profit[i][j] = maxCost - math.Min(costs[i][j], maxCost)
			}
		}
	}

	for row, cols := range hungarian.SolveMax(profit) {
		for col, p := range cols {
			if row >= numRows || col >= numCols {
				continue
			}
			if cost := maxCost - p; cost <= 1 {
				out[row] = col
			}
		}
	}
	return out
}
