package matrix

import "fmt"

// DefaultPivotEpsilon substitutes for a pivot that would otherwise be exactly
// zero during the Crout decomposition. This is a numerical policy, not error
// handling: it keeps the factorization defined for matrices with structural
// zeroes on the diagonal.
const DefaultPivotEpsilon = 1e-20

// SetPivotEpsilon overrides the zero-pivot substitute used by LU and Inverse
// on this matrix. A non-positive eps restores DefaultPivotEpsilon.
func (m *Dense) SetPivotEpsilon(eps float64) {
	m.pivotEps = eps
	m.inv = nil
}

// LU returns the Crout decomposition m = L * U with L lower-triangular and U
// unit upper-triangular. It returns ErrNotSquare for non-square input. A
// pivot that comes out exactly zero is replaced with the pivot epsilon.
func (m *Dense) LU() (l, u *Dense, err error) {
	if m.rows != m.cols {
		return nil, nil, fmt.Errorf("%dx%d: %w", m.rows, m.cols, ErrNotSquare)
	}
	eps := m.pivotEps
	if eps <= 0 {
		eps = DefaultPivotEpsilon
	}
	n := m.rows
	l, err = Zero(n, n)
	if err != nil {
		return nil, nil, err
	}
	u, err = Identity(n)
	if err != nil {
		return nil, nil, err
	}
	for k := 0; k < n; k++ {
		for i := k; i < n; i++ {
			sum := 0.0
			for s := 0; s < k; s++ {
				sum += l.data[i][s] * u.data[s][k]
			}
			l.data[i][k] = m.data[i][k] - sum
		}
		pivot := l.data[k][k]
		if pivot == 0 {
			pivot = eps
			l.data[k][k] = eps
		}
		for j := k + 1; j < n; j++ {
			sum := 0.0
			for s := 0; s < k; s++ {
				sum += l.data[k][s] * u.data[s][j]
			}
			u.data[k][j] = (m.data[k][j] - sum) / pivot
		}
	}
	return l, u, nil
}

// Inverse returns the inverse of the matrix, assembled column by column from
// the LU factors: L*y = e_i by forward substitution, then U*x = y by back
// substitution. The result is cached until the matrix is written to; treat
// it as read-only.
//
// It returns ErrNotSquare for non-square input and ErrNonInvertible if the
// elimination divides by exactly zero despite the pivot epsilon guard.
func (m *Dense) Inverse() (*Dense, error) {
	if m.inv != nil {
		return m.inv, nil
	}
	l, u, err := m.LU()
	if err != nil {
		return nil, err
	}
	n := m.rows
	inv, err := Zero(n, n)
	if err != nil {
		return nil, err
	}
	y := make([]float64, n)
	for col := 0; col < n; col++ {
		// forward substitution for L*y = e_col
		for i := 0; i < n; i++ {
			sum := 0.0
			for s := 0; s < i; s++ {
				sum += l.data[i][s] * y[s]
			}
			e := 0.0
			if i == col {
				e = 1.0
			}
			if l.data[i][i] == 0 {
				return nil, fmt.Errorf("zero pivot in column %d: %w", col, ErrNonInvertible)
			}
			y[i] = (e - sum) / l.data[i][i]
		}
		// back substitution for U*x = y; U has a unit diagonal
		for i := n - 1; i >= 0; i-- {
			sum := 0.0
			for s := i + 1; s < n; s++ {
				sum += u.data[i][s] * inv.data[s][col]
			}
			inv.data[i][col] = y[i] - sum
		}
	}
	m.inv = inv
	return inv, nil
}
