// Package matrix implements a dense two-dimensional matrix with the
// arithmetic needed by the Kalman filter: addition, subtraction,
// multiplication, transposition and inversion via Crout LU decomposition.
//
// Matrices are value-semantic: arithmetic never mutates its operands and
// always allocates the result. The transpose and the inverse are computed
// lazily and cached on the receiver; every write goes through Set or SetRow,
// which is the single path that invalidates both caches.
package matrix

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats/scalar"
)

// Dense is a rectangular matrix of float64 values.
//
// The zero value is the empty 0x0 matrix; construct anything else with New,
// Zero or Identity.
type Dense struct {
	rows, cols int
	data       [][]float64

	pivotEps float64

	// lazily computed, dropped on every write
	trans *Dense
	inv   *Dense
}

// New creates a matrix from a rectangular slice of rows. A nil or empty
// slice yields the empty 0x0 matrix. It returns ErrShapeMismatch if the rows
// are not all of equal length.
func New(rows [][]float64) (*Dense, error) {
	if len(rows) == 0 {
		return &Dense{}, nil
	}
	cols := len(rows[0])
	data := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d: %w", i, len(row), cols, ErrShapeMismatch)
		}
		data[i] = append([]float64(nil), row...)
	}
	return &Dense{rows: len(rows), cols: cols, data: data}, nil
}

// Zero returns an r x c matrix of zeroes. It returns ErrInvalidDimension if
// either dimension is smaller than 1.
func Zero(r, c int) (*Dense, error) {
	if r < 1 || c < 1 {
		return nil, fmt.Errorf("%d x %d: %w", r, c, ErrInvalidDimension)
	}
	data := make([][]float64, r)
	for i := range data {
		data[i] = make([]float64, c)
	}
	return &Dense{rows: r, cols: c, data: data}, nil
}

// Identity returns the n x n identity matrix. It returns ErrInvalidDimension
// if n is smaller than 1.
func Identity(n int) (*Dense, error) {
	m, err := Zero(n, n)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		m.data[i][i] = 1
	}
	return m, nil
}

// Dims returns the number of rows and columns.
func (m *Dense) Dims() (r, c int) {
	return m.rows, m.cols
}

// At returns the element at row i, column j. It panics if the indices are
// out of range.
func (m *Dense) At(i, j int) float64 {
	return m.data[i][j]
}

// Set writes the element at row i, column j and drops the cached transpose
// and inverse. It panics if the indices are out of range.
func (m *Dense) Set(i, j int, v float64) {
	m.data[i][j] = v
	m.invalidate()
}

// Row returns a copy of row i. Mutating the returned slice does not affect
// the matrix; writes go through Set or SetRow.
func (m *Dense) Row(i int) []float64 {
	return append([]float64(nil), m.data[i]...)
}

// SetRow replaces row i and drops the cached transpose and inverse. It
// returns ErrShapeMismatch if the row length differs from the column count.
func (m *Dense) SetRow(i int, row []float64) error {
	if len(row) != m.cols {
		return fmt.Errorf("row length %d, want %d: %w", len(row), m.cols, ErrShapeMismatch)
	}
	copy(m.data[i], row)
	m.invalidate()
	return nil
}

// Clone returns a deep copy of the matrix. Caches are not carried over.
func (m *Dense) Clone() *Dense {
	c := &Dense{rows: m.rows, cols: m.cols, pivotEps: m.pivotEps}
	c.data = make([][]float64, m.rows)
	for i, row := range m.data {
		c.data[i] = append([]float64(nil), row...)
	}
	return c
}

// Add returns m + n. It returns ErrShapeMismatch if the sizes differ.
func (m *Dense) Add(n *Dense) (*Dense, error) {
	if m.rows != n.rows || m.cols != n.cols {
		return nil, fmt.Errorf("add %dx%d and %dx%d: %w", m.rows, m.cols, n.rows, n.cols, ErrShapeMismatch)
	}
	out := m.Clone()
	for i := range out.data {
		for j := range out.data[i] {
			out.data[i][j] += n.data[i][j]
		}
	}
	return out, nil
}

// Sub returns m - n. It returns ErrShapeMismatch if the sizes differ.
func (m *Dense) Sub(n *Dense) (*Dense, error) {
	if m.rows != n.rows || m.cols != n.cols {
		return nil, fmt.Errorf("sub %dx%d and %dx%d: %w", m.rows, m.cols, n.rows, n.cols, ErrShapeMismatch)
	}
	out := m.Clone()
	for i := range out.data {
		for j := range out.data[i] {
			out.data[i][j] -= n.data[i][j]
		}
	}
	return out, nil
}

// Mul returns the matrix product m * n. It returns ErrShapeMismatch if the
// inner dimensions disagree.
func (m *Dense) Mul(n *Dense) (*Dense, error) {
	if m.cols != n.rows {
		return nil, fmt.Errorf("mul %dx%d and %dx%d: %w", m.rows, m.cols, n.rows, n.cols, ErrShapeMismatch)
	}
	if m.rows == 0 || n.cols == 0 {
		return &Dense{}, nil
	}
	// Walking rows of the transpose keeps the inner loop on contiguous rows.
	nt := n.T()
	out, err := Zero(m.rows, n.cols)
	if err != nil {
		return nil, err
	}
	for i := 0; i < m.rows; i++ {
		for j := 0; j < n.cols; j++ {
			var sum float64
			for k, v := range m.data[i] {
				sum += v * nt.data[j][k]
			}
			out.data[i][j] = sum
		}
	}
	return out, nil
}

// Scale returns a new matrix with every element multiplied by c.
func (m *Dense) Scale(c float64) *Dense {
	out := m.Clone()
	for i := range out.data {
		for j := range out.data[i] {
			out.data[i][j] *= c
		}
	}
	return out
}

// T returns the transpose. The result is cached until the matrix is written
// to; treat it as read-only.
func (m *Dense) T() *Dense {
	if m.trans != nil {
		return m.trans
	}
	t := &Dense{rows: m.cols, cols: m.rows}
	t.data = make([][]float64, m.cols)
	for i := 0; i < m.cols; i++ {
		t.data[i] = make([]float64, m.rows)
		for j := 0; j < m.rows; j++ {
			t.data[i][j] = m.data[j][i]
		}
	}
	m.trans = t
	return t
}

// Equal reports whether m and n have the same shape and elements.
func (m *Dense) Equal(n *Dense) bool {
	if m.rows != n.rows || m.cols != n.cols {
		return false
	}
	for i := range m.data {
		for j := range m.data[i] {
			if m.data[i][j] != n.data[i][j] {
				return false
			}
		}
	}
	return true
}

// EqualApprox reports whether m and n have the same shape and elements equal
// within tol, absolutely or relatively.
func (m *Dense) EqualApprox(n *Dense, tol float64) bool {
	if m.rows != n.rows || m.cols != n.cols {
		return false
	}
	for i := range m.data {
		for j := range m.data[i] {
			if !scalar.EqualWithinAbsOrRel(m.data[i][j], n.data[i][j], tol, tol) {
				return false
			}
		}
	}
	return true
}

// String implements the Stringer interface.
func (m *Dense) String() string {
	var b strings.Builder
	for i, row := range m.data {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%v", row)
	}
	return b.String()
}

func (m *Dense) invalidate() {
	m.trans = nil
	m.inv = nil
}
