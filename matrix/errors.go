package matrix

import "errors"

var (
	// ErrInvalidDimension is returned by the Zero and Identity factories when
	// a requested dimension is smaller than 1.
	ErrInvalidDimension = errors.New("matrix: invalid dimension")

	// ErrShapeMismatch is returned by arithmetic over matrices whose sizes
	// are incompatible.
	ErrShapeMismatch = errors.New("matrix: shape mismatch")

	// ErrNotSquare is returned when an LU decomposition is requested for a
	// non-square matrix.
	ErrNotSquare = errors.New("matrix: not square")

	// ErrNonInvertible is returned when triangular elimination runs into a
	// zero divisor despite the pivot epsilon guard.
	ErrNonInvertible = errors.New("matrix: not invertible")
)
