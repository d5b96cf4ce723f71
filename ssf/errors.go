package ssf

import (
	"errors"
	"fmt"

	"github.com/lucasmaystre/gossf/metrics"
)

var (
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrNotPositiveDefinite = errors.New("matrix is not positive definite")
	ErrNotCorrelation      = errors.New("not a correlation matrix")
	ErrNotTimeInvariant    = errors.New("model is not time invariant")
	ErrMeasurementErrors   = errors.New("measurement must be error-free")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// Reject records a failed construction of op and returns err wrapped with
// the operator name.
func Reject(op string, err error) error {
	metrics.ModelsRejected.WithLabelValues(op).Inc()
	Logger().Debug("model rejected", "op", op, "err", err)
	return fmt.Errorf("%s: %w", op, err)
}
