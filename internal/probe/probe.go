package probe

import (
	"context"
	"errors"

	"github.com/netpulse/netpulse/internal/record"
)

var (
	// ErrProbeExec indicates the external command failed to run or
	// exited non-zero where that is not a normal outcome.
	ErrProbeExec = errors.New("probe command failed")
	// ErrProbeParse indicates the command ran but produced output that
	// could not be decoded.
	ErrProbeParse = errors.New("probe output unparsable")
)

// Result is a raw probe outcome prior to normalization.
type Result interface {
	ResultKind() record.Kind
}

// Runner executes a single blocking measurement. The invoked command's
// own timeout bounds the blocking time; Run adds no timeout of its own.
type Runner interface {
	Kind() record.Kind
	Run(ctx context.Context) (Result, error)
}
