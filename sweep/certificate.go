package sweep

import (
	"errors"
	"fmt"

	"github.com/weiihann/membatch/harness"
)

// ErrCertificateMismatch marks a batched strategy that computed a different
// aggregate than the baseline. It always indicates a logic defect.
var ErrCertificateMismatch = errors.New("certificates don't match")

// MismatchError names the failing strategy and both certificates.
type MismatchError struct {
	Payload   string
	Strategy  harness.Strategy
	BatchSize int
	Got       int64
	Want      int64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf(
		"error in %s algorithm (payload %s, batch size %d): "+
			"certificate %d, baseline %d",
		e.Strategy, e.Payload, e.BatchSize, e.Got, e.Want,
	)
}

// Is reports ErrCertificateMismatch.
func (e *MismatchError) Is(target error) bool {
	return target == ErrCertificateMismatch
}

// Validate compares a strategy's certificate with the baseline's.
func Validate(
	payload string,
	s harness.Strategy,
	batchSize int,
	got, want int64,
) error {
	if got == want {
		return nil
	}

	return &MismatchError{
		Payload:   payload,
		Strategy:  s,
		BatchSize: batchSize,
		Got:       got,
		Want:      want,
	}
}
