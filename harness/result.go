// Package harness implements the four access strategies measured by the
// sweep. Each strategy replays the same traffic pattern over the backing
// array, applies the payload to every loaded element, and returns the
// accumulated certificate with the elapsed wall-clock time.
package harness

import "time"

// Result holds the outcome of one repetition of one strategy.
type Result struct {
	Certificate int64
	Elapsed     time.Duration
}
