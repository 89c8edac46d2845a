// Package runid generates per-invocation identifiers used to correlate log
// lines, cache keys, and persisted rows for a single backtest run.
package runid

import "github.com/google/uuid"

// New returns a fresh run identifier.
func New() string {
	return uuid.New().String()
}
