// File: internal/browser/results.go
package browser

import "errors"

// Sentinel errors for resolution failures callers may branch on.
var (
	ErrStaleObservation = errors.New("observation is stale for this turn")
	ErrUnknownID        = errors.New("observation ID not present in current map")
)

// FailureReason classifies why an action did not take effect. The loop's
// handling policy is keyed on this value rather than on error string
// matching.
type FailureReason string

const (
	FailNone             FailureReason = ""
	FailStaleObservation FailureReason = "stale_observation"
	FailUnknownID        FailureReason = "unknown_id"
	FailNoGeometry       FailureReason = "no_geometry"
	FailFallbackMiss     FailureReason = "fallback_miss"
	FailDriver           FailureReason = "driver_error"
	FailTabOutOfRange    FailureReason = "tab_out_of_range"
	FailBadArgument      FailureReason = "bad_argument"
)

// ActionResult reports the outcome of one attempted browser interaction.
// Failed interactions are data, not panics; the loop decides what to do with
// them.
type ActionResult struct {
	OK     bool
	Reason FailureReason
	Err    error
}

func Success() ActionResult {
	return ActionResult{OK: true}
}

func Failure(reason FailureReason, err error) ActionResult {
	return ActionResult{Reason: reason, Err: err}
}

func (r ActionResult) String() string {
	if r.OK {
		return "ok"
	}
	if r.Err != nil {
		return string(r.Reason) + ": " + r.Err.Error()
	}
	return string(r.Reason)
}
