package metrics

// Run outcomes.
const (
	// OutcomeDelivered means the run produced at least one species.
	OutcomeDelivered = "delivered"
	// OutcomeEmpty means the run completed with zero species.
	OutcomeEmpty = "empty"
	// OutcomeCancelled means the run was cancelled before delivery.
	OutcomeCancelled = "cancelled"
)

// Image lookup results.
const (
	LookupFound    = "found"
	LookupNotFound = "not_found"
	LookupFailure  = "failure"
)

// Recorder records pipeline events.
type Recorder interface {
	// RecordRun records a finished run with its outcome and duration in seconds.
	RecordRun(outcome string, seconds float64)

	// RecordLookup records one image lookup result.
	RecordLookup(result string)

	// RecordSpecimenQueryFailure records a failed specimen query.
	RecordSpecimenQueryFailure()
}

// NopRecorder discards all events.
type NopRecorder struct{}

// RecordRun implements Recorder.
func (NopRecorder) RecordRun(string, float64) {}

// RecordLookup implements Recorder.
func (NopRecorder) RecordLookup(string) {}

// RecordSpecimenQueryFailure implements Recorder.
func (NopRecorder) RecordSpecimenQueryFailure() {}
