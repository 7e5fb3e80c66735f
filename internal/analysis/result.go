package analysis

import (
	"encoding/json"
	"reflect"

	"github.com/mbell/sensorium/internal/models"
)

// Outcome is the per-analysis result: either a list of records or an error
// marker, never both. An empty record list means the analysis ran and nothing
// qualified, which consumers must treat differently from a failure.
type Outcome struct {
	records any
	err     string
}

// OK wraps a successful record list.
func OK(records any) Outcome {
	return Outcome{records: records}
}

// Fail wraps a failure message.
func Fail(msg string) Outcome {
	return Outcome{err: msg}
}

// Failed reports whether the analysis errored.
func (o Outcome) Failed() bool {
	return o.err != ""
}

// Err returns the failure message, empty on success.
func (o Outcome) Err() string {
	return o.err
}

// Records returns the record list, nil on failure.
func (o Outcome) Records() any {
	return o.records
}

// MarshalJSON encodes success as a JSON array and failure as {"error": msg}.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.err != "" {
		return json.Marshal(map[string]string{"error": o.err})
	}
	if nilRecords(o.records) {
		return []byte("[]"), nil
	}
	return json.Marshal(o.records)
}

// nilRecords catches both an untyped nil and a typed-nil slice. A kernel that
// filters everything out returns its zero-value slice, and wrapping that in an
// interface hides the nil that would otherwise marshal as null.
func nilRecords(records any) bool {
	if records == nil {
		return true
	}
	v := reflect.ValueOf(records)
	return v.Kind() == reflect.Slice && v.IsNil()
}

// Result maps each requested analysis kind to its outcome.
type Result map[models.AnalysisKind]Outcome
