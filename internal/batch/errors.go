package batch

import (
	"errors"
	"fmt"
	"time"
)

// ErrProcessorRetired is returned by Processor.Add after the registry retired
// the processor. The Manager re-resolves the key when it sees it.
var ErrProcessorRetired = errors.New("batch processor retired")

// AdmissionTimeoutError is returned when Add waited longer than the add
// timeout for a batch to accept its record. The record was not admitted and
// the caller must resubmit.
type AdmissionTimeoutError struct {
	Author  string
	Type    string
	Timeout time.Duration
}

func (e *AdmissionTimeoutError) Error() string {
	return fmt.Sprintf("timed out add of record after %v (author=%s type=%s)", e.Timeout, e.Author, e.Type)
}

// InvalidRecordError is returned for records rejected at the Add boundary.
type InvalidRecordError struct {
	RecordType RecordType
	Reason     string
}

func (e *InvalidRecordError) Error() string {
	if e.RecordType == "" {
		return fmt.Sprintf("invalid batch record: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %q batch record: %s", e.RecordType, e.Reason)
}

// IsAdmissionTimeout reports whether err is, or wraps, an AdmissionTimeoutError.
func IsAdmissionTimeout(err error) bool {
	var target *AdmissionTimeoutError
	return errors.As(err, &target)
}
