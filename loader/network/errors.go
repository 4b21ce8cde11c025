package network

import "fmt"

// AcquisitionError is a failed target-assignment request. It aborts the
// file's pipeline run without touching the file on disk.
type AcquisitionError struct {
	URL    string
	Status int
	Reason string
}

// Error ...
func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire upload target %s: HTTP %d: %s", e.URL, e.Status, e.Reason)
}

// UploadError is a failed transfer to an acquired target. The caller is
// expected to quarantine the file and its sidecar state.
type UploadError struct {
	URL    string
	Status int
	Reason string
}

// Error ...
func (e *UploadError) Error() string {
	return fmt.Sprintf("upload to %s: HTTP %d: %s", e.URL, e.Status, e.Reason)
}

// StatusError is a failed status fetch or status recording after a
// successful upload. It is reported but never fails the file's pipeline run.
type StatusError struct {
	URL    string
	Status int
	Reason string
}

// Error ...
func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch upload status %s: HTTP %d: %s", e.URL, e.Status, e.Reason)
}
