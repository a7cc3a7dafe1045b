package domain

// FileStatus tracks a file through the download pipeline.
type FileStatus string

const (
	StatusPending     FileStatus = "pending"
	StatusDownloading FileStatus = "downloading"
	StatusVerifying   FileStatus = "verifying"

	// Terminal outcomes. A file reaches exactly one of these.
	StatusVerified            FileStatus = "verified"
	StatusCompletedUnverified FileStatus = "completed_unverified"
	StatusChecksumMismatch    FileStatus = "checksum_mismatch"
	StatusIncomplete          FileStatus = "incomplete"
	StatusIOError             FileStatus = "io_error"
)

// Terminal reports whether the status is a final per-file outcome.
func (s FileStatus) Terminal() bool {
	switch s {
	case StatusVerified, StatusCompletedUnverified, StatusChecksumMismatch, StatusIncomplete, StatusIOError:
		return true
	}
	return false
}

// Success reports whether the status counts toward overall run success.
func (s FileStatus) Success() bool {
	return s == StatusVerified || s == StatusCompletedUnverified
}
