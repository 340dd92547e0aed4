package widget

import "github.com/bv-saas/web/internal/upload"

// Status messages shown under the upload button.
const (
	StatusIdle      = ""
	StatusUploading = "Uploading..."
	StatusCompleted = "Uploaded (mock). Connect to API /v1/uploads to complete."
)

// Failure messages. The mock uploader never produces them.
const (
	StatusFailedNetwork  = "Upload failed: network error."
	StatusFailedRejected = "Upload failed: file rejected."
	StatusFailed         = "Upload failed."
)

func failureStatus(err error) string {
	switch upload.KindOf(err) {
	case upload.KindNetwork:
		return StatusFailedNetwork
	case upload.KindValidation:
		return StatusFailedRejected
	default:
		return StatusFailed
	}
}
