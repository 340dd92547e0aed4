package models

import "time"

// UploadReceipt is returned by an uploader once a file has been accepted.
type UploadReceipt struct {
	ID         string    `json:"id" msgpack:"id"`
	Name       string    `json:"name" msgpack:"name"`
	Size       int64     `json:"size" msgpack:"size"`
	ReceivedAt time.Time `json:"receivedAt" msgpack:"receivedAt"`
}
