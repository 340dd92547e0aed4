package models

import "time"

// WidgetState represents where an upload widget is in its interaction cycle.
type WidgetState string

const (
	WidgetStateIdle      WidgetState = "idle"
	WidgetStateUploading WidgetState = "uploading"
	WidgetStateCompleted WidgetState = "completed"
	WidgetStateFailed    WidgetState = "failed"
)

// WidgetSnapshot is a point-in-time copy of an upload widget's state.
type WidgetSnapshot struct {
	ID        string      `json:"id" msgpack:"id"`
	State     WidgetState `json:"state" msgpack:"state"`
	Status    string      `json:"status" msgpack:"status"`
	HasFile   bool        `json:"hasFile" msgpack:"hasFile"`
	FileName  string      `json:"fileName,omitempty" msgpack:"fileName,omitempty"`
	Pending   int         `json:"pending" msgpack:"pending"`
	UpdatedAt time.Time   `json:"updatedAt" msgpack:"updatedAt"`
}
