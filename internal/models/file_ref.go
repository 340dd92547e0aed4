package models

// FileRef is an opaque handle to a file chosen in the page's file input.
// The widget only checks whether one is present; the remaining fields are
// carried for uploaders that actually transfer the file.
type FileRef struct {
	Name        string `json:"name" msgpack:"name"`
	Size        int64  `json:"size" msgpack:"size"`
	ContentType string `json:"contentType,omitempty" msgpack:"contentType,omitempty"`
	Data        []byte `json:"-" msgpack:"-"`
}
