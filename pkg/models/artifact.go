package models

import "time"

// Artifact is a transient uploaded file awaiting consumption by one
// downstream call. It is owned by the upload store from creation until
// release or sweep-based expiry.
type Artifact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"` // original client filename, untrusted
	Path      string    `json:"-"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
