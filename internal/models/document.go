package models

import "time"

// Owner types a Document may reference.
const (
	DocumentOwnerPerson = "person"
	DocumentOwnerGroup  = "group"
)

// Document is the metadata record for an uploaded file. The payload itself
// lives in the file store under StorageKey; a row exists if and only if the
// file does (the file may transiently outlive the row until the sweep runs,
// never the other way around).
type Document struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	StorageKey string `gorm:"size:64;uniqueIndex;not null" json:"-"`
	Filename   string `gorm:"size:255;not null" json:"filename"`
	MimeType   string `gorm:"size:100" json:"mime_type,omitempty"`
	ByteSize   int64  `gorm:"not null" json:"byte_size"`

	// Optional owning entity, e.g. the person a letter belongs to.
	OwnerType string `gorm:"size:50;index:idx_document_owner" json:"owner_type,omitempty"`
	OwnerID   uint   `gorm:"index:idx_document_owner" json:"owner_id,omitempty"`

	// UploadedBy is the already-authenticated principal supplied by the
	// caller; the core performs no authentication itself.
	UploadedBy uint `gorm:"index" json:"uploaded_by,omitempty"`
}
