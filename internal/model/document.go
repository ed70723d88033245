package model

import "time"

// Document represents one stored revision of a student's document.
// Version numbers are assigned by the store and never reused within a group.
type Document struct {
	ID           int64      `json:"id"`
	StudentID    int64      `json:"student_id"`
	GroupID      int64      `json:"document_group_id"`
	OriginalName string     `json:"original_name"`
	StoredName   string     `json:"stored_name"`
	StoragePath  string     `json:"file_path"`
	MimeType     string     `json:"mime_type"`
	Size         int64      `json:"file_size"`
	Version      int        `json:"version_number"`
	IsCurrent    bool       `json:"is_current"`
	UploadedBy   int64      `json:"uploaded_by"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// DocumentGroup binds the ordered versions of one logical document to a student.
type DocumentGroup struct {
	ID        int64 `json:"id"`
	StudentID int64 `json:"student_id"`
}
