package model

// Audit actions and entity types recorded by the document pipeline.
const (
	ActionUpload       = "upload"
	EntityTypeDocument = "DOCUMENT"
)

// AuditEntry is one row of the activity log.
type AuditEntry struct {
	ActorID    int64
	Action     string
	EntityType string
	EntityID   int64
	OldValue   map[string]any
	NewValue   map[string]any
}
