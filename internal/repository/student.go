package repository

import (
	"context"

	"archivia/internal/model"
)

// StudentRepository is the pipeline's read-only view of the student registry.
type StudentRepository interface {
	// GetActive returns the student unless it is missing or soft-deleted (ErrNotFound).
	GetActive(ctx context.Context, id int64) (*model.Student, error)
}

// AuditRepository persists activity log rows.
type AuditRepository interface {
	Insert(ctx context.Context, e model.AuditEntry) error
}
