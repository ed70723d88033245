// Package audit records activity log entries to the logs table and to zap.
package audit

import (
	"context"

	"go.uber.org/zap"

	"archivia/internal/model"
	"archivia/internal/repository"
)

// Modes accepted by New. "all" writes to the database and the log stream,
// "db" and "log" write to one of them, "off" drops entries.
const (
	ModeAll = "all"
	ModeDB  = "db"
	ModeLog = "log"
	ModeOff = "off"
)

// Logger is fire-and-forget: a failed write is reported on zap and never
// returned to the caller. A nil *Logger is a no-op.
type Logger struct {
	repo   repository.AuditRepository
	zapLog *zap.Logger
	mode   string
}

func New(repo repository.AuditRepository, zapLog *zap.Logger, mode string) *Logger {
	switch mode {
	case ModeAll, ModeDB, ModeLog, ModeOff:
	default:
		mode = ModeAll
	}
	return &Logger{repo: repo, zapLog: zapLog, mode: mode}
}

// Log writes e. The database write outlives request cancellation so an entry
// for already committed work is not lost when the client disconnects.
func (l *Logger) Log(ctx context.Context, e model.AuditEntry) {
	if l == nil || l.mode == ModeOff {
		return
	}

	if l.mode == ModeAll || l.mode == ModeLog {
		l.logToZap(e)
	}

	if l.mode == ModeAll || l.mode == ModeDB {
		if err := l.repo.Insert(context.WithoutCancel(ctx), e); err != nil {
			l.zapLog.Error("failed to store audit entry",
				zap.Error(err),
				zap.String("action", e.Action),
				zap.String("entity_type", e.EntityType),
				zap.Int64("entity_id", e.EntityID),
			)
		}
	}
}

// DocumentUploaded records a committed upload.
func (l *Logger) DocumentUploaded(ctx context.Context, actor model.Identity, doc *model.Document) {
	l.Log(ctx, model.AuditEntry{
		ActorID:    actor.UserID,
		Action:     model.ActionUpload,
		EntityType: model.EntityTypeDocument,
		EntityID:   doc.ID,
		NewValue: map[string]any{
			"student_id":        doc.StudentID,
			"document_group_id": doc.GroupID,
			"original_name":     doc.OriginalName,
		},
	})
}

func (l *Logger) logToZap(e model.AuditEntry) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.Int64("actor_id", e.ActorID),
		zap.String("action", e.Action),
		zap.String("entity_type", e.EntityType),
		zap.Int64("entity_id", e.EntityID),
	}
	if len(e.OldValue) > 0 {
		fields = append(fields, zap.Any("old_value", e.OldValue))
	}
	if len(e.NewValue) > 0 {
		fields = append(fields, zap.Any("new_value", e.NewValue))
	}
	l.zapLog.Info("audit event", fields...)
}
