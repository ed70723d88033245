package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"archivia/internal/model"
	"archivia/internal/repository"
)

// AuditPostgres appends rows to the logs table.
type AuditPostgres struct {
	db *sql.DB
}

func NewAuditPostgres(db *sql.DB) *AuditPostgres {
	return &AuditPostgres{db: db}
}

var _ repository.AuditRepository = (*AuditPostgres)(nil)

func (r *AuditPostgres) Insert(ctx context.Context, e model.AuditEntry) error {
	oldValue, err := jsonOrNull(e.OldValue)
	if err != nil {
		return fmt.Errorf("encode old_value: %w", err)
	}
	newValue, err := jsonOrNull(e.NewValue)
	if err != nil {
		return fmt.Errorf("encode new_value: %w", err)
	}

	sqlStr, args, err := qb().Insert("logs").
		Columns("user_id", "action", "entity_type", "entity_id", "old_value", "new_value").
		Values(e.ActorID, e.Action, e.EntityType, e.EntityID, oldValue, newValue).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// jsonOrNull encodes v for a JSONB column; empty maps become SQL NULL.
func jsonOrNull(v map[string]any) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
