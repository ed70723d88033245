package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_students",
		SQL: `CREATE TABLE IF NOT EXISTS students (
  id             BIGSERIAL   PRIMARY KEY,
  student_number TEXT        NOT NULL UNIQUE,
  first_name     TEXT        NOT NULL,
  last_name      TEXT        NOT NULL,
  batch_year     INTEGER     NOT NULL,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  deleted_at     TIMESTAMPTZ
);`,
	},
	{
		Name: "create_table_document_groups",
		SQL: `CREATE TABLE IF NOT EXISTS document_groups (
  id         BIGSERIAL   PRIMARY KEY,
  student_id BIGINT      NOT NULL REFERENCES students (id),
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id                BIGSERIAL   PRIMARY KEY,
  student_id        BIGINT      NOT NULL REFERENCES students (id),
  document_group_id BIGINT      NOT NULL REFERENCES document_groups (id),
  original_name     TEXT        NOT NULL,
  stored_name       TEXT        NOT NULL,
  file_path         TEXT        NOT NULL UNIQUE,
  mime_type         TEXT        NOT NULL,
  file_size         BIGINT      NOT NULL CHECK (file_size >= 0),
  version_number    INTEGER     NOT NULL CHECK (version_number > 0),
  is_current        BOOLEAN     NOT NULL DEFAULT FALSE,
  uploaded_by       BIGINT      NOT NULL,
  created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
  deleted_at        TIMESTAMPTZ,
  UNIQUE (document_group_id, version_number)
);`,
	},
	{
		Name: "create_index_documents_one_current",
		SQL: `CREATE UNIQUE INDEX IF NOT EXISTS uq_documents_one_current
  ON documents (document_group_id) WHERE is_current AND deleted_at IS NULL;`,
	},
	{
		Name: "create_index_documents_student_created",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_student_created ON documents (student_id, created_at DESC);`,
	},
	{
		Name: "create_table_logs",
		SQL: `CREATE TABLE IF NOT EXISTS logs (
  id          BIGSERIAL   PRIMARY KEY,
  user_id     BIGINT,
  action      TEXT        NOT NULL,
  entity_type TEXT        NOT NULL,
  entity_id   BIGINT,
  old_value   JSONB,
  new_value   JSONB,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_logs_entity",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_logs_entity ON logs (entity_type, entity_id);`,
	},
}

// EnsureMigrated checks if the 'documents' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger, dbHost string) error {
	start := time.Now()
	log = log.With(zap.String("component", "database"), zap.String("db_host", dbHost))

	log.Info("db_migration_check", zap.String("status", "starting"))

	var exists bool
	query := "SELECT to_regclass('public.documents') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			zap.String("status", "error"),
			zap.Error(err),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			zap.String("status", "success"),
			zap.String("msg", "schema already exists, skipping migration"),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	log.Info("db_migration_start", zap.String("status", "in_progress"))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				zap.String("status", "error"),
				zap.String("migration_step", step.Name),
				zap.Error(err),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			zap.String("status", "success"),
			zap.String("migration_step", step.Name),
			zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	log.Info("db_migration_success",
		zap.String("status", "success"),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
