package postgres

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"archivia/internal/database"
	"archivia/internal/model"
	"archivia/internal/repository"
)

// StudentPostgres reads the students table owned by the registry.
type StudentPostgres struct {
	db   *sql.DB
	caps database.Capabilities
}

func NewStudentPostgres(db *sql.DB, caps database.Capabilities) *StudentPostgres {
	return &StudentPostgres{db: db, caps: caps}
}

var _ repository.StudentRepository = (*StudentPostgres)(nil)

func (r *StudentPostgres) GetActive(ctx context.Context, id int64) (*model.Student, error) {
	q := qb().Select("id", "batch_year").From("students").Where(sq.Eq{"id": id})
	if r.caps.StudentSoftDelete {
		q = q.Where(notDeleted)
	}
	sqlStr, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, err
	}

	var s model.Student
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&s.ID, &s.BatchYear); err != nil {
		return nil, mapNoRows(err, repository.ErrNotFound)
	}
	return &s, nil
}
