// Package postgres implements the repository interfaces on PostgreSQL using
// database/sql and squirrel-built statements with $n placeholders.
package postgres

import (
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
)

func qb() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// notDeleted is the soft-delete predicate for tables that carry deleted_at.
var notDeleted = sq.Expr("deleted_at IS NULL")

func mapNoRows(err, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}
