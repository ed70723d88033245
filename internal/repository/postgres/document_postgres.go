package postgres

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"archivia/internal/database"
	"archivia/internal/model"
	"archivia/internal/repository"
)

var documentColumns = []string{
	"id", "student_id", "document_group_id", "original_name", "stored_name", "file_path",
	"mime_type", "file_size", "version_number", "is_current", "uploaded_by", "created_at",
}

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
type DocumentPostgres struct {
	db   *sql.DB
	caps database.Capabilities
}

// NewDocumentPostgres creates a new DocumentPostgres repository. caps decides
// whether reads filter on documents.deleted_at.
func NewDocumentPostgres(db *sql.DB, caps database.Capabilities) *DocumentPostgres {
	return &DocumentPostgres{db: db, caps: caps}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

func (r *DocumentPostgres) columns() []string {
	if r.caps.DocumentSoftDelete {
		return append(append([]string{}, documentColumns...), "deleted_at")
	}
	return documentColumns
}

func (r *DocumentPostgres) scan(row interface{ Scan(...any) error }) (*model.Document, error) {
	var d model.Document
	dest := []any{
		&d.ID, &d.StudentID, &d.GroupID, &d.OriginalName, &d.StoredName, &d.StoragePath,
		&d.MimeType, &d.Size, &d.Version, &d.IsCurrent, &d.UploadedBy, &d.CreatedAt,
	}
	if r.caps.DocumentSoftDelete {
		dest = append(dest, &d.DeletedAt)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &d, nil
}

// InTx begins a transaction, hands fn the version statements bound to it and
// commits on success. Any error from fn rolls back.
func (r *DocumentPostgres) InTx(ctx context.Context, fn func(tx repository.VersionTx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&versionTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	q := qb().Select(r.columns()...).From("documents").Where(sq.Eq{"id": id})
	if r.caps.DocumentSoftDelete {
		q = q.Where(notDeleted)
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	d, err := r.scan(r.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		return nil, mapNoRows(err, repository.ErrNotFound)
	}
	return d, nil
}

// List returns documents newest first and the total count for the filter.
func (r *DocumentPostgres) List(ctx context.Context, f repository.DocumentFilter) (*repository.PageResult[model.Document], error) {
	where := sq.And{}
	if r.caps.DocumentSoftDelete {
		where = append(where, notDeleted)
	}
	if f.StudentID > 0 {
		where = append(where, sq.Eq{"student_id": f.StudentID})
	}

	count := qb().Select("COUNT(*)").From("documents")
	list := qb().Select(r.columns()...).From("documents").OrderBy("created_at DESC", "id DESC")
	if len(where) > 0 {
		count = count.Where(where)
		list = list.Where(where)
	}
	if f.Page.Limit > 0 {
		list = list.Limit(uint64(f.Page.Limit)).Offset(uint64(max(f.Page.Offset, 0)))
	}

	sqlStr, args, err := count.ToSql()
	if err != nil {
		return nil, err
	}
	var total int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return nil, err
	}

	sqlStr, args, err = list.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{Items: items, Total: total}, nil
}

// versionTx runs the upload statements on one open transaction.
type versionTx struct {
	tx *sql.Tx
}

func (v *versionTx) ResolveGroup(ctx context.Context, studentID, groupID int64) (int64, error) {
	if groupID <= 0 {
		sqlStr, args, err := qb().Insert("document_groups").
			Columns("student_id").
			Values(studentID).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return 0, err
		}
		var id int64
		if err := v.tx.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("create document group: %w", err)
		}
		return id, nil
	}

	// The row lock also serializes the first upload into an empty group.
	sqlStr, args, err := qb().Select("student_id").
		From("document_groups").
		Where(sq.Eq{"id": groupID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return 0, err
	}
	var owner int64
	if err := v.tx.QueryRowContext(ctx, sqlStr, args...).Scan(&owner); err != nil {
		return 0, mapNoRows(err, repository.ErrGroupNotFound)
	}
	if owner != studentID {
		return 0, repository.ErrGroupNotFound
	}
	return groupID, nil
}

// NextVersion computes the maximum in Go: PostgreSQL refuses FOR UPDATE
// together with an aggregate.
func (v *versionTx) NextVersion(ctx context.Context, groupID int64) (int, error) {
	sqlStr, args, err := qb().Select("version_number").
		From("documents").
		Where(sq.Eq{"document_group_id": groupID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return 0, err
	}
	rows, err := v.tx.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("lock versions: %w", err)
	}
	defer rows.Close()

	highest := 0
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
		highest = max(highest, n)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return highest + 1, nil
}

func (v *versionTx) ClearCurrent(ctx context.Context, groupID int64) error {
	sqlStr, args, err := qb().Update("documents").
		Set("is_current", false).
		Where(sq.Eq{"document_group_id": groupID}).
		Where(sq.Eq{"is_current": true}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := v.tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("clear current version: %w", err)
	}
	return nil
}

func (v *versionTx) Insert(ctx context.Context, doc *model.Document) (*model.Document, error) {
	sqlStr, args, err := qb().Insert("documents").
		Columns(
			"student_id", "document_group_id", "original_name", "stored_name", "file_path",
			"mime_type", "file_size", "version_number", "is_current", "uploaded_by",
		).
		Values(
			doc.StudentID, doc.GroupID, doc.OriginalName, doc.StoredName, doc.StoragePath,
			doc.MimeType, doc.Size, doc.Version, doc.IsCurrent, doc.UploadedBy,
		).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, err
	}

	out := *doc
	if err := v.tx.QueryRowContext(ctx, sqlStr, args...).Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return &out, nil
}
