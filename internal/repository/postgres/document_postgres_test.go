package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivia/internal/database"
	"archivia/internal/model"
	"archivia/internal/repository"
)

var softDelete = database.Capabilities{StudentSoftDelete: true, DocumentSoftDelete: true}

func documentRow(caps database.Capabilities) *sqlmock.Rows {
	cols := append([]string{}, documentColumns...)
	if caps.DocumentSoftDelete {
		cols = append(cols, "deleted_at")
	}
	return sqlmock.NewRows(cols)
}

func addDocument(rows *sqlmock.Rows, caps database.Capabilities, id int64, version int, current bool) *sqlmock.Rows {
	vals := []driver.Value{id, int64(5), int64(9), "report.pdf", "doc_abc.pdf", "2024/doc_abc.pdf",
		"application/pdf", int64(1234), version, current, int64(3), time.Now()}
	if caps.DocumentSoftDelete {
		vals = append(vals, nil)
	}
	return rows.AddRow(vals...)
}

func TestDocumentPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db, softDelete)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+), deleted_at FROM documents WHERE id = \$1 AND deleted_at IS NULL`).
			WithArgs(int64(42)).
			WillReturnRows(addDocument(documentRow(softDelete), softDelete, 42, 2, true))

		doc, err := repo.FindByID(ctx, 42)

		require.NoError(t, err)
		assert.Equal(t, int64(42), doc.ID)
		assert.Equal(t, "2024/doc_abc.pdf", doc.StoragePath)
		assert.Equal(t, 2, doc.Version)
		assert.True(t, doc.IsCurrent)
		assert.Nil(t, doc.DeletedAt)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM documents WHERE id = \$1`).
			WithArgs(int64(404)).
			WillReturnError(sql.ErrNoRows)

		doc, err := repo.FindByID(ctx, 404)

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, doc)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_FindByID_NoSoftDeleteColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	caps := database.Capabilities{}
	repo := NewDocumentPostgres(db, caps)

	mock.ExpectQuery(`^SELECT id, student_id, document_group_id, original_name, stored_name, file_path, mime_type, file_size, version_number, is_current, uploaded_by, created_at FROM documents WHERE id = \$1$`).
		WithArgs(int64(1)).
		WillReturnRows(addDocument(documentRow(caps), caps, 1, 1, true))

	doc, err := repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db, softDelete)
	ctx := context.Background()

	t.Run("by student with page", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM documents WHERE \(deleted_at IS NULL AND student_id = \$1\)`).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

		rows := documentRow(softDelete)
		addDocument(rows, softDelete, 11, 2, true)
		addDocument(rows, softDelete, 10, 1, false)
		mock.ExpectQuery(`SELECT (.+) FROM documents WHERE \(deleted_at IS NULL AND student_id = \$1\) ORDER BY created_at DESC, id DESC LIMIT 10 OFFSET 0`).
			WithArgs(int64(5)).
			WillReturnRows(rows)

		res, err := repo.List(ctx, repository.DocumentFilter{StudentID: 5, Page: repository.PageQuery{Limit: 10}})

		require.NoError(t, err)
		assert.Equal(t, 2, res.Total)
		require.Len(t, res.Items, 2)
		assert.Equal(t, int64(11), res.Items[0].ID)
		assert.Equal(t, int64(10), res.Items[1].ID)
	})

	t.Run("all students", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM documents WHERE \(deleted_at IS NULL\)`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(`SELECT (.+) FROM documents WHERE \(deleted_at IS NULL\) ORDER BY created_at DESC, id DESC$`).
			WillReturnRows(documentRow(softDelete))

		res, err := repo.List(ctx, repository.DocumentFilter{})

		require.NoError(t, err)
		assert.Equal(t, 0, res.Total)
		assert.NotNil(t, res.Items)
		assert.Empty(t, res.Items)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

const (
	createGroupSQL  = `INSERT INTO document_groups \(student_id\) VALUES \(\$1\) RETURNING id`
	lockGroupSQL    = `SELECT student_id FROM document_groups WHERE id = \$1 FOR UPDATE`
	lockVersionsSQL = `SELECT version_number FROM documents WHERE document_group_id = \$1 FOR UPDATE`
	clearCurrentSQL = `UPDATE documents SET is_current = \$1 WHERE document_group_id = \$2 AND is_current = \$3`
	insertDocSQL    = `INSERT INTO documents \(student_id,document_group_id,original_name,stored_name,file_path,mime_type,file_size,version_number,is_current,uploaded_by\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6,\$7,\$8,\$9,\$10\) RETURNING id, created_at`
)

func newDoc() *model.Document {
	return &model.Document{
		StudentID:    5,
		OriginalName: "report.pdf",
		StoredName:   "doc_abc.pdf",
		StoragePath:  "2024/doc_abc.pdf",
		MimeType:     "application/pdf",
		Size:         1234,
		IsCurrent:    true,
		UploadedBy:   3,
	}
}

// upload drives one full version upload through InTx the way the service does.
func upload(ctx context.Context, repo *DocumentPostgres, groupID int64) (*model.Document, error) {
	var out *model.Document
	err := repo.InTx(ctx, func(tx repository.VersionTx) error {
		gid, err := tx.ResolveGroup(ctx, 5, groupID)
		if err != nil {
			return err
		}
		v, err := tx.NextVersion(ctx, gid)
		if err != nil {
			return err
		}
		if err := tx.ClearCurrent(ctx, gid); err != nil {
			return err
		}
		doc := newDoc()
		doc.GroupID = gid
		doc.Version = v
		out, err = tx.Insert(ctx, doc)
		return err
	})
	return out, err
}

func TestDocumentPostgres_InTx_NewGroup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(createGroupSQL).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectQuery(lockVersionsSQL).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"version_number"}))
	mock.ExpectExec(clearCurrentSQL).WithArgs(false, int64(9), true).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(insertDocSQL).
		WithArgs(int64(5), int64(9), "report.pdf", "doc_abc.pdf", "2024/doc_abc.pdf", "application/pdf", int64(1234), 1, true, int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), now))
	mock.ExpectCommit()

	doc, err := upload(context.Background(), NewDocumentPostgres(db, softDelete), 0)

	require.NoError(t, err)
	assert.Equal(t, int64(42), doc.ID)
	assert.Equal(t, int64(9), doc.GroupID)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, now, doc.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_InTx_ExistingGroup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockGroupSQL).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow(int64(5)))
	// soft-deleted v3 still counts, so the next version is 4
	mock.ExpectQuery(lockVersionsSQL).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"version_number"}).AddRow(1).AddRow(3).AddRow(2))
	mock.ExpectExec(clearCurrentSQL).WithArgs(false, int64(9), true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(insertDocSQL).
		WithArgs(int64(5), int64(9), "report.pdf", "doc_abc.pdf", "2024/doc_abc.pdf", "application/pdf", int64(1234), 4, true, int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(43), time.Now()))
	mock.ExpectCommit()

	doc, err := upload(context.Background(), NewDocumentPostgres(db, softDelete), 9)

	require.NoError(t, err)
	assert.Equal(t, 4, doc.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_InTx_GroupOfAnotherStudent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockGroupSQL).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow(int64(77)))
	mock.ExpectRollback()

	_, err = upload(context.Background(), NewDocumentPostgres(db, softDelete), 9)

	assert.ErrorIs(t, err, repository.ErrGroupNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_InTx_MissingGroup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockGroupSQL).WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err = upload(context.Background(), NewDocumentPostgres(db, softDelete), 9)

	assert.ErrorIs(t, err, repository.ErrGroupNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_InTx_InsertFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(createGroupSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectQuery(lockVersionsSQL).WillReturnRows(sqlmock.NewRows([]string{"version_number"}))
	mock.ExpectExec(clearCurrentSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(insertDocSQL).WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	_, err = upload(context.Background(), NewDocumentPostgres(db, softDelete), 0)

	assert.ErrorContains(t, err, "insert document: unique violation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_InTx_CommitFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err = NewDocumentPostgres(db, softDelete).InTx(context.Background(), func(repository.VersionTx) error { return nil })

	assert.ErrorContains(t, err, "commit: serialization failure")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_InTx_BeginFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err = NewDocumentPostgres(db, softDelete).InTx(context.Background(), func(repository.VersionTx) error {
		called = true
		return nil
	})

	assert.ErrorContains(t, err, "begin tx")
	assert.False(t, called)
}
