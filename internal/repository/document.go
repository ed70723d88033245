// Package repository contains data access abstractions. Implementations live
// in subpackages (postgres) and contain no business rules beyond what the
// SQL itself enforces.
package repository

import (
	"context"
	"errors"

	"archivia/internal/model"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrGroupNotFound = errors.New("document group not found")
)

// DocumentRepository defines data access for document rows.
type DocumentRepository interface {
	// InTx runs fn inside one database transaction. The transaction commits
	// when fn returns nil and rolls back otherwise; a commit failure is returned.
	InTx(ctx context.Context, fn func(tx VersionTx) error) error

	// FindByID returns a non-deleted document or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*model.Document, error)

	// List returns non-deleted documents, newest first, with a total row count.
	List(ctx context.Context, f DocumentFilter) (*PageResult[model.Document], error)
}

// VersionTx is the set of statements a version upload runs under one transaction.
type VersionTx interface {
	// ResolveGroup creates a group for studentID when groupID <= 0. Otherwise
	// it locks the group row and returns ErrGroupNotFound unless the group
	// exists and belongs to studentID.
	ResolveGroup(ctx context.Context, studentID, groupID int64) (int64, error)

	// NextVersion locks the group's existing version rows and returns max+1,
	// or 1 for an empty group. Soft-deleted rows still count.
	NextVersion(ctx context.Context, groupID int64) (int, error)

	// ClearCurrent drops the current flag from every version in the group.
	ClearCurrent(ctx context.Context, groupID int64) error

	// Insert stores doc and returns it with ID and CreatedAt set by the database.
	Insert(ctx context.Context, doc *model.Document) (*model.Document, error)
}

// DocumentFilter narrows List. A zero StudentID lists every student.
type DocumentFilter struct {
	StudentID int64
	Page      PageQuery
}

// PageQuery holds limit/offset pagination parameters. A zero Limit means no limit.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
