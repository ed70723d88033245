package mocks

import (
	"context"

	"archivia/internal/model"
	"archivia/internal/repository"
	"github.com/stretchr/testify/mock"
)

// MockDocumentRepository runs InTx callbacks against the VersionTx given as
// the first return value; the second return value stands in for the commit result.
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) InTx(ctx context.Context, fn func(tx repository.VersionTx) error) error {
	args := m.Called(ctx, fn)
	if tx, ok := args.Get(0).(repository.VersionTx); ok {
		if err := fn(tx); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) List(ctx context.Context, f repository.DocumentFilter) (*repository.PageResult[model.Document], error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Document]), args.Error(1)
}

type MockVersionTx struct {
	mock.Mock
}

func (m *MockVersionTx) ResolveGroup(ctx context.Context, studentID, groupID int64) (int64, error) {
	args := m.Called(ctx, studentID, groupID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockVersionTx) NextVersion(ctx context.Context, groupID int64) (int, error) {
	args := m.Called(ctx, groupID)
	return args.Int(0), args.Error(1)
}

func (m *MockVersionTx) ClearCurrent(ctx context.Context, groupID int64) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

func (m *MockVersionTx) Insert(ctx context.Context, doc *model.Document) (*model.Document, error) {
	args := m.Called(ctx, doc)
	if f, ok := args.Get(0).(func(*model.Document) *model.Document); ok {
		return f(doc), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}
