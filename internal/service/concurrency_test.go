package service

import (
	"context"
	"sync"
	"testing"

	"archivia/internal/model"
	"archivia/internal/repository"
	repoMocks "archivia/internal/repository/mocks"
	"archivia/internal/storage"
	"archivia/internal/testutil"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// lockingDocs is an in-memory DocumentRepository whose transactions hold a
// per-group lock from ResolveGroup until commit, like SELECT ... FOR UPDATE.
type lockingDocs struct {
	mu     sync.Mutex
	locks  map[int64]*sync.Mutex
	groups map[int64]int64
	rows   []model.Document
	nextID int64
}

func newLockingDocs() *lockingDocs {
	return &lockingDocs{locks: map[int64]*sync.Mutex{}, groups: map[int64]int64{}}
}

func (d *lockingDocs) groupLock(id int64) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[id]
	if !ok {
		l = &sync.Mutex{}
		d.locks[id] = l
	}
	return l
}

func (d *lockingDocs) InTx(ctx context.Context, fn func(tx repository.VersionTx) error) error {
	tx := &lockingTx{d: d}
	defer func() {
		for _, l := range tx.held {
			l.Unlock()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, g := range tx.cleared {
		for i := range d.rows {
			if d.rows[i].GroupID == g {
				d.rows[i].IsCurrent = false
			}
		}
	}
	for _, row := range tx.inserted {
		d.nextID++
		row.ID = d.nextID
		d.rows = append(d.rows, row)
	}
	return nil
}

func (d *lockingDocs) FindByID(context.Context, int64) (*model.Document, error) {
	return nil, repository.ErrNotFound
}

func (d *lockingDocs) List(context.Context, repository.DocumentFilter) (*repository.PageResult[model.Document], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &repository.PageResult[model.Document]{Items: append([]model.Document{}, d.rows...), Total: len(d.rows)}, nil
}

type lockingTx struct {
	d        *lockingDocs
	held     []*sync.Mutex
	cleared  []int64
	inserted []model.Document
}

func (t *lockingTx) ResolveGroup(_ context.Context, studentID, groupID int64) (int64, error) {
	if groupID <= 0 {
		t.d.mu.Lock()
		groupID = int64(len(t.d.groups) + 1)
		t.d.groups[groupID] = studentID
		t.d.mu.Unlock()
	}
	l := t.d.groupLock(groupID)
	l.Lock()
	t.held = append(t.held, l)

	t.d.mu.Lock()
	owner, ok := t.d.groups[groupID]
	t.d.mu.Unlock()
	if !ok || owner != studentID {
		return 0, repository.ErrGroupNotFound
	}
	return groupID, nil
}

func (t *lockingTx) NextVersion(_ context.Context, groupID int64) (int, error) {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	highest := 0
	for _, r := range t.d.rows {
		if r.GroupID == groupID {
			highest = max(highest, r.Version)
		}
	}
	return highest + 1, nil
}

func (t *lockingTx) ClearCurrent(_ context.Context, groupID int64) error {
	t.cleared = append(t.cleared, groupID)
	return nil
}

func (t *lockingTx) Insert(_ context.Context, doc *model.Document) (*model.Document, error) {
	t.inserted = append(t.inserted, *doc)
	return doc, nil
}

func TestDocumentService_ConcurrentUploadsSameGroup(t *testing.T) {
	const uploads = 16

	docs := newLockingDocs()
	docs.groups[1] = 5

	students := new(repoMocks.MockStudentRepository)
	students.On("GetActive", mock.Anything, int64(5)).Return(&model.Student{ID: 5, BatchYear: 2024}, nil)

	fs := afero.NewMemMapFs()
	svc := NewDocumentService(Deps{
		Store:    storage.NewLocalFs(fs),
		Docs:     docs,
		Students: students,
	})

	var wg sync.WaitGroup
	errs := make(chan error, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Upload(context.Background(), UploadInput{
				StudentID: 5,
				GroupID:   1,
				Filename:  "report.pdf",
				Content:   testutil.PDF(),
				Actor:     model.Identity{UserID: 3},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	seen := map[int]bool{}
	current := 0
	for _, r := range docs.rows {
		assert.False(t, seen[r.Version], "version %d assigned twice", r.Version)
		seen[r.Version] = true
		if r.IsCurrent {
			current++
			assert.Equal(t, uploads, r.Version)
		}
	}
	assert.Len(t, seen, uploads)
	for v := 1; v <= uploads; v++ {
		assert.True(t, seen[v], "missing version %d", v)
	}
	assert.Equal(t, 1, current)

	files, err := afero.ReadDir(fs, "2024")
	require.NoError(t, err)
	assert.Len(t, files, uploads)
}

func TestDocumentService_FailedUploadLeavesNoFile(t *testing.T) {
	docs := newLockingDocs()
	docs.groups[1] = 99

	students := new(repoMocks.MockStudentRepository)
	students.On("GetActive", mock.Anything, int64(5)).Return(&model.Student{ID: 5, BatchYear: 2024}, nil)

	fs := afero.NewMemMapFs()
	svc := NewDocumentService(Deps{Store: storage.NewLocalFs(fs), Docs: docs, Students: students})

	_, err := svc.Upload(context.Background(), UploadInput{
		StudentID: 5, GroupID: 1, Filename: "report.pdf", Content: testutil.PDF(),
	})
	assert.ErrorIs(t, err, ErrGroupNotFound)

	exists, err := afero.DirExists(fs, "2024")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, docs.rows)
}
