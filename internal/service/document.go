package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"archivia/internal/cache"
	"archivia/internal/docformat"
	"archivia/internal/model"
	"archivia/internal/repository"
	"archivia/internal/storage"
)

var (
	ErrInvalidStudent  = errors.New("invalid student id")
	ErrFileRequired    = errors.New("file is required")
	ErrStudentNotFound = errors.New("student not found")
	ErrGroupNotFound   = errors.New("document group not found")
	ErrNotFound        = errors.New("document not found")
	ErrUploadFailed    = errors.New("upload failed")
)

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// UploadInput is one multipart upload. Filename is the untrusted client
// name and is used only for its extension and for display.
type UploadInput struct {
	StudentID int64
	GroupID   int64
	Filename  string
	Content   []byte
	Actor     model.Identity
}

// ExportResult is a PDF ready to stream. The caller closes Body.
type ExportResult struct {
	Filename string
	Size     int64
	Body     io.ReadCloser
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Upload validates the content, stores it as the next version of its
	// group and makes it current. Bytes written for a failed upload are removed.
	Upload(ctx context.Context, in UploadInput) (*model.Document, error)

	// List returns non-deleted documents newest first, optionally for one student.
	List(ctx context.Context, studentID int64, limit, offset int) (*DocumentListResult, error)

	// Get returns a single document by its ID.
	Get(ctx context.Context, id int64) (*model.Document, error)

	// Open returns a document and a stream of its stored bytes.
	Open(ctx context.Context, id int64) (*model.Document, io.ReadCloser, error)

	// ExportPDF returns the document as a PDF: stored PDFs unchanged, images
	// and DOCX media rasterized one page per image.
	ExportPDF(ctx context.Context, id int64) (*ExportResult, error)
}

// Auditor receives committed uploads.
type Auditor interface {
	DocumentUploaded(ctx context.Context, actor model.Identity, doc *model.Document)
}

// Deps are the collaborators of the document service. Audit, Cache and Log may be nil.
type Deps struct {
	Store    storage.Storage
	Docs     repository.DocumentRepository
	Students repository.StudentRepository
	Audit    Auditor
	Cache    cache.Cache
	Log      *zap.Logger
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store    storage.Storage
	docs     repository.DocumentRepository
	students repository.StudentRepository
	audit    Auditor
	cache    cache.Cache
	log      *zap.Logger
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(d Deps) DocumentService {
	s := &documentService{
		store:    d.Store,
		docs:     d.Docs,
		students: d.Students,
		audit:    d.Audit,
		cache:    d.Cache,
		log:      d.Log,
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

func (s *documentService) Upload(ctx context.Context, in UploadInput) (*model.Document, error) {
	if in.StudentID <= 0 {
		return nil, ErrInvalidStudent
	}
	if in.Filename == "" || in.Content == nil {
		return nil, ErrFileRequired
	}
	if err := docformat.CheckSize(int64(len(in.Content))); err != nil {
		return nil, err
	}
	format, err := docformat.Sniff(in.Content, in.Filename)
	if err != nil {
		return nil, err
	}
	if err := docformat.Validate(in.Content, format.MIME); err != nil {
		return nil, err
	}

	student, err := s.students.GetActive(ctx, in.StudentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("lookup student: %w", err)
	}

	storedName := docformat.StoredName(format)
	key := path.Join(strconv.Itoa(student.BatchYear), storedName)

	var (
		stored  *model.Document
		written bool
	)
	err = s.docs.InTx(ctx, func(tx repository.VersionTx) error {
		groupID, err := tx.ResolveGroup(ctx, student.ID, in.GroupID)
		if err != nil {
			return err
		}
		version, err := tx.NextVersion(ctx, groupID)
		if err != nil {
			return err
		}
		if err := tx.ClearCurrent(ctx, groupID); err != nil {
			return err
		}

		info, err := s.store.Put(ctx, key, bytes.NewReader(in.Content), storage.PutObjectOptions{
			Size:        int64(len(in.Content)),
			ContentType: format.MIME,
		})
		if err != nil {
			return fmt.Errorf("store bytes: %w", err)
		}
		written = true

		stored, err = tx.Insert(ctx, &model.Document{
			StudentID:    student.ID,
			GroupID:      groupID,
			OriginalName: in.Filename,
			StoredName:   storedName,
			StoragePath:  info.Key,
			MimeType:     format.MIME,
			Size:         int64(len(in.Content)),
			Version:      version,
			IsCurrent:    true,
			UploadedBy:   in.Actor.UserID,
		})
		return err
	})
	if err != nil {
		if written {
			s.discard(ctx, key)
		}
		if errors.Is(err, repository.ErrGroupNotFound) {
			return nil, ErrGroupNotFound
		}
		s.log.Error("document upload failed",
			zap.Int64("student_id", student.ID),
			zap.Int64("document_group_id", in.GroupID),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if s.audit != nil {
		s.audit.DocumentUploaded(ctx, in.Actor, stored)
	}
	return stored, nil
}

// discard removes bytes whose row never committed. It runs even when the
// request context is already canceled.
func (s *documentService) discard(ctx context.Context, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.log.Error("orphaned upload not removed", zap.String("key", key), zap.Error(err))
	}
}

// List returns paginated documents without exposing repository types.
func (s *documentService) List(ctx context.Context, studentID int64, limit, offset int) (*DocumentListResult, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	res, err := s.docs.List(ctx, repository.DocumentFilter{
		StudentID: studentID,
		Page:      repository.PageQuery{Limit: limit, Offset: offset},
	})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a document by ID.
func (s *documentService) Get(ctx context.Context, id int64) (*model.Document, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *documentService) Open(ctx context.Context, id int64) (*model.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.openStored(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, rc, nil
}

func (s *documentService) openStored(ctx context.Context, doc *model.Document) (io.ReadCloser, error) {
	rc, _, err := s.store.Get(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open stored file: %w", err)
	}
	return rc, nil
}

// pdfName swaps the extension of the client's filename for .pdf.
func pdfName(original string) string {
	base := strings.TrimSuffix(original, path.Ext(original))
	if base == "" {
		base = "document"
	}
	return base + ".pdf"
}
