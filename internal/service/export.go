package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"archivia/internal/cache"
	"archivia/internal/docformat"
	"archivia/internal/model"
	"archivia/internal/pdf"
	"archivia/internal/raster"
)

var (
	ErrUnsupportedExport = errors.New("document type cannot be exported to pdf")
	ErrNothingToExport   = errors.New("document has no printable images")
	ErrExportFailed      = errors.New("pdf export failed")
)

func (s *documentService) ExportPDF(ctx context.Context, id int64) (*ExportResult, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case doc.MimeType == docformat.MIMEPDF:
		rc, err := s.openStored(ctx, doc)
		if err != nil {
			return nil, err
		}
		return &ExportResult{Filename: pdfName(doc.OriginalName), Size: doc.Size, Body: rc}, nil
	case docformat.IsRasterImage(doc.MimeType), docformat.IsDocx(doc.MimeType):
	default:
		return nil, ErrUnsupportedExport
	}

	key := cache.ExportKey(doc.ID, doc.StoredName)
	if b, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn("export cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return newExportResult(doc, b), nil
	}

	out, err := s.render(ctx, doc)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, out); err != nil {
		s.log.Warn("export cache write failed", zap.String("key", key), zap.Error(err))
	}
	return newExportResult(doc, out), nil
}

var tracer = otel.Tracer("archivia/internal/service")

// render rasterizes the stored bytes and assembles the pages.
func (s *documentService) render(ctx context.Context, doc *model.Document) (_ []byte, err error) {
	ctx, span := tracer.Start(ctx, "document.render", trace.WithAttributes(
		attribute.Int64("document.id", doc.ID),
		attribute.String("document.mime_type", doc.MimeType),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "render failed")
		}
		span.End()
	}()

	src, err := s.readStored(ctx, doc)
	if err != nil {
		return nil, err
	}

	var pages []raster.Page
	if docformat.IsDocx(doc.MimeType) {
		pages, err = raster.DocxPages(src)
		if errors.Is(err, raster.ErrNoImages) {
			return nil, ErrNothingToExport
		}
	} else {
		var p raster.Page
		p, err = raster.Rasterize(src, doc.MimeType)
		pages = []raster.Page{p}
	}
	if err != nil {
		s.log.Error("rasterize failed", zap.Int64("document_id", doc.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := pdf.Assemble(pages)
	if err != nil {
		if errors.Is(err, pdf.ErrNoPages) {
			return nil, ErrNothingToExport
		}
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return out, nil
}

func (s *documentService) readStored(ctx context.Context, doc *model.Document) ([]byte, error) {
	rc, err := s.openStored(ctx, doc)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	src, err := io.ReadAll(io.LimitReader(rc, docformat.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read stored file: %w", err)
	}
	if len(src) > docformat.MaxUploadSize {
		return nil, fmt.Errorf("%w: stored file exceeds upload ceiling", ErrExportFailed)
	}
	return src, nil
}

func newExportResult(doc *model.Document, b []byte) *ExportResult {
	return &ExportResult{
		Filename: pdfName(doc.OriginalName),
		Size:     int64(len(b)),
		Body:     io.NopCloser(bytes.NewReader(b)),
	}
}
