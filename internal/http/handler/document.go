package handler

import (
	"io"
	"mime"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"archivia/internal/docformat"
	"archivia/internal/http/middleware"
	"archivia/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// GetDocuments dispatches GET /documents on the action query parameter:
// download, export_pdf, or a listing when absent.
//
// @Summary  Download, export or list documents
// @Tags     documents
// @Produce  json
// @Produce  application/pdf
// @Param    action     query string false "download or export_pdf"
// @Param    id         query int    false "document id (required with action)"
// @Param    student_id query int    false "filter listing by student"
// @Param    limit      query int    false "page size (default 50, max 200)"
// @Param    offset     query int    false "page offset"
// @Success  200 {object} service.DocumentListResult
// @Failure  400 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Failure  422 {object} errorPayload
// @Security BearerAuth
// @Router   /documents [get]
func GetDocuments(svc service.DocumentService) fiber.Handler {
	list := ListDocuments(svc)
	return func(c *fiber.Ctx) error {
		switch c.Query("action") {
		case "":
			return list(c)
		case "download":
			return downloadDocument(c, svc)
		case "export_pdf":
			return exportDocument(c, svc)
		default:
			return writeError(c, fiber.StatusBadRequest, "INVALID_ACTION", "unknown action")
		}
	}
}

// ListDocuments returns non-deleted documents newest first.
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		studentID, err := queryInt64(c, "student_id", 0)
		if err != nil || studentID < 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_STUDENT_ID", "invalid student_id")
		}
		limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultListLimit)))
		if err != nil || limit < 1 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		limit = min(limit, maxListLimit)
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil || offset < 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), studentID, limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// UploadDocument stores a new version of a student's document.
//
// @Summary  Upload a document version
// @Tags     documents
// @Accept   multipart/form-data
// @Produce  json
// @Param    student_id        formData int  true  "owning student"
// @Param    document_group_id formData int  false "existing group to version"
// @Param    file              formData file true  "PDF, JPEG, PNG, WEBP or DOCX up to 10 MB"
// @Success  201 {object} map[string]int64
// @Failure  400 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Failure  422 {object} errorPayload
// @Security BearerAuth
// @Router   /documents [post]
func UploadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.IdentityFromCtx(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		studentID, err := strconv.ParseInt(c.FormValue("student_id"), 10, 64)
		if err != nil || studentID <= 0 {
			return writeServiceError(c, service.ErrInvalidStudent)
		}
		var groupID int64
		if v := c.FormValue("document_group_id"); v != "" {
			groupID, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return writeError(c, fiber.StatusUnprocessableEntity, "INVALID_GROUP", "invalid document_group_id")
			}
			// zero or negative starts a new group
			groupID = max(groupID, 0)
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeServiceError(c, service.ErrFileRequired)
		}
		if fh.Size > docformat.MaxUploadSize {
			return writeServiceError(c, docformat.ErrTooLarge)
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		content, err := io.ReadAll(io.LimitReader(f, docformat.MaxUploadSize+1))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot read uploaded file")
		}

		doc, err := svc.Upload(c.UserContext(), service.UploadInput{
			StudentID: studentID,
			GroupID:   groupID,
			Filename:  fh.Filename,
			Content:   content,
			Actor:     actor,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": doc.ID})
	}
}

func downloadDocument(c *fiber.Ctx, svc service.DocumentService) error {
	id, err := queryInt64(c, "id", 0)
	if err != nil || id <= 0 {
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id")
	}

	doc, rc, err := svc.Open(c.UserContext(), id)
	if err != nil {
		return writeServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, doc.MimeType)
	c.Set(fiber.HeaderContentDisposition, attachment(doc.OriginalName))
	return c.SendStream(rc, int(doc.Size))
}

func exportDocument(c *fiber.Ctx, svc service.DocumentService) error {
	id, err := queryInt64(c, "id", 0)
	if err != nil || id <= 0 {
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id")
	}

	res, err := svc.ExportPDF(c.UserContext(), id)
	if err != nil {
		return writeServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, docformat.MIMEPDF)
	c.Set(fiber.HeaderContentDisposition, attachment(res.Filename))
	return c.SendStream(res.Body, int(res.Size))
}

// attachment quotes name for Content-Disposition, falling back to RFC 2231
// encoding for non-ASCII names.
func attachment(name string) string {
	if name == "" {
		return "attachment"
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func queryInt64(c *fiber.Ctx, key string, def int64) (int64, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
