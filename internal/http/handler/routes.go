package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"archivia/internal/service"
	"archivia/internal/storage"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Document
// routes run behind auth, which must store a model.Identity in locals.
func RegisterRoutes(app *fiber.App, db *sql.DB, store storage.Storage, docSvc service.DocumentService, auth fiber.Handler) {
	app.Get("/health", HealthCheck(db, store))
	app.Get("/healthz", LivenessProbe())

	app.Get("/documents", auth, GetDocuments(docSvc))
	app.Post("/documents", auth, UploadDocument(docSvc))
}
