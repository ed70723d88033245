package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"archivia/docs"
	"archivia/internal/audit"
	"archivia/internal/cache"
	"archivia/internal/config"
	"archivia/internal/database"
	"archivia/internal/database/migration"
	handlers "archivia/internal/http/handler"
	"archivia/internal/http/middleware"
	"archivia/internal/logging"
	"archivia/internal/model"
	"archivia/internal/otel"
	"archivia/internal/repository/postgres"
	"archivia/internal/service"
	"archivia/internal/storage"
)

// @title ARCHIVIA Document API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, logger *zap.Logger) error {
	if cfg.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	db, err := database.NewPostgres(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
		return err
	}
	caps, err := database.DetectCapabilities(ctx, db)
	if err != nil {
		return err
	}
	logger.Info("schema_capabilities",
		zap.Bool("student_soft_delete", caps.StudentSoftDelete),
		zap.Bool("document_soft_delete", caps.DocumentSoftDelete),
	)

	store, err := newStorage(cfg)
	if err != nil {
		return err
	}

	var exportCache cache.Cache = cache.Noop{}
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedis(cfg.Redis)
		defer rc.Close()
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rc.Ping(pctx); err != nil {
			logger.Warn("export cache unavailable, continuing without it", zap.Error(err))
		} else {
			exportCache = rc
		}
		cancel()
	}

	docSvc := service.NewDocumentService(service.Deps{
		Store:    store,
		Docs:     postgres.NewDocumentPostgres(db, caps),
		Students: postgres.NewStudentPostgres(db, caps),
		Audit:    audit.New(postgres.NewAuditPostgres(db), logger, cfg.Audit.Mode),
		Cache:    exportCache,
		Log:      logger,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    cfg.MaxBodyBytes,
	})

	prom, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(prom.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	auth := middleware.Identity([]byte(cfg.Auth.JWTSecret),
		model.RoleAdmin, model.RoleRecordOfficer, model.RoleTeacher)
	handlers.RegisterRoutes(app, db, store, docSvc, auth)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting_down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("storage_driver", cfg.Storage.Driver))
	return app.Listen(addr)
}

func newStorage(cfg *config.AppConfig) (storage.Storage, error) {
	switch cfg.Storage.Driver {
	case "minio":
		return storage.NewMinIO(cfg.MinIO)
	case "local", "":
		return storage.NewLocal(cfg.Storage.UploadRoot)
	default:
		return nil, errors.New("unknown STORAGE_DRIVER " + cfg.Storage.Driver)
	}
}
