package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	issuanceapp "github.com/vidamed/backend/internal/application/issuance"
	verificationapp "github.com/vidamed/backend/internal/application/verification"
	"github.com/vidamed/backend/internal/domain/document"
	"github.com/vidamed/backend/internal/domain/shared"
	"github.com/vidamed/backend/internal/infrastructure/config"
	"github.com/vidamed/backend/internal/infrastructure/logger"
	"github.com/vidamed/backend/internal/infrastructure/persistence"
	"github.com/vidamed/backend/internal/infrastructure/render"
	"github.com/vidamed/backend/internal/infrastructure/storage"
	"github.com/vidamed/backend/internal/infrastructure/telemetry"
	"github.com/vidamed/backend/internal/interfaces/http/handler"
	"github.com/vidamed/backend/internal/interfaces/http/middleware"
	"github.com/vidamed/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting VidaMed Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize tracing
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
			Enabled:  true,
			DBSystem: "postgresql",
		}, log); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Initialize repositories
	docRepo := persistence.NewGormDocumentRepository(db.DB)
	doctorRepo := persistence.NewGormDoctorRepository(db.DB)
	patientRepo := persistence.NewGormPatientRepository(db.DB)

	// Initialize the PDF renderer. A failed browser launch is not fatal:
	// issuance requests fail fast until the renderer comes back.
	renderer, err := render.NewChromedpRenderer(&render.ChromedpConfig{
		Enabled:        cfg.Render.Enabled,
		DefaultTimeout: cfg.Render.Timeout,
		RemoteURL:      cfg.Render.RemoteURL,
		NoSandbox:      cfg.Render.NoSandbox,
		Logger:         log,
	})
	if err != nil {
		log.Fatal("Failed to initialize PDF renderer", zap.Error(err))
	}
	defer func() {
		if err := renderer.Close(); err != nil {
			log.Error("Error closing renderer", zap.Error(err))
		}
	}()

	htmlEngine, err := render.NewTemplateEngine()
	if err != nil {
		log.Fatal("Failed to load document templates", zap.Error(err))
	}

	// Initialize artifact storage: remote object store preferred, local
	// filesystem as fallback
	remoteStore, err := storage.NewRemoteObjectStore(&cfg.Storage.Remote, log)
	if err != nil {
		log.Fatal("Failed to initialize remote storage", zap.Error(err))
	}
	localStore, err := storage.NewLocalFileStore(&cfg.Storage.Local, log)
	if err != nil {
		log.Fatal("Failed to initialize local storage", zap.Error(err))
	}
	artifactPolicy := storage.NewPolicy(remoteStore, localStore, log)

	// Initialize application services
	codegen := issuanceapp.NewCodeGenerator(docRepo, log)
	issuanceService := issuanceapp.NewService(
		docRepo, doctorRepo, patientRepo, codegen,
		renderer, htmlEngine, artifactPolicy,
		cfg.App.VerifyBaseURL, log,
	)
	verificationService := verificationapp.NewService(docRepo, doctorRepo, patientRepo, log)

	// Periodically sweep expired local artifacts
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	if cfg.Storage.Local.RetentionDays > 0 {
		go runLocalCleanup(cleanupCtx, localStore, docRepo, cfg.Storage.Local.RetentionDays, log)
	}

	// Initialize handlers
	documentHandler := handler.NewDocumentHandler(issuanceService)
	verifyHandler := handler.NewVerifyHandler(verificationService)
	systemHandler := handler.NewSystemHandler()

	// Configure gin
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order matters:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing - Create request spans, then inject span attributes
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.TracingAttributeInjector())
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, renderer))

	// Locally stored artifacts are served straight off the filesystem
	engine.Static(localStore.PublicPrefix(), localStore.Root())

	// Public verification endpoint: no auth, redacted view
	engine.GET("/verify/:identifier", verifyHandler.Resolve)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	documentRoutes := router.NewDomainGroup("documents", "/documents")
	documentRoutes.POST("/certificates", documentHandler.IssueCertificate)
	documentRoutes.POST("/prescriptions", documentHandler.IssuePrescription)
	documentRoutes.GET("/lookup/:identifier", verifyHandler.Lookup)
	documentRoutes.GET("/:id", documentHandler.GetByID)
	documentRoutes.DELETE("/:id", documentHandler.Delete)
	documentRoutes.DELETE("", documentHandler.BatchDelete)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(documentRoutes).
		Register(systemRoutes)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints. The renderer
// being down degrades the status but keeps the service reachable, since
// verification endpoints still work without it.
func healthHandler(db *persistence.Database, renderer *render.ChromedpRenderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}

		status := "healthy"
		rendererState := "ok"
		if !renderer.Available() {
			status = "degraded"
			rendererState = "unavailable"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   status,
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
			"renderer": rendererState,
		})
	}
}

// runLocalCleanup sweeps local artifacts older than the retention window
// once a day. Only orphans go: a file whose row is still stored and still
// points at it is kept, a file whose row is missing or stuck pending is
// removed.
func runLocalCleanup(ctx context.Context, store *storage.LocalFileStore, docs document.Repository, retentionDays int, log *zap.Logger) {
	retention := time.Duration(retentionDays) * 24 * time.Hour
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	keep := func(ctx context.Context, id uint, ref document.ArtifactRef) (bool, error) {
		doc, err := docs.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return false, nil
			}
			return true, err
		}
		return doc.Status == document.StatusStored &&
			doc.Artifact != nil && doc.Artifact.Value == ref.Value, nil
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupOlderThan(ctx, retention, keep)
			if err != nil {
				log.Warn("Local artifact cleanup failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				log.Info("Removed expired local artifacts", zap.Int("count", removed))
			}
		}
	}
}
