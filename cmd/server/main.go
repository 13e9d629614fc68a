package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/districtmap/backend/internal/api"
	"github.com/districtmap/backend/internal/config"
	"github.com/districtmap/backend/internal/models"
	"github.com/districtmap/backend/internal/parser"
	"github.com/districtmap/backend/internal/render"
	"github.com/districtmap/backend/internal/session"
	"github.com/districtmap/backend/internal/storage"
	"github.com/districtmap/backend/internal/upload"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	// Load XML configuration
	configPath := filepath.Join(exeDir, "districtmap.config")
	if p := os.Getenv("DISTRICTMAP_CONFIG"); p != "" {
		configPath = p
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		logger.Sync() //nolint:errcheck
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, logger *zap.Logger) error {
	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	api.SetErrorDetails(os.Getenv("ENV") == "development")

	mapConfig, err := loadMapConfig(cfg)
	if err != nil {
		return err
	}

	renderer := render.NewRenderer(cfg.RenderSettings(), logger.Named("render"))
	sessionMgr := session.NewManager(renderer, mapConfig, session.Options{
		SessionTimeout:  cfg.SessionTimeout(),
		CleanupInterval: cfg.CleanupInterval(),
		RenderTTL:       cfg.ImageCacheTTL(),
	}, logger.Named("session"))
	sessionMgr.Start()
	defer sessionMgr.Stop()

	// Load the bundled district geometry if present
	if ds, err := loadDefaultDataset(cfg); err != nil {
		logger.Warn("default geometry not loaded",
			zap.String("path", cfg.Storage.DefaultGeometryPath), zap.Error(err))
	} else if ds != nil {
		sessionMgr.AddDataset(ds, true)
		logger.Info("default geometry loaded",
			zap.String("path", cfg.Storage.DefaultGeometryPath),
			zap.Int("districts", len(ds.Districts)),
			zap.Int("excluded", len(ds.Excluded)))
	}

	var coverage api.CoverageReader
	if cfg.Storage.EnableCoverageAudit {
		store, err := storage.OpenCoverageStore(cfg.Storage.CoverageDatabase, storage.CoverageOptions{
			Threads:     cfg.Advanced.DuckDBThreads,
			MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
		}, logger.Named("coverage"))
		if err != nil {
			return fmt.Errorf("failed to open coverage database: %w", err)
		}
		defer store.Close()
		sessionMgr.SetRecorder(store)
		coverage = store
	}

	// Initialize storage
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Initialize upload processing manager
	uploadMgr := upload.NewManager(fileStore, parser.GetGlobalRegistry(), sessionMgr,
		cfg.LoadOptions(), cfg.Processing.MaxConcurrentImports, logger.Named("upload"))
	defer uploadMgr.Wait()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Finished import jobs are dropped on the session cleanup cadence
	go func() {
		interval := cfg.CleanupInterval()
		if interval <= 0 {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := uploadMgr.CleanupOldJobs(cfg.SessionTimeout()); n > 0 {
					logger.Debug("import jobs removed", zap.Int("count", n))
				}
			}
		}
	}()

	e := newEcho(cfg, logger)
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Store:    fileStore,
		Sessions: sessionMgr,
		Importer: uploadMgr,
		Coverage: coverage,
		Version:  Version,
	}))

	printBanner(cfg)

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(cfg.GetServerAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func loadMapConfig(cfg *config.AppConfig) (*models.MapConfig, error) {
	if cfg.Storage.DefaultMapConfig == "" {
		return parser.DefaultMapConfig()
	}
	mc, err := parser.ParseMapConfig(cfg.Storage.DefaultMapConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load map config: %w", err)
	}
	return mc, nil
}

func loadDefaultDataset(cfg *config.AppConfig) (*models.Dataset, error) {
	path := cfg.Storage.DefaultGeometryPath
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	ds, err := parser.GetGlobalRegistry().LoadDataset(path, cfg.LoadOptions())
	if err != nil {
		return nil, err
	}
	ds.Name = filepath.Base(path)
	return ds, nil
}

func newEcho(cfg *config.AppConfig, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = time.Duration(cfg.Server.ReadTimeout) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.Server.WriteTimeout) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.Server.IdleTimeout) * time.Second

	api.SetupMiddleware(e)

	// Configure middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/stream") || path == "/api/health"
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("request", fields...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.Contains(path, "/upload") ||
				strings.HasSuffix(path, "/render") ||
				strings.HasSuffix(path, "/stream")
		},
		ErrorMessage: "Request timeout - render took too long",
	}))

	// Compression middleware; PNG is already compressed
	if cfg.Processing.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Processing.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return strings.HasSuffix(path, "/image") || strings.HasSuffix(path, "/stream")
			},
		}))
	}

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	return e
}

func printBanner(cfg *config.AppConfig) {
	fmt.Println("========================================")
	fmt.Println("  District Product Map Server")
	fmt.Printf("  Version: %s (built %s)\n", Version, BuildTime)
	fmt.Println("========================================")
	fmt.Printf("  Listening:  http://%s\n", cfg.GetServerAddr())
	fmt.Printf("  Data dir:   %s\n", cfg.GetDataDir())
	fmt.Printf("  Geometry:   %s\n", cfg.Storage.DefaultGeometryPath)
	fmt.Printf("  DPI:        %d (%d-%d)\n", cfg.Rendering.DefaultDPI, cfg.Rendering.MinDPI, cfg.Rendering.MaxDPI)
	if cfg.Storage.EnableCoverageAudit {
		fmt.Printf("  Coverage:   %s\n", cfg.Storage.CoverageDatabase)
	}
	fmt.Println("========================================")
}
