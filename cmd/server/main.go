package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ganot/feapi/internal/config"
	"github.com/ganot/feapi/internal/domain/fulfillment"
	"github.com/ganot/feapi/internal/domain/journal"
	"github.com/ganot/feapi/internal/domain/load"
	"github.com/ganot/feapi/internal/domain/plan"
	"github.com/ganot/feapi/internal/evidence"
	"github.com/ganot/feapi/internal/mcp"
	"github.com/ganot/feapi/internal/planner"
	"github.com/ganot/feapi/internal/tenant"
	"github.com/ganot/feapi/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if logPath := os.Getenv("FEAPI_LOG_PATH"); logPath != "" {
		fileWriter, file, err := newLogFileWriter(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	manager := tenant.NewManager(cfg.Store.Dir, logger)
	defer func() {
		if err := manager.Close(); err != nil {
			logger.Error("failed to close device stores", "error", err)
		}
	}()

	source, err := newPlanSource(cfg.Planner)
	if err != nil {
		return err
	}
	images, err := newEvidenceSource(ctx, cfg.Evidence)
	if err != nil {
		return err
	}

	metrics := transport.NewMetrics()
	importer := plan.NewImporter(manager, source, logger)
	fulfillmentSvc := fulfillment.NewService(manager, images, transport.NewCompletionNotifier(metrics, logger), logger)
	querySvc := load.NewService(manager, logger)
	journalSvc := journal.NewService(manager, logger)

	var resolver *transport.JWTResolver
	if cfg.Auth.Enabled {
		resolver = transport.NewJWTResolver(cfg.Auth.JWTSecret, cfg.Auth.DeviceClaim)
	}

	mcpCfg := mcp.Config{
		Services: mcp.Services{
			Importer:    importer,
			Fulfillment: fulfillmentSvc,
			Queries:     querySvc,
			Tenants:     manager,
			Journal:     journalSvc,
		},
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		Logger:        logger,
	}
	if resolver != nil {
		mcpCfg.Resolver = resolver
	}
	mcpServer := mcp.NewServer(mcpCfg)

	if cfg.Transport.Mode == "stdio" {
		return runStdioMode(logger, mcpServer)
	}

	httpCfg := transport.Config{
		Services: transport.Services{
			Importer:    importer,
			Fulfillment: fulfillmentSvc,
			Queries:     querySvc,
			Tenants:     manager,
			Journal:     journalSvc,
		},
		Metrics: metrics,
		MCP: sdkmcp.NewStreamableHTTPHandler(
			func(r *http.Request) *sdkmcp.Server { return mcpServer },
			&sdkmcp.StreamableHTTPOptions{
				SessionTimeout: 30 * time.Minute,
			},
		),
		Logger: logger,
	}
	if resolver != nil {
		httpCfg.Auth = transport.AuthMiddleware(resolver)
	}

	return runHTTPMode(logger, transport.NewServer(httpCfg), cfg.Server.Host, cfg.Server.Port)
}

func newPlanSource(cfg config.PlannerConfig) (plan.Source, error) {
	switch cfg.Source {
	case "", "file":
		return planner.NewFileSource(cfg.SnapshotPath), nil
	case "http":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("planner base_url required for http source")
		}
		return planner.NewHTTPSource(cfg.BaseURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown planner source %q", cfg.Source)
	}
}

func newEvidenceSource(ctx context.Context, cfg config.EvidenceConfig) (fulfillment.EvidenceSource, error) {
	switch cfg.Source {
	case "", "dir":
		return evidence.NewDirSource(cfg.Dir, cfg.URLPrefix), nil
	case "s3":
		src, err := evidence.NewS3Source(ctx, evidence.S3Config{
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown evidence source %q", cfg.Source)
	}
}

func runStdioMode(logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run blocks until stdin closes or context is canceled
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func runHTTPMode(logger *slog.Logger, handler http.Handler, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return waitForShutdown(logger, httpServer, errCh)
}

func waitForShutdown(logger *slog.Logger, server *http.Server, errCh <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const (
	maxLogSizeBytes  = 6 * 1024 * 1024
	keepLogSizeBytes = 5 * 1024 * 1024
)

// logFileWriter appends to a file and trims it back to the newest
// keepLogSizeBytes once it grows past maxLogSizeBytes.
type logFileWriter struct {
	file *os.File
	mu   sync.Mutex
}

func newLogFileWriter(path string) (*logFileWriter, *os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	writer := &logFileWriter{file: file}
	if err := writer.trim(); err != nil {
		file.Close()
		return nil, nil, err
	}
	return writer, file, nil
}

func (w *logFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}
	return n, w.trim()
}

func (w *logFileWriter) trim() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= maxLogSizeBytes {
		return nil
	}

	buf := make([]byte, keepLogSizeBytes)
	n, err := w.file.ReadAt(buf, size-keepLogSizeBytes)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if err := w.file.Truncate(0); err != nil {
		return err
	}
	// O_APPEND writes land at the new end of file.
	_, err = w.file.Write(buf[:n])
	return err
}
