// Command mnemo launches the memory database server: the REST API,
// the gRPC API (when --grpc-port is set), the PostgreSQL wire-dialect
// server (when --pgwire-port is set), the MCP stdio tool server (when
// --mcp-stdio is set), the background lifecycle scheduler, and (when
// --idle-timeout-seconds is set) an idle-timeout watchdog that issues
// a final checkpoint before shutting down. Per spec §9, the MCP stdio
// loop and the HTTP/gRPC/pgwire servers are independent top-level
// tasks coordinated by one shutdown signal, not alternate modes: all
// enabled wire layers run concurrently in the same process. Flag
// wiring follows the teacher's
// cmd/tarsy/main.go shape (godotenv + flag-backed config, gin router,
// graceful signal handling), generalized from one flag/one service to
// mnemo's full CLI surface (spec §6).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/mnemo-db/mnemo/pkg/api"
	"github.com/mnemo-db/mnemo/pkg/cache"
	"github.com/mnemo-db/mnemo/pkg/coldstorage"
	"github.com/mnemo-db/mnemo/pkg/config"
	"github.com/mnemo-db/mnemo/pkg/embedding"
	"github.com/mnemo-db/mnemo/pkg/encryption"
	"github.com/mnemo-db/mnemo/pkg/fulltext"
	"github.com/mnemo-db/mnemo/pkg/grpcapi"
	"github.com/mnemo-db/mnemo/pkg/lifecycle"
	"github.com/mnemo-db/mnemo/pkg/mcpserver"
	"github.com/mnemo-db/mnemo/pkg/metrics"
	"github.com/mnemo-db/mnemo/pkg/pgwire"
	"github.com/mnemo-db/mnemo/pkg/query"
	"github.com/mnemo-db/mnemo/pkg/storage"
	"github.com/mnemo-db/mnemo/pkg/storage/embedded"
	"github.com/mnemo-db/mnemo/pkg/storage/postgres"
	"github.com/mnemo-db/mnemo/pkg/vectorindex"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "mnemo",
		Short: "mnemo is a hash-chained, multi-signal memory database for autonomous agents",
		RunE:  run,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.Flags().String("db-path", "", "embedded storage file path")
	root.Flags().String("openai-api-key", "", "OpenAI API key for the hosted embedding provider")
	root.Flags().String("embedding-model", "", "embedding model name")
	root.Flags().Int("dimensions", 0, "embedding vector dimension")
	root.Flags().String("agent-id", "", "default agent id used when a request omits one")
	root.Flags().String("org-id", "", "default organization id")
	root.Flags().String("onnx-model-path", "", "path to a local ONNX embedding model")
	root.Flags().String("postgres-url", "", "PostgreSQL DSN; selects the server storage backend when set")
	root.Flags().Int("rest-port", 0, "REST API listen port")
	root.Flags().Int("grpc-port", 0, "gRPC API listen port (0 disables the gRPC service)")
	root.Flags().Int("pgwire-port", 0, "PostgreSQL wire-dialect listen port (0 disables the service)")
	root.Flags().Int("idle-timeout-seconds", 0, "shut down after this many seconds with no requests (0 disables)")
	root.Flags().String("encryption-key", "", "64 hex character (32 byte) AES-256-GCM content encryption key")
	root.Flags().Bool("mcp-stdio", false, "also run the MCP tool server on stdin/stdout, alongside the REST/gRPC/pgwire listeners")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	overrideFromFlags(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := slog.Default()

	backend, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("opening storage backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("closing storage backend", "error", err)
		}
	}()

	embedder, err := openEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("configuring embedding provider: %w", err)
	}

	var cipher *encryption.Cipher
	if cfg.EncryptionKey != "" {
		key, err := encryption.KeyFromHex(cfg.EncryptionKey)
		if err != nil {
			return fmt.Errorf("parsing encryption key: %w", err)
		}
		cipher, err = encryption.New(key)
		if err != nil {
			return fmt.Errorf("constructing cipher: %w", err)
		}
	}

	vecIndex := vectorindex.New(cfg.Dimensions)
	ftIndex := fulltext.New()
	memCache := cache.New(10000, 10*time.Minute)
	cold := coldstorage.NewInMemory("cold")
	metricsRecorder := metrics.New()

	engine := &query.Engine{
		Storage:        backend,
		Embedder:       embedder,
		VectorIndex:    vecIndex,
		FullText:       ftIndex,
		Cache:          memCache,
		Cipher:         cipher,
		ColdStorage:    cold,
		DefaultAgentID: cfg.AgentID,
		Logger:         logger,
	}

	manager := &lifecycle.Manager{
		Storage:     backend,
		VectorIndex: vecIndex,
		FullText:    ftIndex,
		ColdStorage: cold,
		Logger:      logger,
	}
	scheduler := lifecycle.NewScheduler(manager, lifecycle.SchedulerConfig{
		ConflictResolution: lifecycle.ResolveManual,
	})
	scheduler.Metrics = metricsRecorder

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MCPStdio {
		mcp := &mcpserver.Server{Engine: engine, Storage: backend, Logger: logger}
		go func() {
			logger.Info("mnemo MCP stdio server listening")
			if err := mcp.Run(ctx); err != nil {
				logger.Error("MCP stdio server stopped", "error", err)
				stop()
			}
		}()
	}

	scheduler.Start(ctx)
	defer scheduler.Stop()

	server := &api.Server{
		Engine:    engine,
		Lifecycle: manager,
		Storage:   backend,
		Metrics:   metricsRecorder,
		Logger:    logger,
	}
	router := server.NewRouter()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.RESTPort),
		Handler: router,
	}

	watchdog := newIdleWatchdog(cfg.IdleTimeoutSeconds, engine, cfg.AgentID, logger, stop)
	if watchdog != nil {
		router.Use(watchdog.touchMiddleware())
		go watchdog.run(ctx)
	}

	var grpcServer *grpc.Server
	if cfg.GRPCPort > 0 {
		grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("binding gRPC listener: %w", err)
		}
		grpcServer = grpcapi.NewGRPCServer(engine, backend, logger)
		go func() {
			logger.Info("mnemo gRPC server listening", "port", cfg.GRPCPort)
			if err := grpcServer.Serve(grpcListener); err != nil {
				logger.Error("gRPC server stopped", "error", err)
			}
		}()
	}

	var pgwireServer *pgwire.Server
	if cfg.PGWirePort > 0 {
		pgwireServer = &pgwire.Server{Engine: engine, AgentID: cfg.AgentID, Logger: logger}
		go func() {
			addr := fmt.Sprintf(":%d", cfg.PGWirePort)
			logger.Info("mnemo pgwire server listening", "port", cfg.PGWirePort)
			if err := pgwireServer.ListenAndServe(ctx, addr); err != nil {
				logger.Error("pgwire server stopped", "error", err)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("mnemo REST server listening", "port", cfg.RESTPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("REST server failed: %w", err)
		}
	}

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("REST server shutdown error", "error", err)
	}
	logger.Info("mnemo shut down cleanly")
	return nil
}

func overrideFromFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if v, _ := flags.GetString("db-path"); v != "" {
		cfg.DBPath = v
	}
	if v, _ := flags.GetString("openai-api-key"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v, _ := flags.GetString("embedding-model"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v, _ := flags.GetInt("dimensions"); v != 0 {
		cfg.Dimensions = v
	}
	if v, _ := flags.GetString("agent-id"); v != "" {
		cfg.AgentID = v
	}
	if v, _ := flags.GetString("org-id"); v != "" {
		cfg.OrgID = v
	}
	if v, _ := flags.GetString("onnx-model-path"); v != "" {
		cfg.ONNXModelPath = v
	}
	if v, _ := flags.GetString("postgres-url"); v != "" {
		cfg.PostgresURL = v
	}
	if v, _ := flags.GetInt("rest-port"); v != 0 {
		cfg.RESTPort = v
	}
	if v, _ := flags.GetInt("grpc-port"); v != 0 {
		cfg.GRPCPort = v
	}
	if v, _ := flags.GetInt("pgwire-port"); v != 0 {
		cfg.PGWirePort = v
	}
	if v, _ := flags.GetInt("idle-timeout-seconds"); v != 0 {
		cfg.IdleTimeoutSeconds = v
	}
	if v, _ := flags.GetString("encryption-key"); v != "" {
		cfg.EncryptionKey = v
	}
	if v, _ := flags.GetBool("mcp-stdio"); v {
		cfg.MCPStdio = true
	}
}

// openStorage selects the embedded or server storage backend
// depending on whether --postgres-url is set (spec §9's "capability
// sets selected at startup" polymorphism).
func openStorage(cfg *config.Config) (storage.Backend, error) {
	if cfg.PostgresURL != "" {
		return postgres.Open(context.Background(), postgres.FromURL(cfg.PostgresURL))
	}
	path := cfg.DBPath
	if path == "" {
		path = "./mnemo.db"
	}
	return embedded.Open(path)
}

// openEmbedder selects OpenAI, ONNX, or the deterministic no-op
// provider depending on which credentials/paths are configured.
func openEmbedder(cfg *config.Config) (embedding.Provider, error) {
	switch {
	case cfg.OpenAIAPIKey != "":
		return embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.EmbeddingModel,
			Dimension: cfg.Dimensions,
		})
	case cfg.ONNXModelPath != "":
		return embedding.NewONNX(embedding.ONNXConfig{
			ModelPath: cfg.ONNXModelPath,
			Dimension: cfg.Dimensions,
		}, nil)
	default:
		return embedding.NewNoOp(cfg.Dimensions), nil
	}
}
