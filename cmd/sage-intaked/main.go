package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/spf13/cobra"

	"github.com/vchigne/sage/internal/config"
	"github.com/vchigne/sage/internal/engine"
	intakehttp "github.com/vchigne/sage/internal/intake/http"
	"github.com/vchigne/sage/internal/obs/logger"
	"github.com/vchigne/sage/internal/schema"
	"github.com/vchigne/sage/internal/sink/driver"
)

//	@title			SAGE Intake Server
//	@version		0.1.0
//	@description	Thin HTTP adapter in front of the SAGE ingestion and validation engine.

//	@host		localhost:8080
//	@BasePath	/

var (
	cfgFile     string
	schemaPaths []string
	version     = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:     "sage-intaked",
	Short:   "HTTP intake adapter for the SAGE engine",
	Version: version,
	Run:     runServer,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "configs/config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringSliceVar(&schemaPaths, "schema", nil, "catalog/package/sender documents to load")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.Setup(cfg.Log); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	slog.Info("sage-intaked starting", "version", version, "config", cfgFile)

	hertzLogger := logger.NewHertzSlogAdapter(slog.Default())
	hlog.SetLogger(hertzLogger)
	hlog.SetLevel(hlog.LevelInfo)

	if len(schemaPaths) == 0 {
		slog.Error("--schema must name at least one catalog/package/sender document")
		os.Exit(2)
	}

	pool := driver.PoolConfig{MaxOpenConns: cfg.Sink.MaxOpenConns, MaxIdleConns: cfg.Sink.MaxIdleConns, ConnMaxLifetime: cfg.Sink.ConnMaxLifetime}
	eng, diag := engine.Load(schema.OSFileLoader{}, schemaPaths, engine.WithLogger(slog.Default()), engine.WithPool(pool))
	if diag.HasErrors() {
		slog.Error("schema failed to load", "findings", len(diag.Findings))
		for _, f := range diag.Findings {
			slog.Error("schema finding", "severity", f.Severity, "message", f.Message)
		}
		os.Exit(1)
	}
	slog.Info("schema loaded", "catalogs", len(eng.Schema().Catalogs), "packages", len(eng.Schema().Packages), "senders", len(eng.Schema().Senders))

	h := server.Default(
		server.WithHostPorts(cfg.GetServerAddr()),
		server.WithReadTimeout(cfg.Server.ReadTimeout),
		server.WithWriteTimeout(cfg.Server.WriteTimeout),
		server.WithMaxRequestBodySize(cfg.Server.MaxRequestBodySize*1024*1024),
	)

	handler := intakehttp.NewHandler(eng)
	intakehttp.Setup(h, handler)

	slog.Info("server started", "address", cfg.GetServerAddr())

	go func() {
		if err := h.Run(); err != nil {
			slog.Error("server run failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped gracefully")
}
