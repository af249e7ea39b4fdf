package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MacromNex/rfdiffusion2-mcp/internal/config"
	"github.com/MacromNex/rfdiffusion2-mcp/internal/observability"
	"github.com/MacromNex/rfdiffusion2-mcp/internal/server"
	"github.com/MacromNex/rfdiffusion2-mcp/pkg/artifact"
	"github.com/MacromNex/rfdiffusion2-mcp/pkg/jobs"
	"github.com/MacromNex/rfdiffusion2-mcp/pkg/procedure"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job manager HTTP service",
	Long: `Run the HTTP service that accepts design procedure submissions and
tracks their jobs.

Configuration comes from rfd2mcp.yaml, RFD2MCP_* environment variables,
and flags, with flags winning.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	overrides := map[string]any{}
	if serveHost != "" {
		overrides["server"] = map[string]any{"host": serveHost}
	}
	if servePort != 0 {
		sv, _ := overrides["server"].(map[string]any)
		if sv == nil {
			sv = map[string]any{}
		}
		sv["port"] = servePort
		overrides["server"] = sv
	}

	cfg, err := config.Load(ctx, overrides)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	logger, err := observability.NewServerLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}
	defer func() { _ = logger.Sync() }()

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to load procedure catalog", err)
	}
	checker := &procedure.Checker{
		RFDRepoDir: cfg.Procedures.RFDRepoDir,
		Python:     cfg.Procedures.Python,
	}

	collector, err := buildCollector(cfg, logger)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid artifact configuration", err)
	}

	var metrics *observability.JobMetrics
	onTransition := func(jobs.Snapshot) {}
	if cfg.Metrics.Enabled {
		metrics = observability.NewJobMetrics()
		onTransition = metrics.OnTransition
	}

	mgr := jobs.NewManager(jobs.Options{
		Logger:         logger,
		DefaultTimeout: cfg.Jobs.Timeout,
		CancelGrace:    cfg.Jobs.CancelGrace,
		Collector:      collector,
		OnTransition:   onTransition,
	})

	srv := server.New(cfg.Server.Host, cfg.Server.Port, server.Options{
		Manager:         mgr,
		Catalog:         catalog,
		Checker:         checker,
		Metrics:         metrics,
		Logger:          logger,
		OutputRoot:      cfg.Jobs.OutputRoot,
		LogTail:         cfg.Jobs.LogTail,
		Version:         versionInfo.Version,
		Commit:          versionInfo.Commit,
		BuildDate:       versionInfo.BuildDate,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Warn("shutdown did not complete cleanly", zap.Error(err))
	}
	return nil
}

func loadCatalog(cfg *config.Config) (*procedure.Catalog, error) {
	if cfg.Procedures.CatalogPath != "" {
		return procedure.Load(cfg.Procedures.CatalogPath)
	}
	return procedure.Builtin(cfg.Procedures.ScriptsDir), nil
}

// buildCollector assembles the result collector: a glob manifest of the
// output directory, optionally staged to S3 when a bucket is configured.
func buildCollector(cfg *config.Config, logger *zap.Logger) (jobs.ResultCollector, error) {
	manifest := &artifact.Collector{}
	if cfg.Artifacts.S3Bucket == "" {
		return manifest, nil
	}

	stagerCfg := artifact.StagerConfig{
		Bucket:         cfg.Artifacts.S3Bucket,
		Prefix:         cfg.Artifacts.S3Prefix,
		Region:         cfg.Artifacts.S3Region,
		Endpoint:       cfg.Artifacts.S3Endpoint,
		Profile:        cfg.Artifacts.S3Profile,
		ForcePathStyle: cfg.Artifacts.ForcePathStyle,
	}
	stager, err := artifact.NewStager(context.Background(), stagerCfg)
	if err != nil {
		return nil, err
	}
	return &stagingCollector{
		manifest: manifest,
		stager:   stager,
		logger:   logger,
	}, nil
}

// artifactStager uploads collected artifacts under a job-scoped key prefix.
// Satisfied by *artifact.Stager.
type artifactStager interface {
	Stage(ctx context.Context, jobID, outputDir string, artifacts []artifact.Artifact) ([]string, error)
}

// stagingCollector collects the artifact manifest and uploads the files,
// keyed by the owning job's id.
type stagingCollector struct {
	manifest *artifact.Collector
	stager   artifactStager
	logger   *zap.Logger
}

func (s *stagingCollector) Collect(ctx context.Context, jobID, outputDir string) (map[string]any, error) {
	result, err := s.manifest.Collect(ctx, jobID, outputDir)
	if err != nil {
		return nil, err
	}

	files, _ := result["files"].([]artifact.Artifact)
	keys, err := s.stager.Stage(ctx, jobID, outputDir, files)
	if err != nil {
		// Staging failure does not fail the job; local results remain.
		s.logger.Warn("artifact staging failed",
			zap.String("job_id", jobID),
			zap.String("output_dir", outputDir),
			zap.Error(err))
		return result, nil
	}
	result["staged_keys"] = keys
	return result, nil
}
