package handler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/boogy/shc-warden/pkg/aws"
	"github.com/boogy/shc-warden/pkg/cache"
	"github.com/boogy/shc-warden/pkg/config"
	"github.com/boogy/shc-warden/pkg/trust"
	"github.com/boogy/shc-warden/pkg/utils"
	"github.com/boogy/shc-warden/pkg/verifier"
	"github.com/boogy/shc-warden/pkg/version"
)

// DirectoryLoadTimeout bounds loading every configured trust directory at startup
const DirectoryLoadTimeout = 30 * time.Second

// Bootstrap contains all the initialized components needed by handlers
type Bootstrap struct {
	Config   *config.Config
	Cache    cache.Cache
	Store    *trust.Store
	Verifier *verifier.Verifier
	Logger   *slog.Logger
}

// NewBootstrap initializes all common components needed by Lambda handlers
func NewBootstrap() (*Bootstrap, error) {
	versionInfo := version.Get()

	// Initialize logger first
	programLevel, logger := initializeLogger()

	logger.Info(
		fmt.Sprintf("Starting %s", versionInfo.BinName),
		slog.String("version", versionInfo.Version),
		slog.String("commit", versionInfo.Commit),
		slog.String("date", versionInfo.Date),
	)

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Error("Failed to load configuration", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// LOG_LEVEL wins over the configured level
	if os.Getenv("LOG_LEVEL") == "" && cfg.LogLevel != "" {
		if level, err := utils.ParseLogLevel(cfg.LogLevel); err == nil {
			programLevel.Set(level)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), DirectoryLoadTimeout)
	defer cancel()

	verdicts, store, err := NewTrustStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize trust store", slog.String("error", err.Error()))
		return nil, err
	}

	return &Bootstrap{
		Config:   cfg,
		Cache:    verdicts,
		Store:    store,
		Verifier: verifier.NewVerifier(cfg, store),
		Logger:   logger,
	}, nil
}

// NewTrustStore creates the verdict cache and the trust store, then loads
// every configured trust directory into it.
func NewTrustStore(ctx context.Context, cfg *config.Config) (cache.Cache, *trust.Store, error) {
	verdicts, err := cache.NewCache(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	store := trust.NewStore(verdicts)
	if len(cfg.TrustDirectories) == 0 {
		slog.Warn("No trust directories configured; every issuer will be reported as untrusted")
		return verdicts, store, nil
	}

	loader := &trust.Loader{
		Client:      verifier.NewVerifier(cfg, store).Client,
		SchemaCheck: cfg.TrustDirectorySchemaCheck,
	}

	// Only touch AWS configuration when an S3 source is configured
	for _, source := range cfg.TrustDirectories {
		if strings.HasPrefix(source, "s3://") {
			consumer, err := aws.NewAwsConsumer()
			if err != nil {
				return nil, nil, err
			}
			loader.S3 = consumer
			break
		}
	}

	if err := loader.LoadInto(ctx, store, cfg.TrustDirectories); err != nil {
		return nil, nil, fmt.Errorf("failed to load trust directories: %w", err)
	}

	slog.Info("Trust store ready",
		slog.Int("sources", len(cfg.TrustDirectories)),
		slog.Int("issuerIds", store.Len()))
	return verdicts, store, nil
}

// initializeLogger sets up the global JSON logger; the returned level can be
// adjusted once the configuration is loaded.
func initializeLogger() (*slog.LevelVar, *slog.Logger) {
	var programLevel = new(slog.LevelVar) // Default to Info
	programLevel.Set(slog.LevelInfo)

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel != "" {
		if level, err := utils.ParseLogLevel(logLevel); err == nil {
			programLevel.Set(level)
		} else {
			slog.Info("Invalid LOG_LEVEL, defaulting to Info", slog.String("level", logLevel), slog.String("error", err.Error()))
		}
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: programLevel,
	})

	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	return programLevel, logger
}

// NewAwsApiGatewayFromBootstrap creates a new API Gateway handler using bootstrap
func NewAwsApiGatewayFromBootstrap(bootstrap *Bootstrap) *AwsApiGateway {
	return NewAwsApiGateway(bootstrap.Config, bootstrap.Store, bootstrap.Verifier)
}

// NewAwsLambdaUrlFromBootstrap creates a new Lambda URL handler using bootstrap
func NewAwsLambdaUrlFromBootstrap(bootstrap *Bootstrap) *AwsLambdaUrl {
	return NewAwsLambdaUrl(bootstrap.Config, bootstrap.Store, bootstrap.Verifier)
}

// NewAwsApplicationLoadBalancerFromBootstrap creates a new ALB handler using bootstrap
func NewAwsApplicationLoadBalancerFromBootstrap(bootstrap *Bootstrap) *AwsApplicationLoadBalancer {
	return NewAwsApplicationLoadBalancer(bootstrap.Config, bootstrap.Store, bootstrap.Verifier)
}
