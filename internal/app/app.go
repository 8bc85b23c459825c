package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/classfund/internal/clients/apininjas"
	"github.com/bobmcallan/classfund/internal/clients/eodhd"
	"github.com/bobmcallan/classfund/internal/clients/stooq"
	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/holdings"
	"github.com/bobmcallan/classfund/internal/interfaces"
	"github.com/bobmcallan/classfund/internal/services/lineage"
	"github.com/bobmcallan/classfund/internal/services/quote"
	"github.com/bobmcallan/classfund/internal/services/valuation"
	"github.com/bobmcallan/classfund/internal/storage/snapshotfs"
)

// App holds all initialized services, clients, and the MCP server.
// It is the shared core used by cmd/classfund-server and cmd/classfund.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Providers        []interfaces.QuoteProvider
	QuoteChain       *quote.Chain
	Store            interfaces.SnapshotStore
	ValuationService interfaces.ValuationService
	LineageService   interfaces.LineageService
	MCPServer        *server.MCPServer
	StartupTime      time.Time

	cron            *cron.Cron
	warmCacheCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the given path, CLASSFUND_CONFIG,
// classfund.toml next to the binary, then config/classfund.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("CLASSFUND_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "classfund.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/classfund.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and wires every service.
// configPath may be empty, in which case ResolveConfigPath decides.
func NewApp(configPath string) (*App, error) {
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return New(config, common.NewLoggerFromConfig(config.Logging))
}

// New wires an App from an already loaded config.
func New(config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	providers := buildProviders(config, logger)
	chain := quote.NewChain(providers, logger)
	scheduler := quote.NewScheduler(chain, config.Quotes.Concurrency, logger)
	store := snapshotfs.NewStore(logger, config.Cache.Path)

	ledgerFormat := holdings.Format(config.Ledger.Format)
	valuationService := valuation.NewService(valuation.Options{
		LedgerPath:   config.Ledger.Path,
		LedgerFormat: ledgerFormat,
		Benchmark:    config.Quotes.Benchmark,
		Staleness:    common.NewStalenessPolicy(config.Cache),
	}, scheduler, chain, store, logger)

	data := lineage.DefaultData()
	if config.Lineage.Path != "" {
		loaded, err := lineage.LoadData(config.Lineage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load lineage data: %w", err)
		}
		data = loaded
	}
	lineageService, err := lineage.NewService(data, config.Ledger.Path, ledgerFormat, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid lineage data: %w", err)
	}

	mcpServer := server.NewMCPServer(
		"classfund",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	a := &App{
		Config:           config,
		Logger:           logger,
		Providers:        providers,
		QuoteChain:       chain,
		Store:            store,
		ValuationService: valuationService,
		LineageService:   lineageService,
		MCPServer:        mcpServer,
		StartupTime:      startupStart,
	}

	a.registerTools()

	logger.Info().
		Int("providers", len(chain.Providers())).
		Int("concurrency", scheduler.Concurrency()).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// buildProviders constructs the quote clients in configured priority order.
// Unknown names are skipped; clients without credentials are returned and
// dropped by the chain.
func buildProviders(config *common.Config, logger *common.Logger) []interfaces.QuoteProvider {
	var providers []interfaces.QuoteProvider
	for _, name := range config.Quotes.Providers {
		switch name {
		case "eodhd":
			cfg := config.Clients.EODHD
			providers = append(providers, eodhd.NewClient(cfg.APIKey,
				eodhd.WithBaseURL(cfg.BaseURL),
				eodhd.WithLogger(logger),
				eodhd.WithRateLimit(cfg.RateLimit),
				eodhd.WithTimeout(cfg.GetTimeout()),
			))
		case "apininjas":
			cfg := config.Clients.APINinjas
			providers = append(providers, apininjas.NewClient(cfg.APIKey,
				apininjas.WithBaseURL(cfg.BaseURL),
				apininjas.WithLogger(logger),
				apininjas.WithRateLimit(cfg.RateLimit),
				apininjas.WithTimeout(cfg.GetTimeout()),
				apininjas.WithPricePath(cfg.PricePath),
			))
		case "stooq":
			cfg := config.Clients.Stooq
			providers = append(providers, stooq.NewClient(
				stooq.WithBaseURL(cfg.BaseURL),
				stooq.WithLogger(logger),
				stooq.WithRateLimit(cfg.RateLimit),
				stooq.WithTimeout(cfg.GetTimeout()),
			))
		default:
			logger.Warn().Str("provider", name).Msg("Unknown quote provider in config, skipping")
		}
	}
	return providers
}

// Close stops background work. Shutdown order: cancel warm cache, stop cron.
func (a *App) Close() {
	if a.warmCacheCancel != nil {
		a.warmCacheCancel()
		a.warmCacheCancel = nil
	}
	if a.cron != nil {
		<-a.cron.Stop().Done()
		a.cron = nil
		a.Logger.Info().Msg("Refresh scheduler: stopped")
	}
}

// StartWarmCache values the portfolio once in the background so the first
// request finds a fresh cache.
func (a *App) StartWarmCache() {
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	a.warmCacheCancel = warmCancel
	go func() {
		defer warmCancel()
		warmCache(warmCtx, a.ValuationService, a.Store, common.NewStalenessPolicy(a.Config.Cache), a.Logger)
	}()
}
