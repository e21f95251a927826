package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sjsage522/hotdealmatcher/internal/browser"
	"sjsage522/hotdealmatcher/logger"
	cerrors "sjsage522/hotdealmatcher/pkg/errors"
	"sjsage522/hotdealmatcher/services/cache"
	"sjsage522/hotdealmatcher/services/publisher"
	"sjsage522/hotdealmatcher/services/store"
	"sjsage522/hotdealmatcher/services/worker"
)

var crawlOnce bool

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run the crawl pipeline",
	Long: "Walks every configured board source from its watermark, resolves links, " +
		"mall titles and catalog prices, persists the result rows and advances the " +
		"watermark. Runs continuously unless --once is given.",
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().BoolVar(&crawlOnce, "once", false, "Run a single crawl cycle and exit")
	rootCmd.AddCommand(crawlCmd)
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Store     store.Store
	Publisher publisher.Publisher
	Launcher  browser.Launcher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Launcher != nil {
		s.Launcher.Close()
	}
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context) (*Services, error) {
	services := &Services{}
	log := logger.Default

	// Initialize cache service
	cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
	if cacheService == nil {
		return nil, fmt.Errorf("failed to create cache service")
	}
	services.Cache = cacheService
	log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")

	// Initialize store
	pgStore, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	services.Store = pgStore
	log.Info().Msg("Connected to Postgres")

	// Initialize publisher
	redisPublisher := publisher.NewRedisPublisher(
		ctx,
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	if redisPublisher == nil {
		return nil, fmt.Errorf("failed to create publisher")
	}
	services.Publisher = redisPublisher
	log.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")

	// Initialize browser launcher
	services.Launcher = browser.NewChromeLauncher(cfg.NavigateTimeout)

	return services, nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	log := logger.Default

	if err := cfg.Validate(); err != nil {
		return cerrors.NewConfiguration("invalid configuration", err)
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("crawl_interval", cfg.CrawlInterval).
		Bool("once", crawlOnce).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	// Initialize services
	services, err := initializeServices(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer services.Cleanup()

	sources := worker.DefaultSources(cfg, services.Cache)
	w := worker.NewWorker(cfg, services.Launcher, services.Store, services.Publisher, sources)

	if crawlOnce {
		if err := w.RunCycle(ctx); err != nil {
			return fmt.Errorf("crawl cycle failed: %w", err)
		}
		log.Info().Msg("Crawl cycle finished")
		return nil
	}

	w.Start(ctx)

	log.Info().Msg("Shutting down gracefully...")
	return nil
}
