// queryweaved loads configuration, connects to Postgres and Redis, wires
// the provider/LLM registries into the orchestrator pipeline, and runs the
// event distribution and retention cleanup services. An HTTP/WebSocket
// front end is out of scope (see DESIGN.md); this binary is the
// orchestration core a transport layer is expected to embed and drive
// through pkg/orchestrator.Orchestrator.Run directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/tarsy-labs/queryweave/pkg/cleanup"
	"github.com/tarsy-labs/queryweave/pkg/config"
	"github.com/tarsy-labs/queryweave/pkg/conversation"
	"github.com/tarsy-labs/queryweave/pkg/database"
	"github.com/tarsy-labs/queryweave/pkg/events"
	"github.com/tarsy-labs/queryweave/pkg/feedback"
	"github.com/tarsy-labs/queryweave/pkg/llm"
	"github.com/tarsy-labs/queryweave/pkg/llm/fake"
	"github.com/tarsy-labs/queryweave/pkg/masking"
	"github.com/tarsy-labs/queryweave/pkg/notify"
	"github.com/tarsy-labs/queryweave/pkg/orchestrator"
	"github.com/tarsy-labs/queryweave/pkg/provider"
	"github.com/tarsy-labs/queryweave/pkg/provider/sqlprovider"
	"github.com/tarsy-labs/queryweave/pkg/ratelimit"
	"github.com/tarsy-labs/queryweave/pkg/review"
	"github.com/tarsy-labs/queryweave/pkg/store/postgres"
	"github.com/tarsy-labs/queryweave/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	log.Printf("Starting %s", version.Full())
	log.Printf("Config Directory: %s", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := filepath.Join(*configDir, "config.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	stats := cfg.Stats()
	log.Printf("Configuration loaded: %d providers, %d LLM providers", stats.Providers, stats.LLMProviders)

	dbClient, err := database.NewClient(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("Connected to PostgreSQL database")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing redis client: %v", err)
		}
	}()
	limiter := ratelimit.NewLimiter(redisClient)

	conversationRepo := postgres.NewConversationRepo(dbClient.Pool)
	turnRepo := postgres.NewTurnRepo(dbClient.Pool)
	exampleRepo := postgres.NewExampleRepo(dbClient.Pool)
	annotationRepo := postgres.NewAnnotationRepo(dbClient.Pool)
	reviewRepo := postgres.NewReviewRepo(dbClient.Pool)

	convManager := conversation.New(conversationRepo, turnRepo, nil)
	providerRegistry := provider.NewRegistry(providerFactory(cfg.ProviderRegistry))

	maskingSvc := masking.New(cfg.Masking)
	notifySvc := notify.New(cfg.Notify)
	reviewSvc := review.New(exampleRepo, reviewRepo, notifySvc)
	feedbackRouter := feedback.New(exampleRepo, reviewSvc, nil)
	_ = feedbackRouter // wired into the turn-rating entry point a transport layer will call

	invoker, err := buildInvoker(cfg.LLMProviderRegistry, limiter)
	if err != nil {
		log.Fatalf("Failed to build LLM invoker: %v", err)
	}

	orch := orchestrator.New(
		providerRegistry,
		exampleRepo,
		annotationRepo,
		nil, // embeddings.Embedder: no ecosystem embedding client appears in the
		// retrieved corpus, so vector similarity falls back to keyword-only
		// retrieval until a concrete embedder is wired in.
		invoker,
		convManager,
		maskingSvc,
		cfg.Defaults,
		cfg.Retrieval,
		nil,
		cfg.ConfidenceWt,
	)
	_ = orch // invoked by a transport layer via orch.Run per conversation turn

	eventStore := events.NewStore(dbClient.DB())
	broker := events.NewBroker(eventStore)
	publisher := events.NewPublisher(dbClient.DB())
	_ = publisher // the Sink passed to orch.Run by a transport layer

	listener := events.NewNotifyListener(dsn(cfg.Database), broker)
	if err := listener.Start(ctx); err != nil {
		log.Printf("Warning: event listener failed to start: %v", err)
	} else {
		defer listener.Stop(context.Background())
	}

	cleanupSvc := cleanup.NewService(cfg.Retention, conversationRepo)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	log.Println("queryweaved is running; orchestrator, retrieval, validation and retention services are live")
	<-ctx.Done()
	log.Println("Shutting down")
}

// providerFactory adapts the configured ProviderRegistry into the
// connect-on-first-use factory pkg/provider.Registry expects, resolving
// each backend's password from its configured environment variable and
// dispatching on ProviderType the way the teacher's pkg/mcp factory
// dispatches on transport kind.
func providerFactory(registry *config.ProviderRegistry) func(ctx context.Context, id string) (provider.Provider, error) {
	return func(ctx context.Context, id string) (provider.Provider, error) {
		pc, err := registry.Get(id)
		if err != nil {
			return nil, err
		}
		switch pc.Type {
		case config.ProviderTypeSQL:
			password := os.Getenv(pc.PasswordEnv)
			return sqlprovider.New(ctx, pc, password)
		default:
			return nil, fmt.Errorf("provider %q: backend %q has no in-module binding (see DESIGN.md dropped-dependency notes)", id, pc.Type)
		}
	}
}

// buildInvoker resolves one configured LLM provider into a rate-limited,
// retrying Invoker. There is no default-provider setting: when several are
// configured, whichever entry map iteration yields first is used. No ecosystem HTTP/SDK client for a
// concrete LLM vendor appears anywhere in the retrieved corpus (the
// Non-goals exclude concrete vendor bindings), so the innermost Invoker
// here is pkg/llm/fake's scripted stub; production deployments swap it
// for a vendor-specific Invoker without touching the rate-limit or retry
// layers wrapped around it.
func buildInvoker(registry *config.LLMProviderRegistry, limiter *ratelimit.Limiter) (llm.Invoker, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}

	defaultName, defaultCfg := "", (*config.LLMProviderConfig)(nil)
	for name, c := range registry.GetAll() {
		defaultName, defaultCfg = name, c
		break
	}
	slog.Warn("no in-module LLM vendor binding available; using scripted stub invoker",
		"provider", defaultName, "model", defaultCfg.Model)

	inner := fake.New(&llm.Response{Content: ""})
	limited := llm.NewRateLimitedInvoker(inner, limiter, defaultName, defaultCfg.RequestsPerMinute)
	return llm.NewRetryingInvoker(limited, 30*time.Second), nil
}

func dsn(cfg config.DatabaseSection) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
}

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
}
