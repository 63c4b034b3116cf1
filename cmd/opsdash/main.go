package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	rds "github.com/redis/go-redis/v9"

	"github.com/opsdash/opsdash/agent"
	"github.com/opsdash/opsdash/config"
	"github.com/opsdash/opsdash/datasource"
	"github.com/opsdash/opsdash/insights"
	"github.com/opsdash/opsdash/insights/anthropic"
	"github.com/opsdash/opsdash/insights/openai"
	"github.com/opsdash/opsdash/mcpclient"
	"github.com/opsdash/opsdash/memory"
	meminmemory "github.com/opsdash/opsdash/memory/inmemory"
	memredis "github.com/opsdash/opsdash/memory/redis"
	obs "github.com/opsdash/opsdash/observability"
	"github.com/opsdash/opsdash/observability/prom"
	httpserver "github.com/opsdash/opsdash/server/http"
	"github.com/opsdash/opsdash/service"
	"github.com/opsdash/opsdash/storage"
	"github.com/opsdash/opsdash/storage/postgres"
	"github.com/opsdash/opsdash/tools"
	"github.com/opsdash/opsdash/uploads"
)

func main() {
	configPath := flag.String("config", "", "Path to an optional YAML config overlay")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Metrics exporter backs both the global metrics sink and /metrics.
	exporter := prom.New()
	obs.SetMetrics(exporter)

	source := datasource.NewMockSource(datasource.Credentials{
		Marketplace: cfg.Dashboard.Marketplace,
	}, datasource.MockSettings{})

	var repo storage.Repository
	if cfg.Storage.Enabled {
		pg, err := postgres.Connect(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect storage: %w", err)
		}
		defer pg.Close()
		if err := pg.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize storage: %w", err)
		}
		repo = pg
		log.Println("History storage enabled (postgres)")
	}

	var uploadStore uploads.Store
	var history memory.ConversationStore
	if cfg.Redis.Addr != "" {
		client := rds.NewClient(&rds.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		uploadStore = uploads.NewRedisStore(client, "opsdash", cfg.Redis.TTL)
		history = memredis.NewConversationStore(client, "opsdash", cfg.Redis.TTL)
		log.Printf("Uploads and conversation history backed by redis at %s", cfg.Redis.Addr)
	} else {
		uploadStore = uploads.NewMemoryStore(cfg.Redis.TTL)
		history = meminmemory.NewConversationStore()
	}

	provider, err := buildProvider(cfg.Insights)
	if err != nil {
		return err
	}
	if provider != nil {
		log.Printf("Insights provider: %s", provider.Name())
	} else {
		log.Println("Insights provider disabled")
	}

	svc := service.New(service.Options{
		WindowDays: cfg.Dashboard.WindowDays,
		TopN:       cfg.Dashboard.TopN,
		ExportRoot: cfg.Dashboard.ExportRoot,
	}, source, repo, provider, uploadStore)
	svc.SetBestsellerSource(datasource.NewMockBestsellers(cfg.Amazon.Credentials(), datasource.MockSettings{}))

	registry := tools.NewRegistry()
	if err := tools.RegisterDashboardTools(registry, svc); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	var remote mcpclient.Invoker
	if cfg.Remote.Endpoint != "" {
		remote = mcpclient.New(cfg.Remote.ClientConfig())
		log.Printf("Remote tools at %s", cfg.Remote.Endpoint)
	}
	dispatcher := tools.NewDispatcher(registry, remote)
	dispatcher.SetDebug(cfg.Remote.Debug)

	dashboardAgent := agent.New(dispatcher, history, agent.Config{})

	server := httpserver.NewServer(dashboardAgent, svc, uploadStore, repo, history, httpserver.Config{
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		EnableCORS:     cfg.Server.EnableCORS,
		MetricsHandler: prom.Handler(exporter),
	})

	return server.ListenAndServe(ctx)
}

func buildProvider(cfg config.InsightsConfig) (insights.Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIKey == "" {
			log.Println("OPENAI_API_KEY not set; insight generation unavailable")
			return nil, nil
		}
		return openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAIKey,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.Temperature,
		})
	case "anthropic":
		if cfg.AnthropicKey == "" {
			log.Println("ANTHROPIC_API_KEY not set; insight generation unavailable")
			return nil, nil
		}
		return anthropic.NewClient(anthropic.Config{
			APIKey:      cfg.AnthropicKey,
			Model:       cfg.AnthropicModel,
			Temperature: cfg.Temperature,
		})
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown insights provider %q", cfg.Provider)
	}
}
