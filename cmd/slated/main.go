package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"Slate-Tron/internal/agent"
	"Slate-Tron/internal/api"
	"Slate-Tron/internal/cache"
	"Slate-Tron/internal/config"
	"Slate-Tron/internal/events"
	"Slate-Tron/internal/justlend"
	"Slate-Tron/internal/knowledge"
	"Slate-Tron/internal/llm"
	"Slate-Tron/internal/llm/openai"
	"Slate-Tron/internal/observability/metrics"
	"Slate-Tron/internal/retry"
	"Slate-Tron/internal/session"
	"Slate-Tron/internal/storage/mysql"
	"Slate-Tron/internal/tools"
	"Slate-Tron/internal/tron"
	"Slate-Tron/pkg/logger"
)

// main 是 Slate 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("slated 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("SLATE_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "slate.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled: cfg.Log.AuditPath != "",
			Path:    cfg.Log.AuditPath,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	// 解析 TRON 网络定义，nile 需要显式配置 unitroller。
	networks, err := config.LoadNetworkDefinitions(cfg.Tron.NetworksYML)
	if err != nil {
		return err
	}
	network, err := networks.Resolve(cfg.Tron.Network)
	if err != nil {
		return err
	}
	unitrollerAddr := network.Unitroller
	if cfg.Tron.Unitroller != "" {
		unitrollerAddr = cfg.Tron.Unitroller
	}
	unitroller, err := tron.DecodeAddress(unitrollerAddr)
	if err != nil {
		return fmt.Errorf("unitroller 地址无效: %w", err)
	}

	tronClient, err := tron.NewClient(ctx, tron.Config{
		Name:   cfg.Tron.Network,
		RPCURL: network.JSONRPCURL,
		APIKey: strings.TrimSpace(os.Getenv(cfg.Tron.APIKeyEnv)),
		Notes:  network.Description,
	})
	if err != nil {
		return err
	}
	defer tronClient.Close()

	// 启动时探测链连通性，失败只告警，不阻止服务启动。
	probeCtx, cancelProbe := context.WithTimeout(ctx, 10*time.Second)
	if snapshot, err := tronClient.FetchChainSnapshot(probeCtx); err != nil {
		logger.Named("bootstrap").Warn("链连通性探测失败", slog.String("network", cfg.Tron.Network), logger.Err(err))
	} else {
		logger.Named("bootstrap").Info("已连接 TRON 网络",
			"network", cfg.Tron.Network,
			"chain_id", snapshot.ChainID,
			"block_number", snapshot.BlockNumber,
		)
	}
	cancelProbe()

	retrier := retry.New(cfg.Fetch.MaxAttempts, cfg.Fetch.BaseDelay())
	reader := justlend.NewReader(tronClient, unitroller, retrier,
		justlend.WithDefaultLimit(cfg.Fetch.DefaultMarketLimit),
		justlend.WithMarketDelay(cfg.Fetch.MarketDelay()),
	)

	marketsCache, err := createMarketsCache(cfg)
	if err != nil {
		return err
	}
	defer marketsCache.Close()

	archive, err := createChatArchive(ctx, cfg)
	if err != nil {
		return err
	}
	if closer, ok := archive.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	bus, err := createEventBus(ctx, cfg)
	if err != nil {
		return err
	}
	defer bus.Close()

	llmClient, err := createLLMClient(cfg)
	if err != nil {
		return err
	}

	knowledgeProvider, err := createKnowledgeProvider(cfg)
	if err != nil {
		return err
	}

	catalog := tools.BuildCatalog(reader, marketsCache, cfg.Fetch.DefaultMarketLimit)
	ag := agent.New(llmClient, catalog, session.NewRegistry(),
		agent.WithModels(cfg.LLM.OpenAI.PlannerModel, cfg.LLM.OpenAI.SummaryModel),
		agent.WithMemoryWindow(cfg.Agent.MemoryWindow),
		agent.WithToolCallCap(cfg.Agent.MaxToolCalls),
		agent.WithPlanRounds(cfg.Agent.MaxPlanRounds),
		agent.WithKnowledgeProvider(knowledgeProvider),
		agent.WithArchive(archive),
		agent.WithEventBus(bus),
		agent.WithLLMTimeout(cfg.LLM.OpenAI.Timeout()),
	)

	if cfg.Server.MetricsAddress != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Server.MetricsAddress); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Error("指标服务异常退出", "error", err)
			}
		}()
	}

	apiKey := cfg.Server.APIKey
	if apiKey == "" && cfg.Server.APIKeyEnv != "" {
		apiKey = strings.TrimSpace(os.Getenv(cfg.Server.APIKeyEnv))
	}
	server := api.NewServer(cfg.Server.Address, ag, api.WithAPIKey(apiKey))

	logger.L().Info("slated 启动",
		"address", cfg.Server.Address,
		"network", cfg.Tron.Network,
		"cache_driver", cfg.Cache.Driver,
		"events_driver", cfg.Events.Driver,
	)
	return server.Start(ctx)
}

func createMarketsCache(cfg *config.Config) (cache.MarketsCache, error) {
	switch cfg.Cache.Driver {
	case "", "memory":
		return cache.NewMemoryCache(cfg.Cache.TTL()), nil
	case "redis":
		return cache.NewRedisCache(cache.RedisCacheConfig{
			Address:  cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
			TTL:      cfg.Cache.TTL(),
		})
	default:
		return nil, fmt.Errorf("未知的缓存驱动: %s", cfg.Cache.Driver)
	}
}

func createChatArchive(ctx context.Context, cfg *config.Config) (mysql.ChatRepository, error) {
	switch cfg.Storage.ChatStore.Driver {
	case "", "memory":
		return mysql.NewMemoryChatRepository(cfg.Runtime.DataDir)
	case "mysql":
		return mysql.NewSQLChatRepository(ctx, mysql.Config{
			DSN:             cfg.Storage.ChatStore.DSN,
			MaxOpenConns:    cfg.Storage.ChatStore.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.ChatStore.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Storage.ChatStore.ConnMaxLifetimeSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("未知的归档驱动: %s", cfg.Storage.ChatStore.Driver)
	}
}

func createEventBus(ctx context.Context, cfg *config.Config) (events.Bus, error) {
	switch cfg.Events.Driver {
	case "", "memory":
		bus := events.NewMemoryBus(256)
		// 内存驱动没有外部消费者，落到审计日志以便排查。
		go func() {
			_ = bus.Consume(ctx, func(_ context.Context, event events.Event) error {
				logger.Audit().Info("ui_event",
					"id", event.ID,
					"session_id", event.SessionID,
					"kind", string(event.Kind),
				)
				return nil
			})
		}()
		return bus, nil
	case "rabbitmq":
		return events.NewRabbitMQBus(events.RabbitMQConfig{
			URL:        cfg.Events.RabbitMQ.URL,
			Queue:      cfg.Events.RabbitMQ.Queue,
			Durable:    cfg.Events.RabbitMQ.Durable,
			AutoDelete: cfg.Events.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的事件总线驱动: %s", cfg.Events.Driver)
	}
}

func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "openai":
		apiKey := strings.TrimSpace(os.Getenv(cfg.LLM.OpenAI.APIKeyEnv))
		if apiKey == "" {
			return nil, fmt.Errorf("环境变量 %s 未设置 OpenAI API Key", cfg.LLM.OpenAI.APIKeyEnv)
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.PlannerModel,
			Timeout: cfg.LLM.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}

func createKnowledgeProvider(cfg *config.Config) (knowledge.Provider, error) {
	if cfg.Knowledge.Source == "" {
		return knowledge.NewDefaultProvider(cfg.Knowledge.MaxResults), nil
	}
	return knowledge.LoadStaticProvider(cfg.Knowledge.Source, cfg.Knowledge.MaxResults)
}
