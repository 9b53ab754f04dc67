package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Config 描述了 Slate 在启动阶段需要加载的核心配置。
type Config struct {
	Server    ServerConfig    `json:"server"`
	LLM       LLMConfig       `json:"llm"`
	Tron      TronConfig      `json:"tron"`
	Fetch     FetchConfig     `json:"fetch"`
	Cache     CacheConfig     `json:"cache"`
	Agent     AgentConfig     `json:"agent"`
	Storage   StorageConfig   `json:"storage"`
	Events    EventsConfig    `json:"events"`
	Knowledge KnowledgeConfig `json:"knowledge"`
	Log       LogConfig       `json:"log"`
	Runtime   RuntimeConfig   `json:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address        string `json:"address"`
	MetricsAddress string `json:"metrics_address"`
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
}

// LLMConfig 用于配置大模型推理的调用方式。
type LLMConfig struct {
	Provider string       `json:"provider"`
	OpenAI   OpenAIConfig `json:"openai"`
}

// OpenAIConfig 描述调用 OpenAI 兼容接口所需的信息。
type OpenAIConfig struct {
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	PlannerModel   string `json:"planner_model"`
	SummaryModel   string `json:"summary_model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回调用大模型的超时时间。
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TronConfig 描述访问 TRON 网络所需的参数。
type TronConfig struct {
	Network     string `json:"network"`
	NetworksYML string `json:"networks_file"`
	Unitroller  string `json:"unitroller"`
	APIKeyEnv   string `json:"api_key_env"`
}

// FetchConfig 控制链上数据抓取的重试与节流行为。
type FetchConfig struct {
	MaxAttempts        int `json:"max_attempts"`
	BaseDelayMS        int `json:"base_delay_ms"`
	MarketDelayMS      int `json:"market_delay_ms"`
	DefaultMarketLimit int `json:"default_market_limit"`
}

// BaseDelay 返回重试的基础等待时间。
func (c FetchConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

// MarketDelay 返回逐个市场抓取之间的固定间隔。
func (c FetchConfig) MarketDelay() time.Duration {
	return time.Duration(c.MarketDelayMS) * time.Millisecond
}

// CacheConfig 描述市场列表缓存的驱动与过期时间。
type CacheConfig struct {
	Driver     string           `json:"driver"`
	TTLSeconds int              `json:"ttl_seconds"`
	Redis      RedisCacheConfig `json:"redis"`
}

// RedisCacheConfig 描述 Redis 缓存驱动的连接参数。
type RedisCacheConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// TTL 返回缓存条目的存活时间。
func (c CacheConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// AgentConfig 控制对话智能体的运行参数。
type AgentConfig struct {
	MemoryWindow  int `json:"memory_window"`
	MaxToolCalls  int `json:"max_tool_calls"`
	MaxPlanRounds int `json:"max_plan_rounds"`
}

// StorageConfig 统一描述对话归档后端的连接信息。
type StorageConfig struct {
	ChatStore ChatStoreConfig `json:"chat_store"`
}

// ChatStoreConfig 支持内存 JSON 文件与 MySQL 两种驱动。
type ChatStoreConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

// EventsConfig 描述 UI 事件总线的驱动。
type EventsConfig struct {
	Driver   string         `json:"driver"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 事件总线的连接参数。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// KnowledgeConfig 指向协议术语知识库文件。
type KnowledgeConfig struct {
	Source     string `json:"source"`
	MaxResults int    `json:"max_results"`
}

// LogConfig 控制日志输出行为。
type LogConfig struct {
	Level       string   `json:"level"`
	Format      string   `json:"format"`
	OutputPaths []string `json:"output_paths"`
	AuditPath   string   `json:"audit_path"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.OpenAI.APIKeyEnv == "" {
		c.LLM.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.LLM.OpenAI.PlannerModel == "" {
		c.LLM.OpenAI.PlannerModel = "gpt-4o-mini"
	}
	if c.LLM.OpenAI.SummaryModel == "" {
		c.LLM.OpenAI.SummaryModel = c.LLM.OpenAI.PlannerModel
	}
	if c.LLM.OpenAI.TimeoutSeconds <= 0 {
		c.LLM.OpenAI.TimeoutSeconds = 60
	}

	if c.Tron.Network == "" {
		c.Tron.Network = "mainnet"
	}
	if c.Tron.NetworksYML == "" {
		c.Tron.NetworksYML = filepath.Join(baseDir, "networks.yaml")
	} else if !filepath.IsAbs(c.Tron.NetworksYML) {
		c.Tron.NetworksYML = filepath.Join(baseDir, c.Tron.NetworksYML)
	}
	if c.Tron.APIKeyEnv == "" {
		c.Tron.APIKeyEnv = "TRONGRID_API_KEY"
	}

	if c.Fetch.MaxAttempts <= 0 {
		c.Fetch.MaxAttempts = 3
	}
	if c.Fetch.BaseDelayMS <= 0 {
		c.Fetch.BaseDelayMS = 500
	}
	if c.Fetch.MarketDelayMS <= 0 {
		c.Fetch.MarketDelayMS = 1000
	}
	if c.Fetch.DefaultMarketLimit <= 0 {
		c.Fetch.DefaultMarketLimit = 6
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 30
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "slate:markets"
	}

	if c.Agent.MemoryWindow <= 0 {
		c.Agent.MemoryWindow = 10
	}
	if c.Agent.MaxToolCalls <= 0 {
		c.Agent.MaxToolCalls = 8
	}
	if c.Agent.MaxPlanRounds <= 0 {
		c.Agent.MaxPlanRounds = 1
	}

	if c.Storage.ChatStore.Driver == "" {
		c.Storage.ChatStore.Driver = "memory"
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "memory"
	}
	if c.Events.RabbitMQ.Queue == "" {
		c.Events.RabbitMQ.Queue = "slate.ui-events"
	}

	if c.Knowledge.MaxResults <= 0 {
		c.Knowledge.MaxResults = 3
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
}
