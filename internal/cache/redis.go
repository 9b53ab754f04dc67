package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"Slate-Tron/internal/justlend"
	"Slate-Tron/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisCacheConfig 描述 Redis 缓存驱动的连接参数。
type RedisCacheConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisCache 将市场列表以 JSON 形式写入 Redis，键按请求条数区分，
// 依赖 SET EX 让条目自动过期。
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache 创建 Redis 缓存实例。
func NewRedisCache(cfg RedisCacheConfig) (*RedisCache, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "slate:markets"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}, nil
}

func (c *RedisCache) key(limit int) string {
	return c.prefix + ":" + strconv.Itoa(limit)
}

// Get 只做精确键查询，超集匹配留给内存驱动。
func (c *RedisCache) Get(ctx context.Context, limit int) (*justlend.MarketList, bool) {
	raw, err := c.client.Get(ctx, c.key(limit)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Named("cache").Warn("Redis 读取失败", "error", err)
		}
		return nil, false
	}
	var list justlend.MarketList
	if err := json.Unmarshal(raw, &list); err != nil {
		logger.Named("cache").Warn("Redis 缓存内容损坏", "error", err)
		return nil, false
	}
	return &list, true
}

// Put 以 SET EX 写入，过期由 Redis 负责。
func (c *RedisCache) Put(ctx context.Context, limit int, list *justlend.MarketList) {
	if list == nil || limit <= 0 {
		return
	}
	raw, err := json.Marshal(list)
	if err != nil {
		logger.Named("cache").Warn("序列化缓存内容失败", "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(limit), raw, c.ttl).Err(); err != nil {
		logger.Named("cache").Warn("Redis 写入失败", "error", err)
	}
}

// Close 关闭 Redis 连接。
func (c *RedisCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

var _ MarketsCache = (*RedisCache)(nil)
