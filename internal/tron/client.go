package tron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// apiKeyHeader is the header TronGrid expects for authenticated access.
const apiKeyHeader = "TRON-PRO-API-KEY"

// Config describes how to construct a TRON JSON-RPC client.
type Config struct {
	Name    string
	RPCURL  string
	APIKey  string
	Notes   string
	Timeout int
}

// Client talks to the EVM compatible JSON-RPC surface TronGrid exposes for
// the TVM. Contract reads go through eth_call.
type Client struct {
	name      string
	notes     string
	rpcClient *gethrpc.Client
	mu        sync.Mutex
}

// ChainSnapshot gathers lightweight metadata from the chain.
type ChainSnapshot struct {
	ChainID     string `json:"chain_id"`
	BlockNumber string `json:"block_number"`
	Notes       string `json:"notes,omitempty"`
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置 TRON JSON-RPC 地址")
	}

	opts := []gethrpc.ClientOption{}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		opts = append(opts, gethrpc.WithHeader(apiKeyHeader, key))
	}
	rpcClient, err := gethrpc.DialOptions(ctx, rpcURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("连接 TRON 节点失败: %w", err)
	}

	return &Client{
		name:      cfg.Name,
		notes:     cfg.Notes,
		rpcClient: rpcClient,
	}, nil
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
	}
}

// Name returns the configured network name.
func (c *Client) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// CallContract performs a read-only eth_call against the given contract.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if c == nil || c.rpcClient == nil {
		return nil, errors.New("未初始化的 TRON 客户端")
	}

	args := map[string]any{
		"to":   to,
		"data": hexutil.Bytes(data),
	}
	var result hexutil.Bytes
	if err := c.rpcClient.CallContext(ctx, &result, "eth_call", args, "latest"); err != nil {
		return nil, fmt.Errorf("eth_call 失败: %w", err)
	}
	return result, nil
}

// FetchChainSnapshot reads the chain id and latest block height.
func (c *Client) FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error) {
	if c == nil || c.rpcClient == nil {
		return ChainSnapshot{}, errors.New("未初始化的 TRON 客户端")
	}

	var chainID hexutil.Big
	if err := c.rpcClient.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
		return ChainSnapshot{}, fmt.Errorf("获取链 ID 失败: %w", err)
	}
	var blockNumber hexutil.Uint64
	if err := c.rpcClient.CallContext(ctx, &blockNumber, "eth_blockNumber"); err != nil {
		return ChainSnapshot{}, fmt.Errorf("获取最新区块高度失败: %w", err)
	}
	return ChainSnapshot{
		ChainID:     chainID.String(),
		BlockNumber: blockNumber.String(),
		Notes:       c.notes,
	}, nil
}
