package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slate.json")
	if err := os.WriteFile(path, []byte(`{"server": {"address": ":9999"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Address != ":9999" {
		t.Fatalf("explicit value lost: %s", cfg.Server.Address)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.OpenAI.APIKeyEnv != "OPENAI_API_KEY" {
		t.Fatalf("llm defaults not applied: %+v", cfg.LLM)
	}
	if cfg.Tron.Network != "mainnet" {
		t.Fatalf("tron defaults not applied: %+v", cfg.Tron)
	}
	if cfg.Fetch.MaxAttempts != 3 || cfg.Fetch.BaseDelay() != 500*time.Millisecond {
		t.Fatalf("fetch defaults not applied: %+v", cfg.Fetch)
	}
	if cfg.Fetch.MarketDelay() != time.Second || cfg.Fetch.DefaultMarketLimit != 6 {
		t.Fatalf("fetch defaults not applied: %+v", cfg.Fetch)
	}
	if cfg.Cache.Driver != "memory" || cfg.Cache.TTL() != 30*time.Second {
		t.Fatalf("cache defaults not applied: %+v", cfg.Cache)
	}
	if cfg.Agent.MaxToolCalls != 8 || cfg.Agent.MaxPlanRounds != 1 || cfg.Agent.MemoryWindow != 10 {
		t.Fatalf("agent defaults not applied: %+v", cfg.Agent)
	}
	if cfg.Runtime.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("data dir not anchored to config dir: %s", cfg.Runtime.DataDir)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestNetworkDefinitionsResolve(t *testing.T) {
	defs, err := LoadNetworkDefinitions("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}

	mainnet, err := defs.Resolve("mainnet")
	if err != nil {
		t.Fatalf("resolve mainnet: %v", err)
	}
	if mainnet.JSONRPCURL != "https://api.trongrid.io/jsonrpc" {
		t.Fatalf("unexpected mainnet rpc: %s", mainnet.JSONRPCURL)
	}
	if mainnet.Unitroller == "" {
		t.Fatalf("mainnet must ship a unitroller address")
	}

	if _, err := defs.Resolve("nile"); err == nil {
		t.Fatalf("nile without explicit unitroller must fail")
	}
	if _, err := defs.Resolve("unknown-net"); err == nil {
		t.Fatalf("unknown network must fail")
	}
}

func TestLoadNetworkDefinitionsMergesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "networks.yaml")
	content := []byte("networks:\n  nile:\n    unitroller: TNileUnitrollerXXXXXXXXXXXXXXXXXXX\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write networks: %v", err)
	}

	defs, err := LoadNetworkDefinitions(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	nile, err := defs.Resolve("nile")
	if err != nil {
		t.Fatalf("resolve nile: %v", err)
	}
	if nile.JSONRPCURL != "https://nile.trongrid.io/jsonrpc" {
		t.Fatalf("default rpc url lost in merge: %s", nile.JSONRPCURL)
	}
	if nile.Unitroller != "TNileUnitrollerXXXXXXXXXXXXXXXXXXX" {
		t.Fatalf("override not applied: %s", nile.Unitroller)
	}
}
