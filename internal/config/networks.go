package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// NetworkDefinitions models the structure of configs/networks.yaml.
type NetworkDefinitions struct {
	Networks map[string]NetworkDefinition `yaml:"networks"`
}

// NetworkDefinition describes a single TRON network endpoint definition.
type NetworkDefinition struct {
	JSONRPCURL  string `yaml:"json_rpc_url"`
	Unitroller  string `yaml:"unitroller"`
	Description string `yaml:"description"`
}

// LoadNetworkDefinitions parses the YAML file containing network metadata.
// A missing path yields the built-in defaults so that mainnet works out of
// the box.
func LoadNetworkDefinitions(path string) (NetworkDefinitions, error) {
	defs := defaultNetworkDefinitions()
	if strings.TrimSpace(path) == "" {
		return defs, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defs, nil
		}
		return NetworkDefinitions{}, fmt.Errorf("读取网络配置失败: %w", err)
	}

	var loaded NetworkDefinitions
	if err := yaml.Unmarshal(content, &loaded); err != nil {
		return NetworkDefinitions{}, fmt.Errorf("解析网络配置失败: %w", err)
	}
	for name, def := range loaded.Networks {
		base := defs.Networks[name]
		if def.JSONRPCURL != "" {
			base.JSONRPCURL = def.JSONRPCURL
		}
		if def.Unitroller != "" {
			base.Unitroller = def.Unitroller
		}
		if def.Description != "" {
			base.Description = def.Description
		}
		defs.Networks[name] = base
	}
	return defs, nil
}

// Resolve 返回指定网络的定义。nile 网络必须显式配置 unitroller 地址。
func (d NetworkDefinitions) Resolve(name string) (NetworkDefinition, error) {
	def, ok := d.Networks[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return NetworkDefinition{}, fmt.Errorf("未知的 TRON 网络: %s", name)
	}
	if strings.TrimSpace(def.JSONRPCURL) == "" {
		return NetworkDefinition{}, fmt.Errorf("网络 %s 缺少 JSON-RPC 地址", name)
	}
	if strings.TrimSpace(def.Unitroller) == "" {
		return NetworkDefinition{}, fmt.Errorf("网络 %s 缺少 unitroller 合约地址", name)
	}
	return def, nil
}

func defaultNetworkDefinitions() NetworkDefinitions {
	return NetworkDefinitions{
		Networks: map[string]NetworkDefinition{
			"mainnet": {
				JSONRPCURL:  "https://api.trongrid.io/jsonrpc",
				Unitroller:  "TGjYzgCyPobsNS9n6WcbdLVR9dH7mWqFx7",
				Description: "TRON mainnet via TronGrid",
			},
			"nile": {
				JSONRPCURL:  "https://nile.trongrid.io/jsonrpc",
				Description: "Nile testnet, unitroller must be configured explicitly",
			},
		},
	}
}
