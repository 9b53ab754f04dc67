// Package config provides centralized configuration management for the Slate
// runtime. It loads the JSON application config with sane defaults and the
// YAML network definitions describing TRON endpoints and protocol contracts.
package config
