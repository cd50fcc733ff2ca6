package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key   string
	typ   keyType
	env   string
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "PERSONA_SERVER_PORT",
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "PERSONA_SERVER_MCP_PORT",
		apply: func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
	},
	{
		key: "storage.backend", typ: kString, env: "PERSONA_STORAGE_BACKEND",
		apply: func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PERSONA_STORAGE_DATA_DIR",
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		key: "openai.api_key", typ: kString, env: "PERSONA_OPENAI_API_KEY",
		apply: func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
	},
	{
		key: "openai.base_url", typ: kString, env: "PERSONA_OPENAI_BASE_URL",
		apply: func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
	},
	{
		key: "openai.model", typ: kString, env: "PERSONA_OPENAI_MODEL",
		apply: func(cfg *Config, v any) { cfg.OpenAI.Model = v.(string) },
	},
	{
		key: "traits.timeout", typ: kString, env: "PERSONA_TRAITS_TIMEOUT",
		apply: func(cfg *Config, v any) { cfg.Traits.Timeout = v.(string) },
	},
	{
		key: "traits.disabled", typ: kBool, env: "PERSONA_TRAITS_DISABLED",
		apply: func(cfg *Config, v any) { cfg.Traits.Disabled = v.(bool) },
	},
	{
		key: "refresh.interval", typ: kString, env: "PERSONA_REFRESH_INTERVAL",
		apply: func(cfg *Config, v any) { cfg.Refresh.Interval = v.(string) },
	},
	{
		key: "log.level", typ: kString, env: "PERSONA_LOG_LEVEL",
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
