package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
	kStrings
)

type keySpec struct {
	key   string
	typ   keyType
	env   string
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "BRIDGEA_SERVER_PORT",
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		key: "server.api_token", typ: kString, env: "BRIDGEA_API_TOKEN",
		apply: func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
	},
	{
		key: "ollama.base_url", typ: kString, env: "BRIDGEA_OLLAMA_BASE_URL",
		apply: func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "BRIDGEA_OLLAMA_CHAT_MODEL",
		apply: func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "BRIDGEA_OLLAMA_EMBED_MODEL",
		apply: func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
	},
	{
		key: "fetch.probe_timeout", typ: kDuration, env: "BRIDGEA_FETCH_PROBE_TIMEOUT",
		apply: func(cfg *Config, v any) { cfg.Fetch.ProbeTimeout = v.(time.Duration) },
	},
	{
		key: "fetch.user_agent", typ: kString, env: "BRIDGEA_FETCH_USER_AGENT",
		apply: func(cfg *Config, v any) { cfg.Fetch.UserAgent = v.(string) },
	},
	{
		key: "browser.navigation_timeout", typ: kDuration, env: "BRIDGEA_BROWSER_NAVIGATION_TIMEOUT",
		apply: func(cfg *Config, v any) { cfg.Browser.NavigationTimeout = v.(time.Duration) },
	},
	{
		key: "browser.settle_delay", typ: kDuration, env: "BRIDGEA_BROWSER_SETTLE_DELAY",
		apply: func(cfg *Config, v any) { cfg.Browser.SettleDelay = v.(time.Duration) },
	},
	{
		key: "enrich.title_weight", typ: kInt, env: "BRIDGEA_ENRICH_TITLE_WEIGHT",
		apply: func(cfg *Config, v any) { cfg.Enrich.TitleWeight = v.(int) },
	},
	{
		key: "enrich.desc_weight", typ: kInt, env: "BRIDGEA_ENRICH_DESC_WEIGHT",
		apply: func(cfg *Config, v any) { cfg.Enrich.DescWeight = v.(int) },
	},
	{
		key: "enrich.word_bonus", typ: kInt, env: "BRIDGEA_ENRICH_WORD_BONUS",
		apply: func(cfg *Config, v any) { cfg.Enrich.WordBonus = v.(int) },
	},
	{
		key: "enrich.generic_penalty", typ: kInt, env: "BRIDGEA_ENRICH_GENERIC_PENALTY",
		apply: func(cfg *Config, v any) { cfg.Enrich.GenericPenalty = v.(int) },
	},
	{
		key: "enrich.max_tags", typ: kInt, env: "BRIDGEA_ENRICH_MAX_TAGS",
		apply: func(cfg *Config, v any) { cfg.Enrich.MaxTags = v.(int) },
	},
	{
		key: "enrich.generic_tags", typ: kStrings, env: "BRIDGEA_ENRICH_GENERIC_TAGS",
		apply: func(cfg *Config, v any) { cfg.Enrich.GenericTags = v.([]string) },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "BRIDGEA_RETRIEVAL_TOP_K",
		apply: func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
	},
	{
		key: "cache.redis_addr", typ: kString, env: "BRIDGEA_CACHE_REDIS_ADDR",
		apply: func(cfg *Config, v any) { cfg.Cache.RedisAddr = v.(string) },
	},
	{
		key: "cache.ttl", typ: kDuration, env: "BRIDGEA_CACHE_TTL",
		apply: func(cfg *Config, v any) { cfg.Cache.TTL = v.(time.Duration) },
	},
	{
		key: "storage.data_dir", typ: kString, env: "BRIDGEA_STORAGE_DATA_DIR",
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		key: "log.level", typ: kString, env: "BRIDGEA_LOG_LEVEL",
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		switch s.typ {
		case kString, kDuration, kStrings:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				applyString(cfg, s, v, "config key")
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
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
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		default:
			applyString(cfg, s, raw, "env var "+s.env)
		}
	}
}

func applyString(cfg *Config, s keySpec, raw, origin string) {
	switch s.typ {
	case kString:
		s.apply(cfg, raw)
	case kDuration:
		if d, err := time.ParseDuration(raw); err == nil {
			s.apply(cfg, d)
		} else {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from %s %s=%q: %v. Using default value.\n", origin, s.key, raw, err)
		}
	case kStrings:
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
		s.apply(cfg, out)
	}
}
