package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Server    ServerConfig
	Ollama    OllamaConfig
	Fetch     FetchConfig
	Browser   BrowserConfig
	Enrich    EnrichConfig
	Retrieval RetrievalConfig
	Cache     CacheConfig
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type FetchConfig struct {
	ProbeTimeout time.Duration
	UserAgent    string
}

type BrowserConfig struct {
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
}

// EnrichConfig holds the tag-ranking weights. They reproduce the historical
// heuristic by default but are configuration rather than constants, so the
// formula can be tuned without a rebuild.
type EnrichConfig struct {
	TitleWeight    int
	DescWeight     int
	WordBonus      int
	GenericPenalty int
	MaxTags        int
	GenericTags    []string
}

type RetrievalConfig struct {
	TopK int
}

type CacheConfig struct {
	RedisAddr string
	TTL       time.Duration
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "bridgea-data"
		}
	}
	return filepath.Join(dir, "bridgea")
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "phi3.5",
			EmbedModel: "nomic-embed-text",
		},
		Fetch: FetchConfig{
			ProbeTimeout: 5 * time.Second,
			UserAgent:    "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		},
		Browser: BrowserConfig{
			NavigationTimeout: 25 * time.Second,
			SettleDelay:       time.Second,
		},
		Enrich: EnrichConfig{
			TitleWeight:    3,
			DescWeight:     2,
			WordBonus:      1,
			GenericPenalty: 1,
			MaxTags:        5,
			GenericTags:    []string{"design", "brand", "logo", "art", "web", "tech"},
		},
		Retrieval: RetrievalConfig{
			TopK: 20,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file (if present) and applies
// BRIDGEA_* environment variable overrides on top of the defaults.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
