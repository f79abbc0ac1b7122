package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

const (
	StoragePostgres  = "postgres"
	StorageFirestore = "firestore"
	StorageMemory    = "memory"
	StorageNone      = "none"

	CompletionProxy  = "proxy"
	CompletionOpenAI = "openai"
	CompletionVertex = "vertex"
	CompletionMock   = "mock"

	DefaultOpenAIModel = "huggingfaceh4/zephyr-7b-beta"
	DefaultVertexModel = "gemini-2.5-flash"

	// CacheInMemory as cache.path keeps the local blob in process memory.
	CacheInMemory = ":memory:"
)

type Config struct {
	Mode     Mode
	Port     string
	LogLevel string

	Storage    Storage
	Cache      Cache
	Completion Completion
}

type Storage struct {
	Backend      string // "postgres", "firestore", "memory" or "none"
	DSN          string
	GCPProjectID string
}

type Cache struct {
	Path string
}

type Completion struct {
	Backend      string // "proxy", "openai", "vertex" or "mock"
	ProxyURL     string
	APIKey       string
	BaseURL      string
	Model        string
	GCPProjectID string
	GCPLocation  string
	HistoryLimit int
	Timeout      time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(ModeLocal))
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")

	v.SetDefault("storage.backend", "")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.gcp_project", "")

	v.SetDefault("cache.path", "lawless.db")

	v.SetDefault("completion.backend", "")
	v.SetDefault("completion.proxy_url", "http://localhost:8080/api/generate")
	v.SetDefault("completion.api_key", "")
	v.SetDefault("completion.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("completion.model", "")
	v.SetDefault("completion.gcp_project", "")
	v.SetDefault("completion.gcp_location", "us-central1")
	v.SetDefault("completion.history_limit", 10)
	v.SetDefault("completion.timeout", 120*time.Second)
}

// New returns a viper instance with defaults and LAWLESS_ env bindings.
// A lawless.yaml in the working directory or ./config is read when present.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("lawless")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("config")

	v.SetEnvPrefix("LAWLESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by the original deployment.
	_ = v.BindEnv("completion.api_key", "LAWLESS_COMPLETION_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("port", "LAWLESS_PORT", "PORT")

	return v
}

// Load reads the optional config file and builds the config.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "reading config file")
		}
	}
	return Parse(v)
}

// Parse builds and validates the config from an already populated viper.
func Parse(v *viper.Viper) (*Config, error) {
	var mode Mode
	switch strings.ToLower(v.GetString("mode")) {
	case "remote", "gcp":
		mode = ModeRemote
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode:     mode,
		Port:     v.GetString("port"),
		LogLevel: v.GetString("log_level"),

		Storage: Storage{
			Backend:      strings.ToLower(v.GetString("storage.backend")),
			DSN:          v.GetString("storage.dsn"),
			GCPProjectID: v.GetString("storage.gcp_project"),
		},
		Cache: Cache{
			Path: v.GetString("cache.path"),
		},
		Completion: Completion{
			Backend:      strings.ToLower(v.GetString("completion.backend")),
			ProxyURL:     v.GetString("completion.proxy_url"),
			APIKey:       v.GetString("completion.api_key"),
			BaseURL:      v.GetString("completion.base_url"),
			Model:        v.GetString("completion.model"),
			GCPProjectID: v.GetString("completion.gcp_project"),
			GCPLocation:  v.GetString("completion.gcp_location"),
			HistoryLimit: v.GetInt("completion.history_limit"),
			Timeout:      v.GetDuration("completion.timeout"),
		},
	}

	// Local mode runs without any external service unless told otherwise.
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageMemory
		if mode == ModeRemote {
			cfg.Storage.Backend = StoragePostgres
		}
	}
	if cfg.Completion.Backend == "" {
		cfg.Completion.Backend = CompletionMock
		if mode == ModeRemote {
			cfg.Completion.Backend = CompletionOpenAI
		}
	}

	if cfg.Completion.Model == "" {
		cfg.Completion.Model = DefaultOpenAIModel
		if cfg.Completion.Backend == CompletionVertex {
			cfg.Completion.Model = DefaultVertexModel
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn must be set for the postgres backend")
		}
	case StorageFirestore:
		if c.Storage.GCPProjectID == "" {
			return errors.New("storage.gcp_project must be set for the firestore backend")
		}
	case StorageMemory, StorageNone:
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Completion.Backend {
	case CompletionProxy:
		if c.Completion.ProxyURL == "" {
			return errors.New("completion.proxy_url must be set for the proxy backend")
		}
	case CompletionOpenAI:
		if c.Completion.APIKey == "" {
			return errors.New("completion.api_key (or OPENROUTER_API_KEY) must be set for the openai backend")
		}
	case CompletionVertex:
		if c.Completion.GCPProjectID == "" || c.Completion.GCPLocation == "" {
			return errors.New("completion.gcp_project and completion.gcp_location must be set for the vertex backend")
		}
	case CompletionMock:
	default:
		return errors.Errorf("unknown completion backend %q", c.Completion.Backend)
	}

	if c.Completion.HistoryLimit <= 0 {
		c.Completion.HistoryLimit = 10
	}
	if c.Cache.Path == "" {
		return errors.New("cache.path must be set")
	}
	return nil
}
