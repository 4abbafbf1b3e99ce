package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
// Secrets may be supplied in the file but environment variables always
// take precedence over file values.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode string `yaml:"mode"` // PAPER, MOCK, or LIVE
	} `yaml:"trading"`

	API struct {
		Deribit struct {
			RestURL   string `yaml:"rest_url"`
			WSURL     string `yaml:"ws_url"`
			AccessKey string `yaml:"access_key"`
			SecretKey string `yaml:"secret_key"`
		} `yaml:"deribit"`
	} `yaml:"api"`

	Storage struct {
		DBPath        string `yaml:"db_path"`
		QueueCapacity int    `yaml:"queue_capacity"`
	} `yaml:"storage"`

	Orders struct {
		IDScheme              string `yaml:"id_scheme"`               // counter or uuid
		RejectTerminalUpdates bool   `yaml:"reject_terminal_updates"` // refuse FILLED -> OPEN etc.
	} `yaml:"orders"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, applies environment
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.API.Deribit.SecretKey != "" {
		fmt.Println("⚠️  SECURITY WARNING: API secret found in config file.")
		fmt.Println("   Recommendation: use DERIBIT_KEY / DERIBIT_SECRET environment variables instead.")
	}

	applySecrets(&cfg)
	overrideWithEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	mode := strings.ToUpper(c.Trading.Mode)
	switch mode {
	case "PAPER", "MOCK", "LIVE":
	default:
		return fmt.Errorf("unknown trading mode: %s", c.Trading.Mode)
	}

	if !strings.HasPrefix(c.API.Deribit.RestURL, "http://") && !strings.HasPrefix(c.API.Deribit.RestURL, "https://") {
		return fmt.Errorf("invalid Deribit REST URL: %s", c.API.Deribit.RestURL)
	}

	if mode == "LIVE" && (c.API.Deribit.AccessKey == "" || c.API.Deribit.SecretKey == "") {
		return fmt.Errorf("live trading requires DERIBIT_KEY and DERIBIT_SECRET")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage db_path is required")
	}

	switch c.Orders.IDScheme {
	case "", "counter", "uuid":
	default:
		return fmt.Errorf("unknown order id scheme: %s", c.Orders.IDScheme)
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Trading.Mode == "" {
		cfg.Trading.Mode = "PAPER"
	}
	if cfg.API.Deribit.RestURL == "" {
		cfg.API.Deribit.RestURL = "https://test.deribit.com"
	}
	if cfg.API.Deribit.WSURL == "" {
		cfg.API.Deribit.WSURL = "wss://test.deribit.com/ws/api/v2"
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = "./pulseexec.db"
	}
}

// applySecrets merges credentials from secrets/deribit.yaml when the
// file exists. Missing secrets file is fine; most deployments use
// environment variables instead.
func applySecrets(cfg *Config) {
	secret, err := LoadSecretConfig("secrets/deribit.yaml")
	if err != nil {
		return
	}
	if secret.API.Deribit.AccessKey != "" {
		cfg.API.Deribit.AccessKey = secret.API.Deribit.AccessKey
	}
	if secret.API.Deribit.SecretKey != "" {
		cfg.API.Deribit.SecretKey = secret.API.Deribit.SecretKey
	}
}

// overrideWithEnv applies environment variables over file values.
// Secrets belong in the environment, not in the config file.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("DERIBIT_KEY"); key != "" {
		cfg.API.Deribit.AccessKey = key
	}
	if secret := os.Getenv("DERIBIT_SECRET"); secret != "" {
		cfg.API.Deribit.SecretKey = secret
	}
	if url := os.Getenv("DERIBIT_REST_URL"); url != "" {
		cfg.API.Deribit.RestURL = url
	}
	if url := os.Getenv("DERIBIT_WS_URL"); url != "" {
		cfg.API.Deribit.WSURL = url
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.Storage.DBPath = path
	}
}
