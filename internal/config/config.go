package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend selects the session store implementation.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Duration reads and writes time.ParseDuration strings, so config files say
// "120s" rather than nanosecond integers. Bare integers are still accepted
// as nanoseconds for records written by older versions.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		return d.UnmarshalText([]byte(s))
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type LLM struct {
	BaseURL string   `json:"base_url" env:"AGENCY_LLM_BASE_URL"`
	Model   string   `json:"model" env:"AGENCY_LLM_MODEL"`
	APIKey  string   `json:"-" env:"AGENCY_LLM_API_KEY"`
	Timeout Duration `json:"timeout" env:"AGENCY_LLM_TIMEOUT"`
}

type Retry struct {
	MaxAttempts int      `json:"max_attempts" env:"AGENCY_RETRY_MAX_ATTEMPTS"`
	Backoff     Duration `json:"backoff" env:"AGENCY_RETRY_BACKOFF"`
}

type Config struct {
	ListenAddr       string `json:"listen_addr" env:"AGENCY_LISTEN_ADDR"`
	DataDir          string `json:"data_dir" env:"AGENCY_DATA_DIR"`
	Backend          string `json:"backend" env:"AGENCY_BACKEND"`
	AuthToken        string `json:"auth_token" env:"AGENCY_AUTH_TOKEN"`
	MaxRegenerations int    `json:"max_regenerations" env:"AGENCY_MAX_REGENERATIONS"`
	LLM              LLM    `json:"llm"`
	Retry            Retry  `json:"retry"`
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:       "127.0.0.1:8787",
		DataDir:          "~/.agency",
		Backend:          BackendFile,
		AuthToken:        "",
		MaxRegenerations: 3,
		LLM: LLM{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: Duration(120 * time.Second),
		},
		Retry: Retry{
			MaxAttempts: 3,
			Backoff:     Duration(500 * time.Millisecond),
		},
	}
}

func ExpandHome(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func LoadFromFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load resolves configuration in increasing precedence: defaults, the config
// file (when path is non-empty or the default file exists), then environment
// variables.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	switch {
	case path != "":
		loaded, err := LoadFromFile(ExpandHome(path))
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	default:
		candidate := filepath.Join(ExpandHome(cfg.DataDir), "config.json")
		if loaded, err := LoadFromFile(candidate); err == nil {
			cfg = loaded
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DataDir = ExpandHome(cfg.DataDir)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Backend != BackendFile && c.Backend != BackendSQLite {
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.MaxRegenerations < 0 {
		return errors.New("max_regenerations must be >= 0")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be >= 1")
	}
	return nil
}
