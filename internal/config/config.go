package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Provider kinds.
const (
	KindOpenAI = "openai"
	KindGemini = "gemini"
	KindOllama = "ollama"
)

type Config struct {
	Providers Providers `yaml:"providers"`
	Search    Search    `yaml:"search"`
	Fetch     Fetch     `yaml:"fetch"`
	Analysis  Analysis  `yaml:"analysis"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

// Providers are tried in order primary, secondary, tertiary for text. Images
// go to the vision provider first, then to every text provider marked vision.
type Providers struct {
	Primary   Provider `yaml:"primary"`
	Secondary Provider `yaml:"secondary"`
	Tertiary  Provider `yaml:"tertiary"`
	Vision    Provider `yaml:"vision"`
}

type Provider struct {
	Kind           string  `yaml:"kind"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	APIKey         string  `yaml:"api_key"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	APIKeysEnv     string  `yaml:"api_keys_env"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float32 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RPM            int     `yaml:"rpm"`
	Vision         bool    `yaml:"vision"`
}

type Search struct {
	APIKeyEnv      string `yaml:"api_key_env"`
	MaxResults     int    `yaml:"max_results"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Fetch struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
	TextLimit      int    `yaml:"text_limit"`
	FeedItems      int    `yaml:"feed_items"`
}

type Analysis struct {
	MaxBatch     int   `yaml:"max_batch"`
	MaxKeyPoints int   `yaml:"max_key_points"`
	Forum        Forum `yaml:"forum"`
}

type Forum struct {
	LinkRequests  int `yaml:"link_requests"`
	ImageRequests int `yaml:"image_requests"`
	LinkAnalyses  int `yaml:"link_analyses"`
	PromptUsers   int `yaml:"prompt_users"`
	PromptLinks   int `yaml:"prompt_links"`
	PromptImages  int `yaml:"prompt_images"`
}

type Output struct {
	DataDir     string `yaml:"data_dir"`
	SaveHistory bool   `yaml:"save_history"`
	Format      string `yaml:"format"`
}

type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConfigDir returns the XDG config directory for aianalyzer.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "aianalyzer")
}

// DataDir returns the XDG data directory for aianalyzer.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "aianalyzer")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/aianalyzer/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'aianalyzer init' to create a default config",
		xdgConfig,
	)
}

// LoadEnv loads a .env file into the process environment. Variables that are
// already set win. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Search: Search{APIKeyEnv: "TAVILY_API_KEY", MaxResults: 5, TimeoutSeconds: 30},
		Fetch: Fetch{
			TimeoutSeconds: 10,
			TextLimit:      2000,
			FeedItems:      10,
		},
		Analysis: Analysis{
			MaxBatch:     10,
			MaxKeyPoints: 8,
			Forum: Forum{
				LinkRequests:  3,
				ImageRequests: 2,
				LinkAnalyses:  3,
				PromptUsers:   10,
				PromptLinks:   5,
				PromptImages:  3,
			},
		},
		Output:  Output{Format: "text"},
		Server:  Server{Host: "0.0.0.0", Port: 8000},
		Logging: Logging{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for _, p := range cfg.Providers.all() {
		if err := p.validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

type namedProvider struct {
	role string
	*Provider
}

func (p namedProvider) validate() error {
	switch p.Kind {
	case "", KindOpenAI, KindGemini, KindOllama:
		return nil
	}
	return fmt.Errorf("providers.%s: unknown kind %q", p.role, p.Kind)
}

func (ps *Providers) all() []namedProvider {
	return []namedProvider{
		{"primary", &ps.Primary},
		{"secondary", &ps.Secondary},
		{"tertiary", &ps.Tertiary},
		{"vision", &ps.Vision},
	}
}

// Enabled reports whether the provider slot is filled in.
func (p Provider) Enabled() bool {
	return p.Kind != ""
}

// Keys resolves the API keys from api_key, api_key_env and the
// comma-separated api_keys_env, in that order, without duplicates.
func (p Provider) Keys() []string {
	var raw []string
	raw = append(raw, p.APIKey)
	if p.APIKeyEnv != "" {
		raw = append(raw, os.Getenv(p.APIKeyEnv))
	}
	if p.APIKeysEnv != "" {
		raw = append(raw, strings.Split(os.Getenv(p.APIKeysEnv), ",")...)
	}

	keys := []string{}
	seen := map[string]bool{}
	for _, k := range raw {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

// Configured reports whether the provider can be used. Ollama needs no key.
func (p Provider) Configured() bool {
	if !p.Enabled() {
		return false
	}
	if p.Kind == KindOllama {
		return true
	}
	return len(p.Keys()) > 0
}

// Timeout returns the request timeout, 60s when unset.
func (p Provider) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// APIKey returns the search API key from the environment.
func (s Search) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(s.APIKeyEnv))
}

// Timeout returns the search timeout.
func (s Search) Timeout() time.Duration {
	return seconds(s.TimeoutSeconds, 30)
}

// Timeout returns the page fetch timeout.
func (f Fetch) Timeout() time.Duration {
	return seconds(f.TimeoutSeconds, 10)
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// HistoryPath returns the run history database path.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.GetDataDir(), "history.db")
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ProviderStatus describes one provider slot.
type ProviderStatus struct {
	Role       string `json:"role"`
	Kind       string `json:"kind"`
	Model      string `json:"model"`
	Configured bool   `json:"configured"`
	Keys       int    `json:"keys"`
	Vision     bool   `json:"vision"`
}

// Status is the configuration summary shown by the status command and
// the /config/status endpoint. It never contains key material.
type Status struct {
	Providers   []ProviderStatus `json:"providers"`
	Search      bool             `json:"search_configured"`
	SaveHistory bool             `json:"save_history"`
	MaxBatch    int              `json:"max_batch"`
}

// Status reports which providers are usable.
func (c *Config) Status() Status {
	st := Status{
		Providers:   []ProviderStatus{},
		Search:      c.Search.APIKey() != "",
		SaveHistory: c.Output.SaveHistory,
		MaxBatch:    c.Analysis.MaxBatch,
	}
	for _, p := range c.Providers.all() {
		if !p.Enabled() {
			continue
		}
		st.Providers = append(st.Providers, ProviderStatus{
			Role:       p.role,
			Kind:       p.Kind,
			Model:      p.Model,
			Configured: p.Configured(),
			Keys:       len(p.Keys()),
			Vision:     p.role == "vision" || p.Vision,
		})
	}
	return st
}

// AnyConfigured reports whether at least one text provider is usable.
func (st Status) AnyConfigured() bool {
	for _, p := range st.Providers {
		if p.Role != "vision" && p.Configured {
			return true
		}
	}
	return false
}

func seconds(n, def int) time.Duration {
	if n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
