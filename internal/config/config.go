package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	neturl "net/url"
	"os"
	"strings"
	"time"

	"github.com/ga-insights/core/internal/modules/ai"
	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime configuration for every command.
type AppConfig struct {
	Port           int
	Env            string // "development" | "production"
	Timezone       string
	AllowedOrigins []string
	Paths          RuntimePathsConfig
	Analytics      AnalyticsConfig
	AI             AIConfig
	Redis          RedisConfig
	Proxy          ProxyConfig
	RateLimit      RateLimitConfig

	location *time.Location
}

type AnalyticsConfig struct {
	PropertyID      string
	CredentialsFile string
	CredentialsJSON string
	Timeout         time.Duration
}

type AIConfig struct {
	Provider string
	APIKey   string
	Endpoint string
	Model    string
	// InterpretModel and SynthModel override Model per stage.
	InterpretModel string
	SynthModel     string
	Timeout        time.Duration
}

type RedisConfig struct {
	URL string
}

type ProxyConfig struct {
	Port       int
	BackendURL string
	APIKey     string
	CacheTTL   time.Duration
	Timeout    time.Duration
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type RuntimePathsConfig struct {
	Logs string
}

type rawAppConfig struct {
	Port               int                `yaml:"port"`
	Env                string             `yaml:"env"`
	NodeEnv            string             `yaml:"node_env"`
	Timezone           string             `yaml:"timezone"`
	TimeZone           string             `yaml:"time_zone"`
	AllowedOrigins     []string           `yaml:"allowed_origins"`
	CORSAllowedOrigins []string           `yaml:"cors_allowed_origins"`
	Paths              rawPathsConfig     `yaml:"paths"`
	LogDir             string             `yaml:"log_dir"`
	LogsDir            string             `yaml:"logs_dir"`
	Analytics          rawAnalyticsConfig `yaml:"analytics"`
	AI                 rawAIConfig        `yaml:"ai"`
	Redis              rawRedisConfig     `yaml:"redis"`
	RedisURL           string             `yaml:"redis_url"`
	Proxy              rawProxyConfig     `yaml:"proxy"`
	RateLimit          rawRateLimitConfig `yaml:"rate_limit"`
}

type rawPathsConfig struct {
	Logs string `yaml:"logs"`
}

type rawAnalyticsConfig struct {
	PropertyID      string `yaml:"property_id"`
	Property        string `yaml:"property"`
	CredentialsFile string `yaml:"credentials_file"`
	CredentialsJSON string `yaml:"credentials_json"`
	Timeout         string `yaml:"timeout"`
}

type rawAIConfig struct {
	Provider       string `yaml:"provider"`
	Type           string `yaml:"type"`
	APIKey         string `yaml:"api_key"`
	Endpoint       string `yaml:"endpoint"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	InterpretModel string `yaml:"interpret_model"`
	SynthModel     string `yaml:"synth_model"`
	Timeout        string `yaml:"timeout"`
}

type rawRedisConfig struct {
	URL string `yaml:"url"`
}

type rawProxyConfig struct {
	Port       int    `yaml:"port"`
	BackendURL string `yaml:"backend_url"`
	APIKey     string `yaml:"api_key"`
	CacheTTL   string `yaml:"cache_ttl"`
	Timeout    string `yaml:"timeout"`
}

type rawRateLimitConfig struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// Load reads the env files, the YAML config and the environment overrides, in that order.
func Load(configPath string) (*AppConfig, error) {
	loadEnvFiles(EnvFiles...)
	return load(configPath, os.LookupEnv)
}

func load(configPath string, lookup func(string) (string, bool)) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		raw := rawAppConfig{}
		if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
		if err := applyRawAppConfig(&cfg, raw); err != nil {
			return nil, fmt.Errorf("config file %q: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w in %q", err, path)
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Analytics: AnalyticsConfig{
			Timeout: defaultAnalyticsTimeout,
		},
		AI: AIConfig{
			Provider: ai.TypeOpenAI,
			Timeout:  defaultAITimeout,
		},
		Proxy: ProxyConfig{
			Port:     defaultProxyPort,
			CacheTTL: defaultCacheTTL,
			Timeout:  defaultProxyTimeout,
		},
		RateLimit: RateLimitConfig{
			RPS:   defaultRateLimitRPS,
			Burst: defaultRateLimitBurst,
		},
	}
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) error {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	cfg.Env = firstNonEmpty(raw.NodeEnv, raw.Env, cfg.Env)
	cfg.Timezone = firstNonEmpty(raw.TimeZone, raw.Timezone, cfg.Timezone)
	if origins := append(normalizeOrigins(raw.AllowedOrigins), normalizeOrigins(raw.CORSAllowedOrigins)...); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}
	cfg.Paths.Logs = firstNonEmpty(raw.LogsDir, raw.LogDir, raw.Paths.Logs, cfg.Paths.Logs)

	a := raw.Analytics
	cfg.Analytics.PropertyID = firstNonEmpty(a.PropertyID, a.Property, cfg.Analytics.PropertyID)
	cfg.Analytics.CredentialsFile = firstNonEmpty(a.CredentialsFile, cfg.Analytics.CredentialsFile)
	cfg.Analytics.CredentialsJSON = firstNonEmpty(a.CredentialsJSON, cfg.Analytics.CredentialsJSON)
	if err := setDuration(&cfg.Analytics.Timeout, a.Timeout, "analytics.timeout"); err != nil {
		return err
	}

	m := raw.AI
	cfg.AI.Provider = firstNonEmpty(m.Provider, m.Type, cfg.AI.Provider)
	cfg.AI.APIKey = firstNonEmpty(m.APIKey, cfg.AI.APIKey)
	cfg.AI.Endpoint = firstNonEmpty(m.Endpoint, m.BaseURL, cfg.AI.Endpoint)
	cfg.AI.Model = firstNonEmpty(m.Model, cfg.AI.Model)
	cfg.AI.InterpretModel = firstNonEmpty(m.InterpretModel, cfg.AI.InterpretModel)
	cfg.AI.SynthModel = firstNonEmpty(m.SynthModel, cfg.AI.SynthModel)
	if err := setDuration(&cfg.AI.Timeout, m.Timeout, "ai.timeout"); err != nil {
		return err
	}

	cfg.Redis.URL = firstNonEmpty(raw.Redis.URL, raw.RedisURL, cfg.Redis.URL)

	p := raw.Proxy
	if p.Port != 0 {
		cfg.Proxy.Port = p.Port
	}
	cfg.Proxy.BackendURL = firstNonEmpty(p.BackendURL, cfg.Proxy.BackendURL)
	cfg.Proxy.APIKey = firstNonEmpty(p.APIKey, cfg.Proxy.APIKey)
	if err := setDuration(&cfg.Proxy.CacheTTL, p.CacheTTL, "proxy.cache_ttl"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Proxy.Timeout, p.Timeout, "proxy.timeout"); err != nil {
		return err
	}

	if raw.RateLimit.RPS != nil {
		cfg.RateLimit.RPS = *raw.RateLimit.RPS
	}
	if raw.RateLimit.Burst != nil {
		cfg.RateLimit.Burst = *raw.RateLimit.Burst
	}
	return nil
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Proxy.Port < 1 || c.Proxy.Port > 65535 {
		return fmt.Errorf("invalid proxy.port %d, expected 1-65535", c.Proxy.Port)
	}
	if c.RateLimit.RPS <= 0 {
		return fmt.Errorf("invalid rate_limit.rps %v, expected > 0", c.RateLimit.RPS)
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("invalid rate_limit.burst %d, expected >= 1", c.RateLimit.Burst)
	}
	loc, err := ParseTimezone(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.location = loc
	c.Env = normalizeEnv(c.Env)
	c.AI.Provider = ai.NormalizeType(c.AI.Provider)
	return nil
}

// ValidateServe fails fast when the orchestrator API cannot answer a single question.
func (c *AppConfig) ValidateServe() error {
	if strings.TrimSpace(c.Analytics.PropertyID) == "" {
		return errors.New("analytics.property_id (GA_PROPERTY_ID) is required")
	}
	if strings.TrimSpace(c.Analytics.CredentialsFile) == "" && strings.TrimSpace(c.Analytics.CredentialsJSON) == "" {
		return errors.New("analytics.credentials_file (GOOGLE_APPLICATION_CREDENTIALS) or analytics.credentials_json (GA_CREDENTIALS_JSON) is required")
	}
	if strings.TrimSpace(c.AI.APIKey) == "" {
		keyless := ai.NormalizeType(c.AI.Provider) == ai.TypeOpenAICompatible && strings.TrimSpace(c.AI.Endpoint) != ""
		if !keyless {
			return errors.New("ai.api_key (AI_API_KEY or OPENAI_API_KEY) is required")
		}
	}
	return nil
}

// ValidateProxy fails fast when the edge proxy has nowhere to forward to.
func (c *AppConfig) ValidateProxy() error {
	raw := strings.TrimSpace(c.Proxy.BackendURL)
	if raw == "" {
		return errors.New("proxy.backend_url (BACKEND_URL) is required")
	}
	u, err := neturl.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid proxy.backend_url %q, expected an absolute http(s) url", raw)
	}
	return nil
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, "development")
}

// Location is the resolved timezone, process local when none is configured.
func (c *AppConfig) Location() *time.Location {
	if c == nil || c.location == nil {
		return time.Local
	}
	return c.location
}

func (c *AppConfig) LogDir() string {
	if c == nil {
		return ""
	}
	return ResolveRuntimePath(c.Paths.Logs)
}

// ProviderConfig builds the provider config for one stage; model overrides Model when set.
func (c AIConfig) ProviderConfig(model string) ai.Config {
	return ai.Config{
		Type:     c.Provider,
		APIKey:   c.APIKey,
		Endpoint: c.Endpoint,
		Model:    firstNonEmpty(model, c.Model),
		Timeout:  c.Timeout,
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	trimmed := strings.ToLower(strings.TrimSpace(env))
	switch trimmed {
	case "":
		return defaultEnv
	case "dev":
		return "development"
	case "prod":
		return "production"
	}
	return trimmed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
