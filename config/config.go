package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for brieflab
type Config struct {
	General   GeneralConfig          `mapstructure:"general"`
	Server    ServerConfig           `mapstructure:"server"`
	LLM       LLMConfig              `mapstructure:"llm"`
	Agents    map[string]AgentConfig `mapstructure:"agents"`
	Pipeline  PipelineConfig         `mapstructure:"pipeline"`
	Images    ImagesConfig           `mapstructure:"images"`
	Scraper   ScraperConfig          `mapstructure:"scraper"`
	Report    ReportConfig           `mapstructure:"report"`
	Storage   StorageConfig          `mapstructure:"storage"`
	Telemetry TelemetryConfig        `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	LogMode  string `mapstructure:"log_mode"` // dev or prod
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address           string        `mapstructure:"address"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs"`
	StatusStore       string        `mapstructure:"status_store"` // memory or redis
	StatusTTL         time.Duration `mapstructure:"status_ttl"`
	UploadLimitMB     int           `mapstructure:"upload_limit_mb"`
}

func (s ServerConfig) Normalize() ServerConfig {
	if strings.TrimSpace(s.Address) == "" {
		s.Address = ":10001"
	}
	if s.MaxConcurrentRuns <= 0 {
		s.MaxConcurrentRuns = 4
	}
	s.StatusStore = strings.ToLower(strings.TrimSpace(s.StatusStore))
	if s.StatusStore == "" {
		s.StatusStore = "memory"
	}
	if s.StatusTTL <= 0 {
		s.StatusTTL = 24 * time.Hour
	}
	if s.UploadLimitMB <= 0 {
		s.UploadLimitMB = 25
	}
	return s
}

func (s ServerConfig) Validate() error {
	switch s.StatusStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("server.status_store must be memory or redis, got %q", s.StatusStore)
	}
	return nil
}

// LLMConfig contains the chat-completions endpoint settings
type LLMConfig struct {
	BaseURL          string            `mapstructure:"base_url"`
	APIKey           string            `mapstructure:"api_key"`
	Timeout          time.Duration     `mapstructure:"timeout"`
	MaxAttempts      int               `mapstructure:"max_attempts"`
	BackoffBase      time.Duration     `mapstructure:"backoff_base"`
	MaxConnsPerHost  int               `mapstructure:"max_conns_per_host"`
	VeniceParameters bool              `mapstructure:"venice_parameters"`
	DefaultModel     string            `mapstructure:"default_model"`
	Models           map[string]string `mapstructure:"models"` // alias -> api model name
}

func (l LLMConfig) Normalize() LLMConfig {
	if l.APIKey == "" {
		l.APIKey = os.Getenv("VENICE_API_KEY")
	}
	if l.MaxAttempts <= 0 {
		l.MaxAttempts = 3
	}
	if l.MaxConnsPerHost <= 0 {
		l.MaxConnsPerHost = 16
	}
	if l.DefaultModel == "" {
		l.DefaultModel = "fast"
	}
	return l
}

func (l LLMConfig) Validate() error {
	if l.Timeout < 0 {
		return errors.New("llm.timeout cannot be negative")
	}
	if l.MaxAttempts > 10 {
		return fmt.Errorf("llm.max_attempts too large: %d", l.MaxAttempts)
	}
	return nil
}

// AgentConfig fixes the model call parameters of one pipeline stage
type AgentConfig struct {
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	InputBudget int     `mapstructure:"input_budget"`
}

// PipelineConfig contains orchestration settings shared by all runs
type PipelineConfig struct {
	MaxChapters    int  `mapstructure:"max_chapters"`
	GenerateImages bool `mapstructure:"generate_images"`
}

// ImagesConfig contains the image generation endpoint settings
type ImagesConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	APIStyle string        `mapstructure:"api_style"` // venice or openai
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Width    int           `mapstructure:"width"`
	Height   int           `mapstructure:"height"`
	Style    string        `mapstructure:"style"`
	SafeMode bool          `mapstructure:"safe_mode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (i ImagesConfig) Validate() error {
	switch i.APIStyle {
	case "venice", "openai":
		return nil
	default:
		return fmt.Errorf("images.api_style must be venice or openai, got %q", i.APIStyle)
	}
}

// ScraperConfig contains content extraction settings
type ScraperConfig struct {
	Fetcher          string        `mapstructure:"fetcher"` // http or chromedp
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxContentLength int           `mapstructure:"max_content_length"`
	UserAgent        string        `mapstructure:"user_agent"`
}

func (s ScraperConfig) Validate() error {
	switch s.Fetcher {
	case "http", "chromedp":
	default:
		return fmt.Errorf("scraper.fetcher must be http or chromedp, got %q", s.Fetcher)
	}
	if s.MaxContentLength <= 0 {
		return errors.New("scraper.max_content_length must be > 0")
	}
	return nil
}

// ReportConfig contains report output settings
type ReportConfig struct {
	OutputDir  string        `mapstructure:"output_dir"`
	PDF        bool          `mapstructure:"pdf"`
	PDFTimeout time.Duration `mapstructure:"pdf_timeout"`
}

// StorageConfig selects and configures the report archive
type StorageConfig struct {
	Archive     string         `mapstructure:"archive"` // memory, redis or postgres
	AutoMigrate bool           `mapstructure:"auto_migrate"`
	IndexPath   string         `mapstructure:"index_path"` // bleve index directory; empty keeps it in memory
	Redis       RedisConfig    `mapstructure:"redis"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
}

func (s StorageConfig) Validate(statusStore string) error {
	switch s.Archive {
	case "memory":
	case "redis":
		if err := s.Redis.Validate(); err != nil {
			return err
		}
	case "postgres":
		if err := s.Postgres.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.archive must be memory, redis or postgres, got %q", s.Archive)
	}
	if statusStore == "redis" {
		return s.Redis.Validate()
	}
	return nil
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host      string        `mapstructure:"host"`
	Port      string        `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN returns the connection string, building one from parts when url is unset.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// TelemetryConfig contains metrics and tracing settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Namespace    string `mapstructure:"namespace"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// stageDefaults mirrors the per stage model parameters every run starts from.
var stageDefaults = map[string]AgentConfig{
	"reconnaissance": {Model: "fast", Temperature: 0.3, MaxTokens: 4000, InputBudget: 12000},
	"extraction":     {Model: "fast", Temperature: 0.3, MaxTokens: 4000, InputBudget: 12000},
	"challenge":      {Model: "reasoning", Temperature: 0.4, MaxTokens: 4000, InputBudget: 10000},
	"synthesis":      {Model: "fast", Temperature: 0.3, MaxTokens: 4000, InputBudget: 6000},
	"takeaways":      {Model: "fast", Temperature: 0.3, MaxTokens: 4000, InputBudget: 12000},
	"sections":       {Model: "fast", Temperature: 0.3, MaxTokens: 4000, InputBudget: 2000},
	"executive":      {Model: "fast", Temperature: 0.3, MaxTokens: 4000, InputBudget: 4000},
	"key_terms":      {Model: "fast", Temperature: 0.3, MaxTokens: 4000, InputBudget: 12000},
	"limitations":    {Model: "fast", Temperature: 0.3, MaxTokens: 4000, InputBudget: 3000},
	"linkedin_post":  {Model: "fast", Temperature: 0.7, MaxTokens: 1000, InputBudget: 500},
	"article":        {Model: "fast", Temperature: 0.5, MaxTokens: 4000, InputBudget: 12000},
	"plan":           {Model: "reasoning", Temperature: 0.3, MaxTokens: 4000},
	"write_chapter":  {Model: "writer", Temperature: 0.5, MaxTokens: 4000},
	"design_chapter": {Model: "designer", Temperature: 0.7, MaxTokens: 600, InputBudget: 500},
	"integrate":      {Model: "writer", Temperature: 0.5, MaxTokens: 4000, InputBudget: 1500},
}

// DefaultAgents returns a copy of the built-in per stage parameters.
func DefaultAgents() map[string]AgentConfig {
	out := make(map[string]AgentConfig, len(stageDefaults))
	for name, d := range stageDefaults {
		out[name] = d
	}
	return out
}

// StageNames lists every stage that can be tuned under agents.<name>.
func StageNames() []string {
	names := make([]string, 0, len(stageDefaults))
	for name := range stageDefaults {
		names = append(names, name)
	}
	return names
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_mode", "prod")

	v.SetDefault("server.address", ":10001")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.max_concurrent_runs", 4)
	v.SetDefault("server.status_store", "memory")
	v.SetDefault("server.status_ttl", 24*time.Hour)
	v.SetDefault("server.upload_limit_mb", 25)

	v.SetDefault("llm.base_url", "https://api.venice.ai/api/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.backoff_base", time.Second)
	v.SetDefault("llm.max_conns_per_host", 16)
	v.SetDefault("llm.venice_parameters", true)
	v.SetDefault("llm.default_model", "fast")
	v.SetDefault("llm.models.fast", "qwen3-235b")
	v.SetDefault("llm.models.reasoning", "qwen3-235b-a22b-thinking-2507")
	v.SetDefault("llm.models.writer", "qwen3-235b")
	v.SetDefault("llm.models.designer", "mistral-31-24b")

	for name, d := range stageDefaults {
		v.SetDefault("agents."+name+".model", d.Model)
		v.SetDefault("agents."+name+".temperature", d.Temperature)
		v.SetDefault("agents."+name+".max_tokens", d.MaxTokens)
		v.SetDefault("agents."+name+".input_budget", d.InputBudget)
	}

	v.SetDefault("pipeline.max_chapters", 8)
	v.SetDefault("pipeline.generate_images", true)

	v.SetDefault("images.enabled", true)
	v.SetDefault("images.api_style", "venice")
	v.SetDefault("images.base_url", "")
	v.SetDefault("images.api_key", "")
	v.SetDefault("images.model", "qwen-image")
	v.SetDefault("images.width", 1024)
	v.SetDefault("images.height", 768)
	v.SetDefault("images.style", "Watercolor Whimsical")
	v.SetDefault("images.safe_mode", true)
	v.SetDefault("images.timeout", 60*time.Second)

	v.SetDefault("scraper.fetcher", "http")
	v.SetDefault("scraper.timeout", 30*time.Second)
	v.SetDefault("scraper.max_content_length", 100000)
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	v.SetDefault("report.output_dir", "reports")
	v.SetDefault("report.pdf", false)
	v.SetDefault("report.pdf_timeout", 60*time.Second)

	v.SetDefault("storage.archive", "memory")
	v.SetDefault("storage.auto_migrate", true)
	v.SetDefault("storage.index_path", "")
	v.SetDefault("storage.redis.host", "")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.redis.key_prefix", "brieflab")
	v.SetDefault("storage.postgres.url", "")
	v.SetDefault("storage.postgres.host", "")
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.user", "")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.dbname", "")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.timeout", 10*time.Second)

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.namespace", "brieflab")
	v.SetDefault("telemetry.service_name", "brieflab")
	v.SetDefault("telemetry.otlp_endpoint", "")
}

// LoadConfig reads config.json (optional) and BRIEFLAB_* environment overrides.
// An empty path searches the usual locations; a missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("BRIEFLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Server = cfg.Server.Normalize()
	cfg.LLM = cfg.LLM.Normalize()
	if cfg.Images.APIKey == "" {
		cfg.Images.APIKey = cfg.LLM.APIKey
	}
	if cfg.Images.BaseURL == "" {
		cfg.Images.BaseURL = cfg.LLM.BaseURL
	}
	for name, d := range stageDefaults {
		if _, ok := cfg.Agents[name]; !ok {
			if cfg.Agents == nil {
				cfg.Agents = make(map[string]AgentConfig)
			}
			cfg.Agents[name] = d
		}
	}

	if err := cfg.Server.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Images.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Scraper.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Validate(cfg.Server.StatusStore); err != nil {
		return nil, err
	}
	return &cfg, nil
}
