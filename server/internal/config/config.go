package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 全局配置
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Mock        MockConfig        `yaml:"mock"`
	Language    LanguageConfig    `yaml:"language"`
	Translation TranslationConfig `yaml:"translation"`
	Voice       VoiceConfig       `yaml:"voice"`
	Image       ImageConfig       `yaml:"image"`
	Social      SocialConfig      `yaml:"social"`
	Weather     WeatherConfig     `yaml:"weather"`
	Store       StoreConfig       `yaml:"store"`
	Session     SessionConfig     `yaml:"session"`
	Logging     LoggingConfig     `yaml:"logging"`
	Paths       PathsConfig       `yaml:"paths"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

// ProvidersConfig 对话模型提供商配置，Order 为回退优先级。
type ProvidersConfig struct {
	Order     []string          `yaml:"order"`
	Timeout   time.Duration     `yaml:"timeout"`
	Grok      LLMProviderConfig `yaml:"grok"`
	OpenAI    LLMProviderConfig `yaml:"openai"`
	Anthropic LLMProviderConfig `yaml:"anthropic"`
}

// LLMProviderConfig LLM 提供商配置
type LLMProviderConfig struct {
	APIKey      string  `yaml:"api_key"`
	APIURL      string  `yaml:"api_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type MockConfig struct {
	CorpusPath string `yaml:"corpus_path"`
}

type LanguageConfig struct {
	MinLength     int     `yaml:"min_length"`
	MinConfidence float64 `yaml:"min_confidence"`
}

type TranslationConfig struct {
	Enabled bool          `yaml:"enabled"`
	APIURL  string        `yaml:"api_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// VoiceConfig 语音合成（ElevenLabs）配置，APIKey 为空时只返回兜底音频。
type VoiceConfig struct {
	APIKey          string        `yaml:"api_key"`
	APIURL          string        `yaml:"api_url"`
	VoiceID         string        `yaml:"voice_id"`
	Stability       float64       `yaml:"stability"`
	SimilarityBoost float64       `yaml:"similarity_boost"`
	FallbackURL     string        `yaml:"fallback_url"`
	Timeout         time.Duration `yaml:"timeout"`
}

// ImageConfig 角色形象生成（Replicate）配置。
type ImageConfig struct {
	APIKey       string        `yaml:"api_key"`
	APIURL       string        `yaml:"api_url"`
	Version      string        `yaml:"version"`
	BaseImageURL string        `yaml:"base_image_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxPolls     int           `yaml:"max_polls"`
}

// SocialConfig 社交上下文（X 趋势）配置。
type SocialConfig struct {
	APIKey  string        `yaml:"api_key"`
	APIURL  string        `yaml:"api_url"`
	Query   string        `yaml:"query"`
	Timeout time.Duration `yaml:"timeout"`
}

// WeatherConfig 天气工具（OpenWeatherMap）配置，APIKey 为空时返回离线文案。
type WeatherConfig struct {
	APIKey  string        `yaml:"api_key"`
	APIURL  string        `yaml:"api_url"`
	City    string        `yaml:"city"`
	Timeout time.Duration `yaml:"timeout"`
}

type StoreConfig struct {
	// Engine 决定持久化实现：sqlite | redis | memory
	Engine      string `yaml:"engine"`
	Path        string `yaml:"path"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

type SessionConfig struct {
	HistoryWindow int `yaml:"history_window"`
	ExportLimit   int `yaml:"export_limit"`
}

type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

type PathsConfig struct {
	Static        string `yaml:"static"`
	BaseImage     string `yaml:"base_image"`
	FallbackVoice string `yaml:"fallback_voice"`
}

// Default 返回不依赖配置文件即可运行的默认配置。
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:         8081,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Providers: ProvidersConfig{
			Order:   []string{"grok", "openai", "anthropic"},
			Timeout: 30 * time.Second,
			Grok: LLMProviderConfig{
				APIURL:    "https://api.x.ai/v1",
				Model:     "grok-beta",
				MaxTokens: 200,
			},
			OpenAI: LLMProviderConfig{
				APIURL:    "https://api.openai.com/v1",
				Model:     "gpt-4o",
				MaxTokens: 200,
			},
			Anthropic: LLMProviderConfig{
				APIURL:    "https://api.anthropic.com/v1",
				Model:     "claude-3-5-sonnet-20241022",
				MaxTokens: 200,
			},
		},
		Mock: MockConfig{CorpusPath: "server/configs/mock_responses.json"},
		Language: LanguageConfig{
			MinLength:     3,
			MinConfidence: 0.2,
		},
		Translation: TranslationConfig{
			Enabled: true,
			APIURL:  "https://translate.googleapis.com/translate_a/single",
			Timeout: 10 * time.Second,
		},
		Voice: VoiceConfig{
			APIURL:          "https://api.elevenlabs.io/v1",
			VoiceID:         "21m00Tcm4TlvDq8ikWAM",
			Stability:       0.5,
			SimilarityBoost: 0.5,
			FallbackURL:     "/fallback-voice.mp3",
			Timeout:         20 * time.Second,
		},
		Image: ImageConfig{
			APIURL:       "https://api.replicate.com/v1",
			Version:      "fofr/anime-pastel-dream",
			BaseImageURL: "/base-bella.png",
			PollInterval: 2 * time.Second,
			MaxPolls:     30,
		},
		Social: SocialConfig{
			APIURL:  "https://api.x.com/2",
			Query:   "from:user OR #anime",
			Timeout: 10 * time.Second,
		},
		Weather: WeatherConfig{
			APIURL:  "https://api.openweathermap.org/data/2.5/weather",
			City:    "Tokyo",
			Timeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Engine:      "sqlite",
			Path:        "data/bella_memory.db",
			RedisAddr:   "127.0.0.1:6379",
			RedisPrefix: "bella",
		},
		Session: SessionConfig{
			HistoryWindow: 5,
			ExportLimit:   50,
		},
		Paths: PathsConfig{
			Static:        "public",
			BaseImage:     "public/base-bella.png",
			FallbackVoice: "public/fallback-voice.mp3",
		},
	}
}

// Load 从文件加载配置。文件不存在时使用默认配置，环境变量始终覆盖敏感信息。
func Load(path string) (*Config, error) {
	// .env 可选，已存在的环境变量优先
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("⚠️  Failed to load .env: %v\n", err)
	}

	cfg := Default()
	if path != "" {
		fmt.Printf("📋 Loading config from: %s\n", path)
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			fmt.Printf("⚠️  Config file not found, using defaults\n")
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
			fmt.Printf("✅ Config parsed successfully (%d bytes)\n", len(data))
		}
	}

	cfg.applyEnv()

	fmt.Printf("\n📊 Configuration Summary:\n")
	fmt.Printf("   Server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("   Provider order: %v\n", cfg.Providers.Order)
	fmt.Printf("   Keys: grok=%t openai=%t anthropic=%t\n",
		cfg.Providers.Grok.APIKey != "", cfg.Providers.OpenAI.APIKey != "", cfg.Providers.Anthropic.APIKey != "")
	fmt.Printf("   Optional: voice=%t image=%t social=%t translation=%t\n",
		cfg.Voice.APIKey != "", cfg.Image.APIKey != "", cfg.Social.APIKey != "", cfg.Translation.Enabled)
	fmt.Printf("   Store: %s (%s)\n", cfg.Store.Engine, cfg.Store.Path)
	fmt.Printf("\n")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// applyEnv 从环境变量覆盖密钥与存储配置
func (c *Config) applyEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"GROK_API_KEY", &c.Providers.Grok.APIKey},
		{"OPENAI_API_KEY", &c.Providers.OpenAI.APIKey},
		{"ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey},
		{"REPLICATE_API_TOKEN", &c.Image.APIKey},
		{"ELEVENLABS_API_KEY", &c.Voice.APIKey},
		{"X_API_KEY", &c.Social.APIKey},
		{"OPENWEATHER_API_KEY", &c.Weather.APIKey},
		{"BELLA_STORE_ENGINE", &c.Store.Engine},
		{"BELLA_STORE_PATH", &c.Store.Path},
		{"BELLA_REDIS_ADDR", &c.Store.RedisAddr},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.target = v
		}
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	for _, name := range c.Providers.Order {
		if _, ok := c.Providers.Lookup(name); !ok {
			return fmt.Errorf("unknown provider in order: %s", name)
		}
	}
	switch c.Store.Engine {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unsupported store engine: %s", c.Store.Engine)
	}
	if c.Session.HistoryWindow < 0 {
		return fmt.Errorf("history_window must be >= 0")
	}
	return nil
}

// Lookup 按名称取提供商配置
func (p ProvidersConfig) Lookup(name string) (LLMProviderConfig, bool) {
	switch name {
	case "grok":
		return p.Grok, true
	case "openai":
		return p.OpenAI, true
	case "anthropic":
		return p.Anthropic, true
	default:
		return LLMProviderConfig{}, false
	}
}

// Addr 返回监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
