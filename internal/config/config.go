package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App   AppConfig   `toml:"app"`
	LLM   LLMConfig   `toml:"llm"`
	Store StoreConfig `toml:"store"`
	Log   LogConfig   `toml:"log"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

type LLMConfig struct {
	BaseURL        string   `toml:"base_url"`
	APIKey         string   `toml:"api_key"`
	Model          string   `toml:"model"`
	Models         []string `toml:"models"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	MaxTokens      int      `toml:"max_tokens"`
	Temperature    float32  `toml:"temperature"`
	TopP           float32  `toml:"top_p"`
	SystemPrompt   string   `toml:"system_prompt"`
}

type StoreConfig struct {
	Path          string `toml:"path"`
	GateQueueSize int    `toml:"gate_queue_size"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "chatrewind",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    8000,
			GinMode: "debug",
		},
		LLM: LLMConfig{
			BaseURL: "https://api.together.xyz/v1",
			APIKey:  "",
			Model:   "meta-llama/Llama-3.3-70B-Instruct-Turbo",
			Models: []string{
				"meta-llama/Llama-3.3-70B-Instruct-Turbo",
				"mistralai/Mixtral-8x7B-Instruct-v0.1",
				"Qwen/Qwen2.5-72B-Instruct-Turbo",
			},
			TimeoutSeconds: 120,
			MaxTokens:      1000,
			Temperature:    0.7,
			TopP:           0.9,
			SystemPrompt:   "You are a helpful assistant. Always answer in the language of the prompt.",
		},
		Store: StoreConfig{
			Path:          ".chat_app_messages.sqlite",
			GateQueueSize: 64,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)

	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("TOGETHER_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.TimeoutSeconds = getEnvAsInt("LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)
	cfg.LLM.MaxTokens = getEnvAsInt("LLM_MAX_TOKENS", cfg.LLM.MaxTokens)
	if raw := getEnv("LLM_MODELS", ""); raw != "" {
		cfg.LLM.Models = splitList(raw)
	}

	cfg.Store.Path = getEnv("STORE_PATH", cfg.Store.Path)
	cfg.Store.GateQueueSize = getEnvAsInt("STORE_GATE_QUEUE_SIZE", cfg.Store.GateQueueSize)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
