package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Chat   ChatConfig
	Log    LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	return LoadFrom(newViper())
}

// LoadFrom 从给定的 viper 实例读取配置，便于测试注入。
func LoadFrom(v *viper.Viper) (*Config, error) {
	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(v)
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig(v)
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Chat: chat, Log: logCfg}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	// 模型名沿用 "Model" 环境变量，同时接受 ARK_MODEL。
	_ = v.BindEnv("model", "Model", "ARK_MODEL")

	v.SetDefault("PORT", "8080")
	v.SetDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ARK_REGION", "cn-beijing")
	v.SetDefault("CHAT_DEFAULT_PERSONA", "assistant")
	v.SetDefault("CHAT_WELCOME", true)
	v.SetDefault("CHAT_STREAM_DELAY", "30ms")
	v.SetDefault("CHAT_COMPLETION_TIMEOUT", "60s")
	v.SetDefault("CHAT_SESSION_TTL", "30m")
	v.SetDefault("CHAT_CLEANUP_INTERVAL", "1m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	return v
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	port := strings.TrimSpace(v.GetString("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Stream      bool
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig(v *viper.Viper) (AIConfig, error) {
	temperature, err := parseOptionalFloat(v, "ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloat(v, "ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalInt(v, "ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBool(v, "ARK_STREAM", false)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      getString(v, "ARK_API_KEY"),
		AccessKey:   getString(v, "ARK_ACCESS_KEY"),
		SecretKey:   getString(v, "ARK_SECRET_KEY"),
		Model:       getString(v, "model"),
		BaseURL:     getString(v, "ARK_BASE_URL"),
		Region:      getString(v, "ARK_REGION"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}, nil
}

// ChatConfig 描述会话管理相关配置。
type ChatConfig struct {
	DefaultPersona    string
	Welcome           bool
	StreamDelay       time.Duration
	CompletionTimeout time.Duration
	SessionTTL        time.Duration
	CleanupInterval   time.Duration
}

func loadChatConfig(v *viper.Viper) (ChatConfig, error) {
	welcome, err := parseBool(v, "CHAT_WELCOME", true)
	if err != nil {
		return ChatConfig{}, err
	}

	durations := map[string]*time.Duration{}
	var cfg ChatConfig
	durations["CHAT_STREAM_DELAY"] = &cfg.StreamDelay
	durations["CHAT_COMPLETION_TIMEOUT"] = &cfg.CompletionTimeout
	durations["CHAT_SESSION_TTL"] = &cfg.SessionTTL
	durations["CHAT_CLEANUP_INTERVAL"] = &cfg.CleanupInterval

	for key, dst := range durations {
		d, err := parseDuration(v, key)
		if err != nil {
			return ChatConfig{}, err
		}
		*dst = d
	}

	cfg.DefaultPersona = getString(v, "CHAT_DEFAULT_PERSONA")
	cfg.Welcome = welcome
	return cfg, nil
}

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Level  string
	Pretty bool
}

func loadLogConfig(v *viper.Viper) (LogConfig, error) {
	pretty, err := parseBool(v, "LOG_PRETTY", false)
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{
		Level:  strings.ToLower(getString(v, "LOG_LEVEL")),
		Pretty: pretty,
	}, nil
}

func getString(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func parseBool(v *viper.Viper, key string, defaultValue bool) (bool, error) {
	raw := getString(v, key)
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := getString(v, key)
	if raw == "" {
		return 0, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
}

func parseOptionalFloat(v *viper.Viper, key string) (*float64, error) {
	raw := getString(v, key)
	if raw == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return &val, nil
}

func parseOptionalInt(v *viper.Viper, key string) (*int, error) {
	raw := getString(v, key)
	if raw == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return &val, nil
}
