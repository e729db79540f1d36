package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/redis/go-redis/v9"

	"github.com/zhouzirui/lingo-chat/backend/internal/quota"
)

// 运行环境
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// 配额后端
const (
	QuotaBackendMemory = "memory"
	QuotaBackendRedis  = "redis"
	QuotaBackendSQLite = "sqlite"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Env          string
	Server       ServerConfig
	AI           AIConfig
	Auth         AuthConfig
	Quota        QuotaConfig
	Conversation ConversationConfig
	Log          LogConfig
}

// Load 从环境变量加载配置并校验。
func Load() (*Config, error) {
	env := strings.ToLower(getEnvOrDefault("APP_ENV", EnvDevelopment))

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	quotaCfg, err := loadQuotaConfig()
	if err != nil {
		return nil, err
	}

	conversation, err := loadConversationConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:          env,
		Server:       server,
		AI:           ai,
		Auth:         loadAuthConfig(),
		Quota:        quotaCfg,
		Conversation: conversation,
		Log:          LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info"), Development: env != EnvProduction},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 拒绝不安全的配置组合。
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		return fmt.Errorf("invalid APP_ENV value %q", c.Env)
	}

	switch c.Quota.Backend {
	case QuotaBackendMemory, QuotaBackendRedis, QuotaBackendSQLite:
	default:
		return fmt.Errorf("invalid QUOTA_BACKEND value %q", c.Quota.Backend)
	}

	if c.Env == EnvProduction {
		if c.Auth.DevOverrideSecret != "" {
			return errors.New("AUTH_DEV_OVERRIDE_SECRET must not be set in production")
		}
		if c.Quota.Backend == QuotaBackendMemory {
			return errors.New("QUOTA_BACKEND=memory is not durable and not allowed in production")
		}
		if c.Auth.SessionSecret == "" {
			return errors.New("AUTH_SESSION_SECRET is required in production")
		}
	}
	return nil
}

// IsProduction 是否为生产环境。
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	origins := splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000"))

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
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
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("ark credentials or model missing: provide ARK_API_KEY + Model or an AK/SK pair")
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

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// AuthConfig 描述身份校验配置。
type AuthConfig struct {
	SessionSecret string
	CookieName    string
	// DevOverrideSecret 为空时不启用模拟会员头。
	DevOverrideSecret string
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		SessionSecret:     strings.TrimSpace(os.Getenv("AUTH_SESSION_SECRET")),
		CookieName:        getEnvOrDefault("AUTH_COOKIE_NAME", "lingo_session"),
		DevOverrideSecret: strings.TrimSpace(os.Getenv("AUTH_DEV_OVERRIDE_SECRET")),
	}
}

// QuotaConfig 描述配额账本配置。
type QuotaConfig struct {
	Backend       string
	Redis         RedisConfig
	SQLitePath    string
	FreeAllowance int
	Retention     time.Duration
}

// LedgerConfig 原样传递已加载的免费额度，0 表示关闭免费轮次。
func (c QuotaConfig) LedgerConfig() quota.Config {
	return quota.Config{
		FreeAllowance: c.FreeAllowance,
		Retention:     c.Retention,
	}
}

// RedisConfig 描述 Redis 连接。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewClient 创建 Redis 客户端并在短超时内探活。
func (c RedisConfig) NewClient(ctx context.Context) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", c.Addr, err)
	}
	return client, nil
}

func loadQuotaConfig() (QuotaConfig, error) {
	allowance := 3
	if override, err := parseOptionalIntEnv("QUOTA_FREE_ALLOWANCE"); err != nil {
		return QuotaConfig{}, err
	} else if override != nil {
		if *override < 0 {
			return QuotaConfig{}, fmt.Errorf("invalid QUOTA_FREE_ALLOWANCE value %d", *override)
		}
		allowance = *override
	}

	retention, err := parseDurationEnv("QUOTA_RETENTION", 90*24*time.Hour)
	if err != nil {
		return QuotaConfig{}, err
	}

	db := 0
	if override, err := parseOptionalIntEnv("REDIS_DB"); err != nil {
		return QuotaConfig{}, err
	} else if override != nil {
		db = *override
	}

	// REDIS_HOST + REDIS_PORT 优先于 REDIS_ADDR。
	addr := getEnvOrDefault("REDIS_ADDR", "localhost:6379")
	host := strings.TrimSpace(os.Getenv("REDIS_HOST"))
	port := strings.TrimSpace(os.Getenv("REDIS_PORT"))
	if host != "" && port != "" {
		addr = host + ":" + port
	}

	return QuotaConfig{
		Backend: strings.ToLower(getEnvOrDefault("QUOTA_BACKEND", QuotaBackendMemory)),
		Redis: RedisConfig{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       db,
		},
		SQLitePath:    getEnvOrDefault("QUOTA_SQLITE_PATH", "data/quota.db"),
		FreeAllowance: allowance,
		Retention:     retention,
	}, nil
}

// ConversationConfig 描述对话编排配置。
type ConversationConfig struct {
	GenerationTimeout time.Duration
	ContextTarget     int
	ChargePolicy      string
	LessonCatalogPath string
}

func loadConversationConfig() (ConversationConfig, error) {
	timeout, err := parseDurationEnv("CHAT_GENERATION_TIMEOUT", 30*time.Second)
	if err != nil {
		return ConversationConfig{}, err
	}

	target := 500
	if override, err := parseOptionalIntEnv("CHAT_CONTEXT_TARGET"); err != nil {
		return ConversationConfig{}, err
	} else if override != nil && *override > 0 {
		target = *override
	}

	policy := strings.ToLower(getEnvOrDefault("QUOTA_CHARGE_POLICY", "after_success"))
	if policy != "after_success" && policy != "before_call" {
		return ConversationConfig{}, fmt.Errorf("invalid QUOTA_CHARGE_POLICY value %q", policy)
	}

	return ConversationConfig{
		GenerationTimeout: timeout,
		ContextTarget:     target,
		ChargePolicy:      policy,
		LessonCatalogPath: strings.TrimSpace(os.Getenv("LESSON_CATALOG_PATH")),
	}, nil
}

// LogConfig 描述日志配置。
type LogConfig struct {
	Level       string
	Development bool
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
