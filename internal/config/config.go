package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the task bridge.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	// Executor sizing. PoolSize workers each pin one conversation with the
	// bot; QueueSize submissions may wait behind them.
	PoolSize  int
	QueueSize int

	// TaskTimeout bounds a task's whole conversation with the bot.
	TaskTimeout time.Duration

	// StoreType selects the record backend: memory, redis or postgres.
	StoreType   string
	TaskTTL     time.Duration
	RedisAddr   string
	RedisDB     int
	DatabaseURL string

	NotifyHook string

	DiscordGuildID   string
	DiscordChannelID string
	DiscordUserToken string
	DiscordBotToken  string
	DiscordBotName   string
	DiscordUserAgent string

	// TranslateWay selects the prompt translator: none, openai or baidu.
	TranslateWay   string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	BaiduAppID     string
	BaiduAppSecret string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "mjbridge"),
		ShutdownTimeout:  15 * time.Second,
		PoolSize:         3,
		QueueSize:        10,
		TaskTimeout:      5 * time.Minute,
		StoreType:        envOrDefault("TASK_STORE_TYPE", "memory"),
		TaskTTL:          30 * 24 * time.Hour,
		RedisAddr:        envOrDefault("REDIS_ADDR", "localhost:6379"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		NotifyHook:       stringsTrimSpace("NOTIFY_HOOK"),
		DiscordGuildID:   stringsTrimSpace("DISCORD_GUILD_ID"),
		DiscordChannelID: stringsTrimSpace("DISCORD_CHANNEL_ID"),
		DiscordUserToken: stringsTrimSpace("DISCORD_USER_TOKEN"),
		DiscordBotToken:  stringsTrimSpace("DISCORD_BOT_TOKEN"),
		DiscordBotName:   envOrDefault("DISCORD_BOT_NAME", "Midjourney Bot"),
		DiscordUserAgent: envOrDefault("DISCORD_USER_AGENT",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/109.0.0.0 Safari/537.36"),
		TranslateWay:   envOrDefault("TRANSLATE_WAY", "none"),
		OpenAIAPIKey:   stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:  stringsTrimSpace("OPENAI_BASE_URL"),
		OpenAIModel:    stringsTrimSpace("OPENAI_MODEL"),
		BaiduAppID:     stringsTrimSpace("BAIDU_TRANSLATE_APP_ID"),
		BaiduAppSecret: stringsTrimSpace("BAIDU_TRANSLATE_APP_SECRET"),
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.PoolSize, err = intFromEnv("TASK_POOL_SIZE", cfg.PoolSize)
	if err != nil {
		return Config{}, err
	}
	cfg.QueueSize, err = intFromEnv("TASK_QUEUE_SIZE", cfg.QueueSize)
	if err != nil {
		return Config{}, err
	}
	cfg.TaskTimeout, err = durationFromEnv("TASK_TIMEOUT", cfg.TaskTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TaskTTL, err = durationFromEnv("TASK_STORE_TTL", cfg.TaskTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.RedisDB, err = intFromEnv("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return Config{}, err
	}

	if cfg.PoolSize <= 0 {
		return Config{}, fmt.Errorf("TASK_POOL_SIZE must be positive")
	}
	if cfg.QueueSize < 0 {
		return Config{}, fmt.Errorf("TASK_QUEUE_SIZE must be >= 0")
	}
	if cfg.TaskTimeout < 30*time.Second {
		return Config{}, fmt.Errorf("TASK_TIMEOUT must be at least 30s")
	}
	switch cfg.StoreType {
	case "memory", "redis", "postgres":
	default:
		return Config{}, fmt.Errorf("TASK_STORE_TYPE must be memory, redis or postgres")
	}
	if cfg.StoreType == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required when TASK_STORE_TYPE=postgres")
	}
	switch cfg.TranslateWay {
	case "none", "openai", "baidu":
	default:
		return Config{}, fmt.Errorf("TRANSLATE_WAY must be none, openai or baidu")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
