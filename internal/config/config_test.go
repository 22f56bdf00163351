package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.PoolSize != 3 || cfg.QueueSize != 10 {
		t.Fatalf("executor sizing = %d/%d", cfg.PoolSize, cfg.QueueSize)
	}
	if cfg.TaskTimeout != 5*time.Minute {
		t.Fatalf("TaskTimeout = %s", cfg.TaskTimeout)
	}
	if cfg.StoreType != "memory" {
		t.Fatalf("StoreType = %q", cfg.StoreType)
	}
	if cfg.TaskTTL != 30*24*time.Hour {
		t.Fatalf("TaskTTL = %s", cfg.TaskTTL)
	}
	if cfg.DiscordBotName != "Midjourney Bot" {
		t.Fatalf("DiscordBotName = %q", cfg.DiscordBotName)
	}
	if cfg.TranslateWay != "none" {
		t.Fatalf("TranslateWay = %q", cfg.TranslateWay)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("TASK_POOL_SIZE", "5")
	t.Setenv("TASK_QUEUE_SIZE", "20")
	t.Setenv("TASK_TIMEOUT", "10m")
	t.Setenv("TASK_STORE_TYPE", "redis")
	t.Setenv("REDIS_ADDR", "redis:6380")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PoolSize != 5 || cfg.QueueSize != 20 {
		t.Fatalf("executor sizing = %d/%d", cfg.PoolSize, cfg.QueueSize)
	}
	if cfg.TaskTimeout != 10*time.Minute {
		t.Fatalf("TaskTimeout = %s", cfg.TaskTimeout)
	}
	if cfg.StoreType != "redis" || cfg.RedisAddr != "redis:6380" {
		t.Fatalf("redis config = %q %q", cfg.StoreType, cfg.RedisAddr)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"TASK_POOL_SIZE":  "0",
		"TASK_QUEUE_SIZE": "-1",
		"TASK_TIMEOUT":    "5s",
		"TASK_STORE_TYPE": "cassandra",
		"TRANSLATE_WAY":   "esperanto",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() accepted %s=%s", key, val)
			}
		})
	}
}

func TestLoadRequiresDatabaseURLForPostgres(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("TASK_STORE_TYPE", "postgres")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() accepted postgres store without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/mj")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabaseURL == "" {
		t.Fatalf("DatabaseURL lost")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"TASK_POOL_SIZE",
		"TASK_QUEUE_SIZE",
		"TASK_TIMEOUT",
		"TASK_STORE_TYPE",
		"TASK_STORE_TTL",
		"REDIS_ADDR",
		"REDIS_DB",
		"DATABASE_URL",
		"NOTIFY_HOOK",
		"DISCORD_GUILD_ID",
		"DISCORD_CHANNEL_ID",
		"DISCORD_USER_TOKEN",
		"DISCORD_BOT_TOKEN",
		"DISCORD_BOT_NAME",
		"DISCORD_USER_AGENT",
		"TRANSLATE_WAY",
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"OPENAI_MODEL",
		"BAIDU_TRANSLATE_APP_ID",
		"BAIDU_TRANSLATE_APP_SECRET",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
