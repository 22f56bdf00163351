package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/entari/mjbridge/internal/config"
	"github.com/entari/mjbridge/internal/discord"
	"github.com/entari/mjbridge/internal/engine"
	"github.com/entari/mjbridge/internal/httpapi"
	"github.com/entari/mjbridge/internal/notify"
	"github.com/entari/mjbridge/internal/observability"
	"github.com/entari/mjbridge/internal/queue"
	"github.com/entari/mjbridge/internal/registry"
	"github.com/entari/mjbridge/internal/service"
	"github.com/entari/mjbridge/internal/store"
	"github.com/entari/mjbridge/internal/translate"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv load: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	taskStore, err := newStore(cfg)
	if err != nil {
		log.Fatalf("task store init failed: %v", err)
	}
	defer taskStore.Close()
	log.Printf("task store: %s (ttl %s)", cfg.StoreType, cfg.TaskTTL)

	sender, err := discord.NewSender(discord.SenderConfig{
		GuildID:   cfg.DiscordGuildID,
		ChannelID: cfg.DiscordChannelID,
		UserToken: cfg.DiscordUserToken,
		UserAgent: cfg.DiscordUserAgent,
	})
	if err != nil {
		log.Fatalf("discord sender init failed: %v", err)
	}

	reg := registry.New()
	exec := queue.NewExecutor(cfg.PoolSize, cfg.QueueSize)
	notifier := notify.NewDispatcher(cfg.NotifyHook, metrics)

	svc := service.New(
		service.Config{Timeout: cfg.TaskTimeout},
		taskStore, reg, exec, sender, notifier,
		newTranslator(cfg), metrics,
	)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	sentinel := service.NewSentinel(reg, cfg.TaskTimeout)
	go sentinel.Run(runCtx)

	if cfg.DiscordBotToken != "" {
		correlator := engine.New(engine.Config{
			ChannelID: cfg.DiscordChannelID,
			BotName:   cfg.DiscordBotName,
		}, reg, metrics)
		gateway := discord.NewGateway(discord.GatewayConfig{
			BotToken: cfg.DiscordBotToken,
		}, correlator)
		go gateway.Run(runCtx)
	} else {
		log.Printf("DISCORD_BOT_TOKEN not set, gateway disabled; tasks will only finish by timeout")
	}

	api := httpapi.New(svc, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}
	if err := exec.Stop(shutdownCtx); err != nil {
		log.Printf("executor drain failed: %v", err)
	}

	log.Printf("shutdown complete")
}

func newStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreType {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		return store.NewRedisStore(rdb, cfg.TaskTTL), nil
	case "postgres":
		return store.NewPostgresStore(context.Background(), cfg.DatabaseURL, cfg.TaskTTL)
	default:
		return store.NewMemoryStore(cfg.TaskTTL), nil
	}
}

func newTranslator(cfg config.Config) translate.Translator {
	switch cfg.TranslateWay {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Printf("TRANSLATE_WAY=openai but OPENAI_API_KEY is not set, translation disabled")
			return translate.None{}
		}
		return translate.NewOpenAI(translate.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
	case "baidu":
		if cfg.BaiduAppID == "" || cfg.BaiduAppSecret == "" {
			log.Printf("TRANSLATE_WAY=baidu but credentials are not set, translation disabled")
			return translate.None{}
		}
		return translate.NewBaidu(translate.BaiduConfig{
			AppID:  cfg.BaiduAppID,
			Secret: cfg.BaiduAppSecret,
		})
	default:
		return translate.None{}
	}
}
