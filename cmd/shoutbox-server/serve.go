// ABOUTME: Wires the store, auth chains, fan-out tiers and HTTP surface
// ABOUTME: together and runs the server until shutdown.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/go-redis/redis/v8"

	"github.com/shoutbox/shoutbox/internal/auth"
	"github.com/shoutbox/shoutbox/internal/chat"
	"github.com/shoutbox/shoutbox/internal/config"
	"github.com/shoutbox/shoutbox/internal/fanout"
	"github.com/shoutbox/shoutbox/internal/guard"
	"github.com/shoutbox/shoutbox/internal/server"
	"github.com/shoutbox/shoutbox/internal/store"
	"github.com/shoutbox/shoutbox/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	if cfg.Redis.Enabled {
		green.Print("    ▶ ")
		fmt.Print("Redis:    ")
		cyan.Println(cfg.Redis.Addr)
	}
	fmt.Println()

	logger.Info("starting shoutbox-server",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisClient.Close()
	}

	notifier, err := fanout.NewSMTPNotifier(
		cfg.Email.Host, cfg.Email.Port,
		cfg.Email.Username, cfg.Email.Password,
		cfg.Email.From, logger,
	)
	if err != nil {
		return fmt.Errorf("setting up mailer: %w", err)
	}

	watcher := auth.NewInactiveWatcher(st, notifier, logger)

	var cache auth.Cache
	if cfg.Auth.CacheBackend == "redis" {
		cache = auth.NewRedisCache(redisClient, "authcache", logger)
	} else {
		memCache := auth.NewMemoryCache(cfg.Auth.CacheSize)
		defer memCache.Close()
		cache = memCache
	}

	// PrivateKeyScheme runs before ChatAccessScheme so that a private key
	// paired with a chat id resolves to the chat's admin rather than a
	// chat proxy actor.
	restChain := auth.NewChain(cache, cfg.Auth.CacheTTL, logger,
		&auth.UserSecretScheme{Store: st, Inactive: watcher},
		&auth.PrivateKeyScheme{Store: st, Inactive: watcher},
		&auth.ChatAccessScheme{Store: st, Inactive: watcher},
	)
	sessChain := auth.NewChain(nil, 0, logger,
		&auth.SessionTokenScheme{Store: st, Inactive: watcher},
	)
	// The socket accepts every credential kind, including session tokens.
	wsChain := auth.NewChain(cache, cfg.Auth.CacheTTL, logger,
		&auth.UserSecretScheme{Store: st, Inactive: watcher},
		&auth.ChatAccessScheme{Store: st, Inactive: watcher},
		&auth.SessionTokenScheme{Store: st, Inactive: watcher},
	)

	// With Redis the fan-out crosses instances; otherwise events stay
	// in-process on the broadcaster.
	var publisher fanout.Publisher
	var subscriber ws.Subscriber
	if cfg.Redis.Enabled {
		publisher = fanout.NewRedisPublisher(redisClient, logger)
		subscriber = fanout.NewRedisSubscriber(redisClient, logger)
	} else {
		broadcaster := fanout.NewBroadcaster(logger)
		publisher = broadcaster
		subscriber = broadcaster
	}

	dispatcher := fanout.NewDispatcher(publisher,
		fanout.NewWebhookSender(st, cfg.Webhooks.Timeout, logger),
		fanout.NewEmailer(st, notifier, logger),
		logger,
	)

	g := guard.New(st, logger)
	svc := chat.NewService(st, g, dispatcher, logger)

	api := server.New(server.Options{
		Store:     st,
		Service:   svc,
		Guard:     g,
		RestChain: restChain,
		SessChain: sessChain,
		Verifier:  auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)),
		Watcher:   watcher,
		Logger:    logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewHandler(wsChain, svc, subscriber, logger))
	mux.Handle("/", api)

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
