package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/drivelink/internal/adapters/driven/crypto"
	"github.com/custodia-labs/drivelink/internal/adapters/driven/google"
	"github.com/custodia-labs/drivelink/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/drivelink/internal/adapters/driven/redis"
	"github.com/custodia-labs/drivelink/internal/adapters/driven/secret"
	tgclient "github.com/custodia-labs/drivelink/internal/adapters/driven/telegram"
	httpadapter "github.com/custodia-labs/drivelink/internal/adapters/driving/http"
	"github.com/custodia-labs/drivelink/internal/adapters/driving/telegram"
	"github.com/custodia-labs/drivelink/internal/config"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
	"github.com/custodia-labs/drivelink/internal/core/services"
)

// providerTimeout bounds each token request to Google.
const providerTimeout = 30 * time.Second

// backend is the selected credential store with its lock and cleanup.
type backend struct {
	store driven.CredentialStore
	lock  driven.DistributedLock
	close func() error
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.RunMode == config.ModeMigrate {
		return migrate(ctx, cfg, logger)
	}

	// ===== Credential sealing =====
	var sealer *crypto.Sealer
	if cfg.CredentialsKey != "" {
		s, err := crypto.NewSealerFromPassphrase(cfg.CredentialsKey)
		if err != nil {
			return fmt.Errorf("credentials key: %w", err)
		}
		sealer = s
	} else {
		logger.Warn("CREDENTIALS_KEY not set, credentials are stored unsealed")
	}
	codec := crypto.NewCredentialCodec(sealer)

	// ===== Store =====
	be, err := openBackend(ctx, cfg, codec, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
		logger.Info("store closed")
	}()

	// ===== Google =====
	provider := google.NewProvider(google.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.OAuthRedirectURL,
		Scopes:       cfg.GoogleScopes,
		HTTPClient:   &http.Client{Timeout: providerTimeout},
	})

	// ===== Telegram =====
	var client *tgclient.Client
	if cfg.RunsBot() {
		client = tgclient.NewClient(cfg.TelegramBotToken, cfg.TelegramAPIURL)
		me, err := client.GetMe(ctx)
		if err != nil {
			return fmt.Errorf("telegram getMe: %w", err)
		}
		logger.Info("telegram bot connected", "username", me.Username)
	}

	g, gctx := errgroup.WithContext(ctx)

	// ===== Callback server =====
	if cfg.ServesCallback() {
		// Validate has already checked the redirect URL.
		callbackPath, _ := cfg.CallbackPath()
		callbackService := services.NewCallbackService(be.store, provider, logger)
		server := httpadapter.NewServer(httpadapter.Config{
			Host:                cfg.Host,
			Port:                cfg.Port,
			Version:             version,
			CallbackPath:        callbackPath,
			PostAuthRedirectURL: cfg.PostAuthRedirectURL,
		}, callbackService, be.store, logger)

		g.Go(func() error { return server.Run(gctx) })
	}

	// ===== Bot =====
	if cfg.RunsBot() {
		authenticator := services.NewSessionAuthenticator(services.SessionAuthenticatorConfig{
			Store:        be.store,
			Issuer:       secret.NewIssuer(),
			Provider:     provider,
			Messenger:    tgclient.NewMessenger(client, cfg.AuthTimeout),
			Refresher:    services.NewCredentialRefresher(provider, cfg.RefreshMargin),
			Logger:       logger,
			PollInterval: cfg.AuthPollInterval,
			Timeout:      cfg.AuthTimeout,
		})

		sweeper := services.NewPendingSweeper(services.PendingSweeperConfig{
			Store:                be.store,
			Lock:                 be.lock,
			Logger:               logger,
			Interval:             cfg.SweepInterval,
			AuthorizationTimeout: cfg.AuthTimeout,
		})
		sweeper.Start(gctx)
		defer sweeper.Stop()

		bot := telegram.NewBot(telegram.BotConfig{
			API:           client,
			Authenticator: authenticator,
			Logger:        logger,
		})
		g.Go(func() error { return bot.Run(gctx) })
	}

	err = g.Wait()
	logger.Info("shutting down")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config, codec *crypto.CredentialCodec, logger *slog.Logger) (*backend, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("using redis credential store")
		return &backend{
			store: redisadapter.NewCredentialStore(client, codec),
			lock:  redisadapter.NewLock(client),
			close: client.Close,
		}, nil
	}

	db, err := connectPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("using postgres credential store")
	return &backend{
		store: postgres.NewCredentialStore(db.DB, codec),
		lock:  postgres.NewAdvisoryLock(db),
		close: db.Close,
	}, nil
}

func connectPostgres(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := connectPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx, logger); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}
