package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/deathcards/deathcards-server-go/internal/config"
	"github.com/deathcards/deathcards-server-go/internal/game"
	"github.com/deathcards/deathcards-server-go/internal/game/model"
	"github.com/deathcards/deathcards-server-go/internal/notify"
	"github.com/deathcards/deathcards-server-go/internal/store/memory"
	"github.com/deathcards/deathcards-server-go/internal/store/postgres"
	"github.com/deathcards/deathcards-server-go/internal/transport/ws"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting deathcards server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	hub := notify.NewHub(logger)
	var transport model.Notifier = hub
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		// Events go through Redis and come back to the local hub via the relay.
		transport = notify.NewRedisPublisher(rdb, cfg.Redis.ChannelPrefix, logger)
		go func() {
			if err := notify.Relay(ctx, rdb, cfg.Redis.ChannelPrefix, hub, logger); err != nil {
				logger.Error("redis relay stopped", zap.Error(err))
			}
		}()
		logger.Info("redis fan-out enabled", zap.String("addr", cfg.Redis.Addr))
	}

	queue := notify.NewQueue(notify.Fanout{transport, notify.EventLog{Logger: logger}},
		cfg.Engine.NotificationQueue, logger)

	engine := game.NewEngine(store, queue, logger,
		game.WithMaxChainDepth(cfg.Engine.MaxChainDepth),
	)

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.WebSocketPath, ws.NewHandler(engine, hub, logger))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: cfg.Server.Address, Handler: mux}

	go func() {
		logger.Info("starting websocket server",
			zap.String("address", cfg.Server.Address),
			zap.String("path", cfg.Server.WebSocketPath),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("websocket server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := queue.Close(shutdownCtx); err != nil {
		logger.Warn("pending notifications dropped", zap.Error(err))
	}

	logger.Info("deathcards server stopped")
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (model.Store, func(), error) {
	switch cfg.Driver {
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.URL, cfg.MaxConns, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		return pg, pg.Close, nil
	default:
		logger.Warn("using in-memory store; state is lost on restart")
		return memory.New(logger), func() {}, nil
	}
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
