package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"assetgate/internal/apiclient"
	"assetgate/internal/authz"
	"assetgate/internal/idp"
	"assetgate/internal/idp/oidc"
	"assetgate/internal/platform/config"
	"assetgate/internal/platform/httpserver"
	"assetgate/internal/platform/logger"
	"assetgate/internal/platform/metrics"
	platformredis "assetgate/internal/platform/redis"
	"assetgate/internal/session"
	sessionstore "assetgate/internal/session/store"
	"assetgate/internal/token"
	httptransport "assetgate/internal/transport/http"
	audit "assetgate/pkg/platform/audit"
	"assetgate/pkg/platform/audit/publisher"
	auditkafka "assetgate/pkg/platform/audit/store/kafka"
	auditmemory "assetgate/pkg/platform/audit/store/memory"
	auditpostgres "assetgate/pkg/platform/audit/store/postgres"
)

// main wires the gateway: identity provider, token broker, resource clients,
// authorization gate, session manager, and the HTTP surface. Business logic
// lives in the internal packages; this file only connects them.
func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("gateway exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	m := metrics.New()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	auditPublisher, auditClose, err := buildAudit(cfg.Audit, log)
	if err != nil {
		return err
	}
	defer auditClose()

	provider := oidc.New(cfg.IdP, nil, log)

	var sessions sessionstore.Store
	if redisClient != nil {
		sessions = sessionstore.NewRedis(redisClient.Client)
	} else {
		sessions = sessionstore.NewInMemoryStore()
	}

	var manager *session.Manager
	broker := token.NewBroker(provider, func() *idp.Account { return manager.ActiveAccount() }, log, m)

	clients := make(map[string]httptransport.Forwarder, len(cfg.Resources))
	var core *apiclient.Client
	for name, resource := range cfg.Resources {
		client := apiclient.New(resource, broker, nil, log, m)
		clients[name] = client
		if name == "core" {
			core = client
		}
	}
	if core == nil {
		return errors.New(`resource "core" must be configured; the authorization gate depends on it`)
	}

	gate := authz.NewGate(core, log)

	manager = session.NewManager(session.Deps{
		Provider: provider,
		Sessions: sessions,
		Tokens:   broker,
		Gate:     gate,
		Audit:    auditPublisher,
		Metrics:  m,
		Logger:   log,
	}, session.Config{
		SessionTTL:         cfg.SessionTTL,
		LoginWatchdog:      cfg.LoginWatchdog,
		InteractionCleanup: cfg.InteractionCleanup,
	})
	defer manager.Close()

	initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	if err := manager.Initialize(initCtx); err != nil {
		cancelInit()
		return err
	}
	cancelInit()

	health := func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}

	authHandler := httptransport.NewAuthHandler(manager, gate, log)
	proxyHandler := httptransport.NewProxyHandler(manager, gate, clients, log)
	router := httptransport.NewRouter(authHandler, proxyHandler, health)

	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("assetgate listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildAudit selects the audit sink and wraps it in the publisher. The
// returned closer drains the publisher before closing the sink.
func buildAudit(cfg config.Audit, log *slog.Logger) (*publisher.Publisher, func(), error) {
	var (
		store  audit.Store
		closer func()
	)

	switch cfg.Sink {
	case "postgres":
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, err
		}
		store = auditpostgres.New(db)
		closer = func() { db.Close() }
	case "kafka":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		kafkaStore, err := auditkafka.New(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		store = kafkaStore
		closer = kafkaStore.Close
	default:
		store = auditmemory.NewInMemoryStore()
		closer = func() {}
	}

	opts := []publisher.Option{publisher.WithLogger(log)}
	if cfg.AsyncBuffer > 0 {
		opts = append(opts, publisher.WithAsyncBuffer(cfg.AsyncBuffer))
	}
	pub := publisher.NewPublisher(store, opts...)

	return pub, func() {
		pub.Close()
		closer()
	}, nil
}
