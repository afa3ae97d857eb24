package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/lectern"
	"github.com/aretw0/lectern/internal/adapters/file"
	"github.com/aretw0/lectern/internal/adapters/postgres"
	"github.com/aretw0/lectern/internal/adapters/sqlite"
	"github.com/aretw0/lectern/internal/config"
	"github.com/aretw0/lectern/pkg/adapters/cache"
	"github.com/aretw0/lectern/pkg/adapters/events"
	"github.com/aretw0/lectern/pkg/adapters/loam"
	"github.com/aretw0/lectern/pkg/adapters/redis"
	"github.com/aretw0/lectern/pkg/checkpoint"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/llm/ollama"
	"github.com/aretw0/lectern/pkg/observability"
	"github.com/aretw0/lectern/pkg/persistence/middleware"
	"github.com/aretw0/lectern/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
)

// Runtime is a fully wired Tutor plus everything that must be closed with it.
type Runtime struct {
	Config *config.Config
	Tutor  *lectern.Tutor
	Stores *checkpoint.Stores
	Logger *slog.Logger

	// Events is set when the in-process event channel is enabled.
	Events *events.Channel

	closers []func() error
}

// Close releases connections in reverse order of creation.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func (rt *Runtime) onClose(fn func() error) {
	rt.closers = append(rt.closers, fn)
}

// Open builds the runtime described by cfg. gen overrides the configured model when set.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, gen ports.Generator) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger}
	if err := rt.wire(ctx, gen); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) wire(ctx context.Context, gen ports.Generator) error {
	cfg, logger := rt.Config, rt.Logger

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:  cfg.Tracing.Enabled,
		Endpoint: cfg.Tracing.Endpoint,
	}, logger)
	if err != nil {
		return err
	}
	rt.onClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(ctx)
	})

	factory, client, err := rt.storeFactory(ctx)
	if err != nil {
		return err
	}
	mws, err := storeMiddleware(cfg.Security)
	if err != nil {
		return err
	}
	rt.Stores, err = checkpoint.OpenStores(ctx, factory, mws...)
	if err != nil {
		return err
	}

	opts := []lectern.Option{
		lectern.WithStores(rt.Stores),
		lectern.WithLogger(logger),
		lectern.WithMaxQuestions(cfg.Quiz.MaxQuestions),
		lectern.WithFidelitySampleRate(cfg.Answer.FidelitySampleRate),
		lectern.WithMetrics(newMetrics(cfg.Metrics.Namespace)),
	}

	if cfg.Store.Lock {
		if client == nil {
			return fmt.Errorf("store.lock requires the redis backend")
		}
		opts = append(opts, lectern.WithLocker(redis.NewLocker(client, cfg.Store.RedisPrefix+"lock:")))
	}

	if cfg.Documents.Dir != "" {
		docs, err := loam.Open(cfg.Documents.Dir)
		if err != nil {
			return fmt.Errorf("failed to open documents: %w", err)
		}
		opts = append(opts, lectern.WithDocuments(cache.NewDocuments(docs, cfg.Documents.CacheTTL)))
	}

	publisher, err := rt.publisher(cfg.Events, logger)
	if err != nil {
		return err
	}
	if publisher != nil {
		opts = append(opts, lectern.WithPublisher(publisher))
	}

	if gen == nil {
		provider := ollama.NewProvider(cfg.Model.BaseURL, cfg.Model.Name)
		provider.Client.Timeout = cfg.Model.Timeout
		gen = provider
	}

	rt.Tutor, err = lectern.New(gen, opts...)
	return err
}

// storeFactory opens the configured backend. client is set for redis so a locker can share it.
func (rt *Runtime) storeFactory(ctx context.Context) (checkpoint.Factory, *backend.Client, error) {
	sc := rt.Config.Store
	switch sc.Backend {
	case "memory":
		return checkpoint.MemoryFactory(), nil, nil

	case "file":
		return func(_ context.Context, w domain.Workflow) (ports.StateStore, error) {
			return file.New(filepath.Join(sc.Dir, string(w))), nil
		}, nil, nil

	case "redis":
		client := backend.NewClient(&backend.Options{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
		})
		rt.onClose(client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", sc.RedisAddr, err)
		}
		return func(_ context.Context, w domain.Workflow) (ports.StateStore, error) {
			return redis.NewFromClient(client,
				redis.WithPrefix(sc.RedisPrefix+"checkpoint:"+string(w)+":"),
				redis.WithTTL(sc.RedisTTL),
			), nil
		}, client, nil

	case "sqlite":
		db, err := sqlite.Open(sc.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		rt.onClose(db.Close)
		return func(ctx context.Context, w domain.Workflow) (ports.StateStore, error) {
			return db.Store(ctx, string(w))
		}, nil, nil

	case "postgres":
		db, err := postgres.Connect(ctx, sc.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		rt.onClose(func() error { db.Close(); return nil })
		return func(ctx context.Context, w domain.Workflow) (ports.StateStore, error) {
			return db.Store(ctx, string(w))
		}, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", sc.Backend)
}

// storeMiddleware masks PII before encrypting.
func storeMiddleware(sec config.SecurityConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(sec.PIIKeys) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(sec.PIIKeys))
	}
	active, fallback, err := sec.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	return mws, nil
}

func (rt *Runtime) publisher(ec config.EventsConfig, logger *slog.Logger) (ports.EventPublisher, error) {
	switch ec.Backend {
	case "channel":
		rt.Events = events.NewChannel("")
		rt.onClose(rt.Events.Close)
		return rt.Events, nil
	case "nats":
		pub, err := events.NewNATS(ec.NATSURL, logger)
		if err != nil {
			return nil, err
		}
		rt.onClose(func() error { pub.Close(); return nil })
		return pub, nil
	}
	return nil, nil
}

// newMetrics registers on a registry owned by the runtime.
func newMetrics(namespace string) *observability.Metrics {
	return observability.NewMetrics(namespace, prometheus.NewRegistry())
}
