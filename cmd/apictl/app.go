package main

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/apiclient/config"
	"github.com/kbukum/apiclient/credential"
	"github.com/kbukum/apiclient/encryption"
	"github.com/kbukum/apiclient/httpclient/rest"
	"github.com/kbukum/apiclient/logger"
	"github.com/kbukum/apiclient/observability"
	"github.com/kbukum/apiclient/redis"
	"github.com/kbukum/apiclient/version"
)

// app holds the wired components of one command run.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	client *rest.Client
	redis  *redis.Client

	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = version.UserAgent("apictl")
	}
	if cfg.Version == "" {
		cfg.Version = version.Get().Short()
	}
	a := &app{
		cfg: cfg,
		log: logger.New(&cfg.Logging, cfg.Name),
	}
	defer func() {
		if err != nil {
			a.close(context.WithoutCancel(ctx))
		}
	}()

	var (
		mp metric.MeterProvider
		tp trace.TracerProvider
	)
	if cfg.Telemetry.Enabled {
		tracerProvider, err := observability.InitTracer(ctx, cfg.Telemetry.Tracer, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, tracerProvider.Shutdown)
		tp = tracerProvider

		meterProvider, err := observability.InitMeter(ctx, cfg.Telemetry.Meter, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, meterProvider.Shutdown)
		mp = meterProvider
	}
	inst, err := observability.NewInstruments(mp, tp)
	if err != nil {
		return nil, err
	}

	store, err := a.newStore()
	if err != nil {
		return nil, err
	}

	client, err := rest.New(cfg.HTTP, store,
		rest.WithRetryPolicy(cfg.Retry),
		rest.WithLogger(a.log),
		rest.WithInstruments(inst),
		rest.WithRenewPath(cfg.Auth.RefreshPath),
		rest.WithRenewTimeout(cfg.Auth.RenewTimeout),
	)
	if err != nil {
		return nil, err
	}
	a.client = client
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	return a, nil
}

// newStore builds the credential store on the configured backend.
func (a *app) newStore() (*credential.Store, error) {
	cc := a.cfg.Credentials

	var backend credential.Backend
	switch cc.Backend {
	case config.BackendMemory:
		backend = credential.NewMemoryBackend()
	case config.BackendFile:
		if cc.Dir != "" {
			backend = credential.NewFileBackend(cc.Dir)
			break
		}
		fb, err := credential.DefaultFileBackend(a.cfg.Name)
		if err != nil {
			return nil, err
		}
		backend = fb
	case config.BackendRedis:
		rc, err := redis.New(cc.Redis, a.log)
		if err != nil {
			return nil, err
		}
		a.redis = rc
		a.closers = append(a.closers, func(context.Context) error { return rc.Close() })
		backend = redis.NewCredentialBackend(rc, cc.Redis.KeyPrefix, cc.Redis.RecordTTL())
	default:
		return nil, fmt.Errorf("unknown credentials backend %q", cc.Backend)
	}

	opts := []credential.Option{credential.WithLogger(a.log)}
	if cc.Key != "" {
		opts = append(opts, credential.WithKey(cc.Key))
	}
	if cc.EncryptionKey != "" {
		sealer, err := encryption.New(cc.EncryptionKey, encryption.WithAlgorithm(encryption.Algorithm(cc.Algorithm)))
		if err != nil {
			return nil, err
		}
		opts = append(opts, credential.WithSealer(sealer))
	}
	return credential.NewStore(backend, opts...), nil
}

// checkers returns the components reported by status.
func (a *app) checkers() []observability.HealthChecker {
	checkers := []observability.HealthChecker{a.client}
	if a.redis != nil {
		checkers = append(checkers, a.redis)
	}
	return checkers
}

// close releases components in reverse order of creation.
func (a *app) close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("shutdown incomplete", logger.Fields(logger.FieldError, err.Error()))
	}
}
