// Package app wires configuration into the running processes: the decision
// API server and the standalone shadow worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"sherlock/internal/decision"
	decisionhandler "sherlock/internal/decision/handler"
	"sherlock/internal/platform/config"
	"sherlock/internal/platform/httpserver"
	platformkafka "sherlock/internal/platform/kafka"
	kafkaconsumer "sherlock/internal/platform/kafka/consumer"
	"sherlock/internal/platform/middleware"
	"sherlock/internal/platform/tracing"
	"sherlock/internal/shadow"
	shadowhandler "sherlock/internal/shadow/handler"
	auditconsumer "sherlock/pkg/platform/audit/consumer"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{Config: cfg, Logger: logger}
}

// Serve runs the decision API until ctx is cancelled or a signal arrives.
// With the in-memory shadow transport the shadow workers run in this
// process too.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	cfg := a.Config

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, a.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	inf, err := a.openInfra(ctx, a.kafkaNeeded())
	if err != nil {
		return err
	}
	defer inf.Close()

	m := processMetrics()
	models := a.buildModels(m)
	models.warm(ctx, a.Logger)

	store := a.stateStore(inf)
	devices := a.buildDeviceGraph(inf)

	auditPipe, err := a.buildAudit(ctx, inf, m)
	if err != nil {
		return err
	}
	defer auditPipe.publisher.Close()

	sh, err := a.buildShadow(inf, models, store, auditPipe.verdicts, devices, m)
	if err != nil {
		return err
	}

	opts := []decision.Option{
		decision.WithLogger(a.Logger),
		decision.WithMetrics(m.decision),
		decision.WithAudit(auditPipe.publisher),
		decision.WithVerdicts(auditPipe.verdicts),
		decision.WithWindow(cfg.Decision.Window),
		decision.WithDeadline(cfg.Decision.Deadline),
		decision.WithLenientState(cfg.Decision.Lenient()),
	}
	if sh.dispatcher.Enabled() {
		opts = append(opts, decision.WithShadow(sh.dispatcher))
	}
	if cfg.FraudRing.Enabled {
		opts = append(opts, decision.WithDeviceGraph(devices, cfg.FraudRing.MaxUsers))
	}
	svc, err := decision.New(a.productionState(store),
		decision.NewEvaluator("production", models.production, cfg.Decision.ScoreBudget),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("build decision service: %w", err)
	}

	router := NewRouter(RouterDeps{
		Decision:    decisionhandler.New(svc, a.Logger),
		Shadow:      shadowhandler.New(sh.stats, sh.dispatcher.Enabled()),
		HTTPMetrics: m.http,
		Verifier:    middleware.NewAPIKeyVerifier(cfg.Auth.APIKeyHash),
		Health:      inf.Health,
		Logger:      a.Logger,
	})
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("decision API listening",
			"addr", cfg.Server.Addr,
			"production_model", cfg.Model.Production,
			"shadow_enabled", sh.dispatcher.Enabled(),
			"state_store", cfg.Decision.StateStore,
			"state_failure_mode", cfg.Decision.StateFailureMode,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if sh.pool != nil {
		g.Go(func() error { return sh.pool.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// Requests are done, so nothing else is dispatched; let the pool drain.
		sh.stop()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.Logger.Info("decision API stopped", "shadow", sh.stats.Snapshot())
	return nil
}

// RunShadowWorker consumes the Kafka shadow topic in its own process. When
// the audit trail is published to Kafka it also materializes decision
// records into the local verdict store so comparisons can be made.
func (a *App) RunShadowWorker(ctx context.Context) error {
	cfg := a.Config
	if cfg.Shadow.Transport != config.TransportKafka {
		return errors.New("shadow-worker requires shadow.transport=kafka")
	}
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, a.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	inf, err := a.openInfra(ctx, true)
	if err != nil {
		return err
	}
	defer inf.Close()

	m := processMetrics()
	models := a.buildModels(m)
	models.warm(ctx, a.Logger)

	if cfg.Decision.StateStore == config.StoreMemory && cfg.Shadow.CounterMode == config.CounterModeReuse {
		a.Logger.Warn("shadow worker reuses an in-memory state store it does not share with the API; velocity will read as zero")
	}
	verdicts, err := a.workerVerdicts(ctx, inf)
	if err != nil {
		return err
	}

	stats := &shadow.Stats{}
	processor, err := a.buildProcessor(inf, models, a.stateStore(inf), verdicts, a.buildDeviceGraph(inf), stats, m)
	if err != nil {
		return err
	}

	shadowClient, err := platformkafka.New(cfg.Kafka,
		kgo.ConsumerGroup(cfg.Kafka.GroupID),
		kgo.ConsumeTopics(cfg.Kafka.ShadowTopic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return err
	}
	transport := shadow.NewKafkaTransport(shadowClient, cfg.Kafka.ShadowTopic, shadow.WithKafkaLogger(a.Logger))
	defer transport.Close()
	pool := shadow.NewPool(transport, processor, cfg.Shadow.Workers,
		shadow.WithPoolLogger(a.Logger),
		shadow.WithPoolMetrics(m.shadow),
		shadow.WithPoolStats(stats),
	)

	router := NewRouter(RouterDeps{
		Shadow:      shadowhandler.New(stats, true),
		HTTPMetrics: m.http,
		Verifier:    middleware.NewAPIKeyVerifier(cfg.Auth.APIKeyHash),
		Health:      inf.Health,
		Logger:      a.Logger,
	})
	srv := httpserver.New(cfg.Server, router)

	var materializer *kafkaconsumer.Consumer
	if a.auditPublishedToKafka() {
		auditRouter := auditconsumer.NewRouter(a.Logger).
			Route(cfg.Kafka.AuditTopic, auditconsumer.NewRecordHandler(verdicts, a.Logger))
		auditClient, err := platformkafka.New(cfg.Kafka,
			kgo.ConsumerGroup(cfg.Kafka.GroupID+"-audit"),
			kgo.ConsumeTopics(auditRouter.Topics()...),
			kgo.DisableAutoCommit(),
		)
		if err != nil {
			return err
		}
		defer auditClient.Close()

		materializer = kafkaconsumer.New(auditClient, auditRouter, a.Logger)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	if materializer != nil {
		g.Go(func() error { return materializer.Run(gctx) })
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	a.Logger.Info("shadow worker started",
		"topic", cfg.Kafka.ShadowTopic,
		"group", cfg.Kafka.GroupID,
		"workers", cfg.Shadow.Workers,
		"counter_mode", cfg.Shadow.CounterMode,
		"shadow_model", cfg.Model.Shadow,
	)
	if err := g.Wait(); err != nil {
		return err
	}
	a.Logger.Info("shadow worker stopped", "shadow", stats.Snapshot())
	return nil
}

func (a *App) kafkaNeeded() bool {
	shadowOverKafka := a.Config.Shadow.Enabled && a.Config.Shadow.Transport == config.TransportKafka
	return shadowOverKafka || a.auditPublishedToKafka()
}

func (a *App) auditPublishedToKafka() bool {
	for _, sink := range a.Config.Audit.Sinks {
		if sink == config.SinkKafka {
			return true
		}
	}
	return false
}
