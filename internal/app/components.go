package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twmb/franz-go/pkg/kgo"

	"sherlock/internal/decision"
	decisionmetrics "sherlock/internal/decision/metrics"
	"sherlock/internal/decision/ports"
	"sherlock/internal/devicegraph"
	"sherlock/internal/model"
	"sherlock/internal/platform/config"
	platformkafka "sherlock/internal/platform/kafka"
	"sherlock/internal/platform/metrics"
	platformpostgres "sherlock/internal/platform/postgres"
	platformredis "sherlock/internal/platform/redis"
	"sherlock/internal/shadow"
	"sherlock/internal/velocity"
	"sherlock/pkg/platform/audit"
	"sherlock/pkg/platform/audit/publisher"
	auditkafka "sherlock/pkg/platform/audit/store/kafka"
	auditlog "sherlock/pkg/platform/audit/store/logger"
	auditmemory "sherlock/pkg/platform/audit/store/memory"
	auditpostgres "sherlock/pkg/platform/audit/store/postgres"
	auditredis "sherlock/pkg/platform/audit/store/redis"
	"sherlock/pkg/platform/circuit"
)

const shadowVelocityPrefix = "sherlock:shadow:velocity:"

// metricsSet is registered with the default Prometheus registry once per
// process.
type metricsSet struct {
	http     *metrics.Metrics
	decision *decisionmetrics.Metrics
	audit    *publisher.Metrics
	shadow   *shadow.Metrics
	model    *model.Metrics
}

var processMetrics = sync.OnceValue(func() *metricsSet {
	return &metricsSet{
		http:     metrics.New(),
		decision: decisionmetrics.New(),
		audit:    publisher.NewMetrics(),
		shadow:   shadow.NewMetrics(),
		model:    model.NewMetrics(),
	}
})

// infra holds the shared clients. Each is nil when not configured.
type infra struct {
	redis *platformredis.Client
	pg    *pgxpool.Pool
	kafka *kgo.Client
}

func (a *App) openInfra(ctx context.Context, withKafka bool) (*infra, error) {
	cfg := a.Config
	inf := &infra{}

	if cfg.Redis.URL != "" {
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		inf.redis = client
	}

	if cfg.Postgres.DSN != "" {
		pool, err := platformpostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			inf.Close()
			return nil, err
		}
		inf.pg = pool
	}

	if withKafka {
		client, err := platformkafka.New(cfg.Kafka,
			kgo.MaxBufferedRecords(max(cfg.Shadow.QueueSize, 1)),
			kgo.ProducerLinger(5*time.Millisecond),
		)
		if err != nil {
			inf.Close()
			return nil, err
		}
		inf.kafka = client
		if cfg.Kafka.EnsureTopics {
			if err := platformkafka.EnsureTopics(ctx, client, cfg.Kafka, a.Logger,
				cfg.Kafka.AuditTopic, cfg.Kafka.ShadowTopic, cfg.Kafka.ConflictTopic,
			); err != nil {
				inf.Close()
				return nil, err
			}
		}
	}
	return inf, nil
}

// Health pings every configured dependency.
func (i *infra) Health(ctx context.Context) error {
	var errs []error
	if i.redis != nil {
		if err := i.redis.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if i.pg != nil {
		if err := i.pg.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if i.kafka != nil {
		if err := platformkafka.Ping(ctx, i.kafka); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (i *infra) Close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.pg != nil {
		i.pg.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
}

type modelPair struct {
	production *model.Lazy
	shadow     *model.Lazy
	enabled    bool
}

func (a *App) buildModels(m *metricsSet) *modelPair {
	cfg := a.Config
	var registry model.Registry = model.DefaultRegistry()
	if cfg.Model.RegistryDir != "" {
		registry = model.NewFileRegistry(cfg.Model.RegistryDir)
	}
	opts := []model.LazyOption{
		model.WithLoadTimeout(cfg.Model.LoadTimeout),
		model.WithLogger(a.Logger),
		model.WithLoadObserver(m.model.ObserveLoad),
	}
	// Each path owns its Lazy so one failing load never affects the other.
	return &modelPair{
		production: model.NewLazy(registry, cfg.Model.Production, opts...),
		shadow:     model.NewLazy(registry, cfg.Model.Shadow, opts...),
		enabled:    cfg.Model.Warm,
	}
}

// warm pre-loads both models. Failures are logged; the first scoring call
// retries the load.
func (ms *modelPair) warm(ctx context.Context, logger *slog.Logger) {
	if !ms.enabled {
		return
	}
	for _, m := range []*model.Lazy{ms.production, ms.shadow} {
		if err := m.Warm(ctx); err != nil {
			logger.WarnContext(ctx, "model warm-up failed, will load on first use",
				"model_version", m.Version(),
				"error", err,
			)
		}
	}
}

// stateStore is the velocity backend. Production and the shadow path each
// wrap it in their own client.
func (a *App) stateStore(inf *infra) ports.StatePort {
	if a.Config.Decision.StateStore == config.StoreRedis {
		return velocity.NewRedisStore(inf.redis)
	}
	return velocity.NewMemoryStore()
}

func (a *App) productionState(store ports.StatePort) ports.StatePort {
	return velocity.NewClient(store,
		velocity.WithTimeout(a.Config.Decision.StateTimeout),
		velocity.WithBreaker(circuit.New("velocity",
			circuit.WithFailureThreshold(5),
			circuit.WithCooldown(time.Second),
		)),
		velocity.WithLogger(a.Logger),
	)
}

// shadowState is the shadow path's counter client. Reuse mode reads the
// production store, increment mode an isolated keyspace. Either way its
// breaker is separate from production's.
func (a *App) shadowState(inf *infra, store ports.StatePort, mode shadow.CounterMode) ports.StatePort {
	if mode == shadow.CounterIncrement {
		store = velocity.NewMemoryStore()
		if inf.redis != nil {
			store = velocity.NewRedisStore(inf.redis, velocity.WithKeyPrefix(shadowVelocityPrefix))
		}
	}
	return velocity.NewClient(store,
		velocity.WithTimeout(a.Config.Shadow.StateTimeout),
		velocity.WithBreaker(circuit.New("shadow_velocity",
			circuit.WithFailureThreshold(5),
			circuit.WithCooldown(time.Second),
		)),
		velocity.WithLogger(a.Logger),
	)
}

type deviceGraph interface {
	ports.DeviceGraphPort
	shadow.DeviceCounter
}

func (a *App) buildDeviceGraph(inf *infra) deviceGraph {
	if inf.redis != nil {
		return devicegraph.NewRedisGraph(inf.redis, a.Config.FraudRing.TTL)
	}
	return devicegraph.NewMemoryGraph(devicegraph.WithTTL(a.Config.FraudRing.TTL))
}

// verdictStore is a sink that can also answer lookups.
type verdictStore interface {
	audit.Store
	audit.VerdictIndex
}

type auditPipeline struct {
	publisher *publisher.Publisher
	verdicts  verdictStore
}

// buildAudit fans records out to every configured sink. The verdict index
// is the most widely shared store available: Redis, then Postgres, then
// process memory.
func (a *App) buildAudit(ctx context.Context, inf *infra, m *metricsSet) (*auditPipeline, error) {
	cfg := a.Config
	var (
		stores   []audit.NamedStore
		verdicts verdictStore
	)
	for _, sink := range cfg.Audit.Sinks {
		switch sink {
		case config.SinkMemory:
			store := auditmemory.NewInMemoryStore()
			stores = append(stores, audit.NamedStore{Name: sink, Store: store})
			if verdicts == nil {
				verdicts = store
			}
		case config.SinkPostgres:
			store := auditpostgres.New(inf.pg)
			if err := store.EnsureSchema(ctx); err != nil {
				return nil, err
			}
			stores = append(stores, audit.NamedStore{Name: sink, Store: store, Breaker: sinkBreaker(sink)})
			verdicts = store
		case config.SinkKafka:
			stores = append(stores, audit.NamedStore{
				Name:    sink,
				Store:   auditkafka.New(inf.kafka, cfg.Kafka.AuditTopic),
				Breaker: sinkBreaker(sink),
			})
		case config.SinkLog:
			stores = append(stores, audit.NamedStore{Name: sink, Store: auditlog.New(a.Logger)})
		}
	}
	if inf.redis != nil {
		index := auditredis.New(inf.redis, cfg.Audit.VerdictTTL)
		stores = append(stores, audit.NamedStore{Name: "redis_index", Store: index})
		verdicts = index
	}
	if verdicts == nil {
		// Replays and shadow comparisons still need somewhere to look.
		store := auditmemory.NewInMemoryStore()
		stores = append(stores, audit.NamedStore{Name: "memory_index", Store: store})
		verdicts = store
	}

	pub := publisher.NewPublisher(audit.NewFanout(stores, audit.WithFanoutLogger(a.Logger)),
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		publisher.WithLogger(a.Logger),
		publisher.WithMetrics(m.audit),
	)
	return &auditPipeline{publisher: pub, verdicts: verdicts}, nil
}

// sinkBreaker guards one remote sink. The verdict indexes carry no breaker so
// replays and shadow comparisons keep working while a sink is down.
func sinkBreaker(sink string) *circuit.Breaker {
	return circuit.New("audit_"+sink,
		circuit.WithFailureThreshold(10),
		circuit.WithCooldown(5*time.Second),
	)
}

// workerVerdicts picks the verdict store for a standalone shadow worker.
func (a *App) workerVerdicts(ctx context.Context, inf *infra) (verdictStore, error) {
	switch {
	case inf.redis != nil:
		return auditredis.New(inf.redis, a.Config.Audit.VerdictTTL), nil
	case inf.pg != nil:
		store := auditpostgres.New(inf.pg)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		if !a.auditPublishedToKafka() {
			a.Logger.Warn("shadow worker has no shared verdict store; every evaluation will be uncompared")
		}
		return auditmemory.NewInMemoryStore(), nil
	}
}

type shadowBundle struct {
	dispatcher *shadow.Dispatcher
	pool       *shadow.Pool
	stats      *shadow.Stats
	stop       func()
}

// buildShadow returns a disabled bundle when shadow is off. Over Kafka the
// API process only publishes; the shadow-worker command consumes.
func (a *App) buildShadow(inf *infra, ms *modelPair, store ports.StatePort, verdicts ports.VerdictLookup, devices deviceGraph, m *metricsSet) (*shadowBundle, error) {
	cfg := a.Config
	b := &shadowBundle{dispatcher: shadow.NewDispatcher(nil), stats: &shadow.Stats{}, stop: func() {}}
	if !cfg.Shadow.Enabled {
		return b, nil
	}

	switch cfg.Shadow.Transport {
	case config.TransportKafka:
		transport := shadow.NewKafkaTransport(inf.kafka, cfg.Kafka.ShadowTopic,
			shadow.WithKafkaLogger(a.Logger),
			shadow.WithProduceFailureHook(func(err error) {
				a.Logger.Warn("shadow publish failed", "error", err)
			}),
		)
		b.dispatcher = shadow.NewDispatcher(transport, shadow.WithDispatcherMetrics(m.shadow))
	default:
		transport := shadow.NewChannelTransport(cfg.Shadow.QueueSize)
		processor, err := a.buildProcessor(inf, ms, store, verdicts, devices, b.stats, m)
		if err != nil {
			return nil, err
		}
		b.dispatcher = shadow.NewDispatcher(transport, shadow.WithDispatcherMetrics(m.shadow))
		b.pool = shadow.NewPool(transport, processor, cfg.Shadow.Workers,
			shadow.WithPoolLogger(a.Logger),
			shadow.WithPoolMetrics(m.shadow),
			shadow.WithPoolStats(b.stats),
		)
		b.stop = func() { _ = transport.Close() }
	}
	return b, nil
}

// buildProcessor wires a shadow processor over the velocity store that
// production writes to.
func (a *App) buildProcessor(inf *infra, ms *modelPair, store ports.StatePort, verdicts ports.VerdictLookup, devices deviceGraph, stats *shadow.Stats, m *metricsSet) (*shadow.Processor, error) {
	cfg := a.Config
	mode, err := shadow.ParseCounterMode(cfg.Shadow.CounterMode)
	if err != nil {
		return nil, err
	}
	sinks := shadow.Sinks{shadow.NewLogSink(a.Logger)}
	if inf.kafka != nil {
		sinks = append(sinks, shadow.NewKafkaSink(inf.kafka, cfg.Kafka.ConflictTopic))
	}
	detector := shadow.NewDetector(verdicts, sinks,
		shadow.WithLookupRetry(cfg.Shadow.LookupAttempts, cfg.Shadow.LookupDelay),
		shadow.WithStats(stats),
		shadow.WithDetectorLogger(a.Logger),
		shadow.WithDetectorMetrics(m.shadow),
	)

	opts := []shadow.ProcessorOption{
		shadow.WithCounterMode(mode),
		shadow.WithWindow(cfg.Decision.Window),
		shadow.WithProcessorLogger(a.Logger),
		shadow.WithProcessorMetrics(m.shadow),
	}
	if cfg.FraudRing.Enabled {
		opts = append(opts, shadow.WithDeviceCounter(devices, cfg.FraudRing.MaxUsers))
	}
	evaluator := decision.NewEvaluator("shadow", ms.shadow, cfg.Shadow.ScoreBudget)
	return shadow.NewProcessor(evaluator, a.shadowState(inf, store, mode), detector, opts...), nil
}
