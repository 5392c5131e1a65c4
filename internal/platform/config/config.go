package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// State failure modes decide what Decide does when the velocity store is down.
const (
	StateFailureStrict  = "strict"
	StateFailureLenient = "lenient"
)

// Shadow counter modes decide how the shadow path obtains a velocity counter.
const (
	CounterModeReuse     = "reuse"
	CounterModeIncrement = "increment"
)

// Transport and sink kinds.
const (
	TransportMemory = "memory"
	TransportKafka  = "kafka"

	SinkMemory   = "memory"
	SinkPostgres = "postgres"
	SinkKafka    = "kafka"
	SinkLog      = "log"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Decision  DecisionConfig  `mapstructure:"decision"`
	Model     ModelConfig     `mapstructure:"model"`
	Shadow    ShadowConfig    `mapstructure:"shadow"`
	Audit     AuditConfig     `mapstructure:"audit"`
	FraudRing FraudRingConfig `mapstructure:"fraud_ring"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// ServerConfig captures HTTP server settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig holds the bcrypt hash of the API key. Empty disables auth.
type AuthConfig struct {
	APIKeyHash string `mapstructure:"api_key_hash"`
}

// LoggingConfig selects slog level and handler format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DecisionConfig governs the synchronous pipeline.
type DecisionConfig struct {
	Window           time.Duration `mapstructure:"window"`
	Deadline         time.Duration `mapstructure:"deadline"`
	StateStore       string        `mapstructure:"state_store"`
	StateTimeout     time.Duration `mapstructure:"state_timeout"`
	StateFailureMode string        `mapstructure:"state_failure_mode"`
	ScoreBudget      time.Duration `mapstructure:"score_budget"`
}

// ModelConfig points at the model registry and the two versions in play.
type ModelConfig struct {
	RegistryDir string        `mapstructure:"registry_dir"`
	Production  string        `mapstructure:"production"`
	Shadow      string        `mapstructure:"shadow"`
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
	Warm        bool          `mapstructure:"warm"`
}

// ShadowConfig governs the asynchronous evaluation path.
type ShadowConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Transport      string        `mapstructure:"transport"`
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	CounterMode    string        `mapstructure:"counter_mode"`
	ScoreBudget    time.Duration `mapstructure:"score_budget"`
	StateTimeout   time.Duration `mapstructure:"state_timeout"`
	LookupAttempts int           `mapstructure:"lookup_attempts"`
	LookupDelay    time.Duration `mapstructure:"lookup_delay"`
}

// AuditConfig selects audit sinks.
type AuditConfig struct {
	Sinks      []string      `mapstructure:"sinks"`
	BufferSize int           `mapstructure:"buffer_size"`
	VerdictTTL time.Duration `mapstructure:"verdict_ttl"`
}

// FraudRingConfig governs the shared-device check.
type FraudRingConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	MaxUsers int           `mapstructure:"max_users"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// KafkaConfig configures the franz-go client.
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ClientID      string   `mapstructure:"client_id"`
	AuditTopic    string   `mapstructure:"audit_topic"`
	ShadowTopic   string   `mapstructure:"shadow_topic"`
	ConflictTopic string   `mapstructure:"conflict_topic"`
	GroupID       string   `mapstructure:"group_id"`
	Partitions    int32    `mapstructure:"partitions"`
	Replication   int16    `mapstructure:"replication"`
	EnsureTopics  bool     `mapstructure:"ensure_topics"`
}

// PostgresConfig configures the pgx pool used by the audit sink.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// TracingConfig enables the OTLP exporter when an endpoint is set.
type TracingConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// Load builds configuration from defaults, an optional file, a .env file, and
// SHERLOCK_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SHERLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sherlock")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("auth.api_key_hash", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("decision.window", "60s")
	v.SetDefault("decision.deadline", "100ms")
	v.SetDefault("decision.state_store", StoreMemory)
	v.SetDefault("decision.state_timeout", "25ms")
	v.SetDefault("decision.state_failure_mode", StateFailureStrict)
	v.SetDefault("decision.score_budget", "20ms")

	v.SetDefault("model.registry_dir", "")
	v.SetDefault("model.production", "champion-v1")
	v.SetDefault("model.shadow", "challenger-v1")
	v.SetDefault("model.load_timeout", "2s")
	v.SetDefault("model.warm", true)

	v.SetDefault("shadow.enabled", true)
	v.SetDefault("shadow.transport", TransportMemory)
	v.SetDefault("shadow.workers", 4)
	v.SetDefault("shadow.queue_size", 1024)
	v.SetDefault("shadow.counter_mode", CounterModeReuse)
	v.SetDefault("shadow.score_budget", "2s")
	v.SetDefault("shadow.state_timeout", "50ms")
	v.SetDefault("shadow.lookup_attempts", 4)
	v.SetDefault("shadow.lookup_delay", "50ms")

	v.SetDefault("audit.sinks", []string{SinkMemory, SinkLog})
	v.SetDefault("audit.buffer_size", 4096)
	v.SetDefault("audit.verdict_ttl", "24h")

	v.SetDefault("fraud_ring.enabled", true)
	v.SetDefault("fraud_ring.max_users", 3)
	v.SetDefault("fraud_ring.ttl", "720h")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 4)
	v.SetDefault("redis.dial_timeout", "1s")
	v.SetDefault("redis.read_timeout", "50ms")
	v.SetDefault("redis.write_timeout", "50ms")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.client_id", "sherlock")
	v.SetDefault("kafka.audit_topic", "sherlock.decisions")
	v.SetDefault("kafka.shadow_topic", "sherlock.shadow")
	v.SetDefault("kafka.conflict_topic", "sherlock.conflicts")
	v.SetDefault("kafka.group_id", "sherlock-shadow")
	v.SetDefault("kafka.partitions", 6)
	v.SetDefault("kafka.replication", 1)
	v.SetDefault("kafka.ensure_topics", true)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.conn_max_lifetime", "30m")

	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.service_name", "sherlock")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs sanity checks that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if c.Decision.Window <= 0 {
		return errors.New("decision.window must be greater than zero")
	}
	if c.Decision.Deadline <= 0 {
		return errors.New("decision.deadline must be greater than zero")
	}
	if c.Decision.StateTimeout <= 0 || c.Decision.StateTimeout > c.Decision.Deadline {
		return errors.New("decision.state_timeout must be positive and within decision.deadline")
	}
	switch c.Decision.StateFailureMode {
	case StateFailureStrict, StateFailureLenient:
	default:
		return fmt.Errorf("decision.state_failure_mode must be %q or %q, got %q",
			StateFailureStrict, StateFailureLenient, c.Decision.StateFailureMode)
	}
	switch c.Decision.StateStore {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.URL == "" {
			return errors.New("redis.url is required when decision.state_store is redis")
		}
	default:
		return fmt.Errorf("unknown decision.state_store %q", c.Decision.StateStore)
	}

	if c.Model.Production == "" {
		return errors.New("model.production is required")
	}

	if c.Shadow.Enabled {
		if c.Model.Shadow == "" {
			return errors.New("model.shadow is required when shadow is enabled")
		}
		if c.Shadow.Workers <= 0 {
			return errors.New("shadow.workers must be greater than zero")
		}
		if c.Shadow.StateTimeout <= 0 {
			return errors.New("shadow.state_timeout must be greater than zero")
		}
		switch c.Shadow.CounterMode {
		case CounterModeReuse, CounterModeIncrement:
		default:
			return fmt.Errorf("shadow.counter_mode must be %q or %q, got %q",
				CounterModeReuse, CounterModeIncrement, c.Shadow.CounterMode)
		}
		switch c.Shadow.Transport {
		case TransportMemory:
			if c.Shadow.QueueSize <= 0 {
				return errors.New("shadow.queue_size must be greater than zero")
			}
		case TransportKafka:
			if len(c.Kafka.Brokers) == 0 {
				return errors.New("kafka.brokers is required for the kafka shadow transport")
			}
		default:
			return fmt.Errorf("unknown shadow.transport %q", c.Shadow.Transport)
		}
	}

	for _, sink := range c.Audit.Sinks {
		switch sink {
		case SinkMemory, SinkLog:
		case SinkPostgres:
			if c.Postgres.DSN == "" {
				return errors.New("postgres.dsn is required for the postgres audit sink")
			}
		case SinkKafka:
			if len(c.Kafka.Brokers) == 0 {
				return errors.New("kafka.brokers is required for the kafka audit sink")
			}
		default:
			return fmt.Errorf("unknown audit sink %q", sink)
		}
	}
	if c.Audit.BufferSize <= 0 {
		return errors.New("audit.buffer_size must be greater than zero")
	}

	if c.FraudRing.Enabled && c.FraudRing.MaxUsers <= 0 {
		return errors.New("fraud_ring.max_users must be greater than zero")
	}
	return nil
}

// Lenient reports whether a state store failure degrades instead of failing.
func (d DecisionConfig) Lenient() bool {
	return d.StateFailureMode == StateFailureLenient
}
