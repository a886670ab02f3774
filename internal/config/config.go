// Package config loads service settings from an optional config file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all runtime settings of the fulfillment service
type Config struct {
	ServiceName string `mapstructure:"serviceName" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,oneof=development staging production test"`

	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Lock     LockConfig     `mapstructure:"lock"`
	Proposal ProposalConfig `mapstructure:"proposal"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout" validate:"gt=0"`
	AllowedOrigins  []string      `mapstructure:"allowedOrigins"`
}

// LogConfig configures the structured logger
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// MongoConfig configures the document store
type MongoConfig struct {
	URI            string        `mapstructure:"uri" validate:"required"`
	Database       string        `mapstructure:"database" validate:"required"`
	ConnectTimeout time.Duration `mapstructure:"connectTimeout" validate:"gt=0"`
	MaxPoolSize    uint64        `mapstructure:"maxPoolSize" validate:"gte=1"`
	MinPoolSize    uint64        `mapstructure:"minPoolSize" validate:"ltefield=MaxPoolSize"`
}

// KafkaConfig configures the outbox transport
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers" validate:"required,min=1,dive,required"`
	ClientID     string        `mapstructure:"clientId"`
	BatchSize    int           `mapstructure:"batchSize" validate:"gte=1"`
	BatchTimeout time.Duration `mapstructure:"batchTimeout"`
	RequiredAcks int           `mapstructure:"requiredAcks" validate:"oneof=-1 0 1"`
}

// RedisConfig configures the distributed job lock. Disabled falls back to an in-process lock.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	PoolSize int    `mapstructure:"poolSize" validate:"gte=1"`
}

// TemporalConfig configures the workflow client
type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	HostPort  string `mapstructure:"hostPort" validate:"required_if=Enabled true"`
	Namespace string `mapstructure:"namespace" validate:"required_if=Enabled true"`
	Identity  string `mapstructure:"identity"`
}

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlpEndpoint" validate:"required_if=Enabled true"`
	SampleRate   float64 `mapstructure:"sampleRate" validate:"gte=0,lte=1"`
}

// LockConfig configures the per-job lock
type LockConfig struct {
	TTL time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

// ProposalConfig configures propose/confirm commands
type ProposalConfig struct {
	TTL time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

// ScanConfig configures the scan idempotency registry
type ScanConfig struct {
	KeyTTL time.Duration `mapstructure:"keyTtl" validate:"gt=0"`
}

// WorkflowConfig configures the transfer lifecycle timers
type WorkflowConfig struct {
	ApprovalTimeout time.Duration `mapstructure:"approvalTimeout" validate:"gt=0"`
	TransitTimeout  time.Duration `mapstructure:"transitTimeout" validate:"gt=0"`
}

// OutboxConfig configures the outbox publisher
type OutboxConfig struct {
	PollInterval time.Duration `mapstructure:"pollInterval" validate:"gt=0"`
	BatchSize    int           `mapstructure:"batchSize" validate:"gte=1"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serviceName", "fulfillment-service")
	v.SetDefault("environment", "development")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.readTimeout", 10*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	v.SetDefault("log.level", "info")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "fulfillment_db")
	v.SetDefault("mongo.connectTimeout", 10*time.Second)
	v.SetDefault("mongo.maxPoolSize", 100)
	v.SetDefault("mongo.minPoolSize", 10)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.clientId", "fulfillment-service")
	v.SetDefault("kafka.batchSize", 100)
	v.SetDefault("kafka.batchTimeout", 10*time.Millisecond)
	v.SetDefault("kafka.requiredAcks", -1)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.poolSize", 100)

	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.hostPort", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.identity", "fulfillment-service")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.otlpEndpoint", "localhost:4317")
	v.SetDefault("tracing.sampleRate", 1.0)

	v.SetDefault("lock.ttl", 30*time.Second)
	v.SetDefault("proposal.ttl", 5*time.Minute)
	v.SetDefault("scan.keyTtl", 24*time.Hour)
	v.SetDefault("workflow.approvalTimeout", 72*time.Hour)
	v.SetDefault("workflow.transitTimeout", 7*24*time.Hour)
	v.SetDefault("outbox.pollInterval", time.Second)
	v.SetDefault("outbox.batchSize", 100)
}

// Load reads settings from config.yaml in the search paths, then the environment.
// Environment keys use the nested key upper-cased with dots replaced, e.g. MONGO_URI or LOCK_TTL.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its validate tag
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
