package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ticketguard/scoring/internal/ml/trainer"
	"github.com/ticketguard/scoring/pkg/kafka"
	"github.com/ticketguard/scoring/pkg/postgres"
)

// Supported profile store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the scoring service.
type Config struct {
	// HTTP port for REST, health and metrics
	HTTPPort int
	// gRPC server port
	GRPCPort int

	Environment string
	LogLevel    string
	LogFormat   string
	ServiceName string

	// RateLimitPerMinute caps scoring requests per client address.
	RateLimitPerMinute int

	Artifact  ArtifactConfig
	Training  TrainingConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	GRPC      GRPCConfig
	Telemetry TelemetryConfig
}

// ArtifactConfig locates the model artifact and its optional S3 mirror.
type ArtifactConfig struct {
	Path       string
	Version    string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Key      string
}

// MirrorEnabled reports whether an S3 bucket was configured.
func (c ArtifactConfig) MirrorEnabled() bool {
	return c.S3Bucket != ""
}

// TrainingConfig controls retraining.
type TrainingConfig struct {
	ConfigFile     string
	Token          string
	DefaultSize    int
	DefaultSeed    int64
	EnableEndpoint bool
}

// Trainer builds the training config: defaults, then the environment, then
// the optional hyperparameter file.
func (c Config) Trainer() (trainer.Config, error) {
	cfg := trainer.DefaultConfig()
	cfg.Size = c.Training.DefaultSize
	cfg.Seed = c.Training.DefaultSeed
	cfg.Version = c.Artifact.Version
	if c.Training.ConfigFile == "" {
		return cfg, nil
	}
	return trainer.LoadConfig(c.Training.ConfigFile, cfg)
}

// DatabaseConfig holds profile store settings.
type DatabaseConfig struct {
	Driver        string
	Host          string
	User          string
	Password      string
	Name          string
	SSLMode       string
	SQLitePath    string
	MigrationsDir string
	Port          int
	MaxConns      int
	ConnMaxAge    time.Duration
}

// Postgres converts the settings for pkg/postgres.
func (c DatabaseConfig) Postgres() postgres.Config {
	return postgres.Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Name,
		SSLMode:         c.SSLMode,
		MaxConns:        int32(c.MaxConns),
		MaxConnLifetime: c.ConnMaxAge,
	}
}

// KafkaConfig holds event bus settings. No brokers disables publishing and
// the model reload listener.
type KafkaConfig struct {
	Topic         string
	ConsumerGroup string
	Brokers       []string
}

// Enabled reports whether any broker was configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// Client converts the settings for pkg/kafka.
func (c KafkaConfig) Client() kafka.Config {
	return kafka.Config{
		Brokers:       c.Brokers,
		ConsumerGroup: c.ConsumerGroup,
	}
}

// GRPCConfig holds gRPC server options.
type GRPCConfig struct {
	TLSCertFile string
	TLSKeyFile  string
	Reflection  bool
}

// TelemetryConfig holds tracing settings. An empty endpoint disables the
// OTLP exporter.
type TelemetryConfig struct {
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	return Config{
		HTTPPort:           getEnvInt("HTTP_PORT", 8000),
		GRPCPort:           getEnvInt("GRPC_PORT", 9000),
		Environment:        getEnv("ENVIRONMENT", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		ServiceName:        getEnv("SERVICE_NAME", "scoring-service"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 5000),
		Artifact: ArtifactConfig{
			Path:       getEnv("MODEL_PATH", "artifacts/attendance_model.bin"),
			Version:    getEnv("MODEL_VERSION", "v1"),
			S3Bucket:   getEnv("ARTIFACT_S3_BUCKET", ""),
			S3Region:   getEnv("ARTIFACT_S3_REGION", "us-east-1"),
			S3Endpoint: getEnv("ARTIFACT_S3_ENDPOINT", ""),
			S3Key:      getEnv("ARTIFACT_S3_KEY", "models/attendance_model.bin"),
		},
		Training: TrainingConfig{
			DefaultSize:    getEnvInt("TRAIN_DEFAULT_SIZE", 120000),
			DefaultSeed:    int64(getEnvInt("TRAIN_DEFAULT_SEED", 42)),
			ConfigFile:     getEnv("TRAINING_CONFIG_FILE", ""),
			EnableEndpoint: getEnvBool("ENABLE_MODEL_TRAIN_ENDPOINT", false),
			Token:          getEnv("MODEL_TRAIN_TOKEN", ""),
		},
		Database: DatabaseConfig{
			Driver:        getEnv("DB_DRIVER", DriverPostgres),
			Host:          getEnv("POSTGRES_HOST", "localhost"),
			Port:          getEnvInt("POSTGRES_PORT", 5432),
			User:          getEnv("POSTGRES_USER", "scoring"),
			Password:      getEnv("POSTGRES_PASSWORD", ""),
			Name:          getEnv("POSTGRES_DB", "scoring"),
			SSLMode:       getEnv("POSTGRES_SSLMODE", "disable"),
			ConnMaxAge:    time.Duration(getEnvInt("DB_CONN_MAX_AGE", 300)) * time.Second,
			MaxConns:      getEnvInt("DB_MAX_CONNS", 10),
			SQLitePath:    getEnv("SQLITE_PATH", "scoring.db"),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "file://internal/infrastructure/postgres/migrations"),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS"),
			Topic:         getEnv("KAFKA_TOPIC", "scoring.events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "scoring-model-reload"),
		},
		GRPC: GRPCConfig{
			Reflection:  getEnvBool("GRPC_REFLECTION", false),
			TLSCertFile: getEnv("GRPC_TLS_CERT_FILE", ""),
			TLSKeyFile:  getEnv("GRPC_TLS_KEY_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
	}
}

// Validate checks configuration values that would otherwise fail late.
func (c Config) Validate() error {
	var problems []error
	if c.HTTPPort <= 0 || c.GRPCPort <= 0 {
		problems = append(problems, fmt.Errorf("ports must be positive"))
	}
	if c.RateLimitPerMinute <= 0 {
		problems = append(problems, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimitPerMinute))
	}
	if c.Artifact.Path == "" {
		problems = append(problems, fmt.Errorf("MODEL_PATH is required"))
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		problems = append(problems, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver))
	}
	if (c.GRPC.TLSCertFile == "") != (c.GRPC.TLSKeyFile == "") {
		problems = append(problems, fmt.Errorf("GRPC_TLS_CERT_FILE and GRPC_TLS_KEY_FILE must be set together"))
	}
	return errors.Join(problems...)
}

// HTTPAddress returns the full HTTP listen address.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GRPCAddress returns the full gRPC listen address.
func (c Config) GRPCAddress() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvList splits a comma separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
