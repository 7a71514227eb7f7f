package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Service holds process-level settings.
type Service struct {
	Environment     string `envconfig:"SERVICE_ENVIRONMENT" required:"true"`
	APIPort         string `envconfig:"SERVICE_API_PORT" default:"8080"`
	HealthCheckPort string `envconfig:"WORKER_HEALTH_CHECK_PORT" default:"8081"`
}

// ClickHouse holds connection settings for the event store.
type ClickHouse struct {
	Host            string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port            string `envconfig:"CLICKHOUSE_PORT" required:"true"`
	Database        string `envconfig:"CLICKHOUSE_DB" required:"true"`
	User            string `envconfig:"CLICKHOUSE_USER" default:""`
	Password        string `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	UseTLS          bool   `envconfig:"CLICKHOUSE_USE_TLS" default:"false"`
	MaxOpenConns    int    `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int    `envconfig:"CLICKHOUSE_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime int    `envconfig:"CLICKHOUSE_CONN_MAX_LIFETIME_SEC" default:"3600"`
}

// Postgres holds connection settings for the CRM record store.
type Postgres struct {
	URL string `envconfig:"POSTGRES_URL" required:"true"`
}

// SQS holds queue settings for raw event transport.
type SQS struct {
	Endpoint string `envconfig:"SQS_ENDPOINT"`
	QueueURL string `envconfig:"SQS_QUEUE_URL" required:"true"`
	Region   string `envconfig:"SQS_REGION" required:"true"`
}

// Valkey holds settings for the run-lock cache. The cache is optional;
// with no host configured the service falls back to an in-process cache.
type Valkey struct {
	Host       string `envconfig:"VALKEY_HOST" default:""`
	Port       string `envconfig:"VALKEY_PORT" default:"6379"`
	RunLockTTL int    `envconfig:"VALKEY_RUN_LOCK_TTL_SEC" default:"300"`
}

// Consumer holds settings for the ingest pipeline.
type Consumer struct {
	BatchSizeMax    int `envconfig:"CONSUMER_BATCH_SIZE_MAX" default:"2000"`
	BatchTimeoutSec int `envconfig:"CONSUMER_BATCH_TIMEOUT_SEC" default:"10"`
}

// Align holds the alignment engine options.
type Align struct {
	CountryCode           string `envconfig:"ALIGN_COUNTRY_CODE" default:"971"`
	QualifyingTouchEvents string `envconfig:"ALIGN_QUALIFYING_TOUCH_EVENTS" default:"OutboundClick"`
	RequiredEvents        string `envconfig:"ALIGN_REQUIRED_EVENTS" default:"Lead,CompleteRegistration"`
	TimeWindowMinutes     int    `envconfig:"ALIGN_TIME_WINDOW_MINUTES" default:"0"`
	Workers               int    `envconfig:"ALIGN_WORKERS" default:"8"`
	LookupTimeoutSec      int    `envconfig:"ALIGN_LOOKUP_TIMEOUT_SEC" default:"5"`
	RunDeadlineSec        int    `envconfig:"ALIGN_RUN_DEADLINE_SEC" default:"120"`
	BatchWindowHours      int    `envconfig:"ALIGN_BATCH_WINDOW_HOURS" default:"168"`
	IntervalMinutes       int    `envconfig:"ALIGN_INTERVAL_MINUTES" default:"60"`
}

// Truth holds the reconciler cadence.
type Truth struct {
	WindowDays      int `envconfig:"TRUTH_WINDOW_DAYS" default:"7"`
	IntervalMinutes int `envconfig:"TRUTH_INTERVAL_MINUTES" default:"360"`
}

// Config is the full service configuration, loaded from the environment.
type Config struct {
	Service    Service
	ClickHouse ClickHouse
	Postgres   Postgres
	SQS        SQS
	Valkey     Valkey
	Consumer   Consumer
	Align      Align
	Truth      Truth
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

// SplitList parses a comma-separated config value into trimmed items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
