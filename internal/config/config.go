// Package config defines all configuration structures for the Referta
// clinical-report engine.  Only plain data types and validation live here;
// loading and defaulting are in loader.go and defaults.go.
package config

import (
	"fmt"
	"time"

	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	APIKey          string        `mapstructure:"api_key"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka producer parameters for analysis events.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	Topic           string        `mapstructure:"topic"`
	ProducerRetries int           `mapstructure:"producer_retries"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	Enabled         bool          `mapstructure:"enabled"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters used for
// archiving the raw uploaded documents.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Enabled   bool   `mapstructure:"enabled"`
}

// InferenceConfig holds the Ollama inference backend parameters.
type InferenceConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// ExtractionConfig holds document-extraction tunables.  The defaults encode
// the behaviour tuned against real Italian laboratory and radiology reports;
// change them only with a new evaluation corpus in hand.
type ExtractionConfig struct {
	// TitleScanFirstLine and TitleScanLastLine bound the uppercase-line scan
	// used when no specific exam phrase matches.
	TitleScanFirstLine int `mapstructure:"title_scan_first_line"`
	TitleScanLastLine  int `mapstructure:"title_scan_last_line"`

	// TitleMinLen and TitleMaxLen bound accepted title candidates.
	TitleMinLen int `mapstructure:"title_min_len"`
	TitleMaxLen int `mapstructure:"title_max_len"`

	// KeywordVoteLines is the window for the last-resort keyword vote.
	KeywordVoteLines int `mapstructure:"keyword_vote_lines"`

	// LabValueLookahead is how many lines after a known test name are scanned
	// for its value, flag, unit, and reference range.
	LabValueLookahead int `mapstructure:"lab_value_lookahead"`

	// BirthYearMin / BirthYearMax bound plausible birth dates.
	BirthYearMin int `mapstructure:"birth_year_min"`
	BirthYearMax int `mapstructure:"birth_year_max"`

	// ExamYearMin / ExamYearMax bound plausible exam dates.
	ExamYearMin int `mapstructure:"exam_year_min"`
	ExamYearMax int `mapstructure:"exam_year_max"`
}

// ComparisonConfig holds temporal-comparison tunables.
type ComparisonConfig struct {
	// TrendChangeRatio is the relative change in the primary numeric marker
	// above which the deterministic fallback declares a trend.
	TrendChangeRatio float64 `mapstructure:"trend_change_ratio"`

	// LengthDeltaRatio is the text-length change used by the last-resort
	// heuristic when no numeric marker is shared between reports.
	LengthDeltaRatio float64 `mapstructure:"length_delta_ratio"`
}

// DedupThreshold is the per-category duplicate-detection tuning pair.
type DedupThreshold struct {
	MinKeys       int     `mapstructure:"min_keys"`
	MinMatchRatio float64 `mapstructure:"min_match_ratio"`
}

// DedupConfig holds duplicate-detection thresholds per report category.
type DedupConfig struct {
	Laboratory   DedupThreshold `mapstructure:"laboratory"`
	Imaging      DedupThreshold `mapstructure:"imaging"`
	Pathology    DedupThreshold `mapstructure:"pathology"`
	Unclassified DedupThreshold `mapstructure:"unclassified"`
}

// EngineConfig groups the analysis-engine tunables.
type EngineConfig struct {
	// MaxBatchSize caps how many documents one analysis request may carry.
	MaxBatchSize int `mapstructure:"max_batch_size"`

	Extraction ExtractionConfig `mapstructure:"extraction"`
	Comparison ComparisonConfig `mapstructure:"comparison"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration for the whole service.
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Database  DatabaseConfig    `mapstructure:"database"`
	Redis     RedisConfig       `mapstructure:"redis"`
	Kafka     KafkaConfig       `mapstructure:"kafka"`
	MinIO     MinIOConfig       `mapstructure:"minio"`
	Inference InferenceConfig   `mapstructure:"inference"`
	Engine    EngineConfig      `mapstructure:"engine"`
	Log       logging.LogConfig `mapstructure:"log"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.  It
// returns the first error found; any error is fatal at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required when kafka is enabled")
		}
	}

	if c.MinIO.Enabled {
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("config: minio.endpoint is required when minio is enabled")
		}
		if c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.bucket is required when minio is enabled")
		}
	}

	if c.Inference.BaseURL == "" {
		return fmt.Errorf("config: inference.base_url is required")
	}
	if c.Inference.Model == "" {
		return fmt.Errorf("config: inference.model is required")
	}

	if c.Engine.MaxBatchSize < 1 {
		return fmt.Errorf("config: engine.max_batch_size must be >= 1, got %d", c.Engine.MaxBatchSize)
	}
	if r := c.Engine.Comparison.TrendChangeRatio; r <= 0 || r >= 1 {
		return fmt.Errorf("config: engine.comparison.trend_change_ratio %g is out of range (0, 1)", r)
	}
	for _, t := range []struct {
		name string
		th   DedupThreshold
	}{
		{"laboratory", c.Engine.Dedup.Laboratory},
		{"imaging", c.Engine.Dedup.Imaging},
		{"pathology", c.Engine.Dedup.Pathology},
		{"unclassified", c.Engine.Dedup.Unclassified},
	} {
		if t.th.MinKeys < 1 {
			return fmt.Errorf("config: engine.dedup.%s.min_keys must be >= 1, got %d", t.name, t.th.MinKeys)
		}
		if t.th.MinMatchRatio <= 0 || t.th.MinMatchRatio > 1 {
			return fmt.Errorf("config: engine.dedup.%s.min_match_ratio %g is out of range (0, 1]", t.name, t.th.MinMatchRatio)
		}
	}
	if c.Engine.Extraction.TitleScanFirstLine >= c.Engine.Extraction.TitleScanLastLine {
		return fmt.Errorf("config: engine.extraction title scan window is empty")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
