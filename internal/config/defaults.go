// Package config provides configuration loading, defaults, and validation for
// the Referta clinical-report engine.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "referta"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "referta:"
	DefaultRedisTTL       = 15 * time.Minute

	DefaultKafkaBroker = "localhost:9092"
	DefaultKafkaTopic  = "referta.analysis.completed"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "referta-documents"

	DefaultInferenceBaseURL = "http://localhost:11434"
	DefaultInferenceModel   = "llama3"
	DefaultInferenceTimeout = 60 * time.Second

	DefaultMaxBatchSize = 5

	DefaultTrendChangeRatio = 0.20
	DefaultLengthDeltaRatio = 0.30

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the service default.
// Fields already set by the caller are left unchanged so explicit
// configuration always wins.  Call after unmarshalling, before Validate.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 32 << 20
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "migrations"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.ProducerRetries == 0 {
		cfg.Kafka.ProducerRetries = 3
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = time.Second
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Inference ─────────────────────────────────────────────────────────────
	if cfg.Inference.BaseURL == "" {
		cfg.Inference.BaseURL = DefaultInferenceBaseURL
	}
	if cfg.Inference.Model == "" {
		cfg.Inference.Model = DefaultInferenceModel
	}
	if cfg.Inference.Timeout == 0 {
		cfg.Inference.Timeout = DefaultInferenceTimeout
	}
	if cfg.Inference.MaxAttempts == 0 {
		cfg.Inference.MaxAttempts = 1
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	if cfg.Engine.MaxBatchSize == 0 {
		cfg.Engine.MaxBatchSize = DefaultMaxBatchSize
	}

	ex := &cfg.Engine.Extraction
	if ex.TitleScanFirstLine == 0 {
		ex.TitleScanFirstLine = 5
	}
	if ex.TitleScanLastLine == 0 {
		ex.TitleScanLastLine = 50
	}
	if ex.TitleMinLen == 0 {
		ex.TitleMinLen = 10
	}
	if ex.TitleMaxLen == 0 {
		ex.TitleMaxLen = 100
	}
	if ex.KeywordVoteLines == 0 {
		ex.KeywordVoteLines = 30
	}
	if ex.LabValueLookahead == 0 {
		ex.LabValueLookahead = 4
	}
	if ex.BirthYearMin == 0 {
		ex.BirthYearMin = 1900
	}
	if ex.BirthYearMax == 0 {
		ex.BirthYearMax = 2024
	}
	if ex.ExamYearMin == 0 {
		ex.ExamYearMin = 1980
	}
	if ex.ExamYearMax == 0 {
		ex.ExamYearMax = 2025
	}

	if cfg.Engine.Comparison.TrendChangeRatio == 0 {
		cfg.Engine.Comparison.TrendChangeRatio = DefaultTrendChangeRatio
	}
	if cfg.Engine.Comparison.LengthDeltaRatio == 0 {
		cfg.Engine.Comparison.LengthDeltaRatio = DefaultLengthDeltaRatio
	}

	dd := &cfg.Engine.Dedup
	if dd.Laboratory.MinKeys == 0 {
		dd.Laboratory = DedupThreshold{MinKeys: 3, MinMatchRatio: 0.80}
	}
	if dd.Imaging.MinKeys == 0 {
		dd.Imaging = DedupThreshold{MinKeys: 2, MinMatchRatio: 0.70}
	}
	if dd.Pathology.MinKeys == 0 {
		dd.Pathology = DedupThreshold{MinKeys: 2, MinMatchRatio: 0.75}
	}
	if dd.Unclassified.MinKeys == 0 {
		dd.Unclassified = DedupThreshold{MinKeys: 2, MinMatchRatio: 0.60}
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
