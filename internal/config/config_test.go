package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/referta/referta/internal/config"
)

// validConfig returns a Config that passes Validate() with all required fields set.
func validConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Database.User = "referta"
	cfg.Database.Password = "secret"
	return cfg
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_MissingDatabaseHost(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Database.Host = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.host")
}

func TestConfig_Validate_MissingDatabaseUser(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Database.User = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.user")
}

func TestConfig_Validate_InvalidServerPort(t *testing.T) {
	t.Parallel()
	cases := []int{0, -1, 65536, 100000}
	for _, p := range cases {
		p := p
		t.Run("", func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			cfg.Server.Port = p
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "server.port")
		})
	}
}

func TestConfig_Validate_InvalidServerMode(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Server.Mode = "production"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.mode")
}

func TestConfig_Validate_MissingRedisAddr(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Redis.Addr = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.addr")
}

func TestConfig_Validate_KafkaDisabledSkipsBrokerCheck(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Kafka.Enabled = false
	cfg.Kafka.Brokers = nil
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_KafkaEnabledRequiresBrokers(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = nil
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka.brokers")
}

func TestConfig_Validate_MinIOEnabledRequiresBucket(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.MinIO.Enabled = true
	cfg.MinIO.Bucket = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minio.bucket")
}

func TestConfig_Validate_MissingInferenceModel(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Inference.Model = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inference.model")
}

func TestConfig_Validate_InvalidTrendChangeRatio(t *testing.T) {
	t.Parallel()
	for _, r := range []float64{-0.2, 1.0, 1.5} {
		r := r
		t.Run("", func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			cfg.Engine.Comparison.TrendChangeRatio = r
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "trend_change_ratio")
		})
	}
}

func TestConfig_Validate_InvalidDedupThreshold(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Engine.Dedup.Imaging.MinMatchRatio = 1.3
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.dedup.imaging")
}

func TestConfig_Validate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Log.Level = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestApplyDefaults_EngineThresholds(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	assert.Equal(t, 5, cfg.Engine.MaxBatchSize)
	assert.Equal(t, 0.20, cfg.Engine.Comparison.TrendChangeRatio)

	assert.Equal(t, 3, cfg.Engine.Dedup.Laboratory.MinKeys)
	assert.Equal(t, 0.80, cfg.Engine.Dedup.Laboratory.MinMatchRatio)
	assert.Equal(t, 2, cfg.Engine.Dedup.Imaging.MinKeys)
	assert.Equal(t, 0.70, cfg.Engine.Dedup.Imaging.MinMatchRatio)
	assert.Equal(t, 2, cfg.Engine.Dedup.Pathology.MinKeys)
	assert.Equal(t, 0.75, cfg.Engine.Dedup.Pathology.MinMatchRatio)
	assert.Equal(t, 2, cfg.Engine.Dedup.Unclassified.MinKeys)
	assert.Equal(t, 0.60, cfg.Engine.Dedup.Unclassified.MinMatchRatio)
}

func TestApplyDefaults_ExtractionWindow(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	assert.Equal(t, 5, cfg.Engine.Extraction.TitleScanFirstLine)
	assert.Equal(t, 50, cfg.Engine.Extraction.TitleScanLastLine)
	assert.Equal(t, 10, cfg.Engine.Extraction.TitleMinLen)
	assert.Equal(t, 100, cfg.Engine.Extraction.TitleMaxLen)
	assert.Equal(t, 4, cfg.Engine.Extraction.LabValueLookahead)
	assert.Equal(t, 1900, cfg.Engine.Extraction.BirthYearMin)
	assert.Equal(t, 1980, cfg.Engine.Extraction.ExamYearMin)
}

func TestApplyDefaults_ExplicitValuesWin(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Engine.MaxBatchSize = 3
	cfg.Inference.Model = "mistral"
	config.ApplyDefaults(cfg)

	assert.Equal(t, 3, cfg.Engine.MaxBatchSize)
	assert.Equal(t, "mistral", cfg.Inference.Model)
}
