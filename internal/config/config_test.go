package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"urlrisk/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "environment: production\n"))
	require.NoError(t, err)

	require.Equal(t, "production", cfg.Environment)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, "linear", cfg.Model.Kind)
	require.Equal(t, 5*time.Second, cfg.Model.Timeout)
	require.Equal(t, []string{"file", "stdout"}, cfg.Audit.Sinks)
	require.Equal(t, "logs/url_decisions.log", cfg.Audit.FilePath)
	require.Equal(t, "url-decisions", cfg.Kafka.Topic)
	require.Equal(t, 2*time.Second, cfg.Audit.AppendTimeout)
	require.Zero(t, cfg.Model.ONNXIntraOpThreads)
	require.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
log:
  level: debug
trust:
  domains:
    - google.com
    - .edu.sa
model:
  bundleDir: /srv/models/v2
  kind: onnx
  maxConcurrency: 4
  onnxIntraOpThreads: 2
audit:
  sinks: [file, postgres]
  outbox: true
  appendTimeout: 500ms
kafka:
  brokers: [kafka-1:9092, kafka-2:9092]
`))
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, []string{"google.com", ".edu.sa"}, cfg.Trust.Domains)
	require.Equal(t, "onnx", cfg.Model.Kind)
	require.Equal(t, 4, cfg.Model.MaxConcurrency)
	require.Equal(t, 2, cfg.Model.ONNXIntraOpThreads)
	require.Equal(t, 500*time.Millisecond, cfg.Audit.AppendTimeout)
	require.True(t, cfg.HasSink(config.SinkPostgres))
	require.False(t, cfg.HasSink(config.SinkKafka))
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *config.Config {
		t.Helper()

		cfg, err := config.Load(writeConfig(t, "environment: test\n"))
		require.NoError(t, err)

		return cfg
	}

	tests := map[string]func(cfg *config.Config){
		"unknown kind":            func(cfg *config.Config) { cfg.Model.Kind = "xgboost" },
		"remote no endpoint":      func(cfg *config.Config) { cfg.Model.Kind = "remote" },
		"no bundle":               func(cfg *config.Config) { cfg.Model.BundleDir = "" },
		"negative concurrency":    func(cfg *config.Config) { cfg.Model.MaxConcurrency = -1 },
		"negative onnx threads":   func(cfg *config.Config) { cfg.Model.ONNXIntraOpThreads = -2 },
		"no sinks":                func(cfg *config.Config) { cfg.Audit.Sinks = nil },
		"unknown sink":            func(cfg *config.Config) { cfg.Audit.Sinks = []string{"s3"} },
		"negative append timeout": func(cfg *config.Config) { cfg.Audit.AppendTimeout = -time.Second },
		"kafka without brokers":   func(cfg *config.Config) { cfg.Audit.Sinks = []string{"kafka"} },
		"file without path": func(cfg *config.Config) {
			cfg.Audit.Sinks = []string{"file"}
			cfg.Audit.FilePath = ""
		},
		"outbox without postgres": func(cfg *config.Config) {
			cfg.Audit.Outbox = true
			cfg.Kafka.Brokers = []string{"localhost:9092"}
		},
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid(t)
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
