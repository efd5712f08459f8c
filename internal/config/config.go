package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Audit sink names accepted in Audit.Sinks.
const (
	SinkFile     = "file"
	SinkStdout   = "stdout"
	SinkPostgres = "postgres"
	SinkKafka    = "kafka"
)

// Config represents the application configuration structure.
// It contains settings for the environment, HTTP server, database connection,
// trusted domains, the model bundle, audit sinks and graceful shutdown behavior.
type Config struct {
	// Environment specifies the current running environment (development, production, etc.)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`

	// Log contains logging overrides
	Log struct {
		// Level overrides the environment's default level (debug, info, warn, error)
		Level string `env:"LOG_LEVEL" yaml:"level"`
	} `yaml:"log"`

	// HTTP contains all HTTP server related configurations
	HTTP struct {
		// Addr is the address and port the HTTP server will listen on
		Addr string `env:"HTTP_ADDR" env-default:":8080" yaml:"addr"`
		// ReadTimeout is the maximum duration for reading the entire request, including the body
		ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"1m" yaml:"readTimeout"`
		// ReadHeaderTimeout is the amount of time allowed to read request headers
		ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s" yaml:"readHeaderTimeout"`
		// WriteTimeout is the maximum duration before timing out writes of the response
		WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"2m" yaml:"writeTimeout"`
		// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled
		IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"2m" yaml:"idleTimeout"`
		// RequestTimeout is the maximum time allowed for processing a single request
		RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" env-default:"10s" yaml:"requestTimeout"`
		// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header
		MaxHeaderBytes int `env:"HTTP_MAX_HEADER_BYTES" env-default:"0" yaml:"maxHeaderBytes"`
		// MetricsPath defines the URL path where metrics are exposed
		MetricsPath string `env:"HTTP_METRICS_PATH" env-default:"/metrics" yaml:"metricsPath"`
		// CORSOrigins lists the browser origins allowed to call the API. Empty allows any origin.
		CORSOrigins []string `env:"HTTP_CORS_ORIGINS" env-separator:"," yaml:"corsOrigins"`
		// TrustedProxies lists the CIDRs or IPs of reverse proxies whose forwarded
		// client headers are believed. Empty means the peer address is the caller.
		TrustedProxies []string `env:"HTTP_TRUSTED_PROXIES" env-separator:"," yaml:"trustedProxies"`
	} `yaml:"http"`

	// Database contains all database connection related configurations
	Database struct {
		// Username for database authentication
		Username string `env:"DATABASE_USERNAME" env-default:"myuser" yaml:"username"`
		// Password for database authentication
		Password string `env:"DATABASE_PASSWORD" env-default:"mypassword" yaml:"password"`
		// Host is the database server hostname or IP address
		Host string `env:"DATABASE_HOST" env-default:"localhost" yaml:"host"`
		// Port is the database server port number
		Port int `env:"DATABASE_PORT" env-default:"5432" yaml:"port"`
		// SslMode defines the SSL mode for the database connection
		SslMode string `env:"DATABASE_SSL_MODE" env-default:"disable" yaml:"sslMode"`
		// DatabaseName is the name of the database to connect to
		DatabaseName string `env:"DATABASE_NAME" env-default:"urlrisk" yaml:"name"`
		// MaxOpenConnections limits the number of open connections to the database
		MaxOpenConnections int `env:"DATABASE_MAX_OPEN_CONNECTIONS" env-default:"10" yaml:"maxOpenConnections"`
		// MaxIdleConnections limits the number of connections in the idle connection pool
		MaxIdleConnections int `env:"DATABASE_MAX_IDLE_CONNECTIONS" env-default:"8" yaml:"maxIdleConnections"`
		// ConnMaxLifetime is the maximum amount of time a connection may be reused
		ConnMaxLifetime time.Duration `env:"DATABASE_CONNECTION_MAX_LIFETIME" env-default:"3m" yaml:"connMaxLifetime"`
		// ConnMaxIdleTime is the maximum amount of time a connection may be idle
		ConnMaxIdleTime time.Duration `env:"DATABASE_CONNECTION_MAX_IDLE_TIME" env-default:"3m" yaml:"connMaxIdleTime"`
	} `yaml:"database"`

	// Trust contains the trusted-domain registry entries
	Trust struct {
		// Domains lists exact domains ("google.com") and suffix entries (".edu.sa")
		Domains []string `env:"TRUST_DOMAINS" env-separator:"," yaml:"domains"`
	} `yaml:"trust"`

	// Model contains the model bundle and scorer settings
	Model struct {
		// BundleDir holds thresholds.yaml and the scoring artifacts
		BundleDir string `env:"MODEL_BUNDLE_DIR" env-default:"models/v2" yaml:"bundleDir"`
		// Kind selects the scorer: linear, onnx or remote
		Kind string `env:"MODEL_KIND" env-default:"linear" yaml:"kind"`
		// ONNXSharedLibraryPath points to libonnxruntime when Kind is onnx
		ONNXSharedLibraryPath string `env:"ONNXRUNTIME_SHARED_LIBRARY_PATH" yaml:"onnxSharedLibraryPath"`
		// ONNXOutputName is the probabilities output of the onnx model
		ONNXOutputName string `env:"MODEL_ONNX_OUTPUT_NAME" env-default:"probabilities" yaml:"onnxOutputName"`
		// ONNXIntraOpThreads caps the threads of one onnx inference; 0 keeps the runtime default
		ONNXIntraOpThreads int `env:"MODEL_ONNX_INTRA_OP_THREADS" env-default:"0" yaml:"onnxIntraOpThreads"`
		// RemoteEndpoint receives score requests when Kind is remote
		RemoteEndpoint string `env:"MODEL_REMOTE_ENDPOINT" yaml:"remoteEndpoint"`
		// RemoteToken is sent to the remote endpoint as Api-Key
		RemoteToken string `env:"MODEL_REMOTE_TOKEN" yaml:"remoteToken"`
		// RemoteTimeout bounds a single HTTP call to the remote endpoint
		RemoteTimeout time.Duration `env:"MODEL_REMOTE_TIMEOUT" env-default:"3s" yaml:"remoteTimeout"`
		// Timeout bounds a single scoring call, including the wait for a free slot
		Timeout time.Duration `env:"MODEL_TIMEOUT" env-default:"5s" yaml:"timeout"`
		// MaxConcurrency caps concurrent scoring calls; 0 means GOMAXPROCS
		MaxConcurrency int `env:"MODEL_MAX_CONCURRENCY" env-default:"0" yaml:"maxConcurrency"`
	} `yaml:"model"`

	// Audit contains the audit sink settings
	Audit struct {
		// Sinks lists the enabled sinks: file, stdout, postgres, kafka
		Sinks []string `env:"AUDIT_SINKS" env-separator:"," env-default:"file,stdout" yaml:"sinks"`
		// FilePath is the JSONL file appended to by the file sink
		FilePath string `env:"AUDIT_FILE_PATH" env-default:"logs/url_decisions.log" yaml:"filePath"`
		// Outbox enqueues a job forwarding each stored record to kafka (requires the postgres sink)
		Outbox bool `env:"AUDIT_OUTBOX" env-default:"false" yaml:"outbox"`
		// AppendTimeout bounds the audit append of one decision; 0 disables the bound
		AppendTimeout time.Duration `env:"AUDIT_APPEND_TIMEOUT" env-default:"2s" yaml:"appendTimeout"`
	} `yaml:"audit"`

	// Kafka contains the kafka producer settings
	Kafka struct {
		// Brokers is the list of bootstrap brokers
		Brokers []string `env:"KAFKA_BROKERS" env-separator:"," yaml:"brokers"`
		// Topic receives audit records
		Topic string `env:"KAFKA_TOPIC" env-default:"url-decisions" yaml:"topic"`
		// BatchTimeout caps how long the producer waits to fill a batch
		BatchTimeout time.Duration `env:"KAFKA_BATCH_TIMEOUT" env-default:"10ms" yaml:"batchTimeout"`
	} `yaml:"kafka"`

	// Worker contains the background job worker settings
	Worker struct {
		// MaxWorkers is the number of concurrent audit forward jobs
		MaxWorkers int `env:"WORKER_MAX_WORKERS" env-default:"10" yaml:"maxWorkers"`
	} `yaml:"worker"`

	// GracefulShutdownTimeout is the maximum duration to wait for ongoing requests to complete during shutdown
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" env-default:"10s" yaml:"gracefulShutdownTimeout"` //nolint: lll
}

// Load receives the path for yaml config file and returns a filled Config struct.
func Load(configPath string) (*Config, error) {
	var cfg Config
	err := cleanenv.ReadConfig(configPath, &cfg)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	return &cfg, nil
}

// HasSink reports whether the named audit sink is enabled.
func (c *Config) HasSink(name string) bool {
	return slices.Contains(c.Audit.Sinks, name)
}

// Validate checks the settings that depend on each other.
func (c *Config) Validate() error {
	if c.Model.BundleDir == "" {
		return errors.New("model.bundleDir is required")
	}
	switch c.Model.Kind {
	case "linear", "onnx":
	case "remote":
		if c.Model.RemoteEndpoint == "" {
			return errors.New("model.remoteEndpoint is required for the remote scorer")
		}
	default:
		return fmt.Errorf("unknown model.kind %q", c.Model.Kind)
	}
	if c.Model.MaxConcurrency < 0 {
		return errors.New("model.maxConcurrency must not be negative")
	}
	if c.Model.ONNXIntraOpThreads < 0 {
		return errors.New("model.onnxIntraOpThreads must not be negative")
	}

	if len(c.Audit.Sinks) == 0 {
		return errors.New("at least one audit sink is required")
	}
	if c.Audit.AppendTimeout < 0 {
		return errors.New("audit.appendTimeout must not be negative")
	}
	for _, sink := range c.Audit.Sinks {
		switch sink {
		case SinkFile:
			if c.Audit.FilePath == "" {
				return errors.New("audit.filePath is required for the file sink")
			}
		case SinkStdout, SinkPostgres, SinkKafka:
		default:
			return fmt.Errorf("unknown audit sink %q", sink)
		}
	}

	if c.HasSink(SinkKafka) || c.Audit.Outbox {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers is required for the kafka sink and the outbox")
		}
		if c.Kafka.Topic == "" {
			return errors.New("kafka.topic is required for the kafka sink and the outbox")
		}
	}
	if c.Audit.Outbox && !c.HasSink(SinkPostgres) {
		return errors.New("audit.outbox requires the postgres sink")
	}
	if c.Worker.MaxWorkers <= 0 && c.Audit.Outbox {
		return errors.New("worker.maxWorkers must be positive when the outbox is enabled")
	}

	return nil
}
