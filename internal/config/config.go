// Package config loads client settings from a YAML file, for tools built
// on the StorRi clients that want file-driven configuration instead of
// wiring options in code.
package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/StorRi/internal/blob"
	"github.com/koustreak/StorRi/internal/errs"
	"github.com/koustreak/StorRi/internal/logger"
	"github.com/koustreak/StorRi/internal/queue"
	"github.com/koustreak/StorRi/internal/transport"
)

// Config holds everything needed to construct the blob and queue clients.
type Config struct {
	// BlobEndpoint is the blob service URL, e.g.
	// "https://account.blob.example.net".
	BlobEndpoint string `yaml:"blob_endpoint"`

	// QueueEndpoint is the queue service URL.
	QueueEndpoint string `yaml:"queue_endpoint"`

	// SASToken is an optional shared access signature appended to every
	// request. Leading "?" is accepted.
	SASToken string `yaml:"sas_token"`

	Retry RetryConfig `yaml:"retry"`
	Log   LogConfig   `yaml:"log"`
}

// RetryConfig tunes the transport and the download engine.
type RetryConfig struct {
	// TryTimeout bounds one request attempt, including reading the body.
	TryTimeout time.Duration `yaml:"try_timeout"`

	// MaxRetries is the download engine's resume budget.
	MaxRetries int `yaml:"max_retries"`

	// InitialBackoff is the first pause before a resume attempt.
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the exponential growth between resumes.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// LogConfig tunes client logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. "" means info.
	Level string `yaml:"level"`

	// Format is "json" or "console". "" means json.
	Format string `yaml:"format"`
}

// DefaultConfig returns settings suitable for production use against the
// given endpoints.
func DefaultConfig(blobEndpoint, queueEndpoint string) *Config {
	return &Config{
		BlobEndpoint:  blobEndpoint,
		QueueEndpoint: queueEndpoint,
		Retry: RetryConfig{
			TryTimeout:     60 * time.Second,
			MaxRetries:     5,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     8 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindIOFailed, "reading config file", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "parsing config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BlobClient constructs a blob service client from the config: endpoint,
// SAS credential, per-try timeout, and logger all come from the file.
func (c *Config) BlobClient() (*blob.Client, error) {
	if c.BlobEndpoint == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "config.BlobClient", "", "blob_endpoint is not set")
	}
	log := c.buildLogger()
	return blob.NewClient(c.BlobEndpoint, &blob.ClientOptions{
		Transport: c.buildTransport(log),
		Logger:    log,
	})
}

// QueueClient constructs a queue service client from the config.
func (c *Config) QueueClient() (*queue.Client, error) {
	if c.QueueEndpoint == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "config.QueueClient", "", "queue_endpoint is not set")
	}
	log := c.buildLogger()
	return queue.NewClient(c.QueueEndpoint, &queue.ClientOptions{
		Transport: c.buildTransport(log),
		Logger:    log,
	})
}

// DownloadRetry returns the download engine's resume bounds from the
// config, for passing as DownloadOptions.Retry.
func (c *Config) DownloadRetry() blob.RetryOptions {
	return blob.RetryOptions{
		MaxRetries:     c.Retry.MaxRetries,
		InitialBackoff: c.Retry.InitialBackoff,
		MaxBackoff:     c.Retry.MaxBackoff,
	}
}

func (c *Config) buildLogger() *logger.Logger {
	lc := logger.DefaultConfig()
	if c.Log.Level != "" {
		lc.Level = c.Log.Level
	}
	if c.Log.Format != "" {
		lc.Format = c.Log.Format
	}
	return logger.New(lc)
}

func (c *Config) buildTransport(log *logger.Logger) transport.Transport {
	opts := &transport.Options{
		TryTimeout: c.Retry.TryTimeout,
		Logger:     log,
	}
	if c.SASToken != "" {
		opts.Credential = transport.NewSASCredential(c.SASToken)
	}
	return transport.NewClient(opts)
}

// Validate checks the config for values the clients would reject later.
func (c *Config) Validate() error {
	const op = "config.Validate"
	if c.BlobEndpoint == "" && c.QueueEndpoint == "" {
		return errs.New(errs.ErrKindInvalidInput, op, "", "at least one of blob_endpoint and queue_endpoint is required")
	}
	if c.Retry.TryTimeout < 0 {
		return errs.New(errs.ErrKindInvalidInput, op, "", "retry.try_timeout must be non-negative")
	}
	if c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < 0 {
		return errs.New(errs.ErrKindInvalidInput, op, "", "retry backoffs must be non-negative")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errs.New(errs.ErrKindInvalidInput, op, "",
			fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return errs.New(errs.ErrKindInvalidInput, op, "",
			fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	return nil
}
