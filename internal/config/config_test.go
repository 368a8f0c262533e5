package config_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/koustreak/StorRi/internal/config"
	"github.com/koustreak/StorRi/internal/errs"
	"github.com/koustreak/StorRi/internal/stortest"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storri.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
blob_endpoint: https://acct.blob.example.net
queue_endpoint: https://acct.queue.example.net
sas_token: "sv=2023&sig=abc"
retry:
  try_timeout: 30s
  max_retries: 3
  initial_backoff: 250ms
  max_backoff: 4s
log:
  level: debug
  format: console
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://acct.blob.example.net", cfg.BlobEndpoint)
	require.Equal(t, "https://acct.queue.example.net", cfg.QueueEndpoint)
	require.Equal(t, "sv=2023&sig=abc", cfg.SASToken)
	require.Equal(t, 30*time.Second, cfg.Retry.TryTimeout)
	require.Equal(t, 3, cfg.Retry.MaxRetries)
	require.Equal(t, 250*time.Millisecond, cfg.Retry.InitialBackoff)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.True(t, errs.IsIOFailed(err))
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "blob_endpoint: [unclosed")
	_, err := config.Load(path)
	require.Error(t, err)
	require.True(t, errs.IsInvalidInput(err))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no endpoints", "log:\n  level: info\n"},
		{"bad level", "blob_endpoint: https://x\nlog:\n  level: loud\n"},
		{"bad format", "blob_endpoint: https://x\nlog:\n  format: xmlish\n"},
		{"negative timeout", "blob_endpoint: https://x\nretry:\n  try_timeout: -1s\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.body))
			require.Error(t, err)
			require.True(t, errs.IsInvalidInput(err))
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.DefaultConfig("https://acct.blob.example.net", "https://acct.queue.example.net")
	require.NoError(t, cfg.Validate())
	require.Equal(t, 60*time.Second, cfg.Retry.TryTimeout)
	require.Equal(t, 5, cfg.Retry.MaxRetries)
}

func TestConfigBuildsWorkingClients(t *testing.T) {
	srv := stortest.New()
	t.Cleanup(srv.Close)

	path := writeConfig(t, fmt.Sprintf(`
blob_endpoint: %s
queue_endpoint: %s
retry:
  try_timeout: 10s
  max_retries: 2
  initial_backoff: 1ms
  max_backoff: 2ms
log:
  level: error
`, srv.BlobEndpoint(), srv.QueueEndpoint()))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	ctx := context.Background()

	bc, err := cfg.BlobClient()
	require.NoError(t, err)
	require.NoError(t, bc.CreateContainer(ctx, "from-config"))

	qc, err := cfg.QueueClient()
	require.NoError(t, err)
	require.NoError(t, qc.Create(ctx, "from-config", nil))

	retry := cfg.DownloadRetry()
	require.Equal(t, 2, retry.MaxRetries)
	require.Equal(t, time.Millisecond, retry.InitialBackoff)
	require.Equal(t, 2*time.Millisecond, retry.MaxBackoff)
}

func TestClientConstructionRequiresEndpoint(t *testing.T) {
	cfg := config.DefaultConfig("https://acct.blob.example.net", "")

	_, err := cfg.QueueClient()
	require.Error(t, err)
	require.True(t, errs.IsInvalidInput(err))

	cfg = config.DefaultConfig("", "https://acct.queue.example.net")
	_, err = cfg.BlobClient()
	require.Error(t, err)
	require.True(t, errs.IsInvalidInput(err))
}
