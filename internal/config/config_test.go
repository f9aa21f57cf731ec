package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
mysql:
  host: db.local
  database: fintrack
redis:
  host: cache.local
kafka:
  brokers: [k1:9092, k2:9092]
auth:
  jwt_secret: s3cret
lock:
  retry_interval_ms: 20
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, StoreDriverMySQL, cfg.Store.Driver)
	assert.Equal(t, 3306, cfg.MySQL.Port)
	assert.True(t, cfg.Redis.Enabled())
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "account-events", cfg.Kafka.Topic.AccountEvents)
	assert.Equal(t, 10*time.Second, cfg.Lock.TTL())
	assert.Equal(t, 20*time.Millisecond, cfg.Lock.RetryInterval())
	assert.Equal(t, 200*time.Millisecond, cfg.Outbox.Interval())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: memory
auth:
  jwt_secret: from-file
`)
	t.Setenv("FINTRACK_AUTH_JWT_SECRET", "from-env")
	t.Setenv("FINTRACK_SERVER_PORT", "7070")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadConfig_EnvOnly(t *testing.T) {
	t.Setenv("FINTRACK_STORE_DRIVER", "memory")
	t.Setenv("FINTRACK_AUTH_JWT_SECRET", "x")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"mysql without host", "auth:\n  jwt_secret: x\n"},
		{"unknown driver", "store:\n  driver: mongo\nauth:\n  jwt_secret: x\n"},
		{"missing secret", "store:\n  driver: memory\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
