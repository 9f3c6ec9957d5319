package providers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hed/internal/structures"
)

const testConfigYAML = `webServer:
  host: 127.0.0.1
  port: 8090
persistence:
  filePath: /tmp/hed/ledger.dat
  saveInterval: 30s
logger:
  level: debug
  mode: 0644
  dir: /tmp/hed/logs
recordStore:
  driver: sqlite3
  dsn: file:health.db
archive:
  driver: local
  dir: /tmp/hed/archive
warehouse:
  dsn: postgres://localhost/warehouse
  dataset: health_analytics
export:
  dailyAt: "03:30"
cache:
  enabled: true
  size: 4
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewConfigProvider_ReadsFileAndDefaults(t *testing.T) {
	path := writeConfig(t, testConfigYAML)

	conf, err := NewConfigProvider(&structures.CliFlags{ConfigPath: path, DebugMode: true})
	require.NoError(t, err)

	assert.Equal(t, AppName, conf.AppName)
	assert.Equal(t, path, conf.Path)
	assert.True(t, conf.Debug)
	assert.Equal(t, 8090, conf.WebServer.Port)
	assert.Equal(t, 30*time.Second, conf.Persistence.SaveInterval)
	assert.Equal(t, "sqlite3", conf.RecordStore.Driver)
	assert.Equal(t, "03:30", conf.Export.DailyAt)

	// defaults
	assert.Equal(t, "daily-exports/", conf.Archive.Prefix)
	assert.Equal(t, "anonymized-health-data", conf.Archive.Classification)
	assert.Equal(t, uint64(3), conf.Export.Retries)
	assert.Equal(t, 2*time.Second, conf.Export.RetryBaseDelay)
	assert.Equal(t, 5*time.Minute, conf.Export.ClockSkew)
	assert.Equal(t, 90, conf.Export.LedgerSize)
	assert.Equal(t, 30*time.Second, conf.Cache.TTL)
}

func TestNewConfigProvider_EnvOverrides(t *testing.T) {
	path := writeConfig(t, testConfigYAML)
	t.Setenv("HED_WAREHOUSE_DSN", "postgres://override/warehouse")
	t.Setenv("HED_EXPORT_DAILY_AT", "04:15")

	conf, err := NewConfigProvider(&structures.CliFlags{ConfigPath: path})
	require.NoError(t, err)

	assert.Equal(t, "postgres://override/warehouse", conf.Warehouse.DSN)
	assert.Equal(t, "04:15", conf.Export.DailyAt)
}

func TestNewConfigProvider_MissingFile(t *testing.T) {
	_, err := NewConfigProvider(&structures.CliFlags{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})
	assert.Error(t, err)
}

func TestNewConfigProvider_InvalidConfig(t *testing.T) {
	path := writeConfig(t, strings.Replace(testConfigYAML, "driver: sqlite3", "driver: mongodb", 1))

	_, err := NewConfigProvider(&structures.CliFlags{ConfigPath: path})
	assert.Error(t, err)
}
