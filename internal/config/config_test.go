package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg := GetConfig()

	assert.Equal(t, "citewatch", cfg.AppName)
	assert.Equal(t, "citewatch", cfg.Namespace())
	assert.Equal(t, "/citewatch/v1", cfg.APIPrefix())
	assert.Equal(t, "/ajax", cfg.FallbackPath)
	assert.False(t, cfg.BrokerEnabled())
	assert.Equal(t, 3*time.Second, cfg.ProbeTimeout())
	assert.Equal(t, 10*time.Second, cfg.SendTimeout())
	assert.Zero(t, cfg.RetentionDays)
	assert.Equal(t, "GeoLite2-Country", cfg.GeoLiteEdition)
	assert.Same(t, cfg, GetConfig())
}

func TestGetConfigFromEnvironment(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("CITEWATCH_ENV", Test)
	t.Setenv("CITEWATCH_API_NAMESPACE", "/acme/")
	t.Setenv("CITEWATCH_FALLBACK_PATH", "/wp-admin/admin-ajax.php")
	t.Setenv("CITEWATCH_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("CITEWATCH_PROBE_TIMEOUT_MS", "1500")
	t.Setenv("CITEWATCH_RETENTION_DAYS", "395")

	cfg := GetConfig()

	assert.True(t, cfg.IsTest())
	assert.Equal(t, "/acme/v1", cfg.APIPrefix())
	assert.Equal(t, "/wp-admin/admin-ajax.php", cfg.FallbackPath)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.BrokerEnabled())
	assert.Equal(t, 1500*time.Millisecond, cfg.ProbeTimeout())
	assert.Equal(t, 1, cfg.GetMaxOpenConns())
	assert.Equal(t, 395, cfg.RetentionDays)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment:  Development,
			DatabaseType: SQLiteDatabase,
			APINamespace: "citewatch",
			FallbackPath: "/ajax",
		}
	}
	require.NoError(t, valid().validate())

	cfg := valid()
	cfg.Environment = "staging"
	assert.ErrorContains(t, cfg.validate(), "invalid environment")

	cfg = valid()
	cfg.DatabaseType = "postgres"
	assert.ErrorContains(t, cfg.validate(), "invalid database type")

	cfg = valid()
	cfg.APINamespace = "//"
	assert.ErrorContains(t, cfg.validate(), "namespace")

	cfg = valid()
	cfg.RetentionDays = -1
	assert.ErrorContains(t, cfg.validate(), "retention")

	cfg = valid()
	cfg.FallbackPath = "ajax"
	assert.ErrorContains(t, cfg.validate(), "fallback path")
}

func TestDatabasePathDerivedFromEnvironment(t *testing.T) {
	cfg := &Config{AppName: "citewatch", Environment: Production, DatabasePath: "storage"}
	assert.Equal(t, "storage/citewatch-production.db", cfg.GetDatabasePath())

	cfg = &Config{DatabaseName: "/tmp/custom.db"}
	assert.Equal(t, "/tmp/custom.db", cfg.GetDatabasePath())
}
