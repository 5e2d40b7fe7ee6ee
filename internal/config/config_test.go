package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HOST", "PORT", "STORE", "FEED_TIMEOUT", "SAVE_DEBOUNCE", "CRM_FEED_URLS", "ALLOW_ORIGINS"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "127.0.0.1:8082", cfg.Addr())
	assert.Equal(t, StoreFile, cfg.Store)
	assert.Equal(t, 30*time.Second, cfg.FeedTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.SaveDebounce)
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
	assert.Nil(t, cfg.CRMFeedURLs)
	assert.Equal(t, 10, cfg.BackupKeep)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("FEED_TIMEOUT", "45")
	t.Setenv("SAVE_DEBOUNCE", "250ms")
	t.Setenv("CRM_FEED_URLS", " http://a/crm.xml , ,http://b/crm.xml")
	t.Setenv("STORE", "Postgres")
	t.Setenv("DATABASE_URL", "")

	cfg := Load()
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.FeedTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.SaveDebounce)
	assert.Equal(t, []string{"http://a/crm.xml", "http://b/crm.xml"}, cfg.CRMFeedURLs)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Error(t, cfg.Validate())

	cfg.DatabaseURL = "postgres://localhost/pricing"
	assert.NoError(t, cfg.Validate())
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("PORT", "abc")
	t.Setenv("FEED_TIMEOUT", "-5s")
	cfg := Load()
	assert.Equal(t, 8082, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.FeedTimeout)
}
