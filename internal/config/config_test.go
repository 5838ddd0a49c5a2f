package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Holds.TTL)
	assert.Equal(t, 3*time.Second, cfg.Holds.LockWait)
	assert.Equal(t, 5*time.Second, cfg.Ledger.CacheTTL)
	assert.Equal(t, 100, cfg.Sweeper.BatchSize)
	assert.Equal(t, BackendRedis, cfg.Locks.Backend)
	assert.Equal(t, []string{"http://localhost:5173", "http://127.0.0.1:5173"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.NeedsRedis())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FLASHSALE_SERVER_PORT", "9090")
	t.Setenv("FLASHSALE_HOLDS_TTL", "45s")
	t.Setenv("FLASHSALE_LOCKS_BACKEND", "memory")
	t.Setenv("FLASHSALE_LEDGER_CACHE_BACKEND", "memory")
	t.Setenv("FLASHSALE_SERVER_CORS_ORIGINS", "https://a.test, https://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Holds.TTL)
	assert.Equal(t, BackendMemory, cfg.Locks.Backend)
	assert.False(t, cfg.NeedsRedis())
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.Server.CORSOrigins)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FLASHSALE_LOCKS_BACKEND", "zookeeper")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locks.backend")
}

func TestValidate_LeaseShorterThanWait(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Holds.LockLease = time.Second
	cfg.Holds.LockWait = 2 * time.Second
	require.Error(t, cfg.Validate())
}

func TestParseEnv_DoesNotOverrideExisting(t *testing.T) {
	t.Setenv("FLASHSALE_TEST_KEEP", "original")
	os.Unsetenv("FLASHSALE_TEST_NEW")
	t.Cleanup(func() { os.Unsetenv("FLASHSALE_TEST_NEW") })

	input := "\ufeff# comment\nexport FLASHSALE_TEST_NEW=\"from file\"\nFLASHSALE_TEST_KEEP=overridden\nnot-a-pair\n"
	require.NoError(t, parseEnv(strings.NewReader(input)))

	assert.Equal(t, "from file", os.Getenv("FLASHSALE_TEST_NEW"))
	assert.Equal(t, "original", os.Getenv("FLASHSALE_TEST_KEEP"))
}
