package infra

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir меняет рабочую директорию на dir и восстанавливает её по завершении
// теста (эквивалент t.Chdir из Go 1.24+, недоступного в текущем toolchain).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
}

func TestLoadConfig_Defaults(t *testing.T) {
	// Уходим в пустую директорию, чтобы не зацепить реальный config.yaml
	chdir(t, t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "RESTRICTED", cfg.Guard.TrustLevel)
	assert.True(t, cfg.Guard.AllOrNone)
	assert.False(t, cfg.Guard.RequireAllFields)
	assert.Equal(t, 1000, cfg.Audit.BufferSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Audit.FlushInterval)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9000
guard:
  trust_level: "ELEVATED"
  require_all_fields: true
  required_fields:
    Account:
      - Industry
      - Name
`
	require.NoError(t, os.WriteFile(dir+"/config.yaml", []byte(yaml), 0o644))
	chdir(t, dir)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "ELEVATED", cfg.Guard.TrustLevel)
	assert.True(t, cfg.Guard.RequireAllFields)
	assert.Equal(t, []string{"Industry", "Name"}, cfg.Guard.RequiredFields["Account"])
	// Незаданные секции остаются на дефолтах
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("GUARD_TRUST_LEVEL", "ELEVATED")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "ELEVATED", cfg.Guard.TrustLevel)
}
