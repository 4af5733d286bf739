package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maynagashev/gophblog/internal/config"
	"github.com/maynagashev/gophblog/internal/services"
)

// clearEnv сбрасывает переменные окружения конфигурации на время теста.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvServerPort, config.EnvTLSCertFile, config.EnvTLSKeyFile, config.EnvDatabaseDSN,
		config.EnvStorage, config.EnvLogLevel, config.EnvJWTSecret, config.EnvHistoryPolicy,
		config.EnvTraceStdout, config.EnvMinioEndpoint, config.EnvMinioUser, config.EnvMinioPassword,
		config.EnvMinioBucket, config.EnvMinioUseSSL,
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("Все параметры из флагов", func(t *testing.T) {
		clearEnv(t)
		cmd := newRootCmd()
		require.NoError(t, cmd.ParseFlags([]string{
			"--port", "9000",
			"--storage", "memory",
			"--jwt-secret", "flag-secret",
			"--history-policy", "keep",
			"--trace-stdout",
		}))

		cfg, err := loadConfig(cmd.Flags())
		require.NoError(t, err)
		assert.Equal(t, "9000", cfg.Port)
		assert.Equal(t, config.StorageMemory, cfg.Storage)
		assert.Equal(t, "flag-secret", cfg.JWTSecret)
		assert.Equal(t, services.HistoryKeep, cfg.HistoryPolicy)
		assert.True(t, cfg.TraceStdout)
		require.NoError(t, cfg.Validate())
	})

	t.Run("Параметры из переменных окружения", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(config.EnvServerPort, "7000")
		t.Setenv(config.EnvDatabaseDSN, "postgres://env")
		t.Setenv(config.EnvJWTSecret, "env-secret")

		cmd := newRootCmd()
		require.NoError(t, cmd.ParseFlags(nil))

		cfg, err := loadConfig(cmd.Flags())
		require.NoError(t, err)
		assert.Equal(t, "7000", cfg.Port)
		assert.Equal(t, "postgres://env", cfg.DatabaseDSN)
		assert.Equal(t, services.HistoryPurge, cfg.HistoryPolicy)
	})

	t.Run("Флаги имеют приоритет над окружением и файлом", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "server.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: \"6000\"\njwt_secret: file-secret\n"), 0o600))
		t.Setenv(config.EnvServerPort, "7000")

		cmd := newRootCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--port", "9000"}))

		cfg, err := loadConfig(cmd.Flags())
		require.NoError(t, err)
		assert.Equal(t, "9000", cfg.Port)
		assert.Equal(t, "file-secret", cfg.JWTSecret)
	})

	t.Run("Окружение имеет приоритет над файлом", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "server.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: \"6000\"\n"), 0o600))
		t.Setenv(config.EnvServerPort, "7000")

		cmd := newRootCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--config", path}))

		cfg, err := loadConfig(cmd.Flags())
		require.NoError(t, err)
		assert.Equal(t, "7000", cfg.Port)
	})

	t.Run("Ошибка: файл конфигурации не найден", func(t *testing.T) {
		clearEnv(t)
		cmd := newRootCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}))

		_, err := loadConfig(cmd.Flags())
		require.Error(t, err)
	})
}
