package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maynagashev/gophblog/internal/config"
	"github.com/maynagashev/gophblog/internal/services"
)

// Имена флагов командной строки.
const (
	flagConfig        = "config"
	flagPort          = "port"
	flagCertFile      = "cert-file"
	flagKeyFile       = "key-file"
	flagDatabaseDSN   = "database-dsn"
	flagStorage       = "storage"
	flagLogLevel      = "log-level"
	flagJWTSecret     = "jwt-secret"
	flagHistoryPolicy = "history-policy"
	flagTraceStdout   = "trace-stdout"
)

// bindFlags регистрирует флаги, общие для всех команд сервера.
func bindFlags(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.String(flagConfig, "", "Путь к YAML-файлу конфигурации")
	fs.String(flagPort, "",
		fmt.Sprintf("Порт HTTP(S)-сервера (env: %s)", config.EnvServerPort))
	fs.String(flagCertFile, "",
		fmt.Sprintf("Путь к файлу TLS-сертификата (env: %s)", config.EnvTLSCertFile))
	fs.String(flagKeyFile, "",
		fmt.Sprintf("Путь к файлу TLS-ключа (env: %s)", config.EnvTLSKeyFile))
	fs.String(flagDatabaseDSN, "",
		fmt.Sprintf("Строка подключения к базе данных (env: %s)", config.EnvDatabaseDSN))
	fs.String(flagStorage, "",
		fmt.Sprintf("Хранилище: %s или %s (env: %s)", config.StoragePostgres, config.StorageMemory, config.EnvStorage))
	fs.String(flagLogLevel, "",
		fmt.Sprintf("Уровень логирования: debug, info, warn, error (env: %s)", config.EnvLogLevel))
	fs.String(flagJWTSecret, "",
		fmt.Sprintf("Секрет для проверки JWT (env: %s)", config.EnvJWTSecret))
	fs.String(flagHistoryPolicy, "",
		fmt.Sprintf("Что делать с историей при удалении статьи: %s, %s, %s (env: %s)",
			services.HistoryKeep, services.HistoryPurge, services.HistoryArchive, config.EnvHistoryPolicy))
	fs.Bool(flagTraceStdout, false,
		fmt.Sprintf("Выводить трассировку в stdout (env: %s)", config.EnvTraceStdout))
}

// loadConfig собирает конфигурацию. Приоритет: флаги, окружение, файл, значения по умолчанию.
func loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	path, err := fs.GetString(flagConfig)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err = applyFlags(fs, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags переносит в конфигурацию только явно заданные флаги.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	strFlags := map[string]*string{
		flagPort:        &cfg.Port,
		flagCertFile:    &cfg.CertFile,
		flagKeyFile:     &cfg.KeyFile,
		flagDatabaseDSN: &cfg.DatabaseDSN,
		flagStorage:     &cfg.Storage,
		flagLogLevel:    &cfg.LogLevel,
		flagJWTSecret:   &cfg.JWTSecret,
	}
	for name, target := range strFlags {
		if !fs.Changed(name) {
			continue
		}
		value, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*target = value
	}

	if fs.Changed(flagHistoryPolicy) {
		value, err := fs.GetString(flagHistoryPolicy)
		if err != nil {
			return err
		}
		cfg.HistoryPolicy = services.HistoryPolicy(value)
	}
	if fs.Changed(flagTraceStdout) {
		value, err := fs.GetBool(flagTraceStdout)
		if err != nil {
			return err
		}
		cfg.TraceStdout = value
	}
	return nil
}
