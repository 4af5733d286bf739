// Package config собирает конфигурацию сервера из файла, окружения и флагов.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/maynagashev/gophblog/internal/services"
	"github.com/maynagashev/gophblog/internal/storage"
)

const (
	// StoragePostgres - хранилище статей и версий в PostgreSQL.
	StoragePostgres = "postgres"
	// StorageMemory - хранилище в памяти процесса, данные не переживают перезапуск.
	StorageMemory = "memory"

	defaultServerPort  = "8443"
	defaultMinioBucket = "gophblog-history"
)

// Переменные окружения.
const (
	EnvServerPort    = "SERVER_PORT"
	EnvTLSCertFile   = "TLS_CERT_FILE"
	EnvTLSKeyFile    = "TLS_KEY_FILE"
	EnvDatabaseDSN   = "DATABASE_DSN"
	EnvStorage       = "STORAGE_BACKEND"
	EnvLogLevel      = "LOG_LEVEL"
	EnvJWTSecret     = "JWT_SECRET" //nolint:gosec // Имя переменной окружения, а не секрет
	EnvHistoryPolicy = "HISTORY_POLICY"
	EnvTraceStdout   = "TRACE_STDOUT"
	EnvMinioEndpoint = "MINIO_ENDPOINT"
	EnvMinioUser     = "MINIO_USER"
	EnvMinioPassword = "MINIO_PASSWORD" //nolint:gosec // Имя переменной окружения, а не секрет
	EnvMinioBucket   = "MINIO_BUCKET"
	EnvMinioUseSSL   = "MINIO_USE_SSL"
)

// Config хранит конфигурацию сервера.
type Config struct {
	Port          string                 `yaml:"port"`
	CertFile      string                 `yaml:"cert_file"`
	KeyFile       string                 `yaml:"key_file"`
	Storage       string                 `yaml:"storage"`
	DatabaseDSN   string                 `yaml:"database_dsn"`
	LogLevel      string                 `yaml:"log_level"`
	JWTSecret     string                 `yaml:"jwt_secret"`
	HistoryPolicy services.HistoryPolicy `yaml:"history_policy"`
	TraceStdout   bool                   `yaml:"trace_stdout"`
	Minio         storage.MinioConfig    `yaml:"minio"`
}

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() *Config {
	return &Config{
		Port:          defaultServerPort,
		Storage:       StoragePostgres,
		LogLevel:      "info",
		HistoryPolicy: services.HistoryPurge,
		Minio: storage.MinioConfig{
			BucketName: defaultMinioBucket,
		},
	}
}

// Load читает конфигурацию: значения по умолчанию, затем YAML-файл (если указан),
// затем переменные окружения.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile накладывает значения из YAML-файла поверх текущих.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ошибка чтения файла конфигурации %s: %w", path, err)
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("ошибка разбора файла конфигурации %s: %w", path, err)
	}
	return nil
}

// ApplyEnv накладывает значения переменных окружения поверх текущих.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strVars := map[string]*string{
		EnvServerPort:    &c.Port,
		EnvTLSCertFile:   &c.CertFile,
		EnvTLSKeyFile:    &c.KeyFile,
		EnvDatabaseDSN:   &c.DatabaseDSN,
		EnvStorage:       &c.Storage,
		EnvLogLevel:      &c.LogLevel,
		EnvJWTSecret:     &c.JWTSecret,
		EnvMinioEndpoint: &c.Minio.Endpoint,
		EnvMinioUser:     &c.Minio.AccessKeyID,
		EnvMinioPassword: &c.Minio.SecretAccessKey,
		EnvMinioBucket:   &c.Minio.BucketName,
	}
	for name, target := range strVars {
		if value, ok := lookup(name); ok {
			*target = value
		}
	}

	if value, ok := lookup(EnvHistoryPolicy); ok {
		c.HistoryPolicy = services.HistoryPolicy(value)
	}

	boolVars := map[string]*bool{
		EnvTraceStdout: &c.TraceStdout,
		EnvMinioUseSSL: &c.Minio.UseSSL,
	}
	for name, target := range boolVars {
		value, ok := lookup(name)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("неверное значение %s=%q: %w", name, value, err)
		}
		*target = parsed
	}
	return nil
}

// MinioEnabled сообщает, настроено ли объектное хранилище.
func (c *Config) MinioEnabled() bool {
	return c.Minio.Endpoint != ""
}

// TLSEnabled сообщает, заданы ли сертификат и ключ.
func (c *Config) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// Validate проверяет обязательные параметры и их сочетания.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("не указан порт сервера (--port или "+EnvServerPort+")"))
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		errs = append(errs, errors.New("сертификат и ключ TLS задаются вместе ("+
			EnvTLSCertFile+", "+EnvTLSKeyFile+")"))
	}

	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("не указана строка подключения к БД (--database-dsn или "+EnvDatabaseDSN+")"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("неизвестное хранилище %q (допустимо: %s, %s)",
			c.Storage, StoragePostgres, StorageMemory))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("неизвестный уровень логирования: %s", c.LogLevel))
	}

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("не указан секрет JWT (--jwt-secret или "+EnvJWTSecret+")"))
	}

	if _, err := services.ParseHistoryPolicy(string(c.HistoryPolicy)); err != nil {
		errs = append(errs, err)
	} else if c.HistoryPolicy == services.HistoryArchive {
		if !c.MinioEnabled() || c.Minio.BucketName == "" {
			errs = append(errs, errors.New("для политики archive требуются "+EnvMinioEndpoint+" и "+EnvMinioBucket))
		}
	}

	return errors.Join(errs...)
}
