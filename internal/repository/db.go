package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Драйвер PostgreSQL, импортируем для регистрации

	"github.com/maynagashev/gophblog/internal/logging"
)

const (
	maxOpenConns    = 25              // Максимальное количество открытых соединений
	maxIdleConns    = 25              // Максимальное количество простаивающих соединений
	connMaxLifetime = 5 * time.Minute // Максимальное время жизни соединения
	connMaxIdleTime = 5 * time.Minute // Максимальное время простоя соединения
)

// Коды ошибок PostgreSQL.
const (
	pgUniqueViolationCode = "23505"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewPostgresDB создает и возвращает новое подключение к PostgreSQL.
func NewPostgresDB(dsn string) (*sqlx.DB, error) {
	log := logging.New("repository")
	log.Info("Подключение к PostgreSQL...")

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	log.Info("Подключение к PostgreSQL успешно установлено.")
	return db, nil
}

// Migrate применяет встроенные SQL-миграции по порядку имен файлов.
// Миграции идемпотентны (IF NOT EXISTS), поэтому повторный запуск безопасен.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	log := logging.New("repository")

	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("ошибка чтения списка миграций: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		script, readErr := migrationsFS.ReadFile(name)
		if readErr != nil {
			return fmt.Errorf("ошибка чтения миграции %s: %w", name, readErr)
		}
		if _, err = db.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("ошибка применения миграции %s: %w", name, err)
		}
		log.Infof("[Migrate] Миграция %s применена", name)
	}
	return nil
}
