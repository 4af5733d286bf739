package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Драйвер PostgreSQL
	"github.com/spf13/cobra"

	"github.com/maynagashev/gophblog/internal/config"
	"github.com/maynagashev/gophblog/internal/handlers"
	"github.com/maynagashev/gophblog/internal/logging"
	"github.com/maynagashev/gophblog/internal/metrics"
	appmiddleware "github.com/maynagashev/gophblog/internal/middleware"
	"github.com/maynagashev/gophblog/internal/repository"
	"github.com/maynagashev/gophblog/internal/repository/memory"
	"github.com/maynagashev/gophblog/internal/services"
	"github.com/maynagashev/gophblog/internal/storage"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultShutdownTimeout = 15 * time.Second
)

// Подменяются в тестах.
var (
	newPostgresDB  = repository.NewPostgresDB
	newMinioClient = func(ctx context.Context, cfg storage.MinioConfig) (storage.FileStorage, error) {
		return storage.NewMinioClient(ctx, cfg)
	}
)

// Структура для хранения инициализированных зависимостей.
type dependencies struct {
	db             *sqlx.DB // nil для хранилища в памяти
	fileStorage    storage.FileStorage
	postHandler    *handlers.PostHandler
	versionHandler *handlers.PostVersionHandler
}

// close освобождает ресурсы зависимостей.
func (d *dependencies) close(log logging.Logger) {
	if d.db == nil {
		return
	}
	if err := d.db.Close(); err != nil {
		log.Errorf("Ошибка закрытия соединения с БД: %v", err)
	}
}

// main - точка входа. Выполняет команду и обрабатывает ошибку.
func main() {
	os.Exit(run(os.Args[1:]))
}

// run выполняет команду и возвращает код завершения.
// Конфигурация может быть еще не загружена, поэтому ошибка пишется логгером по умолчанию.
func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		logging.DefaultLogger().Errorf("Ошибка запуска сервера: %v", err)
		return 1
	}
	return 0
}

// newRootCmd создает корневую команду. Без подкоманды запускается сервер.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gophblog-server",
		Short:        "Сервер блога с историей версий статей",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	bindFlags(root)

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Запустить HTTP(S)-сервер",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Применить миграции схемы PostgreSQL",
			RunE:  runMigrate,
		},
	)
	return root
}

// prepare загружает конфигурацию и настраивает логирование.
func prepare(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("неверная конфигурация: %w", err)
	}
	if err = logging.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, nil, err
	}
	return cfg, logging.New("server"), nil
}

// runServe содержит основную логику запуска сервера и возвращает ошибку.
func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := prepare(cmd)
	if err != nil {
		return err
	}
	log.Info("Запуск сервера GophBlog...")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(cfg.TraceStdout)
	if err != nil {
		return err
	}
	defer func() {
		if shutdownErr := shutdownTracing(context.Background()); shutdownErr != nil {
			log.Errorf("Ошибка остановки трассировки: %v", shutdownErr)
		}
	}()

	deps, err := setupDependencies(ctx, cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации зависимостей: %w", err)
	}
	defer deps.close(log)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      setupRouter(deps.postHandler, deps.versionHandler, []byte(cfg.JWTSecret)),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.TLSEnabled() {
			log.Infof("Запуск HTTPS-сервера на порту %s (сертификат: %s)", cfg.Port, cfg.CertFile)
			errCh <- server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
			return
		}
		log.Warnf("TLS не настроен, запуск HTTP-сервера на порту %s", cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err = <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ошибка запуска сервера: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("Получен сигнал остановки, завершение работы...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки сервера: %w", err)
	}
	return nil
}

// runMigrate применяет миграции к PostgreSQL.
func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := prepare(cmd)
	if err != nil {
		return err
	}
	if cfg.Storage != config.StoragePostgres {
		return fmt.Errorf("миграции применимы только к хранилищу %s", config.StoragePostgres)
	}

	db, err := newPostgresDB(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("ошибка инициализации БД: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Errorf("Ошибка закрытия соединения с БД: %v", closeErr)
		}
	}()

	if err = repository.Migrate(cmd.Context(), db); err != nil {
		return err
	}
	log.Info("Миграции успешно применены.")
	return nil
}

// setupDependencies инициализирует и возвращает все необходимые зависимости сервера.
func setupDependencies(ctx context.Context, cfg *config.Config) (*dependencies, error) {
	log := logging.New("server")
	deps := &dependencies{}

	// 1. Хранилище статей и версий
	var (
		postRepo    repository.PostRepository
		versionRepo repository.PostVersionRepository
	)
	switch cfg.Storage {
	case config.StorageMemory:
		memDB, err := memory.New()
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации хранилища в памяти: %w", err)
		}
		postRepo, versionRepo = memDB, memDB
		log.Warn("Используется хранилище в памяти, данные не сохраняются между перезапусками.")
	default:
		db, err := newPostgresDB(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации БД: %w", err)
		}
		deps.db = db
		postRepo = repository.NewPostgresPostRepository(db)
		versionRepo = repository.NewPostgresPostVersionRepository(db)
		log.Info("Соединение с БД успешно установлено.")
	}

	// 2. Объектное хранилище для архивов истории
	var archiver services.HistoryArchiver
	if cfg.MinioEnabled() {
		fileStorage, err := newMinioClient(ctx, cfg.Minio)
		if err != nil {
			deps.close(log)
			return nil, fmt.Errorf("ошибка инициализации клиента MinIO: %w", err)
		}
		deps.fileStorage = fileStorage
		archiver = services.NewHistoryArchiver(fileStorage)
	}

	// 3. Сервисы
	versionService := services.NewPostVersionService(versionRepo, services.NewVersionSequencer())
	postService, err := services.NewPostService(postRepo, versionService, cfg.HistoryPolicy, archiver)
	if err != nil {
		deps.close(log)
		return nil, fmt.Errorf("ошибка инициализации сервиса статей: %w", err)
	}
	log.Infof("Политика истории при удалении статьи: %s", cfg.HistoryPolicy)

	// 4. Обработчики
	deps.postHandler = handlers.NewPostHandler(postService)
	deps.versionHandler = handlers.NewPostVersionHandler(versionService)

	return deps, nil
}

// setupRouter настраивает и возвращает роутер chi.
func setupRouter(
	postHandler *handlers.PostHandler,
	versionHandler *handlers.PostVersionHandler,
	jwtSecret []byte,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	authenticated := appmiddleware.Authenticator(jwtSecret)

	// --- Маршруты --- //
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong\n"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/posts", func(r chi.Router) {
		// Изменение статей требует аутентификации
		r.With(authenticated).Post("/", postHandler.CreatePost)
		r.Get("/{postID}", postHandler.GetPost)
		r.With(authenticated).Put("/{postID}", postHandler.UpdatePost)
		r.With(authenticated).Delete("/{postID}", postHandler.DeletePost)

		// История версий открыта для чтения
		r.Route("/{postID}/versions", func(r chi.Router) {
			r.Get("/", versionHandler.ListVersions)
			r.Get("/page", versionHandler.ListVersionsPage)
			r.Get("/latest", versionHandler.GetLatestVersion)
			r.Get("/stats", versionHandler.GetStats)
			r.Get("/compare", versionHandler.CompareVersions)
			r.Get("/{version}", versionHandler.GetVersion)
			r.With(authenticated).Delete("/", versionHandler.DeleteHistory)
		})
	})
	return r
}
