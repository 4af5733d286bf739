// Package metrics содержит Prometheus-метрики истории версий.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Значения метки result для VersionSaves.
const (
	ResultSaved    = "saved"
	ResultConflict = "conflict"
	ResultError    = "error"
)

var (
	// VersionSaves считает попытки сохранения снимка по результату.
	VersionSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gophblog_post_version_saves_total",
		Help: "Попытки сохранения версии статьи по результату",
	}, []string{"result"})

	// VersionSaveDuration измеряет время сохранения снимка вместе с повтором.
	VersionSaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gophblog_post_version_save_duration_seconds",
		Help:    "Длительность сохранения версии статьи",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	// HistoryPurges считает удаления истории статей.
	HistoryPurges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gophblog_post_history_purges_total",
		Help: "Количество удалений истории статей",
	})

	// PurgedVersions считает удаленные снимки.
	PurgedVersions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gophblog_post_versions_purged_total",
		Help: "Количество удаленных версий статей",
	})

	// Comparisons считает сравнения версий по наличию изменений.
	Comparisons = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gophblog_post_version_comparisons_total",
		Help: "Сравнения версий статей",
	}, []string{"changed"})
)

// Handler возвращает HTTP-обработчик для /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
