package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maynagashev/gophblog/internal/logging"
	"github.com/maynagashev/gophblog/internal/services"
)

// writeJSON отправляет ответ в формате JSON с указанным статусом.
func writeJSON(w http.ResponseWriter, log logging.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("Ошибка кодирования ответа: %v", err)
	}
}

// writeServiceError сопоставляет ошибки сервисов с HTTP-статусами.
func writeServiceError(w http.ResponseWriter, log logging.Logger, op string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidVersionRef):
		http.Error(w, "Указанная версия не существует", http.StatusBadRequest)
	case errors.Is(err, services.ErrInvalidArgument):
		http.Error(w, "Неверные параметры запроса", http.StatusBadRequest)
	case errors.Is(err, services.ErrPostNotFound):
		http.Error(w, "Статья не найдена", http.StatusNotFound)
	case errors.Is(err, services.ErrVersionNotFound):
		http.Error(w, "Версия не найдена", http.StatusNotFound)
	case errors.Is(err, services.ErrVersionConflict):
		log.Warnf("[%s] Конфликт версий: %v", op, err)
		http.Error(w, "Конфликт версий, повторите запрос", http.StatusConflict)
	default:
		log.Errorf("[%s] Внутренняя ошибка: %v", op, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
	}
}

// postIDParam извлекает положительный ID статьи из пути.
func postIDParam(r *http.Request) (int64, bool) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil || postID <= 0 {
		return 0, false
	}
	return postID, true
}

// intQuery читает целочисленный параметр запроса, подставляя значение по умолчанию.
func intQuery(r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}
