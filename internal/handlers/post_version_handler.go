package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maynagashev/gophblog/internal/logging"
	"github.com/maynagashev/gophblog/internal/models"
	"github.com/maynagashev/gophblog/internal/services"
)

const defaultPageSize = 10

// PostVersionHandler обрабатывает запросы к истории версий статей.
type PostVersionHandler struct {
	versionService services.PostVersionService
	log            logging.Logger
}

// NewPostVersionHandler создает новый экземпляр PostVersionHandler.
func NewPostVersionHandler(versionService services.PostVersionService) *PostVersionHandler {
	return &PostVersionHandler{
		versionService: versionService,
		log:            logging.New("handlers"),
	}
}

// ListVersions возвращает всю историю статьи от новых версий к старым.
func (h *PostVersionHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	postID, ok := postIDParam(r)
	if !ok {
		http.Error(w, "Неверный ID статьи", http.StatusBadRequest)
		return
	}

	history, err := h.versionService.GetHistory(r.Context(), postID)
	if err != nil {
		writeServiceError(w, h.log, "ListVersions", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, history)
}

// ListVersionsPage возвращает страницу истории.
// Параметры: page (с нуля, по умолчанию 0) и size (по умолчанию 10).
func (h *PostVersionHandler) ListVersionsPage(w http.ResponseWriter, r *http.Request) {
	postID, ok := postIDParam(r)
	if !ok {
		http.Error(w, "Неверный ID статьи", http.StatusBadRequest)
		return
	}

	page, pageOK := intQuery(r, "page", 0)
	size, sizeOK := intQuery(r, "size", defaultPageSize)
	if !pageOK || !sizeOK {
		http.Error(w, "Неверные параметры пагинации", http.StatusBadRequest)
		return
	}

	result, err := h.versionService.GetHistoryPage(r.Context(), postID, page, size)
	if err != nil {
		writeServiceError(w, h.log, "ListVersionsPage", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, result)
}

// GetLatestVersion возвращает последнюю версию статьи.
func (h *PostVersionHandler) GetLatestVersion(w http.ResponseWriter, r *http.Request) {
	postID, ok := postIDParam(r)
	if !ok {
		http.Error(w, "Неверный ID статьи", http.StatusBadRequest)
		return
	}

	latest, err := h.versionService.GetLatestVersion(r.Context(), postID)
	if err != nil {
		writeServiceError(w, h.log, "GetLatestVersion", err)
		return
	}
	if latest == nil {
		http.Error(w, "Версия не найдена", http.StatusNotFound)
		return
	}
	writeJSON(w, h.log, http.StatusOK, latest)
}

// GetStats возвращает количество версий статьи.
func (h *PostVersionHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	postID, ok := postIDParam(r)
	if !ok {
		http.Error(w, "Неверный ID статьи", http.StatusBadRequest)
		return
	}

	count, err := h.versionService.GetVersionCount(r.Context(), postID)
	if err != nil {
		writeServiceError(w, h.log, "GetStats", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, models.VersionStats{PostID: postID, TotalVersions: count})
}

// CompareVersions сравнивает версии v1 и v2 статьи.
func (h *PostVersionHandler) CompareVersions(w http.ResponseWriter, r *http.Request) {
	postID, ok := postIDParam(r)
	if !ok {
		http.Error(w, "Неверный ID статьи", http.StatusBadRequest)
		return
	}

	v1, err1 := strconv.Atoi(r.URL.Query().Get("v1"))
	v2, err2 := strconv.Atoi(r.URL.Query().Get("v2"))
	if err1 != nil || err2 != nil {
		http.Error(w, "Параметры v1 и v2 обязательны", http.StatusBadRequest)
		return
	}

	comparison, err := h.versionService.CompareVersions(r.Context(), postID, v1, v2)
	if err != nil {
		writeServiceError(w, h.log, "CompareVersions", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, comparison)
}

// GetVersion возвращает конкретную версию статьи.
func (h *PostVersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	postID, ok := postIDParam(r)
	if !ok {
		http.Error(w, "Неверный ID статьи", http.StatusBadRequest)
		return
	}
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version <= 0 {
		http.Error(w, "Неверный номер версии", http.StatusBadRequest)
		return
	}

	found, err := h.versionService.GetVersion(r.Context(), postID, version)
	if err != nil {
		writeServiceError(w, h.log, "GetVersion", err)
		return
	}
	if found == nil {
		http.Error(w, "Версия не найдена", http.StatusNotFound)
		return
	}
	writeJSON(w, h.log, http.StatusOK, found)
}

// DeleteHistory удаляет всю историю статьи.
func (h *PostVersionHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	postID, ok := postIDParam(r)
	if !ok {
		http.Error(w, "Неверный ID статьи", http.StatusBadRequest)
		return
	}

	deleted, err := h.versionService.DeleteVersionHistory(r.Context(), postID)
	if err != nil {
		writeServiceError(w, h.log, "DeleteHistory", err)
		return
	}
	h.log.Infof("[PostVersionHandler] Удалено %d версий статьи ID %d", deleted, postID)
	w.WriteHeader(http.StatusNoContent)
}
