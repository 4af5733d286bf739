package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maynagashev/gophblog/internal/logging"
	"github.com/maynagashev/gophblog/internal/middleware"
	"github.com/maynagashev/gophblog/internal/models"
	"github.com/maynagashev/gophblog/internal/services"
)

// PostHandler обрабатывает запросы к статьям.
type PostHandler struct {
	postService services.PostService
	validate    *validator.Validate
	log         logging.Logger
}

// NewPostHandler создает новый экземпляр PostHandler.
func NewPostHandler(postService services.PostService) *PostHandler {
	return &PostHandler{
		postService: postService,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		log:         logging.New("handlers"),
	}
}

// CreatePost создает статью от имени аутентифицированного автора.
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	author, ok := middleware.GetAuthorFromContext(r.Context())
	if !ok {
		h.log.Errorf("[PostHandler] Автор не найден в контексте")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.postService.CreatePost(r.Context(), author, req)
	if err != nil {
		writeServiceError(w, h.log, "CreatePost", err)
		return
	}
	writeJSON(w, h.log, http.StatusCreated, result)
}

// UpdatePost изменяет статью от имени аутентифицированного редактора.
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	editor, ok := middleware.GetAuthorFromContext(r.Context())
	if !ok {
		h.log.Errorf("[PostHandler] Редактор не найден в контексте")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	postID, ok := postIDParam(r)
	if !ok {
		http.Error(w, "Неверный ID статьи", http.StatusBadRequest)
		return
	}

	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.postService.UpdatePost(r.Context(), editor, postID, req)
	if err != nil {
		writeServiceError(w, h.log, "UpdatePost", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, result)
}

// GetPost возвращает текущее состояние статьи.
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, ok := postIDParam(r)
	if !ok {
		http.Error(w, "Неверный ID статьи", http.StatusBadRequest)
		return
	}

	post, err := h.postService.GetPost(r.Context(), postID)
	if err != nil {
		writeServiceError(w, h.log, "GetPost", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, post)
}

// DeletePost удаляет статью и обрабатывает ее историю по настроенной политике.
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID, ok := postIDParam(r)
	if !ok {
		http.Error(w, "Неверный ID статьи", http.StatusBadRequest)
		return
	}

	result, err := h.postService.DeletePost(r.Context(), postID)
	if err != nil {
		writeServiceError(w, h.log, "DeletePost", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, result)
}

func (h *PostHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (*models.SavePostRequest, bool) {
	var req models.SavePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debugf("[PostHandler] Ошибка декодирования запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return nil, false
	}

	if err := h.validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			http.Error(w, "Неверные поля: "+strings.Join(fields, ", "), http.StatusBadRequest)
			return nil, false
		}
		h.log.Errorf("[PostHandler] Ошибка валидации: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}
