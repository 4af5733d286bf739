package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/maynagashev/gophblog/internal/logging"
	"github.com/maynagashev/gophblog/internal/models"
)

// Тип для ключа контекста.
type contextKey string

// AuthorKey - ключ для хранения автора запроса в контексте.
const AuthorKey contextKey = "author"

// Claims - данные пользователя в JWT. Токены выпускает внешний сервис аутентификации.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticator возвращает middleware, проверяющий JWT токен (HS256) из заголовка Authorization.
func Authenticator(secretKey []byte) func(http.Handler) http.Handler {
	log := logging.New("middleware")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Debug("[AuthMiddleware] Заголовок Authorization отсутствует")
				http.Error(w, "Требуется аутентификация", http.StatusUnauthorized)
				return
			}

			// Проверяем формат "Bearer token"
			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
				log.Debugf("[AuthMiddleware] Неверный формат заголовка Authorization: %s", authHeader)
				http.Error(w, "Неверный формат токена", http.StatusUnauthorized)
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(headerParts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
				}
				return secretKey, nil
			})
			if err != nil || !token.Valid {
				log.Debugf("[AuthMiddleware] Невалидный токен: %v", err)
				http.Error(w, "Невалидный токен", http.StatusUnauthorized)
				return
			}

			if claims.UserID <= 0 || claims.Username == "" {
				log.Debug("[AuthMiddleware] В токене нет данных пользователя")
				http.Error(w, "Невалидный токен", http.StatusUnauthorized)
				return
			}

			author := models.Author{ID: claims.UserID, Username: claims.Username}
			ctx := context.WithValue(r.Context(), AuthorKey, author)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAuthorFromContext извлекает автора запроса из контекста.
func GetAuthorFromContext(ctx context.Context) (models.Author, bool) {
	author, ok := ctx.Value(AuthorKey).(models.Author)
	return author, ok
}
