package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maynagashev/gophblog/internal/models"
	"github.com/maynagashev/gophblog/internal/storage"
)

const historyArchivePrefix = "post-history"

// HistoryArchiver выгружает историю статьи во внешнее хранилище перед удалением.
type HistoryArchiver interface {
	// ArchiveHistory сохраняет версии и возвращает ключ созданного объекта.
	ArchiveHistory(ctx context.Context, postID int64, versions []models.PostVersion) (string, error)
}

// HistoryArchiveFile - формат JSON-архива истории статьи.
type HistoryArchiveFile struct {
	PostID     int64                `json:"post_id"`
	ArchivedAt time.Time            `json:"archived_at"`
	Versions   []models.PostVersion `json:"versions"`
}

type objectStorageArchiver struct {
	storage storage.FileStorage
}

// NewHistoryArchiver создает архиватор поверх объектного хранилища.
func NewHistoryArchiver(fileStorage storage.FileStorage) HistoryArchiver {
	return &objectStorageArchiver{storage: fileStorage}
}

func (a *objectStorageArchiver) ArchiveHistory(
	ctx context.Context,
	postID int64,
	versions []models.PostVersion,
) (string, error) {
	data, err := json.Marshal(HistoryArchiveFile{
		PostID:     postID,
		ArchivedAt: time.Now().UTC(),
		Versions:   versions,
	})
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации архива истории: %w", err)
	}

	key := fmt.Sprintf("%s/%d/%s.json", historyArchivePrefix, postID, uuid.NewString())
	if err = a.storage.UploadFile(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", fmt.Errorf("ошибка загрузки архива истории статьи %d: %w", postID, err)
	}
	return key, nil
}
