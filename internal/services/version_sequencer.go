package services

import (
	"context"

	"github.com/maynagashev/gophblog/internal/repository"
)

// VersionSequencer назначает следующий номер версии статьи.
// Вызывается внутри пишущей транзакции хранилища, чтобы чтение и вставка шли одним блоком.
type VersionSequencer interface {
	NextVersion(ctx context.Context, tx repository.PostVersionTx, postID int64) (int, error)
}

type maxVersionSequencer struct{}

// NewVersionSequencer возвращает секвенсор max(version) + 1.
func NewVersionSequencer() VersionSequencer {
	return maxVersionSequencer{}
}

// NextVersion возвращает 1 для статьи без истории, иначе последний номер + 1.
func (maxVersionSequencer) NextVersion(ctx context.Context, tx repository.PostVersionTx, postID int64) (int, error) {
	latest, err := tx.LatestVersionNumber(ctx, postID)
	if err != nil {
		return 0, err
	}
	return latest + 1, nil
}
