package services

import (
	"errors"
	"fmt"
	"strings"
)

// Виды ошибок сервиса версий. Проверяются через errors.Is.
var (
	ErrVersionNotFound   = errors.New("версия статьи не найдена")
	ErrInvalidVersionRef = errors.New("ссылка на несуществующую версию")
	ErrVersionConflict   = errors.New("конфликт номеров версий")
	ErrInvalidArgument   = errors.New("неверный аргумент")
	ErrStoreFailure      = errors.New("ошибка хранилища версий")
	ErrPostNotFound      = errors.New("статья не найдена")
)

// VersionError несет подробности о неудачной операции с историей статьи.
// Kind - один из видов ошибок выше, Err - исходная причина (может быть nil).
type VersionError struct {
	Op      string
	PostID  int64
	Version int
	Kind    error
	Err     error
}

func (e *VersionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: статья %d", e.Op, e.PostID)
	if e.Version > 0 {
		fmt.Fprintf(&b, ", версия %d", e.Version)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is сопоставляет ошибку с ее видом.
func (e *VersionError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap возвращает исходную причину.
func (e *VersionError) Unwrap() error {
	return e.Err
}

func invalidArgument(op string, postID int64, version int, reason string) error {
	return &VersionError{Op: op, PostID: postID, Version: version, Kind: ErrInvalidArgument, Err: errors.New(reason)}
}

func storeFailure(op string, postID int64, version int, err error) error {
	return &VersionError{Op: op, PostID: postID, Version: version, Kind: ErrStoreFailure, Err: err}
}
