package service

import (
	"errors"

	"github.com/0xtaosu/meme-memos/internal/repository"
)

var (
	ErrNotFound   = repository.ErrNotFound
	ErrValidation = repository.ErrValidation
	ErrStorage    = repository.ErrStorage

	ErrUpstreamUnavailable = errors.New("memo: upstream unavailable")

	// ErrTokenNotFound means the metadata provider knows no pairs for the
	// token. It matches ErrNotFound.
	ErrTokenNotFound error = &childError{msg: "memo: token not found", parent: ErrNotFound}
)

type childError struct {
	msg    string
	parent error
}

func (e *childError) Error() string { return e.msg }
func (e *childError) Unwrap() error { return e.parent }
