package gormrepository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/0xtaosu/meme-memos/internal/repository"
)

var errNoStore = fmt.Errorf("memo store is not configured: %w", repository.ErrStorage)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return db.CreateInBatches(items, batchSize).Error
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// wrapErr tags database failures with ErrStorage and leaves domain errors alone.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrValidation) ||
		errors.Is(err, repository.ErrStorage) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w: %w", op, repository.ErrValidation, err)
	}
	return fmt.Errorf("%s: %w: %w", op, repository.ErrStorage, err)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

var (
	_ repository.MemoStore             = (*Store)(nil)
	_ repository.LargeTransactionStore = (*Store)(nil)
	_ repository.Repository            = (*Store)(nil)
)
