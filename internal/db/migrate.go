package db

import (
	"github.com/0xtaosu/meme-memos/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Memo{},
		&models.MemoEvent{},
		&models.LargeTransactionRow{},
	)
}
