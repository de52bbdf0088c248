package gormrepository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/0xtaosu/meme-memos/internal/models"
	"github.com/0xtaosu/meme-memos/internal/repository"
)

func (s *Store) UpsertMemo(ctx context.Context, tokenAddress string, fields repository.MemoFields) (*models.Memo, error) {
	if s == nil || s.db == nil {
		return nil, errNoStore
	}
	tokenAddress = strings.TrimSpace(tokenAddress)
	if tokenAddress == "" {
		return nil, fmt.Errorf("token address is required: %w", repository.ErrValidation)
	}
	var events []models.MemoEvent
	if fields.Events != nil {
		events = *fields.Events
		if err := validateEventList(events); err != nil {
			return nil, err
		}
	}

	var out *models.Memo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := nowUTC()
		row := models.Memo{TokenAddress: tokenAddress, CreatedAt: now, LastUpdated: now}
		columns := applyFields(&row, fields)
		columns = append(columns, "last_updated")

		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token_address"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).Create(&row).Error; err != nil {
			return err
		}

		if fields.Events != nil {
			if err := replaceEvents(tx, tokenAddress, events); err != nil {
				return err
			}
		}

		memo, err := loadMemo(tx, tokenAddress)
		if err != nil {
			return err
		}
		out = memo
		return nil
	})
	if err != nil {
		return nil, wrapErr("upsert memo", err)
	}
	return out, nil
}

// UpdateMemo changes an existing memo and never creates one. A memo deleted
// before the row lock is taken gives ErrNotFound.
func (s *Store) UpdateMemo(ctx context.Context, tokenAddress string, fields repository.MemoFields) (*models.Memo, error) {
	if s == nil || s.db == nil {
		return nil, errNoStore
	}
	tokenAddress = strings.TrimSpace(tokenAddress)
	if tokenAddress == "" {
		return nil, fmt.Errorf("token address is required: %w", repository.ErrValidation)
	}
	var events []models.MemoEvent
	if fields.Events != nil {
		events = *fields.Events
		if err := validateEventList(events); err != nil {
			return nil, err
		}
	}

	var out *models.Memo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockMemo(tx, tokenAddress); err != nil {
			return err
		}
		var row models.Memo
		columns := applyFields(&row, fields)
		row.LastUpdated = nowUTC()
		columns = append(columns, "last_updated")

		if err := tx.Model(&models.Memo{}).
			Where("token_address = ?", tokenAddress).
			Select(columns).
			Updates(&row).Error; err != nil {
			return err
		}

		if fields.Events != nil {
			if err := replaceEvents(tx, tokenAddress, events); err != nil {
				return err
			}
		}

		memo, err := loadMemo(tx, tokenAddress)
		if err != nil {
			return err
		}
		out = memo
		return nil
	})
	if err != nil {
		return nil, wrapErr("update memo", err)
	}
	return out, nil
}

func (s *Store) GetMemo(ctx context.Context, tokenAddress string) (*models.Memo, error) {
	if s == nil || s.db == nil {
		return nil, errNoStore
	}
	tokenAddress = strings.TrimSpace(tokenAddress)
	if tokenAddress == "" {
		return nil, fmt.Errorf("token address is required: %w", repository.ErrValidation)
	}
	memo, err := loadMemo(s.db.WithContext(ctx), tokenAddress)
	if err != nil {
		return nil, wrapErr("get memo", err)
	}
	return memo, nil
}

func (s *Store) ListMemos(ctx context.Context) ([]models.Memo, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Memo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Memo{}).
			Order("created_at asc").
			Order("token_address asc").
			Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		addrs := make([]string, 0, len(items))
		for _, m := range items {
			addrs = append(addrs, m.TokenAddress)
		}
		var events []models.MemoEvent
		if err := tx.Where("token_address IN ?", addrs).Order("seq asc").Find(&events).Error; err != nil {
			return err
		}
		byMemo := make(map[string][]models.MemoEvent, len(items))
		for _, ev := range events {
			byMemo[ev.TokenAddress] = append(byMemo[ev.TokenAddress], ev)
		}
		for i := range items {
			items[i].Events = byMemo[items[i].TokenAddress]
			if items[i].Events == nil {
				items[i].Events = []models.MemoEvent{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("list memos", err)
	}
	if items == nil {
		items = []models.Memo{}
	}
	return items, nil
}

// AppendEvent adds event to the end of the memo's list and writes the flat
// copy of its large transactions in the same transaction. An event id already
// on this memo is a no-op; an id owned by another memo is rejected.
func (s *Store) AppendEvent(ctx context.Context, tokenAddress string, event models.MemoEvent) (*models.Memo, error) {
	if s == nil || s.db == nil {
		return nil, errNoStore
	}
	tokenAddress = strings.TrimSpace(tokenAddress)
	if tokenAddress == "" {
		return nil, fmt.Errorf("token address is required: %w", repository.ErrValidation)
	}
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	var out *models.Memo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockMemo(tx, tokenAddress); err != nil {
			return err
		}

		var existing models.MemoEvent
		err := tx.Where("event_id = ?", event.ID).Take(&existing).Error
		switch {
		case err == nil && existing.TokenAddress != tokenAddress:
			return fmt.Errorf("event id %s belongs to another memo: %w", event.ID, repository.ErrValidation)
		case err == nil:
			// already recorded
		case errors.Is(err, gorm.ErrRecordNotFound):
			event.Seq = 0
			event.TokenAddress = tokenAddress
			if err := tx.Create(&event).Error; err != nil {
				return err
			}
			if event.LargeTransactions != nil {
				if err := saveLargeTransactionRows(tx, tokenAddress, event.ID, *event.LargeTransactions); err != nil {
					return err
				}
			}
		default:
			return err
		}

		memo, err := loadMemo(tx, tokenAddress)
		if err != nil {
			return err
		}
		out = memo
		return nil
	})
	if err != nil {
		return nil, wrapErr("append event", err)
	}
	return out, nil
}

// DeleteMemo removes the memo, its events and their large-transaction rows.
// It reports false when there was nothing to delete.
func (s *Store) DeleteMemo(ctx context.Context, tokenAddress string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	tokenAddress = strings.TrimSpace(tokenAddress)
	if tokenAddress == "" {
		return false, fmt.Errorf("token address is required: %w", repository.ErrValidation)
	}
	var deleted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Waits out an in-flight append so its rows are removed too.
		if err := lockMemo(tx, tokenAddress); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Where("token_address = ?", tokenAddress).Delete(&models.LargeTransactionRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("token_address = ?", tokenAddress).Delete(&models.MemoEvent{}).Error; err != nil {
			return err
		}
		res := tx.Where("token_address = ?", tokenAddress).Delete(&models.Memo{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, wrapErr("delete memo", err)
	}
	return deleted, nil
}

// DeleteEvent removes exactly one event row; the rest of the list is not rewritten.
func (s *Store) DeleteEvent(ctx context.Context, tokenAddress, eventID string) (*models.Memo, error) {
	if s == nil || s.db == nil {
		return nil, errNoStore
	}
	tokenAddress = strings.TrimSpace(tokenAddress)
	eventID = strings.TrimSpace(eventID)
	if tokenAddress == "" || eventID == "" {
		return nil, fmt.Errorf("token address and event id are required: %w", repository.ErrValidation)
	}

	var out *models.Memo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockMemo(tx, tokenAddress); err != nil {
			return err
		}
		res := tx.Where("token_address = ? AND event_id = ?", tokenAddress, eventID).Delete(&models.MemoEvent{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("event %s: %w", eventID, repository.ErrNotFound)
		}
		if err := tx.Where("event_id = ?", eventID).Delete(&models.LargeTransactionRow{}).Error; err != nil {
			return err
		}
		memo, err := loadMemo(tx, tokenAddress)
		if err != nil {
			return err
		}
		out = memo
		return nil
	})
	if err != nil {
		return nil, wrapErr("delete event", err)
	}
	return out, nil
}

func lockMemo(tx *gorm.DB, tokenAddress string) error {
	var memo models.Memo
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("token_address").
		Where("token_address = ?", tokenAddress).
		Take(&memo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("memo %s: %w", tokenAddress, repository.ErrNotFound)
	}
	return err
}

func loadMemo(tx *gorm.DB, tokenAddress string) (*models.Memo, error) {
	var memo models.Memo
	err := tx.Where("token_address = ?", tokenAddress).Take(&memo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("memo %s: %w", tokenAddress, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	events := []models.MemoEvent{}
	if err := tx.Where("token_address = ?", tokenAddress).Order("seq asc").Find(&events).Error; err != nil {
		return nil, err
	}
	memo.Events = events
	return &memo, nil
}

func replaceEvents(tx *gorm.DB, tokenAddress string, events []models.MemoEvent) error {
	if len(events) > 0 {
		ids := make([]string, 0, len(events))
		for _, ev := range events {
			ids = append(ids, ev.ID)
		}
		var taken int64
		if err := tx.Model(&models.MemoEvent{}).
			Where("event_id IN ?", ids).
			Where("token_address <> ?", tokenAddress).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return fmt.Errorf("event ids belong to another memo: %w", repository.ErrValidation)
		}
	}
	if err := tx.Where("token_address = ?", tokenAddress).Delete(&models.LargeTransactionRow{}).Error; err != nil {
		return err
	}
	if err := tx.Where("token_address = ?", tokenAddress).Delete(&models.MemoEvent{}).Error; err != nil {
		return err
	}
	for i := range events {
		ev := events[i]
		ev.Seq = 0
		ev.TokenAddress = tokenAddress
		if err := tx.Create(&ev).Error; err != nil {
			return err
		}
	}
	return nil
}

func applyFields(row *models.Memo, fields repository.MemoFields) []string {
	columns := make([]string, 0, 6)
	if fields.Name != nil {
		row.Name = *fields.Name
		columns = append(columns, "name")
	}
	if fields.Symbol != nil {
		row.Symbol = *fields.Symbol
		columns = append(columns, "symbol")
	}
	if fields.PriceUSD != nil {
		row.PriceUSD = *fields.PriceUSD
		columns = append(columns, "price_usd")
	}
	if fields.LiquidityUSD != nil {
		row.LiquidityUSD = *fields.LiquidityUSD
		columns = append(columns, "liquidity_usd")
	}
	if fields.Volume24h != nil {
		row.Volume24h = *fields.Volume24h
		columns = append(columns, "volume_24h")
	}
	if fields.ImageURL != nil {
		url := *fields.ImageURL
		row.ImageURL = &url
		columns = append(columns, "image_url")
	}
	return columns
}

func validateEvent(ev models.MemoEvent) error {
	if strings.TrimSpace(ev.ID) == "" {
		return fmt.Errorf("event id is required: %w", repository.ErrValidation)
	}
	if ev.Timestamp.IsZero() {
		return fmt.Errorf("event timestamp is required: %w", repository.ErrValidation)
	}
	if strings.TrimSpace(ev.Description) == "" {
		return fmt.Errorf("event description is required: %w", repository.ErrValidation)
	}
	return nil
}

func validateEventList(events []models.MemoEvent) error {
	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if err := validateEvent(ev); err != nil {
			return err
		}
		if _, ok := seen[ev.ID]; ok {
			return fmt.Errorf("duplicate event id %s: %w", ev.ID, repository.ErrValidation)
		}
		seen[ev.ID] = struct{}{}
	}
	return nil
}
