package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MemoEvent is one dated entry on a memo. Seq fixes append order.
//
// LargeTransactions is nil when enrichment was not attempted or failed, and
// non-nil (possibly empty) when it ran.
type MemoEvent struct {
	Seq          uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ID           string    `gorm:"column:event_id;type:varchar(64);not null;uniqueIndex" json:"_id"`
	TokenAddress string    `gorm:"type:varchar(128);not null;index" json:"-"`
	Timestamp    time.Time `gorm:"column:timestamp;not null;index" json:"timestamp"`
	Description  string    `gorm:"type:text;not null" json:"description"`
	Link         *string   `gorm:"type:text" json:"link,omitempty"`

	LargeTransactions *[]LargeTransaction `gorm:"-" json:"largeTransactions,omitempty"`
	Snapshot          *datatypes.JSON     `gorm:"column:large_transactions;comment:enrichment snapshot" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
}

func (MemoEvent) TableName() string {
	return "memo_events"
}

func (e *MemoEvent) BeforeSave(*gorm.DB) error {
	if e.LargeTransactions == nil {
		e.Snapshot = nil
		return nil
	}
	txs := *e.LargeTransactions
	if txs == nil {
		txs = []LargeTransaction{}
	}
	b, err := json.Marshal(txs)
	if err != nil {
		return err
	}
	raw := datatypes.JSON(b)
	e.Snapshot = &raw
	return nil
}

func (e *MemoEvent) AfterFind(*gorm.DB) error {
	if e.Snapshot == nil || len(*e.Snapshot) == 0 {
		e.LargeTransactions = nil
		return nil
	}
	txs := []LargeTransaction{}
	if err := json.Unmarshal(*e.Snapshot, &txs); err != nil {
		return err
	}
	e.LargeTransactions = &txs
	return nil
}

type eventJSON struct {
	ID                string              `json:"_id"`
	Timestamp         time.Time           `json:"timestamp"`
	Description       string              `json:"description"`
	Link              *string             `json:"link,omitempty"`
	LargeTransactions *[]LargeTransaction `json:"largeTransactions,omitempty"`
}

// MarshalJSON writes largeTransactions as [] rather than null when
// enrichment ran and found nothing.
func (e MemoEvent) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		ID:                e.ID,
		Timestamp:         e.Timestamp.UTC(),
		Description:       e.Description,
		Link:              e.Link,
		LargeTransactions: e.LargeTransactions,
	}
	if e.LargeTransactions != nil && *e.LargeTransactions == nil {
		empty := []LargeTransaction{}
		out.LargeTransactions = &empty
	}
	return json.Marshal(out)
}
