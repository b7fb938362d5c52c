// Package sqlledger is a durable Ledger on a SQL database through gorm.
// The (match_id, player_id) unique index guarantees a match settles once
// even when several servers share the database.
package sqlledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mcoot/koragame/internal/ledger"
	"github.com/mcoot/koragame/internal/model"
)

// Entry is the persisted form of a model.Transaction
type Entry struct {
	ID        string    `gorm:"type:text;primaryKey"`
	MatchID   string    `gorm:"type:text;not null;uniqueIndex:idx_ledger_match_player"`
	PlayerID  string    `gorm:"type:text;not null;uniqueIndex:idx_ledger_match_player;index"`
	Amount    int64     `gorm:"not null"`
	Type      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName pins the table name independent of gorm's pluralisation
func (Entry) TableName() string {
	return "ledger_entries"
}

// Ledger stores transactions in SQL
type Ledger struct {
	db *gorm.DB
}

var _ ledger.Ledger = (*Ledger)(nil)

// Open connects to a SQLite DSN (":memory:" or a file path) and migrates the schema
func Open(dsn string) (*Ledger, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("sqlledger: empty dsn")
	}
	db, err := gorm.Open(sqlite.Open(trimmed), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlledger: open: %w", err)
	}
	// A single connection keeps ":memory:" databases shared between calls
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return New(db)
}

// New wraps an existing gorm connection and migrates the schema
func New(db *gorm.DB) (*Ledger, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("sqlledger: migrate: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the database connection
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record inserts all entries of a match in one transaction
func (l *Ledger) Record(ctx context.Context, matchID model.MatchID, txs []model.Transaction) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Entry{}).Where("match_id = ?", string(matchID)).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return model.ErrAlreadySettled
		}
		entries := make([]Entry, len(txs))
		for i, t := range txs {
			entries[i] = toEntry(t)
		}
		if err := tx.Create(&entries).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
				return model.ErrAlreadySettled
			}
			return err
		}
		return nil
	})
}

func (l *Ledger) ForMatch(ctx context.Context, matchID model.MatchID) ([]model.Transaction, error) {
	var entries []Entry
	err := l.db.WithContext(ctx).
		Where("match_id = ?", string(matchID)).
		Order("created_at, id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return fromEntries(entries), nil
}

func (l *Ledger) ForPlayer(ctx context.Context, playerID model.PlayerID) ([]model.Transaction, error) {
	var entries []Entry
	err := l.db.WithContext(ctx).
		Where("player_id = ?", string(playerID)).
		Order("created_at, id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return fromEntries(entries), nil
}

// Balance sums in the database rather than loading every entry
func (l *Ledger) Balance(ctx context.Context, playerID model.PlayerID) (int64, error) {
	var total int64
	err := l.db.WithContext(ctx).
		Model(&Entry{}).
		Where("player_id = ?", string(playerID)).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func toEntry(t model.Transaction) Entry {
	return Entry{
		ID:        t.ID,
		MatchID:   string(t.MatchID),
		PlayerID:  string(t.PlayerID),
		Amount:    t.Amount,
		Type:      string(t.Type),
		CreatedAt: t.CreatedAt.UTC(),
	}
}

func fromEntries(entries []Entry) []model.Transaction {
	txs := make([]model.Transaction, len(entries))
	for i, e := range entries {
		txs[i] = model.Transaction{
			ID:        e.ID,
			MatchID:   model.MatchID(e.MatchID),
			PlayerID:  model.PlayerID(e.PlayerID),
			Amount:    e.Amount,
			Type:      model.TransactionType(e.Type),
			CreatedAt: e.CreatedAt,
		}
	}
	return txs
}

// isUniqueViolation recognises SQLite's constraint error text, since gorm
// only translates driver errors when TranslateError is enabled
func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
