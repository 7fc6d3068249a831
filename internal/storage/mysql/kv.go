// Package mysql is the MySQL storage backend, built on gorm.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"crmextract/internal/storage"
)

// entry is one row of the key-value table.
type entry struct {
	Key       string    `gorm:"column:key;primaryKey;size:191"`
	Value     string    `gorm:"column:value;type:longtext;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// KV implements storage.KV for MySQL.
type KV struct {
	db    *gorm.DB
	table string
}

func init() {
	storage.Register("mysql", Open)
}

// Open connects with cfg.DSN (go-sql-driver form, e.g.
// "user:pass@tcp(host:3306)/crm?parseTime=true") and migrates the table.
func Open(ctx context.Context, cfg storage.Config) (storage.KV, error) {
	table, err := storage.TableName(cfg.Table)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(mysql.New(mysql.Config{DSN: cfg.DSN}), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("mysql open: %w", err)
	}

	kv := &KV{db: db, table: table}
	if err := kv.tx(ctx).AutoMigrate(&entry{}); err != nil {
		kv.Close()
		return nil, fmt.Errorf("mysql migrate %s: %w", table, err)
	}
	zap.S().Debugf("mysql storage ready (table=%s)", table)
	return kv, nil
}

func (r *KV) tx(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.table)
}

func (r *KV) Close() {
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (r *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e entry
	err := r.tx(ctx).Where(clause.Eq{Column: clause.Column{Name: storage.ColumnKey}, Value: key}).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mysql get %q: %w", key, err)
	}
	return []byte(e.Value), true, nil
}

// Set upserts key via INSERT ... ON DUPLICATE KEY UPDATE.
func (r *KV) Set(ctx context.Context, key string, value []byte) error {
	e := entry{Key: key, Value: string(value), UpdatedAt: time.Now().UTC()}
	err := r.tx(ctx).Clauses(upsertClause()).Create(&e).Error
	if err != nil {
		return fmt.Errorf("mysql set %q: %w", key, err)
	}
	return nil
}

func (r *KV) Remove(ctx context.Context, key string) error {
	err := r.tx(ctx).Where(clause.Eq{Column: clause.Column{Name: storage.ColumnKey}, Value: key}).Delete(&entry{}).Error
	if err != nil {
		return fmt.Errorf("mysql remove %q: %w", key, err)
	}
	return nil
}

func upsertClause() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: storage.ColumnKey}},
		DoUpdates: clause.AssignmentColumns([]string{storage.ColumnValue, storage.ColumnUpdatedAt}),
	}
}
