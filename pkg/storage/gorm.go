package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Item 持久化的键值行
type Item struct {
	Namespace string `gorm:"primaryKey;size:64"`
	ItemKey   string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (Item) TableName() string { return "device_items" }

// gormStore 基于 SQL 的实现，命令行客户端用它在本地文件里保存会话
type gormStore struct {
	db *gorm.DB
}

// NewGormStore 创建 SQL 存储并迁移表结构
func NewGormStore(db *gorm.DB) (Store, error) {
	if err := db.AutoMigrate(&Item{}); err != nil {
		return nil, err
	}
	return &gormStore{db: db}, nil
}

func (g *gormStore) GetItem(ctx context.Context, namespace, key string) (string, bool, error) {
	var it Item
	err := g.db.WithContext(ctx).
		Where("namespace = ? AND item_key = ?", namespace, key).
		Take(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return it.Value, true, nil
}

func (g *gormStore) SetItem(ctx context.Context, namespace, key, value string) error {
	it := Item{Namespace: namespace, ItemKey: key, Value: value, UpdatedAt: time.Now()}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "item_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&it).Error
}

func (g *gormStore) RemoveItem(ctx context.Context, namespace, key string) error {
	return g.db.WithContext(ctx).
		Where("namespace = ? AND item_key = ?", namespace, key).
		Delete(&Item{}).Error
}

func (g *gormStore) Clear(ctx context.Context, namespace string) error {
	return g.db.WithContext(ctx).Where("namespace = ?", namespace).Delete(&Item{}).Error
}

func (g *gormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
