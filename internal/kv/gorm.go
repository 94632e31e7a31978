package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/shelfpos/pkg/db"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const iterateBatchSize = 200

// entry is one row of kv_entries; the table is owned by the goose migrations.
type entry struct {
	Collection string    `gorm:"column:collection;primaryKey;size:64"`
	Key        string    `gorm:"column:key;primaryKey;size:191"`
	Value      string    `gorm:"column:value;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (entry) TableName() string { return "kv_entries" }

// GormBackend stores every collection in the kv_entries table (sqlite or postgres).
type GormBackend struct {
	client *db.Client
}

func NewGormBackend(client *db.Client) *GormBackend {
	return &GormBackend{client: client}
}

func (b *GormBackend) Collection(name Name) Collection {
	return &gormCollection{conn: b.client.DB(), name: name}
}

// ClearCollections deletes every row of names inside one transaction.
func (b *GormBackend) ClearCollections(ctx context.Context, names []Name) error {
	return b.client.WithTx(ctx, func(tx *gorm.DB) error {
		for _, name := range names {
			err := tx.Where(map[string]any{"collection": string(name)}).Delete(&entry{}).Error
			if err != nil {
				return storageErr(err, "clear", name, "")
			}
		}
		return nil
	})
}

func (b *GormBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx)
}

func (b *GormBackend) Close() error {
	return b.client.Close()
}

type gormCollection struct {
	conn *gorm.DB
	name Name
}

func (c *gormCollection) Name() Name { return c.name }

func (c *gormCollection) scope(ctx context.Context) *gorm.DB {
	return c.conn.WithContext(ctx).Model(&entry{}).Where(map[string]any{"collection": string(c.name)})
}

func (c *gormCollection) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var rows []entry
	err := c.scope(ctx).Where(map[string]any{"key": key}).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, false, storageErr(err, "get", c.name, key)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return []byte(rows[0].Value), true, nil
}

func (c *gormCollection) Set(ctx context.Context, key string, value []byte) error {
	row := entry{Collection: string(c.name), Key: key, Value: string(value)}
	err := c.conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if db.IsUniqueViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDuplicateKey, err, fmt.Sprintf("kv: set %s/%s", c.name, key)).
			WithDetails(map[string]any{"collection": string(c.name), "key": key})
	}
	return storageErr(err, "set", c.name, key)
}

func (c *gormCollection) Remove(ctx context.Context, key string) error {
	err := c.conn.WithContext(ctx).
		Where(map[string]any{"collection": string(c.name), "key": key}).
		Delete(&entry{}).Error
	return storageErr(err, "remove", c.name, key)
}

func (c *gormCollection) Clear(ctx context.Context) error {
	err := c.conn.WithContext(ctx).
		Where(map[string]any{"collection": string(c.name)}).
		Delete(&entry{}).Error
	return storageErr(err, "clear", c.name, "")
}

// Iterate pages through the collection by key so visitors may mutate it.
func (c *gormCollection) Iterate(ctx context.Context, fn Visitor) error {
	last := ""
	first := true
	for {
		query := c.scope(ctx)
		if !first {
			query = query.Where(clause.Gt{Column: clause.Column{Name: "key"}, Value: last})
		}
		var rows []entry
		err := query.
			Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).
			Limit(iterateBatchSize).
			Find(&rows).Error
		if err != nil {
			return storageErr(err, "iterate", c.name, "")
		}
		for _, row := range rows {
			stop, err := fn(row.Key, []byte(row.Value))
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
		}
		if len(rows) < iterateBatchSize {
			return nil
		}
		last = rows[len(rows)-1].Key
		first = false
	}
}

func (c *gormCollection) Len(ctx context.Context) (int, error) {
	var n int64
	if err := c.scope(ctx).Count(&n).Error; err != nil {
		return 0, storageErr(err, "count", c.name, "")
	}
	return int(n), nil
}
