package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

// RoomRecord is one room document. The indexed columns mirror the fields
// the reaper and matchmaking filter on; Document holds the full JSON.
type RoomRecord struct {
	Code        string    `gorm:"primaryKey;size:8"`
	Status      string    `gorm:"size:16;not null;index"`
	IsPrivate   bool      `gorm:"not null;default:false"`
	PlayerCount int       `gorm:"not null;default:0"`
	Version     int64     `gorm:"not null"`
	Document    []byte    `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
}

func (RoomRecord) TableName() string { return "rooms" }

type Postgres struct {
	pool *pgxpool.Pool
	db   *gorm.DB
}

// NewPostgres opens a pgx pool, hands it to gorm and migrates the rooms table.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&RoomRecord{}); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate rooms: %w", err)
	}
	return &Postgres{pool: pool, db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	if sqlDB, err := p.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	p.pool.Close()
}

// Save upserts r unless a newer version is already stored.
func (p *Postgres) Save(ctx context.Context, r room.Room) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", r.Code, err)
	}
	rec := RoomRecord{
		Code:        r.Code,
		Status:      string(r.Status),
		IsPrivate:   r.IsPrivate,
		PlayerCount: len(r.Players),
		Version:     r.Version,
		Document:    doc,
		CreatedAt:   r.CreatedAt,
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "is_private", "player_count", "version", "document", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "rooms.version <= excluded.version"},
		}},
	}).Create(&rec).Error
}

func (p *Postgres) Load(ctx context.Context, code string) (room.Room, error) {
	var rec RoomRecord
	err := p.db.WithContext(ctx).Where("code = ?", code).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return room.Room{}, fmt.Errorf("%w: %s", docstore.ErrNotFound, code)
	}
	if err != nil {
		return room.Room{}, err
	}
	return decodeRecord(rec)
}

func (p *Postgres) Delete(ctx context.Context, code string) error {
	return p.db.WithContext(ctx).Where("code = ?", code).Delete(&RoomRecord{}).Error
}

func (p *Postgres) List(ctx context.Context) ([]room.Room, error) {
	var recs []RoomRecord
	if err := p.db.WithContext(ctx).Order("created_at").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]room.Room, 0, len(recs))
	for _, rec := range recs {
		r, err := decodeRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// DeleteOlderThan removes rooms created before cutoff and reports how many went.
func (p *Postgres) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := p.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&RoomRecord{})
	return res.RowsAffected, res.Error
}

func decodeRecord(rec RoomRecord) (room.Room, error) {
	var r room.Room
	if err := json.Unmarshal(rec.Document, &r); err != nil {
		return room.Room{}, fmt.Errorf("decode room %s: %w", rec.Code, err)
	}
	return r, nil
}
