// Package storage is the persistent store for users, download history, bot
// settings and the promo slot, backed by GORM over the pure-Go SQLite driver.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// ErrNotFound aliases gorm.ErrRecordNotFound for callers that do not want to
// import gorm directly.
var ErrNotFound = gorm.ErrRecordNotFound

type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure db dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA busy_timeout=5000;")
	if err := db.AutoMigrate(&User{}, &Download{}, &Setting{}, &Promo{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// UpsertUser creates the user on first contact or refreshes the display fields
// and last-active timestamp on every later one.
func (s *Store) UpsertUser(ctx context.Context, id int64, username, firstName, lastName string) error {
	now := time.Now().UTC()
	var u User
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u = User{
			ID:         id,
			Username:   username,
			FirstName:  firstName,
			LastName:   lastName,
			JoinedAt:   now,
			LastActive: now,
			IsActive:   true,
		}
		return s.db.WithContext(ctx).Create(&u).Error
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(map[string]any{
		"username":    username,
		"first_name":  firstName,
		"last_name":   lastName,
		"last_active": now,
		"is_active":   true,
	}).Error
}

// TouchUser refreshes last_active without changing display fields.
func (s *Store) TouchUser(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).
		Update("last_active", time.Now().UTC()).Error
}

// MarkUserInactive flags a user that can no longer be reached (e.g. they
// blocked the bot) so broadcasts skip them next time.
func (s *Store) MarkUserInactive(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).
		Update("is_active", false).Error
}

// ActiveUserIDs returns ids of all users still marked active, for broadcasts.
func (s *Store) ActiveUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&User{}).Where("is_active = ?", true).
		Order("id").Pluck("id", &ids).Error
	return ids, err
}

// UserCounts returns total and active user counts.
func (s *Store) UserCounts(ctx context.Context) (total, active int64, err error) {
	if err = s.db.WithContext(ctx).Model(&User{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err = s.db.WithContext(ctx).Model(&User{}).Where("is_active = ?", true).Count(&active).Error; err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

// AppendDownload records one completed delivery. Rows are never mutated or
// deleted afterwards.
func (s *Store) AppendDownload(ctx context.Context, userID int64, title, format, effect string) error {
	d := Download{
		UserID:       userID,
		SongTitle:    title,
		Format:       format,
		Effect:       effect,
		DownloadedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Create(&d).Error
}

// DownloadStats aggregates download history for the admin /stats view.
type DownloadStats struct {
	Total   int64
	Today   int64
	Formats map[string]int64
}

func (s *Store) DownloadStats(ctx context.Context) (DownloadStats, error) {
	st := DownloadStats{Formats: make(map[string]int64)}
	if err := s.db.WithContext(ctx).Model(&Download{}).Count(&st.Total).Error; err != nil {
		return st, err
	}
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	if err := s.db.WithContext(ctx).Model(&Download{}).
		Where("downloaded_at >= ?", dayStart).Count(&st.Today).Error; err != nil {
		return st, err
	}
	var rows []struct {
		Format string
		N      int64
	}
	if err := s.db.WithContext(ctx).Model(&Download{}).
		Select("format, count(*) as n").Group("format").Scan(&rows).Error; err != nil {
		return st, err
	}
	for _, r := range rows {
		st.Formats[r.Format] = r.N
	}
	return st, nil
}

// SetSetting upserts a setting key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Save(&Setting{Key: key, Value: value}).Error
}

// Setting returns the value for key; ok is false when the key is absent,
// which callers treat as "feature disabled".
func (s *Store) Setting(ctx context.Context, key string) (value string, ok bool, err error) {
	var row Setting
	err = s.db.WithContext(ctx).First(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

// DeleteSetting removes a setting key; deleting an absent key is not an error.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&Setting{}, "key = ?", key).Error
}

// ReplacePromo deletes all existing promos and inserts the new one in a
// single transaction, so readers either see the previous promo or the new
// one, never an interleaving.
func (s *Store) ReplacePromo(ctx context.Context, fileID, caption string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Promo{}).Error; err != nil {
			return err
		}
		return tx.Create(&Promo{
			FileID:    fileID,
			Caption:   caption,
			CreatedAt: time.Now().UTC(),
		}).Error
	})
}

// CurrentPromo returns the most recently created promo, nil when none exists.
// Row id breaks creation-time ties so the result is deterministic for a given
// store state.
func (s *Store) CurrentPromo(ctx context.Context) (*Promo, error) {
	var p Promo
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteAllPromos removes every promo and reports how many were removed.
func (s *Store) DeleteAllPromos(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("1 = 1").Delete(&Promo{})
	return res.RowsAffected, res.Error
}
