package storage

import "time"

// User is a bot user row. Created on first interaction, updated on every
// interaction, never deleted by the bot.
type User struct {
	ID         int64  `gorm:"primaryKey"`
	Username   string `gorm:"size:255"`
	FirstName  string `gorm:"size:255"`
	LastName   string `gorm:"size:255"`
	JoinedAt   time.Time
	LastActive time.Time
	IsActive   bool `gorm:"default:true"`
}

func (User) TableName() string { return "users" }

// Download is an append-only record of one completed delivery.
type Download struct {
	ID           uint  `gorm:"primaryKey;autoIncrement"`
	UserID       int64 `gorm:"index;not null"`
	SongTitle    string
	Format       string `gorm:"size:16;not null"`
	Effect       string `gorm:"size:64"`
	DownloadedAt time.Time
}

func (Download) TableName() string { return "downloads" }

// Setting is a string key/value pair. Absence of a key means the feature it
// controls is disabled.
type Setting struct {
	Key   string `gorm:"primaryKey;size:64"`
	Value string
}

func (Setting) TableName() string { return "bot_settings" }

// Promo is a promotional banner. The table may retain history, but the active
// selection rule is "most recently created wins" with row id as the stable
// tie-break.
type Promo struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	FileID    string `gorm:"not null"`
	Caption   string
	CreatedAt time.Time
}

func (Promo) TableName() string { return "promos" }
