package domain

import "time"

// UserAlias is a stable pseudonym attached to redistributed messages in
// place of the sender's identity. Aliases never change once created.
type UserAlias struct {
	UserID    int64     `gorm:"primaryKey"`
	Alias     string    `gorm:"size:40;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (UserAlias) TableName() string { return "user_aliases" }
