package domain

import "time"

// Restriction kinds.
const (
	RestrictionMute = "mute"
	RestrictionBan  = "ban"
)

// UserRestriction is a moderation record. A banned or currently-muted user's
// messages are dropped at ingress. ExpiresAt == nil means permanent.
type UserRestriction struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	UserID   int64  `gorm:"not null;index:idx_restriction_user"`
	Kind     string `gorm:"size:10;not null;index:idx_restriction_user"`
	IssuedBy int64  `gorm:"not null"`

	IssuedAt  time.Time  `gorm:"not null;autoCreateTime"`
	ExpiresAt *time.Time `gorm:""`
	Active    bool       `gorm:"not null;default:true;index:idx_restriction_user"`
}

func (UserRestriction) TableName() string { return "user_restrictions" }
