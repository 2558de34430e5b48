package domain

import "time"

// Subscription plans.
const (
	PlanWeek  = "week"
	PlanMonth = "month"
	PlanYear  = "year"
)

// Subscription is a paid entitlement for a chat. Purchases stack: a new
// subscription starts at the current expiry when one is still active.
type Subscription struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	ChatID int64  `gorm:"not null;index:idx_sub_chat_exp"`
	UserID int64  `gorm:"not null"`
	Plan   string `gorm:"size:20;not null"`
	Stars  int    `gorm:"not null"`

	StartsAt  time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index:idx_sub_chat_exp"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (Subscription) TableName() string { return "subscriptions" }
