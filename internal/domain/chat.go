package domain

import "time"

// Chat kinds as reported by the platform.
const (
	ChatKindPrivate    = "private"
	ChatKindGroup      = "group"
	ChatKindSupergroup = "supergroup"
	ChatKindChannel    = "channel"
)

// Edit redistribution modes.
const (
	EditModeOff    = "off"
	EditModeResend = "resend"
)

// Chat is the registry entry for every chat the bot belongs to.
// Created on first sight, deactivated (soft delete) on permanent send failure.
type Chat struct {
	ChatID   int64  `gorm:"primaryKey" json:"chat_id"`
	Kind     string `gorm:"size:20;not null" json:"kind"`
	Title    string `gorm:"size:255" json:"title,omitempty"`
	Username string `gorm:"size:255" json:"username,omitempty"`

	Active        bool   `gorm:"not null;default:true;index:idx_chats_active_dest" json:"active"`
	IsSource      bool   `gorm:"not null;default:true" json:"is_source"`
	IsDestination bool   `gorm:"not null;default:true;index:idx_chats_active_dest" json:"is_destination"`
	AllowSelfSend bool   `gorm:"not null;default:false" json:"allow_self_send"`
	InPaused      bool   `gorm:"not null;default:false" json:"in_paused"`
	OutPaused     bool   `gorm:"not null;default:false" json:"out_paused"`
	EditMode      string `gorm:"size:10;not null;default:off" json:"edit_mode"`

	RegisteredAt time.Time `gorm:"not null;autoCreateTime" json:"registered_at"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Chat) TableName() string { return "chats" }
