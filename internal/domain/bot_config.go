package domain

// BotConfig is a key/value row for runtime configuration (signature text,
// signature toggle, and similar cells mutated by the admin surface).
type BotConfig struct {
	Key   string `gorm:"primaryKey;size:100"`
	Value string `gorm:"type:text;not null"`
}

func (BotConfig) TableName() string { return "bot_config" }

// Well-known config keys.
const (
	ConfigSignatureEnabled = "signature_enabled"
	ConfigSignatureText    = "signature_text"
)
