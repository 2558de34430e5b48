package domain

import "time"

// MessageKind identifies the single content kind carried by a NormalizedMessage.
type MessageKind string

const (
	KindText      MessageKind = "text"
	KindPhoto     MessageKind = "photo"
	KindVideo     MessageKind = "video"
	KindAnimation MessageKind = "animation"
	KindAudio     MessageKind = "audio"
	KindDocument  MessageKind = "document"
	KindVoice     MessageKind = "voice"
	KindVideoNote MessageKind = "video_note"
	KindSticker   MessageKind = "sticker"
	KindAlbum     MessageKind = "album"
)

// NormalizedMessage is the canonical content record the engine works with.
// Media payloads carry a stable file handle (FileID) that Telegram accepts
// for re-sending without uploading bytes again; FileUniqueID is the
// cross-chat-stable identifier used for deduplication.
//
// JSON tags exist because album parts are serialized into the Redis buffer.
type NormalizedMessage struct {
	Kind            MessageKind `json:"kind"`
	SourceChatID    int64       `json:"source_chat_id"`
	SourceMessageID int64       `json:"source_message_id"`
	SourceUserID    int64       `json:"source_user_id,omitempty"`
	AlbumID         string      `json:"album_id,omitempty"`

	Text    string `json:"text,omitempty"`
	Caption string `json:"caption,omitempty"`

	FileID       string `json:"file_id,omitempty"`
	FileUniqueID string `json:"file_unique_id,omitempty"`

	Duration  int    `json:"duration,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Performer string `json:"performer,omitempty"`
	Title     string `json:"title,omitempty"`
	FileName  string `json:"file_name,omitempty"`

	HasSpoiler bool `json:"has_spoiler,omitempty"`

	// Album members, populated only when Kind == KindAlbum. Never nested.
	GroupItems []NormalizedMessage `json:"-"`

	// ReplyToMessageID is the source-chat id of the bot-sent message this
	// message replies to. Zero when the message is not a reply to the bot.
	ReplyToMessageID int64 `json:"reply_to_message_id,omitempty"`

	ArrivedAt time.Time `json:"arrived_at"`
}

// IsMedia reports whether the kind carries a file handle payload.
func (m NormalizedMessage) IsMedia() bool {
	return m.Kind != KindText && m.Kind != KindAlbum
}

// Body returns the user-visible text of the message: the text body for
// text messages, the caption for media.
func (m NormalizedMessage) Body() string {
	if m.Kind == KindText {
		return m.Text
	}
	return m.Caption
}
