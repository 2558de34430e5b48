package services

import (
	"time"

	"mediahub/internal/domain"
	hub_errors "mediahub/pkg/errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Normalizer converts raw platform messages into the engine's canonical
// content record. Unsupported content kinds (polls, contacts, locations,
// service messages) are rejected with ErrInvalidInput and never enter the
// pipeline.
type Normalizer struct {
	botID int64
	clock func() time.Time
}

// NewNormalizer creates a normalizer. botID is the engine's own user id,
// used to recognize replies to bot-sent copies.
func NewNormalizer(botID int64) *Normalizer {
	return &Normalizer{botID: botID, clock: time.Now}
}

// Normalize maps one incoming message to a NormalizedMessage. Returns
// ErrInvalidInput for content the engine does not redistribute.
func (n *Normalizer) Normalize(msg *tgbotapi.Message) (domain.NormalizedMessage, error) {
	out := domain.NormalizedMessage{
		SourceChatID:    msg.Chat.ID,
		SourceMessageID: int64(msg.MessageID),
		AlbumID:         msg.MediaGroupID,
		Caption:         msg.Caption,
		ArrivedAt:       n.clock(),
	}
	if msg.From != nil {
		out.SourceUserID = msg.From.ID
	}

	// Reply context is kept only when the parent is one of the engine's own
	// copies; replies to ordinary chat members carry no thread intent the
	// engine can honor elsewhere.
	if reply := msg.ReplyToMessage; reply != nil && reply.From != nil && reply.From.ID == n.botID {
		out.ReplyToMessageID = int64(reply.MessageID)
	}

	switch {
	case len(msg.Photo) > 0:
		out.Kind = domain.KindPhoto
		best := largestPhoto(msg.Photo)
		out.FileID = best.FileID
		out.FileUniqueID = best.FileUniqueID
		out.Width = best.Width
		out.Height = best.Height
	case msg.Video != nil:
		out.Kind = domain.KindVideo
		out.FileID = msg.Video.FileID
		out.FileUniqueID = msg.Video.FileUniqueID
		out.Duration = msg.Video.Duration
		out.Width = msg.Video.Width
		out.Height = msg.Video.Height
	case msg.Animation != nil:
		out.Kind = domain.KindAnimation
		out.FileID = msg.Animation.FileID
		out.FileUniqueID = msg.Animation.FileUniqueID
		out.Duration = msg.Animation.Duration
		out.Width = msg.Animation.Width
		out.Height = msg.Animation.Height
	case msg.Audio != nil:
		out.Kind = domain.KindAudio
		out.FileID = msg.Audio.FileID
		out.FileUniqueID = msg.Audio.FileUniqueID
		out.Duration = msg.Audio.Duration
		out.Performer = msg.Audio.Performer
		out.Title = msg.Audio.Title
	case msg.Voice != nil:
		out.Kind = domain.KindVoice
		out.FileID = msg.Voice.FileID
		out.FileUniqueID = msg.Voice.FileUniqueID
		out.Duration = msg.Voice.Duration
	case msg.VideoNote != nil:
		out.Kind = domain.KindVideoNote
		out.FileID = msg.VideoNote.FileID
		out.FileUniqueID = msg.VideoNote.FileUniqueID
		out.Duration = msg.VideoNote.Duration
		out.Width = msg.VideoNote.Length
	case msg.Document != nil:
		out.Kind = domain.KindDocument
		out.FileID = msg.Document.FileID
		out.FileUniqueID = msg.Document.FileUniqueID
		out.FileName = msg.Document.FileName
	case msg.Sticker != nil:
		out.Kind = domain.KindSticker
		out.FileID = msg.Sticker.FileID
		out.FileUniqueID = msg.Sticker.FileUniqueID
	case msg.Text != "":
		out.Kind = domain.KindText
		out.Text = msg.Text
	default:
		return domain.NormalizedMessage{}, hub_errors.ErrInvalidInput
	}

	return out, nil
}

// largestPhoto picks the highest-resolution rendition from the platform's
// size ladder.
func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}
