package telegram

import (
	"context"

	"mediahub/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ReplyAnchor addresses the message a send should thread under.
// AllowMissing makes the platform deliver a plain message when the anchor
// no longer exists; the engine always sets it.
type ReplyAnchor struct {
	MessageID    int64
	AllowMissing bool
}

// Sent identifies a delivered message.
type Sent struct {
	MessageID int64
}

// GroupItem is one member of an outbound media group. Caption is the final
// composed caption; only the first item of a group carries one.
type GroupItem struct {
	Item    domain.NormalizedMessage
	Caption string
}

// Client is the platform surface the engine sends through. Every operation
// re-sends content as an original message from a stable file handle; none
// of them uses a forward or copy primitive.
type Client interface {
	SendText(ctx context.Context, chatID int64, text string, anchor *ReplyAnchor) (Sent, error)
	SendPhoto(ctx context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *ReplyAnchor) (Sent, error)
	SendVideo(ctx context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *ReplyAnchor) (Sent, error)
	SendAnimation(ctx context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *ReplyAnchor) (Sent, error)
	SendAudio(ctx context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *ReplyAnchor) (Sent, error)
	SendDocument(ctx context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *ReplyAnchor) (Sent, error)
	SendVoice(ctx context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *ReplyAnchor) (Sent, error)
	SendVideoNote(ctx context.Context, chatID int64, m domain.NormalizedMessage, anchor *ReplyAnchor) (Sent, error)
	SendSticker(ctx context.Context, chatID int64, m domain.NormalizedMessage, anchor *ReplyAnchor) (Sent, error)
	SendMediaGroup(ctx context.Context, chatID int64, items []GroupItem, anchor *ReplyAnchor) ([]Sent, error)
}

// botAPI is the slice of *tgbotapi.BotAPI the client needs; narrowed to an
// interface so tests can script the platform.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMediaGroup(config tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

// BotClient implements Client on top of the Bot API.
type BotClient struct {
	api botAPI
}

// NewBotClient wraps an authorized Bot API handle.
func NewBotClient(api *tgbotapi.BotAPI) *BotClient {
	return &BotClient{api: api}
}

func newBotClientWithAPI(api botAPI) *BotClient {
	return &BotClient{api: api}
}

func applyAnchor(base *tgbotapi.BaseChat, anchor *ReplyAnchor) {
	if anchor == nil {
		return
	}
	base.ReplyToMessageID = int(anchor.MessageID)
	base.AllowSendingWithoutReply = anchor.AllowMissing
}

func (c *BotClient) send(ctx context.Context, cfg tgbotapi.Chattable) (Sent, error) {
	if err := ctx.Err(); err != nil {
		return Sent{}, err
	}
	msg, err := c.api.Send(cfg)
	if err != nil {
		return Sent{}, classify(err)
	}
	return Sent{MessageID: int64(msg.MessageID)}, nil
}

func (c *BotClient) SendText(ctx context.Context, chatID int64, text string, anchor *ReplyAnchor) (Sent, error) {
	cfg := tgbotapi.NewMessage(chatID, text)
	applyAnchor(&cfg.BaseChat, anchor)
	return c.send(ctx, cfg)
}

func (c *BotClient) SendPhoto(ctx context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *ReplyAnchor) (Sent, error) {
	cfg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(m.FileID))
	cfg.Caption = caption
	applyAnchor(&cfg.BaseChat, anchor)
	return c.send(ctx, cfg)
}

func (c *BotClient) SendVideo(ctx context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *ReplyAnchor) (Sent, error) {
	cfg := tgbotapi.NewVideo(chatID, tgbotapi.FileID(m.FileID))
	cfg.Caption = caption
	cfg.Duration = m.Duration
	cfg.SupportsStreaming = true
	applyAnchor(&cfg.BaseChat, anchor)
	return c.send(ctx, cfg)
}

func (c *BotClient) SendAnimation(ctx context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *ReplyAnchor) (Sent, error) {
	cfg := tgbotapi.NewAnimation(chatID, tgbotapi.FileID(m.FileID))
	cfg.Caption = caption
	cfg.Duration = m.Duration
	applyAnchor(&cfg.BaseChat, anchor)
	return c.send(ctx, cfg)
}

func (c *BotClient) SendAudio(ctx context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *ReplyAnchor) (Sent, error) {
	cfg := tgbotapi.NewAudio(chatID, tgbotapi.FileID(m.FileID))
	cfg.Caption = caption
	cfg.Duration = m.Duration
	cfg.Performer = m.Performer
	cfg.Title = m.Title
	applyAnchor(&cfg.BaseChat, anchor)
	return c.send(ctx, cfg)
}

func (c *BotClient) SendDocument(ctx context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *ReplyAnchor) (Sent, error) {
	cfg := tgbotapi.NewDocument(chatID, tgbotapi.FileID(m.FileID))
	cfg.Caption = caption
	applyAnchor(&cfg.BaseChat, anchor)
	return c.send(ctx, cfg)
}

func (c *BotClient) SendVoice(ctx context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *ReplyAnchor) (Sent, error) {
	cfg := tgbotapi.NewVoice(chatID, tgbotapi.FileID(m.FileID))
	cfg.Caption = caption
	cfg.Duration = m.Duration
	applyAnchor(&cfg.BaseChat, anchor)
	return c.send(ctx, cfg)
}

func (c *BotClient) SendVideoNote(ctx context.Context, chatID int64, m domain.NormalizedMessage, anchor *ReplyAnchor) (Sent, error) {
	cfg := tgbotapi.NewVideoNote(chatID, m.Width, tgbotapi.FileID(m.FileID))
	cfg.Duration = m.Duration
	applyAnchor(&cfg.BaseChat, anchor)
	return c.send(ctx, cfg)
}

func (c *BotClient) SendSticker(ctx context.Context, chatID int64, m domain.NormalizedMessage, anchor *ReplyAnchor) (Sent, error) {
	cfg := tgbotapi.NewSticker(chatID, tgbotapi.FileID(m.FileID))
	applyAnchor(&cfg.BaseChat, anchor)
	return c.send(ctx, cfg)
}

func (c *BotClient) SendMediaGroup(ctx context.Context, chatID int64, items []GroupItem, anchor *ReplyAnchor) ([]Sent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	media := make([]interface{}, 0, len(items))
	for _, gi := range items {
		media = append(media, inputMedia(gi))
	}

	cfg := tgbotapi.NewMediaGroup(chatID, media)
	if anchor != nil {
		cfg.ReplyToMessageID = int(anchor.MessageID)
	}

	msgs, err := c.api.SendMediaGroup(cfg)
	if err != nil {
		return nil, classify(err)
	}
	sent := make([]Sent, 0, len(msgs))
	for _, msg := range msgs {
		sent = append(sent, Sent{MessageID: int64(msg.MessageID)})
	}
	return sent, nil
}

func inputMedia(gi GroupItem) interface{} {
	m := gi.Item
	switch m.Kind {
	case domain.KindVideo:
		im := tgbotapi.NewInputMediaVideo(tgbotapi.FileID(m.FileID))
		im.Caption = gi.Caption
		im.Duration = m.Duration
		im.SupportsStreaming = true
		return im
	case domain.KindAnimation:
		im := tgbotapi.NewInputMediaAnimation(tgbotapi.FileID(m.FileID))
		im.Caption = gi.Caption
		im.Duration = m.Duration
		return im
	case domain.KindAudio:
		im := tgbotapi.NewInputMediaAudio(tgbotapi.FileID(m.FileID))
		im.Caption = gi.Caption
		im.Duration = m.Duration
		im.Performer = m.Performer
		im.Title = m.Title
		return im
	case domain.KindDocument:
		im := tgbotapi.NewInputMediaDocument(tgbotapi.FileID(m.FileID))
		im.Caption = gi.Caption
		return im
	default:
		im := tgbotapi.NewInputMediaPhoto(tgbotapi.FileID(m.FileID))
		im.Caption = gi.Caption
		return im
	}
}
