package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"mediahub/internal/domain"
	"mediahub/internal/repository"
	hub_errors "mediahub/pkg/errors"
	"mediahub/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const shutdownGrace = 30 * time.Second

// Engine is the ingest orchestrator: it turns raw platform updates into
// fan-out work. One Engine instance handles all updates of one process.
type Engine struct {
	normalizer  *Normalizer
	deduper     *Deduper
	collector   *AlbumCollector
	distributor *Distributor
	moderation  *ModerationService
	chats       repository.ChatRepository
	queue       *TaskQueue
	log         *logger.Logger

	healthy atomic.Bool
}

// NewEngine wires the ingest pipeline.
func NewEngine(
	normalizer *Normalizer,
	deduper *Deduper,
	collector *AlbumCollector,
	distributor *Distributor,
	moderation *ModerationService,
	chats repository.ChatRepository,
	queue *TaskQueue,
	log *logger.Logger,
) *Engine {
	e := &Engine{
		normalizer:  normalizer,
		deduper:     deduper,
		collector:   collector,
		distributor: distributor,
		moderation:  moderation,
		chats:       chats,
		queue:       queue,
		log:         log,
	}
	e.healthy.Store(true)
	return e
}

// Healthy reports whether the engine accepts and dispatches work. The
// durable-store pinger flips this.
func (e *Engine) Healthy() bool {
	return e.healthy.Load()
}

// SetHealthy updates the health gate.
func (e *Engine) SetHealthy(ok bool) {
	was := e.healthy.Swap(ok)
	if was != ok {
		if ok {
			e.log.Infof("engine healthy again, resuming intake")
		} else {
			e.log.Warnf("engine unhealthy, refusing new intake")
		}
	}
}

// HandleUpdate routes one platform update through the pipeline. Errors are
// logged, never returned: an update that cannot be processed is dropped and
// the poll loop moves on.
func (e *Engine) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		e.handleIncoming(ctx, update.Message, false)
	case update.ChannelPost != nil:
		e.handleIncoming(ctx, update.ChannelPost, false)
	case update.EditedMessage != nil:
		e.handleIncoming(ctx, update.EditedMessage, true)
	case update.EditedChannelPost != nil:
		e.handleIncoming(ctx, update.EditedChannelPost, true)
	}
}

func (e *Engine) handleIncoming(ctx context.Context, msg *tgbotapi.Message, edited bool) {
	if !e.healthy.Load() {
		return
	}
	// The bot's own deliveries come back as channel-post updates; letting
	// them re-enter would loop forever.
	if msg.From != nil && msg.From.ID == e.normalizer.botID {
		return
	}
	ctx = logger.WithChatID(ctx, msg.Chat.ID)

	e.registerChat(ctx, msg.Chat)

	if msg.From != nil && e.moderation.IsRestricted(ctx, msg.From.ID) {
		e.log.Debugf("dropping message from restricted user %d", msg.From.ID)
		return
	}

	normalized, err := e.normalizer.Normalize(msg)
	if err != nil {
		if !errors.Is(err, hub_errors.ErrInvalidInput) {
			e.log.Errorf("normalization failed: %v", err)
		}
		return
	}

	isSource, err := e.chats.IsActiveSource(ctx, normalized.SourceChatID)
	if err != nil {
		e.log.Errorf("source check failed for chat %d: %v", normalized.SourceChatID, err)
		return
	}
	if !isSource {
		return
	}

	if edited {
		if err := e.distributor.PropagateEdit(ctx, normalized); err != nil {
			e.log.Errorf("edit propagation failed: %v", err)
		}
		return
	}

	if normalized.AlbumID != "" {
		if err := e.collector.Add(ctx, normalized); err != nil {
			e.log.Errorf("album buffering failed for %s: %v", normalized.AlbumID, err)
		}
		return
	}

	e.acceptMessage(ctx, normalized)
}

// acceptMessage runs the dedup gate and fans out. It is also the album
// collector's emit target, so assembled albums follow the same path.
func (e *Engine) acceptMessage(ctx context.Context, msg domain.NormalizedMessage) {
	dup, err := e.deduper.IsDuplicate(ctx, msg)
	if err != nil {
		// Fail open: a marker-store outage should not stop redistribution.
		e.log.Warnf("dedup check failed, passing message through: %v", err)
	}
	if dup {
		e.log.Debugf("dropping duplicate message %d from chat %d", msg.SourceMessageID, msg.SourceChatID)
		return
	}

	if err := e.distributor.Distribute(ctx, msg); err != nil && !errors.Is(err, hub_errors.ErrPaused) {
		e.log.Errorf("fan-out failed for message %d: %v", msg.SourceMessageID, err)
	}
}

// AcceptAlbum is the collector callback.
func (e *Engine) AcceptAlbum(ctx context.Context, album domain.NormalizedMessage) {
	ctx = logger.WithChatID(ctx, album.SourceChatID)
	e.acceptMessage(ctx, album)
}

// registerChat records or refreshes the chat on every sighting, keeping the
// registry's title and username current.
func (e *Engine) registerChat(ctx context.Context, chat *tgbotapi.Chat) {
	entry := &domain.Chat{
		ChatID:   chat.ID,
		Kind:     chat.Type,
		Title:    chatTitle(chat),
		Username: chat.UserName,
		// A chat that reaches us is reachable; a previously deactivated chat
		// comes back on sight.
		Active: true,
	}
	if err := e.chats.Upsert(ctx, entry); err != nil {
		e.log.Errorf("chat registration failed for %d: %v", chat.ID, err)
	}
}

func chatTitle(chat *tgbotapi.Chat) string {
	if chat.Title != "" {
		return chat.Title
	}
	name := chat.FirstName
	if chat.LastName != "" {
		name += " " + chat.LastName
	}
	return name
}

// Shutdown stops intake and waits up to the grace period for the task queue
// to drain. Tasks still queued after the grace are abandoned.
func (e *Engine) Shutdown(ctx context.Context) {
	e.healthy.Store(false)

	deadline := time.NewTimer(shutdownGrace)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for e.queue.Len() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			e.log.Warnf("shutdown grace expired with %d tasks still queued", e.queue.Len())
			return
		case <-tick.C:
		}
	}
	e.log.Infof("task queue drained")
}
