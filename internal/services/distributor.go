package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediahub/internal/domain"
	"mediahub/internal/repository"
	"mediahub/internal/telegram"
	hub_errors "mediahub/pkg/errors"
	"mediahub/pkg/logger"
)

// SendTask is one unit of outbound work: a message addressed to a single
// destination, with its composed suffixes snapshotted at fan-out time so
// every copy of one fan-out carries the same signature.
type SendTask struct {
	Message    domain.NormalizedMessage
	DestChatID int64
	DestKind   string
	ReplyTo    *telegram.ReplyAnchor
	Signature  string
	AliasTag   string
	Attempts   int
}

// TaskQueue is the bounded buffer between fan-out and the sender pool.
// Enqueue blocks when the queue is full, backpressuring ingest instead of
// dropping work.
type TaskQueue struct {
	ch chan SendTask
}

// NewTaskQueue creates a queue holding at most size tasks.
func NewTaskQueue(size int) *TaskQueue {
	return &TaskQueue{ch: make(chan SendTask, size)}
}

// Enqueue adds a task, blocking until there is room or ctx is canceled.
func (q *TaskQueue) Enqueue(ctx context.Context, task SendTask) error {
	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tasks exposes the receive side for the sender pool.
func (q *TaskQueue) Tasks() <-chan SendTask {
	return q.ch
}

// Len returns the number of queued tasks.
func (q *TaskQueue) Len() int {
	return len(q.ch)
}

// EntitlementChecker answers whether a source chat may redistribute.
type EntitlementChecker interface {
	Entitled(ctx context.Context, chatID int64) (bool, error)
}

// AliasProvider resolves sender pseudonyms.
type AliasProvider interface {
	AliasFor(ctx context.Context, userID int64) (string, error)
}

// PaywallCounter tracks missed deliveries and nudge cooldowns for
// non-entitled sources.
type PaywallCounter interface {
	RecordMissed(ctx context.Context, chatID int64) (int64, error)
	NudgeAllowed(ctx context.Context, chatID int64) (bool, error)
}

// PauseState reports an engine-wide dispatch pause.
type PauseState interface {
	GlobalPauseRemaining() time.Duration
}

// Notifier delivers the paywall nudge to a source chat.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string, anchor *telegram.ReplyAnchor) (telegram.Sent, error)
}

// Distributor expands one accepted message into per-destination send tasks.
type Distributor struct {
	chats    repository.ChatRepository
	sendLog  repository.SendLogRepository
	config   repository.ConfigRepository
	ent      EntitlementChecker
	aliases  AliasProvider
	paywall  PaywallCounter
	pause    PauseState
	notifier Notifier
	queue    *TaskQueue
	log      *logger.Logger
}

// NewDistributor wires the fan-out stage.
func NewDistributor(
	chats repository.ChatRepository,
	sendLog repository.SendLogRepository,
	config repository.ConfigRepository,
	ent EntitlementChecker,
	aliases AliasProvider,
	paywall PaywallCounter,
	pause PauseState,
	notifier Notifier,
	queue *TaskQueue,
	log *logger.Logger,
) *Distributor {
	return &Distributor{
		chats:    chats,
		sendLog:  sendLog,
		config:   config,
		ent:      ent,
		aliases:  aliases,
		paywall:  paywall,
		pause:    pause,
		notifier: notifier,
		queue:    queue,
		log:      log,
	}
}

// Distribute fans one message out to every eligible destination. During a
// global pause the message is dropped, not queued: stale redistributed
// content is worse than missing content.
func (d *Distributor) Distribute(ctx context.Context, msg domain.NormalizedMessage) error {
	if remaining := d.pause.GlobalPauseRemaining(); remaining > 0 {
		d.log.Warnf("global pause active (%s left), dropping message %d from chat %d",
			remaining, msg.SourceMessageID, msg.SourceChatID)
		return hub_errors.ErrPaused
	}

	source, err := d.chats.Get(ctx, msg.SourceChatID)
	if err != nil {
		return fmt.Errorf("source chat lookup failed: %w", err)
	}
	if source.OutPaused {
		d.log.Debugf("source chat %d is out-paused, suppressing fan-out", source.ChatID)
		return nil
	}

	entitled, err := d.ent.Entitled(ctx, msg.SourceChatID)
	if err != nil {
		return fmt.Errorf("entitlement check failed: %w", err)
	}

	signature := d.signatureSnapshot(ctx)
	aliasTag := d.aliasSnapshot(ctx, msg.SourceUserID)
	origin := d.resolveReplyOrigin(ctx, msg)

	dests, err := d.chats.ActiveDestinations(ctx)
	if err != nil {
		return fmt.Errorf("destination listing failed: %w", err)
	}

	queued := 0
	suppressed := 0
	for _, dest := range dests {
		self := dest.ChatID == msg.SourceChatID
		if self && !source.AllowSelfSend {
			continue
		}
		if dest.InPaused {
			continue
		}
		// Entitlement gates redistribution to other chats; the echo back
		// into the source itself is always allowed.
		if !self && !entitled {
			suppressed++
			continue
		}

		task := SendTask{
			Message:    msg,
			DestChatID: dest.ChatID,
			DestKind:   dest.Kind,
			ReplyTo:    d.anchorFor(ctx, origin, dest.ChatID),
			Signature:  signature,
			AliasTag:   aliasTag,
		}
		if err := d.queue.Enqueue(ctx, task); err != nil {
			return err
		}
		queued++
	}

	if suppressed > 0 {
		d.handleNotEntitled(ctx, msg)
	}

	d.log.InfoCtx(ctx, fmt.Sprintf("fanned out message %d from chat %d to %d destinations",
		msg.SourceMessageID, msg.SourceChatID, queued))
	return nil
}

// PropagateEdit re-sends an edited message to every destination that
// already holds a copy, threaded under the stale copy. Only sources in
// resend edit mode propagate edits.
func (d *Distributor) PropagateEdit(ctx context.Context, msg domain.NormalizedMessage) error {
	source, err := d.chats.Get(ctx, msg.SourceChatID)
	if err != nil {
		return fmt.Errorf("source chat lookup failed: %w", err)
	}
	if source.EditMode != domain.EditModeResend || source.OutPaused {
		return nil
	}

	rows, err := d.sendLog.ForwardLookup(ctx, msg.SourceChatID, msg.SourceMessageID)
	if err != nil {
		return fmt.Errorf("edit origin lookup failed: %w", err)
	}
	if len(rows) == 0 {
		// Copy already pruned or the original was never redistributed.
		return nil
	}

	signature := d.signatureSnapshot(ctx)
	aliasTag := d.aliasSnapshot(ctx, msg.SourceUserID)

	for _, row := range rows {
		dest, err := d.chats.Get(ctx, row.DestChatID)
		if err != nil || !dest.Active || !dest.IsDestination || dest.InPaused {
			continue
		}
		task := SendTask{
			Message:    msg,
			DestChatID: dest.ChatID,
			DestKind:   dest.Kind,
			ReplyTo:    &telegram.ReplyAnchor{MessageID: row.DestMessageID, AllowMissing: true},
			Signature:  signature,
			AliasTag:   aliasTag,
		}
		if err := d.queue.Enqueue(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

func (d *Distributor) handleNotEntitled(ctx context.Context, msg domain.NormalizedMessage) {
	missed, err := d.paywall.RecordMissed(ctx, msg.SourceChatID)
	if err != nil {
		d.log.Errorf("missed counter failed for chat %d: %v", msg.SourceChatID, err)
	}

	allowed, err := d.paywall.NudgeAllowed(ctx, msg.SourceChatID)
	if err != nil || !allowed {
		return
	}

	// Nudge delivery must not hold up ingest.
	go func() {
		nudgeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		text := fmt.Sprintf(
			"Your access has expired, so your messages are no longer being shared (%d missed today). Use /subscribe to restore delivery.",
			missed)
		if _, err := d.notifier.SendText(nudgeCtx, msg.SourceChatID, text, nil); err != nil {
			d.log.Warnf("paywall nudge to chat %d failed: %v", msg.SourceChatID, err)
		}
	}()
}

func (d *Distributor) signatureSnapshot(ctx context.Context) string {
	enabled, err := d.config.GetBool(ctx, domain.ConfigSignatureEnabled, false)
	if err != nil || !enabled {
		return ""
	}
	text, err := d.config.GetValue(ctx, domain.ConfigSignatureText)
	if err != nil {
		return ""
	}
	return text
}

func (d *Distributor) aliasSnapshot(ctx context.Context, userID int64) string {
	if userID == 0 {
		return ""
	}
	alias, err := d.aliases.AliasFor(ctx, userID)
	if err != nil {
		d.log.Warnf("alias resolution failed for user %d: %v", userID, err)
		return ""
	}
	return FormatAliasTag(alias)
}

// resolveReplyOrigin maps a reply to a bot-sent copy back to the original
// source message, so the thread can be re-anchored per destination.
func (d *Distributor) resolveReplyOrigin(ctx context.Context, msg domain.NormalizedMessage) *domain.SendLog {
	if msg.ReplyToMessageID == 0 {
		return nil
	}
	row, err := d.sendLog.ReverseLookup(ctx, msg.SourceChatID, msg.ReplyToMessageID)
	if err != nil {
		if !errors.Is(err, hub_errors.ErrNotFound) {
			d.log.Warnf("reverse lookup failed for chat %d message %d: %v",
				msg.SourceChatID, msg.ReplyToMessageID, err)
		}
		return nil
	}
	return &row
}

// anchorFor finds the destination-local copy of the reply origin. A
// destination with no copy (joined later, or the copy was pruned) gets a
// plain unthreaded send.
func (d *Distributor) anchorFor(ctx context.Context, origin *domain.SendLog, destChatID int64) *telegram.ReplyAnchor {
	if origin == nil {
		return nil
	}
	destMsgID, err := d.sendLog.DestMessageID(ctx, origin.SourceChatID, origin.SourceMessageID, destChatID)
	if err != nil {
		d.log.Warnf("anchor lookup failed for dest %d: %v", destChatID, err)
		return nil
	}
	if destMsgID == 0 {
		return nil
	}
	return &telegram.ReplyAnchor{MessageID: destMsgID, AllowMissing: true}
}
