package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mediahub/internal/domain"
	"mediahub/internal/repository"
	"mediahub/internal/telegram"
	"mediahub/pkg/logger"
)

const (
	maxSendAttempts = 3
	mediaGroupMax   = 10
)

// Pacer is the rate-limit and circuit-breaker surface the sender obeys.
type Pacer interface {
	AcquireGlobal(ctx context.Context) error
	AcquireChat(ctx context.Context, destChatID int64, chatKind string) error
	DestinationOpen(destChatID int64) (time.Duration, bool)
	GlobalPauseRemaining() time.Duration
	ReportSuccess(destChatID int64)
	ReportError(destChatID int64) bool
	Report429() bool
}

// Sender drains the task queue through a fixed worker pool. Workers share
// the Redis-backed pacer, so the global send rate holds regardless of pool
// size or process count.
type Sender struct {
	queue   *TaskQueue
	client  telegram.Client
	pacer   Pacer
	chats   repository.ChatRepository
	sendLog repository.SendLogRepository
	log     *logger.Logger

	workers int
	wg      sync.WaitGroup
}

// NewSender creates the sender pool. workers is the number of concurrent
// dispatchers.
func NewSender(queue *TaskQueue, client telegram.Client, pacer Pacer, chats repository.ChatRepository, sendLog repository.SendLogRepository, workers int, log *logger.Logger) *Sender {
	if workers <= 0 {
		workers = 1
	}
	return &Sender{
		queue:   queue,
		client:  client,
		pacer:   pacer,
		chats:   chats,
		sendLog: sendLog,
		log:     log,
		workers: workers,
	}
}

// Run starts the workers and blocks until ctx is canceled and all workers
// have drained their in-flight task.
func (s *Sender) Run(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func(id int) {
			defer s.wg.Done()
			s.worker(ctx, id)
		}(i)
	}
	s.wg.Wait()
}

func (s *Sender) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.queue.Tasks():
			s.process(ctx, task)
		}
	}
}

func (s *Sender) process(ctx context.Context, task SendTask) {
	// Park while the global breaker is open; the queue holds the backlog.
	if remaining := s.pacer.GlobalPauseRemaining(); remaining > 0 {
		if err := sleepCtx(ctx, remaining); err != nil {
			return
		}
	}

	if remaining, open := s.pacer.DestinationOpen(task.DestChatID); open {
		s.log.Debugf("destination %d breaker open (%s left), deferring task", task.DestChatID, remaining)
		s.requeue(ctx, task, remaining)
		return
	}

	if err := s.pacer.AcquireGlobal(ctx); err != nil {
		return
	}
	if err := s.pacer.AcquireChat(ctx, task.DestChatID, task.DestKind); err != nil {
		return
	}

	pairs, err := s.dispatch(ctx, task)
	s.record(ctx, task, pairs)

	if err == nil {
		s.pacer.ReportSuccess(task.DestChatID)
		return
	}
	s.handleSendError(ctx, task, pairs, err)
}

// sentPair maps one source message to its delivered copy.
type sentPair struct {
	srcMsgID  int64
	destMsgID int64
}

func (s *Sender) dispatch(ctx context.Context, task SendTask) ([]sentPair, error) {
	m := task.Message
	if m.Kind == domain.KindAlbum {
		return s.dispatchAlbum(ctx, task)
	}

	maxLen := CaptionMaxLen
	if m.Kind == domain.KindText {
		maxLen = TextMaxLen
	}
	body := ComposeBody(m.Body(), task.AliasTag, task.Signature, maxLen)

	var sent telegram.Sent
	var err error
	switch m.Kind {
	case domain.KindText:
		sent, err = s.client.SendText(ctx, task.DestChatID, body, task.ReplyTo)
	case domain.KindPhoto:
		sent, err = s.client.SendPhoto(ctx, task.DestChatID, m, body, task.ReplyTo)
	case domain.KindVideo:
		sent, err = s.client.SendVideo(ctx, task.DestChatID, m, body, task.ReplyTo)
	case domain.KindAnimation:
		sent, err = s.client.SendAnimation(ctx, task.DestChatID, m, body, task.ReplyTo)
	case domain.KindAudio:
		sent, err = s.client.SendAudio(ctx, task.DestChatID, m, body, task.ReplyTo)
	case domain.KindDocument:
		sent, err = s.client.SendDocument(ctx, task.DestChatID, m, body, task.ReplyTo)
	case domain.KindVoice:
		sent, err = s.client.SendVoice(ctx, task.DestChatID, m, body, task.ReplyTo)
	case domain.KindVideoNote:
		sent, err = s.client.SendVideoNote(ctx, task.DestChatID, m, task.ReplyTo)
	case domain.KindSticker:
		sent, err = s.client.SendSticker(ctx, task.DestChatID, m, task.ReplyTo)
	default:
		return nil, fmt.Errorf("unsupported message kind %q", m.Kind)
	}
	if err != nil {
		return nil, err
	}
	return []sentPair{{srcMsgID: m.SourceMessageID, destMsgID: sent.MessageID}}, nil
}

// dispatchAlbum sends an album as one or more media groups plus individual
// sends for kinds the platform refuses to group. Returns the pairs that
// made it out even when a later chunk fails, so partial deliveries still
// land in the send log.
func (s *Sender) dispatchAlbum(ctx context.Context, task SendTask) ([]sentPair, error) {
	m := task.Message
	caption := ComposeBody(m.Caption, task.AliasTag, task.Signature, CaptionMaxLen)

	groups, singles := splitAlbum(m.GroupItems)

	var pairs []sentPair
	anchor := task.ReplyTo
	captionPending := true

	for _, chunk := range groups {
		items := make([]telegram.GroupItem, 0, len(chunk))
		for i, member := range chunk {
			gi := telegram.GroupItem{Item: member}
			if captionPending && i == 0 {
				gi.Caption = caption
				captionPending = false
			}
			items = append(items, gi)
		}

		sent, err := s.client.SendMediaGroup(ctx, task.DestChatID, items, anchor)
		for i, msg := range sent {
			if i < len(chunk) {
				pairs = append(pairs, sentPair{srcMsgID: chunk[i].SourceMessageID, destMsgID: msg.MessageID})
			}
		}
		if err != nil {
			return pairs, err
		}
		anchor = nil
	}

	for _, member := range singles {
		memberCaption := ""
		if captionPending && member.Kind != domain.KindVideoNote && member.Kind != domain.KindSticker {
			memberCaption = caption
			captionPending = false
		}
		single := task
		single.Message = member
		single.ReplyTo = anchor
		single.Signature = ""
		single.AliasTag = ""
		single.Message.Caption = memberCaption

		got, err := s.dispatch(ctx, single)
		pairs = append(pairs, got...)
		if err != nil {
			return pairs, err
		}
		anchor = nil
	}

	return pairs, nil
}

// splitAlbum partitions album members into groupable chunks and
// individually-sent leftovers. The platform only groups photos and videos
// together; audio groups with audio, documents with documents. Everything
// else goes out one by one.
func splitAlbum(members []domain.NormalizedMessage) (groups [][]domain.NormalizedMessage, singles []domain.NormalizedMessage) {
	var visual, audio, docs []domain.NormalizedMessage
	for _, m := range members {
		switch m.Kind {
		case domain.KindPhoto, domain.KindVideo:
			visual = append(visual, m)
		case domain.KindAudio:
			audio = append(audio, m)
		case domain.KindDocument:
			docs = append(docs, m)
		default:
			singles = append(singles, m)
		}
	}

	for _, class := range [][]domain.NormalizedMessage{visual, audio, docs} {
		for len(class) > 0 {
			n := len(class)
			if n > mediaGroupMax {
				n = mediaGroupMax
			}
			if n == 1 {
				singles = append(singles, class[0])
			} else {
				groups = append(groups, class[:n])
			}
			class = class[n:]
		}
	}
	return groups, singles
}

func (s *Sender) record(ctx context.Context, task SendTask, pairs []sentPair) {
	for _, p := range pairs {
		entry := &domain.SendLog{
			SourceChatID:    task.Message.SourceChatID,
			SourceMessageID: p.srcMsgID,
			DestChatID:      task.DestChatID,
			DestMessageID:   p.destMsgID,
			SourceUserID:    task.Message.SourceUserID,
		}
		if err := s.sendLog.Record(ctx, entry); err != nil {
			s.log.Errorf("send log write failed for dest %d message %d: %v",
				task.DestChatID, p.destMsgID, err)
		}
	}
}

func (s *Sender) handleSendError(ctx context.Context, task SendTask, pairs []sentPair, err error) {
	var sendErr *telegram.SendError
	if !errors.As(err, &sendErr) {
		// Context cancellation during shutdown; the task is lost by design
		// of a best-effort redistribution engine.
		return
	}

	switch sendErr.Kind {
	case telegram.ErrKindTooManyRequests:
		if s.pacer.Report429() {
			s.log.Warnf("global breaker opened after repeated rate rejections")
		}
		if len(pairs) > 0 {
			// Partial album delivery: re-sending would duplicate the chunks
			// that already landed.
			s.log.Warnf("dropping partially delivered album for dest %d after rate rejection", task.DestChatID)
			return
		}
		wait := sendErr.RetryAfter
		if wait <= 0 {
			wait = time.Second
		}
		task.Attempts++
		if task.Attempts >= maxSendAttempts {
			s.log.Errorf("dropping task for dest %d after %d rate-limited attempts", task.DestChatID, task.Attempts)
			return
		}
		s.requeue(ctx, task, wait)

	case telegram.ErrKindMigrated:
		s.log.Infof("chat %d migrated to %d, re-addressing", task.DestChatID, sendErr.MigrateToChatID)
		if err := s.chats.Rename(ctx, task.DestChatID, sendErr.MigrateToChatID); err != nil {
			s.log.Errorf("chat migration update failed: %v", err)
			return
		}
		task.DestChatID = sendErr.MigrateToChatID
		task.DestKind = domain.ChatKindSupergroup
		task.Attempts++
		if task.Attempts < maxSendAttempts {
			s.requeue(ctx, task, 0)
		}

	case telegram.ErrKindForbidden, telegram.ErrKindChatNotFound:
		s.log.Infof("deactivating unreachable chat %d: %s", task.DestChatID, sendErr.Message)
		if err := s.chats.Deactivate(ctx, task.DestChatID); err != nil {
			s.log.Errorf("chat deactivation failed: %v", err)
		}

	case telegram.ErrKindBadRequest:
		s.log.Errorf("dropping undeliverable task for dest %d: %s", task.DestChatID, sendErr.Message)

	case telegram.ErrKindNetwork:
		// Transient transport failure: retry without charging the
		// destination breaker, which is reserved for errors the
		// destination itself caused.
		task.Attempts++
		if task.Attempts >= maxSendAttempts || len(pairs) > 0 {
			s.log.Errorf("dropping task for dest %d after %d attempts: %v", task.DestChatID, task.Attempts, err)
			return
		}
		s.requeue(ctx, task, time.Second)

	default:
		tripped := s.pacer.ReportError(task.DestChatID)
		if tripped {
			s.log.Warnf("destination %d breaker opened after repeated errors", task.DestChatID)
		}
		task.Attempts++
		if task.Attempts >= maxSendAttempts || len(pairs) > 0 {
			s.log.Errorf("dropping task for dest %d after %d attempts: %v", task.DestChatID, task.Attempts, err)
			return
		}
		s.requeue(ctx, task, time.Second)
	}
}

// requeue puts a task back on the queue after a delay without blocking the
// worker that hit the error.
func (s *Sender) requeue(ctx context.Context, task SendTask, after time.Duration) {
	go func() {
		if after > 0 {
			if err := sleepCtx(ctx, after); err != nil {
				return
			}
		}
		if err := s.queue.Enqueue(ctx, task); err != nil {
			s.log.Warnf("requeue for dest %d abandoned: %v", task.DestChatID, err)
		}
	}()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
