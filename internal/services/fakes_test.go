package services

import (
	"context"
	"sync"
	"time"

	"mediahub/internal/domain"
	"mediahub/internal/telegram"
	hub_errors "mediahub/pkg/errors"
)

// --- registry fake ---

type fakeChatRepo struct {
	mu          sync.Mutex
	chats       map[int64]domain.Chat
	deactivated []int64
	renames     [][2]int64
}

func newFakeChatRepo(chats ...domain.Chat) *fakeChatRepo {
	r := &fakeChatRepo{chats: make(map[int64]domain.Chat)}
	for _, c := range chats {
		r.chats[c.ChatID] = c
	}
	return r
}

// Upsert mirrors the conflict clause of the real repository: only the
// metadata columns change on an existing row, flags survive.
func (r *fakeChatRepo) Upsert(_ context.Context, chat *domain.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.chats[chat.ChatID]; ok {
		existing.Kind = chat.Kind
		existing.Title = chat.Title
		existing.Username = chat.Username
		existing.Active = chat.Active
		r.chats[chat.ChatID] = existing
		return nil
	}
	c := *chat
	c.IsSource = true
	c.IsDestination = true
	r.chats[chat.ChatID] = c
	return nil
}

func (r *fakeChatRepo) Get(_ context.Context, chatID int64) (domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return domain.Chat{}, hub_errors.ErrNotFound
	}
	return c, nil
}

func (r *fakeChatRepo) ActiveDestinations(_ context.Context) ([]domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Chat
	for _, c := range r.chats {
		if c.Active && c.IsDestination {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeChatRepo) IsActiveSource(_ context.Context, chatID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	return ok && c.Active && c.IsSource, nil
}

func (r *fakeChatRepo) Deactivate(_ context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return hub_errors.ErrNotFound
	}
	c.Active = false
	r.chats[chatID] = c
	r.deactivated = append(r.deactivated, chatID)
	return nil
}

func (r *fakeChatRepo) Rename(_ context.Context, oldID, newID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[oldID]
	if !ok {
		return hub_errors.ErrNotFound
	}
	delete(r.chats, oldID)
	c.ChatID = newID
	c.Kind = domain.ChatKindSupergroup
	r.chats[newID] = c
	r.renames = append(r.renames, [2]int64{oldID, newID})
	return nil
}

// --- send log fake ---

type fakeSendLog struct {
	mu   sync.Mutex
	rows []domain.SendLog
}

func (s *fakeSendLog) Record(_ context.Context, entry *domain.SendLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, *entry)
	return nil
}

func (s *fakeSendLog) ForwardLookup(_ context.Context, sourceChatID, sourceMessageID int64) ([]domain.SendLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SendLog
	for _, row := range s.rows {
		if row.SourceChatID == sourceChatID && row.SourceMessageID == sourceMessageID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *fakeSendLog) DestMessageID(_ context.Context, sourceChatID, sourceMessageID, destChatID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.SourceChatID == sourceChatID && row.SourceMessageID == sourceMessageID && row.DestChatID == destChatID {
			return row.DestMessageID, nil
		}
	}
	return 0, nil
}

func (s *fakeSendLog) ReverseLookup(_ context.Context, destChatID, destMessageID int64) (domain.SendLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.DestChatID == destChatID && row.DestMessageID == destMessageID {
			return row, nil
		}
	}
	return domain.SendLog{}, hub_errors.ErrNotFound
}

func (s *fakeSendLog) PruneBefore(_ context.Context, cutoff time.Time, batchSize int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []domain.SendLog
	var deleted int64
	for _, row := range s.rows {
		if row.CreatedAt.Before(cutoff) && deleted < int64(batchSize) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	s.rows = kept
	return deleted, nil
}

func (s *fakeSendLog) all() []domain.SendLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SendLog(nil), s.rows...)
}

// --- config fake ---

type fakeConfigRepo struct {
	values map[string]string
}

func (c *fakeConfigRepo) GetValue(_ context.Context, key string) (string, error) {
	return c.values[key], nil
}

func (c *fakeConfigRepo) SetValue(_ context.Context, key, value string) error {
	c.values[key] = value
	return nil
}

func (c *fakeConfigRepo) GetBool(_ context.Context, key string, fallback bool) (bool, error) {
	val, ok := c.values[key]
	if !ok {
		return fallback, nil
	}
	return val == "true" || val == "1" || val == "yes", nil
}

// --- gate fakes ---

type fakeEntitlement struct {
	entitled map[int64]bool
}

func (e *fakeEntitlement) Entitled(_ context.Context, chatID int64) (bool, error) {
	return e.entitled[chatID], nil
}

type fakeAliases struct {
	aliases map[int64]string
}

func (a *fakeAliases) AliasFor(_ context.Context, userID int64) (string, error) {
	return a.aliases[userID], nil
}

type fakePaywall struct {
	mu      sync.Mutex
	missed  map[int64]int64
	nudged  map[int64]bool
}

func newFakePaywall() *fakePaywall {
	return &fakePaywall{missed: make(map[int64]int64), nudged: make(map[int64]bool)}
}

func (p *fakePaywall) RecordMissed(_ context.Context, chatID int64) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.missed[chatID]++
	return p.missed[chatID], nil
}

func (p *fakePaywall) NudgeAllowed(_ context.Context, chatID int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nudged[chatID] {
		return false, nil
	}
	p.nudged[chatID] = true
	return true, nil
}

type fakePause struct {
	remaining time.Duration
}

func (p *fakePause) GlobalPauseRemaining() time.Duration { return p.remaining }

// --- pacer fake ---

type fakePacer struct {
	mu           sync.Mutex
	openChats    map[int64]time.Duration
	globalPause  time.Duration
	successes    []int64
	errorReports []int64
	count429     int
	trip429      bool
	tripChat     bool
}

func newFakePacer() *fakePacer {
	return &fakePacer{openChats: make(map[int64]time.Duration)}
}

func (p *fakePacer) AcquireGlobal(context.Context) error { return nil }

func (p *fakePacer) AcquireChat(context.Context, int64, string) error { return nil }

func (p *fakePacer) DestinationOpen(chatID int64) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.openChats[chatID]
	return d, ok
}

func (p *fakePacer) GlobalPauseRemaining() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.globalPause
}

func (p *fakePacer) ReportSuccess(chatID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.successes = append(p.successes, chatID)
}

func (p *fakePacer) ReportError(chatID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorReports = append(p.errorReports, chatID)
	return p.tripChat
}

func (p *fakePacer) Report429() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count429++
	return p.trip429
}

// --- platform client fake ---

type sentCall struct {
	op     string
	chatID int64
	body   string
	anchor *telegram.ReplyAnchor
	items  []telegram.GroupItem
}

type fakeClient struct {
	mu     sync.Mutex
	calls  []sentCall
	errs   map[int64][]error // popped per send to that chat
	nextID int64
}

func newFakeClient() *fakeClient {
	return &fakeClient{errs: make(map[int64][]error), nextID: 1000}
}

func (c *fakeClient) failNext(chatID int64, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[chatID] = append(c.errs[chatID], errs...)
}

func (c *fakeClient) record(op string, chatID int64, body string, anchor *telegram.ReplyAnchor, items []telegram.GroupItem) (telegram.Sent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, sentCall{op: op, chatID: chatID, body: body, anchor: anchor, items: items})
	if queue := c.errs[chatID]; len(queue) > 0 {
		err := queue[0]
		c.errs[chatID] = queue[1:]
		if err != nil {
			return telegram.Sent{}, err
		}
	}
	c.nextID++
	return telegram.Sent{MessageID: c.nextID}, nil
}

func (c *fakeClient) callsTo(chatID int64) []sentCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []sentCall
	for _, call := range c.calls {
		if call.chatID == chatID {
			out = append(out, call)
		}
	}
	return out
}

func (c *fakeClient) SendText(_ context.Context, chatID int64, text string, anchor *telegram.ReplyAnchor) (telegram.Sent, error) {
	return c.record("text", chatID, text, anchor, nil)
}

func (c *fakeClient) SendPhoto(_ context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *telegram.ReplyAnchor) (telegram.Sent, error) {
	return c.record("photo", chatID, caption, anchor, nil)
}

func (c *fakeClient) SendVideo(_ context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *telegram.ReplyAnchor) (telegram.Sent, error) {
	return c.record("video", chatID, caption, anchor, nil)
}

func (c *fakeClient) SendAnimation(_ context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *telegram.ReplyAnchor) (telegram.Sent, error) {
	return c.record("animation", chatID, caption, anchor, nil)
}

func (c *fakeClient) SendAudio(_ context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *telegram.ReplyAnchor) (telegram.Sent, error) {
	return c.record("audio", chatID, caption, anchor, nil)
}

func (c *fakeClient) SendDocument(_ context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *telegram.ReplyAnchor) (telegram.Sent, error) {
	return c.record("document", chatID, caption, anchor, nil)
}

func (c *fakeClient) SendVoice(_ context.Context, chatID int64, m domain.NormalizedMessage, caption string, anchor *telegram.ReplyAnchor) (telegram.Sent, error) {
	return c.record("voice", chatID, caption, anchor, nil)
}

func (c *fakeClient) SendVideoNote(_ context.Context, chatID int64, m domain.NormalizedMessage, anchor *telegram.ReplyAnchor) (telegram.Sent, error) {
	return c.record("video_note", chatID, "", anchor, nil)
}

func (c *fakeClient) SendSticker(_ context.Context, chatID int64, m domain.NormalizedMessage, anchor *telegram.ReplyAnchor) (telegram.Sent, error) {
	return c.record("sticker", chatID, "", anchor, nil)
}

func (c *fakeClient) SendMediaGroup(_ context.Context, chatID int64, items []telegram.GroupItem, anchor *telegram.ReplyAnchor) ([]telegram.Sent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, sentCall{op: "media_group", chatID: chatID, anchor: anchor, items: items})
	if queue := c.errs[chatID]; len(queue) > 0 {
		err := queue[0]
		c.errs[chatID] = queue[1:]
		if err != nil {
			return nil, err
		}
	}
	out := make([]telegram.Sent, 0, len(items))
	for range items {
		c.nextID++
		out = append(out, telegram.Sent{MessageID: c.nextID})
	}
	return out, nil
}

func drainTasks(q *TaskQueue) []SendTask {
	var out []SendTask
	for {
		select {
		case task := <-q.Tasks():
			out = append(out, task)
		default:
			return out
		}
	}
}
