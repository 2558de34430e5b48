package services

import (
	"context"
	"testing"
	"time"

	"mediahub/internal/domain"
	"mediahub/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubs struct {
	trials map[int][]domain.Chat // keyed by days-before-expiry
}

func (s *fakeSubs) PaidUntil(context.Context, int64) (time.Time, error) {
	return time.Time{}, nil
}

func (s *fakeSubs) Create(context.Context, int64, int64, string, int, int) (domain.Subscription, error) {
	return domain.Subscription{}, nil
}

func (s *fakeSubs) ExpiringTrials(_ context.Context, _ int, daysBefore int) ([]domain.Chat, error) {
	return s.trials[daysBefore], nil
}

type fakeGate struct {
	fired map[[2]int64]bool
}

func (g *fakeGate) ReminderOnce(_ context.Context, chatID int64, daysLeft int) (bool, error) {
	key := [2]int64{chatID, int64(daysLeft)}
	if g.fired[key] {
		return false, nil
	}
	g.fired[key] = true
	return true, nil
}

func TestPruneSendLogBatchesUntilEmpty(t *testing.T) {
	sendLog := &fakeSendLog{}
	now := time.Now()
	for i := 0; i < 1200; i++ {
		sendLog.rows = append(sendLog.rows, domain.SendLog{
			ID: int64(i), SourceChatID: 1, SourceMessageID: int64(i),
			DestChatID: 2, DestMessageID: int64(i),
			CreatedAt: now.Add(-72 * time.Hour),
		})
	}
	// One recent row survives.
	sendLog.rows = append(sendLog.rows, domain.SendLog{
		ID: 9999, SourceChatID: 1, SourceMessageID: 9999,
		DestChatID: 2, DestMessageID: 9999, CreatedAt: now,
	})

	j := NewJanitor(sendLog, &fakeSubs{}, &fakeGate{fired: map[[2]int64]bool{}}, newFakeClient(), 30, logger.Nop())
	j.clock = func() time.Time { return now }

	j.PruneSendLog(context.Background())

	rows := sendLog.all()
	require.Len(t, rows, 1)
	assert.Equal(t, int64(9999), rows[0].DestMessageID)
}

func TestTrialRemindersFireOncePerMark(t *testing.T) {
	subs := &fakeSubs{trials: map[int][]domain.Chat{
		7: {{ChatID: 100}},
		1: {{ChatID: 200}},
	}}
	gate := &fakeGate{fired: map[[2]int64]bool{}}
	client := newFakeClient()

	j := NewJanitor(&fakeSendLog{}, subs, gate, client, 30, logger.Nop())

	j.SendTrialReminders(context.Background())
	assert.Len(t, client.callsTo(100), 1)
	assert.Len(t, client.callsTo(200), 1)

	// A second daily run does not repeat delivered reminders.
	j.SendTrialReminders(context.Background())
	assert.Len(t, client.callsTo(100), 1)
	assert.Len(t, client.callsTo(200), 1)
}
