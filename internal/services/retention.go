package services

import (
	"context"
	"fmt"
	"time"

	"mediahub/internal/repository"
	"mediahub/pkg/logger"

	"github.com/robfig/cron/v3"
)

const (
	sendLogRetention = 48 * time.Hour
	pruneBatchSize   = 500
)

// trialReminderDays are the days-before-expiry marks at which a trial chat
// is reminded once.
var trialReminderDays = []int{7, 3, 1}

// ReminderGate deduplicates reminder deliveries across processes.
type ReminderGate interface {
	ReminderOnce(ctx context.Context, chatID int64, daysLeft int) (bool, error)
}

// Janitor runs the engine's periodic maintenance: hourly send-log pruning
// and daily trial-expiry reminders.
type Janitor struct {
	sendLog   repository.SendLogRepository
	subs      repository.SubscriptionRepository
	gate      ReminderGate
	notifier  Notifier
	log       *logger.Logger
	clock     func() time.Time
	trialDays int

	cron *cron.Cron
}

// NewJanitor creates the maintenance scheduler.
func NewJanitor(sendLog repository.SendLogRepository, subs repository.SubscriptionRepository, gate ReminderGate, notifier Notifier, trialDays int, log *logger.Logger) *Janitor {
	return &Janitor{
		sendLog:   sendLog,
		subs:      subs,
		gate:      gate,
		notifier:  notifier,
		log:       log,
		clock:     time.Now,
		trialDays: trialDays,
	}
}

// Start registers the cron entries and begins scheduling.
func (j *Janitor) Start(ctx context.Context) error {
	j.cron = cron.New()

	if _, err := j.cron.AddFunc("@hourly", func() { j.PruneSendLog(ctx) }); err != nil {
		return fmt.Errorf("registering prune job: %w", err)
	}
	if _, err := j.cron.AddFunc("@daily", func() { j.SendTrialReminders(ctx) }); err != nil {
		return fmt.Errorf("registering reminder job: %w", err)
	}

	j.cron.Start()
	j.log.Infof("janitor started: hourly send-log prune, daily trial reminders")
	return nil
}

// Stop halts scheduling and waits for any running job.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// PruneSendLog deletes send-log rows past the retention window in batches,
// so the delete never holds a long transaction against the hot table.
func (j *Janitor) PruneSendLog(ctx context.Context) {
	cutoff := j.clock().Add(-sendLogRetention)
	var total int64
	for {
		deleted, err := j.sendLog.PruneBefore(ctx, cutoff, pruneBatchSize)
		if err != nil {
			j.log.Errorf("send log prune failed: %v", err)
			return
		}
		total += deleted
		if deleted == 0 {
			break
		}
	}
	if total > 0 {
		j.log.Infof("pruned %d send log rows older than %s", total, cutoff.Format(time.RFC3339))
	}
}

// SendTrialReminders notifies chats whose free trial ends soon and that
// hold no paid subscription. Each mark fires at most once per chat.
func (j *Janitor) SendTrialReminders(ctx context.Context) {
	for _, days := range trialReminderDays {
		chats, err := j.subs.ExpiringTrials(ctx, j.trialDays, days)
		if err != nil {
			j.log.Errorf("expiring trial lookup failed for %d days: %v", days, err)
			continue
		}
		for _, chat := range chats {
			first, err := j.gate.ReminderOnce(ctx, chat.ChatID, days)
			if err != nil || !first {
				continue
			}
			text := fmt.Sprintf(
				"Your free trial ends in %s. Use /subscribe to keep your messages flowing after that.",
				pluralDays(days))
			if _, err := j.notifier.SendText(ctx, chat.ChatID, text, nil); err != nil {
				j.log.Warnf("trial reminder to chat %d failed: %v", chat.ChatID, err)
			}
		}
	}
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
