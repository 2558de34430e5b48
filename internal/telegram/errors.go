package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrorKind classifies a failed platform send by its recovery policy.
type ErrorKind string

const (
	// Transient: retry with backoff, respecting RetryAfter.
	ErrKindTooManyRequests ErrorKind = "too_many_requests"
	ErrKindNetwork         ErrorKind = "network"

	// Destination-fatal: deactivate the chat, never retry.
	ErrKindForbidden    ErrorKind = "forbidden"
	ErrKindChatNotFound ErrorKind = "chat_not_found"

	// Destination-update: re-address the task once.
	ErrKindMigrated ErrorKind = "migrated"

	// Message-fatal: drop the task.
	ErrKindBadRequest ErrorKind = "bad_request"
)

// SendError is the structured error surfaced by every Client send operation.
type SendError struct {
	Kind            ErrorKind
	RetryAfter      time.Duration
	MigrateToChatID int64
	Message         string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("telegram send: %s: %s", e.Kind, e.Message)
}

// Transient reports whether the error should be retried.
func (e *SendError) Transient() bool {
	return e.Kind == ErrKindTooManyRequests || e.Kind == ErrKindNetwork
}

// classify maps a raw Bot API error to a SendError.
func classify(err error) *SendError {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return &SendError{Kind: ErrKindNetwork, Message: err.Error()}
	}

	se := &SendError{Message: apiErr.Message}
	switch {
	case apiErr.Code == 429:
		se.Kind = ErrKindTooManyRequests
		se.RetryAfter = time.Duration(apiErr.RetryAfter) * time.Second
	case apiErr.MigrateToChatID != 0:
		se.Kind = ErrKindMigrated
		se.MigrateToChatID = apiErr.MigrateToChatID
	case apiErr.Code == 403:
		se.Kind = ErrKindForbidden
	case apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Message), "chat not found"):
		se.Kind = ErrKindChatNotFound
	case apiErr.Code == 400:
		se.Kind = ErrKindBadRequest
	default:
		se.Kind = ErrKindNetwork
	}
	return se
}
