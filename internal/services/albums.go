package services

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"mediahub/internal/domain"
	"mediahub/pkg/logger"
)

// PartBuffer is the fast-store buffer album parts accumulate in.
type PartBuffer interface {
	Append(ctx context.Context, albumID string, part []byte) error
	ReadyAlbums(ctx context.Context) ([]string, error)
	Drain(ctx context.Context, albumID string) ([][]byte, error)
}

// AlbumCollector reassembles the platform's per-part album delivery into a
// single composite message. Parts buffer until the album has been idle for
// a second; whatever arrived by then is flushed as the album, in
// source-message-id order.
type AlbumCollector struct {
	buffer PartBuffer
	emit   func(ctx context.Context, album domain.NormalizedMessage)
	log    *logger.Logger

	pollEvery time.Duration
}

// NewAlbumCollector creates a collector. emit receives each assembled
// album; it runs on the collector's loop goroutine and must not block for
// long.
func NewAlbumCollector(buffer PartBuffer, emit func(ctx context.Context, album domain.NormalizedMessage), log *logger.Logger) *AlbumCollector {
	return &AlbumCollector{
		buffer:    buffer,
		emit:      emit,
		log:       log,
		pollEvery: 500 * time.Millisecond,
	}
}

// Add buffers one album part.
func (c *AlbumCollector) Add(ctx context.Context, part domain.NormalizedMessage) error {
	raw, err := json.Marshal(part)
	if err != nil {
		return err
	}
	return c.buffer.Append(ctx, part.AlbumID, raw)
}

// Run polls for idle albums and flushes them until ctx is canceled.
func (c *AlbumCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.flushReady(ctx)
		}
	}
}

func (c *AlbumCollector) flushReady(ctx context.Context) {
	ready, err := c.buffer.ReadyAlbums(ctx)
	if err != nil {
		c.log.Errorf("album scan failed: %v", err)
		return
	}
	for _, albumID := range ready {
		c.flush(ctx, albumID)
	}
}

func (c *AlbumCollector) flush(ctx context.Context, albumID string) {
	raw, err := c.buffer.Drain(ctx, albumID)
	if err != nil {
		c.log.Errorf("album drain failed for %s: %v", albumID, err)
		return
	}
	if len(raw) == 0 {
		// Another process drained it first.
		return
	}

	parts := make([]domain.NormalizedMessage, 0, len(raw))
	for _, item := range raw {
		var part domain.NormalizedMessage
		if err := json.Unmarshal(item, &part); err != nil {
			c.log.Errorf("album part decode failed for %s: %v", albumID, err)
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return
	}

	sort.Slice(parts, func(i, j int) bool {
		return parts[i].SourceMessageID < parts[j].SourceMessageID
	})

	album := domain.NormalizedMessage{
		Kind:            domain.KindAlbum,
		SourceChatID:    parts[0].SourceChatID,
		SourceMessageID: parts[0].SourceMessageID,
		SourceUserID:    parts[0].SourceUserID,
		AlbumID:         albumID,
		GroupItems:      parts,
		ArrivedAt:       parts[0].ArrivedAt,
	}
	// The album caption is the first member caption present.
	for _, part := range parts {
		if part.Caption != "" {
			album.Caption = part.Caption
			break
		}
	}
	for _, part := range parts {
		if part.ReplyToMessageID != 0 {
			album.ReplyToMessageID = part.ReplyToMessageID
			break
		}
	}

	c.emit(ctx, album)
}
