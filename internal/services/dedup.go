package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"mediahub/internal/domain"

	"golang.org/x/text/unicode/norm"
)

// Fingerprint derives the content identity of a message for duplicate
// suppression. Media is identified by the platform's cross-chat-stable file
// id, so the same photo re-posted to the same source is caught regardless
// of caption edits. Text is identified by a hash of its NFC-normalized body
// with trailing whitespace stripped; leading whitespace and interior
// spacing are significant.
func Fingerprint(m domain.NormalizedMessage) string {
	switch m.Kind {
	case domain.KindAlbum:
		// Members arrive ordered by source message id, so the hash is
		// position-sensitive: the same media re-posted in a different
		// order is new content.
		parts := make([]string, 0, len(m.GroupItems))
		for _, item := range m.GroupItems {
			parts = append(parts, Fingerprint(item))
		}
		sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
		return "album:" + hex.EncodeToString(sum[:])[:32]
	case domain.KindText:
		body := strings.TrimRight(norm.NFC.String(m.Text), " \t\r\n")
		sum := sha256.Sum256([]byte(body))
		return "text:" + hex.EncodeToString(sum[:])[:32]
	default:
		return "media:" + m.FileUniqueID
	}
}

// SeenMarker is the fast-store cell the deduper tests against.
type SeenMarker interface {
	MarkSeen(ctx context.Context, sourceChatID int64, fingerprint string) (bool, error)
}

// Deduper suppresses repeated content per source chat inside the marker's
// TTL window. The same content in two different sources is not a duplicate.
type Deduper struct {
	marker SeenMarker
}

// NewDeduper creates a deduper backed by the given marker store.
func NewDeduper(marker SeenMarker) *Deduper {
	return &Deduper{marker: marker}
}

// IsDuplicate atomically records the message's fingerprint and reports
// whether it had been seen already. On a marker-store error the message is
// treated as new: delivering a duplicate is preferred over losing content.
func (d *Deduper) IsDuplicate(ctx context.Context, m domain.NormalizedMessage) (bool, error) {
	dup, err := d.marker.MarkSeen(ctx, m.SourceChatID, Fingerprint(m))
	if err != nil {
		return false, err
	}
	return dup, nil
}
