package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Album buffer key patterns:
// - albums:{album_id}    - RPUSH list of serialized parts, hard 5 s TTL
// - albumidle:{album_id} - 1 s idle marker, re-armed on every new part
//
// The platform delivers album members as separate updates sharing one album
// id. Parts are buffered until no new part has arrived for the idle window;
// the hard TTL caps memory and delivery latency even under a constant
// trickle of parts.

const (
	albumIdleWindow = time.Second
	albumHardTTL    = 5 * time.Second
)

// AlbumBuffer accumulates album parts in Redis so a multi-process
// deployment assembles each album exactly once.
type AlbumBuffer struct {
	client *goredis.Client
}

// NewAlbumBuffer creates a new album buffer store.
func NewAlbumBuffer(client *goredis.Client) *AlbumBuffer {
	return &AlbumBuffer{client: client}
}

// Append adds one serialized part to the album's buffer and re-arms the
// idle marker. The hard TTL is set only when the buffer is created.
func (b *AlbumBuffer) Append(ctx context.Context, albumID string, part []byte) error {
	key := fmt.Sprintf("albums:%s", albumID)
	idleKey := fmt.Sprintf("albumidle:%s", albumID)

	pipe := b.client.Pipeline()
	pipe.RPush(ctx, key, part)
	pipe.ExpireNX(ctx, key, albumHardTTL)
	pipe.Set(ctx, idleKey, "1", albumIdleWindow)
	_, err := pipe.Exec(ctx)
	return err
}

// ReadyAlbums returns the ids of buffered albums whose idle marker has
// expired, i.e. no new part arrived within the idle window.
func (b *AlbumBuffer) ReadyAlbums(ctx context.Context) ([]string, error) {
	var ready []string
	iter := b.client.Scan(ctx, 0, "albums:*", 100).Iterator()
	for iter.Next(ctx) {
		albumID := strings.TrimPrefix(iter.Val(), "albums:")
		exists, err := b.client.Exists(ctx, fmt.Sprintf("albumidle:%s", albumID)).Result()
		if err != nil {
			return nil, err
		}
		if exists == 0 {
			ready = append(ready, albumID)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return ready, nil
}

// Drain atomically pops all buffered parts for an album. A concurrent
// drainer of the same album gets an empty result.
func (b *AlbumBuffer) Drain(ctx context.Context, albumID string) ([][]byte, error) {
	key := fmt.Sprintf("albums:%s", albumID)

	pipe := b.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	pipe.Del(ctx, fmt.Sprintf("albumidle:%s", albumID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	raw := rangeCmd.Val()
	parts := make([][]byte, 0, len(raw))
	for _, item := range raw {
		parts = append(parts, []byte(item))
	}
	return parts, nil
}
