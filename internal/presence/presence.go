// Package presence mirrors per-room presence state into Valkey with a TTL, so operational tooling can observe who is
// live without touching the in-process registry. The registry remains the source of truth; the mirror is advisory and
// every failure is logged, never propagated.
package presence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/wire"
)

// presenceTTL is the lifetime of a presence key. Status updates refresh it; a crashed process leaves keys to expire
// on their own.
const presenceTTL = 120 * time.Second

// Mirror writes presence transitions to Valkey.
type Mirror struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewMirror creates a presence mirror backed by the given Valkey client.
func NewMirror(rdb *redis.Client, logger zerolog.Logger) *Mirror {
	return &Mirror{rdb: rdb, log: logger}
}

// Record stores the user's status in the room, or removes the key on an Offline transition. Satisfies the registry's
// StatusMirror contract; errors are swallowed after logging because the mirror must never affect delivery.
func (m *Mirror) Record(ctx context.Context, chatID, userID uuid.UUID, status wire.UserStatus) {
	var err error
	if status == wire.StatusOffline {
		err = m.rdb.Del(ctx, presenceKey(chatID, userID)).Err()
	} else {
		err = m.rdb.Set(ctx, presenceKey(chatID, userID), string(status), presenceTTL).Err()
	}
	if err != nil {
		m.log.Warn().Err(err).
			Str("chat_id", chatID.String()).
			Str("user_id", userID.String()).
			Msg("Presence mirror write failed")
	}
}

// Get returns the mirrored status for a user in a room. A missing key reads as Offline.
func (m *Mirror) Get(ctx context.Context, chatID, userID uuid.UUID) (wire.UserStatus, error) {
	val, err := m.rdb.Get(ctx, presenceKey(chatID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return wire.StatusOffline, nil
	}
	if err != nil {
		return "", err
	}
	return wire.UserStatus(val), nil
}

func presenceKey(chatID, userID uuid.UUID) string {
	return "presence:" + chatID.String() + ":" + userID.String()
}
