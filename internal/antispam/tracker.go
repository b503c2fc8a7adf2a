package antispam

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/groupwarden/groupwarden/internal/db"
)

const blockMarkerTTL = 30 * time.Second

// Tracker keeps the short-lived per-(chat,user) spam state: flood counters,
// rolling message-hash windows and block markers. All state lives in the
// TTL-backed store, expired entries read as a fresh user.
type Tracker struct {
	store db.SpamStateStore
}

func NewTracker(store db.SpamStateStore) *Tracker {
	return &Tracker{store: store}
}

func floodKey(chatID, userID int64) string {
	return fmt.Sprintf("flood:%d:%d", chatID, userID)
}

func repeatKey(chatID, userID int64) string {
	return fmt.Sprintf("repeat:%d:%d", chatID, userID)
}

func blockKey(chatID, userID int64) string {
	return fmt.Sprintf("block:%d:%d", chatID, userID)
}

// RecordAndCheckFlood counts the message against the flood window and
// reports whether the user hit the limit. The window starts on the first
// message, a hit plants a block marker.
func (t *Tracker) RecordAndCheckFlood(ctx context.Context, chatID, userID int64, limit, windowSeconds int) (bool, error) {
	count, err := t.store.IncrSpamCounter(ctx, floodKey(chatID, userID), time.Duration(windowSeconds)*time.Second)
	if err != nil {
		return false, errors.WithMessage(err, "increment flood counter")
	}
	if count < int64(limit) {
		return false, nil
	}
	if _, err := t.store.IncrSpamCounter(ctx, blockKey(chatID, userID), blockMarkerTTL); err != nil {
		return true, errors.WithMessage(err, "set block marker")
	}
	return true, nil
}

// RecordAndCheckRepeatedMessage pushes the message hash into the rolling
// window and reports a violation when the window is full of identical
// hashes. The window is cleared on violation so the next identical message
// starts a fresh run.
func (t *Tracker) RecordAndCheckRepeatedMessage(ctx context.Context, chatID, userID int64, hash string, limit int, ttl time.Duration) (bool, error) {
	key := repeatKey(chatID, userID)
	hashes, err := t.store.PushSpamHash(ctx, key, hash, limit, ttl)
	if err != nil {
		return false, errors.WithMessage(err, "push message hash")
	}
	if len(hashes) < limit {
		return false, nil
	}
	if !lo.EveryBy(hashes, func(h string) bool { return h == hash }) {
		return false, nil
	}
	if err := t.store.ClearSpamState(ctx, key); err != nil {
		return true, errors.WithMessage(err, "clear hash window")
	}
	return true, nil
}

// BlockTTL returns the remaining block marker lifetime, zero if unblocked.
func (t *Tracker) BlockTTL(ctx context.Context, chatID, userID int64) (time.Duration, error) {
	return t.store.SpamKeyTTL(ctx, blockKey(chatID, userID))
}

// Reset wipes all tracked state for the user, idempotent.
func (t *Tracker) Reset(ctx context.Context, chatID, userID int64) error {
	return t.store.ClearSpamState(ctx,
		floodKey(chatID, userID),
		repeatKey(chatID, userID),
		blockKey(chatID, userID),
	)
}
