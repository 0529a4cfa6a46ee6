package bookings

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"courtly/internal/shared/constants"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SlotLock is a Redis-backed fast gate in front of the transactional
// conflict check. It claims every court/date/slot key for the hold window
// in a single atomic script, so two concurrent holds for the same slot
// cannot both pass. It is an optimization only: the FOR UPDATE re-check
// inside the create transaction remains the authority.
type SlotLock struct {
	redis *redis.Client
}

func NewSlotLock(redisClient *redis.Client) *SlotLock {
	return &SlotLock{redis: redisClient}
}

// Lua script for atomic multi-slot claiming across all requested courts.
const luaSlotAcquire = `
-- ARGV[1] = ttl_seconds
-- ARGV[2..N] = slot lock keys

local ttl = tonumber(ARGV[1])

-- First pass: every key must be free.
for i = 2, #ARGV do
    if redis.call("EXISTS", ARGV[i]) == 1 then
        return {0, ARGV[i]}
    end
end

-- Second pass: claim them all.
for i = 2, #ARGV do
    redis.call("SETEX", ARGV[i], ttl, "1")
end

return {1, "ok"}
`

const luaSlotRelease = `
-- ARGV[1..N] = slot lock keys
local released = 0
for i = 1, #ARGV do
    released = released + redis.call("DEL", ARGV[i])
end
return released
`

func slotLockKeys(courtIDs []uuid.UUID, date string, slotSignature []string) []string {
	keys := make([]string, 0, len(courtIDs)*len(slotSignature))
	for _, courtID := range courtIDs {
		for _, sig := range slotSignature {
			keys = append(keys, fmt.Sprintf("%s%s:%s:%s", constants.SlotLockKeyPrefix, courtID.String(), date, sig))
		}
	}
	return keys
}

// Acquire claims every court/slot combination for the given date. It
// returns false plus the colliding key when any is already claimed.
func (l *SlotLock) Acquire(ctx context.Context, courtIDs []uuid.UUID, date string, slotSignature []string, ttl time.Duration) (bool, string, error) {
	if l.redis == nil {
		return false, "", fmt.Errorf("redis client not available")
	}

	args := []interface{}{strconv.Itoa(int(ttl.Seconds()))}
	for _, key := range slotLockKeys(courtIDs, date, slotSignature) {
		args = append(args, key)
	}

	result, err := l.redis.EvalSha(ctx, luaSlotAcquire, []string{}, args...).Result()
	if err != nil {
		// Script not loaded yet, fall back to plain Eval.
		result, err = l.redis.Eval(ctx, luaSlotAcquire, []string{}, args...).Result()
		if err != nil {
			return false, "", fmt.Errorf("failed to execute slot lock script: %w", err)
		}
	}

	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 2 {
		return false, "", fmt.Errorf("unexpected result format from slot lock script")
	}
	success, ok := resultArray[0].(int64)
	if !ok {
		return false, "", fmt.Errorf("invalid success flag in slot lock result")
	}
	if success == 0 {
		conflictKey, _ := resultArray[1].(string)
		return false, conflictKey, nil
	}
	return true, "", nil
}

// Release drops the lock keys early when a hold resolves before its TTL.
// Lock keys self-expire, so failures here are harmless.
func (l *SlotLock) Release(ctx context.Context, courtIDs []uuid.UUID, date string, slotSignature []string) {
	if l.redis == nil {
		return
	}
	args := make([]interface{}, 0, len(courtIDs)*len(slotSignature))
	for _, key := range slotLockKeys(courtIDs, date, slotSignature) {
		args = append(args, key)
	}
	if _, err := l.redis.EvalSha(ctx, luaSlotRelease, []string{}, args...).Result(); err != nil {
		l.redis.Eval(ctx, luaSlotRelease, []string{}, args...)
	}
}

// PreloadScripts loads the Lua scripts into Redis at startup so EvalSha
// hits on the first request.
func (l *SlotLock) PreloadScripts(ctx context.Context) error {
	if l.redis == nil {
		return fmt.Errorf("redis client not available")
	}
	if _, err := l.redis.ScriptLoad(ctx, luaSlotAcquire).Result(); err != nil {
		return fmt.Errorf("failed to load slot acquire script: %w", err)
	}
	if _, err := l.redis.ScriptLoad(ctx, luaSlotRelease).Result(); err != nil {
		return fmt.Errorf("failed to load slot release script: %w", err)
	}
	return nil
}
