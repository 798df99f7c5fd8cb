package identity

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const (
	SessionKeyPrefix   = "session:"
	userSessionsPrefix = "user_sessions:"
)

// TrackSession records sid under the user's session index so every session of
// the user can be destroyed at once.
func TrackSession(ctx context.Context, rdb *redis.Client, userID, sid string) error {
	return rdb.SAdd(ctx, userSessionsPrefix+userID, sid).Err()
}

// UntrackSession removes sid from the user's session index.
func UntrackSession(ctx context.Context, rdb *redis.Client, userID, sid string) {
	rdb.SRem(ctx, userSessionsPrefix+userID, sid)
}

// DestroyUserSessions deletes each session:<sid> of the user and the user_sessions:<user_id> set.
func DestroyUserSessions(ctx context.Context, rdb *redis.Client, userID string) {
	if rdb == nil || userID == "" {
		return
	}
	key := userSessionsPrefix + userID
	sessionIDs, err := rdb.SMembers(ctx, key).Result()
	if err != nil || len(sessionIDs) == 0 {
		rdb.Del(ctx, key)
		return
	}
	for _, sid := range sessionIDs {
		rdb.Del(ctx, SessionKeyPrefix+sid)
	}
	rdb.Del(ctx, key)
}
