package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix           = "user:%d"
	PostKeyPrefix           = "post:%d"
	SessionRevokedKeyPrefix = "blacklist:%s"
)

const (
	UserTTL = 5 * time.Minute
	PostTTL = 30 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// SessionRevokedKey is the blacklist entry for a logged out session id.
func SessionRevokedKey(jti string) string {
	return fmt.Sprintf(SessionRevokedKeyPrefix, jti)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}
