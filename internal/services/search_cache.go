package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wordmesh/wordmesh-backend/internal/domain"
	"github.com/wordmesh/wordmesh-backend/internal/platform/logger"
	"github.com/wordmesh/wordmesh-backend/internal/platform/redisdb"
)

const searchCacheTTL = 60 * time.Second

// SearchCache is a read-through cache over search results, versioned per
// user so any network write invalidates in O(1) via a version bump
// instead of key scans. A nil cache (redis not configured) is a valid
// receiver; every method degrades to a miss or a no-op.
type SearchCache struct {
	client *redisdb.Client
	log    *logger.Logger
}

func NewSearchCache(client *redisdb.Client, baseLog *logger.Logger) *SearchCache {
	if client == nil {
		return nil
	}
	return &SearchCache{
		client: client,
		log:    baseLog.With("service", "SearchCache"),
	}
}

func (c *SearchCache) Get(ctx context.Context, params domain.SearchParams) (*SearchPage, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.RDB.Get(ctx, c.key(ctx, params)).Bytes()
	if err != nil {
		return nil, false
	}
	var page SearchPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, false
	}
	return &page, true
}

func (c *SearchCache) Set(ctx context.Context, params domain.SearchParams, page *SearchPage) {
	if c == nil || c.client == nil || page == nil {
		return
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := c.client.RDB.Set(ctx, c.key(ctx, params), raw, searchCacheTTL).Err(); err != nil {
		c.log.Warn("search cache set failed", "error", err)
	}
}

// Bump invalidates every cached search for the user. Old entries expire
// on their own TTL.
func (c *SearchCache) Bump(ctx context.Context, userID int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.RDB.Incr(ctx, versionKey(userID)).Err(); err != nil {
		c.log.Warn("search cache bump failed", "user_id", userID, "error", err)
	}
}

func (c *SearchCache) key(ctx context.Context, params domain.SearchParams) string {
	version, err := c.client.RDB.Get(ctx, versionKey(params.UserID)).Int64()
	if err != nil {
		version = 0
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d|%d",
		params.Scope, params.Query, params.Limit, params.Offset))
	return fmt.Sprintf("search:u:%d:v:%d:%s",
		params.UserID, version, hex.EncodeToString(sum[:16]))
}

func versionKey(userID int64) string {
	return fmt.Sprintf("search:u:%d:ver", userID)
}
