package rbac

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// customRoleCache fronts a CustomRoleLookup with a TTL cache. Not-found
// results are not cached.
type customRoleCache struct {
	next  CustomRoleLookup
	items *ttlcache.Cache[string, *CustomRoleRecord]
}

func newCustomRoleCache(next CustomRoleLookup, ttl time.Duration) *customRoleCache {
	return &customRoleCache{
		next: next,
		items: ttlcache.New[string, *CustomRoleRecord](
			ttlcache.WithTTL[string, *CustomRoleRecord](ttl),
			ttlcache.WithDisableTouchOnHit[string, *CustomRoleRecord](),
		),
	}
}

func (c *customRoleCache) CustomRoleByID(ctx context.Context, orgID, id string) (*CustomRoleRecord, error) {
	key := cacheKey(orgID, id)
	if item := c.items.Get(key); item != nil {
		return item.Value(), nil
	}
	def, err := c.next.CustomRoleByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	c.items.Set(key, def, ttlcache.DefaultTTL)
	return def, nil
}

func (c *customRoleCache) invalidate(orgID, id string) {
	c.items.Delete(cacheKey(orgID, id))
}

func cacheKey(orgID, id string) string {
	return orgID + "/" + id
}
