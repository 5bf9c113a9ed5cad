package scopekit

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheConfig controls the effective-rule cache.
//
// This is a security-sensitive cache: the TTL is a backstop against bugs,
// not the consistency mechanism. Every permission mutation invalidates
// the affected entries explicitly, so a stale ALLOW can never outlive the
// mutation call that revoked it. A brief stale DENY (until the next
// fill) is acceptable.
type CacheConfig struct {
	// Size is the maximum number of (tenant, principal) entries.
	Size int

	// TTL bounds entry lifetime even without explicit invalidation.
	TTL time.Duration
}

// DefaultCacheConfig returns the default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Size: 4096,
		TTL:  30 * time.Second,
	}
}

// ruleCache caches computed effective rule sets per (tenant, principal).
type ruleCache struct {
	entries *lru.LRU[string, *RuleSet]
	metrics *Metrics
}

func newRuleCache(config CacheConfig, metrics *Metrics) *ruleCache {
	size := config.Size
	if size <= 0 {
		size = DefaultCacheConfig().Size
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultCacheConfig().TTL
	}
	return &ruleCache{
		entries: lru.NewLRU[string, *RuleSet](size, nil, ttl),
		metrics: metrics,
	}
}

func cacheKey(tenantID, principalID string) string {
	return tenantID + "\x00" + principalID
}

func (c *ruleCache) get(tenantID, principalID string) (*RuleSet, bool) {
	rules, ok := c.entries.Get(cacheKey(tenantID, principalID))
	if ok {
		c.metrics.recordCacheHit()
	} else {
		c.metrics.recordCacheMiss()
	}
	return rules, ok
}

func (c *ruleCache) set(tenantID, principalID string, rules *RuleSet) {
	c.entries.Add(cacheKey(tenantID, principalID), rules)
}

// invalidate drops the entry for a single principal within a tenant.
func (c *ruleCache) invalidate(tenantID, principalID string) {
	if c.entries.Remove(cacheKey(tenantID, principalID)) {
		c.metrics.recordCacheInvalidation(1)
	}
}

// purge drops every entry. Used when a role's rule set changes, since a
// role fans out to an unbounded set of principals.
func (c *ruleCache) purge() {
	n := c.entries.Len()
	c.entries.Purge()
	c.metrics.recordCacheInvalidation(n)
}

func (c *ruleCache) len() int {
	return c.entries.Len()
}
