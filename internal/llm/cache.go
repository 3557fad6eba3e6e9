package llm

import (
	"sync"
	"time"

	"github.com/Veraticus/spice-reconcile/internal/merchant"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

type cacheEntry struct {
	expiry  time.Time
	verdict model.Verdict
}

// verdictCache remembers verdicts per normalized request. Entries
// expire lazily on read.
type verdictCache struct {
	entries map[string]cacheEntry
	now     func() time.Time
	ttl     time.Duration
	mu      sync.RWMutex
}

func newVerdictCache(ttl time.Duration) *verdictCache {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &verdictCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
		ttl:     ttl,
	}
}

// requestKey keys a request by its normalized descriptions and merchant
// labels. Swapping the sides gives the same key.
func requestKey(req model.VerificationRequest) string {
	ka := sideKey(req.ADescription, req.AMerchantName)
	kb := sideKey(req.BDescription, req.BMerchantName)
	if kb < ka {
		ka, kb = kb, ka
	}
	return ka + "\x00" + kb
}

func sideKey(description, merchantName string) string {
	key := merchant.ExtractMerchantName(description)
	if merchantName != "" {
		key += "\x01" + merchant.ExtractMerchantName(merchantName)
	}
	return key
}

func (c *verdictCache) get(key string) (model.Verdict, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return model.Verdict{}, false
	}
	if c.now().After(entry.expiry) {
		c.mu.Lock()
		if current, still := c.entries[key]; still && current.expiry.Equal(entry.expiry) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return model.Verdict{}, false
	}
	return entry.verdict, true
}

func (c *verdictCache) set(key string, verdict model.Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{verdict: verdict, expiry: c.now().Add(c.ttl)}
}

func (c *verdictCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
