package reconcile

import (
	"encoding/json"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// HandoffStore is the cross-page transient slot: the chat page writes the
// selected schedule payload, the map page reads it exactly once. Entries
// expire on their own so an abandoned navigation leaves nothing behind.
type HandoffStore struct {
	c *cache.Cache
}

// DefaultHandoffTTL bounds how long a handoff entry survives between the
// originating page writing it and the map page picking it up.
const DefaultHandoffTTL = 5 * time.Minute

func NewHandoffStore(ttl time.Duration) *HandoffStore {
	if ttl <= 0 {
		ttl = DefaultHandoffTTL
	}
	return &HandoffStore{c: cache.New(ttl, 2*ttl)}
}

// Put stores the raw schedule payload for a session, replacing any previous
// handoff.
func (h *HandoffStore) Put(sessionID string, data json.RawMessage) {
	h.c.SetDefault(sessionID, data)
}

// Take returns and removes the payload for a session. Read-once: a second
// Take misses.
func (h *HandoffStore) Take(sessionID string) (json.RawMessage, bool) {
	v, ok := h.c.Get(sessionID)
	if !ok {
		return nil, false
	}
	h.c.Delete(sessionID)
	data, ok := v.(json.RawMessage)
	return data, ok
}
