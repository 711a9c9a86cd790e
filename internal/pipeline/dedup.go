package pipeline

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/killfeedsc/killfeed-go/pkg/killfeed/event"
)

const dedupCacheSize = 1024

// dedup suppresses repeats of the same (type, killer, victim, status) seen
// within a time window. The game often logs one death from several
// subsystems in the same second.
type dedup struct {
	seen *expirable.LRU[string, struct{}]
}

// newDedup returns nil when window is not positive; a nil dedup never
// reports duplicates.
func newDedup(window time.Duration) *dedup {
	if window <= 0 {
		return nil
	}
	return &dedup{seen: expirable.NewLRU[string, struct{}](dedupCacheSize, nil, window)}
}

// Seen records ev and reports whether an equivalent event was already
// recorded within the window.
func (d *dedup) Seen(ev event.Event) bool {
	if d == nil {
		return false
	}
	key := strings.ToLower(strings.Join([]string{string(ev.Type), ev.Killer, ev.Victim, ev.Status}, "\x00"))
	// Peek honours expiry and does not extend the window.
	if _, ok := d.seen.Peek(key); ok {
		return true
	}
	d.seen.Add(key, struct{}{})
	return false
}
