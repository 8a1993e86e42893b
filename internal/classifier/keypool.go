package classifier

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Key is one API credential in the pool.
type Key struct {
	Index  int
	Secret string
}

// Partial returns a redacted form of the key for logs and reports.
func (k Key) Partial() string {
	if len(k.Secret) <= 8 {
		return "****"
	}
	return k.Secret[:4] + "..." + k.Secret[len(k.Secret)-4:]
}

type keyWindow struct {
	count       int
	windowStart time.Time
}

// KeyPool tracks per-key request budgets over a sliding one-minute
// window. It is an explicit dependency of the annotation pool rather
// than process-wide state, so tests can inject their own.
type KeyPool struct {
	mu      sync.Mutex
	keys    []Key
	windows []keyWindow
	rpm     int
}

// NewKeyPool builds a pool from raw key strings. rpm <= 0 disables
// rate accounting.
func NewKeyPool(secrets []string, rpm int) *KeyPool {
	keys := make([]Key, len(secrets))
	windows := make([]keyWindow, len(secrets))
	now := time.Now()
	for i, s := range secrets {
		keys[i] = Key{Index: i, Secret: s}
		windows[i] = keyWindow{windowStart: now}
	}
	return &KeyPool{keys: keys, windows: windows, rpm: rpm}
}

// Size returns the number of credentials, which is also the annotation
// pool's worker count.
func (p *KeyPool) Size() int {
	return len(p.keys)
}

// Acquire returns a key with remaining capacity, preferring the worker's
// current key. When the preferred key is saturated it swaps to any free
// key; when every key is saturated it sleeps until the earliest window
// resets. Blocks until a key is available or ctx is done.
func (p *KeyPool) Acquire(ctx context.Context, preferred int) (Key, error) {
	for {
		key, wait, ok := p.tryAcquire(preferred)
		if ok {
			return key, nil
		}
		select {
		case <-ctx.Done():
			return Key{}, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (p *KeyPool) tryAcquire(preferred int) (Key, time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if preferred >= 0 && preferred < len(p.keys) && p.hasCapacity(preferred, now) {
		p.windows[preferred].count++
		return p.keys[preferred], 0, true
	}

	// Smart swap: scan the others in random order so workers don't all
	// pile onto key 0.
	order := rand.Perm(len(p.keys))
	for _, i := range order {
		if i == preferred {
			continue
		}
		if p.hasCapacity(i, now) {
			p.windows[i].count++
			return p.keys[i], 0, true
		}
	}

	// Total saturation: wait for the window that resets soonest.
	minWait := time.Minute
	for i := range p.windows {
		w := time.Minute - now.Sub(p.windows[i].windowStart)
		if w < minWait {
			minWait = w
		}
	}
	if minWait < 0 {
		minWait = 0
	}
	return Key{}, minWait + time.Second, false
}

func (p *KeyPool) hasCapacity(i int, now time.Time) bool {
	if p.rpm <= 0 {
		return true
	}
	if now.Sub(p.windows[i].windowStart) >= time.Minute {
		p.windows[i] = keyWindow{windowStart: now}
		return true
	}
	return p.windows[i].count < p.rpm
}
