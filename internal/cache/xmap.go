package cache

import (
	"sync/atomic"
	"time"

	"github.com/joseerobless/blockexplorer/internal/explorer"
	"github.com/puzpuzpuz/xsync/v3"
)

type (
	// entry is a session together with the last time it was handed out.
	entry[S any] struct {
		session  S
		lastSeen atomic.Int64
	}

	// mapCache is an in-memory cache implementation using xsync.MapOf for thread-safe operations.
	mapCache struct {
		explorer *explorer.Explorer
		accounts *xsync.MapOf[string, *entry[*explorer.AccountSession]]
		receipts *xsync.MapOf[string, *entry[*explorer.ReceiptSession]]
		blocks   *xsync.MapOf[string, *entry[*explorer.BlockSession]]
		now      func() time.Time
	}
)

// NewMapCache creates a new in-memory cache instance.
func NewMapCache(e *explorer.Explorer) Cache {
	return &mapCache{
		explorer: e,
		accounts: xsync.NewMapOf[string, *entry[*explorer.AccountSession]](),
		receipts: xsync.NewMapOf[string, *entry[*explorer.ReceiptSession]](),
		blocks:   xsync.NewMapOf[string, *entry[*explorer.BlockSession]](),
		now:      time.Now,
	}
}

// Account returns the accounts view session for id.
func (c *mapCache) Account(id string) *explorer.AccountSession {
	e, _ := c.accounts.LoadOrCompute(id, func() *entry[*explorer.AccountSession] {
		return &entry[*explorer.AccountSession]{session: c.explorer.NewAccountSession()}
	})
	e.lastSeen.Store(c.now().UnixNano())
	return e.session
}

// Receipt returns the transaction view session for id.
func (c *mapCache) Receipt(id string) *explorer.ReceiptSession {
	e, _ := c.receipts.LoadOrCompute(id, func() *entry[*explorer.ReceiptSession] {
		return &entry[*explorer.ReceiptSession]{session: c.explorer.NewReceiptSession()}
	})
	e.lastSeen.Store(c.now().UnixNano())
	return e.session
}

// Block returns the block view session for id.
func (c *mapCache) Block(id string) *explorer.BlockSession {
	e, _ := c.blocks.LoadOrCompute(id, func() *entry[*explorer.BlockSession] {
		return &entry[*explorer.BlockSession]{session: c.explorer.NewBlockSession()}
	})
	e.lastSeen.Store(c.now().UnixNano())
	return e.session
}

// Remove drops every session kept for id.
func (c *mapCache) Remove(id string) {
	c.accounts.Delete(id)
	c.receipts.Delete(id)
	c.blocks.Delete(id)
}

// Sweep drops the sessions idle for longer than maxIdle.
func (c *mapCache) Sweep(maxIdle time.Duration) int {
	cutoff := c.now().Add(-maxIdle).UnixNano()
	return sweep(c.accounts, cutoff) + sweep(c.receipts, cutoff) + sweep(c.blocks, cutoff)
}

// Size returns the current number of sessions.
func (c *mapCache) Size() int {
	return c.accounts.Size() + c.receipts.Size() + c.blocks.Size()
}

func sweep[S any](m *xsync.MapOf[string, *entry[S]], cutoff int64) int {
	var evicted int
	m.Range(func(id string, e *entry[S]) bool {
		if e.lastSeen.Load() < cutoff {
			m.Delete(id)
			evicted++
		}
		return true
	})
	return evicted
}
