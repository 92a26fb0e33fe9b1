package explorer

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/joseerobless/blockexplorer/pkg/view"
	"golang.org/x/sync/singleflight"
)

// binding holds the input a view is currently bound to and the last value
// resolved for it. Every resolution is tagged with a generation; a result
// whose generation is no longer the latest is dropped, so a slow response
// for an old input never overwrites the view built for a newer one. Callers
// asking for the input that is already being resolved join that resolution.
type binding[K comparable, V any] struct {
	mu       sync.Mutex
	gen      uint64
	key      K
	bound    bool
	value    V
	settled  bool
	inflight bool

	// partial settles the value of a failed resolution too.
	partial bool
	// merge, when set, combines the settled value for the same key with a new one.
	merge func(prev, next V) V

	flights singleflight.Group
}

// join returns the generation serving key: the running one when key is
// already being resolved, a new one otherwise. Switching to another key
// forgets the previous value.
func (b *binding[K, V]) join(key K) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bound && b.inflight && b.key == key {
		return b.gen
	}
	if !b.bound || b.key != key {
		var zero V
		b.key, b.value, b.settled = key, zero, false
	}
	b.bound = true
	b.inflight = true
	b.gen++

	return b.gen
}

// resolve runs fn for key, or waits for the resolution of key already in
// flight. The shared work is not tied to any single caller's cancellation;
// each caller stops waiting when its own ctx is done.
func (b *binding[K, V]) resolve(ctx context.Context, key K, fn func(context.Context) (V, error)) (V, error) {
	gen := b.join(key)

	flight := b.flights.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		value, err := fn(context.WithoutCancel(ctx))
		if err != nil && !b.partial {
			if !b.finish(gen) {
				return nil, ErrSuperseded
			}
			return nil, err
		}

		settled, ok := b.settle(gen, value)
		if !ok {
			return nil, ErrSuperseded
		}
		return settled, err
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-flight:
		value, _ := res.Val.(V)
		return value, res.Err
	}
}

// settle stores value unless a newer resolution began since gen.
func (b *binding[K, V]) settle(gen uint64, value V) (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		var zero V
		return zero, false
	}
	if b.merge != nil && b.settled {
		value = b.merge(b.value, value)
	}
	b.value, b.settled, b.inflight = value, true, false

	return value, true
}

// finish ends generation gen without storing anything. It reports whether
// gen was still the latest generation.
func (b *binding[K, V]) finish(gen uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		return false
	}
	b.inflight = false

	return true
}

func (b *binding[K, V]) snapshot() (key K, value V, bound bool, settled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.key, b.value, b.bound, b.settled
}

// AccountSession is the state of one accounts view. Typing only updates the
// draft; lookups start on an explicit Submit.
type AccountSession struct {
	explorer *Explorer

	draftMu sync.Mutex
	draft   string

	binding binding[string, view.AccountView]
}

// NewAccountSession creates the state of a new accounts view.
func (e *Explorer) NewAccountSession() *AccountSession {
	s := &AccountSession{explorer: e}
	s.binding.partial = true
	s.binding.merge = keepResolvedFields
	return s
}

// Type records partial input. It never triggers a lookup.
func (s *AccountSession) Type(input string) {
	s.draftMu.Lock()
	s.draft = input
	s.draftMu.Unlock()
}

// Submit commits the current draft and resolves it. An empty draft is a
// no-op. Resubmitting the same address keeps previously resolved fields
// whose lookup fails this time; a new address replaces the whole view.
// Submitting the address already being resolved waits for that lookup.
// Returns ErrSuperseded when another address was submitted meanwhile.
func (s *AccountSession) Submit(ctx context.Context) (view.AccountView, error) {
	s.draftMu.Lock()
	address := strings.TrimSpace(s.draft)
	s.draftMu.Unlock()

	if address == "" {
		return s.View(), nil
	}

	account, err := s.binding.resolve(ctx, address, func(ctx context.Context) (view.AccountView, error) {
		return s.explorer.ResolveAccount(ctx, address)
	})
	if errors.Is(err, ErrSuperseded) {
		s.explorer.logg.Debug("discarding stale account resolution", "address", address)
	}

	return account, err
}

// SubmitAddress types address and submits it in one step.
func (s *AccountSession) SubmitAddress(ctx context.Context, address string) (view.AccountView, error) {
	s.Type(address)
	return s.Submit(ctx)
}

// View returns the latest settled account view.
func (s *AccountSession) View() view.AccountView {
	_, account, _, _ := s.binding.snapshot()
	return account
}

func keepResolvedFields(prev, next view.AccountView) view.AccountView {
	if next.Balance == nil {
		next.Balance = prev.Balance
	}
	if next.Nfts == nil {
		next.Nfts = prev.Nfts
	}
	return next
}

// ReceiptSession is the state of one transaction view. It only goes to the
// provider when the hash changes or on an explicit Refresh.
type ReceiptSession struct {
	explorer *Explorer
	binding  binding[string, *view.TransactionReceipt]
}

// NewReceiptSession creates the state of a new transaction view.
func (e *Explorer) NewReceiptSession() *ReceiptSession {
	return &ReceiptSession{explorer: e}
}

// Show binds the view to hash. A hash that was already resolved is served
// from the view state, including the pending (nil) state.
func (s *ReceiptSession) Show(ctx context.Context, hash string) (*view.TransactionReceipt, error) {
	if key, receipt, bound, settled := s.binding.snapshot(); bound && settled && key == hash {
		return receipt, nil
	}
	return s.resolve(ctx, hash)
}

// Refresh resolves the bound hash again. Without a bound hash it does nothing.
func (s *ReceiptSession) Refresh(ctx context.Context) (*view.TransactionReceipt, error) {
	hash, _, bound, _ := s.binding.snapshot()
	if !bound {
		return nil, nil
	}
	return s.resolve(ctx, hash)
}

// Reload binds the view to hash and resolves it even when it already was.
func (s *ReceiptSession) Reload(ctx context.Context, hash string) (*view.TransactionReceipt, error) {
	return s.resolve(ctx, hash)
}

func (s *ReceiptSession) resolve(ctx context.Context, hash string) (*view.TransactionReceipt, error) {
	receipt, err := s.binding.resolve(ctx, hash, func(ctx context.Context) (*view.TransactionReceipt, error) {
		return s.explorer.ResolveReceipt(ctx, hash)
	})
	if errors.Is(err, ErrSuperseded) {
		s.explorer.logg.Debug("discarding stale receipt resolution", "tx_hash", hash)
	}
	if err != nil {
		return nil, err
	}

	return receipt, nil
}

// BlockSession is the state of one block view.
type BlockSession struct {
	explorer *Explorer
	binding  binding[int64, *view.BlockDetail]
}

// NewBlockSession creates the state of a new block view.
func (e *Explorer) NewBlockSession() *BlockSession {
	return &BlockSession{explorer: e}
}

// Show binds the view to height and resolves it unless it already was.
// Showing the height already being resolved waits for that lookup.
func (s *BlockSession) Show(ctx context.Context, height int64) (*view.BlockDetail, error) {
	if key, detail, bound, settled := s.binding.snapshot(); bound && settled && key == height {
		return detail, nil
	}

	detail, err := s.binding.resolve(ctx, height, func(ctx context.Context) (*view.BlockDetail, error) {
		return s.explorer.ResolveBlock(ctx, height)
	})
	if errors.Is(err, ErrSuperseded) {
		s.explorer.logg.Debug("discarding stale block resolution", "height", height)
	}
	if err != nil {
		return nil, err
	}

	return detail, nil
}

// maxFeedFollows bounds how many times one Advance call follows a head that
// moved while its window was being fetched.
const maxFeedFollows = 3

// FeedSession is the state of the home view. It is bound to the chain head
// and fetches a fresh window whenever the head moves. One FeedSession may be
// shared by every reader of the home view and by the head syncer.
type FeedSession struct {
	explorer   *Explorer
	windowSize int
	binding    binding[uint64, view.Feed]
}

// NewFeedSession creates the state of a home view showing windowSize blocks.
func (e *Explorer) NewFeedSession(windowSize int) *FeedSession {
	if windowSize <= 0 {
		windowSize = e.windowSize
	}
	return &FeedSession{explorer: e, windowSize: windowSize}
}

// Advance moves the view to head. The previous window is stale once the head
// moves and is never reused; the same head is served from the view state or
// joins the fetch already running for it. The head never moves back: a head
// older than the bound one is served the bound one. When a newer head takes
// over while the window is fetched, Advance follows it.
func (s *FeedSession) Advance(ctx context.Context, head uint64) (view.Feed, error) {
	for follows := 0; ; follows++ {
		key, feed, bound, settled := s.binding.snapshot()
		if bound && key > head {
			head = key
		}
		if bound && settled && key == head {
			return feed, nil
		}

		feed, err := s.binding.resolve(ctx, head, s.fetch(head))
		if !errors.Is(err, ErrSuperseded) {
			return feed, err
		}
		if follows == maxFeedFollows {
			s.explorer.logg.Debug("discarding stale feed", "head", head)
			return view.Feed{}, err
		}
	}
}

func (s *FeedSession) fetch(head uint64) func(context.Context) (view.Feed, error) {
	return func(ctx context.Context) (view.Feed, error) {
		blocks, err := s.explorer.FetchRecent(ctx, int64(head), s.windowSize)
		if err != nil {
			return view.Feed{}, err
		}
		return view.Feed{Head: head, Blocks: blocks}, nil
	}
}

// Current returns the latest settled feed.
func (s *FeedSession) Current() (view.Feed, bool) {
	_, feed, _, settled := s.binding.snapshot()
	return feed, settled
}
