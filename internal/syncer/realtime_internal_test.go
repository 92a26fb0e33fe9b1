package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseerobless/blockexplorer/internal/cache"
	"github.com/joseerobless/blockexplorer/internal/explorer"
	"github.com/joseerobless/blockexplorer/internal/pool"
	"github.com/joseerobless/blockexplorer/internal/stats"
	"github.com/joseerobless/blockexplorer/pkg/view"
	"github.com/joseerobless/blockexplorer/testing/mocks"
)

type recordingPub struct {
	mu    sync.Mutex
	feeds []view.Feed
	err   error
}

func (p *recordingPub) Send(_ context.Context, feed view.Feed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feeds = append(p.feeds, feed)
	return p.err
}

func (p *recordingPub) Close() {}

func (p *recordingPub) sent() []view.Feed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]view.Feed(nil), p.feeds...)
}

func newTestSyncer(t *testing.T, c *mocks.Chain, p *recordingPub) *Syncer {
	t.Helper()

	workers := pool.New(pool.PoolOpts{Logg: mocks.NoopLogger, WorkerCount: 4})
	t.Cleanup(workers.Stop)

	e := explorer.New(explorer.ExplorerOpts{Chain: c, Pool: workers, Logg: mocks.NoopLogger, WindowSize: 3})
	sessions, _ := cache.New(cache.CacheOpts{Explorer: e, Logg: mocks.NoopLogger})

	return &Syncer{
		feed:  e.NewFeedSession(0),
		logg:  mocks.NoopLogger,
		pub:   p,
		stats: stats.New(stats.StatsOpts{Cache: sessions, Logg: mocks.NoopLogger, Pool: workers}),
	}
}

func TestSyncer_Advance(t *testing.T) {
	p := &recordingPub{}
	s := newTestSyncer(t, mocks.BaselineChain(t), p)

	require.NoError(t, s.advance(context.Background(), 50))
	require.NoError(t, s.advance(context.Background(), 51))

	sent := p.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, uint64(51), sent[1].Head)
	assert.Len(t, sent[1].Blocks, 3)
	assert.Equal(t, uint64(51), s.stats.GetLatestBlock())

	current, ok := s.feed.Current()
	require.True(t, ok)
	assert.Equal(t, sent[1], current)
}

func TestSyncer_AdvanceFailure(t *testing.T) {
	p := &recordingPub{}
	s := newTestSyncer(t, mocks.BaselineChain(t), p)

	err := s.advance(context.Background(), mocks.GenericHeight+1)
	assert.True(t, explorer.IsKind(err, explorer.KindNotFound))
	assert.Empty(t, p.sent())

	p.err = mocks.GenericError
	assert.ErrorIs(t, s.advance(context.Background(), 10), mocks.GenericError)
}

func TestSyncer_OnHead(t *testing.T) {
	p := &recordingPub{}
	s := newTestSyncer(t, mocks.BaselineChain(t), p)

	s.onHead(42)
	assert.Equal(t, uint64(42), s.stats.GetLatestBlock())

	require.Eventually(t, func() bool {
		return len(p.sent()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(42), p.sent()[0].Head)
}

func TestSyncer_AdvanceSharesFeedWithReaders(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	c := mocks.BaselineChain(t)
	c.GetBlockFunc = func(_ context.Context, height int64) (view.BlockSummary, error) {
		// 48 is only part of the window below head 50.
		if height == 48 {
			once.Do(func() { close(started) })
			<-release
		}
		return mocks.GenericBlockSummary(uint64(height)), nil
	}

	p := &recordingPub{}
	s := newTestSyncer(t, c, p)

	synced := make(chan error, 1)
	go func() {
		synced <- s.advance(context.Background(), 50)
	}()
	<-started

	// A reader at the same head joins the running fetch.
	read := make(chan error, 1)
	go func() {
		_, err := s.feed.Advance(context.Background(), 50)
		read <- err
	}()

	// A reader at a newer head takes over.
	feed, err := s.feed.Advance(context.Background(), 51)
	require.NoError(t, err)
	assert.Equal(t, uint64(51), feed.Head)

	close(release)
	require.NoError(t, <-synced)
	require.NoError(t, <-read)

	// The syncer leaves publishing 51 to its own head event.
	assert.Empty(t, p.sent())

	require.NoError(t, s.advance(context.Background(), 51))
	sent := p.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, feed, sent[0])
}
