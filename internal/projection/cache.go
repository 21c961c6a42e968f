package projection

import (
	"context"
	"errors"
	"sync"
	"time"

	"impriartex-service/internal/changefeed"
	"impriartex-service/internal/domain/identity"
	"impriartex-service/internal/metrics"

	"go.uber.org/zap"
)

const DefaultReloadTimeout = 15 * time.Second

var ErrClosed = errors.New("projection cache closed")

// WatchedTables are the record types whose changes invalidate a projection.
var WatchedTables = []changefeed.Table{
	changefeed.TableTickets,
	changefeed.TableEquipment,
	changefeed.TableCustomers,
	changefeed.TableProfiles,
}

type Subscriber interface {
	Subscribe(tables ...changefeed.Table) *changefeed.Subscription
}

type Options struct {
	ReloadTimeout time.Duration

	// OnRefresh receives a private copy after every successful reload.
	OnRefresh func(*Snapshot)
}

// Cache is the projection owned by a single session. Every change event triggers a full
// reload; events that arrive while a reload runs collapse into one follow-up reload.
// A failed reload keeps the previous snapshot.
type Cache struct {
	actor  identity.Identity
	loader Loader
	feed   Subscriber
	logger *zap.Logger
	opts   Options

	reloadMu sync.Mutex

	mu      sync.RWMutex
	snap    *Snapshot
	lastErr error

	stateMu sync.Mutex
	started bool
	running bool
	closed  bool
	sub     *changefeed.Subscription
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewCache(actor identity.Identity, loader Loader, feed Subscriber, logger *zap.Logger, opts Options) *Cache {
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = DefaultReloadTimeout
	}
	return &Cache{
		actor:  actor,
		loader: loader,
		feed:   feed,
		logger: logger.With(zap.String("identity", actor.ID.String()), zap.String("role", string(actor.Role))),
		opts:   opts,
		done:   make(chan struct{}),
	}
}

// Start performs the initial load and then follows the change feed until ctx ends or
// Close is called. The initial load error is returned and the cache is closed.
func (c *Cache) Start(ctx context.Context) error {
	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.stateMu.Unlock()
		return nil
	}
	c.started = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	// subscribed before loading so a change during the initial load is not missed
	sub := c.feed.Subscribe(WatchedTables...)
	c.sub = sub
	c.stateMu.Unlock()

	if err := c.Reload(runCtx); err != nil {
		c.Close()
		return err
	}

	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.running = true
	go c.run(runCtx, sub)
	return nil
}

// Reload replaces the snapshot with a fresh full read. Concurrent calls run one at a time.
func (c *Cache) Reload(ctx context.Context) error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.opts.ReloadTimeout)
	defer cancel()

	snap, err := Load(ctx, c.loader, c.actor)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()

		metrics.ProjectionReloadFailures.Inc()
		c.logger.Warn("projection reload failed, keeping last known state", zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.snap = snap
	c.lastErr = nil
	c.mu.Unlock()

	metrics.ProjectionReloads.Inc()

	if c.opts.OnRefresh != nil && !c.isClosed() {
		c.opts.OnRefresh(snap.Clone())
	}
	return nil
}

// Snapshot returns a copy of the last successfully loaded state.
func (c *Cache) Snapshot() (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return nil, false
	}
	return c.snap.Clone(), true
}

// LastError is the error of the latest reload, nil if it succeeded.
func (c *Cache) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Cache) Identity() identity.Identity {
	return c.actor
}

// Close releases the change feed subscription and stops reloading. It does not wait for
// an in-flight reload; use Done for that.
func (c *Cache) Close() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	if c.sub != nil {
		c.sub.Close()
	}
	if !c.running {
		close(c.done)
	}
}

// Done is closed once the cache has stopped following the feed.
func (c *Cache) Done() <-chan struct{} {
	return c.done
}

func (c *Cache) isClosed() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.closed
}

func (c *Cache) run(ctx context.Context, sub *changefeed.Subscription) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			c.logger.Debug("change received",
				zap.String("table", string(ev.Table)),
				zap.String("op", string(ev.Op)),
			)
			if err := c.Reload(ctx); err != nil && ctx.Err() != nil {
				return
			}
		}
	}
}
