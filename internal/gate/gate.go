package gate

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// Store names a backing data store.
type Store string

const (
	CustomerStore Store = "customer"
	CatalogStore  Store = "catalog"
	OrderStore    Store = "order"
)

// Pinger checks that a store connection is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Gate tracks readiness of the backing stores. Components consult it before
// each store operation and fail immediately when a store is not ready; the
// gate never blocks or queues.
type Gate struct {
	mu      sync.RWMutex
	ready   map[Store]bool
	lastErr map[Store]string
	pingers map[Store]Pinger
	logger  *zap.Logger
}

// New creates a gate with every store not ready.
func New() *Gate {
	return &Gate{
		ready:   make(map[Store]bool),
		lastErr: make(map[Store]string),
		pingers: make(map[Store]Pinger),
		logger:  util.GetLogger(),
	}
}

// Register attaches a pinger used by Refresh.
func (g *Gate) Register(store Store, p Pinger) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pingers[store] = p
	if _, ok := g.ready[store]; !ok {
		g.ready[store] = false
		util.StoreReady.WithLabelValues(string(store)).Set(0)
	}
}

// MarkReady flags the store as ready.
func (g *Gate) MarkReady(store Store) {
	g.set(store, true, nil)
}

// MarkDown flags the store as not ready.
func (g *Gate) MarkDown(store Store, err error) {
	g.set(store, false, err)
}

func (g *Gate) set(store Store, ready bool, err error) {
	g.mu.Lock()
	prev, known := g.ready[store]
	g.ready[store] = ready
	if err != nil {
		g.lastErr[store] = err.Error()
	} else {
		delete(g.lastErr, store)
	}
	g.mu.Unlock()

	if ready {
		util.StoreReady.WithLabelValues(string(store)).Set(1)
	} else {
		util.StoreReady.WithLabelValues(string(store)).Set(0)
	}

	if !known || prev != ready {
		if ready {
			g.logger.Info("Store ready", zap.String("store", string(store)))
		} else {
			g.logger.Warn("Store not ready", zap.String("store", string(store)), zap.Error(err))
		}
	}
}

// IsReady reports whether the store is ready.
func (g *Gate) IsReady(store Store) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ready[store]
}

// Require returns an apperr.ErrStoreUnavailable error for the first store
// that is not ready, or nil.
func (g *Gate) Require(stores ...Store) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, s := range stores {
		if !g.ready[s] {
			return apperr.Unavailable(string(s))
		}
	}
	return nil
}

// Refresh pings every registered store once and updates readiness. Each ping
// gets its own timeout so one slow store does not mark the others down.
func (g *Gate) Refresh(ctx context.Context, timeout time.Duration) map[Store]bool {
	g.mu.RLock()
	pingers := make(map[Store]Pinger, len(g.pingers))
	for s, p := range g.pingers {
		pingers[s] = p
	}
	g.mu.RUnlock()

	for s, p := range pingers {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Ping(pingCtx)
		cancel()
		if err != nil {
			g.MarkDown(s, err)
			continue
		}
		g.MarkReady(s)
	}

	return g.Snapshot()
}

// Snapshot returns a copy of the readiness map.
func (g *Gate) Snapshot() map[Store]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[Store]bool, len(g.ready))
	for s, r := range g.ready {
		out[s] = r
	}
	return out
}

// Status describes one store for the readiness endpoint.
type Status struct {
	Store     Store  `json:"store"`
	Ready     bool   `json:"ready"`
	LastError string `json:"last_error,omitempty"`
}

// Statuses returns per-store status sorted by store name.
func (g *Gate) Statuses() []Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Status, 0, len(g.ready))
	for s, r := range g.ready {
		out = append(out, Status{Store: s, Ready: r, LastError: g.lastErr[s]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Store < out[j].Store })
	return out
}

// AllReady reports whether every known store is ready.
func (g *Gate) AllReady() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, r := range g.ready {
		if !r {
			return false
		}
	}
	return len(g.ready) > 0
}
