// Package live delivers full result sets to subscribers whenever the underlying
// rows change. Subscriptions with the same key share one feed: the query runs
// once per change and the result fans out to every listener.
package live

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"objektbetreuer-backend/internal/pkg/apperr"

	"github.com/google/uuid"
)

const (
	EntityProperties   = "properties"
	EntityJobs         = "jobs"
	EntityAppointments = "appointments"
	EntityEmployees    = "employees"
	EntityInvitations  = "invitations"
)

// Change announces that rows of Entity owned by CompanyID were written.
type Change struct {
	Entity    string    `json:"entity"`
	CompanyID uuid.UUID `json:"company_id"`
}

// Publisher is told about every committed write.
type Publisher interface {
	Publish(ctx context.Context, ch Change)
}

// Notify publishes ch on p; a nil publisher is a no-op.
func Notify(ctx context.Context, p Publisher, entity string, companyID uuid.UUID) {
	if p == nil {
		return
	}
	p.Publish(ctx, Change{Entity: entity, CompanyID: companyID})
}

// Key identifies a logical query: entity, tenant and filter signature.
type Key struct {
	Entity    string
	CompanyID uuid.UUID
	Filter    string
}

// FilterSignature renders filter parameters in a canonical order so equal
// filters share a feed. Empty values are dropped.
func FilterSignature(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, "&")
}

// Fetch loads the complete current result set of a feed.
type Fetch func(ctx context.Context) (interface{}, error)

// Listener receives deliveries for one subscription. Callbacks run on the
// publishing goroutine and must not subscribe to the same key synchronously.
type Listener struct {
	OnData  func(data interface{})
	OnError func(err error)
	// Guard runs before every delivery; an error is sent to OnError instead of the data.
	Guard func(ctx context.Context) error
}

type listener struct {
	Listener
	closed atomic.Bool
}

func (l *listener) deliver(ctx context.Context, data interface{}) {
	if l.closed.Load() {
		return
	}
	if l.Guard != nil {
		if err := l.Guard(ctx); err != nil {
			l.fail(err)
			return
		}
	}
	if l.OnData != nil {
		l.OnData(data)
	}
}

func (l *listener) fail(err error) {
	if l.closed.Load() || l.OnError == nil {
		return
	}
	l.OnError(err)
}

type feed struct {
	key   Key
	fetch Fetch

	// refresh serializes fetch and delivery so listeners see snapshots in order.
	refresh  sync.Mutex
	snapshot interface{}
	loaded   bool

	listeners map[uint64]*listener // guarded by Hub.mu
}

// Hub owns the shared feeds of one process.
type Hub struct {
	// FetchTimeout bounds every fetch; zero means 10s.
	FetchTimeout time.Duration

	mu     sync.Mutex
	feeds  map[Key]*feed
	nextID uint64
}

func NewHub() *Hub {
	return &Hub{feeds: make(map[Key]*feed)}
}

// Subscribe registers l on the feed for key, creating it with fetch if needed.
// l receives the current result set right away and the full set again after
// every change. The returned function cancels the subscription; calling it more
// than once is harmless. The last listener to leave removes the feed.
func (h *Hub) Subscribe(ctx context.Context, key Key, fetch Fetch, l Listener) (unsubscribe func()) {
	h.mu.Lock()
	if h.feeds == nil {
		h.feeds = make(map[Key]*feed)
	}
	f, ok := h.feeds[key]
	if !ok {
		f = &feed{key: key, fetch: fetch, listeners: make(map[uint64]*listener)}
		h.feeds[key] = f
	}
	h.nextID++
	id := h.nextID
	ln := &listener{Listener: l}
	f.listeners[id] = ln
	h.mu.Unlock()

	f.refresh.Lock()
	if f.loaded {
		ln.deliver(ctx, f.snapshot)
	} else {
		h.reload(ctx, f)
	}
	f.refresh.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			ln.closed.Store(true)
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(f.listeners, id)
			if len(f.listeners) == 0 && h.feeds[key] == f {
				delete(h.feeds, key)
			}
		})
	}
}

// Publish refreshes every feed of the changed entity and tenant.
func (h *Hub) Publish(ctx context.Context, ch Change) {
	h.mu.Lock()
	var targets []*feed
	for k, f := range h.feeds {
		if k.Entity == ch.Entity && k.CompanyID == ch.CompanyID {
			targets = append(targets, f)
		}
	}
	h.mu.Unlock()

	for _, f := range targets {
		f.refresh.Lock()
		h.reload(ctx, f)
		f.refresh.Unlock()
	}
}

// Feeds reports the number of live feeds.
func (h *Hub) Feeds() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.feeds)
}

// Listeners reports how many subscriptions share the feed for key.
func (h *Hub) Listeners(key Key) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if f, ok := h.feeds[key]; ok {
		return len(f.listeners)
	}
	return 0
}

// reload must be called with f.refresh held.
func (h *Hub) reload(ctx context.Context, f *feed) {
	timeout := h.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	data, err := f.fetch(fctx)
	cancel()

	ls := h.listenersOf(f)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			err = apperr.Unavailable(err)
		}
		for _, l := range ls {
			l.fail(err)
		}
		return
	}
	f.snapshot, f.loaded = data, true
	for _, l := range ls {
		l.deliver(ctx, data)
	}
}

func (h *Hub) listenersOf(f *feed) []*listener {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]uint64, 0, len(f.listeners))
	for id := range f.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.listeners[id])
	}
	return out
}
