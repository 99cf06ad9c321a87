// Package feed keeps one connected client's tab-partitioned view consistent.
// Each client gets its own synchronizer goroutine with a mailbox; change
// notifications only ever trigger a fresh authoritative query, and optimistic
// local edits live in a tagged cache that the next authoritative response
// discards wholesale.
package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devsmilefactory/moversfinder-sub006/internal/observability"
	"github.com/devsmilefactory/moversfinder-sub006/internal/propagator"
)

type Tab string

const (
	TabOpen   Tab = "open"
	TabBids   Tab = "bids"
	TabActive Tab = "active"
	TabDone   Tab = "done"
)

func ValidTab(t Tab) bool {
	switch t {
	case TabOpen, TabBids, TabActive, TabDone:
		return true
	}
	return false
}

// Query identifies one authoritative fetch.
type Query struct {
	Tab     Tab
	Page    int
	PerPage int
}

// Key is the dedupe identity: two queries with the same key never run
// concurrently for one client.
func (q Query) Key() string {
	return fmt.Sprintf("%s:%d:%d", q.Tab, q.Page, q.PerPage)
}

// Fetcher issues the authoritative paginated query for a view.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) ([]Row, error)
}

// Sink receives rendered views, typically a websocket client.
type Sink interface {
	Send(view View)
}

// View is what the client renders for one tab.
type View struct {
	Tab  Tab   `json:"tab"`
	Page int   `json:"page"`
	Rows []Row `json:"rows"`
}

type message interface{ feedMessage() }

type msgSwitchTab struct{ q Query }
type msgLocalEdit struct {
	tab  Tab
	edit LocalEdit
}
type msgChange struct{ ev propagator.Event }
type msgFetched struct {
	q    Query
	rows []Row
	err  error
}

func (msgSwitchTab) feedMessage() {}
func (msgLocalEdit) feedMessage() {}
func (msgChange) feedMessage()    {}
func (msgFetched) feedMessage()   {}

// Synchronizer is the per-client actor. All state below is owned by the Run
// goroutine; external callers only enqueue messages.
type Synchronizer struct {
	fetcher Fetcher
	sink    Sink
	broker  *propagator.Broker
	logger  *slog.Logger

	mailbox chan message

	current  Query
	caches   map[Tab]*ListCache
	inFlight map[string]bool
	dirty    map[string]bool // queries changed while their fetch was in flight
	watches  map[uint]func() // requestID -> subscription cancel
}

func NewSynchronizer(fetcher Fetcher, sink Sink, broker *propagator.Broker, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		fetcher:  fetcher,
		sink:     sink,
		broker:   broker,
		logger:   logger,
		mailbox:  make(chan message, 32),
		caches:   make(map[Tab]*ListCache),
		inFlight: make(map[string]bool),
		dirty:    make(map[string]bool),
		watches:  make(map[uint]func()),
	}
}

// SwitchTab moves the client to a new view and triggers its authoritative
// fetch. Switching back and forth never stacks duplicate fetches for the
// same query key.
func (s *Synchronizer) SwitchTab(q Query) {
	s.mailbox <- msgSwitchTab{q: q}
}

// ApplyLocal layers an optimistic edit onto a tab after a local action
// succeeded. The next authoritative fetch supersedes it.
func (s *Synchronizer) ApplyLocal(tab Tab, edit LocalEdit) {
	s.mailbox <- msgLocalEdit{tab: tab, edit: edit}
}

// Run owns the actor state until ctx is cancelled.
func (s *Synchronizer) Run(ctx context.Context) {
	defer s.unwatchAll()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.mailbox:
			s.handle(ctx, msg)
		}
	}
}

func (s *Synchronizer) handle(ctx context.Context, msg message) {
	switch m := msg.(type) {
	case msgSwitchTab:
		s.current = m.q
		s.startFetch(ctx, m.q)

	case msgChange:
		// Notifications are a refetch trigger, nothing more. The payload is
		// deliberately not trusted. A fetch already in flight may have run
		// before this change committed, so it cannot absorb the
		// notification: mark the query dirty and go again once it lands.
		key := s.current.Key()
		if s.inFlight[key] {
			s.dirty[key] = true
		} else {
			s.startFetch(ctx, s.current)
		}

	case msgLocalEdit:
		cache := s.cache(m.tab)
		cache.ApplyLocal(m.edit)
		if m.tab == s.current.Tab {
			s.sink.Send(View{Tab: m.tab, Page: s.current.Page, Rows: cache.Rows()})
		}

	case msgFetched:
		key := m.q.Key()
		delete(s.inFlight, key)
		if s.dirty[key] {
			delete(s.dirty, key)
			s.startFetch(ctx, m.q)
		}
		if m.err != nil {
			s.logger.Warn("feed fetch failed", "tab", m.q.Tab, "err", m.err)
			return
		}
		cache := s.cache(m.q.Tab)
		cache.Confirm(m.rows)
		if m.q.Tab == s.current.Tab {
			s.sink.Send(View{Tab: m.q.Tab, Page: m.q.Page, Rows: cache.Rows()})
			s.rewatch(ctx, m.rows)
		}
	}
}

func (s *Synchronizer) cache(tab Tab) *ListCache {
	c, ok := s.caches[tab]
	if !ok {
		c = NewListCache()
		s.caches[tab] = c
	}
	return c
}

func (s *Synchronizer) startFetch(ctx context.Context, q Query) {
	if !ValidTab(q.Tab) {
		return
	}
	key := q.Key()
	if s.inFlight[key] {
		return
	}
	s.inFlight[key] = true
	observability.FeedRefreshesTotal.Inc()

	go func() {
		rows, err := s.fetcher.Fetch(ctx, q)
		select {
		case s.mailbox <- msgFetched{q: q, rows: rows, err: err}:
		case <-ctx.Done():
		}
	}()
}

// rewatch reconciles the change subscriptions with the requests visible in
// the current view.
func (s *Synchronizer) rewatch(ctx context.Context, rows []Row) {
	want := make(map[uint]bool, len(rows))
	for _, r := range rows {
		if r.RequestID != 0 {
			want[r.RequestID] = true
		}
	}

	for id, cancel := range s.watches {
		if !want[id] {
			cancel()
			delete(s.watches, id)
		}
	}
	for id := range want {
		if _, ok := s.watches[id]; ok {
			continue
		}
		ch, cancel := s.broker.Subscribe(id)
		s.watches[id] = cancel
		go func() {
			for ev := range ch {
				select {
				case s.mailbox <- msgChange{ev: ev}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

func (s *Synchronizer) unwatchAll() {
	for id, cancel := range s.watches {
		cancel()
		delete(s.watches, id)
	}
}
