package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/devsmilefactory/moversfinder-sub006/internal/propagator"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	rows  map[Tab][]Row
	gate  chan struct{} // when non-nil, Fetch blocks until closed
}

func (f *fakeFetcher) Fetch(ctx context.Context, q Query) ([]Row, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	rows := f.rows[q.Tab]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return rows, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	views chan View
}

func (s *fakeSink) Send(v View) { s.views <- v }

func recvView(t *testing.T, sink *fakeSink) View {
	t.Helper()
	select {
	case v := <-sink.views:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a view")
	}
	return View{}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSynchronizer(t *testing.T, fetcher *fakeFetcher) (*Synchronizer, *fakeSink, *propagator.Broker) {
	t.Helper()
	sink := &fakeSink{views: make(chan View, 16)}
	broker := propagator.NewBroker(nil)
	s := NewSynchronizer(fetcher, sink, broker, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)

	return s, sink, broker
}

func TestSwitchTabFetchesAndRenders(t *testing.T) {
	fetcher := &fakeFetcher{rows: map[Tab][]Row{
		TabOpen: {{Kind: "request", ID: 1, RequestID: 1, Status: "pending"}},
	}}
	s, sink, _ := newTestSynchronizer(t, fetcher)

	s.SwitchTab(Query{Tab: TabOpen, Page: 1, PerPage: 20})

	view := recvView(t, sink)
	if view.Tab != TabOpen || len(view.Rows) != 1 || view.Rows[0].ID != 1 {
		t.Errorf("unexpected view %+v", view)
	}
}

// Switching to the same query while its fetch is still in flight must not
// stack a second fetch.
func TestInFlightDedupe(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &fakeFetcher{
		rows: map[Tab][]Row{TabOpen: {{Kind: "request", ID: 1, RequestID: 1}}},
		gate: gate,
	}
	s, sink, _ := newTestSynchronizer(t, fetcher)

	q := Query{Tab: TabOpen, Page: 1, PerPage: 20}
	s.SwitchTab(q)
	s.SwitchTab(q)
	s.SwitchTab(q)

	close(gate)
	recvView(t, sink)

	if got := fetcher.callCount(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

// A change notification on a visible request triggers a refetch of the
// current view; the event payload itself is never rendered.
func TestChangeTriggersRefetch(t *testing.T) {
	fetcher := &fakeFetcher{rows: map[Tab][]Row{
		TabOpen: {{Kind: "request", ID: 4, RequestID: 4, Status: "pending"}},
	}}
	s, sink, broker := newTestSynchronizer(t, fetcher)

	s.SwitchTab(Query{Tab: TabOpen, Page: 1, PerPage: 20})
	recvView(t, sink)

	// The subscription lands just after the first view is delivered, so keep
	// publishing until the refetched view shows up.
	deadline := time.After(2 * time.Second)
	for {
		broker.Publish(propagator.Event{Table: "requests", RowID: 4, RequestID: 4, Op: propagator.OpUpdate})
		select {
		case view := <-sink.views:
			if view.Tab != TabOpen {
				t.Errorf("refetched view for tab %s, want open", view.Tab)
			}
			if fetcher.callCount() < 2 {
				t.Errorf("fetch calls = %d, want at least 2", fetcher.callCount())
			}
			return
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("change notification never triggered a refetch")
		}
	}
}

// versionedFetcher snapshots its data version at call entry, like a real
// query reading a database snapshot, and can stall fetches behind a gate.
type versionedFetcher struct {
	mu      sync.Mutex
	calls   int
	version int
	gate    chan struct{}
}

func (f *versionedFetcher) Fetch(ctx context.Context, q Query) ([]Row, error) {
	f.mu.Lock()
	f.calls++
	rows := []Row{{Kind: "request", ID: 1, RequestID: 1, Status: fmt.Sprintf("v%d", f.version)}}
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return rows, nil
}

func (f *versionedFetcher) setVersion(v int) {
	f.mu.Lock()
	f.version = v
	f.mu.Unlock()
}

func (f *versionedFetcher) setGate(gate chan struct{}) {
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
}

func (f *versionedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// A change that lands while the current query's fetch is already in flight
// cannot be absorbed by that fetch, which may have read an older snapshot.
// The synchronizer must issue one follow-up fetch once the stalled one
// returns, or the view stays stale until an unrelated event arrives.
func TestChangeDuringInFlightFetchRefetches(t *testing.T) {
	fetcher := &versionedFetcher{version: 1}
	sink := &fakeSink{views: make(chan View, 16)}
	broker := propagator.NewBroker(nil)
	s := NewSynchronizer(fetcher, sink, broker, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)

	s.SwitchTab(Query{Tab: TabOpen, Page: 1, PerPage: 20})
	if view := recvView(t, sink); view.Rows[0].Status != "v1" {
		t.Fatalf("initial view = %+v, want v1", view)
	}

	// Stall the next fetch; it will snapshot v2 at entry.
	gate := make(chan struct{})
	fetcher.setGate(gate)
	fetcher.setVersion(2)

	// Keep publishing until the stalled fetch has started; the watch on
	// request 1 lands just after the first view is delivered.
	deadline := time.After(2 * time.Second)
	for fetcher.callCount() < 2 {
		broker.Publish(propagator.Event{Table: "requests", RowID: 1, RequestID: 1, Op: propagator.OpUpdate})
		select {
		case <-deadline:
			t.Fatal("change notification never started a fetch")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// A second change commits while the v2 fetch is still in flight.
	fetcher.setVersion(3)
	broker.Publish(propagator.Event{Table: "requests", RowID: 1, RequestID: 1, Op: propagator.OpUpdate})

	close(gate)

	seen := []string{}
	for {
		select {
		case view := <-sink.views:
			seen = append(seen, view.Rows[0].Status)
			if view.Rows[0].Status == "v3" {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("view never caught up to v3; rendered %v", seen)
		}
	}
}

func TestLocalEditRendersImmediately(t *testing.T) {
	fetcher := &fakeFetcher{rows: map[Tab][]Row{
		TabBids: {{Kind: "offer", ID: 10, RequestID: 4, Status: "pending"}},
	}}
	s, sink, _ := newTestSynchronizer(t, fetcher)

	s.SwitchTab(Query{Tab: TabBids, Page: 1, PerPage: 20})
	recvView(t, sink)

	s.ApplyLocal(TabBids, LocalEdit{
		EditID: "withdraw-10",
		Patch:  &RowPatch{ID: 10, Status: "withdrawn"},
	})

	view := recvView(t, sink)
	if len(view.Rows) != 1 || view.Rows[0].Status != "withdrawn" {
		t.Errorf("optimistic view = %+v, want withdrawn offer", view)
	}
}

// Edits for a background tab update its cache but never repaint the current
// view.
func TestLocalEditOnBackgroundTabIsSilent(t *testing.T) {
	fetcher := &fakeFetcher{rows: map[Tab][]Row{
		TabOpen: {{Kind: "request", ID: 1, RequestID: 1, Status: "pending"}},
	}}
	s, sink, _ := newTestSynchronizer(t, fetcher)

	s.SwitchTab(Query{Tab: TabOpen, Page: 1, PerPage: 20})
	recvView(t, sink)

	s.ApplyLocal(TabDone, LocalEdit{
		EditID: "bg-edit",
		Insert: &Row{Kind: "request", ID: 9, RequestID: 9, Status: "completed"},
	})

	select {
	case view := <-sink.views:
		t.Errorf("background edit produced a view: %+v", view)
	case <-time.After(100 * time.Millisecond):
	}
}
