package promotions

import (
	"testing"

	"github.com/Mr-Dark-debug/freightview/internal/api"
)

type fakeStream struct {
	events chan api.PromotionEvent
	closed int
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan api.PromotionEvent)}
}

func (f *fakeStream) Events() <-chan api.PromotionEvent { return f.events }
func (f *fakeStream) Err() error                        { return nil }
func (f *fakeStream) Close()                            { f.closed++ }

// TestSessionBeginClosesPreviousStream verifies switching stages tears
// down the old subscription before a new one exists.
func TestSessionBeginClosesPreviousStream(t *testing.T) {
	var s Session
	gen := s.Begin(Key{"p", "dev"})
	first := newFakeStream()
	if !s.Attach(gen, first) {
		t.Fatal("attach rejected")
	}

	s.Begin(Key{"p", "prod"})
	if first.closed != 1 {
		t.Errorf("expected old stream closed once, got %d", first.closed)
	}
	if s.Live() {
		t.Error("no stream should be live right after Begin")
	}
	if s.Key().Stage != "prod" {
		t.Errorf("expected key prod, got %s", s.Key().Stage)
	}
}

// TestSessionRejectsStaleResults verifies results from an older
// generation never touch the list and stale streams are closed.
func TestSessionRejectsStaleResults(t *testing.T) {
	var s Session
	old := s.Begin(Key{"p", "dev"})
	cur := s.Begin(Key{"p", "prod"})

	if s.Load(old, []api.Promotion{promo("x", 1, "")}) {
		t.Error("stale load accepted")
	}
	if s.Apply(old, event(api.EventAdded, promo("y", 2, ""))) {
		t.Error("stale event accepted")
	}
	stale := newFakeStream()
	if s.Attach(old, stale) {
		t.Error("stale stream attached")
	}
	if stale.closed != 1 {
		t.Errorf("stale stream must be closed, got %d", stale.closed)
	}
	if len(s.List()) != 0 || s.Loaded() {
		t.Errorf("list must be empty, got %v", names(s.List()))
	}

	if !s.Load(cur, nil) || !s.Loaded() {
		t.Error("current load rejected")
	}
}

// TestSessionSingleLiveStream verifies attaching twice keeps one handle.
func TestSessionSingleLiveStream(t *testing.T) {
	var s Session
	gen := s.Begin(Key{"p", "dev"})
	a, b := newFakeStream(), newFakeStream()
	s.Attach(gen, a)
	s.Attach(gen, b)

	if a.closed != 1 {
		t.Errorf("expected first stream closed, got %d", a.closed)
	}
	if s.Stream() != b {
		t.Error("expected second stream attached")
	}

	s.Close()
	if b.closed != 1 || s.Live() {
		t.Error("Close must close the live stream")
	}
	if s.Apply(gen, event(api.EventAdded, promo("late", 1, ""))) {
		t.Error("event after Close accepted")
	}
}

// TestSessionResyncKeepsList verifies a reconnect keeps showing the last
// list until a fresh snapshot arrives.
func TestSessionResyncKeepsList(t *testing.T) {
	var s Session
	gen := s.Begin(Key{"p", "dev"})
	s.Load(gen, []api.Promotion{promo("a", 1, "")})
	st := newFakeStream()
	s.Attach(gen, st)

	next := s.Resync()
	if next == gen {
		t.Fatal("Resync must advance the generation")
	}
	if st.closed != 1 {
		t.Error("Resync must close the live stream")
	}
	if len(s.List()) != 1 {
		t.Errorf("expected list kept, got %v", names(s.List()))
	}
	if s.Detach(gen) {
		t.Error("Detach with stale generation accepted")
	}
}
