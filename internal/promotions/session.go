package promotions

import "github.com/Mr-Dark-debug/freightview/internal/api"

// Stream is an open promotion watch. Events is closed when the stream
// ends; Err then reports why, or nil after Close.
type Stream interface {
	Events() <-chan api.PromotionEvent
	Err() error
	Close()
}

// Key identifies the stage a session follows.
type Key struct {
	Project string
	Stage   string
}

// Session owns the cached promotion list of one view and the single watch
// stream feeding it.
//
// Every asynchronous result is tagged with the generation it was started
// under. Begin, Resync and Close advance the generation and close the live
// stream, so results that arrive for an older generation are dropped and
// at most one stream is ever attached.
type Session struct {
	key    Key
	gen    uint64
	stream Stream
	list   []api.Promotion
	loaded bool
}

// Begin switches the session to key and returns the new generation. The
// previous stream is closed and the cached list cleared.
func (s *Session) Begin(key Key) uint64 {
	s.closeStream()
	s.gen++
	s.key = key
	s.list = nil
	s.loaded = false
	return s.gen
}

// Resync closes the live stream and returns a new generation for the same
// key. The cached list is kept until the next Load replaces it.
func (s *Session) Resync() uint64 {
	s.closeStream()
	s.gen++
	return s.gen
}

// Close tears down the live stream. Results still in flight become stale.
func (s *Session) Close() {
	s.closeStream()
	s.gen++
}

// Key returns the stage the session follows.
func (s *Session) Key() Key { return s.key }

// Generation returns the current generation.
func (s *Session) Generation() uint64 { return s.gen }

// Current reports whether gen is the current generation.
func (s *Session) Current(gen uint64) bool { return gen == s.gen }

// Load replaces the cached list with a fetched snapshot.
func (s *Session) Load(gen uint64, list []api.Promotion) bool {
	if !s.Current(gen) {
		return false
	}
	s.list = append([]api.Promotion(nil), list...)
	s.loaded = true
	return true
}

// Attach installs st as the live stream. A stream opened for a stale
// generation is closed and rejected.
func (s *Session) Attach(gen uint64, st Stream) bool {
	if !s.Current(gen) {
		st.Close()
		return false
	}
	s.closeStream()
	s.stream = st
	return true
}

// Apply folds ev into the cached list.
func (s *Session) Apply(gen uint64, ev api.PromotionEvent) bool {
	if !s.Current(gen) {
		return false
	}
	s.list = Apply(s.list, ev)
	return true
}

// Detach drops the live stream after it ended on its own.
func (s *Session) Detach(gen uint64) bool {
	if !s.Current(gen) {
		return false
	}
	s.closeStream()
	return true
}

// Loaded reports whether a snapshot has been loaded since Begin.
func (s *Session) Loaded() bool { return s.loaded }

// Live reports whether a stream is attached.
func (s *Session) Live() bool { return s.stream != nil }

// Stream returns the attached stream, if any.
func (s *Session) Stream() Stream { return s.stream }

// List returns the cached list in event order.
func (s *Session) List() []api.Promotion { return s.list }

// Rows returns the cached list newest first.
func (s *Session) Rows() []api.Promotion { return SortedByCreation(s.list) }

func (s *Session) closeStream() {
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}
}
