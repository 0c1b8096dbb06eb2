package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/Mr-Dark-debug/freightview/internal/api"
	"github.com/Mr-Dark-debug/freightview/pkg/jsonutil"
)

// Watch is an open promotion event stream. Events is closed when the
// stream ends; Err then reports why.
type Watch struct {
	events chan api.PromotionEvent
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// WatchPromotions opens the event stream of one stage. It returns once
// the server has accepted the stream.
func (c *Client) WatchPromotions(ctx context.Context, project, stage string) (*Watch, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := c.newRequest(ctx, http.MethodGet, c.projectPath(project, "stages", stage, "promotions", "watch"), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", jsonutil.ContentTypeNDJSON)

	resp, err := c.watch.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opening watch: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		resp.Body.Close()
		cancel()
		return nil, err
	}

	w := &Watch{
		events: make(chan api.PromotionEvent),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run(ctx, resp.Body)
	return w, nil
}

func (w *Watch) run(ctx context.Context, body io.ReadCloser) {
	defer close(w.done)
	defer close(w.events)
	defer body.Close()

	lr := jsonutil.NewLineReader(body)
	for {
		var ev api.PromotionEvent
		if err := lr.Next(&ev); err != nil {
			switch {
			case ctx.Err() != nil:
			case errors.Is(err, io.EOF):
				w.setErr(io.EOF)
			default:
				w.setErr(fmt.Errorf("reading watch stream: %w", err))
			}
			return
		}
		select {
		case w.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watch) setErr(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

// Events delivers events in the order the server sent them.
func (w *Watch) Events() <-chan api.PromotionEvent { return w.events }

// Err reports why the stream ended: io.EOF when the server closed it, nil
// after Close, or the read error.
func (w *Watch) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close cancels the stream and waits for its reader to exit. It is safe
// to call more than once.
func (w *Watch) Close() {
	w.cancel()
	<-w.done
}
