package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/Mr-Dark-debug/freightview/internal/api"
	"github.com/Mr-Dark-debug/freightview/internal/promotions"
	"github.com/Mr-Dark-debug/freightview/pkg/timeutil"
)

const (
	fetchTimeout   = 15 * time.Second
	backoffInitial = time.Second
	backoffMax     = 30 * time.Second
)

var errStreamEnded = errors.New("server closed the stream")

// ────────────────────────────────────────────────────────────
// Messages
// ────────────────────────────────────────────────────────────
//
// Every message carries the session generation it was started under.

type promotionsLoadedMsg struct {
	gen  uint64
	list []api.Promotion
	err  error
}

type watchOpenedMsg struct {
	gen    uint64
	stream promotions.Stream
	err    error
}

type promotionEventMsg struct {
	gen    uint64
	event  api.PromotionEvent
	stream promotions.Stream
}

type streamClosedMsg struct {
	gen uint64
	err error
}

type reconnectMsg struct {
	gen uint64
}

// ────────────────────────────────────────────────────────────
// Stage screen
// ────────────────────────────────────────────────────────────

// stageModel is the live promotions table of one stage.
type stageModel struct {
	ctx     context.Context
	backend Backend
	logger  *log.Logger
	session *promotions.Session

	spinner spinner.Model
	pager   paginator.Model
	cursor  int

	fetchErr error
	banner   string
	backoff  time.Duration
}

func newStageModel(ctx context.Context, backend Backend, logger *log.Logger, pageSize int) stageModel {
	p := paginator.New()
	p.Type = paginator.Dots
	p.PerPage = maxInt(pageSize, 1)
	p.ActiveDot = pagerStyle.Render("●")
	p.InactiveDot = hintDescStyle.Render("○")
	return stageModel{
		ctx:     ctx,
		backend: backend,
		logger:  logger,
		session: &promotions.Session{},
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		pager:   p,
	}
}

// begin follows a new stage, dropping whatever the previous one had open.
func (s *stageModel) begin(key promotions.Key) tea.Cmd {
	gen := s.session.Begin(key)
	s.cursor = 0
	s.pager.Page = 0
	s.fetchErr = nil
	s.banner = ""
	s.backoff = 0
	s.logger.Debug("following stage", "project", key.Project, "stage", key.Stage, "gen", gen)
	return tea.Batch(s.fetch(gen, key), s.spinner.Tick)
}

// retry refetches the snapshot and reopens the stream.
func (s *stageModel) retry() tea.Cmd {
	gen := s.session.Resync()
	s.fetchErr = nil
	s.banner = ""
	return s.fetch(gen, s.session.Key())
}

func (s *stageModel) close() {
	s.session.Close()
	s.banner = ""
}

func (s *stageModel) fetch(gen uint64, key promotions.Key) tea.Cmd {
	ctx, backend := s.ctx, s.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		list, err := backend.ListPromotions(ctx, key.Project, key.Stage)
		return promotionsLoadedMsg{gen: gen, list: list, err: err}
	}
}

func (s *stageModel) openWatch(gen uint64, key promotions.Key) tea.Cmd {
	ctx, backend := s.ctx, s.backend
	return func() tea.Msg {
		st, err := backend.WatchPromotions(ctx, key.Project, key.Stage)
		return watchOpenedMsg{gen: gen, stream: st, err: err}
	}
}

func waitEvent(gen uint64, st promotions.Stream) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-st.Events()
		if !ok {
			return streamClosedMsg{gen: gen, err: st.Err()}
		}
		return promotionEventMsg{gen: gen, event: ev, stream: st}
	}
}

// nextBackoff doubles the reconnect delay from one second up to the cap.
func nextBackoff(cur time.Duration) time.Duration {
	if cur <= 0 {
		return backoffInitial
	}
	cur *= 2
	if cur > backoffMax {
		return backoffMax
	}
	return cur
}

func (s *stageModel) scheduleReconnect(gen uint64, err error) tea.Cmd {
	s.backoff = nextBackoff(s.backoff)
	s.banner = fmt.Sprintf("stream lost: %v; reconnecting in %s", err, s.backoff)
	s.logger.Warn("promotion stream lost", "stage", s.session.Key().Stage, "err", err, "retry_in", s.backoff)
	return tea.Tick(s.backoff, func(time.Time) tea.Msg { return reconnectMsg{gen: gen} })
}

// update handles the stage screen's asynchronous messages. Messages from
// an older generation are dropped; a stale opened stream is closed.
func (s *stageModel) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case promotionsLoadedMsg:
		if !s.session.Current(msg.gen) {
			return nil
		}
		if msg.err != nil {
			if !s.session.Loaded() {
				s.fetchErr = msg.err
				s.logger.Error("loading promotions", "stage", s.session.Key().Stage, "err", msg.err)
				return nil
			}
			return s.scheduleReconnect(msg.gen, msg.err)
		}
		s.session.Load(msg.gen, msg.list)
		s.fetchErr = nil
		s.syncPager()
		return s.openWatch(msg.gen, s.session.Key())

	case watchOpenedMsg:
		if msg.err != nil {
			if !s.session.Current(msg.gen) {
				return nil
			}
			return s.scheduleReconnect(msg.gen, msg.err)
		}
		if !s.session.Attach(msg.gen, msg.stream) {
			return nil
		}
		s.banner = ""
		return waitEvent(msg.gen, msg.stream)

	case promotionEventMsg:
		if !s.session.Apply(msg.gen, msg.event) {
			return nil
		}
		s.backoff = 0
		s.syncPager()
		return waitEvent(msg.gen, msg.stream)

	case streamClosedMsg:
		if !s.session.Detach(msg.gen) {
			return nil
		}
		err := msg.err
		if err == nil || errors.Is(err, io.EOF) {
			err = errStreamEnded
		}
		return s.scheduleReconnect(msg.gen, err)

	case reconnectMsg:
		if !s.session.Current(msg.gen) {
			return nil
		}
		gen := s.session.Resync()
		return s.fetch(gen, s.session.Key())
	}
	return nil
}

func (s *stageModel) syncPager() {
	n := len(s.session.List())
	s.pager.SetTotalPages(n)
	s.cursor = clamp(s.cursor, 0, maxInt(n-1, 0))
	s.pager.Page = clamp(s.cursor/s.pager.PerPage, 0, maxInt(s.pager.TotalPages-1, 0))
}

func (s *stageModel) moveCursor(delta int) {
	s.cursor += delta
	s.syncPager()
}

func (s *stageModel) turnPage(delta int) {
	if delta > 0 {
		s.pager.NextPage()
	} else {
		s.pager.PrevPage()
	}
	s.cursor = s.pager.Page * s.pager.PerPage
	s.syncPager()
}

// selected returns the promotion under the cursor.
func (s stageModel) selected() (api.Promotion, bool) {
	rows := s.session.Rows()
	if s.cursor < 0 || s.cursor >= len(rows) {
		return api.Promotion{}, false
	}
	return rows[s.cursor], true
}

func (s stageModel) icon(p api.Promotion) string {
	switch promotions.StatusOf(p).Kind {
	case promotions.StatusSucceeded:
		return iconSucceededStyle.Render("✔")
	case promotions.StatusErrored:
		return iconErroredStyle.Render("✖")
	case promotions.StatusInProgress:
		return s.spinner.View()
	default:
		return iconUnknownStyle.Render("?")
	}
}

func (s stageModel) view(width int) string {
	key := s.session.Key()
	var b strings.Builder

	title := panelTitleStyle.Render("Promotions") + headerMetaStyle.Render("  "+key.Project+" / "+key.Stage)
	if s.session.Live() {
		title += iconSucceededStyle.Render("  ● live")
	}
	b.WriteString(title + "\n")

	if s.banner != "" {
		b.WriteString(bannerWarnStyle.Render(s.banner) + "\n")
	}

	if !s.session.Loaded() {
		if s.fetchErr != nil {
			b.WriteString("\n" + bannerErrorStyle.Render("failed to load promotions: "+s.fetchErr.Error()) +
				"\n" + hintDescStyle.Render("press r to retry"))
		} else {
			b.WriteString("\n" + s.spinner.View() + " Loading promotions...")
		}
		return panelStyle.Width(width).Render(b.String())
	}

	rows := s.session.Rows()
	if len(rows) == 0 {
		b.WriteString(emptyStateStyle.Render("No promotions"))
		return panelStyle.Width(width).Render(b.String())
	}

	const dateWidth, freightWidth = 24, 7
	nameWidth := maxInt(width-dateWidth-freightWidth-12, 12)

	b.WriteString("\n" + tableHeaderStyle.Render(
		"   "+padRight("Date", dateWidth)+"  "+padRight("Name", nameWidth)+"  Freight") + "\n")

	start, end := s.pager.GetSliceBounds(len(rows))
	for i := start; i < end; i++ {
		p := rows[i]
		line := padRight(timeutil.FormatPromotionDate(p.Metadata.CreationTimestamp), dateWidth) + "  " +
			padRight(truncate(p.Metadata.Name, nameWidth), nameWidth) + "  " +
			padRight(promotions.ShortFreight(p.Spec.Freight), freightWidth)
		style := rowStyle
		if i == s.cursor {
			style = rowSelectedStyle
		}
		b.WriteString(" " + s.icon(p) + " " + style.Render(line) + "\n")
	}

	if s.pager.TotalPages > 1 {
		b.WriteString("\n " + s.pager.View() + "\n")
	}

	if p, ok := s.selected(); ok {
		st := promotions.StatusOf(p)
		b.WriteString("\n" + detailLabelStyle.Render("Status  ") + detailValueStyle.Render(st.Title))
		if ts := p.Metadata.CreationTimestamp; !ts.IsZero() {
			b.WriteString("\n" + detailLabelStyle.Render("Created ") + detailValueStyle.Render(timeutil.RelativeTime(ts, time.Now())))
		}
		if st.Detail != "" {
			b.WriteString("\n" + detailLabelStyle.Render("Error   ") + iconErroredStyle.Render(st.Detail))
		}
	}

	return panelStyle.Width(width).Render(b.String())
}
