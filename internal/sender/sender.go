// Package sender forwards finished quiz results to an external web app
// endpoint (a Google Sheets bridge in the original deployment). It is a
// passive listener on the result event bus: deliveries are fire-and-forget,
// never retried, and deduplicated only against the immediately previous
// delivery id.
package sender

import (
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andyyulianto77/kuis3/internal/domain"
)

const (
	statusSkipped = "No webAppUrl configured; skipping send."
	statusSent    = "Sent to Google Sheets"
)

// EventSource is anything exposing the result event bus.
type EventSource interface {
	Subscribe() (<-chan domain.ResultEvent, func())
}

// Sender subscribes on creation and unsubscribes on Close.
type Sender struct {
	webAppURL string
	httpc     *http.Client
	now       func() time.Time
	cancel    func()
	done      chan struct{}

	mu         sync.Mutex
	lastSentID string
	lastStatus string
}

func New(webAppURL string, source EventSource) *Sender {
	return NewWithClock(webAppURL, source, time.Now)
}

// NewWithClock is test-only for deterministic delivery ids.
func NewWithClock(webAppURL string, source EventSource, now func() time.Time) *Sender {
	s := &Sender{
		webAppURL: webAppURL,
		httpc:     http.DefaultClient,
		now:       now,
		done:      make(chan struct{}),
	}
	ch, cancel := source.Subscribe()
	s.cancel = cancel
	go s.loop(ch)
	return s
}

// Close unsubscribes from the bus and waits for the listener to drain.
func (s *Sender) Close() {
	s.cancel()
	<-s.done
}

// LastStatus reports the outcome of the most recent delivery attempt.
func (s *Sender) LastStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus
}

func (s *Sender) loop(ch <-chan domain.ResultEvent) {
	defer close(s.done)
	for ev := range ch {
		if ev.Kind != domain.EventFinished {
			continue
		}
		s.handle(ev)
	}
}

func (s *Sender) handle(ev domain.ResultEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.webAppURL == "" {
		s.lastStatus = statusSkipped
		return
	}

	user := domain.Identity{}
	if ev.User != nil {
		user = *ev.User
	}
	id := s.deliveryID(ev, user)
	// Single-slot dedup: only the immediately previous id is remembered.
	if id == s.lastSentID {
		return
	}
	s.lastSentID = id

	name := user.Name
	if name == "" {
		name = "Anonymous"
	}
	params := url.Values{
		"action":     {"tambah"},
		"iddata":     {id},
		"namaorng":   {name},
		"nilai":      {strconv.Itoa(ev.Result.Score)},
		"nope":       {user.Phone},
		"alamatorng": {user.Address},
		"keterangan": {
			"Kuis: " + ev.Slug + " - " + strconv.Itoa(ev.Result.Percentage) + "% (" +
				strconv.Itoa(ev.Result.Score) + "/" + strconv.Itoa(ev.Result.Total) + ")",
		},
	}

	log.Printf("sending quiz result for %s to web app", ev.Slug)
	res, err := s.httpc.PostForm(s.webAppURL, params)
	if err != nil {
		s.lastStatus = "Failed: " + err.Error()
		return
	}
	res.Body.Close()
	s.lastStatus = statusSent
}

// deliveryID mirrors the widget's iddata format: a dash-joined tuple of the
// result, identity, slug, and capture timestamp for finished results, or
// the bare timestamp otherwise.
func (s *Sender) deliveryID(ev domain.ResultEvent, user domain.Identity) string {
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	if !ev.Result.Finished {
		return ts
	}
	return strings.Join([]string{
		strconv.Itoa(ev.Result.Score),
		strconv.Itoa(ev.Result.Total),
		user.Name,
		user.Phone,
		user.Address,
		ev.Slug,
		ts,
	}, "-")
}
