// Package sitejson reads and writes quiz results embedded in the site-wide
// manifest (site.json). Both directions are best-effort: reconciliation is
// a one-shot read that silently no-ops on any failure, and the write-back
// is a read-modify-write of the whole document with last-write-wins
// semantics (no locking; a documented limitation).
package sitejson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/andyyulianto77/kuis3/internal/domain"
)

// Client talks to the manifest resource. The zero endpoint disables it.
type Client struct {
	url   string
	httpc *http.Client
	// Loopback hosts are skipped so dev environments without a writable
	// site.json do not produce noisy failed fetches.
	allowLocal bool
	now        func() time.Time
}

func New(rawURL string) *Client {
	return &Client{
		url:   rawURL,
		httpc: http.DefaultClient,
		now:   time.Now,
	}
}

type manifest struct {
	Items []manifestItem `json:"items"`
}

type manifestItem struct {
	Slug     string        `json:"slug"`
	Metadata *itemMetadata `json:"metadata"`
}

type itemMetadata struct {
	Quiz       *quizMeta `json:"quiz"`
	QuizResult *quizMeta `json:"quizResult"`
}

// quizMeta keeps Score as a pointer so "carries a numeric score" is
// distinguishable from an absent field.
type quizMeta struct {
	Score      *float64 `json:"score"`
	Percentage float64  `json:"percentage"`
	Finished   bool     `json:"finished"`
	Total      int      `json:"total"`
}

// FetchResult looks up the manifest entry for slug and returns its embedded
// quiz result when it indicates a finished state or carries a numeric
// score. It returns (nil, nil) when the endpoint is unset or local, the
// entry is missing, or the record does not indicate completion.
func (c *Client) FetchResult(ctx context.Context, slug string) (*domain.RemoteResult, error) {
	if c.skip() {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, nil
	}

	var site manifest
	if err := json.NewDecoder(res.Body).Decode(&site); err != nil {
		return nil, err
	}
	for _, item := range site.Items {
		if item.Slug != slug || item.Metadata == nil {
			continue
		}
		q := item.Metadata.Quiz
		if q == nil {
			q = item.Metadata.QuizResult
		}
		if q == nil || (!q.Finished && q.Score == nil) {
			return nil, nil
		}
		remote := &domain.RemoteResult{
			Percentage: int(math.Round(q.Percentage)),
			Finished:   q.Finished,
			Total:      q.Total,
		}
		if q.Score != nil {
			remote.Score = int(math.Round(*q.Score))
		}
		return remote, nil
	}
	return nil, nil
}

// WriteResult fetches the whole manifest, replaces the matching entry's
// metadata.quizResult, and re-submits the entire document. Concurrent
// writers clobber each other; callers treat any error as non-fatal.
func (c *Client) WriteResult(ctx context.Context, slug string, result domain.QuizResult) error {
	if c.skip() {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	res, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("manifest fetch: status %d", res.StatusCode)
	}

	var doc map[string]any
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return err
	}
	items, _ := doc["items"].([]any)
	var entry map[string]any
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if s, _ := m["slug"].(string); s == slug {
			entry = m
			break
		}
	}
	if entry == nil {
		return nil
	}
	meta, ok := entry["metadata"].(map[string]any)
	if !ok {
		meta = map[string]any{}
		entry["metadata"] = meta
	}
	meta["quizResult"] = map[string]any{
		"score":      result.Score,
		"percentage": result.Percentage,
		"finished":   result.Finished,
		"updated":    c.now().UnixMilli(),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	post, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	post.Header.Set("Content-Type", "application/json")
	wres, err := c.httpc.Do(post)
	if err != nil {
		return err
	}
	defer wres.Body.Close()
	return nil
}

func (c *Client) skip() bool {
	if c.url == "" {
		return true
	}
	if c.allowLocal {
		return false
	}
	return isLoopback(c.url)
}

func isLoopback(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
