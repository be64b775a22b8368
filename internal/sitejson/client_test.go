package sitejson

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andyyulianto77/kuis3/internal/domain"
)

const siteDoc = `{
	"title": "Kuis Pengetahuan Umum",
	"items": [
		{"slug": "welcome", "metadata": {}},
		{"slug": "about", "metadata": {"quizResult": {"score": 3, "percentage": 75, "finished": true, "total": 4}}}
	]
}`

func newTestClient(url string) *Client {
	c := New(url)
	c.allowLocal = true
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func TestFetchResultFindsFinishedRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, siteDoc)
	}))
	defer srv.Close()

	remote, err := newTestClient(srv.URL).FetchResult(context.Background(), "about")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if remote == nil {
		t.Fatalf("expected remote result")
	}
	want := domain.RemoteResult{Score: 3, Percentage: 75, Finished: true, Total: 4}
	if *remote != want {
		t.Fatalf("expected %+v, got %+v", want, *remote)
	}
}

func TestFetchResultNoRecordIsNoOp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, siteDoc)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	for _, slug := range []string{"welcome", "missing"} {
		remote, err := client.FetchResult(context.Background(), slug)
		if err != nil {
			t.Fatalf("%s: fetch: %v", slug, err)
		}
		if remote != nil {
			t.Fatalf("%s: expected no result, got %+v", slug, remote)
		}
	}
}

func TestFetchResultSkipsLoopbackHosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("loopback endpoint must not be fetched")
	}))
	defer srv.Close()

	remote, err := New(srv.URL).FetchResult(context.Background(), "about")
	if err != nil || remote != nil {
		t.Fatalf("expected silent skip, got remote=%+v err=%v", remote, err)
	}
}

func TestWriteResultReadModifyWrite(t *testing.T) {
	var posted []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posted, _ = io.ReadAll(r.Body)
			return
		}
		io.WriteString(w, siteDoc)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).WriteResult(context.Background(), "welcome", domain.QuizResult{
		Score: 1, Percentage: 100, Finished: true, Total: 1,
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if posted == nil {
		t.Fatalf("expected a POST of the whole document")
	}

	var doc map[string]any
	if err := json.Unmarshal(posted, &doc); err != nil {
		t.Fatalf("unmarshal posted doc: %v", err)
	}
	if doc["title"] != "Kuis Pengetahuan Umum" {
		t.Fatalf("expected unrelated fields preserved, got %v", doc["title"])
	}
	items := doc["items"].([]any)
	entry := items[0].(map[string]any)
	meta := entry["metadata"].(map[string]any)
	result := meta["quizResult"].(map[string]any)
	if result["score"].(float64) != 1 || result["finished"] != true {
		t.Fatalf("unexpected quizResult: %+v", result)
	}
	if result["updated"].(float64) != 1700000000000 {
		t.Fatalf("expected fixed timestamp, got %v", result["updated"])
	}
	// The other entry's record must survive the rewrite untouched.
	about := items[1].(map[string]any)
	aboutResult := about["metadata"].(map[string]any)["quizResult"].(map[string]any)
	if aboutResult["score"].(float64) != 3 {
		t.Fatalf("expected sibling entry preserved, got %+v", aboutResult)
	}
}

func TestWriteResultMissingSlugIsNoOp(t *testing.T) {
	posts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
			return
		}
		io.WriteString(w, siteDoc)
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).WriteResult(context.Background(), "nope", domain.QuizResult{Score: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if posts != 0 {
		t.Fatalf("expected no POST for unknown slug, got %d", posts)
	}
}
