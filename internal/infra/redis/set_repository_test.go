package redis

import (
	"context"
	"testing"
	"time"

	"github.com/andyyulianto77/kuis3/internal/domain"
	"github.com/andyyulianto77/kuis3/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSetRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		SetLoader: memory.NewStaticSetLoader(map[string]domain.QuestionSet{
			"aljabar": sampleSet(),
		}),
	}
	repo := NewSetRepository(client, loader, time.Minute)

	set, err := repo.GetSet(context.Background(), "aljabar")
	if err != nil {
		t.Fatalf("get set: %v", err)
	}
	if len(set.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(set.Questions))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}

	// Second call should hit the redis cache, loader not incremented.
	_, _ = repo.GetSet(context.Background(), "aljabar")
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	memory.SetLoader
	calls int
}

func (l *countingLoader) LoadSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	l.calls++
	return l.SetLoader.LoadSet(ctx, setID)
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID: "aljabar",
		Questions: []domain.Question{
			{Question: "Berapakah 2 + 2?", Answer: "4"},
			{Question: "Berapakah 3 x 3?", Answer: "9"},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
