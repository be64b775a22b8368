package app_test

import (
	"testing"

	"github.com/andyyulianto77/kuis3/internal/app"
	"github.com/andyyulianto77/kuis3/internal/domain"
)

func TestBusFanOut(t *testing.T) {
	bus := app.NewBus()
	a, cancelA := bus.Subscribe()
	b, cancelB := bus.Subscribe()
	defer cancelB()

	bus.Publish(domain.ResultEvent{Kind: domain.EventResult, Slug: "aljabar"})
	if ev := <-a; ev.Slug != "aljabar" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev := <-b; ev.Slug != "aljabar" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	cancelA()
	if _, ok := <-a; ok {
		t.Fatalf("expected closed channel after cancel")
	}

	// Publishing after one listener left still reaches the other.
	bus.Publish(domain.ResultEvent{Kind: domain.EventFinished, Slug: "aljabar"})
	if ev := <-b; ev.Kind != domain.EventFinished {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestBusDropsStaleEventsForSlowConsumers(t *testing.T) {
	bus := app.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	for i := 0; i < 20; i++ {
		bus.Publish(domain.ResultEvent{Kind: domain.EventResult, Result: domain.QuizResult{Score: i}})
	}
	// The newest event is always retained.
	var last domain.ResultEvent
	for {
		select {
		case ev := <-ch:
			last = ev
			continue
		default:
		}
		break
	}
	if last.Result.Score != 19 {
		t.Fatalf("expected newest event retained, got %+v", last)
	}
}
