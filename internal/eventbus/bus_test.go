package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversToSubscribers(t *testing.T) {
	b := New()
	defer b.Close(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)
	var mu sync.Mutex
	var got []any

	for i := 0; i < 2; i++ {
		b.Subscribe(TopicStateChanged, func(e Event) {
			mu.Lock()
			got = append(got, e.Payload)
			mu.Unlock()
			wg.Done()
		})
	}
	b.Subscribe(TopicSyncFinished, func(e Event) {
		t.Errorf("unexpected delivery on %s", e.Topic)
	})

	b.Publish(Event{Topic: TopicStateChanged, Payload: "x"})
	waitTimeout(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{"x", "x"}, got)
}

func TestBus_HandlerPanicDoesNotKillWorker(t *testing.T) {
	b := NewWithConfig(1, 4)
	defer b.Close(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	calls := 0
	b.Subscribe(TopicStateChanged, func(e Event) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		wg.Done()
	})

	b.Publish(Event{Topic: TopicStateChanged})
	b.Publish(Event{Topic: TopicStateChanged})
	waitTimeout(t, &wg)
}

func TestBus_PublishAfterCloseIsDropped(t *testing.T) {
	b := New()
	b.Subscribe(TopicStateChanged, func(Event) {})
	b.Close(context.Background())

	require.NotPanics(t, func() {
		b.Publish(Event{Topic: TopicStateChanged})
	})
	// second close is a no-op
	require.NotPanics(t, func() { b.Close(context.Background()) })
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for deliveries")
	}
}

func TestBus_PreservesOrderPerSubscriber(t *testing.T) {
	b := NewWithConfig(4, 64)
	defer b.Close(context.Background())

	const n = 20
	var wg sync.WaitGroup
	wg.Add(2 * n)

	var mu sync.Mutex
	seen := map[int][]int{}
	for sub := 0; sub < 2; sub++ {
		b.Subscribe(TopicStateChanged, func(e Event) {
			v := e.Payload.(int)
			if v == 0 {
				// a slow first delivery must not let later events overtake it
				time.Sleep(50 * time.Millisecond)
			}
			mu.Lock()
			seen[sub] = append(seen[sub], v)
			mu.Unlock()
			wg.Done()
		})
	}

	for i := 0; i < n; i++ {
		b.Publish(Event{Topic: TopicStateChanged, Payload: i})
	}
	waitTimeout(t, &wg)

	want := make([]int, n)
	for i := range want {
		want[i] = i
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, seen[0])
	assert.Equal(t, want, seen[1])
}
