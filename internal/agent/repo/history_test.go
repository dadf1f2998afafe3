package repo

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/teamfit/server/internal/agent/model"
)

func entry(thread string, i int) model.HistoryEntry {
	return model.HistoryEntry{
		ThreadID:  thread,
		Query:     fmt.Sprintf("q%d", i),
		Messages:  []model.Message{model.TextMessage(fmt.Sprintf("m%d", i))},
		CreatedAt: time.Unix(int64(1700000000+i), 0).UTC(),
	}
}

func queries(entries []model.HistoryEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Query)
	}
	return out
}

func TestMemoryHistoryAppendOnly(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryHistoryRepository(0, 0)

	var prefix []string
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Append(ctx, entry("t", i)))
		got, err := r.Entries(ctx, "t")
		require.NoError(t, err)
		require.Len(t, got, i+1)
		assert.Equal(t, prefix, queries(got)[:i])
		prefix = queries(got)
	}

	n, err := r.Count(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	other, err := r.Entries(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemoryHistoryDefensiveCopy(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryHistoryRepository(0, 0)

	e := model.HistoryEntry{ThreadID: "t", Query: "q", Messages: []model.Message{
		model.AnswerMessage("a", []model.Source{{Filename: "f.pdf", Rank: 1}}),
	}}
	require.NoError(t, r.Append(ctx, e))
	e.Messages[0].Sources[0].Filename = "mutated-after-append"

	got, err := r.Entries(ctx, "t")
	require.NoError(t, err)
	got[0].Query = "mutated"
	got[0].Messages[0].Sources[0].Filename = "mutated-after-read"

	again, err := r.Entries(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "q", again[0].Query)
	assert.Equal(t, "f.pdf", again[0].Messages[0].Sources[0].Filename)
}

func TestMemoryHistoryRetentionCap(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryHistoryRepository(3, 0)
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Append(ctx, entry("t", i)))
	}
	got, err := r.Entries(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"q2", "q3", "q4"}, queries(got))
}

func TestMemoryHistoryTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewMemoryHistoryRepository(0, time.Hour)
	r.now = func() time.Time { return now }

	require.NoError(t, r.Append(ctx, entry("idle", 0)))
	require.NoError(t, r.Append(ctx, entry("busy", 0)))

	now = now.Add(50 * time.Minute)
	require.NoError(t, r.Append(ctx, entry("busy", 1)))

	now = now.Add(20 * time.Minute)
	n, err := r.Count(ctx, "idle")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = r.Count(ctx, "busy")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, 1, r.EvictExpired())

	// an expired thread restarts empty
	now = now.Add(2 * time.Hour)
	require.NoError(t, r.Append(ctx, entry("busy", 9)))
	got, err := r.Entries(ctx, "busy")
	require.NoError(t, err)
	assert.Equal(t, []string{"q9"}, queries(got))
}

func TestMemoryHistoryConcurrentThreads(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryHistoryRepository(0, 0)

	var wg sync.WaitGroup
	for th := 0; th < 8; th++ {
		wg.Add(1)
		go func(th int) {
			defer wg.Done()
			id := fmt.Sprintf("t%d", th)
			for i := 0; i < 50; i++ {
				assert.NoError(t, r.Append(ctx, entry(id, i)))
			}
		}(th)
	}
	wg.Wait()

	for th := 0; th < 8; th++ {
		got, err := r.Entries(ctx, fmt.Sprintf("t%d", th))
		require.NoError(t, err)
		require.Len(t, got, 50)
		for i, e := range got {
			assert.Equal(t, fmt.Sprintf("q%d", i), e.Query)
		}
	}
}

func TestMemoryHistoryClear(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryHistoryRepository(0, 0)
	require.NoError(t, r.Append(ctx, entry("t", 0)))
	require.NoError(t, r.Clear(ctx, "t"))
	n, err := r.Count(ctx, "t")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryHistoryJanitor(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := NewMemoryHistoryRepository(0, time.Minute)
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	require.NoError(t, r.Append(context.Background(), entry("idle", 0)))
	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return len(r.threads) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func newRedisRepo(t *testing.T, maxTurns int, ttl time.Duration) (*RedisHistoryRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisHistoryRepository(rdb, maxTurns, ttl), mr
}

func TestRedisHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisRepo(t, 0, 0)

	e := model.HistoryEntry{ThreadID: "t", Query: "추진 체계는?", Messages: []model.Message{
		model.TextMessage("earlier"),
		model.AnswerMessage("answer", []model.Source{{Content: "c", Section: "s", SourcePath: "./r.pdf", Filename: "r.pdf", Rank: 1}}),
	}}
	require.NoError(t, r.Append(ctx, e))
	require.NoError(t, r.Append(ctx, entry("t", 1)))

	assert.True(t, mr.Exists("history:t:turns"))

	got, err := r.Entries(ctx, "t")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, e.Query, got[0].Query)
	assert.Equal(t, e.Messages, got[0].Messages)
	assert.True(t, got[0].Messages[1].IsStructured())
	assert.False(t, got[0].Messages[0].IsStructured())

	n, err := r.Count(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, r.Clear(ctx, "t"))
	got, err = r.Entries(ctx, "t")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisHistoryKeepsEmptyAnswerShape(t *testing.T) {
	ctx := context.Background()
	r, _ := newRedisRepo(t, 0, 0)

	e := model.HistoryEntry{ThreadID: "t", Query: "q", Messages: []model.Message{model.AnswerMessage("", nil)}}
	require.NoError(t, r.Append(ctx, e))

	got, err := r.Entries(ctx, "t")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Messages, 1)
	assert.True(t, got[0].Messages[0].IsStructured())
	assert.Equal(t, model.MessageTypeAnswer, got[0].Messages[0].Type())
}

func TestRedisHistoryRetention(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisRepo(t, 2, time.Hour)

	for i := 0; i < 4; i++ {
		require.NoError(t, r.Append(ctx, entry("t", i)))
	}
	got, err := r.Entries(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"q2", "q3"}, queries(got))
	assert.Equal(t, time.Hour, mr.TTL("history:t:turns"))

	mr.FastForward(2 * time.Hour)
	n, err := r.Count(ctx, "t")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisHistoryUnavailable(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisRepo(t, 0, 0)
	mr.Close()

	assert.Error(t, r.Append(ctx, entry("t", 0)))
	_, err := r.Entries(ctx, "t")
	assert.Error(t, err)
}
