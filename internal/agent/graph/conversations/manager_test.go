package conversations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamfit/server/internal/agent/model"
	"github.com/teamfit/server/internal/agent/repo"
)

func newManager() *HistoryManager {
	return NewHistoryManager(repo.NewMemoryHistoryRepository(0, 0))
}

func TestHistoryManagerParallelLists(t *testing.T) {
	ctx := context.Background()
	hm := newManager()

	var msgs []model.Message
	for i := 0; i < 3; i++ {
		msgs = append(msgs, model.TextMessage(fmt.Sprintf("m%d", i)))
		require.NoError(t, hm.Append(ctx, "t", fmt.Sprintf("q%d", i), msgs))
	}

	qs, err := hm.Queries(ctx, "t")
	require.NoError(t, err)
	batches, err := hm.Messages(ctx, "t")
	require.NoError(t, err)

	assert.Equal(t, []string{"q0", "q1", "q2"}, qs)
	require.Len(t, batches, 3)
	for i, b := range batches {
		assert.Len(t, b, i+1)
	}

	latest, err := hm.LatestMessages(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, msgs, latest)

	empty, err := hm.LatestMessages(ctx, "new")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestHistoryManagerCopiesOnAppend(t *testing.T) {
	ctx := context.Background()
	hm := newManager()

	msgs := []model.Message{model.TextMessage("a")}
	require.NoError(t, hm.Append(ctx, "", "q", msgs))
	msgs[0].Text = "mutated"

	batches, err := hm.Messages(ctx, model.DefaultThreadID)
	require.NoError(t, err)
	assert.Equal(t, "a", batches[0][0].Text)
}

func TestHistoryManagerSameThreadOrdering(t *testing.T) {
	ctx := context.Background()
	hm := newManager()

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				q := fmt.Sprintf("w%d-%d", w, i)
				assert.NoError(t, hm.Append(ctx, "shared", q, []model.Message{model.TextMessage(q)}))
			}
		}(w)
	}
	wg.Wait()

	qs, err := hm.Queries(ctx, "shared")
	require.NoError(t, err)
	batches, err := hm.Messages(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, qs, writers*perWriter)
	require.Len(t, batches, writers*perWriter)

	// each writer's own turns stay in order and line up with their batch
	next := make(map[string]int)
	for i, q := range qs {
		assert.Equal(t, q, batches[i][0].Text)
		var w, n int
		_, err := fmt.Sscanf(q, "w%d-%d", &w, &n)
		require.NoError(t, err)
		key := fmt.Sprint(w)
		assert.Equal(t, next[key], n)
		next[key] = n + 1
	}
}

func TestHistoryManagerTurnsSeeEachOther(t *testing.T) {
	ctx := context.Background()
	hm := newManager()

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			turn := hm.BeginTurn("shared")
			defer turn.End()

			latest, err := turn.LatestMessages(ctx)
			if !assert.NoError(t, err) {
				return
			}
			q := fmt.Sprintf("q%d", i)
			assert.NoError(t, turn.Append(ctx, q, append(latest, model.TextMessage(q))))
		}(i)
	}
	wg.Wait()

	batches, err := hm.Messages(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, batches, turns)
	for i, b := range batches {
		assert.Len(t, b, i+1)
	}

	hm.mu.Lock()
	assert.Empty(t, hm.threads)
	hm.mu.Unlock()
}

func TestHistoryManagerTurnEndIsIdempotent(t *testing.T) {
	hm := newManager()
	turn := hm.BeginTurn("")
	assert.Equal(t, model.DefaultThreadID, turn.ThreadID())
	turn.End()
	turn.End()

	// the thread is free again
	require.NoError(t, hm.Append(context.Background(), "", "q", nil))
}

func TestHistoryManagerReportSources(t *testing.T) {
	ctx := context.Background()
	hm := newManager()

	first := model.AnswerMessage("a1", []model.Source{
		{SourcePath: "./docs/a.pdf", Filename: "a.pdf", Section: "개요", Rank: 1},
		{SourcePath: "./docs/b.pdf", Filename: "b.pdf", Section: "예산", Rank: 2},
	})
	second := model.AnswerMessage("a2", []model.Source{
		{SourcePath: "./docs/b.pdf", Filename: "b.pdf", Section: "다른 섹션", Rank: 1},
		{SourcePath: "./docs/c.pdf", Filename: "c.pdf", Section: "일정", Rank: 2},
		{SourcePath: "", Filename: "nameless.pdf", Rank: 3},
	})

	require.NoError(t, hm.Append(ctx, "t", "첫 질문", []model.Message{first}))
	require.NoError(t, hm.Append(ctx, "t", "두번째 질문", []model.Message{first, model.TextMessage("x"), second}))

	reports, err := hm.ReportSources(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []model.ReportSource{
		{Query: "첫 질문", Section: "개요", Source: "./docs/a.pdf", Filename: "a.pdf"},
		{Query: "첫 질문", Section: "예산", Source: "./docs/b.pdf", Filename: "b.pdf"},
		{Query: "두번째 질문", Section: "일정", Source: "./docs/c.pdf", Filename: "c.pdf"},
	}, reports)

	none, err := hm.ReportSources(ctx, "empty")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

type failingRepo struct{ model.HistoryRepository }

func (failingRepo) Append(context.Context, model.HistoryEntry) error { return errors.New("disk full") }
func (failingRepo) Entries(context.Context, string) ([]model.HistoryEntry, error) {
	return nil, errors.New("disk full")
}

func TestHistoryManagerErrors(t *testing.T) {
	hm := NewHistoryManager(failingRepo{})
	assert.Error(t, hm.Append(context.Background(), "t", "q", nil))
	_, err := hm.Queries(context.Background(), "t")
	assert.Error(t, err)
	_, err = hm.ReportSources(context.Background(), "t")
	assert.Error(t, err)
}
