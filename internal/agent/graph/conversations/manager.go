package conversations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teamfit/server/internal/agent/model"
	logx "github.com/teamfit/server/pkg/logger"
)

type threadLock struct {
	mu   sync.Mutex
	refs int
}

// HistoryManager is the per-thread history store used by the supervisor and
// the transport. Work on one thread is serialized; threads never contend.
type HistoryManager struct {
	repo model.HistoryRepository
	now  func() time.Time

	mu      sync.Mutex
	threads map[string]*threadLock
}

func NewHistoryManager(repo model.HistoryRepository) *HistoryManager {
	return &HistoryManager{
		repo:    repo,
		now:     time.Now,
		threads: make(map[string]*threadLock),
	}
}

// lock acquires the thread's lock and returns its release func.
func (hm *HistoryManager) lock(threadID string) func() {
	hm.mu.Lock()
	l, ok := hm.threads[threadID]
	if !ok {
		l = &threadLock{}
		hm.threads[threadID] = l
	}
	l.refs++
	hm.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		hm.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(hm.threads, threadID)
		}
		hm.mu.Unlock()
	}
}

// Turn holds a thread's lock from seeding the state until the turn is
// recorded, so concurrent turns on one thread see each other's messages.
type Turn struct {
	hm       *HistoryManager
	threadID string
	release  func()
	once     sync.Once
}

// BeginTurn blocks until no other turn of the thread is in flight.
// End must be called once the turn is over.
func (hm *HistoryManager) BeginTurn(threadID string) *Turn {
	if threadID == "" {
		threadID = model.DefaultThreadID
	}
	return &Turn{hm: hm, threadID: threadID, release: hm.lock(threadID)}
}

func (t *Turn) ThreadID() string { return t.threadID }

// LatestMessages returns the batch the turn starts from.
func (t *Turn) LatestMessages(ctx context.Context) ([]model.Message, error) {
	return t.hm.LatestMessages(ctx, t.threadID)
}

// Append records the turn's result.
func (t *Turn) Append(ctx context.Context, query string, messages []model.Message) error {
	return t.hm.appendEntry(ctx, t.threadID, query, messages)
}

// End releases the thread. Calling it again is a no-op.
func (t *Turn) End() {
	t.once.Do(t.release)
}

// Append records one turn. The stored batch is a copy of messages.
func (hm *HistoryManager) Append(ctx context.Context, threadID, query string, messages []model.Message) error {
	if threadID == "" {
		threadID = model.DefaultThreadID
	}
	release := hm.lock(threadID)
	defer release()
	return hm.appendEntry(ctx, threadID, query, messages)
}

func (hm *HistoryManager) appendEntry(ctx context.Context, threadID, query string, messages []model.Message) error {
	entry := model.HistoryEntry{
		ThreadID:  threadID,
		Query:     query,
		Messages:  model.CloneMessages(messages),
		CreatedAt: hm.now().UTC(),
	}
	if err := hm.repo.Append(ctx, entry); err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("Failed to append history entry")
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Entries returns the thread's turns, oldest first.
func (hm *HistoryManager) Entries(ctx context.Context, threadID string) ([]model.HistoryEntry, error) {
	if threadID == "" {
		threadID = model.DefaultThreadID
	}
	entries, err := hm.repo.Entries(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return entries, nil
}

// Queries returns the submitted queries in turn order.
func (hm *HistoryManager) Queries(ctx context.Context, threadID string) ([]string, error) {
	entries, err := hm.Entries(ctx, threadID)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Query
	}
	return out, nil
}

// Messages returns the emitted message batches in turn order. Index i lines
// up with index i of Queries.
func (hm *HistoryManager) Messages(ctx context.Context, threadID string) ([][]model.Message, error) {
	entries, err := hm.Entries(ctx, threadID)
	if err != nil {
		return nil, err
	}
	out := make([][]model.Message, len(entries))
	for i, e := range entries {
		out[i] = model.CloneMessages(e.Messages)
	}
	return out, nil
}

// LatestMessages returns the most recent batch, or an empty list for a new
// thread. It seeds the next turn's state.
func (hm *HistoryManager) LatestMessages(ctx context.Context, threadID string) ([]model.Message, error) {
	entries, err := hm.Entries(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []model.Message{}, nil
	}
	return model.CloneMessages(entries[len(entries)-1].Messages), nil
}

// ReportSources lists the documents returned to the thread so far, keyed by
// source path and filename. The first occurrence wins.
func (hm *HistoryManager) ReportSources(ctx context.Context, threadID string) ([]model.ReportSource, error) {
	entries, err := hm.Entries(ctx, threadID)
	if err != nil {
		return nil, err
	}

	reports := make([]model.ReportSource, 0)
	seen := make(map[string]struct{})
	for _, e := range entries {
		if e.Query == "" || len(e.Messages) == 0 {
			continue
		}
		for _, msg := range e.Messages {
			for _, src := range msg.Sources {
				if src.SourcePath == "" || src.Filename == "" {
					continue
				}
				key := src.SourcePath + "_" + src.Filename
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				reports = append(reports, model.ReportSource{
					Query:    e.Query,
					Section:  src.Section,
					Source:   src.SourcePath,
					Filename: src.Filename,
				})
			}
		}
	}
	return reports, nil
}
