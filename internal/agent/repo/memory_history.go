package repo

import (
	"context"
	"sync"
	"time"

	"github.com/teamfit/server/internal/agent/model"
	logx "github.com/teamfit/server/pkg/logger"
)

type memoryThread struct {
	entries []model.HistoryEntry
	touched time.Time
}

// MemoryHistoryRepository is the process-local history store.
// Each thread keeps at most maxTurns entries (oldest dropped) and a thread
// idle for longer than ttl is treated as absent. Zero disables either limit.
type MemoryHistoryRepository struct {
	mu       sync.RWMutex
	threads  map[string]*memoryThread
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryHistoryRepository(maxTurns int, ttl time.Duration) *MemoryHistoryRepository {
	return &MemoryHistoryRepository{
		threads:  make(map[string]*memoryThread),
		maxTurns: maxTurns,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (r *MemoryHistoryRepository) expired(t *memoryThread, now time.Time) bool {
	return r.ttl > 0 && now.Sub(t.touched) > r.ttl
}

func (r *MemoryHistoryRepository) Append(ctx context.Context, entry model.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.threads[entry.ThreadID]
	if !ok || r.expired(t, now) {
		t = &memoryThread{}
		r.threads[entry.ThreadID] = t
	}
	t.entries = append(t.entries, entry.Clone())
	if r.maxTurns > 0 && len(t.entries) > r.maxTurns {
		dropped := len(t.entries) - r.maxTurns
		// copy so the dropped prefix is released
		t.entries = append([]model.HistoryEntry(nil), t.entries[dropped:]...)
		logx.Debug().Str("thread_id", entry.ThreadID).Int("dropped", dropped).Msg("history retention cap reached")
	}
	t.touched = now
	return nil
}

func (r *MemoryHistoryRepository) Entries(ctx context.Context, threadID string) ([]model.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.threads[threadID]
	if !ok || r.expired(t, r.now()) {
		return []model.HistoryEntry{}, nil
	}
	out := make([]model.HistoryEntry, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Clone()
	}
	return out, nil
}

func (r *MemoryHistoryRepository) Clear(ctx context.Context, threadID string) error {
	r.mu.Lock()
	delete(r.threads, threadID)
	r.mu.Unlock()
	return nil
}

func (r *MemoryHistoryRepository) Count(ctx context.Context, threadID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.threads[threadID]
	if !ok || r.expired(t, r.now()) {
		return 0, nil
	}
	return len(t.entries), nil
}

// EvictExpired drops every idle thread and returns how many were removed.
func (r *MemoryHistoryRepository) EvictExpired() int {
	if r.ttl <= 0 {
		return 0
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, t := range r.threads {
		if r.expired(t, now) {
			delete(r.threads, id)
			n++
		}
	}
	return n
}

// RunJanitor evicts idle threads every interval until ctx is done.
func (r *MemoryHistoryRepository) RunJanitor(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictExpired(); n > 0 {
				logx.Debug().Int("threads", n).Msg("evicted idle history threads")
			}
		}
	}
}

var _ model.HistoryRepository = (*MemoryHistoryRepository)(nil)
