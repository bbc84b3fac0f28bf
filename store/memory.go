package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rushteam/swiperec/core"
)

// MemoryStore 是内存实现的 Store，用于测试/开发/原型。
// 进程重启后数据丢失。
type MemoryStore struct {
	mu           sync.RWMutex
	movies       map[string]*core.Movie
	prefs        map[string]*core.PreferenceState
	interactions map[string]*core.Interaction
	byUser       map[string][]string // userID -> interaction IDs（追加序）
	stats        map[string]map[core.Gesture]int64
	queues       map[string]*core.Queue
}

var _ core.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		movies:       make(map[string]*core.Movie),
		prefs:        make(map[string]*core.PreferenceState),
		interactions: make(map[string]*core.Interaction),
		byUser:       make(map[string][]string),
		stats:        make(map[string]map[core.Gesture]int64),
		queues:       make(map[string]*core.Queue),
	}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Close() error { return nil }

// PutMovie 写入目录记录（目录接入层/测试种子数据用，不属于引擎契约）。
func (m *MemoryStore) PutMovie(ctx context.Context, movie *core.Movie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *movie
	m.movies[movie.ID] = &cp
	return nil
}

func (m *MemoryStore) Movie(ctx context.Context, id string) (*core.Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	movie, ok := m.movies[id]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	cp := *movie
	return &cp, nil
}

func (m *MemoryStore) UpsertVector(ctx context.Context, id string, vec core.Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	movie, ok := m.movies[id]
	if !ok {
		return core.ErrStoreNotFound
	}
	movie.Vector = vec.Clone()
	movie.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) TopByPopularity(ctx context.Context, n int) ([]*core.Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*core.Movie, 0, len(m.movies))
	for _, movie := range m.movies {
		cp := *movie
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Popularity > out[j].Popularity
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *MemoryStore) Preferences(ctx context.Context, userID string) (*core.PreferenceState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.prefs[userID]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	return state.Clone(), nil
}

func (m *MemoryStore) UpsertPreferences(ctx context.Context, userID string, state *core.PreferenceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := state.Clone()
	cp.Vector = cp.Vector.Normalize()
	cp.UpdatedAt = time.Now()
	m.prefs[userID] = cp
	return nil
}

func (m *MemoryStore) AppendInteraction(ctx context.Context, rec *core.Interaction) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(rec), nil
}

func (m *MemoryStore) AppendInteractions(ctx context.Context, recs []*core.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		m.appendLocked(rec)
	}
	return nil
}

// appendLocked 按 ID 幂等：重复提交的记录覆盖原值，不追加索引。
func (m *MemoryStore) appendLocked(rec *core.Interaction) string {
	cp := *rec
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if _, exists := m.interactions[cp.ID]; !exists {
		m.byUser[cp.UserID] = append(m.byUser[cp.UserID], cp.ID)
	}
	m.interactions[cp.ID] = &cp
	return cp.ID
}

func (m *MemoryStore) AttachSnapshot(ctx context.Context, id string, snap core.ScoringSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.interactions[id]
	if !ok {
		return core.ErrStoreNotFound
	}
	rec.Snapshot = &snap
	return nil
}

func (m *MemoryStore) InteractedMovieIDs(ctx context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, id := range m.byUser[userID] {
		rec := m.interactions[id]
		if rec == nil || seen[rec.MovieID] {
			continue
		}
		seen[rec.MovieID] = true
		out = append(out, rec.MovieID)
	}
	return out, nil
}

func (m *MemoryStore) Stats(ctx context.Context, userID string) (*core.UserStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return statsFromCounts(m.stats[userID]), nil
}

func (m *MemoryStore) IncrementStats(ctx context.Context, userID string, g core.Gesture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stats[userID] == nil {
		m.stats[userID] = make(map[core.Gesture]int64)
	}
	m.stats[userID][g]++
	return nil
}

func (m *MemoryStore) PutQueue(ctx context.Context, userID string, q *core.Queue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *q
	cp.Entries = append([]core.QueueEntry(nil), q.Entries...)
	m.queues[userID] = &cp
	return nil
}

func (m *MemoryStore) Queue(ctx context.Context, userID string) (*core.Queue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[userID]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	cp := *q
	cp.Entries = append([]core.QueueEntry(nil), q.Entries...)
	return &cp, nil
}

// statsFromCounts 汇总手势计数。无任何交互时 LikeRatio 取中性 0.5。
func statsFromCounts(counts map[core.Gesture]int64) *core.UserStats {
	stats := &core.UserStats{
		LikeRatio: 0.5,
		ByGesture: make(map[core.Gesture]int64, len(counts)),
	}
	var positive int64
	for g, n := range counts {
		stats.ByGesture[g] = n
		stats.TotalSwipes += n
		if g.IsPositive() {
			positive += n
		}
	}
	if stats.TotalSwipes > 0 {
		stats.LikeRatio = float64(positive) / float64(stats.TotalSwipes)
	}
	return stats
}
