package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/rushteam/swiperec/core"
	"github.com/rushteam/swiperec/score"
)

type fakeMovies struct {
	pool    []*core.Movie
	poolErr error
}

func (f *fakeMovies) Movie(_ context.Context, id string) (*core.Movie, error) {
	for _, m := range f.pool {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, core.ErrStoreNotFound
}

func (f *fakeMovies) UpsertVector(context.Context, string, core.Vector) error { return nil }

func (f *fakeMovies) TopByPopularity(_ context.Context, n int) ([]*core.Movie, error) {
	if f.poolErr != nil {
		return nil, f.poolErr
	}
	if n > len(f.pool) {
		n = len(f.pool)
	}
	return f.pool[:n], nil
}

type fakeHistory struct {
	seen []string
	err  error
}

func (f *fakeHistory) InteractedMovieIDs(context.Context, string) ([]string, error) {
	return f.seen, f.err
}

// fieldVectors 直接返回电影上预置的向量。
type fieldVectors struct {
	err error
}

func (f *fieldVectors) VectorOf(_ context.Context, m *core.Movie) (core.Vector, error) {
	if f.err != nil {
		return nil, f.err
	}
	return m.Vector.Normalize(), nil
}

func vec(dims map[string]float64) core.Vector {
	v := core.NewVector()
	for d, x := range dims {
		v[d] = x
	}
	return v
}

// testPool 构造一个三类候选池：
//   - 8 部动作片（非 trending）
//   - 4 部高热度高分剧情片（trending）
//   - 6 部中性喜剧
func testPool() []*core.Movie {
	var pool []*core.Movie
	for i := 0; i < 8; i++ {
		pool = append(pool, &core.Movie{
			ID:          fmt.Sprintf("action-%d", i),
			GenreIDs:    []int{28},
			Popularity:  400,
			VoteAverage: 6.5,
			Vector:      vec(map[string]float64{core.DimGenreAction: 1, core.DimPopularity: 0.4}),
		})
	}
	for i := 0; i < 4; i++ {
		pool = append(pool, &core.Movie{
			ID:          fmt.Sprintf("trend-%d", i),
			GenreIDs:    []int{18},
			Popularity:  900,
			VoteAverage: 8.2,
			Vector:      vec(map[string]float64{core.DimGenreDrama: 1, core.DimPopularity: 0.9, core.DimRating: 0.82}),
		})
	}
	for i := 0; i < 6; i++ {
		pool = append(pool, &core.Movie{
			ID:          fmt.Sprintf("comedy-%d", i),
			GenreIDs:    []int{35},
			Popularity:  100,
			VoteAverage: 5,
			Vector:      vec(map[string]float64{core.DimGenreComedy: 1, core.DimPopularity: 0.1}),
		})
	}
	return pool
}

func newTestBuilder(t *testing.T, movies *fakeMovies, history *fakeHistory, size int) *Builder {
	t.Helper()
	rule, err := NewTrendingRule("")
	if err != nil {
		t.Fatalf("compile default rule: %v", err)
	}
	return &Builder{
		Movies:       movies,
		Interactions: history,
		Vectors:      &fieldVectors{},
		Scorer:       score.NewScorer(rand.New(rand.NewSource(42))),
		Trending:     rule,
		Size:         size,
	}
}

func TestSeedPreferences(t *testing.T) {
	b := &Builder{}
	state := b.SeedPreferences([]string{"action", "scifi", "nonsense"})

	if got := state.Vector[core.DimGenreAction]; got != DefaultCategoryBoost {
		t.Errorf("action dim = %v, want %v", got, DefaultCategoryBoost)
	}
	if got := state.Vector[core.DimGenreSciFi]; got != DefaultCategoryBoost {
		t.Errorf("scifi dim = %v, want %v", got, DefaultCategoryBoost)
	}
	for _, d := range []string{core.DimGenreComedy, core.DimGenreDrama, core.DimGenreHorror, core.DimGenreRomance} {
		if state.Vector[d] != 0 {
			t.Errorf("dim %s = %v, want 0", d, state.Vector[d])
		}
	}
}

func TestInitial_QuotaFill(t *testing.T) {
	b := newTestBuilder(t, &fakeMovies{pool: testPool()}, nil, 10)
	prefs := b.SeedPreferences([]string{"action"})

	q, err := b.Initial(context.Background(), "u1", []string{"action"}, prefs)
	if err != nil {
		t.Fatalf("Initial: %v", err)
	}
	if len(q.Entries) != 10 {
		t.Fatalf("queue size = %d, want 10", len(q.Entries))
	}

	counts := map[core.Reason]int{}
	taken := map[string]bool{}
	for i, e := range q.Entries {
		counts[e.Reason]++
		if e.Position != i {
			t.Errorf("entry %d has position %d", i, e.Position)
		}
		if taken[e.MovieID] {
			t.Errorf("movie %s appears twice", e.MovieID)
		}
		taken[e.MovieID] = true
	}

	// size=10：类目配额 6、trending 2、探索 1，剩 1 个空位兜底补齐
	want := map[core.Reason]int{
		core.ReasonCategoryMatch:   6,
		core.ReasonTrending:        2,
		core.ReasonExploration:     1,
		core.ReasonPreferenceMatch: 1,
	}
	for reason, n := range want {
		if counts[reason] != n {
			t.Errorf("reason %s count = %d, want %d", reason, counts[reason], n)
		}
	}
}

func TestInitial_CategoryOutranksTrending(t *testing.T) {
	// 同一部电影既命中类目又命中 trending 时按类目计
	pool := []*core.Movie{{
		ID:          "both",
		GenreIDs:    []int{28},
		Popularity:  900,
		VoteAverage: 8,
		Vector:      vec(map[string]float64{core.DimGenreAction: 1}),
	}}
	b := newTestBuilder(t, &fakeMovies{pool: pool}, nil, 10)
	prefs := b.SeedPreferences([]string{"action"})

	q, err := b.Initial(context.Background(), "u1", []string{"action"}, prefs)
	if err != nil {
		t.Fatalf("Initial: %v", err)
	}
	if len(q.Entries) != 1 {
		t.Fatalf("queue size = %d, want 1", len(q.Entries))
	}
	if q.Entries[0].Reason != core.ReasonCategoryMatch {
		t.Errorf("reason = %s, want %s", q.Entries[0].Reason, core.ReasonCategoryMatch)
	}
}

func TestInitial_PoolErrorAborts(t *testing.T) {
	wantErr := errors.New("catalog down")
	b := newTestBuilder(t, &fakeMovies{poolErr: wantErr}, nil, 10)

	q, err := b.Initial(context.Background(), "u1", nil, core.NewPreferenceState())
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if q != nil {
		t.Errorf("partial queue published on pool failure")
	}
}

func TestInitial_VectorErrorAborts(t *testing.T) {
	wantErr := errors.New("extract failed")
	b := newTestBuilder(t, &fakeMovies{pool: testPool()}, nil, 10)
	b.Vectors = &fieldVectors{err: wantErr}

	if _, err := b.Initial(context.Background(), "u1", nil, core.NewPreferenceState()); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestRefresh_ExcludesInteracted(t *testing.T) {
	history := &fakeHistory{seen: []string{"action-0", "trend-1", "comedy-3"}}
	b := newTestBuilder(t, &fakeMovies{pool: testPool()}, history, 50)

	q, err := b.Refresh(context.Background(), "u1", core.NewVector(), 0)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(q.Entries) != 15 {
		t.Fatalf("queue size = %d, want 15 (18 candidates - 3 seen)", len(q.Entries))
	}
	for _, e := range q.Entries {
		for _, seen := range history.seen {
			if e.MovieID == seen {
				t.Errorf("interacted movie %s reappeared", seen)
			}
		}
	}
}

func TestRefresh_SortedByFinalScore(t *testing.T) {
	b := newTestBuilder(t, &fakeMovies{pool: testPool()}, &fakeHistory{}, 50)
	prefs := vec(map[string]float64{core.DimGenreAction: 0.9, core.DimGenreComedy: -0.4})

	q, err := b.Refresh(context.Background(), "u1", prefs, 0)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	for i := 1; i < len(q.Entries); i++ {
		if q.Entries[i].Score > q.Entries[i-1].Score {
			t.Fatalf("entries not in descending score order at %d: %v > %v",
				i, q.Entries[i].Score, q.Entries[i-1].Score)
		}
	}
	// 动作片偏好下首位必是动作片
	if got := q.Entries[0].MovieID; got[:6] != "action" {
		t.Errorf("top entry = %s, want an action movie", got)
	}
}

func TestRefresh_TruncatesToSize(t *testing.T) {
	b := newTestBuilder(t, &fakeMovies{pool: testPool()}, &fakeHistory{}, 5)

	q, err := b.Refresh(context.Background(), "u1", core.NewVector(), 0)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(q.Entries) != 5 {
		t.Errorf("queue size = %d, want 5", len(q.Entries))
	}
}

func TestRefresh_ExplorationReasonTagging(t *testing.T) {
	b := newTestBuilder(t, &fakeMovies{pool: testPool()}, &fakeHistory{}, 50)

	// 探索率拉满后必然有候选被抽为探索位
	q, err := b.Refresh(context.Background(), "u1", core.NewVector(), 0.99)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	var exploration int
	for _, e := range q.Entries {
		if e.Reason == core.ReasonExploration {
			exploration++
		}
	}
	if exploration == 0 {
		t.Error("no exploration entries at rate 0.99")
	}
}

// zeroSource 全零随机源：Float64() 恒为 0，
// 候选必然被抽为探索位且探索加成恰好为 0。
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 0 }
func (zeroSource) Seed(int64)   {}

func TestRefresh_ZeroBonusExplorationStillTagged(t *testing.T) {
	b := newTestBuilder(t, &fakeMovies{pool: testPool()}, &fakeHistory{}, 50)
	b.Scorer = score.NewScorer(rand.New(zeroSource{}))

	q, err := b.Refresh(context.Background(), "u1", core.NewVector(), 0.5)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	// 探索身份优先于 trending 与 preference_match，加成为 0 也不例外
	for _, e := range q.Entries {
		if e.Reason != core.ReasonExploration {
			t.Errorf("%s reason = %s, want %s", e.MovieID, e.Reason, core.ReasonExploration)
		}
	}
}

func TestRefresh_HistoryErrorAborts(t *testing.T) {
	wantErr := errors.New("history unavailable")
	b := newTestBuilder(t, &fakeMovies{pool: testPool()}, &fakeHistory{err: wantErr}, 50)

	if _, err := b.Refresh(context.Background(), "u1", core.NewVector(), 0); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
