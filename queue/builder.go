package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/swiperec/core"
	"github.com/rushteam/swiperec/feature"
	"github.com/rushteam/swiperec/score"
)

// VectorProvider 给队列构建提供候选的特征向量。
// 由引擎实现：缓存命中直接返回，缺失时按需计算并回写。
type VectorProvider interface {
	VectorOf(ctx context.Context, m *core.Movie) (core.Vector, error)
}

// HistorySource 提供用户已交互过的电影 ID（刷新时排除）。
// 引擎的实现会把已落盘的历史和批量通道里尚未落盘的记录合并。
type HistorySource interface {
	InteractedMovieIDs(ctx context.Context, userID string) ([]string, error)
}

// Builder 构建用户的有序、带原因标签的推荐队列。
//
// 两个入口共用同一套打分机械：
//   - Initial：新用户引导，按选择的类目做种子偏好，分原因配额填充
//   - Refresh：交互累积触发，排除已看，按实时偏好 + 动态探索率重排
//
// 候选池不可用时整体放弃，绝不发布半截队列，旧队列保持原样。
type Builder struct {
	Movies       core.MovieStore
	Interactions HistorySource
	Vectors      VectorProvider
	Scorer       *score.Scorer
	Trending     *TrendingRule

	// Size 队列长度；PoolSize 候选池大小（按热度取前 N）
	Size     int
	PoolSize int

	// 初始生成的原因配额（占 Size 的比例）与类目种子强度
	CategoryShare    float64
	TrendingShare    float64
	ExplorationShare float64
	CategoryBoost    float64

	// Concurrency 向量解析的最大并发数
	Concurrency int
}

// 配额与种子的默认值。
const (
	DefaultSize             = 50
	DefaultPoolSize         = 200
	DefaultCategoryShare    = 0.60
	DefaultTrendingShare    = 0.25
	DefaultExplorationShare = 0.15
	DefaultCategoryBoost    = 0.5
	DefaultConcurrency      = 8
)

type candidate struct {
	movie         *core.Movie
	vec           core.Vector
	result        score.Result
	reason        core.Reason
	isExploration bool
}

// SeedPreferences 按引导页选择的类目生成种子偏好：
// 每个命中的题材维度置为 CategoryBoost，其余为 0。
func (b *Builder) SeedPreferences(categories []string) *core.PreferenceState {
	state := core.NewPreferenceState()
	boost := b.CategoryBoost
	if boost == 0 {
		boost = DefaultCategoryBoost
	}
	for _, c := range categories {
		if dim := feature.CategoryDimension(c); dim != "" {
			state.Vector[dim] = boost
		}
	}
	return state
}

// Initial 为新用户生成首个队列。
//
// 候选打分关闭探索加成（原因分类要求分数可比），按原因分桶后按
// 配额优先级填充：category_match → trending → exploration，
// 剩余空位用未入选的最高分候选补齐，标为 preference_match。
// 同一电影在一个队列里只出现一次。
func (b *Builder) Initial(ctx context.Context, userID string, categories []string, prefs *core.PreferenceState) (*core.Queue, error) {
	cands, err := b.scoredPool(ctx, prefs.Vector, 0, nil)
	if err != nil {
		return nil, err
	}

	dims := make(map[string]bool, len(categories))
	for _, c := range categories {
		if d := feature.CategoryDimension(c); d != "" {
			dims[d] = true
		}
	}

	mapping := feature.DefaultGenreMapping
	for _, c := range cands {
		c.reason = core.ReasonExploration
		if b.trending(c) {
			c.reason = core.ReasonTrending
		}
		for d := range dims {
			if c.movie.HasGenre(d, mapping) {
				c.reason = core.ReasonCategoryMatch
				break
			}
		}
	}

	size := b.size()
	quotas := map[core.Reason]int{
		core.ReasonCategoryMatch: int(float64(size) * b.share(b.CategoryShare, DefaultCategoryShare)),
		core.ReasonTrending:      int(float64(size) * b.share(b.TrendingShare, DefaultTrendingShare)),
		core.ReasonExploration:   int(float64(size) * b.share(b.ExplorationShare, DefaultExplorationShare)),
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].result.Final > cands[j].result.Final
	})

	taken := make(map[string]bool, size)
	entries := make([]core.QueueEntry, 0, size)

	for _, reason := range []core.Reason{core.ReasonCategoryMatch, core.ReasonTrending, core.ReasonExploration} {
		quota := quotas[reason]
		for _, c := range cands {
			if quota == 0 || len(entries) >= size {
				break
			}
			if c.reason != reason || taken[c.movie.ID] {
				continue
			}
			taken[c.movie.ID] = true
			entries = append(entries, core.QueueEntry{
				MovieID: c.movie.ID,
				Score:   c.result.Final,
				Reason:  reason,
			})
			quota--
		}
	}

	// 补齐剩余空位：全量候选按分数取未入选者，标 preference_match
	for _, c := range cands {
		if len(entries) >= size {
			break
		}
		if taken[c.movie.ID] {
			continue
		}
		taken[c.movie.ID] = true
		entries = append(entries, core.QueueEntry{
			MovieID: c.movie.ID,
			Score:   c.result.Final,
			Reason:  core.ReasonPreferenceMatch,
		})
	}

	return b.finish(userID, entries), nil
}

// Refresh 用实时偏好重建队列。
//
// 排除用户已交互过的全部物品；每个候选先独立抽样是否为探索候选
// （概率 = 探索率）再打分；按最终分降序取前 Size 个。
// 原因标注优先级：探索身份 > trending 规则 > preference_match。
func (b *Builder) Refresh(ctx context.Context, userID string, prefs core.Vector, explorationRate float64) (*core.Queue, error) {
	var exclude map[string]bool
	if b.Interactions != nil {
		seen, err := b.Interactions.InteractedMovieIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
		exclude = make(map[string]bool, len(seen))
		for _, id := range seen {
			exclude[id] = true
		}
	}

	cands, err := b.scoredPool(ctx, prefs, explorationRate, exclude)
	if err != nil {
		return nil, err
	}

	for _, c := range cands {
		switch {
		case c.isExploration:
			c.reason = core.ReasonExploration
		case b.trending(c):
			c.reason = core.ReasonTrending
		default:
			c.reason = core.ReasonPreferenceMatch
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].result.Final > cands[j].result.Final
	})

	size := b.size()
	if len(cands) > size {
		cands = cands[:size]
	}

	entries := make([]core.QueueEntry, 0, len(cands))
	for _, c := range cands {
		entries = append(entries, core.QueueEntry{
			MovieID: c.movie.ID,
			Score:   c.result.Final,
			Reason:  c.reason,
		})
	}

	return b.finish(userID, entries), nil
}

// scoredPool 加载候选池并打分。
// 向量解析并发执行（errgroup 限并发）；探索抽样与打分保持串行，
// 注入固定随机源时整个结果可复现。
func (b *Builder) scoredPool(ctx context.Context, prefs core.Vector, explorationRate float64, exclude map[string]bool) ([]*candidate, error) {
	poolSize := b.PoolSize
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	pool, err := b.Movies.TopByPopularity(ctx, poolSize)
	if err != nil {
		return nil, err
	}

	movies := make([]*core.Movie, 0, len(pool))
	for _, m := range pool {
		if exclude[m.ID] {
			continue
		}
		movies = append(movies, m)
	}

	vecs := make([]core.Vector, len(movies))
	var mu sync.Mutex
	eg, gctx := errgroup.WithContext(ctx)
	limit := b.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	eg.SetLimit(limit)

	for i, m := range movies {
		i, m := i, m
		eg.Go(func() error {
			vec, err := b.Vectors.VectorOf(gctx, m)
			if err != nil {
				return err
			}
			mu.Lock()
			vecs[i] = vec
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	cands := make([]*candidate, 0, len(movies))
	for i, m := range movies {
		isExploration := explorationRate > 0 && b.Scorer.Float64() < explorationRate
		cands = append(cands, &candidate{
			movie:         m,
			vec:           vecs[i],
			result:        b.Scorer.Score(prefs, vecs[i], explorationRate, isExploration),
			isExploration: isExploration,
		})
	}
	return cands, nil
}

func (b *Builder) trending(c *candidate) bool {
	return b.Trending != nil && b.Trending.Eval(c.movie, c.vec)
}

// finish 赋稠密排名并封装队列文档。
func (b *Builder) finish(userID string, entries []core.QueueEntry) *core.Queue {
	for i := range entries {
		entries[i].Position = i
	}
	return &core.Queue{
		UserID:      userID,
		Entries:     entries,
		GeneratedAt: time.Now(),
	}
}

func (b *Builder) size() int {
	if b.Size > 0 {
		return b.Size
	}
	return DefaultSize
}

func (b *Builder) share(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}
