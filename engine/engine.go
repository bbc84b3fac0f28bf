package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rushteam/swiperec/batch"
	"github.com/rushteam/swiperec/config"
	"github.com/rushteam/swiperec/core"
	"github.com/rushteam/swiperec/feature"
	"github.com/rushteam/swiperec/learn"
	"github.com/rushteam/swiperec/queue"
	"github.com/rushteam/swiperec/score"
)

// Engine 是推荐引擎的门面，串起完整链路：
//
//	交互事件 → 特征向量（缓存/按需计算）→ 偏好 EMA 更新 → 审计落盘（批量）
//	→ 每 N 次交互触发队列刷新 → 打分 + 探索 → 整体替换队列
//
// 所有缓存、定时器、锁都归 Engine 实例所有：显式构造、显式 Close，
// 测试可以并行构造互不相干的实例。
type Engine struct {
	store core.Store
	cfg   config.Config
	log   zerolog.Logger

	extractor *feature.Extractor
	vectors   *feature.Cache[string, core.Vector]
	pool      *feature.Cache[string, []*core.Movie]
	sf        singleflight.Group

	scorer  *score.Scorer
	learner *learn.Engine
	locks   *learn.KeyedMutex
	builder *queue.Builder
	batch   *batch.Processor
}

// 队列文档的建议有效期（写进 NextRefresh，交互触发的刷新随时可以提前）。
const queueMaxAge = 24 * time.Hour

// Option 是 Engine 的配置选项。
type Option func(*options)

type options struct {
	log  zerolog.Logger
	rng  *rand.Rand
	sink batch.Sink
}

// WithLogger 注入结构化日志器；默认静默。
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithRand 注入随机源。测试注入固定种子即可复现打分与探索抽样。
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithSink 覆盖交互批量写的目标。
// 默认只落库；要同时发事件流可传 batch.MultiSink{&batch.StoreSink{...}, kafkaSink}。
func WithSink(s batch.Sink) Option {
	return func(o *options) { o.sink = s }
}

// New 创建引擎。trending 规则在此编译，非法表达式直接报错。
func New(store core.Store, cfg config.Config, opts ...Option) (*Engine, error) {
	cfg = cfg.Normalized()
	o := &options{
		log: zerolog.Nop(),
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sink == nil {
		o.sink = &batch.StoreSink{Store: store}
	}

	trending, err := queue.NewTrendingRule(cfg.TrendingRule)
	if err != nil {
		return nil, fmt.Errorf("trending rule: %w", err)
	}

	e := &Engine{
		store:     store,
		cfg:       cfg,
		log:       o.log,
		extractor: feature.NewExtractor(),
		vectors:   feature.NewCache[string, core.Vector](cfg.VectorCacheSize, cfg.VectorCacheTTL.Std()),
		pool:      feature.NewCache[string, []*core.Movie](4, cfg.PoolCacheTTL.Std()),
		scorer:    score.NewScorer(o.rng),
		learner:   learn.NewEngine(),
		locks:     learn.NewKeyedMutex(),
	}
	e.builder = &queue.Builder{
		Movies:           &cachedMovies{engine: e},
		Interactions:     &historyView{engine: e},
		Vectors:          e,
		Scorer:           e.scorer,
		Trending:         trending,
		Size:             cfg.QueueSize,
		PoolSize:         cfg.PoolSize,
		CategoryShare:    cfg.CategoryShare,
		TrendingShare:    cfg.TrendingShare,
		ExplorationShare: cfg.ExplorationShare,
		CategoryBoost:    cfg.CategoryBoost,
		Concurrency:      cfg.Concurrency,
	}
	e.batch = batch.NewProcessor(o.sink,
		batch.WithMaxSize(cfg.BatchSize),
		batch.WithFlushInterval(cfg.FlushInterval.Std()),
		batch.WithLogger(o.log),
	)
	return e, nil
}

// RecordInteraction 处理一次交互事件，返回写入的交互记录。
//
// 错误语义：
//   - 未知手势：INVALID_GESTURE，什么都不落盘
//   - 电影不存在：NOT_FOUND
//   - 偏好写入失败：UNAVAILABLE，交互视为未处理，调用方负责重投
//
// 交互审计走批量通道异步落盘（at-least-once）；
// 每累积 RefreshEvery 次交互触发一次后台队列刷新。
func (e *Engine) RecordInteraction(ctx context.Context, userID, movieID string, g core.Gesture) (*core.Interaction, error) {
	if _, ok := e.learner.Weight(g); !ok {
		return nil, core.NewDomainError(core.ModuleLearn, core.ErrorCodeInvalidGesture,
			"engine: gesture not recorded: "+string(g))
	}

	movie, err := e.store.Movie(ctx, movieID)
	if err != nil {
		return nil, err
	}
	vec, err := e.VectorOf(ctx, movie)
	if err != nil {
		return nil, err
	}

	// 同一用户的读-改-写必须串行：EMA 更新在交错执行下会丢信号
	e.locks.Lock(userID)
	defer e.locks.Unlock(userID)

	state, err := e.store.Preferences(ctx, userID)
	if core.IsNotFound(err) {
		state = e.newState()
	} else if err != nil {
		return nil, e.unavailable("load preferences", err)
	}

	snap, err := e.learner.Apply(state, vec, g)
	if err != nil {
		return nil, err
	}
	if err := e.store.UpsertPreferences(ctx, userID, state); err != nil {
		return nil, e.unavailable("persist preferences", err)
	}

	rec := &core.Interaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		MovieID:   movieID,
		Gesture:   g,
		Snapshot:  &snap,
		Timestamp: time.Now(),
	}
	if err := e.batch.Add(rec); err != nil {
		return nil, err
	}
	if err := e.store.IncrementStats(ctx, userID, g); err != nil {
		e.log.Warn().Err(err).Str("user", userID).Msg("engine: increment stats failed")
	}

	if e.cfg.RefreshEvery > 0 && state.Meta.TotalUpdates%int64(e.cfg.RefreshEvery) == 0 {
		// 刷新用启动时刻的偏好快照，和下一次交互并行也没关系：
		// 更晚的写入由下个刷新周期接住（最终一致）
		prefs := state.Vector.Clone()
		go func() {
			if err := e.refresh(context.Background(), userID, prefs); err != nil {
				e.log.Error().Err(err).Str("user", userID).Msg("engine: queue refresh failed")
			}
		}()
	}
	return rec, nil
}

// GenerateInitialQueue 为新用户生成首个队列，并持久化类目种子偏好。
func (e *Engine) GenerateInitialQueue(ctx context.Context, userID string, categories []string) (*core.Queue, error) {
	seed := e.builder.SeedPreferences(categories)
	seed.Meta.LearningRate = e.cfg.LearningRate
	seed.Meta.DecayFactor = e.cfg.DecayFactor

	// 只给还没有偏好记录的用户做种子，避免覆盖已学到的偏好
	if _, err := e.store.Preferences(ctx, userID); core.IsNotFound(err) {
		if err := e.store.UpsertPreferences(ctx, userID, seed); err != nil {
			return nil, e.unavailable("persist seed preferences", err)
		}
	} else if err != nil {
		return nil, e.unavailable("load preferences", err)
	}

	q, err := e.builder.Initial(ctx, userID, categories, seed)
	if err != nil {
		return nil, err
	}
	return e.publish(ctx, userID, q)
}

// RefreshQueue 立即用实时偏好重建用户队列。
func (e *Engine) RefreshQueue(ctx context.Context, userID string) (*core.Queue, error) {
	state, err := e.store.Preferences(ctx, userID)
	if core.IsNotFound(err) {
		state = e.newState()
	} else if err != nil {
		return nil, e.unavailable("load preferences", err)
	}

	q, err := e.refreshQueue(ctx, userID, state.Vector)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// ScoringDetails 返回用户当前的打分要素（调试/透出接口）。
type ScoringDetails struct {
	Preferences     core.Vector       `json:"preferences"`
	Meta            core.LearningMeta `json:"meta"`
	EffectiveRate   float64           `json:"effective_rate"`
	ExplorationRate float64           `json:"exploration_rate"`
	Stats           *core.UserStats   `json:"stats"`
}

// Details 汇总用户的偏好向量、学习元数据、有效学习率与动态探索率。
func (e *Engine) Details(ctx context.Context, userID string) (*ScoringDetails, error) {
	state, err := e.store.Preferences(ctx, userID)
	if core.IsNotFound(err) {
		state = e.newState()
	} else if err != nil {
		return nil, e.unavailable("load preferences", err)
	}
	stats, err := e.store.Stats(ctx, userID)
	if err != nil {
		return nil, e.unavailable("load stats", err)
	}
	return &ScoringDetails{
		Preferences:     state.Vector,
		Meta:            state.Meta,
		EffectiveRate:   state.Meta.EffectiveRate(),
		ExplorationRate: score.ExplorationRate(stats.TotalSwipes, stats.LikeRatio, e.cfg.BaseExplorationRate),
		Stats:           stats,
	}, nil
}

// VectorOf 返回电影的特征向量：缓存 → 预计算字段 → 按需计算并回写。
// 同一电影的并发按需计算经 singleflight 合并成一次。
func (e *Engine) VectorOf(ctx context.Context, m *core.Movie) (core.Vector, error) {
	if vec, ok := e.vectors.Get(m.ID); ok {
		return vec, nil
	}
	if len(m.Vector) > 0 {
		vec := m.Vector.Normalize()
		e.vectors.Set(m.ID, vec, 0)
		return vec, nil
	}

	v, err, _ := e.sf.Do(m.ID, func() (any, error) {
		vec := e.extractor.Extract(m, time.Now())
		// 回写失败不阻断本次打分，下次会再算一遍
		if err := e.store.UpsertVector(ctx, m.ID, vec); err != nil {
			e.log.Warn().Err(err).Str("movie", m.ID).Msg("engine: persist vector failed")
		}
		e.vectors.Set(m.ID, vec, 0)
		e.log.Debug().Str("movie", m.ID).Msg("engine: computed feature vector on demand")
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(core.Vector), nil
}

// Close 关停批量写（尽力落盘剩余缓冲）并释放缓存。
func (e *Engine) Close() error {
	err := e.batch.Close()
	e.vectors.Close()
	e.pool.Close()
	return err
}

func (e *Engine) refresh(ctx context.Context, userID string, prefs core.Vector) error {
	_, err := e.refreshQueue(ctx, userID, prefs)
	return err
}

// refreshQueue 共享的刷新路径：动态探索率 → 重建 → 整体发布。
// 候选池不可用时整体失败，旧队列保持不动。
func (e *Engine) refreshQueue(ctx context.Context, userID string, prefs core.Vector) (*core.Queue, error) {
	stats, err := e.store.Stats(ctx, userID)
	if err != nil {
		return nil, e.unavailable("load stats", err)
	}
	rate := score.ExplorationRate(stats.TotalSwipes, stats.LikeRatio, e.cfg.BaseExplorationRate)

	q, err := e.builder.Refresh(ctx, userID, prefs, rate)
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("user", userID).Int("entries", len(q.Entries)).
		Float64("exploration_rate", rate).Msg("engine: queue refreshed")
	return e.publish(ctx, userID, q)
}

func (e *Engine) publish(ctx context.Context, userID string, q *core.Queue) (*core.Queue, error) {
	q.NextRefresh = q.GeneratedAt.Add(queueMaxAge)
	if err := e.store.PutQueue(ctx, userID, q); err != nil {
		return nil, e.unavailable("publish queue", err)
	}
	return q, nil
}

func (e *Engine) newState() *core.PreferenceState {
	state := core.NewPreferenceState()
	state.Meta.LearningRate = e.cfg.LearningRate
	state.Meta.DecayFactor = e.cfg.DecayFactor
	return state
}

func (e *Engine) unavailable(op string, err error) error {
	return core.NewDomainError(core.ModuleStore, core.ErrorCodeUnavailable,
		fmt.Sprintf("engine: %s: %v (retryable)", op, err))
}

// historyView 合并已落盘的交互历史与批量通道里尚未落盘的记录。
// 刷新的"已交互"排除不因落盘延迟漏掉刚滑过的电影。
type historyView struct {
	engine *Engine
}

func (h *historyView) InteractedMovieIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := h.engine.store.InteractedMovieIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range h.engine.batch.PendingMovieIDs(userID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// cachedMovies 给候选池查询加一层短 TTL 缓存，刷新高峰不反复打存储。
type cachedMovies struct {
	engine *Engine
}

func (c *cachedMovies) Movie(ctx context.Context, id string) (*core.Movie, error) {
	return c.engine.store.Movie(ctx, id)
}

func (c *cachedMovies) UpsertVector(ctx context.Context, id string, vec core.Vector) error {
	return c.engine.store.UpsertVector(ctx, id, vec)
}

func (c *cachedMovies) TopByPopularity(ctx context.Context, n int) ([]*core.Movie, error) {
	key := fmt.Sprintf("top:%d", n)
	if pool, ok := c.engine.pool.Get(key); ok {
		return pool, nil
	}
	pool, err := c.engine.store.TopByPopularity(ctx, n)
	if err != nil {
		return nil, err
	}
	c.engine.pool.Set(key, pool, 0)
	return pool, nil
}
