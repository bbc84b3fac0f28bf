package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/swiperec/core"
)

// RedisStore 是 Redis 实现的 Store，生产环境常用。
//
// 键布局：
//   - movie:{id}          电影 JSON 文档
//   - movies:popularity   ZSET，member=电影 ID，score=热度（候选池索引）
//   - prefs:{uid}         偏好状态 JSON（WATCH 乐观写）
//   - interaction:{id}    交互 JSON（按 ID 幂等）
//   - user:{uid}:log      LIST，交互 ID 追加序
//   - user:{uid}:seen     SET，交互过的电影 ID
//   - user:{uid}:stats    HASH，gesture -> 次数
//   - queue:{uid}         队列 JSON（单 key SET，整体替换天然原子）
type RedisStore struct {
	client *redis.Client
}

var _ core.Store = (*RedisStore)(nil)

// txRetries 偏好乐观写的最大重试次数。
const txRetries = 5

func NewRedisStore(addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) Close() error { return r.client.Close() }

// PutMovie 写入目录记录并维护热度索引（目录接入层调用，不属于引擎契约）。
func (r *RedisStore) PutMovie(ctx context.Context, movie *core.Movie) error {
	data, err := json.Marshal(movie)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, movieKey(movie.ID), data, 0)
	pipe.ZAdd(ctx, popularityKey, redis.Z{Score: movie.Popularity, Member: movie.ID})
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Movie(ctx context.Context, id string) (*core.Movie, error) {
	data, err := r.client.Get(ctx, movieKey(id)).Bytes()
	if err == redis.Nil {
		return nil, core.ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	var movie core.Movie
	if err := json.Unmarshal(data, &movie); err != nil {
		return nil, err
	}
	return &movie, nil
}

// UpsertVector 只覆盖向量字段（merge 语义），WATCH 防止并发覆盖其他字段。
func (r *RedisStore) UpsertVector(ctx context.Context, id string, vec core.Vector) error {
	key := movieKey(id)
	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return core.ErrStoreNotFound
		}
		if err != nil {
			return err
		}
		var movie core.Movie
		if err := json.Unmarshal(data, &movie); err != nil {
			return err
		}
		movie.Vector = vec.Normalize()
		movie.UpdatedAt = time.Now()
		updated, err := json.Marshal(&movie)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < txRetries; i++ {
		err = r.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (r *RedisStore) TopByPopularity(ctx context.Context, n int) ([]*core.Movie, error) {
	ids, err := r.client.ZRevRange(ctx, popularityKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = movieKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*core.Movie, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // 索引里有、文档已删：跳过
		}
		var movie core.Movie
		if json.Unmarshal([]byte(s), &movie) == nil {
			out = append(out, &movie)
		}
	}
	return out, nil
}

func (r *RedisStore) Preferences(ctx context.Context, userID string) (*core.PreferenceState, error) {
	data, err := r.client.Get(ctx, prefsKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, core.ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	var state core.PreferenceState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	state.Vector = state.Vector.Normalize()
	return &state, nil
}

// UpsertPreferences 用 WATCH 做乐观写：引擎侧已有按用户互斥，
// 这里是面向多实例部署的第二道防线（条件写 + 重试）。
func (r *RedisStore) UpsertPreferences(ctx context.Context, userID string, state *core.PreferenceState) error {
	key := prefsKey(userID)
	cp := state.Clone()
	cp.Vector = cp.Vector.Normalize()
	cp.UpdatedAt = time.Now()
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}

	txn := func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}
	for i := 0; i < txRetries; i++ {
		err = r.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (r *RedisStore) AppendInteraction(ctx context.Context, rec *core.Interaction) (string, error) {
	if err := r.AppendInteractions(ctx, []*core.Interaction{rec}); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// AppendInteractions 批量追加。interaction:{id} 的 SET 按 ID 幂等；
// 追加序 LIST 只在首次写入时 RPUSH，重试批不会产生重复索引。
func (r *RedisStore) AppendInteractions(ctx context.Context, recs []*core.Interaction) error {
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		fresh, err := r.client.SetNX(ctx, interactionKey(rec.ID), data, 0).Result()
		if err != nil {
			return err
		}
		if !fresh {
			continue
		}
		pipe := r.client.Pipeline()
		pipe.RPush(ctx, userLogKey(rec.UserID), rec.ID)
		pipe.SAdd(ctx, userSeenKey(rec.UserID), rec.MovieID)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisStore) AttachSnapshot(ctx context.Context, id string, snap core.ScoringSnapshot) error {
	key := interactionKey(id)
	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return core.ErrStoreNotFound
		}
		if err != nil {
			return err
		}
		var rec core.Interaction
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		rec.Snapshot = &snap
		updated, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < txRetries; i++ {
		err = r.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (r *RedisStore) InteractedMovieIDs(ctx context.Context, userID string) ([]string, error) {
	return r.client.SMembers(ctx, userSeenKey(userID)).Result()
}

func (r *RedisStore) Stats(ctx context.Context, userID string) (*core.UserStats, error) {
	vals, err := r.client.HGetAll(ctx, statsKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	counts := make(map[core.Gesture]int64, len(vals))
	for g, v := range vals {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			counts[core.Gesture(g)] = n
		}
	}
	return statsFromCounts(counts), nil
}

func (r *RedisStore) IncrementStats(ctx context.Context, userID string, g core.Gesture) error {
	return r.client.HIncrBy(ctx, statsKey(userID), string(g), 1).Err()
}

func (r *RedisStore) PutQueue(ctx context.Context, userID string, q *core.Queue) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	// 单 key 整体替换：消费方要么读到旧队列、要么读到新队列
	return r.client.Set(ctx, queueKey(userID), data, 0).Err()
}

func (r *RedisStore) Queue(ctx context.Context, userID string) (*core.Queue, error) {
	data, err := r.client.Get(ctx, queueKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, core.ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	var q core.Queue
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

const popularityKey = "movies:popularity"

func movieKey(id string) string        { return "movie:" + id }
func prefsKey(userID string) string    { return "prefs:" + userID }
func interactionKey(id string) string  { return "interaction:" + id }
func userLogKey(userID string) string  { return "user:" + userID + ":log" }
func userSeenKey(userID string) string { return "user:" + userID + ":seen" }
func statsKey(userID string) string    { return "user:" + userID + ":stats" }
func queueKey(userID string) string    { return "queue:" + userID }
