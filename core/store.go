package core

import "context"

// 存储的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 遵循依赖倒置原则：领域层定义接口，基础设施层实现接口
//   - 引擎只依赖这里的契约，不关心文档库/Redis 的具体形态

// MovieStore 是电影目录的读写契约。
type MovieStore interface {
	// Movie 读取单部电影；不存在返回 NOT_FOUND
	Movie(ctx context.Context, id string) (*Movie, error)

	// UpsertVector 回写按需计算出的特征向量（merge 语义，只覆盖向量字段）
	UpsertVector(ctx context.Context, id string, vec Vector) error

	// TopByPopularity 按热度降序返回前 n 部电影，作为候选池
	TopByPopularity(ctx context.Context, n int) ([]*Movie, error)
}

// PreferenceStore 是用户偏好状态的读写契约。
type PreferenceStore interface {
	// Preferences 读取用户偏好；不存在返回 NOT_FOUND（调用方用默认状态兜底）
	Preferences(ctx context.Context, userID string) (*PreferenceState, error)

	// UpsertPreferences 整体写回偏好状态（merge 语义，只覆盖提供的字段）
	UpsertPreferences(ctx context.Context, userID string, state *PreferenceState) error
}

// InteractionStore 是交互流水的追加写契约。
type InteractionStore interface {
	// AppendInteraction 追加单条交互，返回其 ID
	AppendInteraction(ctx context.Context, rec *Interaction) (string, error)

	// AppendInteractions 批量追加（批处理器的落盘路径）。
	// 写入按记录 ID 幂等：同一批因重试被再次提交时不产生重复记录。
	AppendInteractions(ctx context.Context, recs []*Interaction) error

	// AttachSnapshot 给已落盘的交互补挂评分快照
	AttachSnapshot(ctx context.Context, id string, snap ScoringSnapshot) error

	// InteractedMovieIDs 返回用户交互过的全部电影 ID（刷新时排除已看）
	InteractedMovieIDs(ctx context.Context, userID string) ([]string, error)
}

// StatsStore 是用户手势统计的契约。
type StatsStore interface {
	// Stats 读取统计；从无交互的用户返回零值统计（LikeRatio 取中性 0.5）
	Stats(ctx context.Context, userID string) (*UserStats, error)

	// IncrementStats 按手势累加计数
	IncrementStats(ctx context.Context, userID string, g Gesture) error
}

// QueueStore 是推荐队列的读写契约。
type QueueStore interface {
	// PutQueue 整体替换用户队列（原子发布）
	PutQueue(ctx context.Context, userID string, q *Queue) error

	// Queue 读取用户当前队列；不存在返回 NOT_FOUND
	Queue(ctx context.Context, userID string) (*Queue, error)
}

// Store 聚合引擎需要的全部存储面。
type Store interface {
	MovieStore
	PreferenceStore
	InteractionStore
	StatsStore
	QueueStore

	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Close 关闭连接/释放资源
	Close() error
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示记录不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: record not found")

	// ErrStoreUnavailable 表示后端暂时不可用，调用方可重试
	ErrStoreUnavailable = NewDomainError(ModuleStore, ErrorCodeUnavailable, "store: backend unavailable")
)
