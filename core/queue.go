package core

import "time"

// Reason 标记队列条目入选的原因，封闭枚举。
type Reason string

const (
	ReasonCategoryMatch   Reason = "category_match"   // 命中用户选择的类目
	ReasonTrending        Reason = "trending"         // 热度与评分双高
	ReasonExploration     Reason = "exploration"      // 探索位
	ReasonPreferenceMatch Reason = "preference_match" // 偏好分兜底
)

// QueueEntry 是推荐队列中的一个条目。
type QueueEntry struct {
	MovieID  string  `json:"movie_id"`
	Score    float64 `json:"score"`
	Reason   Reason  `json:"reason"`
	Position int     `json:"position"` // 稠密排名 0..N-1
}

// Queue 是某用户某一时刻的完整推荐队列。
// 每次刷新整体替换，消费方永远看不到新旧条目交错的中间态。
type Queue struct {
	UserID      string       `json:"user_id"`
	Entries     []QueueEntry `json:"entries"`
	GeneratedAt time.Time    `json:"generated_at"`
	NextRefresh time.Time    `json:"next_refresh"`
}
