package core

import "time"

// Gesture 是一次滑动反馈动作。
type Gesture string

const (
	GestureLoved    Gesture = "loved"
	GestureLiked    Gesture = "liked"
	GestureSeen     Gesture = "seen"
	GestureNotSeen  Gesture = "not_seen"
	GestureDisliked Gesture = "disliked"
)

// GestureWeights 是固定的手势权重表。
// 权重为 0 的手势对偏好向量是 no-op，但 TotalUpdates 照常递增并记录。
var GestureWeights = map[Gesture]float64{
	GestureLoved:    3.0,
	GestureLiked:    1.5,
	GestureSeen:     0.0,
	GestureNotSeen:  0.0,
	GestureDisliked: -2.5,
}

// IsPositive 判断手势是否为正向动作（用于 like ratio 统计）。
func (g Gesture) IsPositive() bool {
	return g == GestureLoved || g == GestureLiked
}

// ScoringSnapshot 记录一次学习更新前后的评分明细，作为审计线索。
type ScoringSnapshot struct {
	PreScore      float64 `json:"pre_score"`      // 更新前的偏好·物品分
	PostScore     float64 `json:"post_score"`     // 更新后的偏好·物品分
	GestureWeight float64 `json:"gesture_weight"` // 本次手势权重
	EffectiveRate float64 `json:"effective_rate"` // 本次有效学习率
}

// Interaction 是一条不可变的交互记录，追加写入，按 ID 幂等。
type Interaction struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	MovieID   string           `json:"movie_id"`
	Gesture   Gesture          `json:"gesture"`
	Snapshot  *ScoringSnapshot `json:"snapshot,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// UserStats 是用户的手势统计。
type UserStats struct {
	TotalSwipes int64             `json:"total_swipes"`
	LikeRatio   float64           `json:"like_ratio"` // 正向动作占比；无数据时为 0.5
	ByGesture   map[Gesture]int64 `json:"by_gesture"`
}
