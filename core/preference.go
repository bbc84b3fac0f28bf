package core

import (
	"math"
	"time"
)

// 学习参数默认值。
const (
	DefaultLearningRate = 0.1  // 初始学习率
	DefaultDecayFactor  = 0.95 // 每 100 次交互衰减一次的乘性系数
)

// LearningMeta 是偏好向量的学习元数据，与偏好向量一起原子更新。
type LearningMeta struct {
	LearningRate float64 `json:"learning_rate"` // 基础学习率
	DecayFactor  float64 `json:"decay_factor"`  // 衰减系数（常量）
	TotalUpdates int64   `json:"total_updates"` // 已成功应用的交互数，单调不减
	Confidence   float64 `json:"confidence"`    // 模型置信度 ∈ [0,1]，由 TotalUpdates 推导
}

// EffectiveRate 返回衰减后的有效学习率：
// rate = LearningRate * DecayFactor^floor(TotalUpdates/100)。
// 信号越多，单次交互的边际影响越小。
func (m *LearningMeta) EffectiveRate() float64 {
	return m.LearningRate * math.Pow(m.DecayFactor, math.Floor(float64(m.TotalUpdates)/100))
}

// RecomputeConfidence 重算置信度：min(1, log10(TotalUpdates+1)/2.5)。
// 约 20 次交互到 0.5，约 100 次到 0.8，封顶 1。
func (m *LearningMeta) RecomputeConfidence() {
	m.Confidence = math.Min(1, math.Log10(float64(m.TotalUpdates)+1)/2.5)
}

// PreferenceState 是一个用户的偏好向量及学习元数据。
// 向量各维度 ∈ [-1,1]，只由学习引擎改写，按用户串行更新。
type PreferenceState struct {
	Vector    Vector       `json:"vector"`
	Meta      LearningMeta `json:"meta"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewPreferenceState 创建默认偏好状态（全 0 向量 + 默认学习参数）。
// 用户没有偏好记录不是错误，读路径用它兜底。
func NewPreferenceState() *PreferenceState {
	return &PreferenceState{
		Vector: NewVector(),
		Meta: LearningMeta{
			LearningRate: DefaultLearningRate,
			DecayFactor:  DefaultDecayFactor,
		},
	}
}

// Clone 返回偏好状态的深拷贝，刷新流程用快照而不阻塞写入。
func (s *PreferenceState) Clone() *PreferenceState {
	return &PreferenceState{
		Vector:    s.Vector.Clone(),
		Meta:      s.Meta,
		UpdatedAt: s.UpdatedAt,
	}
}
