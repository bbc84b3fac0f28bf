package learn

import (
	"github.com/rushteam/swiperec/core"
)

// Engine 是偏好学习引擎：给定一次交互，把用户偏好向量朝物品特征向量
// 做一次带手势权重的 EMA 更新。
//
// 每个维度的更新规则：
//
//	updated[d] = clamp(current[d] + effRate * weight * (item[d] - current[d]), -1, 1)
//
// 无论输入幅度和极端手势重复多少次，输出各维度恒在 [-1,1]（饱和而不溢出）。
type Engine struct {
	// Weights 手势权重表；为空时使用 core.GestureWeights
	Weights map[core.Gesture]float64
}

// NewEngine 创建使用固定默认权重表的学习引擎。
func NewEngine() *Engine {
	return &Engine{Weights: core.GestureWeights}
}

// Weight 返回手势权重；手势不在权重表中时 ok 为 false。
func (e *Engine) Weight(g core.Gesture) (float64, bool) {
	weights := e.Weights
	if weights == nil {
		weights = core.GestureWeights
	}
	w, ok := weights[g]
	return w, ok
}

// Apply 原地应用一次交互更新，返回本次更新的评分快照。
//
// 手势不在权重表中是致命输入：状态不变，返回 INVALID_GESTURE。
// 权重为 0 的手势（seen / not_seen）向量不动，但它仍然是一次有效信号：
// TotalUpdates 照常 +1，置信度照常重算。
//
// 注意：Apply 本身不做并发控制。同一用户的读-改-写必须由调用方经
// KeyedMutex 串行化，EMA 更新在并发交错下不可交换，乱序会静默丢信号。
func (e *Engine) Apply(state *core.PreferenceState, item core.Vector, g core.Gesture) (core.ScoringSnapshot, error) {
	weight, ok := e.Weight(g)
	if !ok {
		return core.ScoringSnapshot{}, core.NewDomainError(
			core.ModuleLearn, core.ErrorCodeInvalidGesture,
			"learn: unknown gesture "+string(g),
		)
	}

	effRate := state.Meta.EffectiveRate()
	dims := float64(len(core.Dimensions))
	pre := state.Vector.Dot(item) / dims

	if weight != 0 {
		for _, d := range core.Dimensions {
			cur := state.Vector[d]
			state.Vector[d] = core.Clamp(cur+effRate*weight*(item[d]-cur), -1, 1)
		}
	}

	state.Meta.TotalUpdates++
	state.Meta.RecomputeConfidence()

	return core.ScoringSnapshot{
		PreScore:      pre,
		PostScore:     state.Vector.Dot(item) / dims,
		GestureWeight: weight,
		EffectiveRate: effRate,
	}, nil
}
