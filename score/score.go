package score

import (
	"math/rand"
	"sync"

	"github.com/rushteam/swiperec/core"
)

// Result 是一次评分的拆解结果。
type Result struct {
	Base             float64 // 偏好·物品点积 / 维度数
	ExplorationBonus float64 // 探索加成，非探索候选恒为 0
	Final            float64 // Base + ExplorationBonus
}

// Scorer 把偏好向量和物品特征向量合成排序分。
//
// 除探索加成的随机抽样外是纯函数。随机源显式注入：
// 测试注入固定种子即可让整条评分链路确定；生产注入真实随机源。
type Scorer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewScorer 创建评分器。rng 为 nil 时 panic 由调用方负责避免，
// 引擎侧会兜底注入默认随机源。
func NewScorer(rng *rand.Rand) *Scorer {
	return &Scorer{rng: rng}
}

// Score 计算候选分。
//
// 基础分 = 两个 9 维向量的点积 / 9，维度数归一让分值量纲与维度无关。
// 仅当候选被标记为探索候选时叠加 [0, explorationRate) 的均匀随机加成。
func (s *Scorer) Score(prefs, item core.Vector, explorationRate float64, isExploration bool) Result {
	base := prefs.Dot(item) / float64(len(core.Dimensions))

	var bonus float64
	if isExploration && explorationRate > 0 {
		bonus = s.Float64() * explorationRate
	}

	return Result{
		Base:             base,
		ExplorationBonus: bonus,
		Final:            base + bonus,
	}
}

// Float64 从注入的随机源取一个 [0,1) 均匀随机数。
// rand.Rand 非并发安全，这里用锁保护，队列构建的并发打分会同时取数。
func (s *Scorer) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
