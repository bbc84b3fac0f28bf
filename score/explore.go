package score

import "math"

// 探索率控制参数。
const (
	// newUserWindow 新手加成覆盖的交互数窗口
	newUserWindow = 50.0
	// newUserBonusMax 新手加成上限
	newUserBonusMax = 0.1
	// likeRatioScale 正向比例偏移的放大系数
	likeRatioScale = 0.2
	// rateCeiling 探索率硬上限
	rateCeiling = 0.3
)

// ExplorationRate 根据用户历史计算动态探索率。
//
//	newUserBonus      = max(0, (50 - total) / 50) * 0.1   // 前 50 次交互内线性衰减
//	likeRatioAdjust   = |likeRatio - 0.5| * 0.2            // 偏离均衡越远，注入越多探索
//	rate              = min(0.3, base + newUserBonus + likeRatioAdjust)
//
// likeRatio 偏移项用来对冲回音室收敛：用户越是一边倒，越需要见到非显然候选。
func ExplorationRate(totalInteractions int64, likeRatio, baseRate float64) float64 {
	newUserBonus := math.Max(0, (newUserWindow-float64(totalInteractions))/newUserWindow) * newUserBonusMax
	likeRatioAdjust := math.Abs(likeRatio-0.5) * likeRatioScale
	return math.Min(rateCeiling, baseRate+newUserBonus+likeRatioAdjust)
}
