package core

// 固定的 9 维特征空间：6 个题材强度维度 + 3 个内容维度。
// 物品特征向量与用户偏好向量共享同一坐标系，评分才有意义。
const (
	DimGenreAction  = "genre_action"
	DimGenreComedy  = "genre_comedy"
	DimGenreDrama   = "genre_drama"
	DimGenreHorror  = "genre_horror"
	DimGenreRomance = "genre_romance"
	DimGenreSciFi   = "genre_scifi"
	DimPopularity   = "popularity_normalized"
	DimRecency      = "recency_score"
	DimRating       = "rating_normalized"
)

// Dimensions 是全部维度的固定顺序列表。
// 所有向量读写都以此为准：缺失维度按 0 处理，写入后不允许部分缺失。
var Dimensions = []string{
	DimGenreAction,
	DimGenreComedy,
	DimGenreDrama,
	DimGenreHorror,
	DimGenreRomance,
	DimGenreSciFi,
	DimPopularity,
	DimRecency,
	DimRating,
}

// GenreDimensions 是 6 个题材维度（Dimensions 的前缀子集）。
var GenreDimensions = []string{
	DimGenreAction,
	DimGenreComedy,
	DimGenreDrama,
	DimGenreHorror,
	DimGenreRomance,
	DimGenreSciFi,
}

// Vector 是 9 维命名向量。
// 物品特征向量各维度 ∈ [0,1]；用户偏好向量各维度 ∈ [-1,1]。
type Vector map[string]float64

// NewVector 创建一个全 0 向量，保证 9 个维度全部存在。
func NewVector() Vector {
	v := make(Vector, len(Dimensions))
	for _, d := range Dimensions {
		v[d] = 0
	}
	return v
}

// Normalize 补齐缺失维度（按 0），丢弃未定义维度，返回新向量。
// 存储层读出的历史数据可能缺维度，所有读路径都应过一遍 Normalize。
func (v Vector) Normalize() Vector {
	out := make(Vector, len(Dimensions))
	for _, d := range Dimensions {
		out[d] = v[d]
	}
	return out
}

// Clone 返回向量的深拷贝。
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for d, x := range v {
		out[d] = x
	}
	return out
}

// Dot 计算两个向量的点积。缺失维度按 0 处理。
func (v Vector) Dot(other Vector) float64 {
	var sum float64
	for _, d := range Dimensions {
		sum += v[d] * other[d]
	}
	return sum
}

// Clamp 将某个值限制在 [lo, hi] 区间。
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
