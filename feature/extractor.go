package feature

import (
	"math"
	"time"

	"github.com/rushteam/swiperec/core"
)

// 内容维度的归一化常量。
const (
	popularityCeiling = 1000.0 // 热度饱和上限：min(1, popularity/1000)
	recencyWindow     = 10.0   // 新鲜度线性衰减窗口（年）
	ratingScale       = 10.0   // 评分输入量程 0-10
)

// DefaultGenreMapping 是目录题材 ID → 题材维度的固定多对一查找表。
// 未映射的 ID 直接忽略。key 为目录侧的数字题材 ID。
var DefaultGenreMapping = map[int]string{
	28:    core.DimGenreAction, // Action
	12:    core.DimGenreAction, // Adventure
	53:    core.DimGenreAction, // Thriller
	80:    core.DimGenreAction, // Crime
	10752: core.DimGenreAction, // War
	37:    core.DimGenreAction, // Western

	35:    core.DimGenreComedy, // Comedy
	16:    core.DimGenreComedy, // Animation
	10751: core.DimGenreComedy, // Family
	10402: core.DimGenreComedy, // Music

	18: core.DimGenreDrama, // Drama
	36: core.DimGenreDrama, // History
	99: core.DimGenreDrama, // Documentary

	27:   core.DimGenreHorror, // Horror
	9648: core.DimGenreHorror, // Mystery

	10749: core.DimGenreRomance, // Romance

	878: core.DimGenreSciFi, // Science Fiction
	14:  core.DimGenreSciFi, // Fantasy
}

// CategoryDimension 把用户在引导页选择的类目名映射到题材维度。
// 未知类目返回空串。
func CategoryDimension(category string) string {
	switch category {
	case "action":
		return core.DimGenreAction
	case "comedy":
		return core.DimGenreComedy
	case "drama":
		return core.DimGenreDrama
	case "horror":
		return core.DimGenreHorror
	case "romance":
		return core.DimGenreRomance
	case "scifi", "sci-fi", "science_fiction":
		return core.DimGenreSciFi
	}
	return ""
}

// Extractor 把目录电影记录映射为固定 9 维特征向量。
//
// 纯函数：给定相同输入（含时钟读数）输出完全一致，缓存层的正确性依赖这一点。
type Extractor struct {
	// GenreMapping 题材查找表；为空时使用 DefaultGenreMapping
	GenreMapping map[int]string
}

// NewExtractor 创建使用默认题材查找表的抽取器。
func NewExtractor() *Extractor {
	return &Extractor{GenreMapping: DefaultGenreMapping}
}

// Mapping 返回生效的题材查找表。
func (e *Extractor) Mapping() map[int]string {
	if e.GenreMapping != nil {
		return e.GenreMapping
	}
	return DefaultGenreMapping
}

// Extract 计算电影的特征向量。now 是新鲜度计算的时钟读数，由调用方注入。
//
// 题材维度 = 落在该维度的题材 ID 数 / 题材 ID 总数（相对强度，各维度之和 ≤1）。
// 热度、新鲜度、评分维度都归一化到 [0,1]。
func (e *Extractor) Extract(m *core.Movie, now time.Time) core.Vector {
	v := core.NewVector()
	mapping := e.Mapping()

	if total := len(m.GenreIDs); total > 0 {
		counts := make(map[string]int, len(core.GenreDimensions))
		for _, id := range m.GenreIDs {
			if dim, ok := mapping[id]; ok {
				counts[dim]++
			}
		}
		for dim, c := range counts {
			v[dim] = float64(c) / float64(total)
		}
	}

	v[core.DimPopularity] = math.Min(1, m.Popularity/popularityCeiling)
	v[core.DimRecency] = recencyScore(m.ReleaseDate, now)
	v[core.DimRating] = core.Clamp(m.VoteAverage/ratingScale, 0, 1)

	return v
}

// recencyScore 计算新鲜度：clamp(1 - yearsSince/10, 0, 1)。
// 未来日期和不可解析日期是退化输入：未来日期按 0 年处理（得 1），
// 不可解析按最旧处理（得 0）。结果始终显式 clamp 在 [0,1]。
func recencyScore(releaseDate string, now time.Time) float64 {
	if releaseDate == "" {
		return 0
	}
	released, err := time.Parse("2006-01-02", releaseDate)
	if err != nil {
		return 0
	}
	years := now.Sub(released).Hours() / (24 * 365.25)
	if years < 0 {
		years = 0
	}
	return core.Clamp(1-years/recencyWindow, 0, 1)
}
