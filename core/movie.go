package core

import "time"

// Movie 是候选物品的原始目录记录。
// 目录接入（第三方电影库分页拉取、字段规整）由外部协作方负责，
// 引擎只消费这里定义的字段。
type Movie struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	GenreIDs    []int     `json:"genre_ids"`        // 目录题材 ID 列表（多对一映射到 6 个题材维度）
	Popularity  float64   `json:"popularity"`       // 目录热度分（未归一化）
	ReleaseDate string    `json:"release_date"`     // "2006-01-02" 格式；可能为空或不可解析
	VoteAverage float64   `json:"vote_average"`     // 0-10 评分
	Vector      Vector    `json:"vector,omitempty"` // 预计算的特征向量，可能缺失
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasGenre 检查电影的题材 ID 是否落在指定题材维度上。
// mapping 是题材 ID → 维度名 的多对一查找表。
func (m *Movie) HasGenre(dim string, mapping map[int]string) bool {
	for _, id := range m.GenreIDs {
		if mapping[id] == dim {
			return true
		}
	}
	return false
}
