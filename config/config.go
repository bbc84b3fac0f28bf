package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/swiperec/core"
)

// Duration 是可以写成 "30s" / "24h" 这类字符串的时长字段。
// yaml.v3 不认识 time.Duration，这里补上字符串与整数纳秒两种写法。
type Duration time.Duration

// Std 转回标准库时长。
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!int" {
		var n int64
		if err := value.Decode(&n); err != nil {
			return err
		}
		*d = Duration(n)
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config 是引擎的完整配置（支持 YAML）。
// 所有算法常量都可配置，默认值即线上默认行为。
type Config struct {
	// 学习参数
	LearningRate float64 `yaml:"learning_rate"` // 初始学习率
	DecayFactor  float64 `yaml:"decay_factor"`  // 每 100 次交互的衰减系数

	// 探索参数
	BaseExplorationRate float64 `yaml:"base_exploration_rate"`

	// 队列参数
	QueueSize        int     `yaml:"queue_size"`        // 队列长度
	RefreshEvery     int     `yaml:"refresh_every"`     // 每累积多少次交互触发刷新
	PoolSize         int     `yaml:"pool_size"`         // 候选池大小（按热度取前 N）
	CategoryShare    float64 `yaml:"category_share"`    // category_match 配额比例
	TrendingShare    float64 `yaml:"trending_share"`    // trending 配额比例
	ExplorationShare float64 `yaml:"exploration_share"` // exploration 配额比例
	CategoryBoost    float64 `yaml:"category_boost"`    // 引导类目的种子强度
	TrendingRule     string  `yaml:"trending_rule"`     // CEL 表达式，空用默认规则
	Concurrency      int     `yaml:"concurrency"`       // 候选向量解析并发

	// 缓存参数
	VectorCacheSize int      `yaml:"vector_cache_size"`
	VectorCacheTTL  Duration `yaml:"vector_cache_ttl"`
	PoolCacheTTL    Duration `yaml:"pool_cache_ttl"`

	// 批量写参数
	BatchSize     int      `yaml:"batch_size"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// Default 返回默认配置。
func Default() Config {
	return Config{
		LearningRate:        core.DefaultLearningRate,
		DecayFactor:         core.DefaultDecayFactor,
		BaseExplorationRate: 0.15,

		QueueSize:        50,
		RefreshEvery:     5,
		PoolSize:         200,
		CategoryShare:    0.60,
		TrendingShare:    0.25,
		ExplorationShare: 0.15,
		CategoryBoost:    0.5,
		Concurrency:      8,

		VectorCacheSize: 1000,
		VectorCacheTTL:  Duration(24 * time.Hour),
		PoolCacheTTL:    Duration(5 * time.Minute),

		BatchSize:     100,
		FlushInterval: Duration(5 * time.Second),
	}
}

// Normalized 返回零值字段回填默认值后的配置。
// 引擎构造时调用，保证手写的 Config 字面量也有完整默认行为。
func (c Config) Normalized() Config {
	def := Default()
	if c.LearningRate == 0 {
		c.LearningRate = def.LearningRate
	}
	if c.DecayFactor == 0 {
		c.DecayFactor = def.DecayFactor
	}
	if c.BaseExplorationRate == 0 {
		c.BaseExplorationRate = def.BaseExplorationRate
	}
	if c.QueueSize == 0 {
		c.QueueSize = def.QueueSize
	}
	if c.RefreshEvery == 0 {
		c.RefreshEvery = def.RefreshEvery
	}
	if c.PoolSize == 0 {
		c.PoolSize = def.PoolSize
	}
	if c.CategoryShare == 0 {
		c.CategoryShare = def.CategoryShare
	}
	if c.TrendingShare == 0 {
		c.TrendingShare = def.TrendingShare
	}
	if c.ExplorationShare == 0 {
		c.ExplorationShare = def.ExplorationShare
	}
	if c.CategoryBoost == 0 {
		c.CategoryBoost = def.CategoryBoost
	}
	if c.Concurrency == 0 {
		c.Concurrency = def.Concurrency
	}
	if c.VectorCacheSize == 0 {
		c.VectorCacheSize = def.VectorCacheSize
	}
	if c.VectorCacheTTL == 0 {
		c.VectorCacheTTL = def.VectorCacheTTL
	}
	if c.PoolCacheTTL == 0 {
		c.PoolCacheTTL = def.PoolCacheTTL
	}
	if c.BatchSize == 0 {
		c.BatchSize = def.BatchSize
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = def.FlushInterval
	}
	return c
}

// LoadFromYAML 从 YAML 文件加载配置，未出现的字段保持默认值。
func LoadFromYAML(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}
