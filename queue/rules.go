package queue

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/swiperec/core"
)

// DefaultTrendingExpr 是默认的 trending 判定规则：热度与评分双高。
const DefaultTrendingExpr = `popularity > 500.0 && rating >= 7.0`

// TrendingRule 是用 CEL (Common Expression Language) 表达的候选判定规则。
// 阈值不再硬编码在判定逻辑里，而是作为配置里的一条表达式，
// 可以按场景调整（例如小众目录把热度阈值降到 100）。
//
// 规则在构造时编译一次，Eval 线程安全，可被并发打分复用。
type TrendingRule struct {
	prg cel.Program
}

// NewTrendingRule 编译一条规则表达式。expr 为空串时使用 DefaultTrendingExpr。
//
// 可用变量：
//   - popularity: 目录热度分（未归一化）
//   - rating: 0-10 平均评分
//   - recency: 归一化后的新鲜度 ∈ [0,1]
func NewTrendingRule(expr string) (*TrendingRule, error) {
	if expr == "" {
		expr = DefaultTrendingExpr
	}

	env, err := cel.NewEnv(
		cel.Variable("popularity", cel.DoubleType),
		cel.Variable("rating", cel.DoubleType),
		cel.Variable("recency", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile rule %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("rule %q must evaluate to bool, got %v", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build rule program: %w", err)
	}

	return &TrendingRule{prg: prg}, nil
}

// Eval 判定一个候选是否命中规则。求值失败按未命中处理。
func (r *TrendingRule) Eval(m *core.Movie, vec core.Vector) bool {
	out, _, err := r.prg.Eval(map[string]any{
		"popularity": m.Popularity,
		"rating":     m.VoteAverage,
		"recency":    vec[core.DimRecency],
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
