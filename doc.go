// Package swiperec 是一个滑动反馈驱动的电影推荐引擎（Swipe Recommender）。
//
// 设计要点：
// - 固定 9 维向量空间：物品特征与用户偏好共享坐标系（6 题材 + 热度/新鲜度/评分）
// - 手势加权 EMA 在线学习：loved/liked/disliked 带权推动偏好，学习率随交互量衰减
// - 分层队列生成：类目/热门/探索按配额填充，交互累积触发整体刷新
package swiperec

import (
	"github.com/rushteam/swiperec/core"
	"github.com/rushteam/swiperec/engine"
)

// 轻量 facade：便于用户直接 import "swiperec" 使用核心抽象。
type Engine = engine.Engine
type Movie = core.Movie
type Vector = core.Vector
type Gesture = core.Gesture
type Interaction = core.Interaction
type Queue = core.Queue

const (
	GestureLoved    = core.GestureLoved
	GestureLiked    = core.GestureLiked
	GestureSeen     = core.GestureSeen
	GestureNotSeen  = core.GestureNotSeen
	GestureDisliked = core.GestureDisliked
)
