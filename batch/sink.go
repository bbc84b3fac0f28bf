package batch

import (
	"context"

	"github.com/rushteam/swiperec/core"
)

// Sink 是批量落盘的目标。一次 WriteBatch 对应一次批量写；
// 写入必须按记录 ID 幂等，重试语义是 at-least-once。
type Sink interface {
	WriteBatch(ctx context.Context, recs []*core.Interaction) error
}

// StoreSink 把交互批量写入领域存储。
type StoreSink struct {
	Store core.InteractionStore
}

func (s *StoreSink) WriteBatch(ctx context.Context, recs []*core.Interaction) error {
	return s.Store.AppendInteractions(ctx, recs)
}

// MultiSink 依次写入多个目标，第一个失败即返回（整批会被重新排队）。
// 典型用法：StoreSink + KafkaSink，落库之外同步一份事件流。
type MultiSink []Sink

func (m MultiSink) WriteBatch(ctx context.Context, recs []*core.Interaction) error {
	for _, s := range m {
		if err := s.WriteBatch(ctx, recs); err != nil {
			return err
		}
	}
	return nil
}
