package batch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/swiperec/core"
)

// 批处理默认参数。
const (
	DefaultMaxSize       = 100
	DefaultFlushInterval = 5 * time.Second
	maxBackoff           = time.Minute
)

// Processor 是交互记录的缓冲批量写入器。
//
// 触发条件（先到先触发）：
//   - 队列达到 MaxSize
//   - 距第一条未落盘记录入队已过 FlushInterval
//
// 失败的整批会被重新排到队首，下个触发点重试（有界退避）。
// 至多一次 flush 在途；在途期间新的 Add 进入下一批，不阻塞。
// 显式构造、显式 Close，定时器归实例所有，不做包级状态。
type Processor struct {
	sink     Sink
	maxSize  int
	interval time.Duration
	log      zerolog.Logger

	mu          sync.Mutex
	buf         []*core.Interaction
	inflight    []*core.Interaction // 在途 flush 的批（尚未确认落盘）
	firstQueued time.Time           // 队首记录的入队时间，空队列为零值
	flushing    bool
	failures    int
	retryAfter  time.Time
	closed      bool

	kick   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// Option 是 Processor 的配置选项。
type Option func(*Processor)

// WithMaxSize 设置触发 flush 的队列上限。
func WithMaxSize(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxSize = n
		}
	}
}

// WithFlushInterval 设置定时 flush 间隔。
func WithFlushInterval(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger 注入结构化日志器；默认静默。
func WithLogger(log zerolog.Logger) Option {
	return func(p *Processor) {
		p.log = log
	}
}

// NewProcessor 创建并启动批量写入器。
func NewProcessor(sink Sink, opts ...Option) *Processor {
	p := &Processor{
		sink:     sink,
		maxSize:  DefaultMaxSize,
		interval: DefaultFlushInterval,
		log:      zerolog.Nop(),
		kick:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.buf = make([]*core.Interaction, 0, p.maxSize)

	p.wg.Add(1)
	go p.flushLoop()
	return p
}

// Add 把一条交互记录加入缓冲。已关闭的处理器拒绝新记录。
func (p *Processor) Add(rec *core.Interaction) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return core.NewDomainError(core.ModuleBatch, core.ErrorCodeUnavailable, "batch: processor closed")
	}
	if len(p.buf) == 0 {
		p.firstQueued = time.Now()
	}
	p.buf = append(p.buf, rec)
	full := len(p.buf) >= p.maxSize
	p.mu.Unlock()

	if full {
		select {
		case p.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// Pending 返回当前未落盘的记录数。
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

// PendingMovieIDs 返回指定用户在缓冲里尚未落盘的电影 ID。
// 队列刷新用它补齐"已交互"集合，保证排除不受落盘延迟影响。
func (p *Processor) PendingMovieIDs(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, rec := range p.buf {
		if rec.UserID == userID {
			out = append(out, rec.MovieID)
		}
	}
	for _, rec := range p.inflight {
		if rec.UserID == userID {
			out = append(out, rec.MovieID)
		}
	}
	return out
}

// Close 停止后台循环并尽力把剩余缓冲落盘。
func (p *Processor) Close() error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.stopCh)
	})
	p.wg.Wait()

	// 关停后的最后一搏；失败的记录只能交给上游重投
	p.mu.Lock()
	p.retryAfter = time.Time{}
	p.mu.Unlock()
	p.flush(context.Background())
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.buf); n > 0 {
		p.log.Warn().Int("dropped", n).Msg("batch: unflushed records at close")
	}
	return nil
}

func (p *Processor) flushLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			due := len(p.buf) > 0 && time.Since(p.firstQueued) >= p.interval
			p.mu.Unlock()
			if due {
				p.flush(context.Background())
			}
		case <-p.kick:
			p.flush(context.Background())
		case <-p.stopCh:
			return
		}
	}
}

// flush 执行一次批量写。同一时刻至多一次在途；
// 失败的整批排回队首，并推后下次重试时间（指数退避，封顶 1 分钟）。
func (p *Processor) flush(ctx context.Context) {
	p.mu.Lock()
	if p.flushing || len(p.buf) == 0 || time.Now().Before(p.retryAfter) {
		p.mu.Unlock()
		return
	}
	recs := p.buf
	p.buf = make([]*core.Interaction, 0, p.maxSize)
	p.firstQueued = time.Time{}
	p.flushing = true
	p.inflight = recs
	p.mu.Unlock()

	err := p.sink.WriteBatch(ctx, recs)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushing = false
	p.inflight = nil

	if err != nil {
		// 整批排回队首，in-flight 期间新增的记录保持在后
		p.buf = append(recs, p.buf...)
		if len(p.buf) > 0 && p.firstQueued.IsZero() {
			p.firstQueued = time.Now()
		}
		p.failures++
		backoff := p.interval << (p.failures - 1)
		if backoff > maxBackoff || backoff <= 0 {
			backoff = maxBackoff
		}
		p.retryAfter = time.Now().Add(backoff)
		p.log.Error().Err(err).Int("size", len(recs)).Int("failures", p.failures).
			Dur("backoff", backoff).Msg("batch: flush failed, requeued")
		return
	}

	p.failures = 0
	p.retryAfter = time.Time{}
	p.log.Debug().Int("size", len(recs)).Msg("batch: flushed")
}
