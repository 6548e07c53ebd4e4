package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrEmpty 当前没有可领取的任务
	ErrEmpty = errors.New("queue: no job available")
)

// Job 队列中的一个任务。Attempts 在每次领取时 +1 并回写，
// worker 崩溃后的重投递同样计入尝试次数。
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	LastError   string          `json:"last_error,omitempty"`

	raw string // processing 列表里的原文，ack/retry 时 LREM 用
}

// Decode 反序列化任务载荷。
func (j *Job) Decode(v interface{}) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return Permanent(fmt.Errorf("queue: malformed payload: %w", err))
	}
	return nil
}

// FailedJob 死信条目，供人工排查 / 重放
type FailedJob struct {
	Job      Job       `json:"job"`
	FailedAt time.Time `json:"failed_at"`
}

// Stats 各状态任务数量
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Delayed    int64 `json:"delayed"`
	Failed     int64 `json:"failed"`
	Completed  int64 `json:"completed"`
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 标记不可重试的错误：不走退避，直接进死信。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Options 投递与保留策略（对齐 BullMQ 的 attempts/backoff/removeOn* 约定）
type Options struct {
	MaxAttempts      int           // 默认 3
	BackoffBase      time.Duration // 指数退避基数，默认 2s，逐次翻倍
	LeaseTTL         time.Duration // 超时未完成视为失联，重投递
	CompletedMaxAge  time.Duration // 成功任务保留时长，默认 1h
	CompletedMaxSize int64         // 成功任务保留条数，默认 1000
	FailedMaxAge     time.Duration // 失败任务保留时长，默认 24h
}

func (o *Options) withDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2 * time.Second
	}
	if o.LeaseTTL <= 0 {
		o.LeaseTTL = time.Minute
	}
	if o.CompletedMaxAge <= 0 {
		o.CompletedMaxAge = time.Hour
	}
	if o.CompletedMaxSize <= 0 {
		o.CompletedMaxSize = 1000
	}
	if o.FailedMaxAge <= 0 {
		o.FailedMaxAge = 24 * time.Hour
	}
}

// Queue Redis 支撑的 at-least-once 队列。
//
// 数据结构：
//   pending    list  待领取任务
//   processing list  已领取未确认
//   leases     zset  member=任务原文 score=租约到期毫秒
//   delayed    zset  退避中的重试任务 score=可投递毫秒
//   failed     zset  死信 score=失败毫秒
//   completed  zset  近期成功 score=完成毫秒
type Queue struct {
	rdb  *redis.Client
	name string
	opts Options
}

func New(rdb *redis.Client, name string, opts Options) *Queue {
	opts.withDefaults()
	return &Queue{rdb: rdb, name: name, opts: opts}
}

func (q *Queue) Opts() Options { return q.opts }

func (q *Queue) key(part string) string { return "queue:" + q.name + ":" + part }

// Enqueue 投递一个任务；返回任务 ID。调用方拿到 nil 即代表任务已落入 Redis。
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	job := Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		Payload:     data,
		MaxAttempts: q.opts.MaxAttempts,
		EnqueuedAt:  time.Now(),
	}
	raw, err := json.Marshal(&job)
	if err != nil {
		return "", err
	}
	if err := q.rdb.LPush(ctx, q.key("pending"), string(raw)).Err(); err != nil {
		return "", err
	}
	return job.ID, nil
}

// promoteScript 把 delayed 中到期的任务搬回 pending（原子）
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for i, v in ipairs(due) do
    redis.call('ZREM', KEYS[1], v)
    redis.call('LPUSH', KEYS[2], v)
end
return #due
`)

// reapScript 把租约过期的任务从 processing 拉回 pending（原子）
var reapScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for i, v in ipairs(expired) do
    redis.call('ZREM', KEYS[1], v)
    redis.call('LREM', KEYS[2], 1, v)
    redis.call('LPUSH', KEYS[3], v)
end
return #expired
`)

// PromoteDue 搬运到期重试任务，返回搬运条数。
func (q *Queue) PromoteDue(ctx context.Context) (int64, error) {
	return promoteScript.Run(ctx, q.rdb,
		[]string{q.key("delayed"), q.key("pending")},
		nowMillis(), 128).Int64()
}

// ReapExpired 重投递租约过期（worker 失联）的任务。
func (q *Queue) ReapExpired(ctx context.Context) (int64, error) {
	return reapScript.Run(ctx, q.rdb,
		[]string{q.key("leases"), q.key("processing"), q.key("pending")},
		nowMillis(), 128).Int64()
}

// Claim 阻塞至多 block 领取一个任务。领取即开始一次尝试：
// Attempts+1 回写到 processing，并登记租约。
func (q *Queue) Claim(ctx context.Context, block time.Duration) (*Job, error) {
	raw, err := q.rdb.BRPopLPush(ctx, q.key("pending"), q.key("processing"), block).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if uErr := json.Unmarshal([]byte(raw), &job); uErr != nil {
		// 无法解析的原文直接进死信，避免毒丸堵塞队列
		_, _ = q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
			p.LRem(ctx, q.key("processing"), 1, raw)
			p.ZAdd(ctx, q.key("failed"), redis.Z{Score: nowMillis(), Member: raw})
			return nil
		})
		return nil, ErrEmpty
	}
	job.Attempts++
	updated, _ := json.Marshal(&job)
	job.raw = string(updated)
	deadline := float64(time.Now().Add(q.opts.LeaseTTL).UnixMilli())
	_, err = q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.key("processing"), 1, raw)
		p.LPush(ctx, q.key("processing"), job.raw)
		p.ZAdd(ctx, q.key("leases"), redis.Z{Score: deadline, Member: job.raw})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Ack 确认完成，任务移入 completed 并按条数截断。
func (q *Queue) Ack(ctx context.Context, job *Job) error {
	_, err := q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.key("processing"), 1, job.raw)
		p.ZRem(ctx, q.key("leases"), job.raw)
		p.ZAdd(ctx, q.key("completed"), redis.Z{Score: nowMillis(), Member: job.raw})
		p.ZRemRangeByRank(ctx, q.key("completed"), 0, -(q.opts.CompletedMaxSize + 1))
		return nil
	})
	return err
}

// Retry 按指数退避安排下一次尝试。
func (q *Queue) Retry(ctx context.Context, job *Job, cause error) error {
	job.LastError = cause.Error()
	updated, err := json.Marshal(job)
	if err != nil {
		return err
	}
	delay := q.backoff(job.Attempts)
	readyAt := float64(time.Now().Add(delay).UnixMilli())
	_, err = q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.key("processing"), 1, job.raw)
		p.ZRem(ctx, q.key("leases"), job.raw)
		p.ZAdd(ctx, q.key("delayed"), redis.Z{Score: readyAt, Member: string(updated)})
		return nil
	})
	return err
}

// Fail 任务进死信，等待人工处理；绝不静默丢弃。
func (q *Queue) Fail(ctx context.Context, job *Job, cause error) error {
	job.LastError = cause.Error()
	updated, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.key("processing"), 1, job.raw)
		p.ZRem(ctx, q.key("leases"), job.raw)
		p.ZAdd(ctx, q.key("failed"), redis.Z{Score: nowMillis(), Member: string(updated)})
		return nil
	})
	return err
}

// FailedJobs 按失败时间倒序取死信。
func (q *Queue) FailedJobs(ctx context.Context, limit int64) ([]FailedJob, error) {
	if limit <= 0 {
		limit = 100
	}
	zs, err := q.rdb.ZRevRangeWithScores(ctx, q.key("failed"), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]FailedJob, 0, len(zs))
	for _, z := range zs {
		raw, _ := z.Member.(string)
		var job Job
		if uErr := json.Unmarshal([]byte(raw), &job); uErr != nil {
			continue
		}
		out = append(out, FailedJob{Job: job, FailedAt: time.UnixMilli(int64(z.Score))})
	}
	return out, nil
}

func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	cmds, err := q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.LLen(ctx, q.key("pending"))
		p.LLen(ctx, q.key("processing"))
		p.ZCard(ctx, q.key("delayed"))
		p.ZCard(ctx, q.key("failed"))
		p.ZCard(ctx, q.key("completed"))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Pending = cmds[0].(*redis.IntCmd).Val()
	s.Processing = cmds[1].(*redis.IntCmd).Val()
	s.Delayed = cmds[2].(*redis.IntCmd).Val()
	s.Failed = cmds[3].(*redis.IntCmd).Val()
	s.Completed = cmds[4].(*redis.IntCmd).Val()
	return &s, nil
}

// Sweep 周期维护：搬运到期重试、回收失联租约、按保留策略清理历史。
func (q *Queue) Sweep(ctx context.Context) error {
	if _, err := q.PromoteDue(ctx); err != nil {
		return err
	}
	if _, err := q.ReapExpired(ctx); err != nil {
		return err
	}
	now := time.Now()
	completedCutoff := float64(now.Add(-q.opts.CompletedMaxAge).UnixMilli())
	failedCutoff := float64(now.Add(-q.opts.FailedMaxAge).UnixMilli())
	_, err := q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, q.key("completed"), "-inf", fmt.Sprintf("%f", completedCutoff))
		p.ZRemRangeByRank(ctx, q.key("completed"), 0, -(q.opts.CompletedMaxSize + 1))
		p.ZRemRangeByScore(ctx, q.key("failed"), "-inf", fmt.Sprintf("%f", failedCutoff))
		return nil
	})
	return err
}

func (q *Queue) backoff(attempts int) time.Duration {
	d := q.opts.BackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
	}
	return d
}

func nowMillis() float64 { return float64(time.Now().UnixMilli()) }
