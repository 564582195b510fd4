// Package shardqueue runs jobs on workers partitioned by key, preserving
// FIFO order per key while keys on different shards proceed in parallel.
// The client keys every bucket write by bucket id so one process never
// races itself on position assignment.
package shardqueue

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	clierrors "github.com/Andrew920528/vibe-30/client/internal/errors"
)

type queuedJob struct {
	ctx    context.Context
	job    Job
	result chan<- error // nil for fire-and-forget submissions
}

type ShardExecutor struct {
	cfg    Config
	queues []chan queuedJob
	done   chan struct{}
	closed uint32

	wg sync.WaitGroup
}

// NewShardExecutor constructs the executor and starts its shard workers.
func NewShardExecutor(cfg Config) *ShardExecutor {
	cfg = cfg.withDefaults()
	p := &ShardExecutor{
		cfg:    cfg,
		queues: make([]chan queuedJob, cfg.Shards),
		done:   make(chan struct{}),
	}
	for i := 0; i < cfg.Shards; i++ {
		ch := make(chan queuedJob, cfg.QueueSize)
		p.queues[i] = ch
		p.wg.Add(1)
		go p.runWorker(i, ch)
	}
	return p
}

// Submit enqueues job for the shard derived from key and returns without
// waiting for it to run. It fails with ErrExecutorClosed after Stop, with a
// *QueueFullError when the shard stays full for EnqueueTimeout, or with
// ctx.Err().
func (p *ShardExecutor) Submit(ctx context.Context, key string, job Job) error {
	return p.enqueue(ctx, key, queuedJob{ctx: ctx, job: job})
}

// Do enqueues job and blocks until it has run, returning its final error.
func (p *ShardExecutor) Do(ctx context.Context, key string, job Job) error {
	res := make(chan error, 1)
	if err := p.enqueue(ctx, key, queuedJob{ctx: ctx, job: job, result: res}); err != nil {
		return err
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Barrier waits until every job submitted for key before it has completed.
func (p *ShardExecutor) Barrier(ctx context.Context, key string) error {
	return p.Do(ctx, key, JobFunc(func(context.Context) error { return nil }))
}

// Stop lets every worker drain its queue, then returns. Idempotent.
func (p *ShardExecutor) Stop() {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return
	}
	log.Debug().Int("shards", p.cfg.Shards).Msg("shardqueue: stopping executor")
	close(p.done)
	p.wg.Wait()
	log.Debug().Msg("shardqueue: executor stopped")
}

// Close lets ShardExecutor satisfy io.Closer.
func (p *ShardExecutor) Close() error {
	p.Stop()
	return nil
}

// ------------------------- internals -------------------------

func (p *ShardExecutor) enqueue(ctx context.Context, key string, qj queuedJob) error {
	if atomic.LoadUint32(&p.closed) == 1 {
		return ErrExecutorClosed
	}
	select {
	case <-p.done:
		return ErrExecutorClosed
	default:
	}

	shard := p.shardFor(key)
	ch := p.queues[shard]

	timer := time.NewTimer(p.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case ch <- qj:
		submissionsTotal.WithLabelValues(labelFor(shard)).Inc()
		return nil
	case <-p.done:
		return ErrExecutorClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		queueFullTotal.WithLabelValues(labelFor(shard)).Inc()
		return &QueueFullError{Shard: shard, Length: len(ch), Capacity: cap(ch)}
	}
}

func (p *ShardExecutor) runWorker(idx int, ch <-chan queuedJob) {
	defer p.wg.Done()
	label := labelFor(idx)
	for {
		select {
		case qj := <-ch:
			p.finish(qj, p.execute(label, qj))
			queueDepth.WithLabelValues(label).Set(float64(len(ch)))
		case <-p.done:
			// Drain remaining jobs in order, then exit.
			for {
				select {
				case qj := <-ch:
					p.finish(qj, p.runOnce(label, qj))
				default:
					queueDepth.WithLabelValues(label).Set(0)
					return
				}
			}
		}
	}
}

// execute runs qj with retries for recoverable errors.
func (p *ShardExecutor) execute(label string, qj queuedJob) error {
	if qj.job == nil {
		return nil
	}
	// A job whose caller gave up is skipped so it cannot stall the shard.
	if err := qj.ctx.Err(); err != nil {
		return err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = p.cfg.MaxInterval
	exp.Reset()

	for attempt := 1; ; attempt++ {
		err := p.runOnce(label, qj)
		if err == nil || clierrors.IsIrrecoverable(err) || attempt >= p.cfg.MaxAttempts {
			return err
		}
		select {
		case <-time.After(exp.NextBackOff()):
		case <-p.done:
			return err
		case <-qj.ctx.Done():
			return qj.ctx.Err()
		}
	}
}

func (p *ShardExecutor) runOnce(label string, qj queuedJob) (err error) {
	if qj.job == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("shard", label).Msg("shardqueue: job panic")
			err = &clierrors.ClassifiedError{Category: clierrors.Irrecoverable, Underlying: errPanic}
		}
	}()
	start := time.Now()
	err = qj.job.Run(qj.ctx)
	runDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	return err
}

func (p *ShardExecutor) finish(qj queuedJob, err error) {
	if err != nil {
		p.safeHandleError(err)
	}
	if qj.result != nil {
		qj.result <- err
	}
}

func (p *ShardExecutor) safeHandleError(err error) {
	if p.cfg.ErrorHandler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("shardqueue: error handler panic")
		}
	}()
	p.cfg.ErrorHandler(err)
}

func (p *ShardExecutor) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.cfg.Shards))
}
