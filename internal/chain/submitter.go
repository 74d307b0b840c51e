package chain

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// submitTask is one privileged submission waiting for the authority account.
type submitTask struct {
	ctx    context.Context
	run    func(ctx context.Context) (string, error)
	result chan submitResult
}

type submitResult struct {
	txHash string
	err    error
}

// Submitter serializes every state-changing transaction through the single
// authority account. The account's nonce sequence makes concurrent
// submissions collide, so exactly one worker drains a bounded queue and the
// rest of the system never touches the key directly.
type Submitter struct {
	queue  chan submitTask
	logger zerolog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewSubmitter builds a submitter with the given backlog capacity.
func NewSubmitter(capacity int, logger zerolog.Logger) *Submitter {
	if capacity <= 0 {
		capacity = 64
	}
	return &Submitter{
		queue:  make(chan submitTask, capacity),
		logger: logger.With().Str("component", "chain_submitter").Logger(),
		done:   make(chan struct{}),
	}
}

// Start launches the drain worker. Safe to call more than once.
func (s *Submitter) Start() {
	s.startOnce.Do(func() {
		go s.drain()
	})
}

// Stop shuts the worker down after the in-flight task finishes. Queued tasks
// are failed with their context error once the queue closes.
func (s *Submitter) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// Submit enqueues the task and blocks until it has been executed by the
// authority worker, the caller's context expires, or the backlog is full.
// A task that was already started is never abandoned: a submitted transaction
// cannot be un-submitted, so cancellation only applies while waiting in line.
func (s *Submitter) Submit(ctx context.Context, run func(ctx context.Context) (string, error)) (string, error) {
	s.Start()

	task := submitTask{ctx: ctx, run: run, result: make(chan submitResult, 1)}
	select {
	case s.queue <- task:
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		return "", ErrQueueFull
	}

	select {
	case res := <-task.result:
		return res.txHash, res.err
	case <-ctx.Done():
		// The worker still owns the task; drop the wait but let it finish.
		return "", ctx.Err()
	}
}

func (s *Submitter) drain() {
	for {
		select {
		case <-s.done:
			return
		case task := <-s.queue:
			if err := task.ctx.Err(); err != nil {
				task.result <- submitResult{err: err}
				continue
			}
			txHash, err := task.run(task.ctx)
			if err != nil {
				s.logger.Error().Err(err).Msg("authority submission failed")
			} else {
				s.logger.Debug().Str("tx_hash", txHash).Msg("authority submission mined")
			}
			task.result <- submitResult{txHash: txHash, err: err}
		}
	}
}
