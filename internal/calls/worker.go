package calls

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/career-coach/internal/coach"
	"github.com/wolfman30/career-coach/pkg/logging"
)

// Runner executes one call session.
type Runner interface {
	Run(ctx context.Context, job DispatchJob) (*CallSession, error)
}

// Worker consumes dispatch jobs and runs one call goroutine per job.
type Worker struct {
	queue  Queue
	router *coach.Router
	runner Runner
	logger *logging.Logger

	cfg   workerConfig
	slots chan struct{}
	wg    sync.WaitGroup
	calls sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	maxCalls         int
}

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	defaultMaxCalls      = 16
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent queue consumers.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithMaxConcurrentCalls bounds how many sessions run at once.
func WithMaxConcurrentCalls(n int) WorkerOption {
	return func(cfg *workerConfig) {
		if n > 0 {
			cfg.maxCalls = n
		}
	}
}

// NewWorker constructs a queue consumer around runner. Jobs are routed
// through router and only StartCall decisions reach the runner.
func NewWorker(queue Queue, router *coach.Router, runner Runner, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("calls: queue cannot be nil")
	}
	if runner == nil {
		panic("calls: runner cannot be nil")
	}
	if router == nil {
		router = coach.NewRouter(coach.ModeCanned)
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		maxCalls:         defaultMaxCalls,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		queue:  queue,
		router: router,
		runner: runner,
		logger: logger.Component("call-worker"),
		cfg:    cfg,
		slots:  make(chan struct{}, cfg.maxCalls),
	}
}

// Start launches consumer goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until consumers and every running call have exited.
func (w *Worker) Wait() {
	w.wg.Wait()
	w.calls.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("call worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("call worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive dispatch jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			if !w.handleMessage(ctx, msg) {
				return
			}
		}
	}
}

// handleMessage returns false when ctx ended while waiting for a call slot.
func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) bool {
	job, err := decodeJob(msg.Body)
	if err != nil {
		w.logger.Error("dropping undecodable dispatch job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return true
	}

	action := w.router.Route(EventFromJob(job))
	if action.Kind != coach.ActionStartCall {
		w.logger.Warn("dispatch job did not route to a call", "job_id", job.ID, "action", action.Kind)
		w.deleteMessage(msg.ReceiptHandle)
		return true
	}

	select {
	case w.slots <- struct{}{}:
	case <-ctx.Done():
		return false
	}

	// Sessions outlive the queue visibility timeout, so the job is removed once
	// a slot is held. Redelivery is still harmless: Store.Create rejects a
	// second session for the room.
	w.deleteMessage(msg.ReceiptHandle)

	w.calls.Add(1)
	go func() {
		defer w.calls.Done()
		defer func() { <-w.slots }()

		w.logger.Info("starting call session", "job_id", job.ID, "room", job.RoomName, "outbound", action.Destination != "")
		sess, err := w.runner.Run(ctx, job)
		switch {
		case errors.Is(err, ErrSessionExists):
			w.logger.Info("duplicate dispatch job ignored", "job_id", job.ID, "room", job.RoomName)
		case err != nil:
			w.logger.Error("call session failed", "job_id", job.ID, "room", job.RoomName, "error", err)
		default:
			w.logger.Info("call session done", "job_id", job.ID, "room", job.RoomName, "state", sess.State)
		}
	}()
	return true
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete dispatch job", "error", err)
	}
}
