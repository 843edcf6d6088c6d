package calls

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/career-coach/pkg/logging"
)

// Publisher enqueues dispatch jobs for the call worker.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
	now    func() time.Time
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("calls: queue cannot be nil")
	}
	return &Publisher{
		queue:  queue,
		logger: logger.Component("call-publisher"),
		now:    time.Now,
	}
}

// Enqueue schedules an outbound coaching call to phoneNumber in a fresh room.
func (p *Publisher) Enqueue(ctx context.Context, phoneNumber string) (DispatchJob, error) {
	if err := ValidateDestination(phoneNumber); err != nil {
		return DispatchJob{}, err
	}
	job, err := NewDispatchJob(NewRoomName(), phoneNumber, p.now())
	if err != nil {
		return DispatchJob{}, err
	}
	if err := p.EnqueueJob(ctx, job); err != nil {
		return DispatchJob{}, err
	}
	return job, nil
}

// EnqueueJob publishes job as is.
func (p *Publisher) EnqueueJob(ctx context.Context, job DispatchJob) error {
	body, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("calls: failed to enqueue dispatch job: %w", err)
	}
	p.logger.Info("dispatch job enqueued",
		"job_id", job.ID,
		"room", job.RoomName,
		"outbound", job.Metadata != "",
	)
	return nil
}
