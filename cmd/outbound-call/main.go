// Command outbound-call queues a coaching call to one phone number.
//
//	outbound-call +15551234567
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/career-coach/cmd/mainconfig"
	"github.com/wolfman30/career-coach/internal/calls"
)

func main() {
	cfg, logger := mainconfig.Setup("outbound-call")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.UseMemoryQueue || cfg.CallQueueURL == "" {
		fmt.Fprintln(os.Stderr, "CALL_QUEUE_URL is required and USE_MEMORY_QUEUE must be false; use POST /calls on the API for in-process calls")
		os.Exit(2)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	pub := calls.NewPublisher(calls.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.CallQueueURL), logger)

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	os.Exit(run(ctx, pub, os.Args[1:], os.Stdout, os.Stderr))
}

type enqueuer interface {
	Enqueue(ctx context.Context, phoneNumber string) (calls.DispatchJob, error)
}

func run(ctx context.Context, pub enqueuer, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "usage: outbound-call <+phone_number>")
		return 2
	}
	job, err := pub.Enqueue(ctx, args[0])
	if err != nil {
		if errors.Is(err, calls.ErrInvalidDestination) {
			fmt.Fprintln(stderr, "Phone number must start with '+' and country code")
			return 2
		}
		fmt.Fprintln(stderr, "Error creating dispatch:", err)
		return 1
	}
	fmt.Fprintf(stdout, "Dispatch queued for %s\nroom: %s\njob: %s\n", args[0], job.RoomName, job.ID)
	return 0
}
