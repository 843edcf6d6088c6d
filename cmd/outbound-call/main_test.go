package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/career-coach/internal/calls"
)

type failingEnqueuer struct{}

func (failingEnqueuer) Enqueue(context.Context, string) (calls.DispatchJob, error) {
	return calls.DispatchJob{}, errors.New("queue unavailable")
}

func TestRunQueuesCall(t *testing.T) {
	queue := calls.NewMemoryQueue(1)
	var out, errOut bytes.Buffer

	code := run(context.Background(), calls.NewPublisher(queue, nil), []string{"+15550001234"}, &out, &errOut)

	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "Dispatch queued for +15550001234")
	assert.Regexp(t, `room: coaching-\d{10}`, out.String())
	msgs, err := queue.Receive(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestRunRejects(t *testing.T) {
	pub := calls.NewPublisher(calls.NewMemoryQueue(1), nil)
	var out, errOut bytes.Buffer

	assert.Equal(t, 2, run(context.Background(), pub, nil, &out, &errOut))
	assert.Equal(t, 2, run(context.Background(), pub, []string{"15550001234"}, &out, &errOut))
	assert.Contains(t, errOut.String(), "must start with '+'")
	assert.Equal(t, 1, run(context.Background(), failingEnqueuer{}, []string{"+15550001234"}, &out, &errOut))
	assert.Empty(t, out.String())
}
