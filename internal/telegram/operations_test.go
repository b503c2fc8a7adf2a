package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
)

type scriptedBot struct {
	responses []error
	calls     int
}

func (s *scriptedBot) Request(c api.Chattable) (*api.APIResponse, error) {
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) || s.responses[idx] == nil {
		return &api.APIResponse{Ok: true}, nil
	}
	return nil, s.responses[idx]
}

func rateLimited(seconds int) error {
	return &api.Error{
		Code:    429,
		Message: "Too Many Requests",
		ResponseParameters: api.ResponseParameters{
			RetryAfter: seconds,
		},
	}
}

func TestRequestRetriesOnRateLimit(t *testing.T) {
	t.Parallel()

	bot := &scriptedBot{responses: []error{rateLimited(1), nil}}
	ops := NewOperations(bot)

	if err := ops.DeleteMessage(context.Background(), -100, 1); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if bot.calls != 2 {
		t.Fatalf("unexpected call count: got %d want 2", bot.calls)
	}
}

func TestRequestGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	bot := &scriptedBot{responses: []error{rateLimited(1), rateLimited(1), rateLimited(1), nil}}
	ops := NewOperations(bot)

	err := ops.DeleteMessage(context.Background(), -100, 1)
	if err == nil {
		t.Fatalf("expected failure after exhausting attempts")
	}
	if bot.calls != maxAttempts {
		t.Fatalf("unexpected call count: got %d want %d", bot.calls, maxAttempts)
	}
}

func TestRequestDoesNotRetryOtherErrors(t *testing.T) {
	t.Parallel()

	fatal := &api.Error{Code: 400, Message: "Bad Request: message to delete not found"}
	bot := &scriptedBot{responses: []error{fatal}}
	ops := NewOperations(bot)

	err := ops.DeleteMessage(context.Background(), -100, 1)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, fatal) {
		t.Fatalf("original error lost: %v", err)
	}
	if bot.calls != 1 {
		t.Fatalf("retried a non-rate-limit error: %d calls", bot.calls)
	}
}

func TestRequestHonorsContextDuringWait(t *testing.T) {
	t.Parallel()

	bot := &scriptedBot{responses: []error{rateLimited(30)}}
	ops := NewOperations(bot)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := ops.DeleteMessage(ctx, -100, 1)
	if err == nil {
		t.Fatalf("expected context error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("did not abort the rate limit wait: %v", elapsed)
	}
}
