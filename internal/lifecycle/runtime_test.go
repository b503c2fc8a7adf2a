package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type testComponent struct {
	name     string
	startErr error
	stopErr  error
	events   *[]string
}

func (c *testComponent) Start(ctx context.Context) error {
	if c.events != nil {
		*c.events = append(*c.events, "start:"+c.name)
	}
	return c.startErr
}

func (c *testComponent) Stop(ctx context.Context) error {
	if c.events != nil {
		*c.events = append(*c.events, "stop:"+c.name)
	}
	return c.stopErr
}

func TestRuntimeStopsInReverseOrder(t *testing.T) {
	t.Parallel()

	events := make([]string, 0, 6)
	runtime := NewRuntime(
		&testComponent{name: "sweeper", events: &events},
		&testComponent{name: "metrics", events: &events},
	)
	if err := runtime.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := runtime.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:sweeper", "start:metrics", "stop:metrics", "stop:sweeper"}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected order: got %v want %v", events, want)
	}
}

func TestRuntimeStartFailureUnwindsStartedComponents(t *testing.T) {
	t.Parallel()

	events := make([]string, 0, 4)
	boom := errors.New("boom")
	runtime := NewRuntime(
		&testComponent{name: "first", events: &events},
		&testComponent{name: "second", events: &events, startErr: boom},
		&testComponent{name: "third", events: &events},
	)

	err := runtime.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected start error, got %v", err)
	}

	want := []string{"start:first", "start:second", "stop:first"}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unexpected unwind: got %v want %v", events, want)
	}
}

func TestRuntimeStopJoinsErrors(t *testing.T) {
	t.Parallel()

	e1 := errors.New("first failure")
	e2 := errors.New("second failure")
	runtime := NewRuntime(
		&testComponent{name: "a", stopErr: e1},
		&testComponent{name: "b", stopErr: e2},
	)
	if err := runtime.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	err := runtime.Stop(context.Background())
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Fatalf("stop errors not joined: %v", err)
	}
}
