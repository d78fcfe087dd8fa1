package cleanup

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/jhkim/fragscapy-go/pkg/telemetry"
)

func testLogger() *telemetry.Logger {
	return telemetry.NewLogger(telemetry.LoggerConfig{Output: io.Discard})
}

func TestRunAllUnwindsInReverseOrder(t *testing.T) {
	c := New(testLogger())
	var order []string
	c.Register("first", func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	c.Register("second", func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})
	c.Register("third", func(ctx context.Context) error {
		order = append(order, "third")
		return nil
	})

	if err := c.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	want := []string{"third", "second", "first"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRunAllRunsEveryActionDespiteEarlierFailure(t *testing.T) {
	c := New(testLogger())
	ran := map[string]bool{}
	c.Register("a", func(ctx context.Context) error { ran["a"] = true; return nil })
	c.Register("b", func(ctx context.Context) error { ran["b"] = true; return errors.New("boom") })
	c.Register("c", func(ctx context.Context) error { ran["c"] = true; return nil })

	err := c.RunAll(context.Background())
	if err == nil {
		t.Fatal("expected an aggregate error")
	}
	if !ran["a"] || !ran["b"] || !ran["c"] {
		t.Fatalf("expected every action to run, got %v", ran)
	}

	summary := c.Summarize()
	if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want Total=3 Succeeded=2 Failed=1", summary)
	}
}

func TestRunAllNoActionsIsNoop(t *testing.T) {
	c := New(testLogger())
	if err := c.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll with no actions: %v", err)
	}
	if len(c.Entries()) != 0 {
		t.Fatalf("Entries() = %v, want empty", c.Entries())
	}
}

func TestRunAllClearsActionsAfterRunning(t *testing.T) {
	c := New(testLogger())
	calls := 0
	c.Register("once", func(ctx context.Context) error { calls++; return nil })

	if err := c.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if err := c.RunAll(context.Background()); err != nil {
		t.Fatalf("second RunAll: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (actions cleared after first run)", calls)
	}
}
