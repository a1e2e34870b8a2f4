package shutdown

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/erik-marten/VeriLog/internal/telemetry/logger"
)

func TestShutdown_ReverseOrder(t *testing.T) {
	h := NewHandler(time.Second, logger.Discard())

	var order []string
	for _, name := range []string{"metrics", "auditlog", "ingest"} {
		h.OnShutdown(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	if err := h.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	want := []string{"ingest", "auditlog", "metrics"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done not closed")
	}
}

func TestShutdown_JoinsErrors(t *testing.T) {
	h := NewHandler(time.Second, logger.Discard())
	errA := errors.New("a")
	errB := errors.New("b")
	h.OnShutdown("a", func(context.Context) error { return errA })
	h.OnShutdown("ok", func(context.Context) error { return nil })
	h.OnShutdown("b", func(context.Context) error { return errB })

	err := h.Shutdown()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("Shutdown() = %v, want both errors", err)
	}
	if err := h.Shutdown(); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
}

func TestShutdown_HooksShareDeadline(t *testing.T) {
	h := NewHandler(50*time.Millisecond, logger.Discard())
	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := h.Shutdown()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown() = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("hook was not bounded by the timeout")
	}
}

func TestWait_Context(t *testing.T) {
	h := NewHandler(time.Second, logger.Discard())
	ran := make(chan struct{})
	h.OnShutdown("x", func(context.Context) error { close(ran); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	<-ran
}

func TestWait_Signal(t *testing.T) {
	h := NewHandler(time.Second, logger.Discard())
	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after SIGTERM")
	}
}
