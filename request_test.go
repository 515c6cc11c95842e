package fluxdbc_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fluxdbc"
	"fluxdbc/internal/drivertest"
)

// eventually polls for a condition that a background goroutine establishes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached: %s", msg)
}

func TestAwaitDelivers(t *testing.T) {
	dialer := &drivertest.CountingDialer{}
	factory := &drivertest.Factory{Dial: dialer.Dial}

	req := factory.Create()
	conn, err := req.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if conn == nil {
		t.Fatalf("Await returned nil connection")
	}
	if dialer.Dials.Load() != 1 {
		t.Errorf("dials = %d, want 1", dialer.Dials.Load())
	}

	// The outcome is remembered, not re-dialed.
	again, err := req.Await(context.Background())
	if err != nil || again != conn {
		t.Errorf("second Await = (%v, %v), want the same connection", again, err)
	}
	if dialer.Dials.Load() != 1 {
		t.Errorf("dials after second Await = %d, want 1", dialer.Dials.Load())
	}
}

func TestCreateDoesNoWork(t *testing.T) {
	dialer := &drivertest.CountingDialer{}
	factory := &drivertest.Factory{Dial: dialer.Dial}

	req := factory.Create()
	time.Sleep(20 * time.Millisecond)
	if n := dialer.Dials.Load(); n != 0 {
		t.Fatalf("dial ran %d times before Await", n)
	}
	select {
	case <-req.Done():
		t.Fatalf("request settled before demand")
	default:
	}
}

func TestCancelBeforeAwait(t *testing.T) {
	dialer := &drivertest.CountingDialer{}
	req := fluxdbc.NewConnectionRequest(dialer.Dial)

	req.Cancel()
	select {
	case <-req.Done():
	default:
		t.Fatalf("canceled request should settle")
	}

	conn, err := req.Await(context.Background())
	if conn != nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("Await after Cancel = (%v, %v), want (nil, context.Canceled)", conn, err)
	}
	if dialer.Dials.Load() != 0 {
		t.Errorf("dial ran despite cancellation before demand")
	}
}

func TestCancelDuringDial(t *testing.T) {
	dialer := &drivertest.CountingDialer{Delay: time.Minute}
	req := fluxdbc.NewConnectionRequest(dialer.Dial)

	type outcome struct {
		conn fluxdbc.Connection
		err  error
	}
	got := make(chan outcome, 1)
	go func() {
		conn, err := req.Await(context.Background())
		got <- outcome{conn, err}
	}()

	eventually(t, func() bool { return dialer.Dials.Load() == 1 }, "dial started")
	req.Cancel()

	res := <-got
	if res.conn != nil || !errors.Is(res.err, context.Canceled) {
		t.Fatalf("Await = (%v, %v), want (nil, context.Canceled)", res.conn, res.err)
	}
	// The half-established resource is given back, not leaked.
	eventually(t, func() bool { return dialer.Active.Load() == 0 }, "dial resource released")
	if dialer.Released.Load() != 1 {
		t.Errorf("released = %d, want 1", dialer.Released.Load())
	}
}

func TestAwaitContextEndsMidDial(t *testing.T) {
	dialer := &drivertest.CountingDialer{Delay: time.Minute}
	req := fluxdbc.NewConnectionRequest(dialer.Dial)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	conn, err := req.Await(ctx)
	if conn != nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Await = (%v, %v), want (nil, context.DeadlineExceeded)", conn, err)
	}
	eventually(t, func() bool { return dialer.Active.Load() == 0 }, "dial resource released")
}

func TestDialErrorMemoized(t *testing.T) {
	refused := errors.New("connection refused")
	dialer := &drivertest.CountingDialer{Err: refused}
	req := fluxdbc.NewConnectionRequest(dialer.Dial)

	if _, err := req.Await(context.Background()); !errors.Is(err, refused) {
		t.Fatalf("Await = %v, want dial error", err)
	}
	if _, err := req.Await(context.Background()); !errors.Is(err, refused) {
		t.Fatalf("second Await = %v, want the same dial error", err)
	}
	if dialer.Dials.Load() != 1 {
		t.Errorf("dials = %d, want 1", dialer.Dials.Load())
	}
}

func TestCancelAfterDeliveryIsNoOp(t *testing.T) {
	dialer := &drivertest.CountingDialer{}
	req := fluxdbc.NewConnectionRequest(dialer.Dial)

	conn, err := req.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	req.Cancel()

	if !conn.Validate(context.Background(), fluxdbc.ValidationLocal) {
		t.Errorf("delivered connection closed by a late Cancel")
	}
	if dialer.Active.Load() != 1 {
		t.Errorf("active = %d, want the delivered connection still held", dialer.Active.Load())
	}
	_ = conn.Close(context.Background())
}

func TestCancelClosesLateConnection(t *testing.T) {
	started := make(chan struct{})
	proceed := make(chan struct{})
	conn := &drivertest.Conn{}

	// A dial that ignores cancellation and produces a connection anyway.
	dial := func(ctx context.Context) (fluxdbc.Connection, error) {
		close(started)
		<-proceed
		return conn, nil
	}
	req := fluxdbc.NewConnectionRequest(dial)

	errc := make(chan error, 1)
	go func() {
		_, err := req.Await(context.Background())
		errc <- err
	}()

	<-started
	req.Cancel()
	close(proceed)

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Await = %v, want context.Canceled", err)
	}
	eventually(t, func() bool { return conn.CloseCalls.Load() >= 1 }, "late connection closed")
}

func TestConcurrentAwaitShareOneConnection(t *testing.T) {
	dialer := &drivertest.CountingDialer{Delay: 10 * time.Millisecond}
	req := fluxdbc.NewConnectionRequest(dialer.Dial)

	const waiters = 8
	conns := make([]fluxdbc.Connection, waiters)
	errs := make([]error, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conns[i], errs[i] = req.Await(context.Background())
		}(i)
	}
	wg.Wait()

	if dialer.Dials.Load() != 1 {
		t.Fatalf("dials = %d, want 1", dialer.Dials.Load())
	}
	for i := 0; i < waiters; i++ {
		if errs[i] != nil {
			t.Fatalf("waiter %d: %v", i, errs[i])
		}
		if conns[i] != conns[0] {
			t.Fatalf("waiter %d got a different connection", i)
		}
	}
}

func TestNilDialPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("NewConnectionRequest(nil) should panic")
		}
	}()
	fluxdbc.NewConnectionRequest(nil)
}
