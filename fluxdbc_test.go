package fluxdbc_test

import (
	"context"
	"testing"

	"fluxdbc"
	"fluxdbc/internal/drivertest"
)

// TestEndToEnd walks the whole path an application takes: build options,
// discover a driver, request a connection, use it, close it.
func TestEndToEnd(t *testing.T) {
	dialer := &drivertest.CountingDialer{}
	reg := fluxdbc.NewRegistry()
	reg.Register(&drivertest.Driver{
		DriverName: "test",
		Factory:    &drivertest.Factory{FactoryName: "test", Dial: dialer.Dial},
	})

	opts := fluxdbc.NewBuilder().
		With(
			fluxdbc.DriverName.Value("test"),
			fluxdbc.Host.Value("db1"),
			fluxdbc.Port.Value(5432),
		).
		Build()

	factory, err := reg.Discover(opts)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if dialer.Dials.Load() != 0 {
		t.Fatalf("discovery must not connect")
	}

	ctx := context.Background()
	conn, err := factory.Create().Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if dialer.Dials.Load() != 1 {
		t.Fatalf("dials = %d, want 1", dialer.Dials.Load())
	}

	res, err := conn.Execute(ctx, "DELETE FROM sessions")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := res.RowsUpdated(ctx); err != nil {
		t.Fatalf("RowsUpdated: %v", err)
	}

	if err := conn.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if dialer.Active.Load() != 0 {
		t.Fatalf("connection still held after Close")
	}
	// Closing again is a no-op.
	if err := conn.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestValidationDepths(t *testing.T) {
	conn := &drivertest.Conn{}
	ctx := context.Background()

	if !conn.Validate(ctx, fluxdbc.ValidationLocal) {
		t.Errorf("open connection should validate locally")
	}
	if n := conn.RemoteProbes.Load(); n != 0 {
		t.Errorf("local validation made %d round trips, want 0", n)
	}

	if !conn.Validate(ctx, fluxdbc.ValidationRemote) {
		t.Errorf("healthy connection should validate remotely")
	}
	if n := conn.RemoteProbes.Load(); n != 1 {
		t.Errorf("remote probes = %d, want 1", n)
	}

	// Validation reports false instead of failing, whatever goes wrong.
	conn.RemoteErr = context.DeadlineExceeded
	if conn.Validate(ctx, fluxdbc.ValidationRemote) {
		t.Errorf("broken connection should report false")
	}

	conn.Close(ctx)
	if conn.Validate(ctx, fluxdbc.ValidationLocal) || conn.Validate(ctx, fluxdbc.ValidationRemote) {
		t.Errorf("closed connection should report false at any depth")
	}
}

func TestExecuteOnClosedConnection(t *testing.T) {
	conn := &drivertest.Conn{}
	ctx := context.Background()
	conn.Close(ctx)

	if _, err := conn.Execute(ctx, "SELECT 1"); err != fluxdbc.ErrConnectionClosed {
		t.Errorf("Execute on closed = %v, want ErrConnectionClosed", err)
	}
}

type wrappedFactory struct {
	fluxdbc.ConnectionFactory
}

func (f *wrappedFactory) Unwrap() fluxdbc.ConnectionFactory { return f.ConnectionFactory }

func TestUnwrapFactory(t *testing.T) {
	base := &drivertest.Factory{FactoryName: "base"}
	twice := &wrappedFactory{&wrappedFactory{base}}

	if got := fluxdbc.UnwrapFactory(twice); got != fluxdbc.ConnectionFactory(base) {
		t.Errorf("UnwrapFactory should reach the innermost factory")
	}
	if got := fluxdbc.UnwrapFactory(base); got != fluxdbc.ConnectionFactory(base) {
		t.Errorf("unwrapping a plain factory should return it unchanged")
	}
}

func TestConnectionMetadata(t *testing.T) {
	conn := &drivertest.Conn{Product: "TestDB"}
	meta := conn.Metadata()
	if meta.ProductName() != "TestDB" {
		t.Errorf("ProductName = %q", meta.ProductName())
	}
	if meta.Version() == "" {
		t.Errorf("fake should report some version")
	}
}

func TestDepthAndIsolationStrings(t *testing.T) {
	if fluxdbc.ValidationLocal.String() != "local" || fluxdbc.ValidationRemote.String() != "remote" {
		t.Errorf("validation depth strings wrong")
	}
	if fluxdbc.IsolationSerializable.String() != "serializable" {
		t.Errorf("isolation level strings wrong")
	}
	if fluxdbc.ValidationDepth(42).String() != "unknown" {
		t.Errorf("out-of-range depth should print unknown")
	}
}
