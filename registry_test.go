package fluxdbc_test

import (
	"errors"
	"strings"
	"testing"

	"fluxdbc"
	"fluxdbc/internal/drivertest"
)

func testOptions(driver string) *fluxdbc.Options {
	return fluxdbc.NewBuilder().
		With(
			fluxdbc.DriverName.Value(driver),
			fluxdbc.Host.Value("db1"),
			fluxdbc.Port.Value(5432),
			fluxdbc.Password.Value("hunter2"),
		).
		Build()
}

func TestDiscoverSingleMatch(t *testing.T) {
	reg := fluxdbc.NewRegistry()
	matched := &drivertest.Driver{DriverName: "match"}
	other := &drivertest.Driver{DriverName: "other"}
	reg.Register(matched)
	reg.Register(other)

	factory, err := reg.Discover(testOptions("match"))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if factory.Metadata().Name() != "match" {
		t.Errorf("factory from wrong driver: %s", factory.Metadata().Name())
	}
	if matched.SupportsCalls.Load() == 0 || other.SupportsCalls.Load() == 0 {
		t.Errorf("every registered driver should be consulted")
	}
	if other.FactoryCalls.Load() != 0 {
		t.Errorf("non-matching driver asked for a factory")
	}
}

func TestDiscoverNoMatch(t *testing.T) {
	reg := fluxdbc.NewRegistry()
	reg.Register(&drivertest.Driver{DriverName: "mysql"})
	reg.Register(&drivertest.Driver{DriverName: "postgres"})

	_, err := reg.Discover(testOptions("oracle"))
	var noDriver *fluxdbc.NoDriverError
	if !errors.As(err, &noDriver) {
		t.Fatalf("Discover error = %v, want *NoDriverError", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "mysql") || !strings.Contains(msg, "postgres") {
		t.Errorf("error should name the registered drivers: %s", msg)
	}
	if !strings.Contains(msg, "driver=oracle") {
		t.Errorf("error should describe the requested options: %s", msg)
	}
	if strings.Contains(msg, "hunter2") {
		t.Errorf("error leaked a sensitive option value: %s", msg)
	}
}

func TestDiscoverEmptyRegistryHint(t *testing.T) {
	_, err := fluxdbc.NewRegistry().Discover(testOptions("mysql"))
	var noDriver *fluxdbc.NoDriverError
	if !errors.As(err, &noDriver) {
		t.Fatalf("Discover error = %v, want *NoDriverError", err)
	}
	if !strings.Contains(err.Error(), "no drivers registered") {
		t.Errorf("empty registry should be called out: %v", err)
	}
}

func TestDiscoverAmbiguous(t *testing.T) {
	claimAll := func(*fluxdbc.Options) bool { return true }
	reg := fluxdbc.NewRegistry()
	reg.Register(&drivertest.Driver{DriverName: "first", Matches: claimAll})
	reg.Register(&drivertest.Driver{DriverName: "second", Matches: claimAll})

	_, err := reg.Discover(testOptions("anything"))
	var ambiguous *fluxdbc.AmbiguousDriverError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("Discover error = %v, want *AmbiguousDriverError", err)
	}
	if len(ambiguous.Drivers) != 2 {
		t.Errorf("Drivers = %v, want both claimants", ambiguous.Drivers)
	}
	if !strings.Contains(err.Error(), "first") || !strings.Contains(err.Error(), "second") {
		t.Errorf("error should name the claimants: %v", err)
	}
}

func TestDiscoverIgnoresUnknownOptions(t *testing.T) {
	reg := fluxdbc.NewRegistry()
	reg.Register(&drivertest.Driver{DriverName: "mysql"})

	opts := fluxdbc.NewBuilder().
		From(testOptions("mysql")).
		Set("obscureKnob", "on").
		Build()
	if _, err := reg.Discover(opts); err != nil {
		t.Fatalf("unknown options must not break discovery: %v", err)
	}
}

func TestDiscoverPropagatesFactoryError(t *testing.T) {
	boom := errors.New("bad config")
	reg := fluxdbc.NewRegistry()
	reg.Register(&drivertest.Driver{DriverName: "mysql", FactoryErr: boom})

	_, err := reg.Discover(testOptions("mysql"))
	if !errors.Is(err, boom) {
		t.Errorf("Discover error = %v, want the driver's construction error", err)
	}
}

func TestRegisterPanics(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s should panic", name)
			}
		}()
		fn()
	}

	reg := fluxdbc.NewRegistry()
	mustPanic("nil driver", func() { reg.Register(nil) })
	mustPanic("empty name", func() { reg.Register(&drivertest.Driver{}) })
	reg.Register(&drivertest.Driver{DriverName: "dup"})
	mustPanic("duplicate name", func() { reg.Register(&drivertest.Driver{DriverName: "dup"}) })
}

func TestDriversSorted(t *testing.T) {
	reg := fluxdbc.NewRegistry()
	for _, name := range []string{"zebra", "alpha", "mango"} {
		reg.Register(&drivertest.Driver{DriverName: name})
	}
	got := reg.Drivers()
	want := []string{"alpha", "mango", "zebra"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Drivers() = %v, want %v", got, want)
		}
	}
}
