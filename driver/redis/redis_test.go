package redis

import (
	"testing"
	"time"

	"fluxdbc"
)

func TestSupports(t *testing.T) {
	d := &Driver{}
	yes := fluxdbc.NewBuilder().With(fluxdbc.DriverName.Value("redis")).Build()
	if !d.Supports(yes) {
		t.Fatal("driver should support redis options")
	}
	no := fluxdbc.NewBuilder().With(fluxdbc.DriverName.Value("postgres")).Build()
	if d.Supports(no) {
		t.Fatal("driver should not support postgres options")
	}
}

func TestClientOptions(t *testing.T) {
	opts := fluxdbc.NewBuilder().With(
		fluxdbc.DriverName.Value("redis"),
		fluxdbc.Host.Value("cache1"),
		fluxdbc.Port.Value(6380),
		fluxdbc.User.Value("app"),
		fluxdbc.Password.Value("hunter2"),
		fluxdbc.Database.Value("3"),
		fluxdbc.ConnectTimeout.Value(2*time.Second),
	).Build()

	ro, err := clientOptions(opts)
	if err != nil {
		t.Fatalf("clientOptions: %v", err)
	}
	if ro.Addr != "cache1:6380" {
		t.Errorf("Addr = %q, want cache1:6380", ro.Addr)
	}
	if ro.Username != "app" || ro.Password != "hunter2" {
		t.Errorf("credentials = %q/%q", ro.Username, ro.Password)
	}
	if ro.DB != 3 {
		t.Errorf("DB = %d, want 3", ro.DB)
	}
	if ro.DialTimeout != 2*time.Second {
		t.Errorf("DialTimeout = %v, want 2s", ro.DialTimeout)
	}
	if ro.PoolSize != 1 {
		t.Errorf("PoolSize = %d, want 1", ro.PoolSize)
	}
	if ro.TLSConfig != nil {
		t.Error("TLSConfig set without ssl option")
	}
}

func TestClientOptionsDefaults(t *testing.T) {
	opts := fluxdbc.NewBuilder().With(fluxdbc.DriverName.Value("redis")).Build()
	ro, err := clientOptions(opts)
	if err != nil {
		t.Fatalf("clientOptions: %v", err)
	}
	if ro.Addr != "localhost:6379" {
		t.Errorf("Addr = %q, want localhost:6379", ro.Addr)
	}
	if ro.DB != 0 {
		t.Errorf("DB = %d, want 0", ro.DB)
	}
}

func TestClientOptionsTLS(t *testing.T) {
	opts := fluxdbc.NewBuilder().With(
		fluxdbc.DriverName.Value("redis"),
		fluxdbc.Host.Value("cache1"),
		fluxdbc.SSL.Value(true),
	).Build()
	ro, err := clientOptions(opts)
	if err != nil {
		t.Fatalf("clientOptions: %v", err)
	}
	if ro.TLSConfig == nil || ro.TLSConfig.ServerName != "cache1" {
		t.Errorf("TLSConfig = %+v, want ServerName cache1", ro.TLSConfig)
	}
}

func TestClientOptionsBadDatabase(t *testing.T) {
	opts := fluxdbc.NewBuilder().With(
		fluxdbc.DriverName.Value("redis"),
		fluxdbc.Database.Value("sessions"),
	).Build()
	if _, err := clientOptions(opts); err == nil {
		t.Fatal("expected error for non-numeric database index")
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"GET session:41", []string{"GET", "session:41"}},
		{"SET greeting \"hello world\"", []string{"SET", "greeting", "hello world"}},
		{"SET greeting 'it''s'", []string{"SET", "greeting", "its"}},
		{"  DEL   a\tb  ", []string{"DEL", "a", "b"}},
		{"PING", []string{"PING"}},
		{"", nil},
		{"SET k \"\"", []string{"SET", "k", ""}},
	}
	for _, tt := range tests {
		got, err := splitCommand(tt.in)
		if err != nil {
			t.Errorf("splitCommand(%q): %v", tt.in, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("splitCommand(%q) = %q, want %q", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitCommand(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestSplitCommandUnbalancedQuote(t *testing.T) {
	if _, err := splitCommand(`SET k "oops`); err == nil {
		t.Fatal("expected error for unbalanced quote")
	}
}

func TestInfoVersion(t *testing.T) {
	info := "# Server\r\nredis_version:7.2.4\r\nredis_mode:standalone\r\n"
	if got := infoVersion(info); got != "7.2.4" {
		t.Errorf("infoVersion = %q, want 7.2.4", got)
	}
	if got := infoVersion("# Server\r\nuptime:42\r\n"); got != "" {
		t.Errorf("infoVersion = %q, want empty", got)
	}
}
