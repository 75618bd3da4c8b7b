package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/gridlink-core/internal/infrastructure/config"
	"github.com/nerrad567/gridlink-core/internal/infrastructure/database"
	"github.com/nerrad567/gridlink-core/internal/infrastructure/logging"
	"github.com/nerrad567/gridlink-core/internal/lifecycle"
	"github.com/nerrad567/gridlink-core/internal/persist"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GRIDLINK_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, options{}); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_UnknownBackend verifies validation rejects an unknown storage backend.
func TestRun_UnknownBackend(t *testing.T) {
	path := writeConfig(t, `
server:
  id: test-server
storage:
  backend: etcd
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, options{configPath: path}); err == nil {
		t.Fatal("run() should fail with an unknown storage backend")
	}
}

// TestRun_MissingDatabasePath verifies run fails when the sqlite backend has no path.
func TestRun_MissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `
server:
  id: test-server
storage:
  backend: sqlite
database:
  path: ""
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, options{configPath: path}); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_BadTimezone verifies an unknown server timezone is rejected.
func TestRun_BadTimezone(t *testing.T) {
	path := writeConfig(t, `
server:
  id: test-server
  timezone: Mars/Olympus_Mons
storage:
  backend: memory
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, options{configPath: path}); err == nil {
		t.Fatal("run() should fail with an unknown timezone")
	}
}

// TestRun_StartupAndShutdown runs the server against SQLite with MQTT and
// InfluxDB disabled and stops it by cancelling the context.
func TestRun_StartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	path := writeConfig(t, fmt.Sprintf(`
server:
  id: test-server
storage:
  backend: sqlite
database:
  path: %q
api:
  host: 127.0.0.1
  port: %d
lifecycle:
  tick_interval: 50
logging:
  level: error
  format: text
  output: stderr
devices:
  - id: inverter
    lfdi: "3E4F45AB31EDFE5B67E343E5E4562E31984E23E5"
    sfdi: 167261211391
    fsas: [site]
programs:
  - description: P0
    primacy: 1
curves:
  - description: VV
    curve_type: 11
    points: [[95, 30], [105, -30]]
fsas:
  - description: site
    programs: [P0]
`, dbPath, freePort(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx, options{configPath: path, cleanse: true}); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

// TestPurgeSnapshots checks a cleansed start leaves no saved snapshot
// behind, including one for a store that no longer exists.
func TestPurgeSnapshots(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "purge.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	p := persist.NewSQLitePersister(db)
	for _, name := range []string{"edev", "retired"} {
		if err := p.OnChange(ctx, name, []byte{0x01}); err != nil {
			t.Fatal(err)
		}
	}

	if err := purgeSnapshots(ctx, p, logging.Default()); err != nil {
		t.Fatalf("purgeSnapshots() error = %v", err)
	}
	names, err := p.Stores(ctx)
	if err != nil || len(names) != 0 {
		t.Errorf("Stores() after purge = %v, %v", names, err)
	}
}

// TestParseFlags covers the command-line surface.
func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr error
	}{
		{name: "none", args: nil, want: options{}},
		{name: "config long", args: []string{"--config", "a.yaml"}, want: options{configPath: "a.yaml"}},
		{name: "config short", args: []string{"-c", "b.yaml"}, want: options{configPath: "b.yaml"}},
		{name: "cleanse", args: []string{"--cleanse"}, want: options{cleanse: true}},
		{name: "version", args: []string{"--version"}, want: options{showVersion: true}},
		{name: "help", args: []string{"--help"}, wantErr: pflag.ErrHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("parseFlags() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFlags() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseFlags() = %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, err := parseFlags([]string{"extra"}); err == nil {
		t.Error("parseFlags(positional) should fail")
	}
}

// TestGetConfigPath verifies flag, environment and default precedence.
func TestGetConfigPath(t *testing.T) {
	t.Setenv("GRIDLINK_CONFIG", "")
	if got := getConfigPath(""); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("GRIDLINK_CONFIG", "/custom/path/config.yaml")
	if got := getConfigPath(""); got != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath(env) = %q", got)
	}
	if got := getConfigPath("flag.yaml"); got != "flag.yaml" {
		t.Errorf("getConfigPath(flag) = %q", got)
	}
}

func TestNewClock(t *testing.T) {
	if _, ok := newClock(config.LifecycleConfig{}).(lifecycle.WallClock); !ok {
		t.Error("newClock() should default to the wall clock")
	}

	c := newClock(config.LifecycleConfig{Simulated: true, StartTick: 1_700_000_000})
	sim, ok := c.(*lifecycle.SimulatedClock)
	if !ok {
		t.Fatalf("newClock(simulated) = %T", c)
	}
	if sim.Now() != 1_700_000_000 {
		t.Errorf("Now() = %d", sim.Now())
	}
	sim.Step()
	if sim.Now() != 1_700_000_001 {
		t.Errorf("Now() after Step = %d", sim.Now())
	}
}
