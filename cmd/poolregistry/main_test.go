package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Swind/go-pool-registry/core"
	"github.com/urfave/cli/v2"
)

// runApp runs the CLI without letting exit errors terminate the test binary.
func runApp(args []string) error {
	app := newApp()
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app.Run(args)
}

func TestPrintSnapshot(t *testing.T) {
	var buf bytes.Buffer
	printSnapshot(&buf, []core.PoolStats{
		{Name: "io", State: core.StateReady, Workers: 2, Submitted: 10, Completed: 10, CompletedSuccessfully: 9},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[1], "io") || !strings.Contains(lines[1], "READY") {
		t.Errorf("unexpected row %q", lines[1])
	}
}

func TestLoadCommand_DefaultPool(t *testing.T) {
	err := runApp([]string{"poolregistry", "load", "-n", "20", "--submitters", "2", "--work", "1ms"})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
}

func TestLoadCommand_ConfiguredPool(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "pools.yaml")
	content := "pools:\n  - name: io\n    core_size: 2\n    max_size: 4\n    queue_capacity: 10\n    saturation: caller-runs\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	// Act
	err := runApp([]string{"poolregistry", "-c", path, "load", "-p", "io", "-n", "50", "--rate", "1000", "--work", "1ms"})

	// Assert
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
}

func TestLoadCommand_UnknownPool(t *testing.T) {
	err := runApp([]string{"poolregistry", "load", "-p", "missing", "-n", "1"})
	if err == nil {
		t.Fatal("expected error for unconfigured pool")
	}
}
