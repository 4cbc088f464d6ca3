package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/user/viteo/pkg/adapters/nativedecoder"
	"github.com/user/viteo/pkg/config"
	"github.com/user/viteo/pkg/frame"
)

// runSetup runs the app with args and a command that captures the environment.
func runSetup(t *testing.T, args ...string) (*env, error) {
	t.Helper()
	var (
		got    *env
		setErr error
	)
	app := newApp()
	app.Commands = []*cli.Command{{
		Name: "capture",
		Action: func(c *cli.Context) error {
			got, setErr = setup(c)
			return nil
		},
	}}
	if err := app.Run(append(append([]string{"viteo", "--quiet"}, args...), "capture")); err != nil {
		t.Fatalf("app.Run failed: %v", err)
	}
	return got, setErr
}

func TestSetup_ConfigFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viteo.yaml")
	if err := os.WriteFile(path, []byte("engine: ffmpeg\nbatch_size: 12\nqueue_capacity: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	e, err := runSetup(t, "--config", path, "--queue", "5", "--format", "rgb")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if e.cfg.BatchSize != 12 {
		t.Errorf("expected batch size from file, got %d", e.cfg.BatchSize)
	}
	if e.cfg.QueueCapacity != 5 {
		t.Errorf("expected flag to override queue capacity, got %d", e.cfg.QueueCapacity)
	}
	cfg := e.extractor.Config()
	if cfg.Engine != nativedecoder.EngineFFmpeg {
		t.Errorf("expected ffmpeg engine, got %s", cfg.Engine)
	}
	if cfg.Format != frame.FormatRGB {
		t.Errorf("expected rgb, got %s", cfg.Format)
	}
}

func TestSetup_Defaults(t *testing.T) {
	e, err := runSetup(t)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if e.cfg.BatchSize != config.Defaults().BatchSize {
		t.Errorf("expected default batch size, got %d", e.cfg.BatchSize)
	}
}

func TestSetup_RejectsInvalidValues(t *testing.T) {
	if _, err := runSetup(t, "--format", "yuv"); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid for format, got %v", err)
	}
	if _, err := runSetup(t, "--engine", "cuda"); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid for engine, got %v", err)
	}
}

func TestSetup_MissingConfigFile(t *testing.T) {
	if _, err := runSetup(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestCommands_RequireArguments(t *testing.T) {
	for _, name := range []string{"info", "extract", "bench", "sheet"} {
		t.Run(name, func(t *testing.T) {
			if err := newApp().Run([]string{"viteo", "--quiet", name}); err == nil {
				t.Errorf("%s: expected error without arguments", name)
			}
		})
	}
}
