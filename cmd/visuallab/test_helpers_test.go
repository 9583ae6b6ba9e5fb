package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"visuallab/internal/config"
	"visuallab/internal/daemon"
	"visuallab/internal/logging"
	"visuallab/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	backend    *testsupport.FakeBackend
	daemon     *daemon.Daemon
	configPath string
	bind       string
}

// setupCLITestEnv writes a config pointing at a fake backend. The daemon is
// started only when withDaemon is set; otherwise bind names a closed port.
func setupCLITestEnv(t *testing.T, withDaemon bool) *cliTestEnv {
	t.Helper()
	t.Setenv("VISUALLAB_BACKEND_URL", "")
	t.Setenv("VISUALLAB_API_TOKEN", "")

	backend := testsupport.NewFakeBackend(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(backend.URL))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "visuallab.toml")
	writeTestConfig(t, configPath, cfg)

	env := &cliTestEnv{
		cfg:        cfg,
		backend:    backend,
		configPath: configPath,
		bind:       unusedAddress(t),
	}
	if !withDaemon {
		return env
	}

	store := testsupport.MustOpenJournal(t, cfg)
	orchestrator, err := buildOrchestrator(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("buildOrchestrator: %v", err)
	}
	d, err := daemon.New(cfg, store, orchestrator, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Stop()
	})
	env.daemon = d
	env.bind = d.Address()
	return env
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func unusedAddress(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	return addr
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	full := append([]string{"--config", env.configPath, "--bind", env.bind}, args...)
	return runCLI(t, full)
}

func runCLI(t *testing.T, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
