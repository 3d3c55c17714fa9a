package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"genstudio/internal/config"
	"genstudio/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	server     *testsupport.APIServer
	configPath string
	homeDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)
	t.Setenv("GENSTUDIO_API_URL", "")
	t.Setenv("GENSTUDIO_API_TOKEN", "")

	srv := testsupport.NewAPIServer(t)
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithBaseURL(srv.URL())}, opts...)...)

	configPath := filepath.Join(homeDir, ".config", "genstudio", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		server:     srv,
		configPath: configPath,
		homeDir:    homeDir,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
