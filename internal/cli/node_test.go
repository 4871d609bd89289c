package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadNodeConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "node.yaml")

	contents := `
node:
  hostname: "a"
  listen_addr: ":9001"
  algorithm: "dv"
  neighbors:
    b: 1
    c: 4
  peers:
    b: "http://localhost:9002"
  registry_ttl_sec: 60
  update_interval_sec: 5
  timeout_sec: 30
observability:
  metrics: true
`
	if err := os.WriteFile(configFile, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := loadNodeConfig(configFile)
	if err != nil {
		t.Fatalf("loadNodeConfig() error: %v", err)
	}

	if cfg.Hostname != "a" {
		t.Errorf("expected hostname a, got %s", cfg.Hostname)
	}
	if cfg.Algorithm != "dv" {
		t.Errorf("expected algorithm dv, got %s", cfg.Algorithm)
	}
	if cfg.Neighbors["b"] != 1 || cfg.Neighbors["c"] != 4 {
		t.Errorf("unexpected neighbors: %+v", cfg.Neighbors)
	}
	if cfg.Peers["b"] != "http://localhost:9002" {
		t.Errorf("unexpected peers: %+v", cfg.Peers)
	}
	if !cfg.Observability.Metrics {
		t.Error("expected metrics enabled")
	}
}

func TestLoadNodeConfig_DefaultsRegistryTTL(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "node.yaml")

	contents := `
node:
  hostname: "a"
  listen_addr: ":9001"
  algorithm: "ls"
`
	if err := os.WriteFile(configFile, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := loadNodeConfig(configFile)
	if err != nil {
		t.Fatalf("loadNodeConfig() error: %v", err)
	}

	if cfg.RegistryTTL <= 0 {
		t.Errorf("expected a positive default registry TTL, got %s", cfg.RegistryTTL)
	}
}

func TestLoadNodeConfig_MissingFile(t *testing.T) {
	_, err := loadNodeConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestRunNode_UnknownAlgorithm(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "node.yaml")

	contents := `
node:
  hostname: "a"
  listen_addr: "127.0.0.1:0"
  algorithm: "not-a-real-algorithm"
`
	if err := os.WriteFile(configFile, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	err := RunNode([]string{"-config", configFile})
	if err == nil {
		t.Fatal("expected an error for an unknown algorithm")
	}
}

func TestRunNode_CentralizedMemberRequiresCentralHostname(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "node.yaml")

	contents := `
node:
  hostname: "a"
  listen_addr: "127.0.0.1:0"
  algorithm: "centralized-member"
`
	if err := os.WriteFile(configFile, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	err := RunNode([]string{"-config", configFile})
	if err == nil {
		t.Fatal("expected an error when central_hostname is missing")
	}
}
