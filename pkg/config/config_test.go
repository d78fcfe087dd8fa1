package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := DefaultConfig()
	if cfg.Framework != want.Framework || cfg.Execution != want.Execution {
		t.Fatalf("cfg = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Execution.DefaultRepeat != 100 {
		t.Fatalf("DefaultRepeat = %d, want 100", cfg.Execution.DefaultRepeat)
	}
}

func TestLoadExpandsEnvBeforeParsing(t *testing.T) {
	t.Setenv("FRAGSCAPY_CFG_HOST", "10.1.2.3")
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	writeFile(t, path, `
framework:
  log_level: debug
queues:
  - name: q1
    qnum: 1000
    chain: [egress]
    family: [v4]
    host: ${FRAGSCAPY_CFG_HOST}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Queues) != 1 || cfg.Queues[0].Host != "10.1.2.3" {
		t.Fatalf("Queues = %+v, want host expanded to 10.1.2.3", cfg.Queues)
	}
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	writeFile(t, path, "framework:\n  log_level: chatty\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown log_level")
	}
}

func TestLoadRejectsZeroDefaultRepeat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	writeFile(t, path, "execution:\n  default_repeat: 0\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for default_repeat < 1")
	}
}

func TestLoadRejectsInvalidQueueRule(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	writeFile(t, path, `
queues:
  - name: bad
    qnum: 1001
    chain: [egress]
    family: [v4]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for odd qnum surfaced through Rule().Validate()")
	}
}

func TestQueueConfigRuleMapsChainAndFamily(t *testing.T) {
	q := QueueConfig{Chain: []string{"ingress", "egress"}, Family: []string{"v4", "v6"}, QNum: 2000}
	r := q.Rule()
	if r.EgressQueue() != 2000 || r.IngressQueue() != 2001 {
		t.Fatalf("EgressQueue/IngressQueue = %d/%d, want 2000/2001", r.EgressQueue(), r.IngressQueue())
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("Rule().Validate(): %v", err)
	}
}

func TestSaveRoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Queues = []QueueConfig{{Name: "q1", QNum: 1000, Chain: []string{"egress"}, Family: []string{"v4"}, Host: "10.0.0.1"}}

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if len(loaded.Queues) != 1 || loaded.Queues[0].Host != "10.0.0.1" {
		t.Fatalf("loaded.Queues = %+v", loaded.Queues)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writeFile(%s): %v", path, err)
	}
}
