package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "console.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, `
node_id: edge-7
scheduler:
  autonomous_threshold: 65
  remediation_delay: 2s
diagnose:
  provider: rules
`)
	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.NodeID != "edge-7" {
		t.Errorf("expected edge-7, got %s", cfg.NodeID)
	}
	if cfg.Scheduler.AutonomousThreshold != 65 || cfg.Scheduler.RemediationDelay != 2*time.Second {
		t.Errorf("unexpected scheduler %+v", cfg.Scheduler)
	}
	// absent keys keep their defaults
	if cfg.Scheduler.CooldownHealthy != 30*time.Second || cfg.Retention.Logs != 50 {
		t.Errorf("defaults lost: %+v %+v", cfg.Scheduler, cfg.Retention)
	}
	if cfg.Baseline.MemoryMB != 124 {
		t.Errorf("expected baseline memory 124, got %f", cfg.Baseline.MemoryMB)
	}
}

func TestLoadConfig_SampleFile(t *testing.T) {
	cfg, err := Load("../../configs/console.yaml", "")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Diagnose.Model != DefaultModel || cfg.Diagnose.MaxAttempts != 3 {
		t.Errorf("unexpected diagnose config %+v", cfg.Diagnose)
	}
}

func TestLoadConfig_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Intervals.Logs != 4*time.Second || cfg.Scheduler.NoticeTTL != 10*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoadConfig_SchemaRejects(t *testing.T) {
	cases := map[string]string{
		"threshold":    "scheduler:\n  autonomous_threshold: 150\n",
		"provider":     "diagnose:\n  provider: mystery\n",
		"duration":     "intervals:\n  logs: soon\n",
		"unknown key":  "colour: blue\n",
		"disk percent": "baseline:\n  disk_percent: 140\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body), ""); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestValidateWithCue_ExternalSchema(t *testing.T) {
	dir := t.TempDir()
	schema := filepath.Join(dir, "strict.cue")
	if err := os.WriteFile(schema, []byte("#Config: {node_id: \"fixed\"}\n"), 0644); err != nil {
		t.Fatalf("failed to write schema: %v", err)
	}
	if err := ValidateWithCue(writeConfig(t, "node_id: fixed\n"), schema); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	err := ValidateWithCue(writeConfig(t, "node_id: other\n"), schema)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestValidateWithCue_MissingDefinition(t *testing.T) {
	schema := filepath.Join(t.TempDir(), "empty.cue")
	if err := os.WriteFile(schema, []byte("x: 1\n"), 0644); err != nil {
		t.Fatalf("failed to write schema: %v", err)
	}
	if err := ValidateWithCue(writeConfig(t, "node_id: a\n"), schema); err == nil {
		t.Fatalf("expected error for schema without #Config")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg.Intervals.Monitor = 0
	cfg.Retention.Audit = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "intervals") || !strings.Contains(err.Error(), "retention") {
		t.Fatalf("expected joined errors, got %v", err)
	}
}

func TestDiagnoseEndpoint(t *testing.T) {
	d := Default().Diagnose
	if d.Endpoint() != GroqBaseURL {
		t.Errorf("expected groq endpoint, got %s", d.Endpoint())
	}
	d.Provider = ProviderOpenAI
	if d.Endpoint() != OpenAIBaseURL {
		t.Errorf("expected openai endpoint, got %s", d.Endpoint())
	}
	d.BaseURL = "http://localhost:11434/v1"
	if d.Endpoint() != "http://localhost:11434/v1" {
		t.Errorf("expected explicit endpoint, got %s", d.Endpoint())
	}
	t.Setenv("CHAOSSIM_TEST_KEY", "secret")
	d.APIKeyEnv = "CHAOSSIM_TEST_KEY"
	if d.APIKey() != "secret" {
		t.Errorf("expected key from env")
	}
}
