package rules

import (
	"os"
	"path/filepath"
	"testing"

	"eventrelay/pkg/models"
)

const heartbeatRule = `title: Drop heartbeat events
id: drop-heartbeat
status: experimental
logsource:
  product: audit
detection:
  selection:
    event_name: Heartbeat
  condition: selection
level: low
`

const windowsRule = `title: Windows only
id: windows-only
logsource:
  product: windows
  service: sysmon
detection:
  selection:
    EventID: 1
  condition: selection
`

func writeRule(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatalf("write rule: %v", err)
	}
}

func TestSigmaEngineMatchesAuditRules(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "heartbeat.yml", heartbeatRule)
	writeRule(t, dir, "windows.yaml", windowsRule)
	writeRule(t, dir, "broken.yml", "title: [unterminated")
	writeRule(t, dir, "notes.txt", "ignored")

	engine, stats, err := NewSigmaEngine(dir)
	if err != nil {
		t.Fatalf("NewSigmaEngine: %v", err)
	}
	if stats.TotalFiles != 3 || stats.Loaded != 1 || stats.SkippedDatasource != 1 || stats.SkippedInvalid != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	heartbeat := models.NewCleansedEvent("e1", "Heartbeat", "c1", 1, "t", nil)
	if got := engine.Match(heartbeat); len(got) != 1 || got[0] != "drop-heartbeat" {
		t.Fatalf("expected heartbeat rule to match, got %v", got)
	}

	login := models.NewCleansedEvent("e2", "LoginAttempt", "c1", 1, "t", nil)
	if got := engine.Match(login); len(got) != 0 {
		t.Fatalf("expected no match, got %v", got)
	}
}

func TestNewSigmaEngineRejectsNonYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rule.json")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := NewSigmaEngine(path); err == nil {
		t.Fatalf("expected error for non-yaml rule file")
	}
}

func TestNilEngineMatchesNothing(t *testing.T) {
	var engine *SigmaEngine
	if got := engine.Match(models.NewCleansedEvent("e", "n", "c", 1, "t", nil)); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := (&NoopEngine{}).Match(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
