package messages

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	m, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m != &Defaults {
		t.Error("Load(\"\") should return the Defaults instance")
	}
	if m.NewTransactions.Title != "Novas transações" {
		t.Errorf("NewTransactions.Title = %q", m.NewTransactions.Title)
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	content := `{
		"new_transactions": {"title": "Custom", "body": "%d new"},
		"bank_action_required": {"title": "Act", "body": "Reconnect"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.NewTransactions.Title != "Custom" {
		t.Errorf("NewTransactions.Title = %q, want %q", m.NewTransactions.Title, "Custom")
	}
	if m.BankActionRequired.Body != "Reconnect" {
		t.Errorf("BankActionRequired.Body = %q, want %q", m.BankActionRequired.Body, "Reconnect")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read messages file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "failed to parse messages file") {
		t.Errorf("unexpected error: %v", err)
	}
}

// A load failure must not poison later calls. The file may be created or
// fixed after the process starts retrying.
func TestLoadRecoversAfterFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error while file is missing")
	}

	content := `{"new_transactions": {"title": "Later", "body": "%d"}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after fixing the file: error = %v", err)
	}
	if m.NewTransactions.Title != "Later" {
		t.Errorf("NewTransactions.Title = %q, want %q", m.NewTransactions.Title, "Later")
	}
}
