package enrichment

import (
	"strings"
	"testing"

	"grana/internal/domain/transaction"
)

func TestBuildPrompt_IncludesExamplesAndTransactions(t *testing.T) {
	examples := []transaction.Memory{
		{Description: "Uber*Trip123", Tag: transaction.TagTransporte},
	}
	raw := "SUPERMERCADO REAL"
	batch := []Input{
		{ExternalID: "tx-1", Description: "SUPERMERCADO\tREAL  S/A", Amount: 152.30, Category: &raw},
	}

	prompt := buildPrompt(examples, batch)

	if !strings.Contains(prompt, `"Uber*Trip123" -> Transporte`) {
		t.Error("expected history example in prompt")
	}
	if !strings.Contains(prompt, `"externalId":"tx-1"`) {
		t.Error("expected transaction payload in prompt")
	}
	if !strings.Contains(prompt, "SUPERMERCADO REAL S/A") {
		t.Error("expected whitespace-collapsed description in prompt")
	}
	for _, tag := range transaction.Tags {
		if !strings.Contains(prompt, tag) {
			t.Errorf("expected tag %q listed in prompt", tag)
		}
	}
}

func TestBuildPrompt_NoHistory(t *testing.T) {
	prompt := buildPrompt(nil, []Input{{ExternalID: "tx-1", Description: "PIX RECEBIDO"}})

	if strings.Contains(prompt, "Histórico") {
		t.Error("expected no history block without examples")
	}
}

func TestCleanForPrompt(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"control characters", "UBER\x00*TRIP\x1f123", "UBER *TRIP 123"},
		{"newlines and tabs", "POSTO\nSHELL\tBR", "POSTO SHELL BR"},
		{"extra spaces", "  PIX   TRANSF  ", "PIX TRANSF"},
		{"already clean", "iFood Rest", "iFood Rest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanForPrompt(tt.input); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestParseModelResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		count   int
		wantErr bool
	}{
		{
			name:  "plain array",
			raw:   `[{"externalId":"tx-1","cleanDescription":"Uber","category":"Transporte"}]`,
			count: 1,
		},
		{
			name:  "json code fence",
			raw:   "```json\n[{\"externalId\":\"tx-1\",\"cleanDescription\":\"Uber\",\"category\":\"Transporte\"}]\n```",
			count: 1,
		},
		{
			name:  "bare code fence",
			raw:   "```\n[]\n```",
			count: 0,
		},
		{
			name:  "surrounding prose",
			raw:   "Aqui está o resultado:\n[{\"externalId\":\"tx-1\",\"cleanDescription\":\"Uber\",\"category\":\"Transporte\"}]\nEspero ter ajudado.",
			count: 1,
		},
		{
			name:    "not json",
			raw:     "não consegui categorizar",
			wantErr: true,
		},
		{
			name:    "object instead of array",
			raw:     `{"externalId":"tx-1"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := parseModelResponse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(results) != tt.count {
				t.Errorf("expected %d results, got %d", tt.count, len(results))
			}
		})
	}
}

func TestBuildMemoryTable_NewestWins(t *testing.T) {
	table := BuildMemoryTable([]transaction.Memory{
		{Description: "iFood Rest", Tag: transaction.TagAlimentacao},
		{Description: "IFOOD REST", Tag: transaction.TagLazer},
	})

	if table.Len() != 1 {
		t.Fatalf("expected 1 distinct entry, got %d", table.Len())
	}
	tag, ok := table.Lookup("ifood rest")
	if !ok || tag != transaction.TagAlimentacao {
		t.Errorf("expected newest tag %q, got %q (found=%v)", transaction.TagAlimentacao, tag, ok)
	}
}

func TestMemoryTable_Examples(t *testing.T) {
	table := BuildMemoryTable([]transaction.Memory{
		{Description: "a", Tag: transaction.TagOutros},
		{Description: "b", Tag: transaction.TagOutros},
		{Description: "c", Tag: transaction.TagOutros},
	})

	if got := len(table.Examples(2)); got != 2 {
		t.Errorf("expected 2 examples, got %d", got)
	}
	if got := len(table.Examples(10)); got != 3 {
		t.Errorf("expected all 3 examples, got %d", got)
	}
	var nilTable *MemoryTable
	if got := nilTable.Examples(5); got != nil {
		t.Errorf("expected nil examples from nil table, got %v", got)
	}
}
