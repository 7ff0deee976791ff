// Package messages loads user-facing notification texts from a JSON file so
// copy changes do not require a rebuild.
package messages

import (
	"encoding/json"
	"fmt"
	"os"
)

type MessageText struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Messages holds every push notification template. Bodies may carry one %d
// verb which is filled with the transaction count.
type Messages struct {
	NewTransactions    MessageText `json:"new_transactions"`
	BankActionRequired MessageText `json:"bank_action_required"`
}

// Defaults are used when no messages file is configured.
var Defaults = Messages{
	NewTransactions: MessageText{
		Title: "Novas transações",
		Body:  "Você tem %d novas transações sincronizadas.",
	},
	BankActionRequired: MessageText{
		Title: "Ação necessária",
		Body:  "Reconecte seu banco para continuar sincronizando.",
	},
}

// Load reads the notifications JSON file. An empty path returns Defaults.
func Load(path string) (*Messages, error) {
	if path == "" {
		return &Defaults, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}
	var m Messages
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}
	return &m, nil
}
