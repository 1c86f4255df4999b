package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pesabridge/pesabridge/pkg/schema"
)

const ledgerFile = "transactions.json"

// Persistence handles disk I/O for the transaction ledger.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
}

// NewPersistence initializes a persistence handler, creating the data
// directory if needed.
func NewPersistence(dir string) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Persistence{DataDir: dir}, nil
}

// SaveLedger writes the full ledger snapshot to disk atomically: the JSON is
// written to a temp file and swapped in with a rename, so a crash leaves
// either the old ledger or the new one, never a truncated file.
func (p *Persistence) SaveLedger(txs map[string]schema.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	filePath := filepath.Join(p.DataDir, ledgerFile)
	tempPath := filePath + ".tmp"

	data, err := json.MarshalIndent(txs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, filePath)
}

// LoadLedger returns the persisted ledger, or an empty map when none exists
// yet. A corrupt ledger file is skipped with a warning rather than aborting
// boot.
func (p *Persistence) LoadLedger() (map[string]schema.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	txs := make(map[string]schema.Transaction)

	content, err := os.ReadFile(filepath.Join(p.DataDir, ledgerFile))
	if err != nil {
		if os.IsNotExist(err) {
			return txs, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(content, &txs); err != nil {
		slog.Warn("could not unmarshal persisted ledger, starting empty", "error", err)
		return make(map[string]schema.Transaction), nil
	}
	return txs, nil
}
