package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pesabridge/pesabridge/pkg/schema"
)

// SeedFile is the dev/test fixture format: a snapshot of the account store's
// projects and users, loaded at boot when PESABRIDGE_SEED_FILE is set.
type SeedFile struct {
	Projects []schema.Project `json:"projects"`
	Users    []schema.User    `json:"users"`
}

// LoadSeed reads a seed fixture and registers its records into the store.
func LoadSeed(path string, m *MemStore) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed SeedFile
	if err := json.Unmarshal(content, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	for _, u := range seed.Users {
		m.SeedUser(u)
	}
	for _, p := range seed.Projects {
		m.SeedProject(p)
	}
	return nil
}
