package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"users": [{"id": "u1", "email": "p@example.com", "status": "ACTIVE"}],
		"projects": [{"id": "p1", "user_id": "u1", "live_public_key": "L1", "test_public_key": "T1"}]
	}`), 0644))

	m := NewMemStore(nil, nil)
	require.NoError(t, LoadSeed(path, m))

	p, kind, err := m.ProjectByKey("T1")
	require.NoError(t, err)
	require.Equal(t, "p1", p.ID)
	require.Equal(t, "test", string(kind))

	u, err := m.UserByID("u1")
	require.NoError(t, err)
	require.Equal(t, "p@example.com", u.Email)
}

func TestLoadSeed_MissingFile(t *testing.T) {
	m := NewMemStore(nil, nil)
	require.Error(t, LoadSeed("/nonexistent/seed.json", m))
}
